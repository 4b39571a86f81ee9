// lock_test.go: Testing exclusive, reentrant and reader/writer locks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petermattis/goid"
)

// misuseRecorder collects misuse reports from any goroutine.
type misuseRecorder struct {
	mu    sync.Mutex
	codes []string
}

func (r *misuseRecorder) handle(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, ErrorCode(err))
}

func (r *misuseRecorder) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.codes))
	copy(out, r.codes)
	return out
}

func TestExclusiveLockDoubleAcquireIsReported(t *testing.T) {
	rec := &misuseRecorder{}
	l := NewExclusiveLock(WithLockName("scenario-d"), WithMisuseHandler(rec.handle))

	l.Lock()
	l.Lock() // second acquire by the owner: reported, not blocking

	if got := l.HoldCount(); got != 1 {
		t.Errorf("HoldCount() = %d after refused re-acquire, want 1", got)
	}
	codes := rec.Codes()
	if len(codes) != 1 || codes[0] != ErrCodeLockDoubleAcquire {
		t.Fatalf("misuse codes = %v, want [%s]", codes, ErrCodeLockDoubleAcquire)
	}
	if l.Misuses() != 1 {
		t.Errorf("Misuses() = %d, want 1", l.Misuses())
	}

	l.Unlock()
	if got := l.HoldCount(); got != 0 {
		t.Errorf("HoldCount() = %d after Unlock, want 0", got)
	}

	// the lock is fully usable afterwards
	if !l.TryLock() {
		t.Fatal("TryLock on a free lock failed")
	}
	l.Unlock()
}

func TestExclusiveLockAcquireGuard(t *testing.T) {
	rec := &misuseRecorder{}
	l := NewExclusiveLock(WithMisuseHandler(rec.handle))

	g := l.Acquire()
	if !g.Held() {
		t.Fatal("guard should hold the lock")
	}

	inert := l.Acquire()
	if inert.Held() {
		t.Error("refused acquire must return an inert guard")
	}
	inert.Release()
	if l.HoldCount() != 1 {
		t.Errorf("releasing an inert guard changed HoldCount to %d", l.HoldCount())
	}

	g.Release()
	g.Release()
	if l.HoldCount() != 0 {
		t.Errorf("HoldCount() = %d after Release, want 0", l.HoldCount())
	}
	if codes := rec.Codes(); len(codes) != 1 || codes[0] != ErrCodeLockDoubleAcquire {
		t.Errorf("misuse codes = %v, want only the double acquire", codes)
	}
}

func TestExclusiveLockTryLock(t *testing.T) {
	rec := &misuseRecorder{}
	l := NewExclusiveLock(WithMisuseHandler(rec.handle))

	if !l.TryLock() {
		t.Fatal("TryLock on a free lock failed")
	}
	if l.TryLock() {
		t.Error("TryLock by the owner of an exclusive lock must fail")
	}

	var other atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		other.Store(l.TryLock())
	}()
	<-done
	if other.Load() {
		t.Error("TryLock from another goroutine succeeded while held")
	}

	if g, ok := l.TryAcquire(); ok || g.Held() {
		t.Error("TryAcquire by the owner must fail")
	}
	l.Unlock()

	if len(rec.Codes()) != 0 {
		t.Errorf("TryLock failures must not be reported, got %v", rec.Codes())
	}
}

func TestReentrantLockNesting(t *testing.T) {
	rec := &misuseRecorder{}
	l := NewReentrantLock(WithMisuseHandler(rec.handle))

	for depth := 1; depth <= 3; depth++ {
		l.Lock()
		if got := l.HoldCount(); got != depth {
			t.Fatalf("HoldCount() = %d, want %d", got, depth)
		}
	}
	if !l.TryLock() {
		t.Fatal("TryLock by the owner of a reentrant lock failed")
	}
	if l.HoldCount() != 4 {
		t.Errorf("HoldCount() = %d, want 4", l.HoldCount())
	}

	// another goroutine cannot get in while any level is held
	acquired := make(chan struct{})
	go func() {
		l.Lock()
		close(acquired)
		l.Unlock()
	}()

	for depth := 3; depth >= 1; depth-- {
		l.Unlock()
		select {
		case <-acquired:
			t.Fatalf("other goroutine acquired with %d levels still held", depth)
		case <-time.After(10 * time.Millisecond):
		}
	}
	l.Unlock()

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("other goroutine never acquired the released lock")
	}

	if len(rec.Codes()) != 0 {
		t.Errorf("unexpected misuse reports: %v", rec.Codes())
	}
}

func TestReentrantLockGuards(t *testing.T) {
	var l ReentrantLock

	outer := l.Acquire()
	inner, ok := l.TryAcquire()
	if !ok || !inner.Held() {
		t.Fatal("nested TryAcquire failed")
	}
	if l.HoldCount() != 2 {
		t.Errorf("HoldCount() = %d, want 2", l.HoldCount())
	}
	inner.Release()
	outer.Release()
	if l.HoldCount() != 0 {
		t.Errorf("HoldCount() = %d, want 0", l.HoldCount())
	}
	if !l.Reentrant() {
		t.Error("Reentrant() = false")
	}
}

func TestLockUnlockNotHeld(t *testing.T) {
	for _, reentrant := range []bool{false, true} {
		rec := &misuseRecorder{}
		l := NewLock(reentrant, WithMisuseHandler(rec.handle))

		l.Unlock()

		l.Lock()
		done := make(chan struct{})
		go func() {
			defer close(done)
			l.Unlock() // not the owner
		}()
		<-done
		if l.HoldCount() != 1 {
			t.Errorf("reentrant=%v: foreign Unlock changed HoldCount to %d", reentrant, l.HoldCount())
		}
		l.Unlock()

		codes := rec.Codes()
		if len(codes) != 2 || codes[0] != ErrCodeLockNotHeld || codes[1] != ErrCodeLockNotHeld {
			t.Errorf("reentrant=%v: codes = %v, want two %s", reentrant, codes, ErrCodeLockNotHeld)
		}
		if l.Reentrant() != reentrant {
			t.Errorf("Reentrant() = %v, want %v", l.Reentrant(), reentrant)
		}
	}
}

func TestLockDestroy(t *testing.T) {
	rec := &misuseRecorder{}
	l := NewReentrantLock(WithMisuseHandler(rec.handle))

	l.Lock()
	l.Destroy()
	l.Unlock()

	l.Lock()
	if l.HoldCount() != 0 {
		t.Errorf("destroyed lock was acquired, HoldCount() = %d", l.HoldCount())
	}
	if l.TryLock() {
		t.Error("TryLock on a destroyed lock succeeded")
	}

	want := []string{ErrCodeLockDestroyHeld, ErrCodeLockDestroyed, ErrCodeLockDestroyed}
	codes := rec.Codes()
	if strings.Join(codes, ",") != strings.Join(want, ",") {
		t.Errorf("codes = %v, want %v", codes, want)
	}

	free := NewExclusiveLock(WithMisuseHandler(rec.handle))
	free.Destroy()
	if len(rec.Codes()) != len(want) {
		t.Error("destroying a free lock must not be reported")
	}
}

func TestLockMisuseIsLogged(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultLoggerConfig()
	config.Console = &buf
	config.FlushInterval = 0
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	l := NewExclusiveLock(WithLockName("logged"), WithLockLogger(logger))
	l.Lock()
	l.Lock()
	l.Unlock()

	out := buf.String()
	if !strings.HasPrefix(out, "EE ") {
		t.Errorf("misuse should be logged at EE, got %q", out)
	}
	if !strings.Contains(out, "lock_test.go") {
		t.Errorf("entry should point at the misusing caller, got %q", out)
	}
	if !strings.Contains(out, "already taken") {
		t.Errorf("entry should describe the misuse, got %q", out)
	}
}

func TestLockMutualExclusion(t *testing.T) {
	for _, reentrant := range []bool{false, true} {
		l := NewLock(reentrant)
		var (
			wg      sync.WaitGroup
			counter int
			inside  atomic.Int32
		)
		const goroutines, iterations = 8, 2000

		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < iterations; i++ {
					l.Lock()
					if inside.Add(1) != 1 {
						t.Error("two goroutines inside the critical section")
					}
					counter++
					inside.Add(-1)
					l.Unlock()
				}
			}()
		}
		wg.Wait()

		if counter != goroutines*iterations {
			t.Errorf("reentrant=%v: counter = %d, want %d", reentrant, counter, goroutines*iterations)
		}
	}
}

func TestRWLockGuards(t *testing.T) {
	var l RWLock

	r1 := l.ReadGuard()
	r2 := l.ReadGuard()

	writerIn := make(chan struct{})
	go func() {
		w := l.WriteGuard()
		close(writerIn)
		w.Release()
	}()

	select {
	case <-writerIn:
		t.Fatal("writer entered while readers held the lock")
	case <-time.After(20 * time.Millisecond):
	}

	r1.Release()
	r2.Release()
	r2.Release()

	select {
	case <-writerIn:
	case <-time.After(5 * time.Second):
		t.Fatal("writer never acquired the lock")
	}
}

func BenchmarkReentrantLock(b *testing.B) {
	var l ReentrantLock
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			l.Unlock()
		}
	})
}

func BenchmarkExclusiveLockGuard(b *testing.B) {
	var l ExclusiveLock
	for i := 0; i < b.N; i++ {
		l.Acquire().Release()
	}
}

func TestGoroutinesHaveDistinctOwners(t *testing.T) {
	ids := make(chan int64, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- goid.Get()
		}()
	}
	wg.Wait()
	close(ids)

	self := goid.Get()
	a, b := <-ids, <-ids
	if self <= 0 || a <= 0 || b <= 0 {
		t.Fatalf("goroutine ids must be positive: self=%d a=%d b=%d", self, a, b)
	}
	if a == b || a == self || b == self {
		t.Fatalf("goroutine ids collide: self=%d a=%d b=%d", self, a, b)
	}
}

func TestReentrantLockRejectsOtherGoroutines(t *testing.T) {
	rec := &misuseRecorder{}
	l := NewReentrantLock(WithMisuseHandler(rec.handle))
	l.Lock()

	acquired := make(chan bool, 1)
	go func() {
		acquired <- l.TryLock()
	}()
	if <-acquired {
		t.Fatal("another goroutine acquired a held reentrant lock")
	}

	entered := make(chan struct{})
	go func() {
		l.Lock()
		close(entered)
		l.Unlock()
	}()
	select {
	case <-entered:
		t.Fatal("another goroutine entered a held reentrant lock")
	case <-time.After(50 * time.Millisecond):
	}

	if l.HoldCount() != 1 {
		t.Errorf("HoldCount() = %d, want 1", l.HoldCount())
	}
	l.Unlock()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("waiting goroutine never acquired the released lock")
	}
	if codes := rec.Codes(); len(codes) != 0 {
		t.Errorf("unexpected misuse reports %v", codes)
	}
}
