// filesystem.go: File system queries and a TTL-bounded stat cache
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// AccessMode selects the permissions checked by IsAccessible. Values match
// the access(2) mode bits.
type AccessMode uint32

const (
	AccessExists  AccessMode = 0
	AccessExecute AccessMode = 1
	AccessWrite   AccessMode = 2
	AccessRead    AccessMode = 4
)

// IsDirectory reports whether name exists and is a directory.
func IsDirectory(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.IsDir()
}

// DirectoryExists reports whether the directory name exists.
func DirectoryExists(name string) bool {
	return IsDirectory(name)
}

// FileExists reports whether anything exists at name.
func FileExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// IsAccessible reports whether the calling process may access name with
// every permission in how.
func IsAccessible(name string, how AccessMode) bool {
	return access(name, how)
}

// IsReadingAllowed reports whether name is readable.
func IsReadingAllowed(name string) bool {
	return IsAccessible(name, AccessRead)
}

// IsWritingAllowed reports whether name is writable.
func IsWritingAllowed(name string) bool {
	return IsAccessible(name, AccessWrite)
}

// ListFiles returns the entry names of directory, or nil when it is not a
// directory.
func ListFiles(directory string) []string {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

// FileSize returns the size of name in bytes, or 0 when it cannot be read.
func FileSize(name string) int64 {
	info, err := os.Stat(name)
	if err != nil {
		return 0
	}
	return info.Size()
}

// ReadFileChunk reads at most size bytes of name starting at offset. A chunk
// shorter than size means the end of the file was reached.
func ReadFileChunk(name string, offset int64, size int) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, errors.New(ErrCodeIOError,
			fmt.Sprintf("invalid chunk: offset %d, size %d", offset, size))
	}

	// #nosec G304 -- callers pass paths they intend to read
	file, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to open file").
			WithContext("path", name)
	}
	defer func() { _ = file.Close() }()

	buf := make([]byte, size)
	n, err := file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read file chunk").
			WithContext("path", name).
			WithContext("offset", offset)
	}
	return buf[:n], nil
}

// ValidatePath rejects paths that are empty, contain NUL bytes, climb out
// of their base with ".." elements (plain or URL-encoded) or exceed 4096
// characters.
func ValidatePath(path string) error {
	if path == "" {
		return errors.New(ErrCodeInvalidPath, "empty path not allowed")
	}
	if len(path) > 4096 {
		return errors.New(ErrCodeInvalidPath, fmt.Sprintf("path too long (max 4096 characters): %d", len(path)))
	}
	if strings.ContainsRune(path, 0) {
		return errors.New(ErrCodeInvalidPath, "path contains a null byte")
	}

	lower := strings.ToLower(path)
	for _, pattern := range []string{"%2e%2e", "%252e%252e", "%00", "%2500"} {
		if strings.Contains(lower, pattern) {
			return errors.New(ErrCodeInvalidPath, "path contains URL-encoded traversal pattern: "+pattern)
		}
	}

	for _, element := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if element == ".." {
			return errors.New(ErrCodeInvalidPath, "path contains parent directory reference").
				WithContext("path", path)
		}
	}
	return nil
}

// FileStat is the cached subset of os.Stat results.
type FileStat struct {
	ModTime  time.Time
	Size     int64
	Exists   bool
	IsDir    bool
	cachedAt int64 // timecache nano timestamp
}

func (fs *FileStat) isExpired(ttl time.Duration) bool {
	return (timecache.CachedTimeNano() - fs.cachedAt) > int64(ttl)
}

// Changed reports whether other describes a different file state.
func (fs FileStat) Changed(other FileStat) bool {
	return fs.Exists != other.Exists || fs.Size != other.Size || !fs.ModTime.Equal(other.ModTime)
}

// StatCache caches os.Stat results for a TTL. Reads never lock: the cache
// map is replaced copy-on-write through an atomic pointer.
type StatCache struct {
	ttl     time.Duration
	entries atomic.Pointer[map[string]FileStat]
}

// NewStatCache creates a cache whose entries expire after ttl. A ttl <= 0
// disables caching.
func NewStatCache(ttl time.Duration) *StatCache {
	c := &StatCache{ttl: ttl}
	empty := make(map[string]FileStat)
	c.entries.Store(&empty)
	return c
}

// Stat returns the cached state of path or refreshes it when expired. A
// missing file yields Exists=false and the os error.
func (c *StatCache) Stat(path string) (FileStat, error) {
	if cached, ok := (*c.entries.Load())[path]; ok && c.ttl > 0 && !cached.isExpired(c.ttl) {
		return cached, nil
	}

	info, err := os.Stat(path)
	stat := FileStat{
		cachedAt: timecache.CachedTimeNano(),
		Exists:   err == nil,
	}
	if err == nil {
		stat.ModTime = info.ModTime()
		stat.Size = info.Size()
		stat.IsDir = info.IsDir()
	}

	c.update(path, func(m map[string]FileStat) { m[path] = stat })
	return stat, err
}

// Invalidate drops the cached entry for path.
func (c *StatCache) Invalidate(path string) {
	c.update(path, func(m map[string]FileStat) { delete(m, path) })
}

// Len returns the number of cached entries.
func (c *StatCache) Len() int {
	return len(*c.entries.Load())
}

// update applies mutate to a copy of the map and publishes it, retrying
// when another goroutine published first.
func (c *StatCache) update(path string, mutate func(map[string]FileStat)) {
	for {
		oldPtr := c.entries.Load()
		next := make(map[string]FileStat, len(*oldPtr)+1)
		for k, v := range *oldPtr {
			next[k] = v
		}
		mutate(next)
		if c.entries.CompareAndSwap(oldPtr, &next) {
			return
		}
	}
}

// absPath cleans path and makes it absolute for use as a cache key.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, ErrCodeInvalidPath, "invalid file path").
			WithContext("path", path)
	}
	return abs, nil
}
