// utils_test.go: Testing CLI argument parsing helpers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"slices"
	"testing"
	"time"

	"github.com/agilira/talos"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatINI, false},
		{"ini", FormatINI, false},
		{"CFG", FormatINI, false},
		{"conf", FormatINI, false},
		{"yaml", FormatYAML, false},
		{" yml ", FormatYAML, false},
		{"json", FormatINI, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if FormatYAML.String() != "yaml" || FormatINI.String() != "ini" {
		t.Error("unexpected Format names")
	}
}

func TestParseNumbers(t *testing.T) {
	got, err := ParseNumbers([]string{"5", " 3", "-8", "0"})
	if err != nil {
		t.Fatalf("ParseNumbers: %v", err)
	}
	if !slices.Equal(got, []int{5, 3, -8, 0}) {
		t.Errorf("ParseNumbers = %v", got)
	}

	_, err = ParseNumbers([]string{"1", "two"})
	if talos.ErrorCode(err) != talos.ErrCodeInvalidArgument {
		t.Errorf("ParseNumbers(two) error = %v", err)
	}

	if got, err := ParseNumbers(nil); err != nil || len(got) != 0 {
		t.Errorf("ParseNumbers(nil) = %v, %v", got, err)
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"90s", 90 * time.Second, false},
		{"24h", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"xd", 0, true},
		{"-1h", 0, true},
		{"yesterday", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSince(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSince(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSince(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseLevelFilter(t *testing.T) {
	if level, err := ParseLevelFilter(""); err != nil || level != talos.LevelDebug {
		t.Errorf("ParseLevelFilter(\"\") = %v, %v", level, err)
	}
	if level, err := ParseLevelFilter("WW"); err != nil || level != talos.LevelWarning {
		t.Errorf("ParseLevelFilter(WW) = %v, %v", level, err)
	}
	if _, err := ParseLevelFilter("chatty"); err == nil {
		t.Error("ParseLevelFilter accepted an unknown level")
	}
}
