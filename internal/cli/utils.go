// Utility functions for the talos CLI
//
// This file provides argument parsing helpers shared by the command
// handlers: number lists, export formats and human time ranges.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/talos"
)

// Format is a profile export format.
type Format int

const (
	FormatINI Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "ini"
}

// ParseFormat accepts "ini", "conf", "cfg", "yaml" and "yml", case
// insensitive. Empty selects INI.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ini", "conf", "cfg":
		return FormatINI, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return FormatINI, errors.New(talos.ErrCodeInvalidProfile, fmt.Sprintf("unsupported format: %s", s))
	}
}

// ParseNumbers converts every argument to an int.
func ParseNumbers(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return nil, errors.Wrap(err, talos.ErrCodeInvalidArgument, "not an integer").
				WithContext("arg", arg)
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseSince parses a time range such as "90s", "24h", "7d" or "2w". Empty
// means no limit and returns 0.
func ParseSince(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	}
	if unit != 0 {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil || n < 0 {
			return 0, errors.New(talos.ErrCodeInvalidArgument, fmt.Sprintf("invalid time range: %s", s))
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.New(talos.ErrCodeInvalidArgument, fmt.Sprintf("invalid time range: %s", s))
	}
	return d, nil
}

// ParseLevelFilter parses a level for log filtering. Empty selects
// LevelDebug, which matches every non-trace entry.
func ParseLevelFilter(s string) (talos.Level, error) {
	if strings.TrimSpace(s) == "" {
		return talos.LevelDebug, nil
	}
	return talos.ParseLevel(s)
}
