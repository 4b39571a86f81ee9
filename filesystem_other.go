// filesystem_other.go: Permission checks for platforms without access(2)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package talos

import "os"

// access approximates access(2) by opening the file in the requested mode.
func access(name string, how AccessMode) bool {
	info, err := os.Stat(name)
	if err != nil {
		return false
	}
	if how&AccessExecute != 0 && !info.IsDir() && info.Mode()&0111 == 0 {
		return false
	}
	if info.IsDir() {
		return true
	}
	flag := -1
	switch {
	case how&AccessRead != 0 && how&AccessWrite != 0:
		flag = os.O_RDWR
	case how&AccessWrite != 0:
		flag = os.O_WRONLY
	case how&AccessRead != 0:
		flag = os.O_RDONLY
	}
	if flag < 0 {
		return true
	}
	// #nosec G304 -- probing caller supplied path
	file, err := os.OpenFile(name, flag, 0)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}
