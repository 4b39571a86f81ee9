// filesystem_unix.go: access(2) based permission checks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

//go:build unix

package talos

import "golang.org/x/sys/unix"

func access(name string, how AccessMode) bool {
	return unix.Access(name, uint32(how)) == nil
}
