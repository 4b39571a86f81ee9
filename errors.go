// errors.go: Error codes for talos operations
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import "github.com/agilira/go-errors"

// Error codes for talos operations
const (
	ErrCodeLockDoubleAcquire = "TALOS_LOCK_DOUBLE_ACQUIRE"
	ErrCodeLockNotHeld       = "TALOS_LOCK_NOT_HELD"
	ErrCodeLockDestroyHeld   = "TALOS_LOCK_DESTROY_HELD"
	ErrCodeLockDestroyed     = "TALOS_LOCK_DESTROYED"
	ErrCodeInvalidProfile    = "TALOS_INVALID_PROFILE"
	ErrCodeProfileNoDefault  = "TALOS_PROFILE_NO_DEFAULT"
	ErrCodeProfileIO         = "TALOS_PROFILE_IO"
	ErrCodeInvalidPath       = "TALOS_INVALID_PATH"
	ErrCodeIOError           = "TALOS_IO_ERROR"
	ErrCodeInvalidLogConfig  = "TALOS_INVALID_LOG_CONFIG"
	ErrCodeInvalidBufferSize = "TALOS_INVALID_BUFFER_SIZE"
	ErrCodeInvalidFlush      = "TALOS_INVALID_FLUSH_INTERVAL"
	ErrCodeLogSinkError      = "TALOS_LOG_SINK_ERROR"
	ErrCodeLoggerClosed      = "TALOS_LOGGER_CLOSED"
	ErrCodeInvalidArgument   = "TALOS_INVALID_ARGUMENT"
)

// ErrorCode returns the talos error code carried by err, or "" when err
// carries none.
func ErrorCode(err error) string {
	if coder, ok := err.(errors.ErrorCoder); ok {
		return string(coder.ErrorCode())
	}
	return ""
}
