// panic_recovery.go: Panic recovery around plugin code and background goroutines
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"runtime"
)

// RecoveryHandler receives a recovered panic value and the goroutine stack.
type RecoveryHandler func(recovered interface{}, stack []byte)

// withStackRecover returns a deferred function that logs a panic with its
// stack trace. Use as:
//
//	defer withStackRecover(logger, "scheduler")()
func withStackRecover(logger Logger, component string) func() {
	return func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered",
				"component", component,
				"panic", r,
				"stack", captureStack())
		}
	}
}

// withRecoveryHandler returns a deferred function that hands a panic to handler.
func withRecoveryHandler(handler RecoveryHandler) func() {
	return func() {
		if r := recover(); r != nil {
			handler(r, []byte(captureStack()))
		}
	}
}

// SafeGo runs fn in a new goroutine, logging instead of crashing on panic.
func SafeGo(logger Logger, component string, fn func()) {
	go func() {
		defer withStackRecover(logger, component)()
		fn()
	}()
}

// callRecovered runs fn and converts a panic into a non-nil return value.
func callRecovered(fn func()) (recovered interface{}) {
	defer withRecoveryHandler(func(r interface{}, _ []byte) {
		recovered = r
	})()
	fn()
	return nil
}

func captureStack() string {
	buf := make([]byte, 64<<10)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
