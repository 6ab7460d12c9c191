// panic_recovery_test.go: panic recovery tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	logger := NewTestLogger()
	done := make(chan struct{})

	SafeGo(logger, "test", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine did not run")
	}

	require.Eventually(t, func() bool {
		return logger.HasMessage("ERROR", "Panic recovered")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCallRecovered(t *testing.T) {
	assert.Nil(t, callRecovered(func() {}))
	assert.Equal(t, "boom", callRecovered(func() { panic("boom") }))
}
