// scheduler_test.go: scheduler and console tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_TicksImmediatelyAndRepeats(t *testing.T) {
	var refreshes, polls atomic.Int64
	s := NewScheduler(SchedulerConfig{
		RefreshInterval: 20 * time.Millisecond,
		ConsoleInterval: 20 * time.Millisecond,
	}, func(context.Context, bool) { refreshes.Add(1) }, func() { polls.Add(1) })

	s.Start()
	s.Start()
	require.Eventually(t, func() bool { return refreshes.Load() >= 3 && polls.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	after := refreshes.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, refreshes.Load(), "no ticks after Stop")
	assert.Equal(t, after, s.Passes())
	s.Stop()
}

func TestScheduler_ForceRefreshAppliesOnce(t *testing.T) {
	var mu sync.Mutex
	var bypasses []bool
	s := NewScheduler(SchedulerConfig{RefreshInterval: 10 * time.Millisecond}, func(_ context.Context, bypass bool) {
		mu.Lock()
		bypasses = append(bypasses, bypass)
		mu.Unlock()
	}, nil)

	s.ForceRefresh()
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bypasses) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, bypasses[0])
	assert.False(t, bypasses[1])
	assert.False(t, bypasses[2])
}

func TestScheduler_StopCancelsInFlightPass(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool
	s := NewScheduler(SchedulerConfig{RefreshInterval: time.Hour}, func(ctx context.Context, _ bool) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	}, nil)

	s.Start()
	<-started
	s.Stop()
	assert.True(t, cancelled.Load())
}

func TestScheduler_PanickingTickKeepsRunning(t *testing.T) {
	logger := NewTestLogger()
	var n atomic.Int64
	s := NewScheduler(SchedulerConfig{RefreshInterval: 10 * time.Millisecond, Logger: logger},
		func(context.Context, bool) {
			if n.Add(1) == 1 {
				panic("first pass")
			}
		}, nil)

	s.Start()
	require.Eventually(t, func() bool { return n.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	assert.True(t, logger.HasMessage("ERROR", "Panic recovered"))
}

func TestConsole_PollDispatchesWithoutBlocking(t *testing.T) {
	commands := NewCommandRegistry(nil)
	var got []string
	require.NoError(t, commands.RegisterFunc("say", func(args []string) {
		got = append(got, strings.Join(args, " "))
	}, "test"))

	reader, writer := io.Pipe()
	console := NewConsole(reader, commands, nil)
	console.Start()
	defer console.Stop()

	assert.Equal(t, 0, console.Poll(), "nothing read yet")

	go func() {
		_, _ = writer.Write([]byte("say hello\n\nsay  two words\n"))
	}()

	handled := 0
	require.Eventually(t, func() bool {
		handled += console.Poll()
		return handled == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"hello", "two words"}, got)
	_ = writer.Close()
}
