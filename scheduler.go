// scheduler.go: Fixed-rate refresh and console activities
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Default tick intervals.
const (
	DefaultRefreshInterval = time.Second
	DefaultConsoleInterval = time.Second
)

// RefreshFunc runs one refresh pass. bypass is true once after ForceRefresh.
type RefreshFunc func(ctx context.Context, bypass bool)

// SchedulerConfig configures the two periodic activities.
type SchedulerConfig struct {
	RefreshInterval time.Duration
	ConsoleInterval time.Duration
	Logger          Logger
}

// Scheduler drives the refresh pass and the console poll on independent
// fixed-rate tickers. Each activity runs in its own goroutine, ticks first
// immediately on Start, and never overlaps with itself. The two activities
// do overlap with each other; the only state they share is the force
// refresh flag.
type Scheduler struct {
	config  SchedulerConfig
	logger  Logger
	refresh RefreshFunc
	poll    func()

	forceRefresh atomic.Bool
	running      atomic.Bool
	passes       atomic.Int64

	mu       sync.Mutex
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewScheduler creates a stopped scheduler. poll may be nil.
func NewScheduler(config SchedulerConfig, refresh RefreshFunc, poll func()) *Scheduler {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}
	if config.ConsoleInterval <= 0 {
		config.ConsoleInterval = DefaultConsoleInterval
	}
	return &Scheduler{
		config:  config,
		logger:  NewLogger(config.Logger),
		refresh: refresh,
		poll:    poll,
	}
}

// Start launches both activities. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.run("refresh", s.config.RefreshInterval, s.stopChan, func() {
		bypass := s.forceRefresh.Swap(false)
		s.refresh(ctx, bypass)
		s.passes.Add(1)
	})

	if s.poll != nil {
		s.wg.Add(1)
		go s.run("console", s.config.ConsoleInterval, s.stopChan, s.poll)
	}

	s.logger.Debug("Scheduler started",
		"refresh_interval", s.config.RefreshInterval,
		"console_interval", s.config.ConsoleInterval)
}

// run is the loop of one activity. A panicking tick is logged and the
// activity keeps its cadence.
func (s *Scheduler) run(name string, interval time.Duration, stop <-chan struct{}, tick func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	safeTick := func() {
		defer withStackRecover(s.logger, name)()
		tick()
	}

	safeTick()
	for {
		select {
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			safeTick()
		case <-stop:
			return
		}
	}
}

// Stop halts both activities, cancels in-flight plugin calls and waits for
// running ticks to return. It must not be called from inside a tick.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	close(s.stopChan)
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Debug("Scheduler stopped", "passes", s.passes.Load())
}

// ForceRefresh makes the next refresh pass bypass every cooldown. Safe to
// call from any goroutine.
func (s *Scheduler) ForceRefresh() {
	s.forceRefresh.Store(true)
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// Passes returns the number of completed refresh passes.
func (s *Scheduler) Passes() int64 {
	return s.passes.Load()
}
