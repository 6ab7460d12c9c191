// testing_helpers_test.go: shared test doubles
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePlugin is a configurable in-memory plugin.
type fakePlugin struct {
	id       string
	interval int64

	enableErr   error
	enablePanic bool
	disableErr  error
	reqPanic    bool
	delay       time.Duration
	commands    map[string]Command

	mu           sync.Mutex
	values       map[string]string
	requests     []string
	enableCalls  int
	disableCalls int
	dataDir      string
}

func newFakePlugin(id string, interval int64) *fakePlugin {
	return &fakePlugin{id: id, interval: interval, values: make(map[string]string)}
}

func (f *fakePlugin) Name() string                  { return "Fake " + f.id }
func (f *fakePlugin) Author() string                { return "tests" }
func (f *fakePlugin) Version() string               { return "1.0.0" }
func (f *fakePlugin) Identifier() string            { return f.id }
func (f *fakePlugin) RefreshIntervalSeconds() int64 { return f.interval }

func (f *fakePlugin) Enable(dataDirectory string) error {
	f.mu.Lock()
	f.enableCalls++
	f.dataDir = dataDirectory
	f.mu.Unlock()
	if f.enablePanic {
		panic("enable exploded")
	}
	return f.enableErr
}

func (f *fakePlugin) Disable() error {
	f.mu.Lock()
	f.disableCalls++
	f.mu.Unlock()
	return f.disableErr
}

func (f *fakePlugin) OnRequest(ctx context.Context, argument string) (string, bool) {
	f.mu.Lock()
	f.requests = append(f.requests, argument)
	v, ok := f.values[argument]
	delay := f.delay
	f.mu.Unlock()

	if f.reqPanic {
		panic("request exploded")
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return v, ok
}

func (f *fakePlugin) Commands() map[string]Command {
	return f.commands
}

func (f *fakePlugin) set(argument, value string) {
	f.mu.Lock()
	f.values[argument] = value
	f.mu.Unlock()
}

func (f *fakePlugin) unset(argument string) {
	f.mu.Lock()
	delete(f.values, argument)
	f.mu.Unlock()
}

func (f *fakePlugin) setDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

func (f *fakePlugin) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakePlugin) disableCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disableCalls
}

func (f *fakePlugin) enableCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enableCalls
}

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// newTestRegistry enables the given plugins in order.
func newTestRegistry(t *testing.T, plugins ...Plugin) (*PluginRegistry, *CommandRegistry) {
	t.Helper()
	commands := NewCommandRegistry(nil)
	registry := NewPluginRegistry(RegistryConfig{DataDirectory: t.TempDir()}, commands)
	candidates := make([]Candidate, 0, len(plugins))
	for _, p := range plugins {
		candidates = append(candidates, Candidate{Plugin: p, Source: "test:" + p.Identifier()})
	}
	registry.EnableAll(candidates)
	return registry, commands
}
