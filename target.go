// target.go: Rendering target abstraction
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// RenderTarget receives rewritten source texts.
//
// SetSourceText is fire-and-forget: a nil error means the update was sent,
// not that the target applied it. Done is closed when the control channel
// is gone; Err then reports why (nil after a deliberate Close).
type RenderTarget interface {
	SetSourceText(ctx context.Context, source, text string) error
	Done() <-chan struct{}
	Err() error
	Close() error
}

// WriterTarget prints source updates to a writer. It never loses its
// channel and is used for dry runs.
type WriterTarget struct {
	mu   sync.Mutex
	out  io.Writer
	last map[string]string
	done chan struct{}
	once sync.Once
}

// NewWriterTarget creates a target that writes "source: text" lines to out.
func NewWriterTarget(out io.Writer) *WriterTarget {
	return &WriterTarget{out: out, last: make(map[string]string), done: make(chan struct{})}
}

// SetSourceText writes the update when the text changed since the last call.
func (w *WriterTarget) SetSourceText(_ context.Context, source, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.last[source]; ok && prev == text {
		return nil
	}
	w.last[source] = text
	_, err := fmt.Fprintf(w.out, "%s: %s\n", source, text)
	return err
}

// Text returns the last text written for source.
func (w *WriterTarget) Text(source string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.last[source]
	return t, ok
}

func (w *WriterTarget) Done() <-chan struct{} { return w.done }
func (w *WriterTarget) Err() error            { return nil }

// Close closes Done.
func (w *WriterTarget) Close() error {
	w.once.Do(func() { close(w.done) })
	return nil
}
