// console.go: Line-oriented console input
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"bufio"
	"io"
	"sync"
)

const consoleBacklog = 64

// Console reads command lines from an input stream in the background and
// hands them to a CommandRegistry when polled.
//
// The reader goroutine blocks on the input; Poll never does. A blocked read
// on a terminal cannot be interrupted, so after Stop the reader goroutine
// exits at the next line or at end of input.
type Console struct {
	input    io.Reader
	commands *CommandRegistry
	logger   Logger

	lines chan string
	done  chan struct{}
	once  sync.Once
	stop  sync.Once
}

// NewConsole creates a console over input.
func NewConsole(input io.Reader, commands *CommandRegistry, logger Logger) *Console {
	return &Console{
		input:    input,
		commands: commands,
		logger:   NewLogger(logger),
		lines:    make(chan string, consoleBacklog),
		done:     make(chan struct{}),
	}
}

// Start launches the reader goroutine once.
func (c *Console) Start() {
	c.once.Do(func() {
		SafeGo(c.logger, "console", c.read)
	})
}

func (c *Console) read() {
	scanner := bufio.NewScanner(c.input)
	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-c.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("Console input failed", "error", err)
	}
}

// Poll dispatches every line read so far and returns how many it handled.
func (c *Console) Poll() int {
	n := 0
	for {
		select {
		case line := <-c.lines:
			c.commands.Dispatch(line)
			n++
		default:
			return n
		}
	}
}

// Stop releases the reader goroutine.
func (c *Console) Stop() {
	c.stop.Do(func() { close(c.done) })
}
