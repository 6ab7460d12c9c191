// counter.go: Counter plugin with named counters persisted in SQLite
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package counter provides the "counter" placeholder plugin.
//
// %counter_<name>% renders the current value of the named counter (0 when it
// was never set). Counters are changed from the console:
//
//	counter add <name> [n]
//	counter set <name> <n>
//	counter reset <name>
//	counter list
package counter

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/agilira/go-errors"
	_ "modernc.org/sqlite"

	textreplacer "github.com/agilira/go-textreplacer"
)

// Identifier is the placeholder prefix of the plugin.
const Identifier = "counter"

// DatabaseFile is the name of the database inside the plugin data directory.
const DatabaseFile = "counters.db"

// Error codes
const (
	ErrCodeStorage = "COUNTER_1701"
	ErrCodeUsage   = "COUNTER_1702"
)

// Plugin answers counter placeholders and owns the counter command.
type Plugin struct {
	textreplacer.BasePlugin

	out io.Writer

	mu sync.RWMutex
	db *sql.DB
}

// New is the module factory.
func New(logger textreplacer.Logger) (textreplacer.Plugin, error) {
	return NewWithOutput(logger, os.Stdout), nil
}

// NewWithOutput creates the plugin printing command results to out.
func NewWithOutput(logger textreplacer.Logger, out io.Writer) *Plugin {
	if out == nil {
		out = io.Discard
	}
	return &Plugin{BasePlugin: textreplacer.NewBasePlugin(logger), out: out}
}

func (p *Plugin) Name() string                  { return "Counter" }
func (p *Plugin) Author() string                { return "AGILira" }
func (p *Plugin) Version() string               { return "1.0.0" }
func (p *Plugin) Identifier() string            { return Identifier }
func (p *Plugin) RefreshIntervalSeconds() int64 { return 0 }

// Enable opens the counter database in the data directory.
func (p *Plugin) Enable(dataDirectory string) error {
	p.SetDataDirectory(dataDirectory)

	db, err := sql.Open("sqlite", filepath.Join(dataDirectory, DatabaseFile))
	if err != nil {
		return storageError("open database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return storageError("create table", err)
	}

	p.mu.Lock()
	p.db = db
	p.mu.Unlock()
	return nil
}

// Disable closes the database.
func (p *Plugin) Disable() error {
	p.mu.Lock()
	db := p.db
	p.db = nil
	p.mu.Unlock()

	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return storageError("close database", err)
	}
	return nil
}

// OnRequest returns the counter named by argument.
func (p *Plugin) OnRequest(ctx context.Context, argument string) (string, bool) {
	value, err := p.Get(ctx, argument)
	if err != nil {
		p.Logger().Warn("Failed to read counter", "counter", argument, "error", err)
		return "", false
	}
	return strconv.FormatInt(value, 10), true
}

// Get returns the value of a counter, 0 when it does not exist.
func (p *Plugin) Get(ctx context.Context, name string) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return 0, storageError("read counter", fmt.Errorf("plugin is not enabled"))
	}

	var value int64
	err := p.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storageError("read counter", err)
	}
	return value, nil
}

// Add increments a counter by delta and returns the new value.
func (p *Plugin) Add(ctx context.Context, name string, delta int64) (int64, error) {
	return p.write(ctx, name, `INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`, delta)
}

// Set stores an absolute value.
func (p *Plugin) Set(ctx context.Context, name string, value int64) (int64, error) {
	return p.write(ctx, name, `INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, value)
}

func (p *Plugin) write(ctx context.Context, name, query string, value int64) (int64, error) {
	p.mu.RLock()
	db := p.db
	p.mu.RUnlock()
	if db == nil {
		return 0, storageError("write counter", fmt.Errorf("plugin is not enabled"))
	}
	if name == "" {
		return 0, usageError("counter name is empty")
	}

	if _, err := db.ExecContext(ctx, query, name, value); err != nil {
		return 0, storageError("write counter", err)
	}
	return p.Get(ctx, name)
}

// List returns every counter.
func (p *Plugin) List(ctx context.Context) (map[string]int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, storageError("list counters", fmt.Errorf("plugin is not enabled"))
	}

	rows, err := p.db.QueryContext(ctx, `SELECT name, value FROM counters ORDER BY name`)
	if err != nil {
		return nil, storageError("list counters", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, storageError("list counters", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

// Commands contributes the counter console command.
func (p *Plugin) Commands() map[string]textreplacer.Command {
	return map[string]textreplacer.Command{
		"counter": textreplacer.CommandFunc(p.execute),
	}
}

const usage = "usage: counter add <name> [n] | set <name> <n> | reset <name> | list"

func (p *Plugin) execute(args []string) {
	ctx := context.Background()
	if err := p.run(ctx, args); err != nil {
		if isUsageError(err) {
			fmt.Fprintln(p.out, usage)
			return
		}
		p.Logger().Error("Counter command failed", "args", args, "error", err)
		fmt.Fprintln(p.out, "counter:", err)
	}
}

func (p *Plugin) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing subcommand")
	}

	switch args[0] {
	case "list":
		counters, err := p.List(ctx)
		if err != nil {
			return err
		}
		if len(counters) == 0 {
			fmt.Fprintln(p.out, "No counters.")
		}
		for _, name := range sortedNames(counters) {
			fmt.Fprintf(p.out, "%s = %d\n", name, counters[name])
		}
		return nil

	case "add", "set", "reset":
		if len(args) < 2 {
			return usageError("missing counter name")
		}
		name := args[1]

		var (
			value int64
			err   error
		)
		switch args[0] {
		case "add":
			delta := int64(1)
			if len(args) > 2 {
				if delta, err = strconv.ParseInt(args[2], 10, 64); err != nil {
					return usageError("invalid number")
				}
			}
			value, err = p.Add(ctx, name, delta)
		case "set":
			if len(args) < 3 {
				return usageError("missing value")
			}
			n, perr := strconv.ParseInt(args[2], 10, 64)
			if perr != nil {
				return usageError("invalid number")
			}
			value, err = p.Set(ctx, name, n)
		case "reset":
			value, err = p.Set(ctx, name, 0)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(p.out, "%s = %d\n", name, value)
		return nil

	default:
		return usageError("unknown subcommand " + args[0])
	}
}

func storageError(op string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeStorage, "Counter storage failed: "+op).
		WithUserMessage("Counters could not be read or written").
		WithSeverity("error")
}

func usageError(msg string) *errors.Error {
	return errors.New(ErrCodeUsage, msg).WithSeverity("info")
}

func isUsageError(err error) bool {
	var coded *errors.Error
	return stderrors.As(err, &coded) && coded.Code == ErrCodeUsage
}

func sortedNames(m map[string]int64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
