// root.go: cobra commands of the textreplacer binary
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	textreplacer "github.com/agilira/go-textreplacer"
	"github.com/agilira/go-textreplacer/plugins/clock"
	"github.com/agilira/go-textreplacer/plugins/counter"
)

// Exit codes
const (
	exitOK          = 0
	exitConfigError = 1
	exitControlLost = 2
)

var version = "dev"

type options struct {
	configPath string
	logLevel   string
	logFormat  string
	dryRun     bool
	force      bool
}

// exitError carries the process exit code out of a cobra RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, "Error:", err)

	var exit *exitError
	if stderrors.As(err, &exit) {
		return exit.code
	}
	return exitConfigError
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "textreplacer",
		Short: "Rewrites OBS text sources by resolving %plugin_argument% placeholders.",
		Long: `textreplacer connects to OBS Studio through obs-websocket and periodically
rewrites the configured text sources. Placeholders such as %clock_time% are
answered by plugins: compiled-in modules and Lua scripts dropped into the
plugin directory.

Console commands are read from standard input; type "help" to list them.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, opts, stdin, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(stdin)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", textreplacer.DefaultConfigFile, "Configuration file (YAML or JSON), created with defaults when missing")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", `Override the configured log format ("console" or "json")`)
	root.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print source updates to stdout instead of sending them to OBS")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !opts.force {
				return &exitError{code: exitConfigError, err: fmt.Errorf("%s already exists, use --force to overwrite", opts.configPath)}
			}
			if err := textreplacer.WriteConfig(opts.configPath, textreplacer.DefaultConfig()); err != nil {
				return &exitError{code: exitConfigError, err: err}
			}
			fmt.Fprintln(stdout, "Wrote", opts.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing file")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := textreplacer.LoadConfig(opts.configPath)
			if err != nil {
				return &exitError{code: exitConfigError, err: err}
			}
			fmt.Fprintf(stdout, "%s is valid: %d sources, modules %v\n",
				opts.configPath, len(config.Sources), config.Plugins.Enabled)
			return nil
		},
	}

	root.AddCommand(initCmd, checkCmd)
	return root
}

// newLoader registers the compiled-in plugin modules.
func newLoader(config textreplacer.Config, logger textreplacer.Logger) (*textreplacer.Loader, error) {
	loader := textreplacer.NewLoader(textreplacer.LoaderConfig{
		Modules:          config.Plugins.Enabled,
		DisableArtifacts: config.Plugins.DisableArtifacts,
		LuaCallTimeout:   config.Plugins.RequestTimeout.Duration(),
		Logger:           logger,
	})
	for name, factory := range map[string]textreplacer.Factory{
		clock.Identifier:   clock.New,
		counter.Identifier: counter.New,
	} {
		if err := loader.RegisterFactory(name, factory); err != nil {
			return nil, err
		}
	}
	return loader, nil
}

// logSettings applies the command line overrides on top of the file's
// logging section. The config itself is left as loaded so the watcher
// compares reloads against the file contents.
func logSettings(config textreplacer.Config, opts *options) textreplacer.LoggingConfig {
	logging := config.Logging
	if opts.logLevel != "" {
		logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		logging.Format = opts.logFormat
	}
	return logging
}

func run(ctx context.Context, opts *options, stdin io.Reader, stdout, stderr io.Writer) error {
	config, created, err := textreplacer.LoadOrCreateConfig(opts.configPath)
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}
	logging := logSettings(config, opts)
	logger := textreplacer.NewConsoleLogger(stderr, logging.Level, logging.Format == "json")
	if created {
		logger.Info("Created default configuration", "path", opts.configPath)
	}

	loader, err := newLoader(config, logger)
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}

	var target textreplacer.RenderTarget
	if opts.dryRun {
		target = textreplacer.NewWriterTarget(stdout)
	} else {
		client, err := textreplacer.DialOBS(ctx, textreplacer.OBSConfig{
			Address:           config.OBS.Address,
			Password:          config.OBS.Password,
			PasswordProtected: config.OBS.PasswordProtected,
			Logger:            logger,
		})
		if err != nil {
			return &exitError{code: exitControlLost, err: err}
		}
		target = client
	}

	host, err := textreplacer.NewHost(textreplacer.HostConfig{
		Config:     config,
		ConfigPath: opts.configPath,
		Target:     target,
		Loader:     loader,
		Input:      stdin,
		Output:     stdout,
		Logger:     logger,
	})
	if err != nil {
		_ = target.Close()
		return &exitError{code: exitConfigError, err: err}
	}

	if err := host.Run(ctx); err != nil {
		return &exitError{code: exitControlLost, err: err}
	}
	return nil
}
