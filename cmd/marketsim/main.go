// Command marketsim runs the freight-forwarder marketplace simulation, either once
// or as a stored parameter sweep.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/freight-market/internal/config"
	"github.com/talgya/freight-market/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}

// execute runs the command line and closes the log file on every path, including
// failures, before returning.
func execute(ctx context.Context, args []string, out io.Writer) error {
	f := &rootFlags{}
	root := newRootCmd(f)
	root.SetArgs(args)
	root.SetOut(out)

	err := root.ExecuteContext(ctx)
	if err != nil {
		slog.Error("marketsim failed", "error", err)
	}
	if cerr := f.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

type rootFlags struct {
	configPath string
	logLevel   string
	logFile    string
	closer     io.Closer
}

func newRootCmd(f *rootFlags) *cobra.Command {
	root := &cobra.Command{
		Use:           "marketsim",
		Short:         "Freight-forwarder marketplace simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "sweep configuration file (YAML)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&f.logFile, "log-file", "", "also write JSON logs to this rotating file")

	root.AddCommand(newRunCmd(f), newSweepCmd(f))
	return root
}

// setup loads configuration and installs the default logger. Flags win over the
// file and the environment.
func (f *rootFlags) setup() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFile != "" {
		cfg.Logging.File = f.logFile
	}

	logger, closer, err := logging.New(logging.Options{Level: cfg.Logging.Level, File: cfg.Logging.File, Out: os.Stderr})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	f.closer = closer
	return cfg, nil
}

func (f *rootFlags) close() error {
	if f.closer == nil {
		return nil
	}
	c := f.closer
	f.closer = nil
	return c.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
