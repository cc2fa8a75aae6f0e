package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mythologiq/gg-core/audit"
	ggconfig "github.com/mythologiq/gg-core/config"
	"github.com/mythologiq/gg-core/logger"
	"github.com/mythologiq/gg-core/metrics"
	"github.com/mythologiq/gg-core/runtime"
)

// serveFlags layers the serve-only flags onto the shared rootFlags.
type serveFlags struct {
	configFile string
}

func newServeCommand(flags *rootFlags) *cobra.Command {
	sf := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gg-core inference runtime (default action)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeWithConfig(cmd, flags, sf)
		},
	}
	cmd.Flags().StringVar(&sf.configFile, "config", "", "path to an optional config file")
	return cmd
}

// runServe is the entry point used both by `gg-core serve` and by running
// the binary with no subcommand at all.
func runServe(cmd *cobra.Command, flags *rootFlags) error {
	return runServeWithConfig(cmd, flags, &serveFlags{})
}

func runServeWithConfig(cmd *cobra.Command, flags *rootFlags, sf *serveFlags) error {
	loader := ggconfig.New()
	if sf.configFile != "" {
		loader.SetConfigFile(sf.configFile)
	}
	settings, err := loader.Load()
	if err != nil {
		return err
	}
	if flags.socketPath != defaultSocketPath() {
		settings.SocketPath = flags.socketPath
	}

	lvl := logger.GetLevelString(settings.LogLevel)
	if flags.verbose {
		lvl = logger.DebugLevel
	}
	log := logger.New(lvl)

	rec := audit.New(10000, log)
	mr := metrics.New()

	rc := settings.ToRuntimeConfig()
	rt, err := runtime.New(rc, log, rec, mr)
	if err != nil {
		return err
	}

	code := rt.Serve(context.Background())
	if code != 0 {
		return exitCodeError{code: code, msg: fmt.Sprintf("gg-core exited with code %d", code)}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "gg-core shut down cleanly")
	return nil
}

// exitCodeError carries an explicit process exit code through cobra's
// error-returning RunE chain, for outcomes (like Runtime.Serve's transport
// failure, exit code 3) that liberr.Kind.ExitCode cannot express on its own.
type exitCodeError struct {
	code int
	msg  string
}

func (e exitCodeError) Error() string { return e.msg }

