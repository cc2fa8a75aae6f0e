package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	liberr "github.com/mythologiq/gg-core/errors"
)

// version is the CLI's reported version string; set at build time via
// -ldflags "-X main.version=...", defaulting to "dev" otherwise.
var version = "dev"

// rootFlags holds the global persistent flags shared by every subcommand.
type rootFlags struct {
	socketPath string
	verbose    bool
	showVer    bool
}

// newRootCommand builds the full gg-core command tree: serve (the default
// action when no subcommand is given), and the client-facing subcommands
// that dial an already-running server over the same socket.
func newRootCommand() *rootCLI {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "gg-core",
		Short:         "Sandboxed, locally-hosted inference runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.showVer {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}
			return runServe(cmd, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.socketPath, "socket", defaultSocketPath(), "path to the gg-core Unix domain socket")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug-level logging")
	root.Flags().BoolVarP(&flags.showVer, "version", "V", false, "print the version and exit")

	root.AddCommand(
		newServeCommand(flags),
		newHealthCommand(flags),
		newLiveCommand(flags),
		newReadyCommand(flags),
		newStatusCommand(flags),
		newInferCommand(flags),
		newModelsCommand(flags),
		newConfigCommand(flags),
		newVerifyCommand(flags),
		newVersionCommand(),
	)

	return &rootCLI{cmd: root}
}

// rootCLI wraps the assembled cobra.Command with the exit-code translation
// convention this process uses: 0 success, 1 failure, 2 configuration
// error, 3 connection error.
type rootCLI struct {
	cmd *cobra.Command
}

func (r *rootCLI) run(args []string) int {
	r.cmd.SetArgs(args)
	if err := r.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ec exitCodeError
		if errors.As(err, &ec) {
			return ec.code
		}
		if e := liberr.Get(err); e != nil {
			return e.Kind().ExitCode()
		}
		return 1
	}
	return 0
}

// defaultSocketPath mirrors GG_CORE_SOCKET_PATH when set, else the
// platform-default path documented in spec.md §6.
func defaultSocketPath() string {
	if p := os.Getenv("GG_CORE_SOCKET_PATH"); p != "" {
		return p
	}
	return "/var/run/gg-core/gg-core.sock"
}
