package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mythologiq/gg-core/wire"
)

func newHealthCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the gg-core daemon is reachable and healthy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return probeHealth(cmd, flags, false)
		},
	}
}

func newLiveCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "live",
		Aliases: []string{"liveness"},
		Short:   "Liveness probe: succeeds as soon as the process accepts connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return probeHealth(cmd, flags, false)
		},
	}
	return cmd
}

func newReadyCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ready",
		Aliases: []string{"readiness"},
		Short:   "Readiness probe: succeeds once the runtime can accept inference work",
		RunE: func(cmd *cobra.Command, args []string) error {
			return probeHealth(cmd, flags, true)
		},
	}
	return cmd
}

// probeHealth dials the socket, completes a handshake, and sends a single
// HealthCheck frame, printing the result and returning a non-nil error
// (which rootCLI.run maps to exit code 1) when the server reports
// unhealthy or is unreachable at all.
func probeHealth(cmd *cobra.Command, flags *rootFlags, readiness bool) error {
	token := os.Getenv("CORE_AUTH_TOKEN")
	c, err := dial(flags.socketPath, token)
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "unhealthy:", err)
		return err
	}
	defer c.Close()

	env, err := c.roundTrip(wire.TypeHealthCheck, wire.HealthCheck{Readiness: readiness})
	if err != nil {
		return err
	}
	var resp wire.HealthResponse
	if err := wire.DecodePayload(env, &resp); err != nil {
		return err
	}
	if !resp.Healthy {
		fmt.Fprintln(cmd.OutOrStdout(), "unhealthy:", resp.Detail)
		return fmt.Errorf("unhealthy: %s", resp.Detail)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "healthy")
	return nil
}
