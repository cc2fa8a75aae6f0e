package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mythologiq/gg-core/wire"
)

func newModelsCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the models known to a running gg-core daemon",
	}
	cmd.AddCommand(newModelsListCommand(flags))
	return cmd
}

func newModelsListCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and their load state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsList(cmd, flags)
		},
	}
}

func runModelsList(cmd *cobra.Command, flags *rootFlags) error {
	token := os.Getenv("CORE_AUTH_TOKEN")
	c, err := dial(flags.socketPath, token)
	if err != nil {
		return err
	}
	defer c.Close()

	env, err := c.roundTrip(wire.TypeModelsRequest, wire.ModelsRequest{})
	if err != nil {
		return err
	}
	var resp wire.ModelsResponse
	if err := wire.DecodePayload(env, &resp); err != nil {
		return err
	}

	if len(resp.Models) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no models registered")
		return nil
	}
	for _, m := range resp.Models {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\ttier=%d\tloaded=%v\n", m.ModelID, m.Tier, m.Loaded)
	}
	return nil
}
