package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	ggconfig "github.com/mythologiq/gg-core/config"
)

func newConfigCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate gg-core configuration",
	}
	cmd.AddCommand(
		newConfigShowCommand(flags),
		newConfigDefaultsCommand(),
		newConfigValidateCommand(flags),
	)
	return cmd
}

func newConfigShowCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration (auth token redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ggconfig.New().Load()
			if err != nil {
				return err
			}
			return printJSON(cmd, settings.Redacted())
		},
	}
}

func newConfigDefaultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the zero-config default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, ggconfig.Defaults().Redacted())
		},
	}
}

func newConfigValidateCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ggconfig.New().Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration valid for", settings.SocketPath)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
