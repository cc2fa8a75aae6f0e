package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mythologiq/gg-core/crypt"
)

// newVerifyCommand runs the same FIPS 140-3 power-on self-tests Runtime.Serve
// runs before accepting connections, as a standalone preflight check an
// operator or install script can run before committing to `serve`.
func newVerifyCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run cryptographic self-tests without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := crypt.SelfTest(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "self-tests passed")
			return nil
		},
	}
}
