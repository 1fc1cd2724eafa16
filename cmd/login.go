package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nicklasfrahm/pepper/pkg/ops"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtain a token and cache it",
	Long: `Log in to salt-api and store the token in the token
cache. Subsequent commands with --make-token use the
cached token until it expires, so that credentials do
not need to be provided again.

A valid cached token is reused.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := ops.Login(cmd.Context(), commonOptions()...)
		return err
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
