package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nicklasfrahm/pepper/pkg/ops"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate the cached token",
	Long: `Invalidate the cached token on the server and remove
the token cache.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ops.Logout(cmd.Context(), commonOptions()...)
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
