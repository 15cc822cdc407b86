package cli

import (
	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Execute a single simulate-and-alert cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TickOnce(cmd.Context())
	},
}
