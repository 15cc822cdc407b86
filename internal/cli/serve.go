package cli

import (
	"github.com/spf13/cobra"
)

var serveWithTicker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), serveWithTicker)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithTicker, "with-ticker", false, "Also run the simulate-and-alert loop")
}
