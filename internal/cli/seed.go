package cli

import (
	"github.com/spf13/cobra"
)

var seedCatalogPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the product catalog CSV into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Seed(cmd.Context(), seedCatalogPath)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedCatalogPath, "catalog", "", "Path to the catalog CSV file")
}
