package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rom8726/resflow/internal/config"
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "resflow",
		Short:         "Resource workflow engine",
		Long:          `resflow runs multi-step workflows attached to resources and serves them over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config.yaml or ./config/config.yaml)")

	loadConfig := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	rootCmd.AddCommand(
		newServeCmd(loadConfig),
		newMigrateCmd(loadConfig),
		newSchemaCmd(),
		newCatalogCmd(loadConfig),
	)

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
