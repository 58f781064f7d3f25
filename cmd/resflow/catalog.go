package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rom8726/resflow"
	"github.com/rom8726/resflow/internal/config"
)

func newCatalogCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect workflow type catalogs",
	}

	// An explicit file argument wins over catalog.path from config.
	load := func(args []string) (*resflow.Catalog, error) {
		path := ""
		if len(args) > 0 {
			path = args[0]
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return nil, err
			}
			path = cfg.Catalog.Path
		}

		return resflow.LoadCatalogFile(path)
	}

	catalogCmd.AddCommand(
		&cobra.Command{
			Use:   "validate [file]",
			Short: "Load a catalog and report its workflow types",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				catalog, err := load(args)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, workflowType := range catalog.Types() {
					def, _ := catalog.Definition(workflowType)
					_, _ = fmt.Fprintf(out, "%s: %d steps\n", workflowType, len(def.Steps))
				}
				_, _ = fmt.Fprintln(out, "catalog is valid")

				return nil
			},
		},
		&cobra.Command{
			Use:   "show [file]",
			Short: "Render every workflow type of a catalog",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				catalog, err := load(args)
				if err != nil {
					return err
				}

				visualizer := resflow.NewVisualizer()
				for _, workflowType := range catalog.Types() {
					def, _ := catalog.Definition(workflowType)
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), visualizer.RenderDefinition(def))
				}

				return nil
			},
		},
	)

	return catalogCmd
}
