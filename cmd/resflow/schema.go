package main

import (
	"github.com/spf13/cobra"

	"github.com/rom8726/resflow"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of workflow catalog documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := resflow.CatalogSchema()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := out.Write(schema); err != nil {
				return err
			}
			_, err = out.Write([]byte("\n"))

			return err
		},
	}
}
