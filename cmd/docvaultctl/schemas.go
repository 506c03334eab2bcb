package main

import (
	"context"

	"github.com/spf13/cobra"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Inspect inferred document schemas",
}

var schemasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		schemas, err := newClient().ListSchemas(context.Background())
		if err != nil {
			return err
		}
		return printJSON(schemas)
	},
}

var schemasGetCmd = &cobra.Command{
	Use:   "get <schema-id>",
	Short: "Get a schema's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := newClient().GetSchema(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(schema)
	},
}

var schemasElementsCmd = &cobra.Command{
	Use:   "elements <schema-id>",
	Short: "List a schema's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		elements, err := newClient().GetSchemaElements(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(elements)
	},
}

func init() {
	schemasCmd.AddCommand(schemasListCmd, schemasGetCmd, schemasElementsCmd)
}
