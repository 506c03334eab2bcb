package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docvault-db/docvault/pkg/client"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Manage collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		cols, err := newClient().ListCollections(context.Background())
		if err != nil {
			return err
		}
		return printJSON(cols)
	},
}

var (
	createName                  string
	createDescription           string
	createDocumentsDirectory    string
	createSchemaEnforcementMode string
	createIndexingMode          string
)

var collectionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := newClient().CreateCollection(context.Background(), client.CreateCollectionRequest{
			Name:                  createName,
			Description:           createDescription,
			DocumentsDirectory:    createDocumentsDirectory,
			SchemaEnforcementMode: createSchemaEnforcementMode,
			IndexingMode:          createIndexingMode,
		})
		if err != nil {
			return err
		}
		return printJSON(col)
	},
}

var collectionsGetCmd = &cobra.Command{
	Use:   "get <collection-id>",
	Short: "Get a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := newClient().GetCollection(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(col)
	},
}

var collectionsDeleteCmd = &cobra.Command{
	Use:   "delete <collection-id>",
	Short: "Delete a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DeleteCollection(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

var constraintsGetCmd = &cobra.Command{
	Use:   "get <collection-id>",
	Short: "Show a collection's field constraints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newClient().GetConstraints(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var constraintsCmd = &cobra.Command{
	Use:   "constraints",
	Short: "Inspect schema constraints",
}

var indexingGetCmd = &cobra.Command{
	Use:   "get <collection-id>",
	Short: "Show a collection's indexing mode and indexed fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newClient().GetIndexing(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var indexingFields []string
var indexingMode string
var indexingRebuild bool
var indexingDropUnused bool

var indexingSetCmd = &cobra.Command{
	Use:   "set <collection-id>",
	Short: "Set a collection's indexing mode and indexed fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newClient().SetIndexing(context.Background(), args[0], client.IndexingRequest{
			IndexingMode:      indexingMode,
			IndexedFields:     indexingFields,
			RebuildIndexes:    indexingRebuild,
			DropUnusedIndexes: indexingDropUnused,
		})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var indexingCmd = &cobra.Command{
	Use:   "indexing",
	Short: "Inspect and change indexing configuration",
}

var rebuildDropUnused bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild <collection-id>",
	Short: "Rebuild a collection's index tables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := newClient().Rebuild(context.Background(), args[0], rebuildDropUnused)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

func init() {
	collectionsCreateCmd.Flags().StringVar(&createName, "name", "", "collection name")
	collectionsCreateCmd.Flags().StringVar(&createDescription, "description", "", "collection description")
	collectionsCreateCmd.Flags().StringVar(&createDocumentsDirectory, "documents-dir", "", "override documents directory")
	collectionsCreateCmd.Flags().StringVar(&createSchemaEnforcementMode, "schema-enforcement", "", "none, strict, flexible, or partial")
	collectionsCreateCmd.Flags().StringVar(&createIndexingMode, "indexing-mode", "", "all, selective, or none")
	collectionsCreateCmd.MarkFlagRequired("name")

	constraintsCmd.AddCommand(constraintsGetCmd)

	indexingSetCmd.Flags().StringVar(&indexingMode, "mode", "", "all, selective, or none")
	indexingSetCmd.Flags().StringSliceVar(&indexingFields, "fields", nil, "fields to index")
	indexingSetCmd.Flags().BoolVar(&indexingRebuild, "rebuild", false, "rebuild affected index tables immediately")
	indexingSetCmd.Flags().BoolVar(&indexingDropUnused, "drop-unused", false, "drop index tables for fields no longer indexed")
	indexingCmd.AddCommand(indexingGetCmd, indexingSetCmd)

	rebuildCmd.Flags().BoolVar(&rebuildDropUnused, "drop-unused", false, "drop index tables for fields no longer indexed")

	collectionsCmd.AddCommand(collectionsListCmd, collectionsCreateCmd, collectionsGetCmd, collectionsDeleteCmd,
		constraintsCmd, indexingCmd, rebuildCmd)
}
