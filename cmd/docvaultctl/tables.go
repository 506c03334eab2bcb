package main

import (
	"context"

	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Inspect per-field index tables",
}

var tablesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List index tables and the field path each one backs",
	RunE: func(cmd *cobra.Command, args []string) error {
		tables, err := newClient().ListTables(context.Background())
		if err != nil {
			return err
		}
		return printJSON(tables)
	},
}

var (
	entriesSkip  int
	entriesLimit int
)

var tablesEntriesCmd = &cobra.Command{
	Use:   "entries <table-name>",
	Short: "List the rows of an index table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := newClient().TableEntries(context.Background(), args[0], entriesSkip, entriesLimit)
		if err != nil {
			return err
		}
		return printJSON(entries)
	},
}

func init() {
	tablesEntriesCmd.Flags().IntVar(&entriesSkip, "skip", 0, "number of entries to skip")
	tablesEntriesCmd.Flags().IntVar(&entriesLimit, "limit", 100, "maximum entries to return")
	tablesCmd.AddCommand(tablesListCmd, tablesEntriesCmd)
}
