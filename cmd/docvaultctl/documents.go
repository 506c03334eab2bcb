package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/docvault-db/docvault/pkg/client"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage documents within a collection",
}

var (
	docsListSkip  int
	docsListLimit int
)

var documentsListCmd = &cobra.Command{
	Use:   "list <collection-id>",
	Short: "List documents in a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := newClient().ListDocuments(context.Background(), args[0], docsListSkip, docsListLimit)
		if err != nil {
			return err
		}
		return printJSON(docs)
	},
}

var (
	ingestName string
	ingestFile string
)

var documentsIngestCmd = &cobra.Command{
	Use:   "ingest <collection-id>",
	Short: "Ingest a document from a file or stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var body []byte
		var err error
		if ingestFile != "" {
			body, err = os.ReadFile(ingestFile)
		} else {
			body, err = readAllStdin()
		}
		if err != nil {
			return fmt.Errorf("reading document body: %w", err)
		}
		if !json.Valid(body) {
			return fmt.Errorf("document body is not valid JSON")
		}
		result, err := newClient().Ingest(context.Background(), args[0], client.IngestRequest{
			Name: ingestName,
			Body: json.RawMessage(body),
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var documentsGetCmd = &cobra.Command{
	Use:   "get <collection-id> <document-id>",
	Short: "Get a document's metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := newClient().GetDocument(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

var documentsContentCmd = &cobra.Command{
	Use:   "content <collection-id> <document-id>",
	Short: "Print a document's raw JSON body",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := newClient().GetDocumentContent(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(body)
		return err
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <collection-id> <document-id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DeleteDocument(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

var (
	searchSQL            string
	searchMaxResults     int
	searchSkip           int
	searchOrdering       string
	searchIncludeContent bool
)

var documentsSearchCmd = &cobra.Command{
	Use:   "search <collection-id>",
	Short: "Run a SQL-subset search against a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newClient().Search(context.Background(), args[0], client.SearchRequest{
			SQLExpression:  searchSQL,
			MaxResults:     searchMaxResults,
			Skip:           searchSkip,
			Ordering:       searchOrdering,
			IncludeContent: searchIncludeContent,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func readAllStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

func init() {
	documentsListCmd.Flags().IntVar(&docsListSkip, "skip", 0, "number of documents to skip")
	documentsListCmd.Flags().IntVar(&docsListLimit, "limit", 100, "maximum documents to return")

	documentsIngestCmd.Flags().StringVar(&ingestName, "name", "", "document name")
	documentsIngestCmd.Flags().StringVar(&ingestFile, "file", "", "path to a JSON file (defaults to stdin)")

	documentsSearchCmd.Flags().StringVar(&searchSQL, "sql", "", "SQL-subset expression")
	documentsSearchCmd.Flags().IntVar(&searchMaxResults, "max-results", 0, "maximum records to return")
	documentsSearchCmd.Flags().IntVar(&searchSkip, "skip", 0, "number of matching records to skip")
	documentsSearchCmd.Flags().StringVar(&searchOrdering, "order", "", "ordering: CreatedAscending, CreatedDescending, ...")
	documentsSearchCmd.Flags().BoolVar(&searchIncludeContent, "include-content", false, "include document bodies in results")

	documentsCmd.AddCommand(documentsListCmd, documentsIngestCmd, documentsGetCmd, documentsContentCmd,
		documentsDeleteCmd, documentsSearchCmd)
}
