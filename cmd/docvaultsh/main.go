// Command docvaultsh is an interactive shell for docvault: a
// peterh/liner-driven prompt that runs SQL-subset search expressions
// against a collection and exposes a handful of dot-commands for
// browsing collections, schemas, and index tables, grounded on the
// docdb shell's REPL shape but talking HTTP instead of a unix socket.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/docvault-db/docvault/pkg/client"
)

// Shell holds the REPL's live state: the HTTP client and the
// collection the bare-SQL prompt currently targets.
type Shell struct {
	client            *client.Client
	liner             *liner.State
	currentCollection string
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".docvaultsh_history")
}

func main() {
	baseURL := flag.String("base-url", envOr("DOCVAULT_URL", "http://localhost:8080"), "docvaultd base URL")
	flag.Parse()

	sh := &Shell{client: client.New(*baseURL)}
	if err := sh.run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Shell) run() error {
	s.liner = liner.NewLiner()
	defer s.liner.Close()
	s.liner.SetCtrlCAborts(true)
	s.liner.SetCompleter(s.completer)

	if f, err := os.Open(historyFile()); err == nil {
		s.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("docvault shell")
	fmt.Println("Type .help for commands, or enter a SQL-subset expression to search the current collection.")
	fmt.Println()

	for {
		line, err := s.liner.Prompt(s.promptText())
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nbye")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.liner.AppendHistory(line)

		if line == ".exit" || line == ".quit" {
			break
		}
		s.dispatch(line)
	}

	s.saveHistory()
	return nil
}

func (s *Shell) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}
	if f, err := os.Create(path); err == nil {
		s.liner.WriteHistory(f)
		f.Close()
	}
}

func (s *Shell) promptText() string {
	if s.currentCollection == "" {
		return "docvault> "
	}
	return fmt.Sprintf("docvault:%s> ", s.currentCollection)
}

func (s *Shell) completer(line string) []string {
	commands := []string{".help", ".exit", ".quit", ".collections", ".use", ".schemas", ".tables", ".pwd"}
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Shell) dispatch(line string) {
	ctx := context.Background()
	fields := strings.Fields(line)
	switch fields[0] {
	case ".help":
		s.printHelp()
	case ".pwd":
		fmt.Println(s.currentCollection)
	case ".collections":
		cols, err := s.client.ListCollections(ctx)
		if err != nil {
			printErr(err)
			return
		}
		printJSON(cols)
	case ".use":
		if len(fields) != 2 {
			fmt.Println("usage: .use <collection-id>")
			return
		}
		s.currentCollection = fields[1]
	case ".schemas":
		schemas, err := s.client.ListSchemas(ctx)
		if err != nil {
			printErr(err)
			return
		}
		printJSON(schemas)
	case ".tables":
		tables, err := s.client.ListTables(ctx)
		if err != nil {
			printErr(err)
			return
		}
		printJSON(tables)
	default:
		s.runSQL(ctx, line)
	}
}

func (s *Shell) runSQL(ctx context.Context, sql string) {
	if s.currentCollection == "" {
		fmt.Println("no collection selected; run .use <collection-id> first")
		return
	}
	result, err := s.client.Search(ctx, s.currentCollection, client.SearchRequest{SQLExpression: sql})
	if err != nil {
		printErr(err)
		return
	}
	printJSON(result)
}

func (s *Shell) printHelp() {
	fmt.Println(`Commands:
  .help                 show this message
  .collections          list collections
  .use <collection-id>  select the collection bare SQL runs against
  .schemas              list inferred schemas
  .tables               list per-field index tables
  .exit, .quit          leave the shell

Anything else is run as a SQL-subset search expression against the
currently selected collection, e.g.:
  SELECT * FROM documents WHERE status = 'active' AND age > 21 ORDER BY name ASC LIMIT 20`)
}

func printErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
