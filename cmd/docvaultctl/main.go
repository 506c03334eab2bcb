// Command docvaultctl is a cobra-based administrative CLI for a
// running docvaultd instance, talking to it the way bunbase's
// platform CLI talks to its own API: thin RunE wrappers around an
// HTTP client, one cobra.Command per resource.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/docvault-db/docvault/pkg/client"
)

var baseURL string

var rootCmd = &cobra.Command{
	Use:   "docvaultctl",
	Short: "Administrative CLI for docvault",
}

// normalizeFlags accepts snake_case spellings of every flag so
// --max_results and --max-results address the same flag.
func normalizeFlags(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func main() {
	rootCmd.SetGlobalNormalizationFunc(normalizeFlags)
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", envOr("DOCVAULT_URL", "http://localhost:8080"), "docvaultd base URL")
	rootCmd.AddCommand(collectionsCmd, documentsCmd, schemasCmd, tablesCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient() *client.Client {
	return client.New(baseURL)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(v interface{}) error {
	return prettyEncoder(os.Stdout).Encode(v)
}
