package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vectra/internal/core/domain"
)

var (
	searchTags []string
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored documents",
	Long: `Searches documents by semantic similarity to the query.
The score threshold widens automatically when a strict initial cut
returns no results. Tags restrict results to documents whose stored
tag list matches one of the expanded orderings.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringSliceVarP(&searchTags, "tag", "t", nil, "filter tag (repeatable, order matters)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retriever == nil {
		return errors.New("retrieval service not configured")
	}

	docs, err := retriever.Retrieve(context.Background(), args[0], domain.Tags(searchTags))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  [%d] %s\n", i+1, docs[i].Metadata.IDs)
		if len(docs[i].Metadata.Tags) > 0 {
			cmd.Printf("      Tags: %v\n", []string(docs[i].Metadata.Tags))
		}
		cmd.Printf("      %s\n", docs[i].PageContent)
		cmd.Println()
	}
	return nil
}
