package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vectra/internal/core/domain"
)

var (
	addTags      []string
	addEditor    string
	addSplitter  string
	addValidTime int64
	addRelated   bool
)

var addCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Add a document to the store",
	Long: `Embeds the given text and stores it as a new document.
Documents whose embedding is too close to already stored content are
rejected as near-duplicates.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringSliceVarP(&addTags, "tag", "t", nil, "ordered tag (repeatable, at least one required)")
	addCmd.Flags().StringVarP(&addEditor, "editor", "e", "", "name of the person making the change (required)")
	addCmd.Flags().StringVar(&addSplitter, "splitter", "", "splitter name recorded in metadata")
	addCmd.Flags().Int64Var(&addValidTime, "valid", 0, "validity duration in seconds (0 = indefinite)")
	addCmd.Flags().BoolVar(&addRelated, "related", false, "mark the document as related content")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	meta := domain.MetadataConfig{
		Splitter:  addSplitter,
		ValidTime: addValidTime,
		Related:   addRelated,
		Tags:      addTags,
	}

	storageID, err := documentService.AddDocument(context.Background(), args[0], meta, addEditor)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			cmd.Println("Document rejected: near-duplicate of stored content.")
			return nil
		}
		return fmt.Errorf("failed to add document: %w", err)
	}

	cmd.Printf("Document added: %s\n", storageID)
	return nil
}
