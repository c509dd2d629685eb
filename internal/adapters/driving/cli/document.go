package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vectra/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage stored documents",
	Long:  `List, update, delete, or inspect stored documents.`,
}

var (
	updateTags      []string
	updateEditor    string
	updateSplitter  string
	updateValidTime int64
	deleteEditor    string
)

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentUpdateCmd = &cobra.Command{
	Use:   "update [metadata-id] [content]",
	Short: "Replace a document's content",
	Long: `Deletes the document carrying the given metadata id and stores the
new content as a replacement document.`,
	Args: cobra.ExactArgs(2),
	RunE: runDocumentUpdate,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [metadata-id...]",
	Short: "Delete documents by metadata id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocumentDelete,
}

var documentHistoryCmd = &cobra.Command{
	Use:   "history [storage-id]",
	Short: "Show the change history of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentHistory,
}

func init() {
	documentUpdateCmd.Flags().StringSliceVarP(&updateTags, "tag", "t", nil, "ordered tag (repeatable, at least one required)")
	documentUpdateCmd.Flags().StringVarP(&updateEditor, "editor", "e", "", "name of the person making the change (required)")
	documentUpdateCmd.Flags().StringVar(&updateSplitter, "splitter", "", "splitter name recorded in metadata")
	documentUpdateCmd.Flags().Int64Var(&updateValidTime, "valid", 0, "validity duration in seconds (0 = indefinite)")
	documentDeleteCmd.Flags().StringVarP(&deleteEditor, "editor", "e", "", "name of the person making the change (required)")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentUpdateCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentHistoryCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if storeService == nil {
		return errors.New("store service not configured")
	}

	docs, err := storeService.GetAllDocuments(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents stored.")
		return nil
	}

	for id, doc := range docs {
		cmd.Printf("  %s\n", id)
		cmd.Printf("    Metadata ID: %s\n", doc.Metadata.IDs)
		if len(doc.Metadata.Tags) > 0 {
			cmd.Printf("    Tags: %v\n", []string(doc.Metadata.Tags))
		}
		cmd.Printf("    %s\n", doc.PageContent)
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentUpdate(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	meta := domain.MetadataConfig{
		Splitter:  updateSplitter,
		ValidTime: updateValidTime,
		Tags:      updateTags,
	}

	storageID, err := documentService.UpdateDocument(context.Background(), args[0], args[1], meta, updateEditor)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	cmd.Printf("Document updated: %s\n", storageID)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	removed, err := documentService.DeleteDocuments(context.Background(), args, deleteEditor)
	if err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	if len(removed) == 0 {
		cmd.Println("No documents matched.")
		return nil
	}
	cmd.Printf("Deleted %d documents.\n", len(removed))
	return nil
}

func runDocumentHistory(cmd *cobra.Command, args []string) error {
	if auditLog == nil {
		return errors.New("audit log not configured")
	}

	entries, err := auditLog.List(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if len(entries) == 0 {
		cmd.Println("No history recorded.")
		return nil
	}

	for _, e := range entries {
		ts := time.Unix(e.Timestamp, 0).Format("2006-01-02 15:04:05")
		cmd.Printf("  %s  %s  %s\n", ts, e.Editor, e.Description)
	}
	return nil
}
