package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the similarity index",
	Long:  `Save, rebuild, or clear the similarity index and document table.`,
}

var indexSaveCmd = &cobra.Command{
	Use:   "save [name]",
	Short: "Queue a snapshot of the store",
	Long: `Queues an asynchronous snapshot of the index and document table
under the given name (default "index"). The write happens in the
background; failures are reported in the log only.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndexSave,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-embed every stored document",
	Long: `Rebuilds the similarity index by re-embedding every stored
document. Useful after switching embedding models.`,
	Args: cobra.NoArgs,
	RunE: runIndexRebuild,
}

var clearYes bool

var indexClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored document",
	Args:  cobra.NoArgs,
	RunE:  runIndexClear,
}

func init() {
	indexClearCmd.Flags().BoolVar(&clearYes, "yes", false, "skip the confirmation prompt")

	indexCmd.AddCommand(indexSaveCmd)
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexClearCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexSave(cmd *cobra.Command, args []string) error {
	if storeService == nil {
		return errors.New("store service not configured")
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	storeService.SaveIndex(name)
	cmd.Println("Snapshot queued.")
	return nil
}

func runIndexRebuild(cmd *cobra.Command, _ []string) error {
	if storeService == nil {
		return errors.New("store service not configured")
	}

	cmd.Println("Rebuilding index...")
	if err := storeService.RebuildIndex(context.Background()); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	cmd.Println("Index rebuilt.")
	return nil
}

func runIndexClear(cmd *cobra.Command, _ []string) error {
	if storeService == nil {
		return errors.New("store service not configured")
	}

	if !clearYes {
		cmd.Println("This removes every stored document. Re-run with --yes to confirm.")
		return nil
	}

	total, err := storeService.GetAllDocuments(context.Background())
	if err != nil {
		return fmt.Errorf("failed to inspect store: %w", err)
	}

	removed, err := storeService.RemoveDocumentsByID(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}

	storeService.SaveIndex("")
	cmd.Printf("Removed %d of %d documents.\n", len(removed), len(total))
	return nil
}
