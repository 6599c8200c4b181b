package cmd

import (
	"fmt"
	"strings"

	"media-harvest/domain/ledger"
	"media-harvest/infrastructure/ledgerstore"

	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or edit the resume ledger of an output directory",
	Long: `Every batch output directory holds processing_status.json, which records
the completed and failed item IDs. Completed items are skipped on the next run;
failed items are retried.

Examples:
  media-harvest ledger show ./youtube_golang
  media-harvest ledger reset-failed ./youtube_golang`,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerResetFailedCmd)
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <dir>",
	Short: "Show completed and failed counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := ledgerstore.ForDirectory(args[0], newLogManager().Get("ledger"), ledgerstore.WithResetCorrupt(resetCorruptLedger))
		return RunLedgerShowWithDependencies(store, DefaultOutput)
	},
}

// RunLedgerShowWithDependencies prints a summary of the ledger (for testing)
func RunLedgerShowWithDependencies(store ledger.Store, out OutputWriter) error {
	status, err := store.Load()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Completed: %d\n", status.Completed.Len())
	fmt.Fprintf(out, "Failed:    %d\n", status.Failed.Len())
	if status.Skipped.Len() > 0 {
		fmt.Fprintf(out, "Skipped:   %d\n", status.Skipped.Len())
	}
	if !status.LastUpdate.IsZero() {
		fmt.Fprintf(out, "Updated:   %s\n", status.LastUpdate.Format("2006-01-02 15:04:05"))
	}
	if failed := status.Failed.Sorted(); len(failed) > 0 {
		fmt.Fprintf(out, "Failed IDs: %s\n", strings.Join(failed, ", "))
	}
	return nil
}

var ledgerResetFailedCmd = &cobra.Command{
	Use:   "reset-failed <dir>",
	Short: "Forget failed items so they are retried from a clean slate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := ledgerstore.ForDirectory(args[0], newLogManager().Get("ledger"), ledgerstore.WithResetCorrupt(resetCorruptLedger))
		return RunLedgerResetFailedWithDependencies(store, DefaultOutput)
	},
}

// RunLedgerResetFailedWithDependencies clears the failed set and saves (for testing)
func RunLedgerResetFailedWithDependencies(store ledger.Store, out OutputWriter) error {
	status, err := store.Load()
	if err != nil {
		return err
	}

	n := status.ResetFailed()
	if n == 0 {
		fmt.Fprintln(out, "No failed items to reset.")
		return nil
	}
	if err := store.Save(status); err != nil {
		return err
	}
	fmt.Fprintf(out, "Reset %d failed item(s); they will be retried on the next run.\n", n)
	return nil
}
