package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <resource_id>...",
	Short: "Replace the knowledge base's sources and start indexing",
	Long: `Replace the knowledge base's sources with the given resource ids and
trigger a sync. Anything not listed is dropped from the knowledge base's
source list, so pass the full selection.`,
	Example: `  kbpicker sync 1AbC 1DeF`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	client, err := newPickerClient()
	if err != nil {
		return err
	}

	if err := client.Sync(cmd.Context(), args); err != nil {
		return err
	}

	// Statuses change once indexing starts
	if err := client.ClearStatus(cmd.Context()); err != nil {
		PrintWarning(fmt.Sprintf("Could not clear cached status: %v", err))
	}

	if PrintStructured(map[string]any{"ok": true, "connectionSourceIds": args}) {
		return nil
	}

	fmt.Fprintln(stdout)
	PrintSuccessf("Sync triggered for %d resource(s)", len(args))
	PrintHint("Indexing runs in the background; check progress with 'kbpicker status <path>'")
	fmt.Fprintln(stdout)
	return nil
}
