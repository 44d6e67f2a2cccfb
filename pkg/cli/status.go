package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var statusRefresh bool

type statusEntry struct {
	ResourceID string `json:"resourceId" yaml:"resourceId"`
	Status     string `json:"status" yaml:"status"`
}

var statusCmd = &cobra.Command{
	Use:   "status [folder_path]",
	Short: "Show knowledge-base status for a folder",
	Long:  `Show the knowledge-base status of every resource under a folder path.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the gateway can reach the backend",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	statusCmd.Flags().BoolVar(&statusRefresh, "refresh", false, "Ignore the cached status map")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newPickerClient()
	if err != nil {
		return err
	}

	folderPath := ""
	if len(args) == 1 {
		folderPath = strings.TrimPrefix(args[0], "/")
	}

	if statusRefresh {
		if err := client.InvalidateStatus(cmd.Context(), folderPath); err != nil {
			PrintWarning(fmt.Sprintf("Could not drop cached status: %v", err))
		}
	}

	statuses, err := client.CachedStatus(cmd.Context(), folderPath)
	if err != nil {
		return err
	}

	entries := make([]statusEntry, 0, len(statuses))
	for id, status := range statuses {
		entries = append(entries, statusEntry{ResourceID: id, Status: string(status)})
	}
	slices.SortFunc(entries, func(a, b statusEntry) int { return strings.Compare(a.ResourceID, b.ResourceID) })

	if PrintStructured(entries) {
		return nil
	}

	fmt.Fprintln(stdout)
	if len(entries) == 0 {
		fmt.Fprintf(stdout, "  %s\n\n", DimStyle.Render("Nothing under this path is in the knowledge base"))
		return nil
	}
	table := NewTable("RESOURCE", "STATUS")
	for _, e := range entries {
		table.AddRow(e.ResourceID, e.Status)
	}
	table.Print()
	fmt.Fprintln(stdout)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	client, err := newPickerClient()
	if err != nil {
		return err
	}

	healthErr := client.Health(cmd.Context())
	if PrintStructured(map[string]any{"gateway": client.BaseURL, "ok": healthErr == nil}) {
		return healthErr
	}

	PrintHeader("Gateway health")
	PrintKeyValue("Gateway", client.BaseURL)
	if healthErr != nil {
		PrintKeyValue("Status", ErrorStyle.Render("unavailable"))
		fmt.Fprintln(stdout)
		return healthErr
	}
	PrintKeyValue("Status", SuccessStyle.Render("ready"))
	fmt.Fprintln(stdout)
	return nil
}
