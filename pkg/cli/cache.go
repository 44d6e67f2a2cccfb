package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the knowledge-base status cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [folder_path]",
	Short: "Drop cached status for one folder, or everything",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newPickerClient()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			folderPath := strings.TrimPrefix(args[0], "/")
			if err := client.InvalidateStatus(cmd.Context(), folderPath); err != nil {
				return err
			}
			if !PrintStructured(map[string]any{"cleared": folderPath}) {
				PrintSuccessf("Cleared cached status for /%s", folderPath)
			}
			return nil
		}

		if err := client.ClearStatus(cmd.Context()); err != nil {
			return err
		}
		if !PrintStructured(map[string]any{"cleared": "all"}) {
			PrintSuccess(fmt.Sprintf("Cleared the %s status cache", appConfig.Client.StatusCache.Backend))
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
