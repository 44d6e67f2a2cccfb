package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beam-cloud/kbpicker/pkg/picker"
	"github.com/beam-cloud/kbpicker/pkg/types"
)

var (
	lsPath     string
	lsCursor   string
	lsAll      bool
	lsSearch   string
	lsSort     string
	lsDesc     bool
	lsNoStatus bool
)

type lsResult struct {
	Items      []types.DriveItem `json:"items" yaml:"items"`
	NextCursor *string           `json:"nextCursor" yaml:"nextCursor"`
}

var lsCmd = &cobra.Command{
	Use:   "ls [folder_id]",
	Short: "List a Drive folder",
	Long: `List the children of a Drive folder with their knowledge-base status.

Without a folder id the connection root is listed. Pass --path with the
folder's path so its knowledge-base status can be merged in.`,
	Example: `  kbpicker ls
  kbpicker ls 1AbCdEf --path /reports --all
  kbpicker ls --sort name --desc --search invoice`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringVar(&lsPath, "path", "", "Folder path, used to look up knowledge-base status")
	lsCmd.Flags().StringVar(&lsCursor, "cursor", "", "Continue from a page cursor")
	lsCmd.Flags().BoolVar(&lsAll, "all", false, "Follow cursors until the last page")
	lsCmd.Flags().StringVar(&lsSearch, "search", "", "Only show names containing this text")
	lsCmd.Flags().StringVar(&lsSort, "sort", "", "Sort by name or modified")
	lsCmd.Flags().BoolVar(&lsDesc, "desc", false, "Sort descending")
	lsCmd.Flags().BoolVar(&lsNoStatus, "no-status", false, "Skip the knowledge-base status lookup")
}

func runLs(cmd *cobra.Command, args []string) error {
	sortKey, ok := picker.ParseSortKey(lsSort)
	if !ok {
		return fmt.Errorf("unknown sort key %q (use name or modified)", lsSort)
	}

	client, err := newPickerClient()
	if err != nil {
		return err
	}

	folderID := types.RootFolderID
	if len(args) == 1 {
		folderID = args[0]
	}

	var folderPath *string
	if !lsNoStatus {
		path := strings.TrimPrefix(lsPath, "/")
		folderPath = &path
	}

	var (
		items  []types.DriveItem
		cursor = lsCursor
		next   *string
	)
	for {
		page, err := client.ListPage(cmd.Context(), folderID, folderPath, cursor)
		if err != nil {
			return err
		}
		items = append(items, page.Items...)
		next = page.NextCursor
		if !lsAll || !page.HasMore() {
			break
		}
		cursor = *page.NextCursor
	}

	direction := picker.SortAsc
	if lsDesc {
		direction = picker.SortDesc
	}
	items = picker.View{Search: lsSearch, SortBy: sortKey, Direction: direction}.Apply(items)

	if PrintStructured(lsResult{Items: items, NextCursor: next}) {
		return nil
	}

	fmt.Fprintln(stdout)
	PrintItems(items, nil)
	if next != nil && *next != "" {
		PrintHint(fmt.Sprintf("More items available: kbpicker ls %s --cursor %s", folderID, *next))
	}
	fmt.Fprintln(stdout)
	return nil
}
