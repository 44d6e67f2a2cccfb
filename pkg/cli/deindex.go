package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"
)

var (
	deindexYes bool
	stdin      io.Reader = os.Stdin
)

var deindexCmd = &cobra.Command{
	Use:     "deindex <resource_id> <resource_path>",
	Aliases: []string{"rm"},
	Short:   "Remove an item from the knowledge base",
	Example: `  kbpicker deindex 1AbC /reports/q3.pdf`,
	Args:    cobra.ExactArgs(2),
	RunE:    runDeindex,
}

func init() {
	deindexCmd.Flags().BoolVarP(&deindexYes, "yes", "y", false, "Don't ask for confirmation")
}

func runDeindex(cmd *cobra.Command, args []string) error {
	itemID, itemPath := args[0], args[1]

	if !deindexYes && !IsStructuredOutput() {
		question := fmt.Sprintf("Remove %s from your knowledge base?", CodeStyle.Render(itemPath))
		if !confirm(bufio.NewScanner(stdin), question) {
			PrintInfo("Cancelled")
			return nil
		}
	}

	client, err := newPickerClient()
	if err != nil {
		return err
	}

	item, err := client.Deindex(cmd.Context(), itemID, itemPath)
	if err != nil {
		return err
	}

	parent := strings.TrimPrefix(path.Dir("/"+strings.TrimPrefix(itemPath, "/")), "/")
	if err := client.InvalidateStatus(cmd.Context(), parent); err != nil {
		PrintWarning(fmt.Sprintf("Could not drop cached status: %v", err))
	}

	if PrintStructured(item) {
		return nil
	}

	fmt.Fprintln(stdout)
	PrintSuccessf("Removed %s from the knowledge base", itemPath)
	fmt.Fprintln(stdout)
	return nil
}

// confirm asks a yes/no question; anything but y/yes is a no
func confirm(in *bufio.Scanner, question string) bool {
	fmt.Fprintf(stdout, "  %s %s ", question, DimStyle.Render("[y/N]"))
	if !in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(in.Text()))
	return answer == "y" || answer == "yes"
}
