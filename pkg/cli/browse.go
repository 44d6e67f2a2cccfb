package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beam-cloud/kbpicker/pkg/picker"
	"github.com/beam-cloud/kbpicker/pkg/types"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Interactively pick files for the knowledge base",
	Long: `Open an interactive picker over the Drive connection. Navigate folders,
select files and folders, then sync the selection to the knowledge base.
Type 'help' at the prompt for commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsStructuredOutput() {
			return errors.New("browse is interactive and has no structured output")
		}

		client, err := newPickerClient()
		if err != nil {
			return err
		}
		b := newBrowser(picker.New(client), bufio.NewScanner(stdin))
		return b.run(cmd.Context())
	},
}

var browseHelp = [][2]string{
	{"ls", "Show the current folder"},
	{"more", "Load the next page"},
	{"open <n>", "Open folder n"},
	{"up", "Go to the parent folder"},
	{"crumb <n>", "Jump to breadcrumb n (0 is My Drive)"},
	{"toggle <n>", "Select or unselect item n"},
	{"rm <n>", "Remove item n from the knowledge base"},
	{"sync", "Send the selection to the knowledge base"},
	{"reload", "Refetch the current folder"},
	{"search <text>", "Filter by name (empty to clear)"},
	{"sort <key>", "Sort by name, modified or none"},
	{"dir", "Flip the sort direction"},
	{"selected", "List selected ids"},
	{"quit", "Leave the picker"},
}

// browser is a line-oriented front end over a Picker
type browser struct {
	picker *picker.Picker
	in     *bufio.Scanner

	// shown is the last rendered view; item numbers refer to it
	shown []types.DriveItem
}

func newBrowser(p *picker.Picker, in *bufio.Scanner) *browser {
	return &browser{picker: p, in: in}
}

func (b *browser) run(ctx context.Context) error {
	fmt.Fprintf(stdout, "\n  %s %s\n", BrandStyle.Render("kbpicker"), DimStyle.Render("type 'help' for commands"))
	b.exec(ctx, "ls")

	for {
		fmt.Fprintf(stdout, "\n%s ", BrandStyle.Render(">"))
		if !b.in.Scan() {
			fmt.Fprintln(stdout)
			return b.in.Err()
		}
		if quit := b.exec(ctx, b.in.Text()); quit {
			return nil
		}
	}
}

// exec runs one command line and reports whether the user asked to quit.
// Command errors are printed, not returned.
func (b *browser) exec(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToLower(cmd) {
	case "":
	case "quit", "exit", "q":
		return true
	case "help", "?":
		b.help()
	case "ls", "l":
		err = b.show(ctx)
	case "more", "m":
		err = b.picker.LoadNextPage(ctx)
		if err == nil {
			err = b.show(ctx)
		}
	case "open", "cd":
		if arg == ".." {
			err = b.up()
		} else {
			err = b.open(arg)
		}
		if err == nil {
			err = b.show(ctx)
		}
	case "up":
		if err = b.up(); err == nil {
			err = b.show(ctx)
		}
	case "crumb":
		err = b.crumb(arg)
		if err == nil {
			err = b.show(ctx)
		}
	case "toggle", "t":
		err = b.toggle(arg)
	case "rm":
		err = b.remove(ctx, arg)
	case "sync":
		err = b.sync(ctx)
	case "reload", "r":
		err = b.picker.Reload(ctx)
		if err == nil {
			err = b.show(ctx)
		}
	case "search", "/":
		b.picker.SetSearch(arg)
		err = b.show(ctx)
	case "sort":
		key, ok := picker.ParseSortKey(arg)
		if !ok {
			err = fmt.Errorf("unknown sort key %q", arg)
			break
		}
		b.picker.SetSort(key)
		err = b.show(ctx)
	case "dir":
		PrintInfof("Sorting %s", b.picker.ToggleSortDirection())
		err = b.show(ctx)
	case "selected":
		b.listSelected()
	default:
		err = fmt.Errorf("unknown command %q, type 'help'", cmd)
	}

	if err != nil {
		PrintErrorMsg(FormatError(err))
	}
	return false
}

func (b *browser) help() {
	fmt.Fprintln(stdout)
	for _, h := range browseHelp {
		fmt.Fprintf(stdout, "  %s %s\n", CodeStyle.Render(fmt.Sprintf("%-14s", h[0])), DimStyle.Render(h[1]))
	}
}

// show renders the current folder, fetching its first page if needed
func (b *browser) show(ctx context.Context) error {
	if !b.picker.Loaded() {
		if err := b.picker.LoadNextPage(ctx); err != nil && !errors.Is(err, picker.ErrNoMorePages) {
			return err
		}
	}

	b.shown = b.picker.Items()

	fmt.Fprintln(stdout)
	PrintBreadcrumb(b.picker.Breadcrumb())
	fmt.Fprintln(stdout)

	if len(b.shown) == 0 {
		fmt.Fprintf(stdout, "  %s\n", DimStyle.Render("No files in this folder"))
	} else {
		table := NewTable("#", "", "NAME", "STATUS", "MODIFIED")
		for i, item := range b.shown {
			mark := SymbolEmpty
			if b.picker.IsSelected(item.ID) {
				mark = SymbolSelected
			}
			name := item.Name
			if item.IsFolder() {
				name = SymbolFolder + " " + name
			}
			table.AddRow(strconv.Itoa(i+1), mark, Truncate(name, 48), RenderBadge(picker.Badge(item)), FormatRelativeTime(item.ModifiedAt))
		}
		table.Print()
	}

	footer := fmt.Sprintf("%d selected", b.picker.SelectionCount())
	if b.picker.HasNextPage() {
		footer += " · more available ('more')"
	}
	fmt.Fprintf(stdout, "\n  %s\n", DimStyle.Render(footer))
	return nil
}

// item resolves a 1-based position in the last view, or an item id
func (b *browser) item(arg string) (types.DriveItem, error) {
	if arg == "" {
		return types.DriveItem{}, errors.New("which item? pass its number")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(b.shown) {
			return types.DriveItem{}, fmt.Errorf("no item %d", n)
		}
		return b.shown[n-1], nil
	}
	if item, ok := b.picker.Item(arg); ok {
		return item, nil
	}
	return types.DriveItem{}, fmt.Errorf("no item %q in this folder", arg)
}

func (b *browser) open(arg string) error {
	item, err := b.item(arg)
	if err != nil {
		return err
	}
	return b.picker.OpenFolder(item)
}

func (b *browser) up() error {
	trail := b.picker.Breadcrumb()
	if len(trail) < 2 {
		return nil
	}
	return b.picker.ClickBreadcrumb(trail[len(trail)-2].ID)
}

func (b *browser) crumb(arg string) error {
	n, err := strconv.Atoi(arg)
	trail := b.picker.Breadcrumb()
	if err != nil || n < 0 || n >= len(trail) {
		return fmt.Errorf("no breadcrumb %q", arg)
	}
	return b.picker.ClickBreadcrumb(trail[n].ID)
}

func (b *browser) toggle(arg string) error {
	item, err := b.item(arg)
	if err != nil {
		return err
	}
	if item.Status == types.StatusPending {
		PrintWarning(fmt.Sprintf("%s is being indexed and can't be changed", item.Name))
		return nil
	}
	if b.picker.Toggle(item) {
		PrintSuccessf("Selected %s", item.Name)
	} else {
		PrintInfof("Unselected %s", item.Name)
	}
	return nil
}

func (b *browser) remove(ctx context.Context, arg string) error {
	item, err := b.item(arg)
	if err != nil {
		return err
	}

	b.picker.RequestRemoval(item)
	if !confirm(b.in, fmt.Sprintf("Remove %s from your knowledge base?", CodeStyle.Render(item.Name))) {
		b.picker.CancelRemoval()
		PrintInfo("Cancelled")
		return nil
	}

	if _, err := b.picker.ConfirmRemoval(ctx); err != nil {
		return err
	}
	PrintSuccessf("Removed %s from the knowledge base", item.Name)
	return b.show(ctx)
}

func (b *browser) sync(ctx context.Context) error {
	count := b.picker.SelectionCount()
	if err := b.picker.Sync(ctx); err != nil {
		return err
	}
	PrintSuccessf("Sync triggered for %d item(s)", count)
	return b.show(ctx)
}

func (b *browser) listSelected() {
	ids := b.picker.Selected()
	if len(ids) == 0 {
		PrintInfo("Nothing selected")
		return
	}
	fmt.Fprintln(stdout)
	for _, id := range ids {
		fmt.Fprintf(stdout, "    %s %s\n", DimStyle.Render(SymbolBullet), id)
	}
}
