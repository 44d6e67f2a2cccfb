package picker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beam-cloud/kbpicker/pkg/types"
)

type listCall struct {
	folderID   string
	folderPath string
	cursor     string
}

// fakeSource serves pages keyed by folder id and cursor
type fakeSource struct {
	mu          sync.Mutex
	pages       map[string]map[string]*types.Page
	lists       []listCall
	invalidated []string
	synced      [][]string
	syncErr     error
	onSync      func()
	deindexErr  error
	deindexed   []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{pages: make(map[string]map[string]*types.Page)}
}

func (s *fakeSource) addPage(folderID, cursor string, next *string, items ...types.DriveItem) {
	if s.pages[folderID] == nil {
		s.pages[folderID] = make(map[string]*types.Page)
	}
	s.pages[folderID][cursor] = &types.Page{Items: items, NextCursor: next}
}

func (s *fakeSource) ListPage(ctx context.Context, folderID string, folderPath *string, cursor string) (*types.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := ""
	if folderPath != nil {
		path = *folderPath
	}
	s.lists = append(s.lists, listCall{folderID: folderID, folderPath: path, cursor: cursor})

	page, ok := s.pages[folderID][cursor]
	if !ok {
		return nil, errors.New("no such page")
	}
	// Callers get their own copy, as they would from the wire.
	copied := *page
	copied.Items = append([]types.DriveItem(nil), page.Items...)
	return &copied, nil
}

func (s *fakeSource) InvalidateStatus(ctx context.Context, folderPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, folderPath)
	return nil
}

func (s *fakeSource) Sync(ctx context.Context, sourceIDs []string) error {
	if s.onSync != nil {
		s.onSync()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, sourceIDs)
	return s.syncErr
}

func (s *fakeSource) Deindex(ctx context.Context, itemID, itemPath string) (types.DriveItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deindexErr != nil {
		return types.DriveItem{}, s.deindexErr
	}
	s.deindexed = append(s.deindexed, itemID)
	return types.DriveItem{ID: itemID, Path: itemPath, Type: types.ItemTypeFile}.WithStatus(types.StatusDeindexed), nil
}

func file(id, name string, status types.Status) types.DriveItem {
	return types.DriveItem{ID: id, Name: name, Type: types.ItemTypeFile, Path: "/" + name}.WithStatus(status)
}

func folder(id, path string) types.DriveItem {
	return types.DriveItem{ID: id, Name: id, Type: types.ItemTypeFolder, Path: path}
}

func cursor(c string) *string { return &c }

func itemByID(items []types.DriveItem, id string) types.DriveItem {
	for _, item := range items {
		if item.ID == id {
			return item
		}
	}
	return types.DriveItem{}
}

func TestNewPickerStartsAtRoot(t *testing.T) {
	p := New(newFakeSource())

	id, path := p.Current()
	assert.Equal(t, types.RootFolderID, id)
	assert.Equal(t, "", path)
	assert.Equal(t, []Breadcrumb{{ID: "root", Label: "My Drive", Path: ""}}, p.Breadcrumb())
	assert.Empty(t, p.Items())
	assert.Zero(t, p.SelectionCount())
	assert.True(t, p.HasNextPage())
	assert.False(t, p.Loaded())
}

func TestLoadNextPageAppendsAndStops(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", cursor("c2"), file("a", "a.txt", types.StatusNotIndexed))
	src.addPage("root", "c2", nil, file("b", "b.txt", types.StatusNotIndexed))
	p := New(src)

	require.NoError(t, p.LoadNextPage(context.Background()))
	assert.True(t, p.HasNextPage())
	require.NoError(t, p.LoadNextPage(context.Background()))
	assert.False(t, p.HasNextPage())

	assert.ErrorIs(t, p.LoadNextPage(context.Background()), ErrNoMorePages)
	assert.Len(t, p.Items(), 2)
	assert.Equal(t, []listCall{{"root", "", ""}, {"root", "", "c2"}}, src.lists)
}

func TestLoadNextPageErrorKeepsState(t *testing.T) {
	p := New(newFakeSource())

	assert.Error(t, p.LoadNextPage(context.Background()))
	assert.False(t, p.Loaded())
	assert.True(t, p.HasNextPage())
}

func TestServerSelectionOnlyAdds(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", cursor("c2"),
		file("a", "a.txt", types.StatusIndexed),
		file("b", "b.txt", types.StatusNotIndexed),
	)
	src.addPage("root", "c2", nil,
		file("c", "c.txt", types.StatusPending),
		file("d", "d.txt", types.StatusFailed),
	)
	p := New(src)
	ctx := context.Background()

	require.NoError(t, p.LoadNextPage(ctx))
	assert.Equal(t, []string{"a"}, p.Selected())

	// A local deselect survives until new data arrives, and local picks always survive.
	assert.False(t, p.Toggle(file("a", "a.txt", types.StatusIndexed)))
	assert.True(t, p.Toggle(file("b", "b.txt", types.StatusNotIndexed)))

	require.NoError(t, p.LoadNextPage(ctx))
	assert.Equal(t, []string{"a", "b", "c"}, p.Selected())
}

func TestTogglePendingIsNoop(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", nil, file("p", "p.txt", types.StatusPending), file("n", "n.txt", types.StatusNotIndexed))
	p := New(src)
	require.NoError(t, p.LoadNextPage(context.Background()))

	require.True(t, p.IsSelected("p"))
	assert.True(t, p.Toggle(file("p", "p.txt", types.StatusPending)))
	assert.True(t, p.IsSelected("p"))

	// The loaded copy wins over a stale argument.
	assert.True(t, p.Toggle(file("p", "p.txt", types.StatusNotIndexed)))
	assert.True(t, p.IsSelected("p"))

	assert.True(t, p.Toggle(file("n", "n.txt", types.StatusNotIndexed)))
	assert.False(t, p.Toggle(file("n", "n.txt", types.StatusNotIndexed)))
}

func TestNavigation(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", nil, folder("f1", "/docs"))
	src.addPage("f1", "", nil, folder("f2", "/docs/2024"))
	src.addPage("f2", "", nil, file("x", "x.txt", types.StatusNotIndexed))
	p := New(src)
	ctx := context.Background()

	require.NoError(t, p.LoadNextPage(ctx))
	assert.ErrorIs(t, p.OpenFolder(file("x", "x.txt", "")), ErrNotFolder)

	require.NoError(t, p.OpenFolder(folder("f1", "/docs")))
	require.NoError(t, p.LoadNextPage(ctx))
	require.NoError(t, p.OpenFolder(folder("f2", "/docs/2024")))
	require.NoError(t, p.LoadNextPage(ctx))

	id, path := p.Current()
	assert.Equal(t, "f2", id)
	assert.Equal(t, "docs/2024", path)
	assert.Len(t, p.Breadcrumb(), 3)
	assert.Equal(t, "docs/2024", src.lists[2].folderPath)

	require.NoError(t, p.ClickBreadcrumb("f2"))
	assert.Len(t, p.Breadcrumb(), 3)

	assert.ErrorIs(t, p.ClickBreadcrumb("nope"), ErrUnknownBreadcrumb)

	require.NoError(t, p.ClickBreadcrumb("f1"))
	crumbs := p.Breadcrumb()
	require.Len(t, crumbs, 2)
	assert.Equal(t, "f1", crumbs[1].ID)
	id, path = p.Current()
	assert.Equal(t, "f1", id)
	assert.Equal(t, "docs", path)

	// Going back to a visited folder reuses its pages.
	assert.True(t, p.Loaded())
	assert.Len(t, src.lists, 3)

	require.NoError(t, p.ClickBreadcrumb("root"))
	assert.Len(t, p.Breadcrumb(), 1)
}

func TestReloadInvalidatesAndRefetches(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", cursor("c2"), file("a", "a.txt", types.StatusNotIndexed))
	src.addPage("root", "c2", nil, file("b", "b.txt", types.StatusNotIndexed))
	p := New(src)
	ctx := context.Background()

	require.NoError(t, p.LoadNextPage(ctx))
	require.NoError(t, p.LoadNextPage(ctx))
	p.Toggle(file("b", "b.txt", types.StatusNotIndexed))

	require.NoError(t, p.Reload(ctx))

	assert.Equal(t, []string{""}, src.invalidated)
	assert.Len(t, p.Items(), 1)
	assert.True(t, p.HasNextPage())
	assert.Equal(t, []string{"b"}, p.Selected())
	assert.Equal(t, "", src.lists[2].cursor)
}

func TestConfirmRemoval(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", nil, file("a", "a.txt", types.StatusIndexed), file("b", "b.txt", types.StatusIndexed))
	p := New(src)
	ctx := context.Background()
	require.NoError(t, p.LoadNextPage(ctx))
	require.Equal(t, []string{"a", "b"}, p.Selected())

	_, err := p.ConfirmRemoval(ctx)
	assert.ErrorIs(t, err, ErrNothingStaged)

	p.RequestRemoval(file("a", "a.txt", types.StatusIndexed))
	staged, ok := p.PendingRemoval()
	require.True(t, ok)
	assert.Equal(t, "a", staged.ID)
	assert.Empty(t, src.deindexed)

	result, err := p.ConfirmRemoval(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDeindexed, result.Status)
	assert.Equal(t, []string{"a"}, src.deindexed)

	_, ok = p.PendingRemoval()
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, p.Selected())

	a := itemByID(p.Items(), "a")
	assert.Equal(t, types.StatusDeindexed, a.Status)
	assert.False(t, a.Indexed)
}

func TestConfirmRemovalPatchesStagingFolder(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", cursor("c2"), file("x", "x.txt", types.StatusIndexed), folder("sub", "/sub"))
	src.addPage("root", "c2", nil, file("y", "y.txt", types.StatusNotIndexed))
	src.addPage("sub", "", nil, file("z", "z.txt", types.StatusNotIndexed))
	p := New(src)
	ctx := context.Background()
	require.NoError(t, p.LoadNextPage(ctx))

	p.RequestRemoval(file("x", "x.txt", types.StatusIndexed))
	require.NoError(t, p.OpenFolder(folder("sub", "/sub")))
	require.NoError(t, p.LoadNextPage(ctx))

	_, err := p.ConfirmRemoval(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StatusNotIndexed, itemByID(p.Items(), "z").Status)

	require.NoError(t, p.ClickBreadcrumb("root"))
	x := itemByID(p.Items(), "x")
	assert.Equal(t, types.StatusDeindexed, x.Status)
	assert.False(t, x.Indexed)

	// Later pages re-run server selection over the whole folder.
	require.NoError(t, p.LoadNextPage(ctx))
	assert.False(t, p.IsSelected("x"))
	assert.Empty(t, p.Selected())
}

func TestConfirmRemovalFailureClearsStage(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", nil, file("a", "a.txt", types.StatusIndexed))
	src.deindexErr = errors.New("backend down")
	p := New(src)
	ctx := context.Background()
	require.NoError(t, p.LoadNextPage(ctx))

	p.RequestRemoval(file("a", "a.txt", types.StatusIndexed))
	_, err := p.ConfirmRemoval(ctx)
	assert.EqualError(t, err, "backend down")

	_, ok := p.PendingRemoval()
	assert.False(t, ok)
	assert.True(t, p.IsSelected("a"))
	assert.Equal(t, types.StatusIndexed, itemByID(p.Items(), "a").Status)
}

func TestCancelRemoval(t *testing.T) {
	p := New(newFakeSource())
	p.RequestRemoval(file("a", "a.txt", types.StatusIndexed))
	p.CancelRemoval()

	_, ok := p.PendingRemoval()
	assert.False(t, ok)
}

func TestSyncMarksPendingWhileInFlight(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", nil,
		file("a", "a.txt", types.StatusNotIndexed),
		file("b", "b.txt", types.StatusIndexed),
		file("c", "c.txt", types.StatusNotIndexed),
	)
	p := New(src)
	ctx := context.Background()
	require.NoError(t, p.LoadNextPage(ctx))

	assert.ErrorIs(t, New(src).Sync(ctx), ErrNothingSelected)

	p.Toggle(file("a", "a.txt", ""))

	var during []types.DriveItem
	src.onSync = func() {
		during = p.Items()
		assert.True(t, p.Syncing())
		assert.ErrorIs(t, p.Sync(ctx), ErrSyncInProgress)
	}

	require.NoError(t, p.Sync(ctx))

	assert.Equal(t, [][]string{{"a", "b"}}, src.synced)
	assert.Equal(t, types.StatusPending, itemByID(during, "a").Status)
	assert.Equal(t, types.StatusIndexed, itemByID(during, "b").Status)
	assert.Equal(t, types.StatusNotIndexed, itemByID(during, "c").Status)

	assert.Equal(t, types.StatusPending, itemByID(p.Items(), "a").Status)
	assert.False(t, p.Syncing())
	assert.Equal(t, []string{""}, src.invalidated)
}

func TestSyncInvalidatesOpenFolderStatus(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", nil, folder("f1", "/docs"))
	src.addPage("f1", "", nil, file("a", "a.txt", types.StatusNotIndexed))
	p := New(src)
	ctx := context.Background()
	require.NoError(t, p.LoadNextPage(ctx))
	require.NoError(t, p.OpenFolder(folder("f1", "/docs")))
	require.NoError(t, p.LoadNextPage(ctx))

	p.Toggle(file("a", "a.txt", ""))
	require.NoError(t, p.Sync(ctx))
	assert.Equal(t, []string{"docs"}, src.invalidated)
}

func TestSyncFailureRevertsPending(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", nil,
		file("a", "a.txt", types.StatusFailed),
		file("b", "b.txt", types.StatusNotIndexed),
	)
	src.syncErr = errors.New("409 conflict")
	p := New(src)
	ctx := context.Background()
	require.NoError(t, p.LoadNextPage(ctx))

	p.Toggle(file("a", "a.txt", ""))
	p.Toggle(file("b", "b.txt", ""))

	assert.EqualError(t, p.Sync(ctx), "409 conflict")

	items := p.Items()
	assert.Equal(t, types.StatusFailed, itemByID(items, "a").Status)
	assert.Equal(t, types.StatusNotIndexed, itemByID(items, "b").Status)
	assert.Equal(t, []string{"a", "b"}, p.Selected())
	assert.False(t, p.Syncing())
	assert.Empty(t, src.invalidated)
}

func TestViewSettings(t *testing.T) {
	src := newFakeSource()
	src.addPage("root", "", nil,
		file("1", "beta.txt", types.StatusNotIndexed),
		file("2", "Alpha.txt", types.StatusNotIndexed),
		file("3", "gamma.md", types.StatusNotIndexed),
	)
	p := New(src)
	require.NoError(t, p.LoadNextPage(context.Background()))

	p.SetSort(SortByName)
	assert.Equal(t, []string{"2", "1", "3"}, ids(p.Items()))

	assert.Equal(t, SortDesc, p.ToggleSortDirection())
	assert.Equal(t, []string{"3", "1", "2"}, ids(p.Items()))
	assert.Equal(t, SortAsc, p.ToggleSortDirection())

	p.SetSearch(".TXT")
	assert.Equal(t, []string{"2", "1"}, ids(p.Items()))
	assert.Equal(t, ".TXT", p.View().Search)
}

func ids(items []types.DriveItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
