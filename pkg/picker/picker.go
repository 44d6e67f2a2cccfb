package picker

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/beam-cloud/kbpicker/pkg/types"
	"github.com/rs/zerolog/log"
)

const RootLabel = "My Drive"

var (
	ErrNotFolder         = errors.New("item is not a folder")
	ErrNothingStaged     = errors.New("no item staged for removal")
	ErrNothingSelected   = errors.New("no items selected")
	ErrNoMorePages       = errors.New("no more pages")
	ErrFetchInProgress   = errors.New("a page of this folder is already being fetched")
	ErrSyncInProgress    = errors.New("a sync is already running")
	ErrUnknownBreadcrumb = errors.New("breadcrumb not found")
)

// Source is the gateway as seen by the picker
type Source interface {
	ListPage(ctx context.Context, folderID string, folderPath *string, cursor string) (*types.Page, error)
	InvalidateStatus(ctx context.Context, folderPath string) error
	Sync(ctx context.Context, sourceIDs []string) error
	Deindex(ctx context.Context, itemID, itemPath string) (types.DriveItem, error)
}

type Breadcrumb struct {
	ID    string
	Label string
	Path  string
}

type folderKey struct {
	id   string
	path string
}

// folderPages is the page set fetched for one folder, in cursor order
type folderPages struct {
	pages      []types.Page
	nextCursor *string
	loaded     bool
	fetching   bool
}

func (f *folderPages) items() []types.DriveItem {
	var items []types.DriveItem
	for _, page := range f.pages {
		items = append(items, page.Items...)
	}
	return items
}

func (f *folderPages) hasNext() bool {
	return !f.loaded || (f.nextCursor != nil && *f.nextCursor != "")
}

// patch rewrites every cached copy of the items fn selects
func (f *folderPages) patch(fn func(types.DriveItem) (types.DriveItem, bool)) {
	for p := range f.pages {
		for i, item := range f.pages[p].Items {
			if patched, ok := fn(item); ok {
				f.pages[p].Items[i] = patched
			}
		}
	}
}

// Picker is the file picker's state: where the user is, what they selected and
// what has been loaded so far. It is safe for concurrent use; network calls run
// without holding the lock.
type Picker struct {
	source Source

	mu             sync.Mutex
	folderID       string
	folderPath     string
	breadcrumb     []Breadcrumb
	view           View
	selected       map[string]struct{}
	pendingRemoval *types.DriveItem
	removalFolder  folderKey
	folders        map[folderKey]*folderPages
	syncing        bool
}

func New(source Source) *Picker {
	return &Picker{
		source:     source,
		folderID:   types.RootFolderID,
		folderPath: "",
		breadcrumb: []Breadcrumb{{ID: types.RootFolderID, Label: RootLabel, Path: ""}},
		view:       View{Direction: SortAsc},
		selected:   make(map[string]struct{}),
		folders:    make(map[folderKey]*folderPages),
	}
}

func (p *Picker) currentKey() folderKey {
	return folderKey{id: p.folderID, path: p.folderPath}
}

func (p *Picker) folder(key folderKey) *folderPages {
	f, ok := p.folders[key]
	if !ok {
		f = &folderPages{}
		p.folders[key] = f
	}
	return f
}

// Current returns the id and path of the open folder
func (p *Picker) Current() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.folderID, p.folderPath
}

// OpenFolder descends into a folder. Nothing is fetched until the next LoadNextPage.
func (p *Picker) OpenFolder(item types.DriveItem) error {
	if !item.IsFolder() {
		return ErrNotFolder
	}

	path := strings.TrimPrefix(item.Path, "/")

	p.mu.Lock()
	defer p.mu.Unlock()
	p.folderID = item.ID
	p.folderPath = path
	p.breadcrumb = append(p.breadcrumb, Breadcrumb{ID: item.ID, Label: item.Name, Path: path})
	return nil
}

// ClickBreadcrumb goes back to an ancestor folder. Clicking the open folder does nothing.
func (p *Picker) ClickBreadcrumb(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id == p.folderID {
		return nil
	}
	idx := slices.IndexFunc(p.breadcrumb, func(b Breadcrumb) bool { return b.ID == id })
	if idx < 0 {
		return ErrUnknownBreadcrumb
	}

	p.breadcrumb = p.breadcrumb[:idx+1]
	p.folderID = p.breadcrumb[idx].ID
	p.folderPath = p.breadcrumb[idx].Path
	return nil
}

// Breadcrumb returns the trail from the root to the open folder
func (p *Picker) Breadcrumb() []Breadcrumb {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.breadcrumb)
}

// LoadNextPage fetches the next page of the open folder, or the first one if
// nothing is loaded yet. Pages are only ever fetched forward and one at a time
// per folder.
func (p *Picker) LoadNextPage(ctx context.Context) error {
	p.mu.Lock()
	key := p.currentKey()
	f := p.folder(key)
	if !f.hasNext() {
		p.mu.Unlock()
		return ErrNoMorePages
	}
	if f.fetching {
		p.mu.Unlock()
		return ErrFetchInProgress
	}
	f.fetching = true
	cursor := ""
	if f.nextCursor != nil {
		cursor = *f.nextCursor
	}
	p.mu.Unlock()

	folderPath := key.path
	page, err := p.source.ListPage(ctx, key.id, &folderPath, cursor)

	p.mu.Lock()
	defer p.mu.Unlock()
	f.fetching = false
	if err != nil {
		return err
	}

	f.pages = append(f.pages, *page)
	f.nextCursor = page.NextCursor
	f.loaded = true

	// A reload may have replaced this folder's page set while the fetch was out.
	if p.folders[key] == f {
		p.adoptServerSelection(f.items())
	}
	return nil
}

// adoptServerSelection adds every indexed or pending item to the selection.
// Server state only ever adds; it never drops a local choice.
func (p *Picker) adoptServerSelection(items []types.DriveItem) {
	for _, item := range items {
		if item.Indexed || item.Status == types.StatusPending {
			p.selected[item.ID] = struct{}{}
		}
	}
}

// Reload drops the open folder's cached pages and status, then fetches page one.
// The selection is kept.
func (p *Picker) Reload(ctx context.Context) error {
	p.mu.Lock()
	key := p.currentKey()
	delete(p.folders, key)
	p.mu.Unlock()

	if err := p.source.InvalidateStatus(ctx, key.path); err != nil {
		log.Warn().Err(err).Str("folder_path", key.path).Msg("failed to invalidate status cache")
	}
	return p.LoadNextPage(ctx)
}

// HasNextPage reports whether LoadNextPage would fetch anything
func (p *Picker) HasNextPage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.folder(p.currentKey()).hasNext()
}

// Loaded reports whether at least one page of the open folder has arrived
func (p *Picker) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.folders[p.currentKey()]
	return ok && f.loaded
}

// Items is the derived view of the open folder: all loaded pages, searched and sorted
func (p *Picker) Items() []types.DriveItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.folders[p.currentKey()]
	if !ok {
		return []types.DriveItem{}
	}
	return p.view.Apply(f.items())
}

// Item looks up a loaded item of the open folder by id
func (p *Picker) Item(id string) (types.DriveItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookup(id)
}

func (p *Picker) lookup(id string) (types.DriveItem, bool) {
	f, ok := p.folders[p.currentKey()]
	if !ok {
		return types.DriveItem{}, false
	}
	for _, item := range f.items() {
		if item.ID == id {
			return item, true
		}
	}
	return types.DriveItem{}, false
}

// Toggle flips an item's selection and reports whether it is now selected.
// Pending items can't be toggled.
func (p *Picker) Toggle(item types.DriveItem) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if loaded, ok := p.lookup(item.ID); ok {
		item = loaded
	}
	_, selected := p.selected[item.ID]
	if item.Status == types.StatusPending {
		return selected
	}

	if selected {
		delete(p.selected, item.ID)
		return false
	}
	p.selected[item.ID] = struct{}{}
	return true
}

// IsSelected reports whether id is in the selection
func (p *Picker) IsSelected(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.selected[id]
	return ok
}

// Selected returns the selection in a stable order
func (p *Picker) Selected() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selectedIDs()
}

func (p *Picker) selectedIDs() []string {
	ids := make([]string, 0, len(p.selected))
	for id := range p.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (p *Picker) SelectionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.selected)
}

// RequestRemoval stages an item of the open folder for de-indexing; nothing is
// sent until ConfirmRemoval
func (p *Picker) RequestRemoval(item types.DriveItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingRemoval = &item
	p.removalFolder = p.currentKey()
}

// PendingRemoval returns the staged item, if any
func (p *Picker) PendingRemoval() (types.DriveItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingRemoval == nil {
		return types.DriveItem{}, false
	}
	return *p.pendingRemoval, true
}

func (p *Picker) CancelRemoval() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingRemoval = nil
}

// ConfirmRemoval de-indexes the staged item. On success the item leaves the
// selection and every cached copy in the folder it was staged from shows it as
// de-indexed. The stage is cleared once the call returns, whatever the outcome.
func (p *Picker) ConfirmRemoval(ctx context.Context) (types.DriveItem, error) {
	p.mu.Lock()
	if p.pendingRemoval == nil {
		p.mu.Unlock()
		return types.DriveItem{}, ErrNothingStaged
	}
	staged := *p.pendingRemoval
	key := p.removalFolder
	p.mu.Unlock()

	result, err := p.source.Deindex(ctx, staged.ID, staged.Path)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingRemoval != nil && p.pendingRemoval.ID == staged.ID {
		p.pendingRemoval = nil
	}
	if err != nil {
		return types.DriveItem{}, err
	}

	delete(p.selected, staged.ID)
	if f, ok := p.folders[key]; ok {
		f.patch(func(item types.DriveItem) (types.DriveItem, bool) {
			if item.ID != staged.ID {
				return item, false
			}
			return item.WithStatus(types.StatusDeindexed), true
		})
	}
	return result, nil
}

// Sync sends the whole selection to the knowledge base. Selected items of the
// open folder that are neither indexed nor pending show as pending while the
// call is out; if it fails they go back to their previous status and the
// selection is left as it was. On success the open folder's cached status is
// dropped so later pages merge fresh status.
func (p *Picker) Sync(ctx context.Context) error {
	p.mu.Lock()
	if len(p.selected) == 0 {
		p.mu.Unlock()
		return ErrNothingSelected
	}
	if p.syncing {
		p.mu.Unlock()
		return ErrSyncInProgress
	}
	p.syncing = true

	ids := p.selectedIDs()
	key := p.currentKey()
	previous := make(map[string]types.Status)
	if f, ok := p.folders[key]; ok {
		f.patch(func(item types.DriveItem) (types.DriveItem, bool) {
			if _, sel := p.selected[item.ID]; !sel || item.Indexed || item.Status == types.StatusPending {
				return item, false
			}
			previous[item.ID] = item.Status
			return item.WithStatus(types.StatusPending), true
		})
	}
	p.mu.Unlock()

	err := p.source.Sync(ctx, ids)

	p.mu.Lock()
	p.syncing = false
	if err == nil {
		p.mu.Unlock()
		if err := p.source.InvalidateStatus(ctx, key.path); err != nil {
			log.Warn().Err(err).Str("folder_path", key.path).Msg("failed to invalidate status cache")
		}
		return nil
	}
	defer p.mu.Unlock()

	if f, ok := p.folders[key]; ok && len(previous) > 0 {
		f.patch(func(item types.DriveItem) (types.DriveItem, bool) {
			status, patched := previous[item.ID]
			if !patched || item.Status != types.StatusPending {
				return item, false
			}
			return item.WithStatus(status), true
		})
	}
	log.Warn().Err(err).Int("reverted", len(previous)).Msg("sync failed, pending marks reverted")
	return err
}

// Syncing reports whether a sync call is out
func (p *Picker) Syncing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.syncing
}

func (p *Picker) SetSearch(query string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Search = query
}

func (p *Picker) SetSort(key SortKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.SortBy = key
}

func (p *Picker) ToggleSortDirection() SortDirection {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.view.Direction == SortDesc {
		p.view.Direction = SortAsc
	} else {
		p.view.Direction = SortDesc
	}
	return p.view.Direction
}

// View returns the current search and sort settings
func (p *Picker) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}
