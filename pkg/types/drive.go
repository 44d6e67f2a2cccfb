package types

import "strings"

// RootFolderID is the sentinel folder id for the top of the connection
const RootFolderID = "root"

// ItemType distinguishes files from folders
type ItemType string

const (
	ItemTypeFile   ItemType = "file"
	ItemTypeFolder ItemType = "folder"
)

// Status is the indexing state of a drive item.
// Knowledge-base entries only ever resolve to pending, indexed or not_indexed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusIndexed    Status = "indexed"
	StatusFailed     Status = "failed"
	StatusDeindexed  Status = "deindexed"
	StatusNotIndexed Status = "not_indexed"
)

// ParseStatus maps a backend status string onto Status.
// Unknown and empty values are treated as in-flight.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "indexed":
		return StatusIndexed
	case "not_indexed":
		return StatusNotIndexed
	case "deindexed":
		return StatusDeindexed
	case "failed", "error":
		return StatusFailed
	default:
		return StatusPending
	}
}

// DriveItem is a normalized connection resource as shown in the picker
type DriveItem struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Type       ItemType `json:"type" yaml:"type"`
	ParentID   *string  `json:"parentId" yaml:"parentId"`
	Path       string   `json:"path" yaml:"path"`
	ModifiedAt string   `json:"modifiedAt" yaml:"modifiedAt"`
	Indexed    bool     `json:"indexed" yaml:"indexed"`
	Status     Status   `json:"status,omitempty" yaml:"status,omitempty"`
}

// WithStatus returns a copy of the item carrying status, keeping Indexed in step
func (i DriveItem) WithStatus(status Status) DriveItem {
	i.Status = status
	i.Indexed = status == StatusIndexed
	return i
}

// IsFolder reports whether the item can be opened
func (i DriveItem) IsFolder() bool {
	return i.Type == ItemTypeFolder
}

// Page is one page of a folder listing. A nil NextCursor means there are no more pages.
type Page struct {
	Items      []DriveItem `json:"items" yaml:"items"`
	NextCursor *string     `json:"nextCursor" yaml:"nextCursor"`
}

// HasMore reports whether another page can be requested
func (p Page) HasMore() bool {
	return p.NextCursor != nil && *p.NextCursor != ""
}

// StatusMap maps a resource id (or a directory inode id) to its knowledge-base status
type StatusMap map[string]Status

// Lookup resolves the status for an item, by id first and then by name
func (m StatusMap) Lookup(item DriveItem) (Status, bool) {
	if s, ok := m[item.ID]; ok {
		return s, true
	}
	if s, ok := m[item.Name]; ok {
		return s, true
	}
	return "", false
}

// Merge applies known statuses onto items; unmatched items are left unchanged
func (m StatusMap) Merge(items []DriveItem) []DriveItem {
	if len(m) == 0 {
		return items
	}
	merged := make([]DriveItem, len(items))
	for i, item := range items {
		if s, ok := m.Lookup(item); ok {
			item = item.WithStatus(s)
		}
		merged[i] = item
	}
	return merged
}
