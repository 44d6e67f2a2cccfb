package picker

import (
	"slices"
	"strings"
	"time"

	"github.com/beam-cloud/kbpicker/pkg/types"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the ordering of the derived view
type SortKey string

const (
	SortNone       SortKey = ""
	SortByName     SortKey = "name"
	SortByModified SortKey = "modifiedAt"
)

// ParseSortKey accepts "name", "modifiedAt"/"modified" and "" or "none"
func ParseSortKey(raw string) (SortKey, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return SortNone, true
	case "name":
		return SortByName, true
	case "modifiedat", "modified":
		return SortByModified, true
	}
	return SortNone, false
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// View is the search and sort applied on top of the loaded items
type View struct {
	Search    string
	SortBy    SortKey
	Direction SortDirection
}

// Apply filters items by a case-insensitive substring of the name and then sorts
// them. The input slice is not modified.
func (v View) Apply(items []types.DriveItem) []types.DriveItem {
	out := FilterItems(items, v.Search)
	SortItems(out, v.SortBy, v.Direction)
	return out
}

// FilterItems keeps items whose name contains query, ignoring case and surrounding space
func FilterItems(items []types.DriveItem, query string) []types.DriveItem {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]types.DriveItem, 0, len(items))
	for _, item := range items {
		if query == "" || strings.Contains(strings.ToLower(item.Name), query) {
			out = append(out, item)
		}
	}
	return out
}

// SortItems sorts in place and is stable. Names compare locale-aware, ignoring
// case and accents; modification times compare as instants.
func SortItems(items []types.DriveItem, key SortKey, dir SortDirection) {
	var cmp func(a, b types.DriveItem) int
	switch key {
	case SortByName:
		c := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
		cmp = func(a, b types.DriveItem) int {
			return c.CompareString(a.Name, b.Name)
		}
	case SortByModified:
		cmp = func(a, b types.DriveItem) int {
			return modifiedTime(a).Compare(modifiedTime(b))
		}
	default:
		return
	}

	if dir == SortDesc {
		asc := cmp
		cmp = func(a, b types.DriveItem) int { return -asc(a, b) }
	}
	slices.SortStableFunc(items, cmp)
}

// modifiedLayouts are tried in order; timestamps without a zone are read as UTC
var modifiedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// unparseable timestamps sort as the zero time
func modifiedTime(item types.DriveItem) time.Time {
	raw := strings.TrimSpace(item.ModifiedAt)
	for _, layout := range modifiedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
