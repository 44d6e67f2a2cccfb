package backend

import (
	"strings"
	"time"

	"github.com/beam-cloud/kbpicker/pkg/types"
)

// ISOTimeLayout matches the millisecond UTC timestamps the backend emits
const ISOTimeLayout = "2006-01-02T15:04:05.000Z"

const inodeTypeDirectory = "directory"

// InodePath is the location of a resource inside the connection
type InodePath struct {
	Path *string `json:"path,omitempty"`
}

// Resource is a connection resource as returned by the children endpoint.
// Optional fields are pointers so that "absent" and "empty" stay distinct.
type Resource struct {
	ResourceID string     `json:"resource_id"`
	InodeType  string     `json:"inode_type"`
	InodePath  *InodePath `json:"inode_path,omitempty"`
	InodeID    string     `json:"inode_id,omitempty"`
	Path       *string    `json:"path,omitempty"` // legacy location field
	ModifiedAt *string    `json:"modified_at,omitempty"`
	UpdatedAt  *string    `json:"updated_at,omitempty"`
	CreatedAt  *string    `json:"created_at,omitempty"`
}

// MapResource converts a backend resource into a DriveItem.
// Knowledge-base status is merged later, so every item starts not_indexed.
func MapResource(res Resource, now func() time.Time) types.DriveItem {
	path := resourcePath(res)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return types.DriveItem{
		ID:         res.ResourceID,
		Name:       nameFromPath(path),
		Type:       itemType(res.InodeType),
		ParentID:   nil,
		Path:       path,
		ModifiedAt: modifiedAt(res, now),
		Indexed:    false,
		Status:     types.StatusNotIndexed,
	}
}

// MapResources maps a page of resources
func MapResources(resources []Resource, now func() time.Time) []types.DriveItem {
	items := make([]types.DriveItem, 0, len(resources))
	for _, res := range resources {
		items = append(items, MapResource(res, now))
	}
	return items
}

func resourcePath(res Resource) string {
	if res.InodePath != nil && res.InodePath.Path != nil {
		return *res.InodePath.Path
	}
	if res.Path != nil {
		return *res.Path
	}
	return "/"
}

func nameFromPath(path string) string {
	var last string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			last = segment
		}
	}
	if last == "" {
		return path
	}
	return last
}

func itemType(inodeType string) types.ItemType {
	if inodeType == inodeTypeDirectory {
		return types.ItemTypeFolder
	}
	return types.ItemTypeFile
}

func modifiedAt(res Resource, now func() time.Time) string {
	for _, ts := range []*string{res.ModifiedAt, res.UpdatedAt, res.CreatedAt} {
		if ts != nil {
			return *ts
		}
	}
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(ISOTimeLayout)
}
