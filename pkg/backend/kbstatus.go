package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/beam-cloud/kbpicker/pkg/types"
	"github.com/rs/zerolog/log"
)

// KnowledgeBaseResource is one entry of a knowledge-base folder listing
type KnowledgeBaseResource struct {
	ResourceID string     `json:"resource_id"`
	Status     *string    `json:"status,omitempty"`
	IndexedAt  *string    `json:"indexed_at,omitempty"`
	InodePath  *InodePath `json:"inode_path,omitempty"`
	InodeType  string     `json:"inode_type,omitempty"`
	InodeID    string     `json:"inode_id,omitempty"`
}

func (r KnowledgeBaseResource) isIndexed() bool {
	return r.IndexedAt != nil && *r.IndexedAt != ""
}

// statusKey returns the id this entry is recorded under and its status.
// Directories are keyed by inode id, files by resource id.
func (r KnowledgeBaseResource) statusKey() (string, types.Status, bool) {
	if r.ResourceID == "" {
		return "", "", false
	}

	if r.InodeType == inodeTypeDirectory {
		if r.InodeID == "" {
			return "", "", false
		}
		if r.isIndexed() {
			return r.InodeID, types.StatusIndexed, true
		}
		return r.InodeID, types.StatusPending, true
	}

	if r.isIndexed() {
		return r.ResourceID, types.StatusIndexed, true
	}
	if r.Status != nil {
		return r.ResourceID, types.ParseStatus(*r.Status), true
	}
	return r.ResourceID, types.StatusPending, true
}

type knowledgeBasePage struct {
	Data       []KnowledgeBaseResource `json:"data"`
	NextCursor *string                 `json:"next_cursor"`
}

// KnowledgeBaseQueryPath converts a folder path into the form the knowledge-base endpoints expect
func KnowledgeBaseQueryPath(folderPath string) string {
	if folderPath == "" || folderPath == "/" {
		return "/"
	}
	return strings.TrimPrefix(folderPath, "/")
}

// KnowledgeBaseStatus walks every page of a knowledge-base folder and collects statuses.
// A non-2xx page ends the walk with what was gathered so far and no error; transport
// and decode failures return the partial map together with the error.
func (c *Client) KnowledgeBaseStatus(ctx context.Context, token, knowledgeBaseID, folderPath string) (types.StatusMap, error) {
	result := types.StatusMap{}
	path := KnowledgeBaseQueryPath(folderPath)

	var cursor string
	for pages := 0; ; pages++ {
		query := url.Values{}
		query.Set("resource_path", path)
		if cursor != "" {
			query.Set("cursor", cursor)
		}
		query.Set("_t", strconv.FormatInt(time.Now().UnixMilli(), 10))

		resp, err := c.do(ctx, request{
			op:     "kb status",
			method: http.MethodGet,
			url:    c.url("/knowledge_bases/"+knowledgeBaseID+"/resources/children", query),
			token:  token,
			headers: map[string]string{
				"Cache-Control": "no-cache",
				"Pragma":        "no-cache",
			},
		})
		if err != nil {
			return result, err
		}
		if !resp.ok() {
			log.Warn().
				Int("status", resp.StatusCode).
				Str("resource_path", path).
				Int("pages", pages).
				Msg("knowledge base status page failed, returning partial result")
			return result, nil
		}

		var page knowledgeBasePage
		if err := resp.decode(&page); err != nil {
			return result, err
		}

		for _, entry := range page.Data {
			if id, status, ok := entry.statusKey(); ok {
				result[id] = status
			}
		}

		next := ""
		if page.NextCursor != nil {
			next = *page.NextCursor
		}
		if next == "" || next == cursor {
			return result, nil
		}
		cursor = next
	}
}
