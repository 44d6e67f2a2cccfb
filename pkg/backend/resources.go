package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/beam-cloud/kbpicker/pkg/types"
)

// ConnectionPage is one raw page of connection resources
type ConnectionPage struct {
	Data       []Resource `json:"data"`
	NextCursor *string    `json:"next_cursor"`
}

// ListChildren fetches one page of a folder's children from the connection.
// The resource_id filter is omitted for the root folder.
func (c *Client) ListChildren(ctx context.Context, session *Session, folderID string, pageSize int, cursor string) (*ConnectionPage, error) {
	query := url.Values{}
	if folderID != "" && folderID != types.RootFolderID {
		query.Set("resource_id", folderID)
	}
	query.Set("page_size", strconv.Itoa(pageSize))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	resp, err := c.do(ctx, request{
		op:     "list",
		method: http.MethodGet,
		url:    c.apiURL("/connections/"+session.ConnectionID+"/resources/children", query),
		token:  session.AccessToken,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.upstreamError("list")
	}

	var page ConnectionPage
	if err := resp.decode(&page); err != nil {
		return nil, err
	}
	if page.NextCursor != nil && *page.NextCursor == "" {
		page.NextCursor = nil
	}
	return &page, nil
}
