package picker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beam-cloud/kbpicker/pkg/backend"
	"github.com/beam-cloud/kbpicker/pkg/types"
	"github.com/rs/zerolog/log"
)

const (
	defaultGatewayURL = "http://localhost:1994"
	defaultPageSize   = 10
	defaultTimeout    = 60 * time.Second
)

// HTTPError is a non-2xx answer from the gateway
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

// Client calls the gateway's drive routes and merges cached knowledge-base status into listings
type Client struct {
	BaseURL    string
	PageSize   int
	HTTPClient *http.Client
	statuses   *StatusCache
	now        func() time.Time
}

// NewClient creates a gateway client. A nil cache gets an unbounded in-memory one.
func NewClient(config types.ClientConfig, statuses *StatusCache) *Client {
	baseURL := strings.TrimRight(config.GatewayURL, "/")
	if baseURL == "" {
		baseURL = defaultGatewayURL
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if statuses == nil {
		statuses = NewStatusCache(NewMemoryStatusStore(0, 0))
	}

	return &Client{
		BaseURL:    baseURL,
		PageSize:   pageSize,
		HTTPClient: &http.Client{Timeout: timeout},
		statuses:   statuses,
		now:        time.Now,
	}
}

type listRequest struct {
	FolderID   string  `json:"folderId"`
	FolderPath *string `json:"folderPath,omitempty"`
	PageSize   int     `json:"pageSize"`
	Cursor     *string `json:"cursor,omitempty"`
}

// ListPage fetches one page of a folder. When folderPath is set, the folder's
// knowledge-base status is taken from the cache and merged by id, then by name.
// A failed status lookup leaves the page as the gateway returned it.
func (c *Client) ListPage(ctx context.Context, folderID string, folderPath *string, cursor string) (*types.Page, error) {
	req := listRequest{FolderID: folderID, FolderPath: folderPath, PageSize: c.PageSize}
	if cursor != "" {
		req.Cursor = &cursor
	}

	var page types.Page
	if err := c.post(ctx, "/api/drive/list", req, &page); err != nil {
		return nil, err
	}
	if page.NextCursor != nil && *page.NextCursor == "" {
		page.NextCursor = nil
	}

	if folderPath == nil {
		return &page, nil
	}

	statuses, err := c.CachedStatus(ctx, *folderPath)
	if err != nil {
		log.Debug().Err(err).Str("folder_path", *folderPath).Msg("knowledge base status unavailable")
		return &page, nil
	}
	page.Items = statuses.Merge(page.Items)
	return &page, nil
}

type kbStatusRequest struct {
	FolderPath string `json:"folderPath"`
}

type kbStatusResponse struct {
	StatusByResourceID types.StatusMap `json:"statusByResourceId"`
}

// KBStatus fetches the status map for a folder path, bypassing the cache
func (c *Client) KBStatus(ctx context.Context, folderPath string) (types.StatusMap, error) {
	var resp kbStatusResponse
	if err := c.post(ctx, "/api/drive/kb-status", kbStatusRequest{FolderPath: folderPath}, &resp); err != nil {
		return nil, err
	}
	if resp.StatusByResourceID == nil {
		return types.StatusMap{}, nil
	}
	return resp.StatusByResourceID, nil
}

// CachedStatus is KBStatus behind the status cache
func (c *Client) CachedStatus(ctx context.Context, folderPath string) (types.StatusMap, error) {
	return c.statuses.Get(ctx, folderPath, c.KBStatus)
}

// InvalidateStatus drops the cached status map for a folder path
func (c *Client) InvalidateStatus(ctx context.Context, folderPath string) error {
	return c.statuses.Invalidate(ctx, folderPath)
}

// ClearStatus drops every cached status map
func (c *Client) ClearStatus(ctx context.Context) error {
	return c.statuses.Clear(ctx)
}

type syncRequest struct {
	ConnectionSourceIDs []string `json:"connectionSourceIds"`
}

// Sync replaces the knowledge base's sources with sourceIDs and starts indexing
func (c *Client) Sync(ctx context.Context, sourceIDs []string) error {
	if sourceIDs == nil {
		sourceIDs = []string{}
	}
	return c.post(ctx, "/api/drive/sync", syncRequest{ConnectionSourceIDs: sourceIDs}, nil)
}

type deindexRequest struct {
	ItemID   string `json:"itemId"`
	ItemPath string `json:"itemPath"`
}

// Deindex removes an item from the knowledge base. Whatever the gateway echoes,
// the caller gets the item back marked as de-indexed.
func (c *Client) Deindex(ctx context.Context, itemID, itemPath string) (types.DriveItem, error) {
	if err := c.post(ctx, "/api/drive/deindex", deindexRequest{ItemID: itemID, ItemPath: itemPath}, nil); err != nil {
		return types.DriveItem{}, err
	}
	return types.DriveItem{
		ID:         itemID,
		Type:       types.ItemTypeFile,
		Path:       itemPath,
		ModifiedAt: c.now().UTC().Format(backend.ISOTimeLayout),
	}.WithStatus(types.StatusDeindexed), nil
}

// Health checks the gateway's readiness route
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
