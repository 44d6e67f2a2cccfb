package picker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beam-cloud/kbpicker/pkg/types"
)

// fakeGateway answers the drive routes and records request bodies per path
type fakeGateway struct {
	*httptest.Server
	mu     sync.Mutex
	bodies map[string][]map[string]any
}

func newFakeGateway(t *testing.T, routes map[string]http.HandlerFunc) *fakeGateway {
	t.Helper()
	gw := &fakeGateway{bodies: make(map[string][]map[string]any)}
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		handler := handler
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			gw.mu.Lock()
			gw.bodies[r.URL.Path] = append(gw.bodies[r.URL.Path], body)
			gw.mu.Unlock()
			handler(w, r)
		})
	}
	gw.Server = httptest.NewServer(mux)
	t.Cleanup(gw.Close)
	return gw
}

func (gw *fakeGateway) requests(path string) []map[string]any {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return gw.bodies[path]
}

func (gw *fakeGateway) client() *Client {
	return NewClient(types.ClientConfig{GatewayURL: gw.URL + "/", PageSize: 3, Timeout: 5 * time.Second}, nil)
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

const listBody = `{"items":[
	{"id":"a","name":"a.txt","type":"file","parentId":null,"path":"/docs/a.txt","modifiedAt":"2024-01-01T00:00:00.000Z","indexed":false,"status":"not_indexed"},
	{"id":"b","name":"b.txt","type":"file","parentId":null,"path":"/docs/b.txt","modifiedAt":"2024-01-01T00:00:00.000Z","indexed":false,"status":"not_indexed"}
],"nextCursor":""}`

func TestListPageMergesCachedStatus(t *testing.T) {
	gw := newFakeGateway(t, map[string]http.HandlerFunc{
		"POST /api/drive/list":      respond(http.StatusOK, listBody),
		"POST /api/drive/kb-status": respond(http.StatusOK, `{"statusByResourceId":{"a":"indexed","b.txt":"pending"}}`),
	})
	client := gw.client()
	ctx := context.Background()
	folderPath := "docs"

	page, err := client.ListPage(ctx, "f1", &folderPath, "")
	require.NoError(t, err)
	assert.Nil(t, page.NextCursor)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].Indexed)
	assert.Equal(t, types.StatusPending, page.Items[1].Status)

	_, err = client.ListPage(ctx, "f1", &folderPath, "c2")
	require.NoError(t, err)

	lists := gw.requests("/api/drive/list")
	require.Len(t, lists, 2)
	assert.Equal(t, "f1", lists[0]["folderId"])
	assert.Equal(t, "docs", lists[0]["folderPath"])
	assert.Equal(t, float64(3), lists[0]["pageSize"])
	assert.NotContains(t, lists[0], "cursor")
	assert.Equal(t, "c2", lists[1]["cursor"])

	statusReqs := gw.requests("/api/drive/kb-status")
	require.Len(t, statusReqs, 1)
	assert.Equal(t, "docs", statusReqs[0]["folderPath"])

	require.NoError(t, client.InvalidateStatus(ctx, folderPath))
	_, err = client.ListPage(ctx, "f1", &folderPath, "")
	require.NoError(t, err)
	assert.Len(t, gw.requests("/api/drive/kb-status"), 2)
}

func TestListPageWithoutFolderPath(t *testing.T) {
	gw := newFakeGateway(t, map[string]http.HandlerFunc{
		"POST /api/drive/list": respond(http.StatusOK, listBody),
	})

	page, err := gw.client().ListPage(context.Background(), "root", nil, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotContains(t, gw.requests("/api/drive/list")[0], "folderPath")
	assert.Empty(t, gw.requests("/api/drive/kb-status"))
}

func TestListPageStatusFailureIsRetried(t *testing.T) {
	var calls int
	gw := newFakeGateway(t, map[string]http.HandlerFunc{
		"POST /api/drive/list": respond(http.StatusOK, listBody),
		"POST /api/drive/kb-status": func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				http.Error(w, "Knowledge Base not configured", http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"statusByResourceId":{"a":"indexed"}}`))
		},
	})
	client := gw.client()
	folderPath := ""

	page, err := client.ListPage(context.Background(), "root", &folderPath, "")
	require.NoError(t, err)
	assert.False(t, page.Items[0].Indexed)

	page, err = client.ListPage(context.Background(), "root", &folderPath, "")
	require.NoError(t, err)
	assert.True(t, page.Items[0].Indexed)
	assert.Equal(t, 2, calls)
}

func TestClientHTTPError(t *testing.T) {
	gw := newFakeGateway(t, map[string]http.HandlerFunc{
		"POST /api/drive/list": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
		},
		"POST /api/drive/sync": respond(http.StatusConflict, ""),
	})
	client := gw.client()

	_, err := client.ListPage(context.Background(), "", nil, "")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, "Invalid payload", httpErr.Body)
	assert.Equal(t, "gateway returned 400: Invalid payload", err.Error())

	err = client.Sync(context.Background(), []string{"a"})
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "gateway returned 409", err.Error())
}

func TestClientSyncSendsEmptyList(t *testing.T) {
	gw := newFakeGateway(t, map[string]http.HandlerFunc{
		"POST /api/drive/sync": respond(http.StatusOK, `{"ok":true}`),
	})

	require.NoError(t, gw.client().Sync(context.Background(), nil))
	assert.Equal(t, []any{}, gw.requests("/api/drive/sync")[0]["connectionSourceIds"])
}

func TestClientDeindex(t *testing.T) {
	gw := newFakeGateway(t, map[string]http.HandlerFunc{
		"POST /api/drive/deindex": respond(http.StatusOK, `{"whatever":"the backend said"}`),
	})
	client := gw.client()
	client.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	item, err := client.Deindex(context.Background(), "r9", "/a/b.txt")
	require.NoError(t, err)

	assert.Equal(t, types.DriveItem{
		ID:         "r9",
		Type:       types.ItemTypeFile,
		Path:       "/a/b.txt",
		ModifiedAt: "2024-05-06T07:08:09.000Z",
		Indexed:    false,
		Status:     types.StatusDeindexed,
	}, item)

	body := gw.requests("/api/drive/deindex")[0]
	assert.Equal(t, "r9", body["itemId"])
	assert.Equal(t, "/a/b.txt", body["itemPath"])
}

func TestClientHealth(t *testing.T) {
	gw := newFakeGateway(t, map[string]http.HandlerFunc{
		"GET /api/health": respond(http.StatusServiceUnavailable, `{"status":"not ok"}`),
	})

	err := gw.client().Health(context.Background())
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(types.ClientConfig{}, nil)
	assert.Equal(t, "http://localhost:1994", client.BaseURL)
	assert.Equal(t, 10, client.PageSize)
	assert.Equal(t, 60*time.Second, client.HTTPClient.Timeout)
}
