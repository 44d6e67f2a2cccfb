package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beam-cloud/kbpicker/pkg/types"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// newBackend fakes the identity provider and the drive API on one server
func newBackend(t *testing.T, logins *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		writeJSON(w, map[string]any{"access_token": "token-1"})
	})
	mux.HandleFunc("GET /organizations/me/current", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"org_id": "org-1"})
	})
	mux.HandleFunc("GET /connections", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": []map[string]any{{"connection_id": "conn-1"}}})
	})
	mux.HandleFunc("GET /connections/conn-1/resources/children", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		writeJSON(w, map[string]any{
			"data": []map[string]any{
				{"resource_id": "r1", "inode_type": "file", "inode_path": map[string]any{"path": "a.txt"}},
				{"resource_id": "r2", "inode_type": "directory", "inode_path": map[string]any{"path": "docs"}},
			},
			"next_cursor": nil,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(backendURL string) types.AppConfig {
	return types.AppConfig{
		Gateway: types.GatewayConfig{
			HTTP: types.HTTPConfig{
				Host: "127.0.0.1",
				Port: 0,
				CORS: types.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}},
			},
			ShutdownTimeout: time.Second,
		},
		Backend: types.BackendConfig{URL: backendURL, Timeout: 5 * time.Second},
		Auth: types.AuthConfig{
			URL:      backendURL,
			AnonKey:  "anon",
			Email:    "svc@example.com",
			Password: "secret",
		},
	}
}

func serve(gw *Gateway, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGatewayListsThroughOneSession(t *testing.T) {
	var logins atomic.Int32
	backend := newBackend(t, &logins)

	gw, err := NewGatewayWithConfig(testConfig(backend.URL))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := serve(gw, http.MethodPost, "/api/drive/list/", `{"folderId":"root"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var page types.Page
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		require.Len(t, page.Items, 2)
		assert.Equal(t, "/a.txt", page.Items[0].Path)
		assert.Equal(t, types.ItemTypeFolder, page.Items[1].Type)
		assert.Nil(t, page.NextCursor)
	}
	assert.Equal(t, int32(1), logins.Load())

	rec := serve(gw, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestGatewayWithoutKnowledgeBase(t *testing.T) {
	var logins atomic.Int32
	gw, err := NewGatewayWithConfig(testConfig(newBackend(t, &logins).URL))
	require.NoError(t, err)

	rec := serve(gw, http.MethodPost, "/api/drive/kb-status", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Knowledge Base not configured", rec.Body.String())

	rec = serve(gw, http.MethodPost, "/api/drive/sync", `{"connectionSourceIds":["r1"]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "PICKER_KNOWLEDGE_BASE_ID")
}

func TestGatewayMissingCredentials(t *testing.T) {
	config := testConfig("http://127.0.0.1:1")
	config.Auth.Password = ""

	gw, err := NewGatewayWithConfig(config)
	require.NoError(t, err)

	rec := serve(gw, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "PICKER_SERVICE_PASSWORD")

	rec = serve(gw, http.MethodPost, "/api/drive/list", `{"folderId":"root"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "PICKER_SERVICE_PASSWORD")
}

func TestGatewayMetrics(t *testing.T) {
	var logins atomic.Int32
	gw, err := NewGatewayWithConfig(testConfig(newBackend(t, &logins).URL))
	require.NoError(t, err)

	serve(gw, http.MethodPost, "/api/drive/list", `{}`)

	rec := serve(gw, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "picker_http_requests_total")
}

func TestGatewayStartAndShutdown(t *testing.T) {
	var logins atomic.Int32
	gw, err := NewGatewayWithConfig(testConfig(newBackend(t, &logins).URL))
	require.NoError(t, err)

	require.NoError(t, gw.StartAsync())
	resp, err := http.Get("http://" + gw.Addr() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	gw.Shutdown()
	_, err = http.Get("http://" + gw.Addr() + "/api/health")
	assert.Error(t, err)
}
