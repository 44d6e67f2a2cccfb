package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beam-cloud/kbpicker/pkg/metrics"
	"github.com/beam-cloud/kbpicker/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultTimeout = 60 * time.Second

// Client talks to the connection and knowledge-base API on behalf of a session
type Client struct {
	BaseURL    string
	APIPrefix  string
	HTTPClient *http.Client
}

// NewClient creates a backend client from config
func NewClient(config types.BackendConfig) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(config.URL, "/"),
		APIPrefix:  config.APIPrefix,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// response is a fully read backend response
type response struct {
	StatusCode int
	Body       []byte
}

func (r *response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *response) upstreamError(op string) error {
	return &types.UpstreamError{Op: op, StatusCode: r.StatusCode, Body: string(r.Body)}
}

func (r *response) decode(result any) error {
	if err := json.Unmarshal(r.Body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// request describes a single backend call
type request struct {
	op      string
	method  string
	url     string
	token   string
	apiKey  string
	body    any
	headers map[string]string
}

func (c *Client) do(ctx context.Context, r request) (*response, error) {
	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", r.op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	if r.token != "" {
		(&oauth2.Token{AccessToken: r.token, TokenType: "Bearer"}).SetAuthHeader(req)
	}
	if r.apiKey != "" {
		req.Header.Set("Apikey", r.apiKey)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.RecordBackendRequest(r.op, 0, time.Since(start))
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	metrics.RecordBackendRequest(r.op, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", r.op, err)
	}

	log.Debug().
		Str("op", r.op).
		Str("method", r.method).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend request")

	return &response{StatusCode: resp.StatusCode, Body: data}, nil
}

// url joins the base URL with path and an optional query
func (c *Client) url(path string, query url.Values) string {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// apiURL is url with the API prefix applied
func (c *Client) apiURL(path string, query url.Values) string {
	return c.url(c.APIPrefix+path, query)
}
