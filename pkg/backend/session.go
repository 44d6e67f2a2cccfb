package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/beam-cloud/kbpicker/pkg/metrics"
	"github.com/beam-cloud/kbpicker/pkg/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const defaultConnectionProvider = "gdrive"

// Session is the authenticated context every backend call runs under.
// It is never refreshed; an expired token shows up as 401s from the backend.
type Session struct {
	AccessToken     string
	OrganizationID  string
	ConnectionID    string
	KnowledgeBaseID string    // empty when no knowledge base is configured
	ExpiresAt       time.Time // zero when the token carries no exp claim
}

// RequireKnowledgeBase returns the knowledge-base id or a ConfigError
func (s *Session) RequireKnowledgeBase() (string, error) {
	if err := types.RequireValue("backend.knowledgeBaseId", s.KnowledgeBaseID); err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrKnowledgeBaseNotConfigured, err)
	}
	return s.KnowledgeBaseID, nil
}

// SessionProvider creates the session on first use and shares it afterwards.
// A failed bootstrap is not remembered, so the next call starts over.
type SessionProvider struct {
	client             *Client
	auth               types.AuthConfig
	backend            types.BackendConfig
	connectionProvider string

	mu      sync.RWMutex
	session *Session
	group   singleflight.Group
}

// NewSessionProvider creates a session provider
func NewSessionProvider(client *Client, auth types.AuthConfig, backend types.BackendConfig, connectionProvider string) *SessionProvider {
	if connectionProvider == "" {
		connectionProvider = defaultConnectionProvider
	}
	return &SessionProvider{
		client:             client,
		auth:               auth,
		backend:            backend,
		connectionProvider: connectionProvider,
	}
}

// Session returns the memoized session, creating it if needed.
// Concurrent callers share a single in-flight bootstrap.
func (p *SessionProvider) Session(ctx context.Context) (*Session, error) {
	if s := p.cached(); s != nil {
		return s, nil
	}

	v, err, _ := p.group.Do("session", func() (any, error) {
		if s := p.cached(); s != nil {
			return s, nil
		}

		// Other callers may be waiting on this flow; don't let one caller's cancellation fail them all.
		s, err := p.create(context.WithoutCancel(ctx))
		metrics.RecordSessionCreation(err == nil)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.session = s
		p.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Reset drops the memoized session
func (p *SessionProvider) Reset() {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
}

func (p *SessionProvider) cached() *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

func (p *SessionProvider) validate() error {
	required := []struct{ key, value string }{
		{"backend.url", p.backend.URL},
		{"auth.url", p.auth.URL},
		{"auth.password", p.auth.Password},
		{"auth.anonKey", p.auth.AnonKey},
		{"auth.email", p.auth.Email},
	}
	for _, r := range required {
		if err := types.RequireValue(r.key, r.value); err != nil {
			return err
		}
	}
	return nil
}

func (p *SessionProvider) create(ctx context.Context) (*Session, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	token, err := p.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	orgID, err := p.currentOrganization(ctx, token)
	if err != nil {
		return nil, err
	}

	connectionID, err := p.firstConnection(ctx, token)
	if err != nil {
		return nil, err
	}

	session := &Session{
		AccessToken:     token,
		OrganizationID:  orgID,
		ConnectionID:    connectionID,
		KnowledgeBaseID: p.backend.KnowledgeBaseID,
		ExpiresAt:       tokenExpiry(token),
	}

	log.Info().
		Str("org_id", orgID).
		Str("connection_id", connectionID).
		Str("knowledge_base_id", session.KnowledgeBaseID).
		Time("expires_at", session.ExpiresAt).
		Msg("backend session created")

	return session, nil
}

type passwordGrantRequest struct {
	Email              string         `json:"email"`
	Password           string         `json:"password"`
	GotrueMetaSecurity map[string]any `json:"gotrue_meta_security"`
}

func (p *SessionProvider) authenticate(ctx context.Context) (string, error) {
	resp, err := p.client.do(ctx, request{
		op:     "authenticate",
		method: http.MethodPost,
		url:    strings.TrimRight(p.auth.URL, "/") + "/auth/v1/token?grant_type=password",
		apiKey: p.auth.AnonKey,
		body: passwordGrantRequest{
			Email:              p.auth.Email,
			Password:           p.auth.Password,
			GotrueMetaSecurity: map[string]any{},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to authenticate: %w", err)
	}
	if !resp.ok() {
		return "", fmt.Errorf("failed to authenticate. Status=%d Body=%s", resp.StatusCode, resp.Body)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := resp.decode(&result); err != nil {
		return "", fmt.Errorf("failed to authenticate: %w", err)
	}
	if result.AccessToken == "" {
		return "", errors.New("failed to authenticate: response carried no access token")
	}
	return result.AccessToken, nil
}

func (p *SessionProvider) currentOrganization(ctx context.Context, token string) (string, error) {
	resp, err := p.client.do(ctx, request{
		op:     "current organization",
		method: http.MethodGet,
		url:    p.client.url("/organizations/me/current", nil),
		token:  token,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch current organization: %w", err)
	}
	if !resp.ok() {
		return "", fmt.Errorf("failed to fetch current organization. Status=%d Body=%s", resp.StatusCode, resp.Body)
	}

	var result struct {
		OrgID string `json:"org_id"`
	}
	if err := resp.decode(&result); err != nil {
		return "", fmt.Errorf("failed to fetch current organization: %w", err)
	}
	return result.OrgID, nil
}

func (p *SessionProvider) firstConnection(ctx context.Context, token string) (string, error) {
	query := url.Values{}
	query.Set("connection_provider", p.connectionProvider)
	query.Set("limit", "1")

	resp, err := p.client.do(ctx, request{
		op:     "list connections",
		method: http.MethodGet,
		url:    p.client.apiURL("/connections", query),
		token:  token,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch Google Drive connections: %w", err)
	}
	if !resp.ok() {
		return "", fmt.Errorf("failed to fetch Google Drive connections. Status=%d Body=%s", resp.StatusCode, resp.Body)
	}

	var result struct {
		Data []struct {
			ConnectionID string `json:"connection_id"`
		} `json:"data"`
	}
	if err := resp.decode(&result); err != nil {
		return "", fmt.Errorf("failed to fetch Google Drive connections: %w", err)
	}
	if len(result.Data) == 0 {
		return "", errors.New("no Google Drive connections found for this account")
	}
	return result.Data[0].ConnectionID, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the backend does the verifying
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Debug().Err(err).Msg("access token is not a parseable jwt")
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
