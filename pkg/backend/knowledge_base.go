package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

type knowledgeBaseUpdate struct {
	ConnectionID        string         `json:"connection_id"`
	ConnectionSourceIDs []string       `json:"connection_source_ids"`
	WebsiteSources      []any          `json:"website_sources"`
	IndexingParams      map[string]any `json:"indexing_params"`
}

// UpdateKnowledgeBase replaces the knowledge base's source ids with sourceIDs.
// Ids missing from the list are dropped from the knowledge base.
func (c *Client) UpdateKnowledgeBase(ctx context.Context, session *Session, sourceIDs []string) error {
	kbID, err := session.RequireKnowledgeBase()
	if err != nil {
		return err
	}
	if sourceIDs == nil {
		sourceIDs = []string{}
	}

	resp, err := c.do(ctx, request{
		op:     "update KB",
		method: http.MethodPut,
		url:    c.url("/knowledge_bases/"+kbID, nil),
		token:  session.AccessToken,
		body: knowledgeBaseUpdate{
			ConnectionID:        session.ConnectionID,
			ConnectionSourceIDs: sourceIDs,
			WebsiteSources:      []any{},
			IndexingParams:      map[string]any{},
		},
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.upstreamError("update KB")
	}
	return nil
}

// TriggerSync starts an asynchronous sync job. Completion is not tracked.
func (c *Client) TriggerSync(ctx context.Context, session *Session) error {
	kbID, err := session.RequireKnowledgeBase()
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, request{
		op:     "trigger sync",
		method: http.MethodGet,
		url:    c.url("/knowledge_bases/sync/trigger/"+kbID+"/"+session.OrganizationID, nil),
		token:  session.AccessToken,
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.upstreamError("trigger sync")
	}
	return nil
}

// DeleteResponse is what the backend answered to a resource delete.
// Empty means there was no body (204 or zero-length).
type DeleteResponse struct {
	StatusCode int
	Body       []byte
}

// Empty reports whether the backend returned no body
func (r *DeleteResponse) Empty() bool {
	return r.StatusCode == http.StatusNoContent || len(r.Body) == 0
}

// JSON reports whether the body parses as JSON
func (r *DeleteResponse) JSON() bool {
	return !r.Empty() && json.Valid(r.Body)
}

// DeleteResource removes the resource at resourcePath from the knowledge base
func (c *Client) DeleteResource(ctx context.Context, session *Session, resourcePath string) (*DeleteResponse, error) {
	kbID, err := session.RequireKnowledgeBase()
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("resource_path", strings.TrimPrefix(resourcePath, "/"))

	resp, err := c.do(ctx, request{
		op:     "deindex",
		method: http.MethodDelete,
		url:    c.url("/knowledge_bases/"+kbID+"/resources", query),
		token:  session.AccessToken,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.upstreamError("deindex")
	}
	return &DeleteResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}
