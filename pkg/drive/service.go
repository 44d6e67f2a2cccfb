package drive

import (
	"context"
	"time"

	"github.com/beam-cloud/kbpicker/pkg/backend"
	"github.com/beam-cloud/kbpicker/pkg/metrics"
	"github.com/beam-cloud/kbpicker/pkg/types"
	"github.com/rs/zerolog/log"
)

const defaultPageSize = 10

// SessionSource hands out the backend session
type SessionSource interface {
	Session(ctx context.Context) (*backend.Session, error)
	Reset()
}

// Service composes the backend calls behind the drive routes
type Service struct {
	client          *backend.Client
	sessions        SessionSource
	defaultPageSize int
	now             func() time.Time
}

// NewService creates a drive service
func NewService(client *backend.Client, sessions SessionSource, config types.DriveConfig) *Service {
	pageSize := config.DefaultPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Service{
		client:          client,
		sessions:        sessions,
		defaultPageSize: pageSize,
		now:             time.Now,
	}
}

// ResetSession forgets the backend session; the next call logs in again
func (s *Service) ResetSession() {
	s.sessions.Reset()
}

// ListRequest selects one page of a folder
type ListRequest struct {
	FolderID   string
	FolderPath *string // when set, knowledge-base status is merged into the page
	PageSize   int
	Cursor     string
}

// List returns one page of a folder. Knowledge-base status is best effort:
// if it can't be resolved the page is returned with mapper defaults.
func (s *Service) List(ctx context.Context, req ListRequest) (*types.Page, error) {
	session, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}

	raw, err := s.client.ListChildren(ctx, session, req.FolderID, pageSize, req.Cursor)
	if err != nil {
		return nil, err
	}

	items := backend.MapResources(raw.Data, s.now)
	if session.KnowledgeBaseID != "" && req.FolderPath != nil {
		items = s.mergeStatus(ctx, session, *req.FolderPath, items)
	}

	return &types.Page{Items: items, NextCursor: raw.NextCursor}, nil
}

func (s *Service) mergeStatus(ctx context.Context, session *backend.Session, folderPath string, items []types.DriveItem) []types.DriveItem {
	statuses, err := s.client.KnowledgeBaseStatus(ctx, session.AccessToken, session.KnowledgeBaseID, folderPath)
	if err != nil {
		metrics.RecordStatusMergeFailure()
		log.Warn().Err(err).Str("folder_path", folderPath).Msg("knowledge base status unavailable, listing without it")
		return items
	}
	return statuses.Merge(items)
}

// KnowledgeBaseStatus resolves the status map for a folder path
func (s *Service) KnowledgeBaseStatus(ctx context.Context, folderPath string) (types.StatusMap, error) {
	session, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}

	kbID, err := session.RequireKnowledgeBase()
	if err != nil {
		return nil, err
	}

	return s.client.KnowledgeBaseStatus(ctx, session.AccessToken, kbID, folderPath)
}

// Sync overwrites the knowledge base's sources with sourceIDs and triggers a sync job.
// The trigger is only sent once the update succeeded.
func (s *Service) Sync(ctx context.Context, sourceIDs []string) error {
	session, err := s.sessions.Session(ctx)
	if err != nil {
		return err
	}

	if err := s.client.UpdateKnowledgeBase(ctx, session, sourceIDs); err != nil {
		return err
	}
	if err := s.client.TriggerSync(ctx, session); err != nil {
		return err
	}

	log.Info().Int("sources", len(sourceIDs)).Msg("knowledge base sync triggered")
	return nil
}

// DeindexResult is the outcome of a de-index call.
// Exactly one of Item or Raw is set.
type DeindexResult struct {
	StatusCode int
	Item       *types.DriveItem
	Raw        []byte
	RawJSON    bool
}

// Deindex removes a resource from the knowledge base. When the backend sends
// no body, the result is a synthesized de-indexed item.
func (s *Service) Deindex(ctx context.Context, itemID, itemPath string) (*DeindexResult, error) {
	session, err := s.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DeleteResource(ctx, session, itemPath)
	if err != nil {
		return nil, err
	}

	log.Info().Str("item_id", itemID).Str("item_path", itemPath).Msg("resource removed from knowledge base")

	if resp.Empty() {
		item := DeindexedItem(itemID, itemPath, s.now)
		return &DeindexResult{StatusCode: resp.StatusCode, Item: &item}, nil
	}
	return &DeindexResult{StatusCode: resp.StatusCode, Raw: resp.Body, RawJSON: resp.JSON()}, nil
}

// Ready reports whether a backend session can be obtained
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.sessions.Session(ctx)
	return err
}

// DeindexedItem builds the item reported after a successful de-index
func DeindexedItem(itemID, itemPath string, now func() time.Time) types.DriveItem {
	if now == nil {
		now = time.Now
	}
	return types.DriveItem{
		ID:         itemID,
		Name:       "",
		Type:       types.ItemTypeFile,
		Path:       itemPath,
		ModifiedAt: now().UTC().Format(backend.ISOTimeLayout),
	}.WithStatus(types.StatusDeindexed)
}
