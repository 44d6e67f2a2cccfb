package apiv1

import (
	"context"
	"errors"
	"net/http"

	"github.com/beam-cloud/kbpicker/pkg/drive"
	"github.com/beam-cloud/kbpicker/pkg/types"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// DriveService is the behaviour the drive routes proxy to
type DriveService interface {
	List(ctx context.Context, req drive.ListRequest) (*types.Page, error)
	KnowledgeBaseStatus(ctx context.Context, folderPath string) (types.StatusMap, error)
	Sync(ctx context.Context, sourceIDs []string) error
	Deindex(ctx context.Context, itemID, itemPath string) (*drive.DeindexResult, error)
	ResetSession()
}

type DriveGroup struct {
	g       *echo.Group
	service DriveService
}

func NewDriveGroup(g *echo.Group, service DriveService) *DriveGroup {
	dg := &DriveGroup{g: g, service: service}
	dg.g.POST("/list", dg.List)
	dg.g.POST("/kb-status", dg.KnowledgeBaseStatus)
	dg.g.POST("/sync", dg.Sync)
	dg.g.POST("/deindex", dg.Deindex)
	return dg
}

type ListRequest struct {
	FolderID   string  `json:"folderId"`
	FolderPath *string `json:"folderPath,omitempty"`
	PageSize   int     `json:"pageSize,omitempty"`
	Cursor     *string `json:"cursor,omitempty"`
}

type KBStatusRequest struct {
	FolderPath *string `json:"folderPath,omitempty"`
}

type KBStatusResponse struct {
	StatusByResourceID types.StatusMap `json:"statusByResourceId"`
}

type SyncRequest struct {
	ConnectionSourceIDs *[]string `json:"connectionSourceIds"`
}

type SyncResponse struct {
	OK bool `json:"ok"`
}

type DeindexRequest struct {
	ItemID   string  `json:"itemId"`
	ItemPath *string `json:"itemPath"`
}

func (dg *DriveGroup) List(c echo.Context) error {
	var req ListRequest
	if err := c.Bind(&req); err != nil || req.FolderID == "" {
		return TextResponse(c, http.StatusBadRequest, msgInvalidPayload)
	}

	listReq := drive.ListRequest{
		FolderID:   req.FolderID,
		FolderPath: req.FolderPath,
		PageSize:   req.PageSize,
	}
	if req.Cursor != nil {
		listReq.Cursor = *req.Cursor
	}

	page, err := dg.service.List(c.Request().Context(), listReq)
	if err != nil {
		return dg.proxyError(c, "list", err)
	}
	if page.Items == nil {
		page.Items = []types.DriveItem{}
	}
	return c.JSON(http.StatusOK, page)
}

func (dg *DriveGroup) KnowledgeBaseStatus(c echo.Context) error {
	// The body is optional; a missing or unreadable one means the root folder.
	var req KBStatusRequest
	_ = c.Bind(&req)

	folderPath := ""
	if req.FolderPath != nil {
		folderPath = *req.FolderPath
	}

	statuses, err := dg.service.KnowledgeBaseStatus(c.Request().Context(), folderPath)
	if err != nil {
		if errors.Is(err, types.ErrKnowledgeBaseNotConfigured) {
			return TextResponse(c, http.StatusBadRequest, msgKBNotConfigured)
		}
		log.Error().Err(err).Str("folder_path", folderPath).Msg("knowledge base status failed")
		return TextResponse(c, http.StatusInternalServerError, msgServerError)
	}
	return c.JSON(http.StatusOK, KBStatusResponse{StatusByResourceID: statuses})
}

func (dg *DriveGroup) Sync(c echo.Context) error {
	var req SyncRequest
	if err := c.Bind(&req); err != nil || req.ConnectionSourceIDs == nil {
		return TextResponse(c, http.StatusBadRequest, msgInvalidPayload)
	}

	if err := dg.service.Sync(c.Request().Context(), *req.ConnectionSourceIDs); err != nil {
		return dg.proxyError(c, "sync", err)
	}
	return c.JSON(http.StatusOK, SyncResponse{OK: true})
}

func (dg *DriveGroup) Deindex(c echo.Context) error {
	var req DeindexRequest
	if err := c.Bind(&req); err != nil || req.ItemID == "" || req.ItemPath == nil {
		return TextResponse(c, http.StatusBadRequest, msgInvalidPayload)
	}

	result, err := dg.service.Deindex(c.Request().Context(), req.ItemID, *req.ItemPath)
	if err != nil {
		return dg.proxyError(c, "deindex", err)
	}

	switch {
	case result.Item != nil:
		return c.JSON(http.StatusOK, result.Item)
	case result.RawJSON:
		return c.JSONBlob(result.StatusCode, result.Raw)
	default:
		return c.Blob(result.StatusCode, echo.MIMETextPlainCharsetUTF8, result.Raw)
	}
}

// proxyError passes backend failures through with their status; anything else is a 500
func (dg *DriveGroup) proxyError(c echo.Context, op string, err error) error {
	var upstream *types.UpstreamError
	if errors.As(err, &upstream) {
		log.Warn().Str("op", op).Int("status", upstream.StatusCode).Msg("backend rejected drive request")
		if upstream.IsUnauthorized() {
			log.Error().Str("op", op).Msg("session token rejected, logging in again on the next request")
			dg.service.ResetSession()
		}
		return TextResponse(c, upstream.StatusCode, upstream.Message())
	}

	log.Error().Err(err).Str("op", op).Msg("drive request failed")
	return TextResponse(c, http.StatusInternalServerError, err.Error())
}
