package apps

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/atriumhq/console/internal/chat"
	"github.com/atriumhq/console/internal/models"
	"github.com/atriumhq/console/internal/tenant"
	"github.com/atriumhq/console/pkg/response"
)

// Handler handles app catalog and per-organization activation endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an apps handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// ConfigureRequest is the body for PUT /organizations/:id/apps/:appType.
type ConfigureRequest struct {
	Enabled  bool            `json:"enabled"`
	Settings json.RawMessage `json:"settings" binding:"required"`
}

// ListAvailable handles GET /apps.
func (h *Handler) ListAvailable(c *gin.Context) {
	list, err := h.repo.ListAvailable(c.Request.Context())
	if err != nil {
		h.logger.Error("list available apps", zap.Error(err))
		response.Internal(c, "failed to list apps")
		return
	}
	response.OK(c, list)
}

// ListForOrganization handles GET /organizations/:id/apps. Settings blobs are
// redacted before leaving the server.
func (h *Handler) ListForOrganization(c *gin.Context) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	list, err := h.repo.ListForOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list organization apps", zap.Error(err))
		response.Internal(c, "failed to list apps")
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, a := range list {
		out = append(out, redactedAppView(a))
	}
	response.OK(c, out)
}

// Configure handles PUT /organizations/:id/apps/:appType. Settings are
// validated by the owning feature before they are stored.
func (h *Handler) Configure(c *gin.Context) {
	if !requireOrgAdmin(c) {
		return
	}
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	appType := c.Param("appType")

	catalog, err := h.repo.GetAvailable(c.Request.Context(), appType)
	if err != nil {
		h.logger.Error("get app catalog entry", zap.Error(err))
		response.Internal(c, "failed to configure app")
		return
	}
	if catalog == nil || !catalog.Enabled {
		response.NotFound(c, "app is not available")
		return
	}

	var req ConfigureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "settings are required")
		return
	}

	if appType == models.AppTypeAIChat {
		if _, err := chat.ParseConfig(req.Enabled, req.Settings); err != nil {
			response.BadRequest(c, "invalid chat settings: endpoint_url, model, and max_output_tokens are required")
			return
		}
	}

	a, err := h.repo.Upsert(c.Request.Context(), orgID, appType, req.Enabled, req.Settings)
	if err != nil {
		h.logger.Error("upsert organization app", zap.Error(err))
		response.Internal(c, "failed to configure app")
		return
	}
	response.OK(c, redactedAppView(*a))
}

// SetEnabled handles POST /organizations/:id/apps/:appType/enable and /disable.
func (h *Handler) SetEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireOrgAdmin(c) {
			return
		}
		orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
		appType := c.Param("appType")
		if err := h.repo.SetEnabled(c.Request.Context(), orgID, appType, enabled); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				response.NotFound(c, "app is not configured for this organization")
				return
			}
			h.logger.Error("set app enabled", zap.Error(err))
			response.Internal(c, "failed to update app")
			return
		}
		response.OK(c, gin.H{"app_type": appType, "enabled": enabled})
	}
}

// redactedAppView strips secrets from the settings blob. For the chat app the
// API key is replaced with a presence flag; unknown app types pass through.
func redactedAppView(a models.OrganizationApp) gin.H {
	view := gin.H{
		"id":              a.ID,
		"organization_id": a.OrganizationID,
		"app_type":        a.AppType,
		"enabled":         a.Enabled,
		"created_at":      a.CreatedAt,
		"updated_at":      a.UpdatedAt,
	}
	if a.AppType == models.AppTypeAIChat {
		if cfg, err := chat.ParseConfig(a.Enabled, a.Settings); err == nil {
			view["settings"] = cfg.Redacted()
			return view
		}
		view["settings"] = gin.H{}
		return view
	}
	view["settings"] = a.Settings
	return view
}

func requireOrgAdmin(c *gin.Context) bool {
	role, _ := c.Get(tenant.ContextOrgRole)
	switch role {
	case models.RoleGlobalAdmin, models.RoleOrganizationAdmin:
		return true
	}
	response.Forbidden(c, "organization admin role required")
	return false
}
