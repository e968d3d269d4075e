package links

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atriumhq/console/internal/models"
	"github.com/atriumhq/console/internal/tenant"
	"github.com/atriumhq/console/pkg/response"
)

// Handler handles link directory and top bar link endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a links handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// LinkRequest is the body for creating or updating a directory link.
type LinkRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	URL         string `json:"url" binding:"required"`
	LogoURL     string `json:"logo_url"`
}

// TopBarLinkRequest is the body for creating or updating a top bar link.
type TopBarLinkRequest struct {
	Label    string `json:"label" binding:"required"`
	URL      string `json:"url" binding:"required"`
	IconName string `json:"icon_name"`
	Position int    `json:"position"`
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Create handles POST /organizations/:id/links.
func (h *Handler) Create(c *gin.Context) {
	if !requireOrgAdmin(c) {
		return
	}
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title and url are required")
		return
	}
	if !validHTTPURL(req.URL) {
		response.BadRequest(c, "url must be http or https")
		return
	}
	link := &models.Link{
		OrganizationID: orgID,
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		URL:            req.URL,
		LogoURL:        req.LogoURL,
	}
	if err := h.repo.Create(c.Request.Context(), link); err != nil {
		h.logger.Error("create link", zap.Error(err))
		response.Internal(c, "failed to create link")
		return
	}
	response.Created(c, link)
}

// List handles GET /organizations/:id/links.
func (h *Handler) List(c *gin.Context) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	list, err := h.repo.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list links", zap.Error(err))
		response.Internal(c, "failed to list links")
		return
	}
	response.OK(c, list)
}

// Update handles PUT /organizations/:id/links/:linkId.
func (h *Handler) Update(c *gin.Context) {
	if !requireOrgAdmin(c) {
		return
	}
	link, ok := h.linkInOrg(c)
	if !ok {
		return
	}
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title and url are required")
		return
	}
	if !validHTTPURL(req.URL) {
		response.BadRequest(c, "url must be http or https")
		return
	}
	link.Title = strings.TrimSpace(req.Title)
	link.Description = strings.TrimSpace(req.Description)
	link.URL = req.URL
	link.LogoURL = req.LogoURL
	if err := h.repo.Update(c.Request.Context(), link); err != nil {
		h.logger.Error("update link", zap.Error(err))
		response.Internal(c, "failed to update link")
		return
	}
	response.OK(c, link)
}

// Delete handles DELETE /organizations/:id/links/:linkId.
func (h *Handler) Delete(c *gin.Context) {
	if !requireOrgAdmin(c) {
		return
	}
	link, ok := h.linkInOrg(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), link.ID); err != nil {
		h.logger.Error("delete link", zap.Error(err))
		response.Internal(c, "failed to delete link")
		return
	}
	response.NoContent(c)
}

// ListTopBar handles GET /topbar-links. Public to any authenticated user.
func (h *Handler) ListTopBar(c *gin.Context) {
	list, err := h.repo.ListTopBarLinks(c.Request.Context())
	if err != nil {
		h.logger.Error("list topbar links", zap.Error(err))
		response.Internal(c, "failed to list top bar links")
		return
	}
	response.OK(c, list)
}

// CreateTopBar handles POST /admin/topbar-links. Global admin only (route gate).
func (h *Handler) CreateTopBar(c *gin.Context) {
	var req TopBarLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "label and url are required")
		return
	}
	if !validHTTPURL(req.URL) {
		response.BadRequest(c, "url must be http or https")
		return
	}
	link := &models.TopBarLink{
		Label:    strings.TrimSpace(req.Label),
		URL:      req.URL,
		IconName: req.IconName,
		Position: req.Position,
	}
	if err := h.repo.CreateTopBarLink(c.Request.Context(), link); err != nil {
		h.logger.Error("create topbar link", zap.Error(err))
		response.Internal(c, "failed to create top bar link")
		return
	}
	response.Created(c, link)
}

// UpdateTopBar handles PUT /admin/topbar-links/:linkId.
func (h *Handler) UpdateTopBar(c *gin.Context) {
	linkID, err := uuid.Parse(c.Param("linkId"))
	if err != nil {
		response.BadRequest(c, "invalid link id")
		return
	}
	var req TopBarLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "label and url are required")
		return
	}
	if !validHTTPURL(req.URL) {
		response.BadRequest(c, "url must be http or https")
		return
	}
	link := &models.TopBarLink{
		ID:       linkID,
		Label:    strings.TrimSpace(req.Label),
		URL:      req.URL,
		IconName: req.IconName,
		Position: req.Position,
	}
	if err := h.repo.UpdateTopBarLink(c.Request.Context(), link); err != nil {
		h.logger.Error("update topbar link", zap.Error(err))
		response.Internal(c, "failed to update top bar link")
		return
	}
	response.OK(c, link)
}

// DeleteTopBar handles DELETE /admin/topbar-links/:linkId.
func (h *Handler) DeleteTopBar(c *gin.Context) {
	linkID, err := uuid.Parse(c.Param("linkId"))
	if err != nil {
		response.BadRequest(c, "invalid link id")
		return
	}
	if err := h.repo.DeleteTopBarLink(c.Request.Context(), linkID); err != nil {
		h.logger.Error("delete topbar link", zap.Error(err))
		response.Internal(c, "failed to delete top bar link")
		return
	}
	response.NoContent(c)
}

func (h *Handler) linkInOrg(c *gin.Context) (*models.Link, bool) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	linkID, err := uuid.Parse(c.Param("linkId"))
	if err != nil {
		response.BadRequest(c, "invalid link id")
		return nil, false
	}
	link, err := h.repo.GetByID(c.Request.Context(), linkID)
	if err != nil {
		h.logger.Error("get link", zap.Error(err))
		response.Internal(c, "failed to get link")
		return nil, false
	}
	if link == nil || link.OrganizationID != orgID {
		response.NotFound(c, "link not found")
		return nil, false
	}
	return link, true
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
