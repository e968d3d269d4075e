package organizations

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atriumhq/console/internal/middleware"
	"github.com/atriumhq/console/internal/models"
	"github.com/atriumhq/console/internal/tenant"
	"github.com/atriumhq/console/pkg/response"
	"github.com/atriumhq/console/pkg/storage"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates an organization handler. s3 may be nil when object
// storage is not configured; logo upload then returns an error.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// CreateRequest is the body for POST /organizations.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// UpdateRequest is the body for PUT /organizations/:id.
type UpdateRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// MemberRequest is the body for adding or updating a member.
type MemberRequest struct {
	UserID uuid.UUID   `json:"user_id" binding:"required"`
	Role   models.Role `json:"role" binding:"required"`
}

// Create handles POST /organizations. The creator becomes the organization's
// admin unless they are a global admin managing tenants from outside.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name and slug are required")
		return
	}
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		response.BadRequest(c, "slug must be lowercase letters, digits, and hyphens (2-64 chars)")
		return
	}
	if existing, err := h.repo.GetBySlug(c.Request.Context(), slug); err != nil {
		h.logger.Error("check slug", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	} else if existing != nil {
		response.Conflict(c, "slug already in use")
		return
	}

	org := &models.Organization{Name: strings.TrimSpace(req.Name), Slug: slug}
	if err := h.repo.Create(c.Request.Context(), org); err != nil {
		h.logger.Error("create organization", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}

	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if isAdmin, _ := c.Get(middleware.ContextIsGlobalAdmin); isAdmin != true {
		if err := h.repo.AddMember(c.Request.Context(), org.ID, userID, models.RoleOrganizationAdmin); err != nil {
			h.logger.Error("add creator membership", zap.Error(err))
			response.Internal(c, "failed to create organization")
			return
		}
	}
	response.Created(c, org)
}

// List handles GET /organizations. Global admins see every organization;
// everyone else sees only the organizations they belong to.
func (h *Handler) List(c *gin.Context) {
	var (
		list []models.Organization
		err  error
	)
	if isAdmin, _ := c.Get(middleware.ContextIsGlobalAdmin); isAdmin == true {
		list, err = h.repo.List(c.Request.Context())
	} else {
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		list, err = h.repo.ListForUser(c.Request.Context(), userID)
	}
	if err != nil {
		h.logger.Error("list organizations", zap.Error(err))
		response.Internal(c, "failed to list organizations")
		return
	}
	response.OK(c, list)
}

// Get handles GET /organizations/:id.
func (h *Handler) Get(c *gin.Context) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	org, err := h.repo.GetByID(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("get organization", zap.Error(err))
		response.Internal(c, "failed to get organization")
		return
	}
	if org == nil {
		response.NotFound(c, "organization not found")
		return
	}
	response.OK(c, org)
}

// Update handles PUT /organizations/:id. Requires org admin or global admin.
func (h *Handler) Update(c *gin.Context) {
	if !h.requireOrgAdmin(c) {
		return
	}
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name and slug are required")
		return
	}
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		response.BadRequest(c, "slug must be lowercase letters, digits, and hyphens (2-64 chars)")
		return
	}
	if existing, err := h.repo.GetBySlug(c.Request.Context(), slug); err != nil {
		h.logger.Error("check slug", zap.Error(err))
		response.Internal(c, "failed to update organization")
		return
	} else if existing != nil && existing.ID != orgID {
		response.Conflict(c, "slug already in use")
		return
	}
	org, err := h.repo.GetByID(c.Request.Context(), orgID)
	if err != nil || org == nil {
		response.NotFound(c, "organization not found")
		return
	}
	if err := h.repo.Update(c.Request.Context(), orgID, strings.TrimSpace(req.Name), slug, org.LogoURL); err != nil {
		h.logger.Error("update organization", zap.Error(err))
		response.Internal(c, "failed to update organization")
		return
	}
	org.Name = strings.TrimSpace(req.Name)
	org.Slug = slug
	response.OK(c, org)
}

// Delete handles DELETE /organizations/:id. Global admin only.
func (h *Handler) Delete(c *gin.Context) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	if err := h.repo.Delete(c.Request.Context(), orgID); err != nil {
		h.logger.Error("delete organization", zap.Error(err))
		response.Internal(c, "failed to delete organization")
		return
	}
	response.NoContent(c)
}

// UploadLogo handles POST /organizations/:id/logo (multipart form, field "file").
func (h *Handler) UploadLogo(c *gin.Context) {
	if !h.requireOrgAdmin(c) {
		return
	}
	if h.s3 == nil {
		response.Internal(c, "object storage is not configured")
		return
	}
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fileHeader.Size > storage.MaxImageFileSize {
		response.BadRequest(c, "file exceeds 5MB limit")
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidateImageFileType(contentType, fileHeader.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "unable to read file")
		return
	}
	defer f.Close()

	if contentType == "" {
		contentType = storage.ContentTypeForFilename(fileHeader.Filename)
	}
	key := storage.OrgLogoKey(orgID.String(), fileHeader.Filename)
	url, err := h.s3.Upload(c.Request.Context(), h.s3.LogosBucket(), key, contentType, f, fileHeader.Size)
	if err != nil {
		h.logger.Error("upload logo", zap.Error(err))
		response.Internal(c, "failed to upload logo")
		return
	}
	if err := h.repo.SetLogoURL(c.Request.Context(), orgID, url); err != nil {
		h.logger.Error("save logo url", zap.Error(err))
		response.Internal(c, "failed to save logo")
		return
	}
	response.OK(c, gin.H{"logo_url": url})
}

// ListMembers handles GET /organizations/:id/members.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	members, err := h.repo.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list members", zap.Error(err))
		response.Internal(c, "failed to list members")
		return
	}
	response.OK(c, members)
}

// AddMember handles POST /organizations/:id/members. Upserts, so it also
// changes an existing member's role.
func (h *Handler) AddMember(c *gin.Context) {
	if !h.requireOrgAdmin(c) {
		return
	}
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id and role are required")
		return
	}
	if !models.ValidMembershipRole(req.Role) {
		response.BadRequest(c, "invalid role")
		return
	}
	if err := h.repo.AddMember(c.Request.Context(), orgID, req.UserID, req.Role); err != nil {
		h.logger.Error("add member", zap.Error(err))
		response.Internal(c, "failed to add member")
		return
	}
	response.OK(c, gin.H{"organization_id": orgID, "user_id": req.UserID, "role": req.Role})
}

// RemoveMember handles DELETE /organizations/:id/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	if !h.requireOrgAdmin(c) {
		return
	}
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if err := h.repo.RemoveMember(c.Request.Context(), orgID, userID); err != nil {
		h.logger.Error("remove member", zap.Error(err))
		response.Internal(c, "failed to remove member")
		return
	}
	response.NoContent(c)
}

// requireOrgAdmin checks the role set by the org access middleware.
func (h *Handler) requireOrgAdmin(c *gin.Context) bool {
	role, _ := c.Get(tenant.ContextOrgRole)
	switch role {
	case models.RoleGlobalAdmin, models.RoleOrganizationAdmin:
		return true
	}
	response.Forbidden(c, "organization admin role required")
	return false
}
