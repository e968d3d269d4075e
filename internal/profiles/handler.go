package profiles

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atriumhq/console/internal/middleware"
	"github.com/atriumhq/console/internal/models"
	"github.com/atriumhq/console/pkg/response"
	"github.com/atriumhq/console/pkg/storage"
)

// Handler handles profile HTTP endpoints.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a profile handler. s3 may be nil.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// UpdateRequest is the body for PUT /profile.
type UpdateRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

// AdminUpdateRequest is the body for PUT /admin/profiles/:userId.
type AdminUpdateRequest struct {
	IsGlobalAdmin *bool `json:"is_global_admin"`
	OTPEnabled    *bool `json:"otp_enabled"`
}

// Me handles GET /profile.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	u, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("get profile", zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	if u == nil {
		response.NotFound(c, "profile not found")
		return
	}
	response.OK(c, u)
}

// Update handles PUT /profile.
func (h *Handler) Update(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "display_name is required")
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		response.BadRequest(c, "display_name is required")
		return
	}
	if err := h.repo.UpdateDisplayName(c.Request.Context(), userID, name); err != nil {
		h.logger.Error("update profile", zap.Error(err))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, gin.H{"display_name": name})
}

// UploadAvatar handles POST /profile/avatar (multipart form, field "file").
func (h *Handler) UploadAvatar(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "object storage is not configured")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

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
	key := storage.AvatarKey(userID.String(), fileHeader.Filename)
	url, err := h.s3.Upload(c.Request.Context(), h.s3.AvatarsBucket(), key, contentType, f, fileHeader.Size)
	if err != nil {
		h.logger.Error("upload avatar", zap.Error(err))
		response.Internal(c, "failed to upload avatar")
		return
	}
	if err := h.repo.SetAvatarURL(c.Request.Context(), userID, url); err != nil {
		h.logger.Error("save avatar url", zap.Error(err))
		response.Internal(c, "failed to save avatar")
		return
	}
	response.OK(c, gin.H{"avatar_url": url})
}

// List handles GET /admin/profiles. Global admin only (route gate).
func (h *Handler) List(c *gin.Context) {
	users, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list profiles", zap.Error(err))
		response.Internal(c, "failed to list profiles")
		return
	}
	out := make([]models.UserPublic, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToPublic())
	}
	response.OK(c, out)
}

// AdminUpdate handles PUT /admin/profiles/:userId. Global admin only (route gate).
func (h *Handler) AdminUpdate(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req AdminUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	if req.IsGlobalAdmin != nil {
		// An admin revoking their own flag would lock them out mid-session.
		callerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		if targetID == callerID && !*req.IsGlobalAdmin {
			response.BadRequest(c, "cannot revoke your own admin access")
			return
		}
		if err := h.repo.SetGlobalAdmin(c.Request.Context(), targetID, *req.IsGlobalAdmin); err != nil {
			h.logger.Error("set global admin", zap.Error(err))
			response.Internal(c, "failed to update profile")
			return
		}
	}
	if req.OTPEnabled != nil {
		if err := h.repo.SetOTPEnabled(c.Request.Context(), targetID, *req.OTPEnabled); err != nil {
			h.logger.Error("set otp flag", zap.Error(err))
			response.Internal(c, "failed to update profile")
			return
		}
	}
	u, err := h.repo.GetByID(c.Request.Context(), targetID)
	if err != nil || u == nil {
		response.NotFound(c, "profile not found")
		return
	}
	response.OK(c, u.ToPublic())
}
