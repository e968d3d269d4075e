package settings

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atriumhq/console/pkg/response"
	"github.com/atriumhq/console/pkg/storage"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Handler handles site branding endpoints. Reads are open to all
// authenticated users; writes are gated to global admins at the route level.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a settings handler. s3 may be nil.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// UpdateRequest is the body for PUT /admin/settings.
type UpdateRequest struct {
	SiteName       string `json:"site_name" binding:"required"`
	PrimaryColor   string `json:"primary_color" binding:"required"`
	SecondaryColor string `json:"secondary_color" binding:"required"`
}

// Get handles GET /settings.
func (h *Handler) Get(c *gin.Context) {
	s, err := h.repo.Get(c.Request.Context())
	if err != nil {
		h.logger.Error("get site settings", zap.Error(err))
		response.Internal(c, "failed to load site settings")
		return
	}
	response.OK(c, s)
}

// Update handles PUT /admin/settings.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "site_name, primary_color, and secondary_color are required")
		return
	}
	if !hexColorPattern.MatchString(req.PrimaryColor) || !hexColorPattern.MatchString(req.SecondaryColor) {
		response.BadRequest(c, "colors must be hex like #1a2b3c")
		return
	}
	name := strings.TrimSpace(req.SiteName)
	if name == "" {
		response.BadRequest(c, "site_name is required")
		return
	}
	if err := h.repo.Update(c.Request.Context(), name, req.PrimaryColor, req.SecondaryColor); err != nil {
		h.logger.Error("update site settings", zap.Error(err))
		response.Internal(c, "failed to update site settings")
		return
	}
	s, err := h.repo.Get(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load site settings")
		return
	}
	response.OK(c, s)
}

// UploadLogo handles POST /admin/settings/logo (multipart form, field "file").
func (h *Handler) UploadLogo(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "object storage is not configured")
		return
	}
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
	key := storage.SiteLogoKey(fileHeader.Filename)
	url, err := h.s3.Upload(c.Request.Context(), h.s3.LogosBucket(), key, contentType, f, fileHeader.Size)
	if err != nil {
		h.logger.Error("upload site logo", zap.Error(err))
		response.Internal(c, "failed to upload logo")
		return
	}
	if err := h.repo.SetLogoURL(c.Request.Context(), url); err != nil {
		h.logger.Error("save site logo url", zap.Error(err))
		response.Internal(c, "failed to save logo")
		return
	}
	response.OK(c, gin.H{"logo_url": url})
}
