package tenant

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atriumhq/console/pkg/response"
)

// Handler exposes tenant resolution over HTTP.
type Handler struct {
	resolver *Resolver
	logger   *zap.Logger
}

// NewHandler creates a tenant handler.
func NewHandler(resolver *Resolver, logger *zap.Logger) *Handler {
	return &Handler{resolver: resolver, logger: logger}
}

// SwitchRequest is the body for POST /tenant/switch.
type SwitchRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" binding:"required"`
}

// Resolve handles GET /tenant: resolves the active tenant context for the session.
func (h *Handler) Resolve(c *gin.Context) {
	tc, err := h.resolver.Resolve(c.Request.Context(), SessionFrom(c))
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			response.Forbidden(c, "no organization access")
			return
		}
		h.logger.Error("resolve tenant", zap.Error(err))
		response.Internal(c, "failed to resolve organization context")
		return
	}
	response.OK(c, tc)
}

// Switch handles POST /tenant/switch.
func (h *Handler) Switch(c *gin.Context) {
	var req SwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "organization_id required")
		return
	}
	tc, err := h.resolver.Switch(c.Request.Context(), SessionFrom(c), req.OrganizationID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccessDenied):
			response.Forbidden(c, "access denied for this organization")
		case errors.Is(err, ErrOrganizationNotFound):
			response.NotFound(c, "organization not found")
		default:
			h.logger.Error("switch tenant", zap.Error(err))
			response.Internal(c, "failed to switch organization")
		}
		return
	}
	response.OK(c, tc)
}

// Navigation handles GET /tenant/navigation.
func (h *Handler) Navigation(c *gin.Context) {
	tc, err := h.resolver.Resolve(c.Request.Context(), SessionFrom(c))
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			response.OK(c, []NavItem{})
			return
		}
		response.Internal(c, "failed to resolve organization context")
		return
	}
	response.OK(c, tc.Navigation)
}
