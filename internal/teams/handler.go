package teams

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atriumhq/console/internal/middleware"
	"github.com/atriumhq/console/internal/models"
	"github.com/atriumhq/console/internal/tenant"
	"github.com/atriumhq/console/pkg/response"
)

// Handler handles team HTTP endpoints. All routes sit under
// /organizations/:id/teams behind the org access middleware.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a team handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// TeamRequest is the body for creating or updating a team.
type TeamRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug"`
}

// MemberRequest is the body for adding a team member.
type MemberRequest struct {
	UserID uuid.UUID   `json:"user_id" binding:"required"`
	Role   models.Role `json:"role"`
}

// Create handles POST /organizations/:id/teams.
func (h *Handler) Create(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	var req TeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	team := &models.Team{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(req.Name),
		Slug:           slugify(req.Slug, req.Name),
	}
	if err := h.repo.Create(c.Request.Context(), team); err != nil {
		h.logger.Error("create team", zap.Error(err))
		response.Internal(c, "failed to create team")
		return
	}
	response.Created(c, team)
}

// List handles GET /organizations/:id/teams. With ?mine=true only the
// caller's teams are returned.
func (h *Handler) List(c *gin.Context) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	var (
		list []models.Team
		err  error
	)
	if c.Query("mine") == "true" {
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		list, err = h.repo.ListForUser(c.Request.Context(), orgID, userID)
	} else {
		list, err = h.repo.ListByOrganization(c.Request.Context(), orgID)
	}
	if err != nil {
		h.logger.Error("list teams", zap.Error(err))
		response.Internal(c, "failed to list teams")
		return
	}
	response.OK(c, list)
}

// Get handles GET /organizations/:id/teams/:teamId.
func (h *Handler) Get(c *gin.Context) {
	team, ok := h.teamInOrg(c)
	if !ok {
		return
	}
	response.OK(c, team)
}

// Update handles PUT /organizations/:id/teams/:teamId.
func (h *Handler) Update(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	team, ok := h.teamInOrg(c)
	if !ok {
		return
	}
	var req TeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	name := strings.TrimSpace(req.Name)
	slug := slugify(req.Slug, req.Name)
	if err := h.repo.Update(c.Request.Context(), team.ID, name, slug); err != nil {
		h.logger.Error("update team", zap.Error(err))
		response.Internal(c, "failed to update team")
		return
	}
	team.Name = name
	team.Slug = slug
	response.OK(c, team)
}

// Delete handles DELETE /organizations/:id/teams/:teamId.
func (h *Handler) Delete(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	team, ok := h.teamInOrg(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), team.ID); err != nil {
		h.logger.Error("delete team", zap.Error(err))
		response.Internal(c, "failed to delete team")
		return
	}
	response.NoContent(c)
}

// ListMembers handles GET /organizations/:id/teams/:teamId/members.
func (h *Handler) ListMembers(c *gin.Context) {
	team, ok := h.teamInOrg(c)
	if !ok {
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), team.ID)
	if err != nil {
		h.logger.Error("list team members", zap.Error(err))
		response.Internal(c, "failed to list team members")
		return
	}
	response.OK(c, members)
}

// AddMember handles POST /organizations/:id/teams/:teamId/members.
func (h *Handler) AddMember(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	team, ok := h.teamInOrg(c)
	if !ok {
		return
	}
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id is required")
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleTeamAdmin && role != models.RoleUser {
		response.BadRequest(c, "invalid team role")
		return
	}
	if err := h.repo.AddMember(c.Request.Context(), team.ID, req.UserID, role); err != nil {
		h.logger.Error("add team member", zap.Error(err))
		response.Internal(c, "failed to add team member")
		return
	}
	response.OK(c, gin.H{"team_id": team.ID, "user_id": req.UserID, "role": role})
}

// RemoveMember handles DELETE /organizations/:id/teams/:teamId/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	if !requireManager(c) {
		return
	}
	team, ok := h.teamInOrg(c)
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if err := h.repo.RemoveMember(c.Request.Context(), team.ID, userID); err != nil {
		h.logger.Error("remove team member", zap.Error(err))
		response.Internal(c, "failed to remove team member")
		return
	}
	response.NoContent(c)
}

// teamInOrg loads the :teamId team and confirms it belongs to the
// middleware-validated organization.
func (h *Handler) teamInOrg(c *gin.Context) (*models.Team, bool) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	teamID, err := uuid.Parse(c.Param("teamId"))
	if err != nil {
		response.BadRequest(c, "invalid team id")
		return nil, false
	}
	team, err := h.repo.GetByID(c.Request.Context(), teamID)
	if err != nil {
		h.logger.Error("get team", zap.Error(err))
		response.Internal(c, "failed to get team")
		return nil, false
	}
	if team == nil || team.OrganizationID != orgID {
		response.NotFound(c, "team not found")
		return nil, false
	}
	return team, true
}

// requireManager allows org admins, team admins, and global admins.
func requireManager(c *gin.Context) bool {
	role, _ := c.Get(tenant.ContextOrgRole)
	switch role {
	case models.RoleGlobalAdmin, models.RoleOrganizationAdmin, models.RoleTeamAdmin:
		return true
	}
	response.Forbidden(c, "team management role required")
	return false
}

func slugify(slug, name string) string {
	s := strings.TrimSpace(strings.ToLower(slug))
	if s == "" {
		s = strings.TrimSpace(strings.ToLower(name))
	}
	s = strings.ReplaceAll(s, " ", "-")
	return s
}
