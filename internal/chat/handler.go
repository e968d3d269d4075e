package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atriumhq/console/internal/middleware"
	"github.com/atriumhq/console/internal/models"
	"github.com/atriumhq/console/internal/tenant"
	"github.com/atriumhq/console/pkg/queue"
	"github.com/atriumhq/console/pkg/response"
)

// Handler exposes the chat transcript, config, and streaming submit endpoints.
// All routes sit under /organizations/:id/chat behind the org access middleware.
type Handler struct {
	registry          *Registry
	repo              *Repository
	jobs              *queue.Queue
	defaultDisclaimer string
	logger            *zap.Logger
}

// NewHandler creates a chat handler. jobs may be nil in tests.
func NewHandler(registry *Registry, repo *Repository, jobs *queue.Queue, defaultDisclaimer string, logger *zap.Logger) *Handler {
	return &Handler{
		registry:          registry,
		repo:              repo,
		jobs:              jobs,
		defaultDisclaimer: defaultDisclaimer,
		logger:            logger,
	}
}

// SubmitRequest is the body for POST /organizations/:id/chat/messages.
type SubmitRequest struct {
	Content string `json:"content" binding:"required"`
}

// transcriptMessage decorates a stored message with a display token count so
// the client never has to estimate.
type transcriptMessage struct {
	models.ChatMessage
	DisplayTokens int `json:"display_tokens"`
}

// ListMessages handles GET /organizations/:id/chat/messages.
func (h *Handler) ListMessages(c *gin.Context) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	msgs, err := h.repo.ListMessages(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list chat messages", zap.Error(err))
		response.Internal(c, "failed to load messages")
		return
	}
	out := make([]transcriptMessage, 0, len(msgs))
	for _, m := range msgs {
		tm := transcriptMessage{ChatMessage: m}
		if m.Tokens != nil {
			tm.DisplayTokens = *m.Tokens
		} else {
			tm.DisplayTokens = EstimateTokens(m.Content)
		}
		out = append(out, tm)
	}
	response.OK(c, out)
}

// GetConfig handles GET /organizations/:id/chat/config. The API key never
// leaves the server; the disclaimer falls back to the platform default.
func (h *Handler) GetConfig(c *gin.Context) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	cfg, err := h.repo.GetChatConfig(c.Request.Context(), orgID)
	if err != nil {
		switch {
		case errors.Is(err, ErrConfigMissing):
			response.NotFound(c, "chat is not configured for this organization")
		case errors.Is(err, ErrConfigInvalid):
			response.Conflict(c, "chat configuration is invalid")
		default:
			h.logger.Error("get chat config", zap.Error(err))
			response.Internal(c, "failed to load chat configuration")
		}
		return
	}
	view := cfg.Redacted()
	if view.DisclaimerMessage == "" {
		view.DisclaimerMessage = h.defaultDisclaimer
	}
	response.OK(c, view)
}

// ListUsage handles GET /organizations/:id/chat/usage.
func (h *Handler) ListUsage(c *gin.Context) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	usage, err := h.repo.ListUsage(c.Request.Context(), orgID, 30)
	if err != nil {
		h.logger.Error("list chat usage", zap.Error(err))
		response.Internal(c, "failed to load usage")
		return
	}
	response.OK(c, usage)
}

type streamEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Submit handles POST /organizations/:id/chat/messages. The response is an SSE
// stream: a status event, token events as the reply arrives, then done or error.
func (h *Handler) Submit(c *gin.Context) {
	orgID := c.MustGet(tenant.ContextOrganizationID).(uuid.UUID)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	isAdmin, _ := c.Get(middleware.ContextIsGlobalAdmin)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "content is required")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Internal(c, "streaming is not supported")
		return
	}

	sess := h.registry.Get(userID, orgID, isAdmin == true)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	writeEvent := func(kind string, ev streamEvent) {
		ev.Type = kind
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", kind, data)
		flusher.Flush()
	}

	writeEvent("status", streamEvent{Message: "generating"})

	assistantMsg, err := sess.Submit(c.Request.Context(), req.Content, func(delta string) {
		writeEvent("token", streamEvent{Content: delta})
	})
	if err != nil {
		writeEvent("error", streamEvent{Error: submitErrorMessage(err)})
		return
	}

	if h.jobs != nil {
		tokens := 0
		if assistantMsg.Tokens != nil {
			tokens = *assistantMsg.Tokens
		}
		tokens += EstimateTokens(req.Content)
		payload := queue.ChatUsagePayload{
			OrganizationID: orgID,
			Messages:       2,
			Tokens:         tokens,
			OccurredAt:     time.Now().UTC(),
		}
		if err := h.jobs.EnqueueChatUsage(c.Request.Context(), payload); err != nil {
			h.logger.Warn("enqueue chat usage", zap.Error(err))
		}
	}

	writeEvent("done", streamEvent{Content: assistantMsg.Content})
}

// submitErrorMessage maps session errors to client-facing messages without
// leaking upstream detail.
func submitErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrConfigMissing):
		return "chat is not configured for this organization"
	case errors.Is(err, ErrConfigDisabled):
		return "chat is disabled for this organization"
	case errors.Is(err, ErrConfigInvalid):
		return "chat configuration is invalid"
	case errors.Is(err, ErrEntitlementRequired):
		return "an active subscription is required to use chat"
	case errors.Is(err, ErrTokenBudget):
		return "this conversation has reached its token limit"
	case errors.Is(err, ErrTurnInFlight):
		return "a message is already being processed"
	case errors.Is(err, ErrTenantChanged):
		return "organization changed while generating; reply discarded"
	case errors.Is(err, ErrEmptyMessage):
		return "message content is empty"
	default:
		return "failed to generate a reply"
	}
}
