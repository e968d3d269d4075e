package billing

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atriumhq/console/internal/middleware"
	"github.com/atriumhq/console/pkg/queue"
	"github.com/atriumhq/console/pkg/response"
)

// Handler handles checkout, subscription status, and the provider webhook.
type Handler struct {
	repo       *Repository
	stripe     *StripeClient
	jobs       *queue.Queue
	priceID    string
	successURL string
	cancelURL  string
	logger     *zap.Logger
}

// NewHandler creates a billing handler.
func NewHandler(repo *Repository, stripe *StripeClient, jobs *queue.Queue, priceID, successURL, cancelURL string, logger *zap.Logger) *Handler {
	return &Handler{
		repo:       repo,
		stripe:     stripe,
		jobs:       jobs,
		priceID:    priceID,
		successURL: successURL,
		cancelURL:  cancelURL,
		logger:     logger,
	}
}

// GetSubscription handles GET /billing/subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	sub, err := h.repo.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("get subscription", zap.Error(err))
		response.Internal(c, "failed to load subscription")
		return
	}
	if sub == nil {
		response.OK(c, gin.H{"entitled": false})
		return
	}
	response.OK(c, gin.H{"entitled": sub.Entitled(), "subscription": sub})
}

// CreateCheckoutSession handles POST /billing/checkout-session. It finds or
// creates the billing customer for the user, rejects when an active
// subscription already exists, and returns the hosted checkout URL.
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	email := c.MustGet(middleware.ContextUserEmail).(string)
	ctx := c.Request.Context()

	customer, err := h.stripe.FindCustomerByEmail(ctx, email)
	if err != nil {
		h.logger.Error("find billing customer", zap.Error(err))
		response.Internal(c, "failed to start checkout")
		return
	}
	if customer == nil {
		customer, err = h.stripe.CreateCustomer(ctx, email)
		if err != nil {
			h.logger.Error("create billing customer", zap.Error(err))
			response.Internal(c, "failed to start checkout")
			return
		}
	}
	if err := h.repo.UpsertCustomer(ctx, userID, customer.ID); err != nil {
		h.logger.Error("store billing customer", zap.Error(err))
		response.Internal(c, "failed to start checkout")
		return
	}

	active, err := h.stripe.CustomerHasActiveSubscription(ctx, customer.ID)
	if err != nil {
		h.logger.Error("check active subscription", zap.Error(err))
		response.Internal(c, "failed to start checkout")
		return
	}
	if active {
		response.Conflict(c, "an active subscription already exists")
		return
	}

	session, err := h.stripe.CreateCheckoutSession(ctx, customer.ID, h.priceID, h.successURL, h.cancelURL)
	if err != nil {
		h.logger.Error("create checkout session", zap.Error(err))
		response.Internal(c, "failed to start checkout")
		return
	}
	response.OK(c, gin.H{"checkout_url": session.URL, "session_id": session.ID})
}

// Webhook handles POST /webhooks/billing. The signature is verified inline;
// the event itself is processed by the worker so the provider gets a fast 200.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.BadRequest(c, "unable to read payload")
		return
	}
	sig := c.GetHeader("Stripe-Signature")
	if err := h.stripe.VerifySignature(payload, sig, time.Now()); err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		response.BadRequest(c, "invalid signature")
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		response.BadRequest(c, "invalid event payload")
		return
	}

	switch event.Type {
	case "customer.created",
		"customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		err = h.jobs.EnqueueBillingEvent(c.Request.Context(), queue.BillingEventPayload{
			EventType: event.Type,
			Object:    event.Data.Object,
		})
		if err != nil {
			h.logger.Error("enqueue billing event", zap.Error(err))
			response.Internal(c, "failed to accept event")
			return
		}
	default:
		h.logger.Debug("ignoring billing event", zap.String("type", event.Type))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
