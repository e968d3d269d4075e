package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/atriumhq/console/internal/auth"
	"github.com/atriumhq/console/internal/billing"
	"github.com/atriumhq/console/internal/chat"
	"github.com/atriumhq/console/internal/realtime"
	"github.com/atriumhq/console/pkg/queue"
)

// Processor consumes billing webhook events and chat usage rollup jobs.
type Processor struct {
	users    *auth.Repository
	billing  *billing.Repository
	chat     *chat.Repository
	queue    *queue.Queue
	notifier realtime.RedisPublisher
	logger   *zap.Logger
}

// NewProcessor creates a job processor. notifier may be nil.
func NewProcessor(users *auth.Repository, billingRepo *billing.Repository, chatRepo *chat.Repository, q *queue.Queue, notifier realtime.RedisPublisher, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		users:    users,
		billing:  billingRepo,
		chat:     chatRepo,
		queue:    q,
		notifier: notifier,
		logger:   logger,
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeBillingEvent:
		var payload queue.BillingEventPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processBillingEvent(ctx, payload)
	case queue.JobTypeChatUsage:
		var payload queue.ChatUsagePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processChatUsage(ctx, payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

type billingCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type billingSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
}

func (p *Processor) processBillingEvent(ctx context.Context, payload queue.BillingEventPayload) error {
	switch payload.EventType {
	case "customer.created":
		var customer billingCustomer
		if err := json.Unmarshal(payload.Object, &customer); err != nil {
			return fmt.Errorf("unmarshal customer: %w", err)
		}
		user, err := p.users.GetByEmail(ctx, customer.Email)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// A customer created outside the platform has no account to attach to.
				p.logger.Warn("billing customer has no matching user", zap.String("email", customer.Email))
				return nil
			}
			return fmt.Errorf("lookup user %s: %w", customer.Email, err)
		}
		if err := p.billing.UpsertCustomer(ctx, user.ID, customer.ID); err != nil {
			return fmt.Errorf("store customer: %w", err)
		}
		p.logger.Info("billing customer linked", zap.String("customer_id", customer.ID), zap.String("user_id", user.ID.String()))
		return nil

	case "customer.subscription.created", "customer.subscription.updated":
		var sub billingSubscription
		if err := json.Unmarshal(payload.Object, &sub); err != nil {
			return fmt.Errorf("unmarshal subscription: %w", err)
		}
		if err := p.billing.SetSubscription(ctx, sub.Customer, sub.ID, sub.Status); err != nil {
			return fmt.Errorf("set subscription %s: %w", sub.ID, err)
		}
		p.notifyEntitlement(ctx, sub.Customer, sub.Status)
		return nil

	case "customer.subscription.deleted":
		var sub billingSubscription
		if err := json.Unmarshal(payload.Object, &sub); err != nil {
			return fmt.Errorf("unmarshal subscription: %w", err)
		}
		if err := p.billing.MarkCanceledBySubscriptionID(ctx, sub.ID); err != nil {
			return fmt.Errorf("cancel subscription %s: %w", sub.ID, err)
		}
		p.notifyEntitlement(ctx, sub.Customer, "canceled")
		return nil

	default:
		p.logger.Debug("ignoring billing event", zap.String("type", payload.EventType))
		return nil
	}
}

// notifyEntitlement pushes the new entitlement state to the affected user's
// connected clients. Best effort: a missed push only delays the UI.
func (p *Processor) notifyEntitlement(ctx context.Context, customerID, status string) {
	if p.notifier == nil {
		return
	}
	sub, err := p.billing.GetByCustomerID(ctx, customerID)
	if err != nil || sub == nil {
		return
	}
	body, _ := json.Marshal(map[string]interface{}{
		"status":   status,
		"entitled": sub.Entitled(),
	})
	if err := p.notifier.PublishUserEvent(sub.UserID, realtime.EventEntitlementUpdated, body); err != nil {
		p.logger.Warn("publish entitlement event", zap.Error(err))
	}
}

func (p *Processor) processChatUsage(ctx context.Context, payload queue.ChatUsagePayload) error {
	day := payload.OccurredAt.UTC().Truncate(24 * time.Hour)
	if err := p.chat.RecordUsage(ctx, payload.OrganizationID, day, int64(payload.Messages), int64(payload.Tokens)); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
