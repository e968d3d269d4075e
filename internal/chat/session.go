package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atriumhq/console/internal/models"
)

var (
	// ErrTurnInFlight means a submission is already streaming for this session.
	ErrTurnInFlight = errors.New("a message is already being processed")
	// ErrTokenBudget means the conversation has reached its configured token limit.
	ErrTokenBudget = errors.New("conversation token limit reached")
	// ErrEntitlementRequired means the organization has no active subscription.
	ErrEntitlementRequired = errors.New("an active subscription is required")
	// ErrTenantChanged means the user switched organizations while a reply was
	// streaming; the reply is discarded.
	ErrTenantChanged = errors.New("organization changed during streaming")
	// ErrEmptyMessage rejects blank submissions.
	ErrEmptyMessage = errors.New("message content is empty")
)

// State is the session lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateAwaitingConfig
	StateReady
	StateDisabled
	StateSubmitting
	StateStreaming
	StateReconciling
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConfig:
		return "awaiting_config"
	case StateReady:
		return "ready"
	case StateDisabled:
		return "disabled"
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	case StateReconciling:
		return "reconciling"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// MessageStore persists and lists transcript messages.
type MessageStore interface {
	ListMessages(ctx context.Context, orgID uuid.UUID) ([]models.ChatMessage, error)
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
}

// ConfigStore loads an organization's chat configuration.
type ConfigStore interface {
	GetChatConfig(ctx context.Context, orgID uuid.UUID) (*Config, error)
}

// EntitlementChecker reports whether a user holds an active subscription.
type EntitlementChecker interface {
	HasActiveSubscription(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Completer issues a streaming completion.
type Completer interface {
	Complete(ctx context.Context, cfg *Config, turns []Turn, onDelta func(string)) (string, error)
}

// ActiveTenantFunc returns the user's currently selected organization.
type ActiveTenantFunc func(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)

// Session drives one user's chat inside one organization. One turn may be in
// flight at a time; state transitions happen under the mutex, the streaming
// itself outside it.
type Session struct {
	userID        uuid.UUID
	orgID         uuid.UUID
	isGlobalAdmin bool

	messages     MessageStore
	configs      ConfigStore
	entitlements EntitlementChecker
	completer    Completer
	activeTenant ActiveTenantFunc
	logger       *zap.Logger

	mu       sync.Mutex
	state    State
	inFlight bool
	cancel   context.CancelFunc
}

// NewSession creates a chat session for one (user, organization) pair.
func NewSession(userID, orgID uuid.UUID, isGlobalAdmin bool, messages MessageStore, configs ConfigStore, entitlements EntitlementChecker, completer Completer, activeTenant ActiveTenantFunc, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		userID:        userID,
		orgID:         orgID,
		isGlobalAdmin: isGlobalAdmin,
		messages:      messages,
		configs:       configs,
		entitlements:  entitlements,
		completer:     completer,
		activeTenant:  activeTenant,
		logger:        logger,
		state:         StateIdle,
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OrganizationID returns the organization this session is bound to.
func (s *Session) OrganizationID() uuid.UUID {
	return s.orgID
}

// Transcript returns the organization's message history in order.
func (s *Session) Transcript(ctx context.Context) ([]models.ChatMessage, error) {
	return s.messages.ListMessages(ctx, s.orgID)
}

// Invalidate cancels any in-flight turn. Called when the user switches
// organizations so a stale stream cannot land in the new context.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateIdle
}

// Submit runs one full turn: persist the user message, stream the assistant
// reply through onDelta, then persist the reply. The user message is only
// stored once the upstream request is ready to go, so config and entitlement
// failures leave the transcript untouched.
func (s *Session) Submit(ctx context.Context, content string, onDelta func(string)) (*models.ChatMessage, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	s.inFlight = true
	s.state = StateSubmitting
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.inFlight = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	msg, err := s.run(ctx, content, onDelta)
	s.mu.Lock()
	switch {
	case err == nil:
		s.state = StateReady
	case errors.Is(err, ErrConfigMissing), errors.Is(err, ErrConfigInvalid), errors.Is(err, ErrConfigDisabled):
		// run parked the session in a configuration state; keep it.
	default:
		// The failure has been surfaced to the caller; the session is
		// free to accept a retry.
		s.state = StateIdle
	}
	s.mu.Unlock()
	return msg, err
}

func (s *Session) run(ctx context.Context, content string, onDelta func(string)) (*models.ChatMessage, error) {
	cfg, err := s.configs.GetChatConfig(ctx, s.orgID)
	if err != nil {
		if errors.Is(err, ErrConfigMissing) || errors.Is(err, ErrConfigInvalid) {
			s.setState(StateAwaitingConfig)
		}
		return nil, err
	}
	if !cfg.Enabled {
		s.setState(StateDisabled)
		return nil, ErrConfigDisabled
	}

	// Global admins can exercise chat in any tenant without a subscription.
	if !s.isGlobalAdmin {
		entitled, err := s.entitlements.HasActiveSubscription(ctx, s.userID)
		if err != nil {
			return nil, fmt.Errorf("check entitlement: %w", err)
		}
		if !entitled {
			return nil, ErrEntitlementRequired
		}
	}

	history, err := s.messages.ListMessages(ctx, s.orgID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	if cfg.MaxTotalTokens != nil {
		total := EstimateTokens(content)
		for _, m := range history {
			total += EstimateTokens(m.Content)
		}
		if total > *cfg.MaxTotalTokens {
			return nil, ErrTokenBudget
		}
	}

	userTokens := EstimateTokens(content)
	userMsg := &models.ChatMessage{
		OrganizationID: s.orgID,
		UserID:         &s.userID,
		Role:           models.ChatRoleUser,
		Content:        content,
		Tokens:         &userTokens,
	}
	if err := s.messages.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	turns := make([]Turn, 0, len(history)+1)
	for _, m := range history {
		turns = append(turns, Turn{Role: string(m.Role), Content: m.Content})
	}
	turns = append(turns, Turn{Role: string(models.ChatRoleUser), Content: content})

	s.setState(StateStreaming)
	reply, err := s.completer.Complete(ctx, cfg, turns, onDelta)
	if err != nil {
		s.setState(StateFailed)
		return nil, err
	}

	s.setState(StateReconciling)
	active, err := s.activeTenant(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("confirm active organization: %w", err)
	}
	if active != s.orgID {
		s.logger.Info("discarding reply after organization switch",
			zap.String("user_id", s.userID.String()),
			zap.String("organization_id", s.orgID.String()),
		)
		return nil, ErrTenantChanged
	}

	replyTokens := EstimateTokens(reply)
	assistantMsg := &models.ChatMessage{
		OrganizationID: s.orgID,
		Role:           models.ChatRoleAssistant,
		Content:        reply,
		Tokens:         &replyTokens,
	}
	if err := s.messages.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	return assistantMsg, nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
