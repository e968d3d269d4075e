package chat

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry holds live chat sessions keyed by user and organization (thread-safe).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	messages     MessageStore
	configs      ConfigStore
	entitlements EntitlementChecker
	completer    Completer
	activeTenant ActiveTenantFunc
	logger       *zap.Logger
}

// NewRegistry creates a session registry with the shared session dependencies.
func NewRegistry(messages MessageStore, configs ConfigStore, entitlements EntitlementChecker, completer Completer, activeTenant ActiveTenantFunc, logger *zap.Logger) *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		messages:     messages,
		configs:      configs,
		entitlements: entitlements,
		completer:    completer,
		activeTenant: activeTenant,
		logger:       logger,
	}
}

func sessionKey(userID, orgID uuid.UUID) string {
	return userID.String() + ":" + orgID.String()
}

// Get returns the session for (user, organization), creating it if needed.
func (reg *Registry) Get(userID, orgID uuid.UUID, isGlobalAdmin bool) *Session {
	key := sessionKey(userID, orgID)
	reg.mu.RLock()
	sess := reg.sessions[key]
	reg.mu.RUnlock()
	if sess != nil {
		return sess
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if sess = reg.sessions[key]; sess != nil {
		return sess
	}
	sess = NewSession(userID, orgID, isGlobalAdmin, reg.messages, reg.configs, reg.entitlements, reg.completer, reg.activeTenant, reg.logger)
	reg.sessions[key] = sess
	return sess
}

// InvalidateUser cancels and drops every session the user holds. Called on
// tenant switch so in-flight streams for the old organization are discarded.
func (reg *Registry) InvalidateUser(userID uuid.UUID) {
	prefix := userID.String() + ":"
	reg.mu.Lock()
	var stale []*Session
	for key, sess := range reg.sessions {
		if strings.HasPrefix(key, prefix) {
			stale = append(stale, sess)
			delete(reg.sessions, key)
		}
	}
	reg.mu.Unlock()
	for _, sess := range stale {
		sess.Invalidate()
	}
}
