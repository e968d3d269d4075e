package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/console/internal/models"
)

func httpStatus(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

func httpHang(release <-chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		<-release
	}
}

type memoryMessageStore struct {
	messages map[uuid.UUID][]models.ChatMessage
}

func newMemoryMessageStore() *memoryMessageStore {
	return &memoryMessageStore{messages: make(map[uuid.UUID][]models.ChatMessage)}
}

func (s *memoryMessageStore) ListMessages(_ context.Context, orgID uuid.UUID) ([]models.ChatMessage, error) {
	return s.messages[orgID], nil
}

func (s *memoryMessageStore) AppendMessage(_ context.Context, m *models.ChatMessage) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	s.messages[m.OrganizationID] = append(s.messages[m.OrganizationID], *m)
	return nil
}

type staticConfigStore struct {
	cfg *Config
	err error
}

func (s *staticConfigStore) GetChatConfig(_ context.Context, _ uuid.UUID) (*Config, error) {
	return s.cfg, s.err
}

type staticEntitlements struct {
	entitled bool
}

func (s *staticEntitlements) HasActiveSubscription(_ context.Context, _ uuid.UUID) (bool, error) {
	return s.entitled, nil
}

type tenantSlot struct {
	orgID uuid.UUID
}

func (t *tenantSlot) active(_ context.Context, _ uuid.UUID) (uuid.UUID, error) {
	return t.orgID, nil
}

func newTestSession(t *testing.T, orgID uuid.UUID, endpoint string, store *memoryMessageStore, slot *tenantSlot) *Session {
	t.Helper()
	return NewSession(
		uuid.New(), orgID, false,
		store,
		&staticConfigStore{cfg: testConfig(endpoint)},
		&staticEntitlements{entitled: true},
		NewStreamClient(5*time.Second, nil),
		slot.active,
		nil,
	)
}

func TestSubmitFullTurn(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"choices":[{"delta":{"content":"Hi"}}]}`,
		`data: {"choices":[{"delta":{"content":" there"}}]}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	orgID := uuid.New()
	store := newMemoryMessageStore()
	sess := newTestSession(t, orgID, srv.URL, store, &tenantSlot{orgID: orgID})

	var streamed string
	reply, err := sess.Submit(context.Background(), "hello", func(d string) { streamed += d })
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply.Content)
	assert.Equal(t, "Hi there", streamed)
	assert.Equal(t, models.ChatRoleAssistant, reply.Role)

	msgs := store.messages[orgID]
	require.Len(t, msgs, 2)
	assert.Equal(t, models.ChatRoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, models.ChatRoleAssistant, msgs[1].Role)
	assert.Equal(t, StateReady, sess.State())
}

func TestSubmitUpstreamFailureKeepsUserMessageOnly(t *testing.T) {
	srv := httptest.NewServer(httpStatus(http.StatusBadGateway))
	defer srv.Close()

	orgID := uuid.New()
	store := newMemoryMessageStore()
	sess := newTestSession(t, orgID, srv.URL, store, &tenantSlot{orgID: orgID})

	_, err := sess.Submit(context.Background(), "hello", nil)
	require.Error(t, err)

	// The user message is durable; no partial assistant text is stored.
	msgs := store.messages[orgID]
	require.Len(t, msgs, 1)
	assert.Equal(t, models.ChatRoleUser, msgs[0].Role)
	// Once the error has been returned the session is open for a retry.
	assert.Equal(t, StateIdle, sess.State())
}

func TestSubmitRetriesAfterUpstreamFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		sseHandler([]string{
			`data: {"choices":[{"delta":{"content":"recovered"}}]}`,
			`data: [DONE]`,
		})(w, r)
	}))
	defer srv.Close()

	orgID := uuid.New()
	store := newMemoryMessageStore()
	sess := newTestSession(t, orgID, srv.URL, store, &tenantSlot{orgID: orgID})

	_, err := sess.Submit(context.Background(), "hello", nil)
	require.Error(t, err)

	reply, err := sess.Submit(context.Background(), "hello again", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply.Content)
	assert.Equal(t, StateReady, sess.State())
}

func TestSubmitWithoutConfigAwaitsConfig(t *testing.T) {
	orgID := uuid.New()
	sess := NewSession(uuid.New(), orgID, false, newMemoryMessageStore(),
		&staticConfigStore{err: ErrConfigMissing}, &staticEntitlements{entitled: true},
		NewStreamClient(time.Second, nil), (&tenantSlot{orgID: orgID}).active, nil)

	_, err := sess.Submit(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrConfigMissing)
	assert.Equal(t, StateAwaitingConfig, sess.State())
}

func TestSubmitDiscardsReplyAfterTenantSwitch(t *testing.T) {
	orgID := uuid.New()
	slot := &tenantSlot{orgID: orgID}
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"choices":[{"delta":{"content":"stale"}}]}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	store := newMemoryMessageStore()
	sess := newTestSession(t, orgID, srv.URL, store, slot)

	// Simulate the user switching organizations while the reply streams.
	slot.orgID = uuid.New()

	_, err := sess.Submit(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrTenantChanged)

	msgs := store.messages[orgID]
	require.Len(t, msgs, 1)
	assert.Equal(t, models.ChatRoleUser, msgs[0].Role)
}

func TestSubmitRejectsWhenDisabled(t *testing.T) {
	orgID := uuid.New()
	cfg := testConfig("http://localhost:1")
	cfg.Enabled = false
	sess := NewSession(uuid.New(), orgID, false, newMemoryMessageStore(),
		&staticConfigStore{cfg: cfg}, &staticEntitlements{entitled: true},
		NewStreamClient(time.Second, nil), (&tenantSlot{orgID: orgID}).active, nil)

	_, err := sess.Submit(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrConfigDisabled)
	assert.Equal(t, StateDisabled, sess.State())
}

func TestSubmitRequiresEntitlement(t *testing.T) {
	orgID := uuid.New()
	sess := NewSession(uuid.New(), orgID, false, newMemoryMessageStore(),
		&staticConfigStore{cfg: testConfig("http://localhost:1")}, &staticEntitlements{entitled: false},
		NewStreamClient(time.Second, nil), (&tenantSlot{orgID: orgID}).active, nil)

	_, err := sess.Submit(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrEntitlementRequired)
}

func TestSubmitGlobalAdminSkipsEntitlement(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	}))
	defer srv.Close()

	orgID := uuid.New()
	sess := NewSession(uuid.New(), orgID, true, newMemoryMessageStore(),
		&staticConfigStore{cfg: testConfig(srv.URL)}, &staticEntitlements{entitled: false},
		NewStreamClient(5*time.Second, nil), (&tenantSlot{orgID: orgID}).active, nil)

	reply, err := sess.Submit(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Content)
}

func TestSubmitEnforcesTokenBudget(t *testing.T) {
	orgID := uuid.New()
	budget := 5
	cfg := testConfig("http://localhost:1")
	cfg.MaxTotalTokens = &budget
	store := newMemoryMessageStore()
	sess := NewSession(uuid.New(), orgID, false, store,
		&staticConfigStore{cfg: cfg}, &staticEntitlements{entitled: true},
		NewStreamClient(time.Second, nil), (&tenantSlot{orgID: orgID}).active, nil)

	// 40 characters is ten estimated tokens, over the budget of five.
	_, err := sess.Submit(context.Background(), "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil)
	assert.ErrorIs(t, err, ErrTokenBudget)
	assert.Empty(t, store.messages[orgID])
}

func TestSubmitSingleFlight(t *testing.T) {
	orgID := uuid.New()
	release := make(chan struct{})
	srv := httptest.NewServer(httpHang(release))
	defer srv.Close()
	defer close(release)

	store := newMemoryMessageStore()
	sess := newTestSession(t, orgID, srv.URL, store, &tenantSlot{orgID: orgID})

	started := make(chan struct{})
	go func() {
		close(started)
		sess.Submit(context.Background(), "first", nil)
	}()
	<-started
	// Give the first submission time to take the slot.
	require.Eventually(t, func() bool {
		_, err := sess.Submit(context.Background(), "second", nil)
		return err == ErrTurnInFlight
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegistryInvalidateUserDropsSessions(t *testing.T) {
	reg := NewRegistry(newMemoryMessageStore(), &staticConfigStore{cfg: testConfig("http://localhost:1")},
		&staticEntitlements{entitled: true}, NewStreamClient(time.Second, nil),
		func(_ context.Context, _ uuid.UUID) (uuid.UUID, error) { return uuid.Nil, nil }, nil)

	userID := uuid.New()
	orgA := uuid.New()
	orgB := uuid.New()
	sessA := reg.Get(userID, orgA, false)
	sessB := reg.Get(userID, orgB, false)
	assert.Same(t, sessA, reg.Get(userID, orgA, false))

	reg.InvalidateUser(userID)
	assert.NotSame(t, sessA, reg.Get(userID, orgA, false))
	assert.NotSame(t, sessB, reg.Get(userID, orgB, false))
}
