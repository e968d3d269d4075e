package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/console/internal/models"
)

type fakeMembershipStore struct {
	memberships map[uuid.UUID][]Membership
	orgs        map[uuid.UUID]*models.Organization
	listErr     error
}

func (f *fakeMembershipStore) ListMemberships(_ context.Context, userID uuid.UUID) ([]Membership, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.memberships[userID], nil
}

func (f *fakeMembershipStore) GetOrganization(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	return f.orgs[id], nil
}

type fakeSelectionStore struct {
	slots map[uuid.UUID]*Selection
	saves int
}

func newFakeSelectionStore() *fakeSelectionStore {
	return &fakeSelectionStore{slots: make(map[uuid.UUID]*Selection)}
}

func (f *fakeSelectionStore) Get(_ context.Context, userID uuid.UUID) (*Selection, error) {
	return f.slots[userID], nil
}

func (f *fakeSelectionStore) Save(_ context.Context, userID uuid.UUID, sel Selection) error {
	f.saves++
	f.slots[userID] = &sel
	return nil
}

type recordingSink struct {
	switched []uuid.UUID
}

func (r *recordingSink) TenantSwitched(_, organizationID uuid.UUID) {
	r.switched = append(r.switched, organizationID)
}

func TestResolveSingleMembershipAutoSelects(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	members := &fakeMembershipStore{memberships: map[uuid.UUID][]Membership{
		userID: {{OrganizationID: orgID, Role: models.RoleUser}},
	}}
	selections := newFakeSelectionStore()
	r := NewResolver(members, selections, nil, nil)

	tc, err := r.Resolve(context.Background(), Session{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, orgID, tc.OrganizationID)
	assert.Equal(t, models.RoleUser, tc.Role)
	require.NotNil(t, selections.slots[userID])
	assert.Equal(t, orgID, selections.slots[userID].OrganizationID)
}

func TestResolvePrefersSavedSelection(t *testing.T) {
	userID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	members := &fakeMembershipStore{memberships: map[uuid.UUID][]Membership{
		userID: {
			{OrganizationID: first, Role: models.RoleUser},
			{OrganizationID: second, Role: models.RoleOrganizationAdmin},
		},
	}}
	selections := newFakeSelectionStore()
	selections.slots[userID] = &Selection{OrganizationID: second, Role: models.RoleOrganizationAdmin}
	r := NewResolver(members, selections, nil, nil)

	tc, err := r.Resolve(context.Background(), Session{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, second, tc.OrganizationID)
	assert.Equal(t, models.RoleOrganizationAdmin, tc.Role)
}

func TestResolveStaleSelectionFallsBackToFirst(t *testing.T) {
	userID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	members := &fakeMembershipStore{memberships: map[uuid.UUID][]Membership{
		userID: {
			{OrganizationID: first, Role: models.RoleUser},
			{OrganizationID: second, Role: models.RoleUser},
		},
	}}
	selections := newFakeSelectionStore()
	// Saved selection points at an organization the user was removed from.
	selections.slots[userID] = &Selection{OrganizationID: uuid.New(), Role: models.RoleUser}
	r := NewResolver(members, selections, nil, nil)

	tc, err := r.Resolve(context.Background(), Session{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, first, tc.OrganizationID)
	assert.Equal(t, first, selections.slots[userID].OrganizationID)
}

func TestResolveNoMembership(t *testing.T) {
	userID := uuid.New()
	members := &fakeMembershipStore{memberships: map[uuid.UUID][]Membership{}}
	r := NewResolver(members, newFakeSelectionStore(), nil, nil)

	_, err := r.Resolve(context.Background(), Session{UserID: userID})
	assert.ErrorIs(t, err, ErrNoMembership)
}

func TestResolveMembershipErrorKeepsSelection(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	members := &fakeMembershipStore{listErr: errors.New("db down")}
	selections := newFakeSelectionStore()
	selections.slots[userID] = &Selection{OrganizationID: orgID, Role: models.RoleUser}
	r := NewResolver(members, selections, nil, nil)

	_, err := r.Resolve(context.Background(), Session{UserID: userID})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoMembership)
	assert.Equal(t, orgID, selections.slots[userID].OrganizationID)
	assert.Zero(t, selections.saves)
}

func TestSwitchRejectsNonMember(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	members := &fakeMembershipStore{memberships: map[uuid.UUID][]Membership{
		userID: {{OrganizationID: orgID, Role: models.RoleUser}},
	}}
	selections := newFakeSelectionStore()
	selections.slots[userID] = &Selection{OrganizationID: orgID, Role: models.RoleUser}
	sink := &recordingSink{}
	r := NewResolver(members, selections, sink, nil)

	_, err := r.Switch(context.Background(), Session{UserID: userID}, uuid.New())
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, orgID, selections.slots[userID].OrganizationID)
	assert.Empty(t, sink.switched)
}

func TestSwitchMemberUpdatesSelectionAndNotifies(t *testing.T) {
	userID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	members := &fakeMembershipStore{memberships: map[uuid.UUID][]Membership{
		userID: {
			{OrganizationID: first, Role: models.RoleUser},
			{OrganizationID: second, Role: models.RoleTeamAdmin},
		},
	}}
	selections := newFakeSelectionStore()
	sink := &recordingSink{}
	r := NewResolver(members, selections, sink, nil)

	tc, err := r.Switch(context.Background(), Session{UserID: userID}, second)
	require.NoError(t, err)
	assert.Equal(t, second, tc.OrganizationID)
	assert.Equal(t, models.RoleTeamAdmin, tc.Role)
	assert.Equal(t, []uuid.UUID{second}, sink.switched)
}

func TestGlobalAdminSwitchesToAnyExistingOrganization(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	members := &fakeMembershipStore{
		memberships: map[uuid.UUID][]Membership{},
		orgs:        map[uuid.UUID]*models.Organization{orgID: {ID: orgID, Name: "Acme"}},
	}
	r := NewResolver(members, newFakeSelectionStore(), nil, nil)
	sess := Session{UserID: userID, IsGlobalAdmin: true}

	tc, err := r.Switch(context.Background(), sess, orgID)
	require.NoError(t, err)
	assert.Equal(t, orgID, tc.OrganizationID)
	assert.Equal(t, models.RoleGlobalAdmin, tc.Role)

	_, err = r.Switch(context.Background(), sess, uuid.New())
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestGlobalAdminResolveRestoresSavedOrganization(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	members := &fakeMembershipStore{
		orgs: map[uuid.UUID]*models.Organization{orgID: {ID: orgID, Name: "Acme"}},
	}
	selections := newFakeSelectionStore()
	selections.slots[userID] = &Selection{OrganizationID: orgID, Role: models.RoleGlobalAdmin}
	r := NewResolver(members, selections, nil, nil)

	tc, err := r.Resolve(context.Background(), Session{UserID: userID, IsGlobalAdmin: true})
	require.NoError(t, err)
	assert.Equal(t, orgID, tc.OrganizationID)
	assert.Equal(t, models.RoleGlobalAdmin, tc.Role)
}

func TestNavigationForRoles(t *testing.T) {
	assert.Equal(t, adminNavigation, NavigationFor(models.RoleUser, true))
	assert.Equal(t, organizationNavigation, NavigationFor(models.RoleOrganizationAdmin, false))
	assert.Equal(t, teamNavigation, NavigationFor(models.RoleTeamAdmin, false))
	assert.Equal(t, userNavigation, NavigationFor(models.RoleUser, false))
}
