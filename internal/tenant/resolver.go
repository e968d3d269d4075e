// Package tenant resolves which organization an authenticated user is
// operating in and what role/navigation follows from that choice.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atriumhq/console/internal/models"
)

var (
	// ErrNoMembership means the user belongs to no organization. Downstream
	// features render a "no access" state; provisioning fixes it out of band.
	ErrNoMembership = errors.New("no organization membership")
	// ErrAccessDenied means the user requested an organization they are not a member of.
	ErrAccessDenied = errors.New("access denied")
	// ErrOrganizationNotFound means the requested organization does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")
)

// Session is the authenticated identity the resolver works from.
type Session struct {
	UserID        uuid.UUID
	Email         string
	IsGlobalAdmin bool
}

// Membership grants a user a role within one organization.
type Membership struct {
	OrganizationID uuid.UUID   `json:"organization_id"`
	Role           models.Role `json:"role"`
}

// Context is the resolver's output: the active organization, the user's role
// there, and the navigation set that follows from the role.
type Context struct {
	OrganizationID uuid.UUID   `json:"organization_id"`
	Role           models.Role `json:"role"`
	Navigation     []NavItem   `json:"navigation"`
}

// Selection is the persisted (organization, role) choice, used as a
// tie-breaker hint at the next resolution, never as the source of truth.
type Selection struct {
	OrganizationID uuid.UUID   `json:"organization_id"`
	Role           models.Role `json:"role"`
}

// MembershipStore is the external relation the resolver queries but does not own.
type MembershipStore interface {
	ListMemberships(ctx context.Context, userID uuid.UUID) ([]Membership, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

// SelectionStore persists the active selection per user. Get returns
// (nil, nil) when no selection has been saved yet. The resolver is the only
// writer of this slot.
type SelectionStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*Selection, error)
	Save(ctx context.Context, userID uuid.UUID, sel Selection) error
}

// EventSink is notified after a successful tenant switch so dependent
// features (chat sessions, connected clients) re-fetch tenant-scoped data.
type EventSink interface {
	TenantSwitched(userID, organizationID uuid.UUID)
}

// Resolver owns tenant context resolution. It is stateless across requests:
// per-user state lives in the SelectionStore.
type Resolver struct {
	memberships MembershipStore
	selections  SelectionStore
	events      EventSink
	logger      *zap.Logger
}

// NewResolver creates a tenant resolver. events may be nil.
func NewResolver(memberships MembershipStore, selections SelectionStore, events EventSink, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{memberships: memberships, selections: selections, events: events, logger: logger}
}

// Resolve decides the active (organization, role) for a session. It is called
// once when a session becomes available; the persisted selection is only a
// tie-breaker between current memberships, so a stale selection can never
// grant access the membership set no longer supports.
func (r *Resolver) Resolve(ctx context.Context, sess Session) (*Context, error) {
	if sess.IsGlobalAdmin {
		return r.resolveGlobalAdmin(ctx, sess)
	}

	memberships, err := r.memberships.ListMemberships(ctx, sess.UserID)
	if err != nil {
		// Recoverable: any previously persisted selection stays intact.
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return nil, ErrNoMembership
	}

	chosen := memberships[0]
	if len(memberships) > 1 {
		if saved, err := r.selections.Get(ctx, sess.UserID); err != nil {
			r.logger.Warn("read saved tenant selection", zap.Error(err))
		} else if saved != nil {
			for _, m := range memberships {
				if m.OrganizationID == saved.OrganizationID {
					chosen = m
					break
				}
			}
		}
	}

	if err := r.persist(ctx, sess.UserID, chosen.OrganizationID, chosen.Role); err != nil {
		r.logger.Warn("persist tenant selection", zap.Error(err))
	}
	return &Context{
		OrganizationID: chosen.OrganizationID,
		Role:           chosen.Role,
		Navigation:     NavigationFor(chosen.Role, false),
	}, nil
}

// resolveGlobalAdmin restores the admin's saved organization if it still
// exists; otherwise the context has no organization until an explicit switch.
func (r *Resolver) resolveGlobalAdmin(ctx context.Context, sess Session) (*Context, error) {
	tc := &Context{Role: models.RoleGlobalAdmin, Navigation: NavigationFor(models.RoleGlobalAdmin, true)}
	saved, err := r.selections.Get(ctx, sess.UserID)
	if err != nil {
		r.logger.Warn("read saved tenant selection", zap.Error(err))
		return tc, nil
	}
	if saved == nil {
		return tc, nil
	}
	org, err := r.memberships.GetOrganization(ctx, saved.OrganizationID)
	if err != nil || org == nil {
		return tc, nil
	}
	tc.OrganizationID = org.ID
	return tc, nil
}

// Switch changes the active organization. Global admins may switch to any
// existing organization; everyone else must hold a membership in the target.
// On failure the previous selection is left unchanged.
func (r *Resolver) Switch(ctx context.Context, sess Session, orgID uuid.UUID) (*Context, error) {
	if sess.IsGlobalAdmin {
		org, err := r.memberships.GetOrganization(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("get organization: %w", err)
		}
		if org == nil {
			return nil, ErrOrganizationNotFound
		}
		if err := r.persist(ctx, sess.UserID, orgID, models.RoleGlobalAdmin); err != nil {
			return nil, err
		}
		r.notifySwitch(sess.UserID, orgID)
		return &Context{
			OrganizationID: orgID,
			Role:           models.RoleGlobalAdmin,
			Navigation:     NavigationFor(models.RoleGlobalAdmin, true),
		}, nil
	}

	memberships, err := r.memberships.ListMemberships(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	for _, m := range memberships {
		if m.OrganizationID == orgID {
			if err := r.persist(ctx, sess.UserID, m.OrganizationID, m.Role); err != nil {
				return nil, err
			}
			r.notifySwitch(sess.UserID, orgID)
			return &Context{
				OrganizationID: m.OrganizationID,
				Role:           m.Role,
				Navigation:     NavigationFor(m.Role, false),
			}, nil
		}
	}
	return nil, ErrAccessDenied
}

// ActiveOrganization returns the user's currently persisted organization, or
// uuid.Nil when none is selected. Used by in-flight work (e.g. a chat stream)
// to confirm the tenant has not changed before applying results.
func (r *Resolver) ActiveOrganization(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	saved, err := r.selections.Get(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	if saved == nil {
		return uuid.Nil, nil
	}
	return saved.OrganizationID, nil
}

func (r *Resolver) persist(ctx context.Context, userID, orgID uuid.UUID, role models.Role) error {
	if err := r.selections.Save(ctx, userID, Selection{OrganizationID: orgID, Role: role}); err != nil {
		return fmt.Errorf("save tenant selection: %w", err)
	}
	return nil
}

func (r *Resolver) notifySwitch(userID, orgID uuid.UUID) {
	if r.events != nil {
		r.events.TenantSwitched(userID, orgID)
	}
	r.logger.Info("tenant switched",
		zap.String("user_id", userID.String()),
		zap.String("organization_id", orgID.String()),
	)
}
