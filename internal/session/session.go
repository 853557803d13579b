// Package session tracks authenticated sessions for the BFF. A session is
// established by resolving the identity's role from the profile tables and
// torn down on sign-out or when the auth change feed reports SIGNED_OUT.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/port"

	"go.uber.org/zap"
)

// Session is one established authenticated session. Immutable once stored;
// the manager replaces the whole value on change.
type Session struct {
	Identity      domain.Identity
	Role          domain.RoleKind
	EstablishedAt time.Time

	// View holds the session's optimistic display state. Mutations render
	// into it before the store confirms them.
	View *ViewState
}

// Manager owns the session table. All writes funnel through the manager's
// methods; readers get copies.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // by identity id
	loading  map[string]struct{} // identities mid-establishment

	resolver *RoleResolver
	auth     port.AuthProvider
	logger   *zap.Logger
}

func NewManager(resolver *RoleResolver, auth port.AuthProvider, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		loading:  make(map[string]struct{}),
		resolver: resolver,
		auth:     auth,
		logger:   logger,
	}
}

// Establish resolves the identity's role and stores a session. While the
// resolution is in flight the identity reports as loading, so the route
// guard renders placeholders instead of guessing a role.
func (m *Manager) Establish(ctx context.Context, identity domain.Identity) (*Session, error) {
	m.mu.Lock()
	m.loading[identity.ID] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.loading, identity.ID)
		m.mu.Unlock()
	}()

	role, err := m.resolver.Resolve(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Identity:      identity,
		Role:          role,
		EstablishedAt: time.Now(),
		View:          NewViewState(),
	}

	m.mu.Lock()
	m.sessions[identity.ID] = sess
	m.mu.Unlock()

	m.logger.Info("session established",
		zap.String("identity_id", identity.ID),
		zap.String("role", string(role)))

	return sess, nil
}

// Get returns the session for the identity, or nil when none exists.
func (m *Manager) Get(identityID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[identityID]
}

// Loading reports whether the identity's session is still being established.
func (m *Manager) Loading(identityID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.loading[identityID]
	return ok
}

// State returns the auth state and role the route guard evaluates against.
func (m *Manager) State(identityID string) (AuthState, domain.RoleKind) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.loading[identityID]; ok {
		return StateLoading, ""
	}
	if sess, ok := m.sessions[identityID]; ok {
		return StateAuthenticated, sess.Role
	}
	return StateUnauthenticated, ""
}

// SignOut revokes the tokens with the auth collaborator first and clears
// the local session afterwards, never the other way round.
func (m *Manager) SignOut(ctx context.Context, identityID, accessToken string) error {
	if err := m.auth.SignOut(ctx, accessToken); err != nil {
		return err
	}
	m.Drop(identityID)
	return nil
}

// Drop removes the session without touching the auth collaborator.
func (m *Manager) Drop(identityID string) {
	m.mu.Lock()
	delete(m.sessions, identityID)
	m.mu.Unlock()

	m.logger.Info("session cleared", zap.String("identity_id", identityID))
}

// Run consumes the auth change feed until ctx is cancelled. SIGNED_OUT
// events carrying an identity clear that identity's session; events
// without one are only logged, since the explicit sign-out path already
// drops the right session.
func (m *Manager) Run(ctx context.Context) {
	changes := m.auth.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-changes:
			if !ok {
				return
			}
			m.handleChange(ev)
		}
	}
}

func (m *Manager) handleChange(ev domain.AuthChange) {
	switch ev.Event {
	case domain.AuthSignedIn, domain.AuthTokenRefreshed:
		id := ""
		if ev.Identity != nil {
			id = ev.Identity.ID
		}
		m.logger.Debug("auth change", zap.String("event", ev.Event), zap.String("identity_id", id))
	case domain.AuthSignedOut:
		if ev.Identity != nil {
			m.Drop(ev.Identity.ID)
		} else {
			m.logger.Debug("auth change", zap.String("event", ev.Event))
		}
	default:
		m.logger.Warn("unknown auth change event", zap.String("event", ev.Event))
	}
}
