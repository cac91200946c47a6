// ABOUTME: Session manager owning login, logout, registration and identity refresh
// ABOUTME: Rebuilds the gateway client on every credential change and notifies listeners

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/semaphore"

	"github.com/markalston/storefront-client/internal/gateway"
	"github.com/markalston/storefront-client/internal/models"
	"github.com/markalston/storefront-client/internal/storage"
)

var (
	// ErrLoginInProgress is returned when a second login starts while one is in flight
	ErrLoginInProgress = errors.New("a login is already in progress")
	// ErrAlreadyAuthenticated is returned by Login when a session exists
	ErrAlreadyAuthenticated = errors.New("already logged in; log out first")
	// ErrNotAuthenticated is returned by operations that need a session
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrSessionChanged means the session moved on while the call was in flight
	ErrSessionChanged = errors.New("session changed while the request was in flight")
)

// EventKind names a session transition
type EventKind int

const (
	// EventAuthenticated follows a successful login
	EventAuthenticated EventKind = iota + 1
	// EventRestored follows loading a persisted credential
	EventRestored
	// EventRefreshed follows an identity refresh
	EventRefreshed
	// EventCleared follows logout or a forced clear
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventAuthenticated:
		return "authenticated"
	case EventRestored:
		return "restored"
	case EventRefreshed:
		return "refreshed"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after the client has been rebuilt
type Event struct {
	Kind     EventKind
	Client   *gateway.Client
	Identity *models.Identity
}

// Listener reacts to session transitions
type Listener interface {
	SessionChanged(ctx context.Context, ev Event)
}

// Manager owns the credential lifecycle
type Manager struct {
	store     *storage.Store
	builder   *gateway.Builder
	validate  *validator.Validate
	loginSlot *semaphore.Weighted

	mu         sync.RWMutex
	state      State
	credential string
	identity   *models.Identity
	client     *gateway.Client
	epoch      uint64
	listeners  []Listener
}

// New creates an anonymous session and registers for gateway auth failures
func New(store *storage.Store, builder *gateway.Builder) *Manager {
	m := &Manager{
		store:     store,
		builder:   builder,
		validate:  newValidator(),
		loginSlot: semaphore.NewWeighted(1),
		state:     Anonymous,
		client:    builder.Build(gateway.Snapshot{}),
	}
	builder.OnAuthFailure(m.ForceClear)
	return m
}

// Subscribe adds a listener. Listeners are called in subscription order.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// State returns the current state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsAuthenticated reports whether a credential is active
func (m *Manager) IsAuthenticated() bool {
	return m.State() == Authenticated
}

// Identity returns a copy of the current identity, or nil
func (m *Manager) Identity() *models.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identityLocked()
}

func (m *Manager) identityLocked() *models.Identity {
	if m.identity == nil {
		return nil
	}
	id := *m.identity
	return &id
}

// Client returns the client bound to the current session
func (m *Manager) Client() *gateway.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Restore loads a persisted credential without contacting the server
func (m *Manager) Restore(ctx context.Context) bool {
	credential, identity := m.store.LoadCredential()
	if credential == "" || identity == nil {
		return false
	}

	m.mu.Lock()
	if m.state != Anonymous {
		m.mu.Unlock()
		return m.IsAuthenticated()
	}
	m.credential = credential
	m.identity = identity
	m.state = Authenticated
	m.client = m.builder.Build(gateway.Snapshot{Credential: credential, UserID: identity.ID})
	ev := Event{Kind: EventRestored, Client: m.client, Identity: m.identityLocked()}
	m.mu.Unlock()

	slog.Debug("Session restored", "user", identity.Username, "user_id", identity.ID)
	m.notify(ctx, ev)
	return true
}

// Login authenticates, persists the credential, rebuilds the client and then
// notifies listeners. The cart merge runs inside that notification, so the
// login slot stays held until it finishes.
func (m *Manager) Login(ctx context.Context, username, password string) (models.Identity, error) {
	if err := validate(m.validate, models.LoginRequest{Username: username, Password: password}); err != nil {
		return models.Identity{}, err
	}

	if !m.loginSlot.TryAcquire(1) {
		return models.Identity{}, ErrLoginInProgress
	}
	defer m.loginSlot.Release(1)

	m.mu.Lock()
	if m.state == Authenticated {
		m.mu.Unlock()
		return models.Identity{}, ErrAlreadyAuthenticated
	}
	if err := m.transitionLocked(Authenticating); err != nil {
		m.mu.Unlock()
		return models.Identity{}, err
	}
	epoch := m.epoch
	anonymous := m.client
	m.mu.Unlock()

	slog.Info("Logging in", "user", username)

	res, err := anonymous.Login(ctx, username, password)
	if err == nil && res.Token == "" {
		err = &gateway.Error{Kind: gateway.KindServer, Message: "login response did not include a token"}
	}
	if err != nil {
		m.abandonLogin(epoch)
		slog.Warn("Login failed", "user", username, "error", err)
		return models.Identity{}, err
	}

	scoped := m.builder.Build(gateway.Snapshot{Credential: res.Token, UserID: res.UserID})
	identity, err := scoped.CurrentUser(ctx)
	if err != nil {
		if gateway.IsKind(err, gateway.KindAuthorization) {
			m.abandonLogin(epoch)
			return models.Identity{}, err
		}
		slog.Warn("Profile fetch failed after login, using login response", "user", username, "error", err)
		identity = identityFromLogin(res)
	}
	if identity.ID == 0 {
		identity.ID = res.UserID
	}
	if identity.Role == "" {
		identity.Role = models.RoleCustomer
	}

	m.mu.Lock()
	if m.epoch != epoch || m.state != Authenticating {
		m.mu.Unlock()
		return models.Identity{}, ErrSessionChanged
	}
	m.store.SaveCredential(res.Token, identity)
	m.credential = res.Token
	m.identity = &identity
	m.client = m.builder.Build(gateway.Snapshot{Credential: res.Token, UserID: identity.ID})
	if err := m.transitionLocked(Authenticated); err != nil {
		m.mu.Unlock()
		return models.Identity{}, err
	}
	ev := Event{Kind: EventAuthenticated, Client: m.client, Identity: m.identityLocked()}
	m.mu.Unlock()

	slog.Info("Logged in", "user", identity.Username, "user_id", identity.ID, "role", identity.Role)
	m.notify(ctx, ev)

	// A listener's request can fail authorization and clear the session
	m.mu.RLock()
	cleared := m.epoch != epoch || m.state != Authenticated
	m.mu.RUnlock()
	if cleared {
		slog.Warn("Session cleared while finishing login", "user", identity.Username)
		return models.Identity{}, ErrSessionChanged
	}
	return identity, nil
}

func (m *Manager) abandonLogin(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch == epoch && m.state == Authenticating {
		m.state = Anonymous
	}
}

func identityFromLogin(res gateway.LoginResult) models.Identity {
	role := models.RoleCustomer
	if res.UserType == "admin" {
		role = models.RoleAdmin
	}
	return models.Identity{ID: res.UserID, Username: res.Username, Role: role}
}

// Logout tells the server on a best-effort basis, then always clears locally
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	client := m.client
	authenticated := m.state == Authenticated
	m.mu.RUnlock()

	if authenticated {
		if err := client.Logout(ctx); err != nil {
			slog.Warn("Server-side logout failed; clearing local session anyway", "error", err)
		}
	}
	m.clear(ctx, "logout")
}

// ForceClear drops the session after an authorization failure.
// Failures reported by a client built for an older credential are ignored.
func (m *Manager) ForceClear(snapshot gateway.Snapshot) {
	m.mu.RLock()
	current := m.credential
	m.mu.RUnlock()

	if current == "" || snapshot.Credential != current {
		slog.Debug("Ignoring authorization failure from a stale client")
		return
	}
	m.clear(context.Background(), "authorization failure")
}

func (m *Manager) clear(ctx context.Context, reason string) {
	m.store.ClearCredential()

	m.mu.Lock()
	m.credential = ""
	m.identity = nil
	m.state = Anonymous
	m.epoch++
	m.client = m.builder.Build(gateway.Snapshot{})
	ev := Event{Kind: EventCleared, Client: m.client}
	m.mu.Unlock()

	slog.Info("Session cleared", "reason", reason)
	m.notify(ctx, ev)
}

// Register creates an account. The session is not changed: the server
// requires OTP verification before the first login.
func (m *Manager) Register(ctx context.Context, in models.RegisterRequest) (gateway.RegisterResult, error) {
	if err := validate(m.validate, in); err != nil {
		return gateway.RegisterResult{}, err
	}
	return m.Client().Register(ctx, in)
}

// RefreshIdentity re-reads the profile behind the current credential.
// A 401/403 clears the session through the gateway hook before returning.
func (m *Manager) RefreshIdentity(ctx context.Context) (models.Identity, error) {
	m.mu.RLock()
	client := m.client
	state := m.state
	m.mu.RUnlock()

	if state != Authenticated {
		return models.Identity{}, ErrNotAuthenticated
	}

	identity, err := client.CurrentUser(ctx)
	if err != nil {
		return models.Identity{}, fmt.Errorf("identity check failed: %w", err)
	}

	credential := client.Snapshot().Credential

	m.mu.Lock()
	if m.credential != credential {
		m.mu.Unlock()
		return identity, ErrSessionChanged
	}
	if identity.Role == "" {
		identity.Role = models.RoleCustomer
	}
	m.identity = &identity
	m.client = m.builder.Build(gateway.Snapshot{Credential: credential, UserID: identity.ID})
	ev := Event{Kind: EventRefreshed, Client: m.client, Identity: m.identityLocked()}
	m.mu.Unlock()

	m.store.SaveCredential(credential, identity)
	m.notify(ctx, ev)
	return identity, nil
}

func (m *Manager) transitionLocked(next State) error {
	if !m.state.CanTransitionTo(next) {
		return &TransitionError{From: m.state, To: next}
	}
	slog.Debug("Session transition", "from", m.state, "to", next)
	m.state = next
	return nil
}

func (m *Manager) notify(ctx context.Context, ev Event) {
	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()

	for _, l := range listeners {
		l.SessionChanged(ctx, ev)
	}
}
