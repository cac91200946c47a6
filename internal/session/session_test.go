// ABOUTME: Tests for the session manager
// ABOUTME: Covers login serialization, logout, forced clears, restore and registration

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markalston/storefront-client/internal/gateway"
	"github.com/markalston/storefront-client/internal/models"
	"github.com/markalston/storefront-client/internal/storage"
	"github.com/markalston/storefront-client/internal/storefronttest"
)

type recordingListener struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingListener) SessionChanged(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingListener) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	api     *storefronttest.Server
	store   *storage.Store
	manager *Manager
	events  *recordingListener
	userID  int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	api := storefronttest.New(t)
	userID := api.AddUser("amina", "pass1234", false)
	api.AddUser("boss", "pass1234", true)

	builder, err := gateway.NewBuilder(gateway.Options{BaseURL: api.BaseURL(), Timeout: 5 * time.Second})
	require.NoError(t, err)

	store := storage.New(storage.NewFileKV(t.TempDir()))
	m := New(store, builder)
	events := &recordingListener{}
	m.Subscribe(events)

	return &harness{api: api, store: store, manager: m, events: events, userID: userID}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Anonymous, Authenticating, true},
		{Anonymous, Authenticated, true},
		{Authenticating, Authenticated, true},
		{Authenticating, Anonymous, true},
		{Authenticated, Anonymous, true},
		{Authenticated, Authenticating, false},
		{Authenticating, Authenticating, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestLoginSuccess(t *testing.T) {
	h := newHarness(t)

	identity, err := h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)

	assert.Equal(t, h.userID, identity.ID)
	assert.Equal(t, "amina", identity.Username)
	assert.Equal(t, models.RoleCustomer, identity.Role)
	assert.True(t, h.manager.IsAuthenticated())

	cred, stored := h.store.LoadCredential()
	require.NotNil(t, stored)
	assert.NotEmpty(t, cred)
	assert.Equal(t, h.userID, stored.ID)
	assert.Equal(t, []EventKind{EventAuthenticated}, h.events.kinds())
}

func TestLoginAdminRole(t *testing.T) {
	h := newHarness(t)

	identity, err := h.manager.Login(context.Background(), "boss", "pass1234")
	require.NoError(t, err)
	assert.True(t, identity.IsAdmin())
}

func TestNextRequestAfterLoginCarriesNewCredential(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)
	cred, _ := h.store.LoadCredential()

	h.api.ResetCalls()
	_, err = h.manager.RefreshIdentity(context.Background())
	require.NoError(t, err)

	calls := h.api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Token "+cred, calls[0].Authorization)
}

func TestListenersSeeRebuiltClient(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)
	cred, _ := h.store.LoadCredential()

	require.Len(t, h.events.events, 1)
	ev := h.events.events[0]
	assert.Equal(t, cred, ev.Client.Snapshot().Credential)
	assert.Equal(t, h.userID, ev.Client.Snapshot().UserID)
	require.NotNil(t, ev.Identity)
}

func TestLoginBadCredentials(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Login(context.Background(), "amina", "wrong")
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindAuthorization))

	assert.Equal(t, Anonymous, h.manager.State())
	cred, _ := h.store.LoadCredential()
	assert.Empty(t, cred)
	assert.Empty(t, h.events.kinds())
}

func TestLoginNetworkFailure(t *testing.T) {
	builder, err := gateway.NewBuilder(gateway.Options{BaseURL: "http://127.0.0.1:1/api/"})
	require.NoError(t, err)
	m := New(storage.New(storage.NewFileKV(t.TempDir())), builder)

	_, err = m.Login(context.Background(), "amina", "pass1234")
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindNetwork))
	assert.Equal(t, Anonymous, m.State())
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Login(context.Background(), "", "")
	require.Error(t, err)

	var apiErr *gateway.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, gateway.KindValidation, apiErr.Kind)
	assert.Contains(t, apiErr.Fields, "username")
	assert.Contains(t, apiErr.Fields, "password")
	assert.Empty(t, h.api.Calls())
}

func TestConcurrentLoginRejected(t *testing.T) {
	h := newHarness(t)
	arrived, release := h.api.Hold("login")

	done := make(chan error, 1)
	go func() {
		_, err := h.manager.Login(context.Background(), "amina", "pass1234")
		done <- err
	}()

	<-arrived
	assert.Equal(t, Authenticating, h.manager.State())

	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	assert.ErrorIs(t, err, ErrLoginInProgress)

	release()
	require.NoError(t, <-done)
	assert.True(t, h.manager.IsAuthenticated())
	assert.Len(t, h.api.CallsTo("auth/login/"), 1)
}

func TestLogoutDuringLoginInstallsNothing(t *testing.T) {
	h := newHarness(t)
	arrived, release := h.api.Hold("login")
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := h.manager.Login(context.Background(), "amina", "pass1234")
		done <- err
	}()

	<-arrived
	h.manager.Logout(context.Background())
	release()

	err := <-done
	assert.ErrorIs(t, err, ErrSessionChanged)
	assert.Equal(t, Anonymous, h.manager.State())
	assert.Nil(t, h.manager.Identity())

	cred, identity := h.store.LoadCredential()
	assert.Empty(t, cred)
	assert.Nil(t, identity)
	assert.NotContains(t, h.events.kinds(), EventAuthenticated)
}

type clearingListener struct {
	manager *Manager
}

func (c clearingListener) SessionChanged(_ context.Context, ev Event) {
	if ev.Kind == EventAuthenticated {
		c.manager.ForceClear(ev.Client.Snapshot())
	}
}

func TestLoginReportsSessionClearedByListener(t *testing.T) {
	h := newHarness(t)
	h.manager.Subscribe(clearingListener{manager: h.manager})

	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	assert.ErrorIs(t, err, ErrSessionChanged)
	assert.Equal(t, Anonymous, h.manager.State())
	assert.False(t, h.manager.IsAuthenticated())
}

func TestLoginWhileAuthenticated(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)

	_, err = h.manager.Login(context.Background(), "amina", "pass1234")
	assert.ErrorIs(t, err, ErrAlreadyAuthenticated)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)
	cred, _ := h.store.LoadCredential()

	h.manager.Logout(context.Background())

	assert.False(t, h.manager.IsAuthenticated())
	assert.Nil(t, h.manager.Identity())
	assert.Empty(t, h.manager.Client().Snapshot().Credential)
	assert.False(t, h.api.TokenValid(cred))
	assert.Len(t, h.api.CallsTo("auth/logout/"), 1)
	assert.Equal(t, []EventKind{EventAuthenticated, EventCleared}, h.events.kinds())

	stored, _ := h.store.LoadCredential()
	assert.Empty(t, stored)
}

func TestLogoutClearsWhenServerRejects(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)

	h.api.RevokeTokens()
	h.manager.Logout(context.Background())

	assert.Equal(t, Anonymous, h.manager.State())
	stored, identity := h.store.LoadCredential()
	assert.Empty(t, stored)
	assert.Nil(t, identity)
}

func TestUnauthorizedResponseForcesLogout(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)

	h.api.RevokeTokens()
	_, err = h.manager.Client().Orders(context.Background(), h.userID)
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindAuthorization))

	// Cleared before the failing call returned
	assert.False(t, h.manager.IsAuthenticated())
	stored, identity := h.store.LoadCredential()
	assert.Empty(t, stored)
	assert.Nil(t, identity)
	assert.Empty(t, h.api.CallsTo("auth/logout/"), "forced clear must not call the server")
}

func TestRefreshIdentityUnauthorized(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)

	h.api.RevokeTokens()
	_, err = h.manager.RefreshIdentity(context.Background())
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindAuthorization))
	assert.Equal(t, Anonymous, h.manager.State())
}

func TestStaleClientFailureIgnored(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)
	old := h.manager.Client()

	h.manager.Logout(context.Background())
	_, err = h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)

	_, err = old.CurrentUser(context.Background())
	require.Error(t, err)
	assert.True(t, h.manager.IsAuthenticated())
}

func TestRestore(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Login(context.Background(), "amina", "pass1234")
	require.NoError(t, err)
	cred, _ := h.store.LoadCredential()

	builder, err := gateway.NewBuilder(gateway.Options{BaseURL: h.api.BaseURL()})
	require.NoError(t, err)
	restored := New(h.store, builder)
	events := &recordingListener{}
	restored.Subscribe(events)

	require.True(t, restored.Restore(context.Background()))
	assert.True(t, restored.IsAuthenticated())
	assert.Equal(t, cred, restored.Client().Snapshot().Credential)
	assert.Equal(t, []EventKind{EventRestored}, events.kinds())
}

func TestRestoreWithoutCredential(t *testing.T) {
	h := newHarness(t)

	assert.False(t, h.manager.Restore(context.Background()))
	assert.Equal(t, Anonymous, h.manager.State())
}

func TestRefreshRequiresSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.RefreshIdentity(context.Background())
	assert.True(t, errors.Is(err, ErrNotAuthenticated))
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	res, err := h.manager.Register(context.Background(), models.RegisterRequest{
		Username:        "kibet",
		Email:           "kibet@example.com",
		Password:        "longenough",
		ConfirmPassword: "longenough",
	})
	require.NoError(t, err)
	assert.True(t, res.RequiresOTP)
	assert.Equal(t, "kibet", res.Username)
	assert.Equal(t, Anonymous, h.manager.State())
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Register(context.Background(), models.RegisterRequest{
		Username:        "kibet",
		Email:           "not-an-email",
		Password:        "longenough",
		ConfirmPassword: "different1",
	})
	require.Error(t, err)

	var apiErr *gateway.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Fields, "email")
	assert.Contains(t, apiErr.Fields, "confirm_password")
	assert.Empty(t, h.api.CallsTo("auth/register/"))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Register(context.Background(), models.RegisterRequest{
		Username:        "amina",
		Email:           "amina2@example.com",
		Password:        "longenough",
		ConfirmPassword: "longenough",
	})
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindValidation))
	assert.Contains(t, err.Error(), "already exists")
}
