// ABOUTME: Tests for persisted client state
// ABOUTME: Covers file persistence, credential round trips and failure tolerance

package storage

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markalston/storefront-client/internal/models"
)

type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("storage disabled")
}

func (failingKV) Set(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func (failingKV) Delete(context.Context, string) error {
	return errors.New("storage disabled")
}

func TestCredentialRoundTrip(t *testing.T) {
	s := New(NewFileKV(t.TempDir()))

	s.SaveCredential("tok-1", models.Identity{ID: 7, Username: "wanjiku", Role: models.RoleAdmin})

	cred, identity := s.LoadCredential()
	require.NotNil(t, identity)
	assert.Equal(t, "tok-1", cred)
	assert.Equal(t, int64(7), identity.ID)
	assert.Equal(t, "wanjiku", identity.Username)
	assert.True(t, identity.IsAdmin())
}

func TestClearCredentialRemovesAllKeys(t *testing.T) {
	s := New(NewFileKV(t.TempDir()))
	s.SaveCredential("tok-1", models.Identity{ID: 7, Username: "wanjiku"})

	s.ClearCredential()

	cred, identity := s.LoadCredential()
	assert.Empty(t, cred)
	assert.Nil(t, identity)
	assert.False(t, s.Has(KeyAuthToken))
	assert.False(t, s.Has(KeyUserID))
	assert.False(t, s.Has(KeyCurrentUser))
}

func TestLoadCredentialFallsBackToUserID(t *testing.T) {
	s := New(NewFileKV(t.TempDir()))
	s.SetJSON(KeyAuthToken, "tok-2")
	s.SetJSON(KeyUserID, "12")

	cred, identity := s.LoadCredential()
	require.NotNil(t, identity)
	assert.Equal(t, "tok-2", cred)
	assert.Equal(t, int64(12), identity.ID)
	assert.Equal(t, models.RoleCustomer, identity.Role)
}

func TestFailingBackendDegradesToAbsent(t *testing.T) {
	s := New(failingKV{})

	assert.NotPanics(t, func() {
		s.SaveCredential("tok", models.Identity{ID: 1})
		s.ClearCredential()
		s.SaveCartLines([]models.LocalCartLine{{ProductID: 1, Quantity: 1}})
	})

	cred, identity := s.LoadCredential()
	assert.Empty(t, cred)
	assert.Nil(t, identity)
	assert.Empty(t, s.LoadCartLines())
	assert.False(t, s.SetJSON(KeyRecentSearches, []string{"x"}))
}

func TestCorruptFileReadsAsAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0600))
	s := New(NewFileKV(dir))

	cred, identity := s.LoadCredential()
	assert.Empty(t, cred)
	assert.Nil(t, identity)

	// A write replaces the corrupt document
	s.SaveCredential("tok", models.Identity{ID: 3})
	cred, _ = s.LoadCredential()
	assert.Equal(t, "tok", cred)
}

func TestCartLinesPreserveOrder(t *testing.T) {
	s := New(NewFileKV(t.TempDir()))
	lines := []models.LocalCartLine{
		{ProductID: 9, Quantity: 1, Price: decimal.RequireFromString("10.50")},
		{ProductID: 2, Quantity: 3, Price: decimal.RequireFromString("4.00")},
		{ProductID: 5, Quantity: 2, Price: decimal.RequireFromString("1.25")},
	}
	require.True(t, s.SaveCartLines(lines))

	loaded := s.LoadCartLines()
	require.Len(t, loaded, 3)
	assert.Equal(t, int64(9), loaded[0].ProductID)
	assert.Equal(t, int64(2), loaded[1].ProductID)
	assert.Equal(t, int64(5), loaded[2].ProductID)
	assert.True(t, loaded[0].Price.Equal(decimal.RequireFromString("10.5")))

	require.True(t, s.ClearCartLines())
	assert.False(t, s.Has(KeyCartItems))
}

func TestCookiesRoundTrip(t *testing.T) {
	s := New(NewFileKV(t.TempDir()))
	s.SaveCookies([]*http.Cookie{{Name: "csrftoken", Value: "abc"}})

	cookies := s.LoadCookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "csrftoken", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestFileKVPermissions(t *testing.T) {
	kv := NewFileKV(t.TempDir())
	require.NoError(t, kv.Set(context.Background(), "k", []byte(`"v"`)))

	info, err := os.Stat(kv.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileKVRejectsInvalidJSON(t *testing.T) {
	kv := NewFileKV(t.TempDir())
	assert.Error(t, kv.Set(context.Background(), "k", []byte("not json")))
}

func TestRedisKV(t *testing.T) {
	url := os.Getenv("STOREFRONT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STOREFRONT_TEST_REDIS_URL not set")
	}

	kv, err := OpenRedisKV(url, "storefront-test:")
	require.NoError(t, err)
	defer kv.Close()

	s := New(kv)
	s.SaveCredential("tok-r", models.Identity{ID: 4, Username: "otieno"})
	defer s.ClearCredential()

	cred, identity := s.LoadCredential()
	require.NotNil(t, identity)
	assert.Equal(t, "tok-r", cred)
	assert.Equal(t, "otieno", identity.Username)
}
