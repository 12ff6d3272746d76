package sessionstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"agribid-backend/internal/domain"
	"agribid-backend/internal/repository/sessionstore"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() *domain.Session {
	confirmed := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	return &domain.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "bearer",
		ExpiresAt:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Identity: domain.Identity{
			ID:               "u1",
			Email:            "abebe@example.com",
			CreatedAt:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			EmailConfirmedAt: &confirmed,
		},
	}
}

func exerciseStore(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := testSession()
	require.NoError(t, store.Save(ctx, want))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, want.Identity.ID, got.Identity.ID)
	require.NotNil(t, got.Identity.EmailConfirmedAt)
	assert.True(t, want.Identity.EmailConfirmedAt.Equal(*got.Identity.EmailConfirmedAt))

	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Clearing twice is not an error.
	require.NoError(t, store.Clear(ctx))
}

func TestMemoryStore(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		exerciseStore(t, sessionstore.NewMemoryStore(nil))
	})

	t.Run("Initial session is copied", func(t *testing.T) {
		initial := testSession()
		store := sessionstore.NewMemoryStore(initial)
		initial.AccessToken = "mutated"

		got, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "access-1", got.AccessToken)
	})
}

func TestFileStore(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "session.json")
		exerciseStore(t, sessionstore.NewFileStore(path))
	})

	t.Run("File is owner only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		store := sessionstore.NewFileStore(path)
		require.NoError(t, store.Save(context.Background(), testSession()))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("Corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, err := sessionstore.NewFileStore(path).Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("Empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		got, err := sessionstore.NewFileStore(path).Load(context.Background())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

// TestRedisStore runs against a real server when AGRIBID_TEST_REDIS_URL is set.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("AGRIBID_TEST_REDIS_URL")
	if url == "" {
		t.Skip("AGRIBID_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, sessionstore.NewRedisStore(client, "test-"+t.Name(), time.Minute))
}
