package database

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, 2, ups)
	assert.Equal(t, ups, downs)
}

// TestMigrator runs against a real database when TEST_DATABASE_URL is set.
func TestMigrator(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Skipf("database unreachable: %v", err)
	}
	_, err = db.Exec(`DROP TABLE IF EXISTS products, user_profiles, schema_migrations CASCADE`)
	require.NoError(t, err)

	mg, err := NewMigrator(dbURL)
	require.NoError(t, err)
	defer mg.Close()

	require.NoError(t, mg.Up())
	require.NoError(t, mg.Up(), "second Up is a no-op")

	version, dirty, err := mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	var exists bool
	err = db.QueryRowContext(context.Background(),
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'user_profiles')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, mg.Down(2))
	version, _, err = mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}
