package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/liveclass-api/pkg/config"
)

func TestConnectionStrings(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "live", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=live sslmode=disable", DSN(cfg))
	assert.Equal(t, "postgres://u:p@db:5433/live?sslmode=disable", URL(cfg))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
}

func TestSessionMigrationDeclaresOverlapExclusion(t *testing.T) {
	raw, err := fs.ReadFile(migrationsFS, "migrations/000002_live_sessions.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "EXCLUDE USING gist")
	assert.Contains(t, string(raw), "status IN ('scheduled', 'live')")
}
