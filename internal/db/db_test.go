package db

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/mrag/internal/config"
)

func TestBuildDSN(t *testing.T) {
	require.Equal(t, "postgres://x", BuildDSN(config.DatabaseConfig{DSN: "postgres://x", Host: "ignored"}))
	require.Equal(t,
		"host=db port=5432 user=u password=p dbname=rag sslmode=disable",
		BuildDSN(config.DatabaseConfig{Host: "db", User: "u", Password: "p", DBName: "rag"}),
	)
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_embedding_cache.sql")
	require.NoError(t, err)
	require.Contains(t, string(data), "embedding_cache")
}

// Needs a postgres reachable through TEST_DB_* variables.
func TestApplyMigrations(t *testing.T) {
	cfg, ok := testDBConfig()
	if !ok {
		t.Skip("TEST_DB_HOST not set")
	}
	ctx := context.Background()
	conn, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, ApplyMigrations(ctx, conn))
	require.NoError(t, ApplyMigrations(ctx, conn))
}

func testDBConfig() (config.DatabaseConfig, bool) {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		return config.DatabaseConfig{}, false
	}
	port, _ := strconv.Atoi(os.Getenv("TEST_DB_PORT"))
	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv("TEST_DB_USER"),
		Password: os.Getenv("TEST_DB_PASSWORD"),
		DBName:   os.Getenv("TEST_DB_NAME"),
	}, true
}
