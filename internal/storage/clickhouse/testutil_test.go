package clickhouse

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	// Start ClickHouse container
	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	// Get native port (9000)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	// Connect to ClickHouse
	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	// Run migrations
	runTestMigrations(t, conn)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// runTestMigrations applies the decision_log schema, preferring the SQL file
// shipped with the migrations package and falling back to an inline copy.
func runTestMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	paths := []string{
		"../migrations/clickhouse/001_decision_log.sql",
		"internal/storage/migrations/clickhouse/001_decision_log.sql",
	}

	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		err = conn.Exec(ctx, string(content))
		require.NoError(t, err, "failed to apply migration %s", p)
		return
	}

	// Fall back to inline schema
	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS decision_log (
			session_id          String,
			event_id            String,
			decided_at_ms       UInt64,
			episode             UInt32,
			match_index         UInt32,
			action              String,
			confidence          Float64,
			explored            Bool,
			gated               Bool,
			price               Float64,
			outcome             String,
			reward              Float64,
			epsilon             Float64
		) ENGINE = MergeTree()
		ORDER BY (session_id, decided_at_ms)
		SETTINGS index_granularity = 8192
	`)
	require.NoError(t, err)
}
