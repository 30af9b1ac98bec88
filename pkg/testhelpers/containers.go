// Package testhelpers provides shared fixtures for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ekaya-inc/ekaya-match/pkg/retry"
)

// PostgresImage is the stock PostgreSQL image used for integration tests.
const PostgresImage = "postgres:16-alpine"

const (
	testDatabase = "match_data"
	testUser     = "match"
	testPassword = "test_password"
)

// SeedSQL creates the tables integration tests read from. chart_of_accounts
// holds the target side of the cash/equity scenario; ledger_lines the source.
const SeedSQL = `
CREATE SCHEMA IF NOT EXISTS finance;

CREATE TABLE IF NOT EXISTS finance.chart_of_accounts (
	"DataItemID" TEXT PRIMARY KEY,
	label        TEXT,
	balance      NUMERIC(12, 2)
);

INSERT INTO finance.chart_of_accounts ("DataItemID", label, balance) VALUES
	('1001', 'Cash(s)', 1500.00),
	('1002', 'CashandCashequivalents', 2500.50),
	('1003', 'Pref.Equity', NULL),
	('1004', 'Property Expenses', 12.00)
ON CONFLICT DO NOTHING;

CREATE TABLE IF NOT EXISTS public.ledger_lines (
	line_no INTEGER PRIMARY KEY,
	caption TEXT
);

INSERT INTO public.ledger_lines (line_no, caption) VALUES
	(1, 'Other Reverses'),
	(2, 'Cash'),
	(3, 'Cash and Cash equivalents'),
	(4, 'Preffered Equity'),
	(5, NULL)
ON CONFLICT DO NOTHING;
`

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
}

// DatasourceConfig returns the connection map accepted by the postgres adapter.
func (db *TestDB) DatasourceConfig() map[string]any {
	return map[string]any{
		"host":     db.Host,
		"port":     db.Port,
		"user":     testUser,
		"password": testPassword,
		"database": testDatabase,
		"ssl_mode": "disable",
	}
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created and seeded once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		// The server logs readiness twice: once for the init phase, once for real.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid mapped port %q: %w", mapped.Port(), err)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		testUser, testPassword, host, port, testDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	err = retry.Do(ctx, &retry.Config{
		MaxRetries:   10,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   1,
	}, func() error {
		return pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("test database never became reachable: %w", err)
	}

	if _, err := pool.Exec(ctx, SeedSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to seed test database: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port,
	}, nil
}
