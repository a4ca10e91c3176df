// Package testpg starts a throwaway embedded Postgres for integration tests.
// Each test package uses its own port and runtime directory so packages can
// run in parallel.
package testpg

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/akload/internal/db"
)

const (
	testUser     = "postgres"
	testPassword = "postgres"
)

var dsn string

// Main runs the package tests against an embedded Postgres listening on port.
// Under -short no database is started and DB tests skip themselves.
func Main(m *testing.M, name string, port uint32) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	dsn = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, port, name)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Database(name).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			RuntimePath(filepath.Join(os.TempDir(), "akload-testpg-"+name)).
			StartTimeout(30*time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

// DSN returns the connection string of the running database.
func DSN() string {
	return dsn
}

// Pool connects to the test database, drops the given schemas and returns
// the pool. The pool is closed when the test ends.
func Pool(t *testing.T, schemas ...string) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	for _, schema := range schemas {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			t.Fatalf("drop schema %s: %v", schema, err)
		}
	}
	return pool
}

// Warehouse returns a pool on a freshly migrated warehouse schema.
func Warehouse(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool := Pool(t, "ak")
	if err := db.ApplyMigrations(context.Background(), pool, zerolog.Nop()); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return pool
}

// Explorer returns a pool on a freshly created explorer schema.
func Explorer(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool := Pool(t, "akrr")
	if err := db.ApplyExplorerSchema(context.Background(), pool, zerolog.Nop()); err != nil {
		t.Fatalf("explorer schema: %v", err)
	}
	return pool
}
