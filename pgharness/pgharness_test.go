package pgharness_test

import (
	"database/sql"
	"fmt"
	"os/exec"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mickamy/sql-tap-proxy/pgharness"
)

func requirePostgresBinaries(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"initdb", "postgres", "pg_isready"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not on PATH, skipping harness test", bin)
		}
	}
}

func TestHarnessAcceptsConnections(t *testing.T) {
	requirePostgresBinaries(t)

	ctx := t.Context()
	h := pgharness.New()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = h.Stop(ctx) })

	dsn := fmt.Sprintf("postgres://postgres@%s:%d/postgres?sslmode=disable", h.Host(), h.Port())
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	var got int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&got); err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestHarnessWithTLS(t *testing.T) {
	requirePostgresBinaries(t)

	ctx := t.Context()
	h := pgharness.New(pgharness.WithTLS())
	if err := h.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = h.Stop(ctx) })

	dsn := fmt.Sprintf("postgres://postgres@%s:%d/postgres?sslmode=require", h.Host(), h.Port())
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	var got int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&got); err != nil {
		t.Fatalf("query over tls: %v", err)
	}
	if got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}
