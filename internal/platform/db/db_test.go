package db

import (
	"context"
	"testing"
)

func TestOpen_RequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), "  ", PoolOptions{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestOpen_InvalidDSN(t *testing.T) {
	if _, err := Open(context.Background(), "postgres://%zz", PoolOptions{}); err == nil {
		t.Fatal("expected error for unparsable DSN")
	}
}

func TestPoolConfig_Defaults(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@localhost:5432/progress", PoolOptions{})
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if cfg.MaxConns != 10 || cfg.MinConns != 1 {
		t.Fatalf("expected 10/1 conns, got %d/%d", cfg.MaxConns, cfg.MinConns)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; ok {
		t.Fatalf("expected no application_name, got %v", cfg.ConnConfig.RuntimeParams)
	}
}

func TestPoolConfig_ApplicationName(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@localhost:5432/progress", PoolOptions{ApplicationName: "progress", MaxConns: 4})
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "progress" {
		t.Fatalf("expected application_name progress, got %q", got)
	}
	if cfg.MaxConns != 4 {
		t.Fatalf("expected 4 conns, got %d", cfg.MaxConns)
	}
}

func TestPoolConfig_DSNApplicationNameWins(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@localhost:5432/progress?application_name=psql", PoolOptions{ApplicationName: "progress"})
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "psql" {
		t.Fatalf("expected DSN value kept, got %q", got)
	}
}
