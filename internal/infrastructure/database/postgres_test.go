package database

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/nexus-orchestrator/internal/config"
)

func TestOpenJournal_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := config.DatabaseConfig{
		Host:         "127.0.0.1",
		Port:         1,
		User:         "nexus",
		Password:     "nexus",
		Name:         "nexus",
		SSLMode:      "disable",
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}

	db, err := OpenJournal(ctx, cfg, zap.NewNop())
	if err == nil {
		db.Close()
		t.Fatal("expected error for unreachable database")
	}
	if db != nil {
		t.Error("expected no pool on failure")
	}
}
