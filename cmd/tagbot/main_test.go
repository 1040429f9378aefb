package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tensaey-sol/tag-bot/internal/config"
	"github.com/Tensaey-sol/tag-bot/internal/domain"
)

func TestOpenStore_SQLite(t *testing.T) {
	ctx := context.Background()
	st, err := openStore(ctx, config.StorageConfig{
		Driver: config.DriverSQLite,
		DBPath: filepath.Join(t.TempDir(), "main_test.db"),
	})
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(ctx) })

	if err := st.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := st.AddChatMember(ctx, 1, domain.Member{UserID: 7, Handle: "alice"}); err != nil {
		t.Fatalf("store should be migrated and usable: %v", err)
	}
}

func TestOpenStore_Errors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{"unknown driver", config.StorageConfig{Driver: "redis"}, `unknown storage driver "redis"`},
		{"postgres without dsn", config.StorageConfig{Driver: config.DriverPostgres}, "postgres:"},
	}
	for _, tc := range tests {
		if _, err := openStore(ctx, tc.cfg); err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.want, err)
		}
	}
}
