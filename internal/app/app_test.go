package app

import (
	"context"
	"strings"
	"testing"

	"github.com/chrissnell/wastecast/pkg/config"
	"go.uber.org/zap"
)

func TestBuildCache(t *testing.T) {
	tests := []struct {
		name    string
		cc      config.CacheData
		backend string
		wantErr bool
	}{
		{"default is no cache", config.CacheData{}, "none", false},
		{"explicit none", config.CacheData{Backend: config.CacheNone}, "none", false},
		{"lru", config.CacheData{Backend: config.CacheLRU, Size: 8, TTL: "1m"}, "lru", false},
		{"bad ttl", config.CacheData{Backend: config.CacheLRU, TTL: "soon"}, "", true},
		{"unknown backend", config.CacheData{Backend: "memcached"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, err := buildCache(context.Background(), tt.cc)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildCache: %v", err)
			}
			defer cache.Close()
			if cache.Backend() != tt.backend {
				t.Errorf("backend = %q, want %q", cache.Backend(), tt.backend)
			}
		})
	}
}

type staticProvider struct {
	config.ConfigProvider
	cfg *config.ConfigData
}

func (p staticProvider) LoadConfig() (*config.ConfigData, error) {
	return p.cfg, nil
}

func TestRunRequiresDatabase(t *testing.T) {
	cfg := &config.ConfigData{}
	cfg.ApplyDefaults()

	err := New(staticProvider{cfg: cfg}, zap.NewNop().Sugar(), "test").Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "database") {
		t.Errorf("expected a database error, got %v", err)
	}
}
