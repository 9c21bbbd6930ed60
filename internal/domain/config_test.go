package domain

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Tier != TierCommunity {
		t.Errorf("tier = %s, want %s", cfg.Tier, TierCommunity)
	}
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("repository driver = %s, want sqlite", cfg.Repository.Driver)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("cache type = %s, want memory", cfg.Cache.Type)
	}
	if cfg.Cache.LocalTTL != 5*time.Minute {
		t.Errorf("local TTL = %s, want 5m", cfg.Cache.LocalTTL)
	}
	if cfg.EventBus.Type != "channel" {
		t.Errorf("event bus type = %s, want channel", cfg.EventBus.Type)
	}
	if cfg.Narrative.Provider != "heuristic" {
		t.Errorf("narrative provider = %s, want heuristic", cfg.Narrative.Provider)
	}
}

func TestProConfig(t *testing.T) {
	cfg := ProConfig()

	if cfg.Tier != TierPro {
		t.Errorf("tier = %s, want %s", cfg.Tier, TierPro)
	}
	if cfg.Repository.Driver != "postgres" {
		t.Errorf("repository driver = %s, want postgres", cfg.Repository.Driver)
	}
	if cfg.Cache.Type != "redis" {
		t.Errorf("cache type = %s, want redis", cfg.Cache.Type)
	}
	if cfg.EventBus.Type != "nats" {
		t.Errorf("event bus type = %s, want nats", cfg.EventBus.Type)
	}
	if !cfg.Tracing.Enabled {
		t.Error("tracing should be enabled in pro tier")
	}
}
