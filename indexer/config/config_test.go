package config

import "testing"

func TestLoadFallsBackToDefaultsWhenUnset(t *testing.T) {
	cfg := Load()
	if cfg.NodeWebsocketURL == "" {
		t.Fatal("expected a non-empty default node websocket URL")
	}
	if cfg.BatchSize <= 0 {
		t.Fatalf("BatchSize default = %d, want > 0", cfg.BatchSize)
	}
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("NODE_WS_URL", "ws://example.invalid:1234")
	t.Setenv("BATCH_SIZE", "250")
	t.Setenv("NETWORK_ID", "2")

	cfg := Load()
	if cfg.NodeWebsocketURL != "ws://example.invalid:1234" {
		t.Fatalf("NodeWebsocketURL = %q, want override", cfg.NodeWebsocketURL)
	}
	if cfg.BatchSize != 250 {
		t.Fatalf("BatchSize = %d, want 250", cfg.BatchSize)
	}
	if cfg.NetworkID != 2 {
		t.Fatalf("NetworkID = %d, want 2", cfg.NetworkID)
	}
}

func TestLoadFallsBackOnMalformedInt(t *testing.T) {
	t.Setenv("BATCH_SIZE", "not-a-number")
	cfg := Load()
	if cfg.BatchSize != 64 {
		t.Fatalf("BatchSize with malformed env = %d, want fallback 64", cfg.BatchSize)
	}
}
