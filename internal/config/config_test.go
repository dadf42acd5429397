package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"api_key": "test-key",
		"model_tier": "lite",
		"concurrency_limit": 8,
		"failure_policy": "stop",
		"allowed_stop_reasons": ["stop", "max_tokens"],
		"database_url": "postgres://localhost/forge",
		"s3_bucket": "artifacts"
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("expected api key test-key, got %q", cfg.APIKey)
	}
	if cfg.ConcurrencyLimit != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.ConcurrencyLimit)
	}
	if len(cfg.AllowedStopReasons) != 2 {
		t.Errorf("expected two allowed stop reasons, got %v", cfg.AllowedStopReasons)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfig(writeConfig(t, "not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero value is valid", Config{}, false},
		{"defaults are valid", DefaultConfig(), false},
		{"unknown tier", Config{ModelTier: "turbo"}, true},
		{"unknown failure policy", Config{FailurePolicy: "retry"}, true},
		{"unknown stop reason", Config{AllowedStopReasons: []string{"stop", "timeout"}}, true},
		{"concurrency above cap", Config{ConcurrencyLimit: 100}, true},
		{"negative cache ttl", Config{TemplateCacheTTLSeconds: -1}, true},
		{"prefix without bucket", Config{S3Prefix: "forge/"}, true},
		{"endpoint must be a url", Config{S3Endpoint: "not a url"}, true},
		{"full valid config", Config{
			ModelTier:          "advanced",
			ConcurrencyLimit:   16,
			FailurePolicy:      "continue",
			AllowedStopReasons: []string{"stop"},
			S3Bucket:           "artifacts",
			S3Prefix:           "forge/",
			S3Endpoint:         "http://localhost:9000",
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{APIKey: "explicit-key", ConcurrencyLimit: 2}
	merged := cfg.MergeWithDefaults(DefaultConfig())

	if merged.APIKey != "explicit-key" {
		t.Errorf("explicit value must win, got %q", merged.APIKey)
	}
	if merged.ConcurrencyLimit != 2 {
		t.Errorf("explicit concurrency must win, got %d", merged.ConcurrencyLimit)
	}
	if merged.ModelTier != "standard" {
		t.Errorf("expected default tier, got %q", merged.ModelTier)
	}
	if merged.FailurePolicy != "continue" {
		t.Errorf("expected default failure policy, got %q", merged.FailurePolicy)
	}
	if len(merged.AllowedStopReasons) != 1 || merged.AllowedStopReasons[0] != "stop" {
		t.Errorf("expected default allow-list, got %v", merged.AllowedStopReasons)
	}
	if merged.TemplateCacheTTLSeconds != 300 {
		t.Errorf("expected default cache ttl, got %d", merged.TemplateCacheTTLSeconds)
	}
}
