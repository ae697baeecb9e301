package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidAPIKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "valid groq key", in: "gsk_abc123", want: true},
		{name: "trims whitespace", in: "  gsk_abc123  ", want: true},
		{name: "empty", in: "", want: false},
		{name: "wrong prefix", in: "sk-abc123", want: false},
		{name: "prefix only is still accepted", in: "gsk_", want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidAPIKey(tc.in); got != tc.want {
				t.Fatalf("ValidAPIKey(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseLevelFallsBackToIntermediate(t *testing.T) {
	if got := ParseLevel("BEGINNER"); got != LevelBeginner {
		t.Fatalf("ParseLevel(BEGINNER) = %q", got)
	}
	if got := ParseLevel("fluent"); got != LevelIntermediate {
		t.Fatalf("ParseLevel(fluent) = %q, want intermediate", got)
	}
	if got := ParseLevel(""); got != LevelIntermediate {
		t.Fatalf("ParseLevel(empty) = %q, want intermediate", got)
	}
}

func TestParseRoleplayKeepsUnknownScenarios(t *testing.T) {
	if got := ParseRoleplay(""); got != RoleplayGeneral {
		t.Fatalf("ParseRoleplay(empty) = %q, want general", got)
	}
	// The scenario set is open to extension.
	if got := ParseRoleplay("Courtroom"); got != "courtroom" {
		t.Fatalf("ParseRoleplay(Courtroom) = %q, want courtroom", got)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	cfg := DefaultConfig()
	cfg.APIKey = "gsk_test"
	cfg.Level = LevelAdvanced
	cfg.Roleplay = RoleplayInterview
	cfg.PreferredVoiceID = "en-GB-standard"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("save config: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if loaded.APIKey != "gsk_test" || loaded.Level != LevelAdvanced || loaded.Roleplay != RoleplayInterview {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if loaded.PreferredVoiceID != "en-GB-standard" {
		t.Fatalf("voice id lost: %+v", loaded)
	}
	if loaded.AnalysisModel != DefaultAnalysisModel {
		t.Fatalf("analysis model = %q", loaded.AnalysisModel)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL || cfg.HistoryLimit != DefaultHistoryLimit {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.RequestTimeout() != DefaultRequestTimeout {
		t.Fatalf("timeout = %v", cfg.RequestTimeout())
	}
}

func TestLoadConfigFallsBackToEnvKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk_from_env")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.APIKey != "gsk_from_env" {
		t.Fatalf("env fallback missing: %q", cfg.APIKey)
	}
}

func TestWatchConfigReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := SaveConfig(DefaultConfig(), path); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	reloaded := make(chan Config, 1)
	watcher, err := WatchConfig(path, NewQuietLogger(), func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("watch config: %v", err)
	}
	defer watcher.Close()

	updated := DefaultConfig()
	updated.Level = LevelBeginner
	if err := os.WriteFile(path, mustYAML(t, updated), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Level != LevelBeginner {
			t.Fatalf("reloaded level = %q, want beginner", cfg.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("config reload never fired")
	}
}

func mustYAML(t *testing.T, cfg Config) []byte {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "tmp.yml")
	if err := SaveConfig(cfg, tmp); err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	return data
}
