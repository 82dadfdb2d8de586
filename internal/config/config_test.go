package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadEngineConfigDefaults(t *testing.T) {
	cfg, err := LoadEngineConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Battle.RewindSteps != 10 {
		t.Errorf("expected default rewind steps 10, got %d", cfg.Battle.RewindSteps)
	}
	if !cfg.Gates.ResetTrackOnFail {
		t.Error("expected reset_track_on_fail to default to true")
	}
	if cfg.Session.Store != StoreFile {
		t.Errorf("expected file store, got %s", cfg.Session.Store)
	}
	if cfg.UIPort() != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.UIPort())
	}
}

func TestLoadEngineConfigFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
version: 1
session:
  seed: 42
  graph: graphs/forest.yaml
battle:
  rewind_steps: 4
gates:
  fail_cooldown_steps: 0
  reset_track_on_fail: false
`)
	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.Seed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.Session.Seed)
	}
	if cfg.Battle.RewindSteps != 4 {
		t.Errorf("expected rewind steps 4, got %d", cfg.Battle.RewindSteps)
	}
	if cfg.Gates.ResetTrackOnFail {
		t.Error("expected reset_track_on_fail false")
	}
	// Untouched sections keep defaults.
	if cfg.Exits.MaxChoices != 3 {
		t.Errorf("expected default max choices 3, got %d", cfg.Exits.MaxChoices)
	}
}

func TestLoadEngineConfigEnvWinsOverFile(t *testing.T) {
	path := writeConfig(t, "version: 1\nbattle:\n  rewind_steps: 4\n")
	t.Setenv("STEPWISE_BATTLE_REWIND_STEPS", "7")
	t.Setenv("STEPWISE_STORE", "sqlite")

	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Battle.RewindSteps != 7 {
		t.Errorf("expected env rewind steps 7, got %d", cfg.Battle.RewindSteps)
	}
	if cfg.Session.Store != StoreSQLite {
		t.Errorf("expected sqlite store, got %s", cfg.Session.Store)
	}
}

func TestLoadEngineConfigRejectsVersion(t *testing.T) {
	path := writeConfig(t, "version: 2\n")
	if _, err := LoadEngineConfig(path); err == nil {
		t.Error("expected error for unsupported version")
	}
}

func TestLoadEngineConfigRejectsStore(t *testing.T) {
	path := writeConfig(t, "version: 1\nsession:\n  store: s3\n")
	if _, err := LoadEngineConfig(path); err == nil {
		t.Error("expected error for unknown store backend")
	}
}
