package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withSearchPaths(t *testing.T, paths []string) {
	t.Helper()
	orig := searchPathsFunc
	searchPathsFunc = func() []string { return paths }
	t.Cleanup(func() { searchPathsFunc = orig })
}

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen: [\":9000\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig() error = %v", err)
	}
	if got != path {
		t.Errorf("FindConfig() = %q, want %q", got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig() with missing explicit path should error")
	}
}

func TestFindConfig_SearchPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen: [\":9000\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	withSearchPaths(t, []string{filepath.Join(dir, "missing.yaml"), path})

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig() error = %v", err)
	}
	if got != path {
		t.Errorf("FindConfig() = %q, want %q", got, path)
	}
}

func TestFindConfig_NoneFound(t *testing.T) {
	dir := t.TempDir()
	withSearchPaths(t, []string{filepath.Join(dir, "missing.yaml")})

	if _, err := FindConfig(""); err == nil {
		t.Fatal("FindConfig() with no matching search path should error")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("EVENTD_TEST_SECRET", "s3kr3t")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  websocket_secret: \"${EVENTD_TEST_SECRET}\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.WebSocketSecret != "s3kr3t" {
		t.Errorf("WebSocketSecret = %q, want s3kr3t", cfg.Server.WebSocketSecret)
	}
}

func TestLoad_Extends(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	base := "server:\n  listen: [\":9000\"]\n  ping_interval_sec: 30\nactions:\n  - id: base-action\n"
	if err := os.WriteFile(basePath, []byte(base), 0o644); err != nil {
		t.Fatal(err)
	}

	overlayPath := filepath.Join(dir, "overlay.yaml")
	overlay := "extends: base.yaml\nserver:\n  listen: [\":9001\"]\nactions:\n  - id: overlay-action\n"
	if err := os.WriteFile(overlayPath, []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(overlayPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Server.Listen) != 1 || cfg.Server.Listen[0] != ":9001" {
		t.Errorf("Listen = %v, want overlay's [:9001]", cfg.Server.Listen)
	}
	if cfg.Server.PingIntervalSec != 30 {
		t.Errorf("PingIntervalSec = %d, want base's 30 (not overridden)", cfg.Server.PingIntervalSec)
	}
	if len(cfg.Actions) != 2 {
		t.Fatalf("Actions = %v, want base+overlay concatenated (2 entries)", cfg.Actions)
	}
	if cfg.Actions[0].ID != "base-action" || cfg.Actions[1].ID != "overlay-action" {
		t.Errorf("Actions = %v, want [base-action overlay-action] in that order", cfg.Actions)
	}
}

func TestMerge_PluginsKeyByKey(t *testing.T) {
	base := &Config{Plugins: map[string]map[string]string{
		"a": {"x": "1"},
		"b": {"y": "2"},
	}}
	overlay := &Config{Plugins: map[string]map[string]string{
		"b": {"y": "3"},
	}}

	out := Merge(base, overlay)
	if out.Plugins["a"]["x"] != "1" {
		t.Errorf("Plugins[a][x] = %q, want 1 (kept from base)", out.Plugins["a"]["x"])
	}
	if out.Plugins["b"]["y"] != "3" {
		t.Errorf("Plugins[b][y] = %q, want 3 (overridden)", out.Plugins["b"]["y"])
	}
}

func TestValidate_DuplicateActionID(t *testing.T) {
	cfg := &Config{Actions: []ActionConfig{{ID: "x"}, {ID: "x"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should reject duplicate action ids")
	}
}

func TestValidate_ActionMissingID(t *testing.T) {
	cfg := &Config{Actions: []ActionConfig{{}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should reject an action with no id")
	}
}

func TestValidate_RelayMissingName(t *testing.T) {
	cfg := &Config{Relays: []RelayPeerConfig{{URI: "tcp://localhost:1234"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should reject a relay with no name")
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := &Config{
		Actions: []ActionConfig{{ID: "a"}, {ID: "b"}},
		Relays:  []RelayPeerConfig{{Name: "peer1"}},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestApplyDefaults_PingInterval(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	if cfg.Server.PingIntervalSec != 60 {
		t.Errorf("PingIntervalSec = %d, want default 60", cfg.Server.PingIntervalSec)
	}
}

func TestApplyDefaults_QueueAnchorMarginSpacing(t *testing.T) {
	cfg := &Config{Queues: []QueueConfig{{Name: "q"}}}
	cfg.applyDefaults()
	q := cfg.Queues[0]
	if q.Anchor != "top-right" {
		t.Errorf("Anchor = %q, want default top-right", q.Anchor)
	}
	if q.Margin != 8 {
		t.Errorf("Margin = %d, want default 8", q.Margin)
	}
	if q.Spacing != 4 {
		t.Errorf("Spacing = %d, want default 4", q.Spacing)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if len(cfg.Server.Listen) == 0 {
		t.Error("Default() should populate a listen address")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() config should validate, got %v", err)
	}
}
