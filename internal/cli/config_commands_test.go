package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/s3transfer/transferctl/internal/config"
)

// TestConfigPath tests the config path command
func TestConfigPath(t *testing.T) {
	cmd := newConfigPathCmd()
	if cmd == nil {
		t.Fatal("newConfigPathCmd() returned nil")
	}

	if cmd.Use != "path" {
		t.Errorf("Expected Use='path', got '%s'", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("Short description is empty")
	}
}

// TestConfigShow tests the config show command
func TestConfigShow(t *testing.T) {
	cmd := newConfigShowCmd()
	if cmd == nil {
		t.Fatal("newConfigShowCmd() returned nil")
	}

	if cmd.Use != "show" {
		t.Errorf("Expected Use='show', got '%s'", cmd.Use)
	}

	if cmd.RunE == nil {
		t.Error("RunE function is nil")
	}
}

// TestConfigInit tests the config init command structure
func TestConfigInit(t *testing.T) {
	cmd := newConfigInitCmd()
	if cmd == nil {
		t.Fatal("newConfigInitCmd() returned nil")
	}

	if cmd.Use != "init" {
		t.Errorf("Expected Use='init', got '%s'", cmd.Use)
	}

	if cmd.RunE == nil {
		t.Error("RunE function is nil")
	}

	if cmd.Flags().Lookup("force") == nil {
		t.Error("--force flag not found")
	}
}

// TestConfigCmd tests the config command group
func TestConfigCmd(t *testing.T) {
	cmd := newConfigCmd()
	if cmd == nil {
		t.Fatal("newConfigCmd() returned nil")
	}

	if cmd.Use != "config" {
		t.Errorf("Expected Use='config', got '%s'", cmd.Use)
	}

	subcommands := cmd.Commands()
	expectedSubs := []string{"init", "show", "test", "path"}

	if len(subcommands) != len(expectedSubs) {
		t.Errorf("Expected %d subcommands, got %d", len(expectedSubs), len(subcommands))
	}

	foundSubs := make(map[string]bool)
	for _, sub := range subcommands {
		foundSubs[sub.Name()] = true
	}

	for _, expected := range expectedSubs {
		if !foundSubs[expected] {
			t.Errorf("Subcommand '%s' not found", expected)
		}
	}
}

// TestConfigInitWritesFile runs 'config init' with piped answers
func TestConfigInitWritesFile(t *testing.T) {
	env := newCLIEnv(t)
	configFile := filepath.Join(env.dir, "config.ini")

	// URL, retries, desktop notifications, proxy
	answers := "http://transfer.example.com/api\n3\ny\nn\n"
	out, _, err := env.run(answers, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "Configuration saved to") {
		t.Errorf("unexpected output: %s", out)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.APIBaseURL != "http://transfer.example.com/api" {
		t.Errorf("APIBaseURL mismatch: got '%s'", cfg.APIBaseURL)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries mismatch: expected 3, got %d", cfg.MaxRetries)
	}
	if !cfg.DesktopNotifications {
		t.Error("DesktopNotifications should be enabled")
	}
	if cfg.ProxyMode != config.ProxyModeNone {
		t.Errorf("ProxyMode mismatch: got '%s'", cfg.ProxyMode)
	}
}

// TestConfigInitKeepsExisting checks that init without --force leaves the file alone
func TestConfigInitKeepsExisting(t *testing.T) {
	env := newCLIEnv(t)
	configFile := filepath.Join(env.dir, "config.ini")
	if err := os.WriteFile(configFile, []byte("[server]\napi_base_url = http://keep.example.com\n"), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := env.run("http://other.example.com\n", "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("expected 'already exists' message, got: %s", out)
	}

	data, _ := os.ReadFile(configFile)
	if !strings.Contains(string(data), "keep.example.com") {
		t.Error("existing config was overwritten")
	}
}

// TestConfigShowMergesFlags checks that flag values win over defaults
func TestConfigShowMergesFlags(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("", "config", "show", "--max-retries", "4")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "Max Retries:     4") {
		t.Errorf("max retries override not shown:\n%s", out)
	}
	if !strings.Contains(out, "Poll Interval:   10ms") {
		t.Errorf("poll interval override not shown:\n%s", out)
	}
	if !strings.Contains(out, "file does not exist") {
		t.Errorf("missing config file not reported:\n%s", out)
	}
}

// TestConfigShowRejectsInvalid checks validation of merged values
func TestConfigShowRejectsInvalid(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("", "config", "show", "--max-retries", "11")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), config.ErrInvalidMaxRetries.Error()) {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestConfigPathFromFlag tests 'config path' with --config
func TestConfigPathFromFlag(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("", "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if !strings.Contains(out, "from --config flag") {
		t.Errorf("unexpected output: %s", out)
	}
	if !strings.Contains(out, filepath.Join(env.dir, "config.ini")) {
		t.Errorf("path not shown: %s", out)
	}
}

// TestConfigDefaultPath tests the default config path function
func TestConfigDefaultPath(t *testing.T) {
	path := config.DefaultConfigPath()
	if path == "" {
		t.Error("DefaultConfigPath() returned empty string")
	}
}
