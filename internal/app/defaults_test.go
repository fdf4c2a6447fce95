package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("MEDIAPIPE_CONFIG_PATH", "/custom/mediapipe.toml")
		t.Setenv("MEDIAPIPE_HOME", "/custom/mediapipe")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/mediapipe.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/mediapipe.toml")
		}
		if defaults["base_dir"] != "/custom/mediapipe" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/mediapipe")
		}
		if defaults["log_dir"] != "/custom/mediapipe/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/mediapipe/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("MEDIAPIPE_CONFIG_PATH", "")
		t.Setenv("MEDIAPIPE_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "mediapipe.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "mediapipe")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
	})
}
