package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"cutplan/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantProjects := filepath.Join(tempHome, ".local", "share", "cutplan", "projects")
	if cfg.Paths.ProjectDir != wantProjects {
		t.Fatalf("unexpected project dir: got %q want %q", cfg.Paths.ProjectDir, wantProjects)
	}
	if cfg.Sequence.FrameRateNum != 24000 || cfg.Sequence.FrameRateDen != 1001 {
		t.Fatalf("unexpected default frame rate: %d/%d", cfg.Sequence.FrameRateNum, cfg.Sequence.FrameRateDen)
	}
	if cfg.Log.Format != "console" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected log defaults: %q %q", cfg.Log.Format, cfg.Log.Level)
	}
	if cfg.History.SnapshotEvery != 100 {
		t.Fatalf("unexpected snapshot cadence: %d", cfg.History.SnapshotEvery)
	}
}

func TestLoadReadsExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
project_dir = "` + dir + `/projects"
log_dir = "` + dir + `/logs"

[sequence]
frame_rate_num = 25
frame_rate_den = 1
sample_rate = 44100

[log]
format = "json"
level = "debug"

[history]
snapshot_every = 10
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: exists=%v resolved=%q", exists, resolved)
	}
	if rate := cfg.FrameRate(); rate.Num != 25 || rate.Den != 1 {
		t.Fatalf("unexpected frame rate: %s", rate)
	}
	if cfg.Sequence.SampleRate != 44100 {
		t.Fatalf("unexpected sample rate: %d", cfg.Sequence.SampleRate)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log settings: %q %q", cfg.Log.Format, cfg.Log.Level)
	}
	if cfg.History.SnapshotEvery != 10 {
		t.Fatalf("unexpected snapshot cadence: %d", cfg.History.SnapshotEvery)
	}
	// Defaults fill anything the file leaves out.
	if cfg.Sequence.Width != 1920 || cfg.Sequence.Height != 1080 {
		t.Fatalf("unexpected canvas: %dx%d", cfg.Sequence.Width, cfg.Sequence.Height)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"zero frame rate", "[sequence]\nframe_rate_num = 0\n"},
		{"negative sample rate", "[sequence]\nsample_rate = -1\n"},
		{"bad log level", "[log]\nlevel = \"loud\"\n"},
		{"negative snapshot cadence", "[history]\nsnapshot_every = -5\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config did not load cleanly: exists=%v err=%v", exists, err)
	}
}
