package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
project_dir = %q
log_dir = %q

[history]
snapshot_every = 2
`, filepath.Join(base, "projects"), filepath.Join(base, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigInitCreatesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if out, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v\n%s", err, out)
	}
}

func TestCreateShowUndoRoundTrip(t *testing.T) {
	cfgPath := writeTestConfig(t)
	projPath := filepath.Join(t.TempDir(), "demo.cutplan")

	out, err := runCLI(t, "--config", cfgPath, "--project", projPath, "create", "Demo Cut")
	if err != nil {
		t.Fatalf("create: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Created project \"Demo Cut\"") {
		t.Fatalf("unexpected create output: %s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "--project", projPath, "show")
	if err != nil {
		t.Fatalf("show: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Demo Cut") || !strings.Contains(out, "Sequence 1") {
		t.Fatalf("show output missing project tree: %s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "--project", projPath, "log")
	if err != nil {
		t.Fatalf("log: %v\n%s", err, out)
	}
	if !strings.Contains(out, "project.create") || !strings.Contains(out, "undo position 4") {
		t.Fatalf("log output unexpected: %s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "--project", projPath, "undo")
	if err != nil {
		t.Fatalf("undo: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Undid track.create (seq 4)") {
		t.Fatalf("undo output unexpected: %s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "--project", projPath, "redo")
	if err != nil {
		t.Fatalf("redo: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Redid track.create (seq 4)") {
		t.Fatalf("redo output unexpected: %s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "--project", projPath, "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "consistent") {
		t.Fatalf("check output unexpected: %s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "--project", projPath, "replay")
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}
	if !strings.Contains(out, "to seq 4") {
		t.Fatalf("replay output unexpected: %s", out)
	}

	dest := filepath.Join(t.TempDir(), "copy.cutplan")
	out, err = runCLI(t, "--config", cfgPath, "--project", projPath, "save-as", dest)
	if err != nil {
		t.Fatalf("save-as: %v\n%s", err, out)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("saved copy missing: %v", err)
	}
}

func TestProjectFlagRequired(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCLI(t, "--config", cfgPath, "show"); err == nil {
		t.Fatal("expected show to require --project")
	}
}

func TestFileSlug(t *testing.T) {
	cases := map[string]string{
		"Demo Cut":   "demo-cut",
		"  Reel_2 ":  "reel_2",
		"***":        "project",
		"My/Project": "myproject",
	}
	for input, want := range cases {
		if got := fileSlug(input); got != want {
			t.Errorf("fileSlug(%q) = %q, want %q", input, got, want)
		}
	}
}
