package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigPathHonorsFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCommand(t, "--config", path, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Fatalf("out = %q, want %q", out, path)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := runCommand(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[llm]") {
		t.Fatalf("sample missing llm section:\n%s", data)
	}

	if _, err := runCommand(t, "--config", path, "config", "init"); err == nil {
		t.Fatal("expected second init without --force to fail")
	}
	if _, err := runCommand(t, "--config", path, "config", "init", "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[llm]\napi_key = \"secret-key\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out, err := runCommand(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "secret-key") {
		t.Fatalf("secret leaked in output:\n%s", out)
	}
	if !strings.Contains(out, "[redacted]") {
		t.Fatalf("expected redaction marker:\n%s", out)
	}
}
