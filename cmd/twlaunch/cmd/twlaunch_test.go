package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"twlaunch/cmd/twlaunch/cmd"
	"twlaunch/internal/launcher"
)

// writeFixture sets up an isolated config pointing at a fake task binary.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	taskBin := filepath.Join(dir, "task")
	script := `#!/bin/sh
if [ "$1" = "--version" ]; then echo "3.0.2"; exit 0; fi
echo '[{"id":1,"uuid":"aaaa1111-0000-0000-0000-000000000000","description":"Buy milk","urgency":3.5,"status":"pending"},{"id":2,"uuid":"bbbb2222-0000-0000-0000-000000000000","description":"Write report","urgency":9.1,"status":"pending"}]'
`
	if err := os.WriteFile(taskBin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	configYAML := "task_bin: \"" + taskBin + "\"\nhistory:\n  enabled: false\nlogging:\n  level: \"disabled\"\n"
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func runCLI(t *testing.T, cfg *cmd.Config, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cmd.Execute(args, &stdout, &stderr, cfg)
	return code, stdout.String(), stderr.String()
}

func TestQueryList(t *testing.T) {
	cfg := &cmd.Config{ConfigPath: writeFixture(t)}

	code, out, stderr := runCLI(t, cfg, "query", "tl")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}

	var resp launcher.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not a response: %v\n%s", err, out)
	}
	if resp.Type != launcher.ResponseRender || len(resp.Items) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	// Urgency ordering survives the full pipeline.
	if resp.Items[0].Title != "Write report" {
		t.Errorf("first item = %q", resp.Items[0].Title)
	}
}

func TestQueryAdd(t *testing.T) {
	cfg := &cmd.Config{ConfigPath: writeFixture(t)}

	code, out, _ := runCLI(t, cfg, "query", "t", "buy", "milk")
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}

	var resp launcher.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Title != "Add task: 'buy milk'" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Items[0].OnEnter.Type != launcher.ActionRun {
		t.Errorf("on_enter = %+v", resp.Items[0].OnEnter)
	}
	if !strings.Contains(resp.Items[0].OnEnter.Command, "rc.confirmation=off add buy milk") {
		t.Errorf("command = %q", resp.Items[0].OnEnter.Command)
	}
}

func TestQueryUnknownKeyword(t *testing.T) {
	cfg := &cmd.Config{ConfigPath: writeFixture(t)}

	code, out, _ := runCLI(t, cfg, "query", "zz")
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}

	var resp launcher.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	if len(resp.Items) != 1 || !strings.Contains(resp.Items[0].Title, "Unknown keyword") {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestQueryRequiresText(t *testing.T) {
	cfg := &cmd.Config{ConfigPath: writeFixture(t)}

	code, _, stderr := runCLI(t, cfg, "query")
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr, "Error:") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestConfigSample(t *testing.T) {
	cfg := &cmd.Config{ConfigPath: writeFixture(t)}

	code, out, _ := runCLI(t, cfg, "config", "sample")
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}
	for _, want := range []string{"keywords:", "default_filter:", "task_bin:"} {
		if !strings.Contains(out, want) {
			t.Errorf("sample missing %q", want)
		}
	}
}

func TestConfigPath(t *testing.T) {
	path := writeFixture(t)
	cfg := &cmd.Config{ConfigPath: path}

	code, out, _ := runCLI(t, cfg, "config", "path")
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if strings.TrimSpace(out) != path {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), path)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("max_results: -2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := runCLI(t, &cmd.Config{ConfigPath: path}, "query", "tl")
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr, "invalid configuration") {
		t.Errorf("stderr = %q", stderr)
	}
}
