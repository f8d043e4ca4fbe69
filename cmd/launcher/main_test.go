// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jllopis/launcher/pkg/config"
	"github.com/jllopis/launcher/pkg/core"
	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/mcp"
	"github.com/jllopis/launcher/pkg/samples"
)

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantConfig []string
		wantRest   []string
		wantJSON   bool
		wantHelp   bool
		wantErr    bool
	}{
		{
			name:     "command only",
			args:     []string{"list"},
			wantRest: []string{"list"},
		},
		{
			name:       "config and set pairs",
			args:       []string{"--config", "launcher.yaml", "--set", "llm.provider=mock", "--json", "query", "2+2"},
			wantConfig: []string{"--config", "launcher.yaml", "--set", "llm.provider=mock"},
			wantRest:   []string{"query", "2+2"},
			wantJSON:   true,
		},
		{
			name:       "equals form and profile",
			args:       []string{"--config=launcher.yaml", "--profile=dev", "status"},
			wantConfig: []string{"--config=launcher.yaml", "--profile=dev"},
			wantRest:   []string{"status"},
		},
		{
			name:     "double dash",
			args:     []string{"--json", "--", "--not-a-flag"},
			wantRest: []string{"--not-a-flag"},
			wantJSON: true,
		},
		{
			name:     "help",
			args:     []string{"-h", "list"},
			wantHelp: true,
		},
		{
			name:    "missing value",
			args:    []string{"--set"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"--verbose", "list"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, rest, err := parseGlobalFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(flags.ConfigArgs, tt.wantConfig) {
				t.Errorf("config args = %v, want %v", flags.ConfigArgs, tt.wantConfig)
			}
			if !reflect.DeepEqual(rest, tt.wantRest) {
				t.Errorf("rest = %v, want %v", rest, tt.wantRest)
			}
			if flags.JSON != tt.wantJSON || flags.Help != tt.wantHelp {
				t.Errorf("json=%v help=%v", flags.JSON, flags.Help)
			}
		})
	}
}

func TestConfigPath(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--config", "a.yaml", "--env", "prod"}, "a.yaml"},
		{[]string{"--profile=dev", "--config=b.yaml"}, "b.yaml"},
		{[]string{"--set", "llm.provider=none"}, ""},
	}
	for _, tt := range tests {
		if got := configPath(tt.args); got != tt.want {
			t.Errorf("configPath(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestStdioSafe(t *testing.T) {
	cfg := &config.Config{}
	cfg.Governance.Approval = " Console"
	stdioSafe(cfg)
	if cfg.Governance.Approval != "deny" {
		t.Fatalf("console approval left on stdin: %q", cfg.Governance.Approval)
	}

	cfg.Governance.Approval = "allow"
	stdioSafe(cfg)
	if cfg.Governance.Approval != "allow" {
		t.Fatalf("unrelated setting changed: %q", cfg.Governance.Approval)
	}
}

func TestClip(t *testing.T) {
	if got := clip("  a   b  ", 10); got != "a b" {
		t.Errorf("got %q", got)
	}
	if got := clip("abcdefghij", 6); got != "abc..." {
		t.Errorf("got %q", got)
	}
	if got := clip("", 5); got != "-" {
		t.Errorf("got %q", got)
	}
}

func TestReport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"uncoded", fmt.Errorf("boom"), []string{"Error: boom"}},
		{"coded", errors.New(errors.CodeTimeout, "assistant", nil), []string{"Error [Timeout]: assistant", "llm.timeout_seconds"}},
		{"cli", NewInvalidArgumentError("id", "missing"), []string{"invalid argument: missing", "launcher help"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if code := report(&buf, tt.err, false); code != 1 {
				t.Fatalf("exit code = %d", code)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q lacks %q", buf.String(), w)
				}
			}
		})
	}
}

type harness struct {
	t    *testing.T
	base []string
}

func newHarness(t *testing.T, extra ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	base := []string{
		"--set", "extensions.dir=" + filepath.Join(dir, "extensions"),
		"--set", "extensions.database_path=" + filepath.Join(dir, "launcher.db"),
		"--set", "log.level=error",
		"--set", "telemetry.exporter=none",
		"--set", "llm.provider=none",
	}
	return &harness{t: t, base: append(base, extra...)}
}

func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append(append([]string{}, h.base...), args...)
	code := run(context.Background(), full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	code, out, errOut := h.run(args...)
	if code != 0 {
		h.t.Fatalf("%v exited %d: %s", args, code, errOut)
	}
	return out
}

func TestRunVersionAndHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("version exited %d", code)
	}
	if strings.TrimSpace(stdout.String()) != version {
		t.Errorf("unexpected version output %q", stdout.String())
	}

	stdout.Reset()
	if code := run(context.Background(), nil, &stdout, &stderr); code != 0 {
		t.Fatalf("help exited %d", code)
	}
	if !strings.Contains(stdout.String(), "Usage:") {
		t.Errorf("expected usage, got %q", stdout.String())
	}
}

func TestRunLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("install", samples.CalculatorID)
	if !strings.Contains(out, samples.CalculatorID+" installed") {
		t.Fatalf("unexpected install output %q", out)
	}
	h.mustRun("install", samples.NotesID)

	out = h.mustRun("enable", samples.CalculatorID)
	if !strings.Contains(out, "enabled") {
		t.Fatalf("unexpected enable output %q", out)
	}
	out = h.mustRun("enable", samples.CalculatorID)
	if !strings.Contains(out, "already enabled") {
		t.Fatalf("expected idempotent enable, got %q", out)
	}

	// Enabled state is restored from preferences on the next run.
	var infos []mcp.ExtensionInfo
	if err := json.Unmarshal([]byte(h.mustRun("--json", "list")), &infos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 installed extensions, got %+v", infos)
	}
	for _, info := range infos {
		want := info.ID == samples.CalculatorID
		if info.Enabled != want {
			t.Errorf("%s enabled = %v, want %v", info.ID, info.Enabled, want)
		}
	}

	out = h.mustRun("query", "what is 2+2")
	if !strings.Contains(out, "2+2 = 4") {
		t.Fatalf("expected calculator answer, got %q", out)
	}

	out = h.mustRun("ask", "2+2")
	if strings.TrimSpace(out) != "2+2 = 4" {
		t.Fatalf("expected direct extension answer, got %q", out)
	}

	out = h.mustRun("disable", samples.CalculatorID)
	if !strings.Contains(out, "disabled") {
		t.Fatalf("unexpected disable output %q", out)
	}
	out = h.mustRun("query", "what is 2+2")
	if !strings.Contains(out, "no extension answered") {
		t.Fatalf("disabled extension must not answer, got %q", out)
	}

	h.mustRun("uninstall", samples.CalculatorID)
	h.mustRun("uninstall", samples.NotesID)
	if out := h.mustRun("list"); !strings.Contains(out, "no extensions installed") {
		t.Fatalf("expected empty list, got %q", out)
	}
}

func TestRunInstallTwice(t *testing.T) {
	h := newHarness(t)
	h.mustRun("install", samples.WeatherID)

	code, _, errOut := h.run("--json", "install", samples.WeatherID)
	if code == 0 {
		t.Fatalf("expected duplicate install to fail")
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
			Hint string `json:"hint"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(errOut), &payload); err != nil {
		t.Fatalf("decode error output %q: %v", errOut, err)
	}
	if payload.Error.Code != string(errors.CodeAlreadyExists) || payload.Error.Hint == "" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestRunInstallUnknown(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.run("install", "com.example.missing")
	if code == 0 || !strings.Contains(errOut, "Not Found") {
		t.Fatalf("expected not found, got %d %q", code, errOut)
	}
}

func TestRunEnableDenied(t *testing.T) {
	h := newHarness(t, "--set", `governance.denylist=["com.launcher.*"]`)
	h.mustRun("install", samples.CalculatorID)

	code, _, errOut := h.run("enable", samples.CalculatorID)
	if code == 0 || !strings.Contains(errOut, "Permission Denied") {
		t.Fatalf("expected permission denied, got %d %q", code, errOut)
	}
}

func TestRunConfigEnabledList(t *testing.T) {
	h := newHarness(t)
	h.mustRun("install", samples.WeatherID)

	out := h.mustRun("--set", `extensions.enabled=["com.launcher.weather"]`, "widgets")
	if !strings.Contains(out, "Weather") {
		t.Fatalf("expected weather widget, got %q", out)
	}
	if out := h.mustRun("widgets"); strings.Contains(out, "Weather") {
		t.Fatalf("config-enabled extensions must not be persisted, got %q", out)
	}
}

func TestRunStatusMemoryStore(t *testing.T) {
	h := newHarness(t, "--set", "extensions.store=memory")

	var status statusResult
	if err := json.Unmarshal([]byte(h.mustRun("--json", "status")), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	// No LLM backend leaves the assistant degraded.
	if status.Status != core.HealthDegraded {
		t.Fatalf("expected degraded, got %s", status.Status)
	}
	if len(status.Checks) != 3 {
		t.Fatalf("expected 3 checks, got %+v", status.Checks)
	}
}

func TestRunEvent(t *testing.T) {
	h := newHarness(t)
	h.mustRun("install", samples.NotesID)
	h.mustRun("enable", samples.NotesID)

	out := h.mustRun("event", "launched", "com.example.mail")
	if !strings.Contains(out, "(0 faults)") {
		t.Fatalf("unexpected event output %q", out)
	}
	if code, _, _ := h.run("event", "longpress", "x", "1"); code == 0 {
		t.Fatalf("expected usage error for bad coordinates")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	h := newHarness(t, "--set", "extensions.store=memory")
	code, _, errOut := h.run("frobnicate")
	if code == 0 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("expected unknown command error, got %d %q", code, errOut)
	}
}
