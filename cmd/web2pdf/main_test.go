package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-web2pdf/internal/config"
	"github.com/alnah/go-web2pdf/internal/yamlutil"
)

func newTestEnv() (*Environment, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &Environment{Now: time.Now, Stdout: &stdout, Stderr: &stderr}, &stdout, &stderr
}

// ---------------------------------------------------------------------------
// TestIsCommand - Command name detection
// ---------------------------------------------------------------------------

func TestIsCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"serve", true},
		{"doctor", true},
		{"config", true},
		{"completion", true},
		{"version", true},
		{"help", true},
		{"foo", false},
		{"", false},
		{"Serve", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := isCommand(tt.input); got != tt.want {
				t.Errorf("isCommand(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRunMain - Command dispatch
// ---------------------------------------------------------------------------

func TestRunMain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		args         []string
		wantCode     int
		wantInStdout []string
		wantInStderr []string
	}{
		{
			name:         "no args shows usage and exits with ExitUsage",
			args:         []string{"web2pdf"},
			wantCode:     ExitUsage,
			wantInStderr: []string{"Usage: web2pdf"},
		},
		{
			name:         "version command exits 0",
			args:         []string{"web2pdf", "version"},
			wantCode:     ExitSuccess,
			wantInStdout: []string{"go-web2pdf " + Version},
		},
		{
			name:         "help command exits 0",
			args:         []string{"web2pdf", "help"},
			wantCode:     ExitSuccess,
			wantInStdout: []string{"Usage: web2pdf", "Commands:"},
		},
		{
			name:         "--help is help",
			args:         []string{"web2pdf", "--help"},
			wantCode:     ExitSuccess,
			wantInStdout: []string{"Commands:"},
		},
		{
			name:         "completion bash exits 0",
			args:         []string{"web2pdf", "completion", "bash"},
			wantCode:     ExitSuccess,
			wantInStdout: []string{"complete -F _web2pdf_completions web2pdf"},
		},
		{
			name:         "completion with unknown shell is a usage error",
			args:         []string{"web2pdf", "completion", "tcsh"},
			wantCode:     ExitUsage,
			wantInStderr: []string{"unsupported shell"},
		},
		{
			name:         "help serve shows serve help",
			args:         []string{"web2pdf", "help", "serve"},
			wantCode:     ExitSuccess,
			wantInStdout: []string{"Usage: web2pdf serve", "WEB2PDF_ENV"},
		},
		{
			name:         "help for unknown command",
			args:         []string{"web2pdf", "help", "nope"},
			wantCode:     ExitUsage,
			wantInStderr: []string{"Unknown command: nope"},
		},
		{
			name:         "unknown command exits with ExitUsage",
			args:         []string{"web2pdf", "unknown"},
			wantCode:     ExitUsage,
			wantInStderr: []string{"unknown command: unknown"},
		},
		{
			name:     "serve --help exits 0",
			args:     []string{"web2pdf", "serve", "--help"},
			wantCode: ExitSuccess,
		},
		{
			name:         "serve with bad flag is a usage error",
			args:         []string{"web2pdf", "serve", "--port", "many"},
			wantCode:     ExitUsage,
			wantInStderr: []string{"invalid argument"},
		},
		{
			name:         "serve with missing config file",
			args:         []string{"web2pdf", "serve", "--config", "/nonexistent/web2pdf.yaml"},
			wantCode:     ExitUsage,
			wantInStderr: []string{"config file not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, stdout, stderr := newTestEnv()
			code := runMain(tt.args, env)

			if code != tt.wantCode {
				t.Errorf("runMain() = %d, want %d (stderr: %s)", code, tt.wantCode, stderr.String())
			}
			for _, want := range tt.wantInStdout {
				if !strings.Contains(stdout.String(), want) {
					t.Errorf("stdout should contain %q, got %q", want, stdout.String())
				}
			}
			for _, want := range tt.wantInStderr {
				if !strings.Contains(stderr.String(), want) {
					t.Errorf("stderr should contain %q, got %q", want, stderr.String())
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRunConfig - Effective configuration output
// ---------------------------------------------------------------------------

func TestRunConfig(t *testing.T) {
	clearServeEnv(t)
	t.Setenv("PORT", "8123")
	path := writeConfig(t, "log:\n  format: json\n")

	env, stdout, stderr := newTestEnv()
	code := runMain([]string{"web2pdf", "config", "--config", path, "--verbose"}, env)
	if code != ExitSuccess {
		t.Fatalf("runMain() = %d, stderr: %s", code, stderr.String())
	}

	var got config.Config
	if err := yamlutil.UnmarshalStrict(stdout.Bytes(), &got); err != nil {
		t.Fatalf("output is not a valid config: %v\n%s", err, stdout.String())
	}
	if got.Server.Port != 8123 {
		t.Errorf("Server.Port = %d, want 8123", got.Server.Port)
	}
	if got.Log.Format != "json" || got.Log.Level != "debug" {
		t.Errorf("Log = %+v, want json/debug", got.Log)
	}
}
