package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/dshills/slashcore/internal/dispatcher"
	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/handler"
)

func TestPrintResult(t *testing.T) {
	tests := []struct {
		name   string
		result handler.Result
		want   string
	}{
		{"string", handler.Success("x", "done"), "done\n"},
		{"string with newline", handler.Success("x", "a\nb\n"), "a\nb\n"},
		{"nil value", handler.Success("x", nil), ""},
		{"number", handler.Success("x", int64(3)), "3\n"},
		{"map", handler.Success("x", map[string]any{"sky": "sunny"}), "sky: sunny\n"},
		{"not command", handler.NotCommand(), "not a command; commands start with the configured prefix\n"},
		{"not found", handler.NotFound("hlep", []string{"help"}), "unknown command \"hlep\"; did you mean \"help\"?\n"},
		{"aborted", handler.Aborted("x", "gate").WithMessage("slow down"), "slow down\n"},
		{"failure", handler.Failure("x", errors.New("boom")), "boom\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printResult(&buf, tt.result)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestREPLComplete(t *testing.T) {
	d, err := dispatcher.New(dispatcher.DefaultConfig(),
		dispatcher.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	for _, desc := range []command.Descriptor{
		{Name: "history", Handler: handler.Static(nil), Aliases: []string{"hist"}},
		{Name: "help", Handler: handler.Static(nil)},
		{Name: "hidden", Handler: handler.Static(nil), Hidden: true},
	} {
		if _, err := d.Register(desc); err != nil {
			t.Fatal(err)
		}
	}

	r := &repl{d: d}
	got := r.complete("/hist")
	if !slices.Contains(got, "/hist") || !slices.Contains(got, "/history") || slices.Contains(got, "/help") {
		t.Errorf("complete(/hist) = %v", got)
	}
	if got := r.complete("/"); !reflect.DeepEqual(got, []string{"/help", "/history"}) {
		t.Errorf("complete(/) = %v", got)
	}
	if got := r.complete("/help me"); got != nil {
		t.Errorf("arguments should not complete, got %v", got)
	}
	if got := r.complete("hel"); got != nil {
		t.Errorf("input without prefix should not complete, got %v", got)
	}
}

func TestExecAndExport(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "slashcore.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging]\nsink = \"none\"\n[plugins]\npaths = [\"/nonexistent\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	if err := cmd.Run(context.Background(), []string{"slashcore", "--config", cfgPath, "exec", "help", "stats"}); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !strings.Contains(out.String(), "/stats") {
		t.Errorf("expected stats help, got:\n%s", out.String())
	}

	out.Reset()
	cmd = newCommand()
	cmd.Writer = &out
	if err := cmd.Run(context.Background(), []string{"slashcore", "-c", cfgPath, "exec", "commands", "--verbose"}); err != nil {
		t.Fatalf("exec with flag-like argument: %v", err)
	}
	if !strings.Contains(out.String(), `No commands match "--verbose"`) {
		t.Errorf("expected --verbose to reach the command, got:\n%s", out.String())
	}

	out.Reset()
	cmd = newCommand()
	cmd.Writer = &out
	if err := cmd.Run(context.Background(), []string{"slashcore", "-c", cfgPath, "export"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	var snap map[string]any
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("export is not JSON: %v\n%s", err, out.String())
	}
	if _, ok := snap["commands"]; !ok {
		t.Errorf("snapshot missing commands: %v", snap)
	}
}

