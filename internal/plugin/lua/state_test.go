package lua_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/slashcore/internal/plugin/lua"
)

type stubHost struct {
	names  []string
	logger *slog.Logger
}

func (h *stubHost) Has(name string) bool {
	for _, n := range h.names {
		if n == name {
			return true
		}
	}
	return false
}

func (h *stubHost) Names() []string { return h.names }

func (h *stubHost) Service(string) (any, bool) { return nil, false }

func (h *stubHost) Logger() *slog.Logger {
	if h.logger == nil {
		return slog.Default()
	}
	return h.logger
}

func newState(t *testing.T, opts ...lua.StateOption) *lua.State {
	t.Helper()
	s, err := lua.NewState(opts...)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStateCall(t *testing.T) {
	s := newState(t)

	if err := s.DoString(`function add(a, b) return a + b, "extra" end`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if !s.HasFunction("add") {
		t.Fatal("expected add to be defined")
	}

	results, err := s.Call(context.Background(), nil, "add", 2, 3)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0] != glua.LNumber(5) {
		t.Errorf("add(2, 3) = %v, want 5", results[0])
	}

	results, err = s.Call(context.Background(), nil, "add", 1, 1)
	if err != nil || len(results) != 2 {
		t.Errorf("stack should be balanced between calls: %v %v", results, err)
	}
}

func TestStateCallNoReturn(t *testing.T) {
	s := newState(t)
	s.DoString(`function noop() end`)

	results, err := s.Call(context.Background(), nil, "noop")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil results, got %#v", results)
	}
}

func TestStateCallErrors(t *testing.T) {
	s := newState(t)
	s.DoString(`
notfn = 1
function fails() error("bad input") end
`)

	if _, err := s.Call(context.Background(), nil, "missing"); !errors.Is(err, lua.ErrMissingFunction) {
		t.Errorf("expected ErrMissingFunction, got %v", err)
	}
	if _, err := s.Call(context.Background(), nil, "notfn"); !errors.Is(err, lua.ErrMissingFunction) {
		t.Errorf("expected ErrMissingFunction for non-function, got %v", err)
	}
	_, err := s.Call(context.Background(), nil, "fails")
	if err == nil || !strings.Contains(err.Error(), "bad input") {
		t.Errorf("expected script error, got %v", err)
	}
}

func TestStateTimeout(t *testing.T) {
	s := newState(t, lua.WithExecutionTimeout(50*time.Millisecond))
	s.DoString(`function spin() while true do end end`)

	start := time.Now()
	_, err := s.Call(context.Background(), nil, "spin")
	if !errors.Is(err, lua.ErrExecutionTimeout) {
		t.Fatalf("expected ErrExecutionTimeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout was not enforced promptly")
	}

	s.DoString(`function ok() return true end`)
	if _, err := s.Call(context.Background(), nil, "ok"); err != nil {
		t.Errorf("state should be usable after a timeout, got %v", err)
	}
}

func TestStateCancelledContext(t *testing.T) {
	s := newState(t, lua.WithExecutionTimeout(0))
	s.DoString(`function spin() while true do end end`)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Call(ctx, nil, "spin")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected caller deadline, got %v", err)
	}
}

func TestSandboxRemovesLoaders(t *testing.T) {
	s := newState(t)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "io", "os", "debug"} {
		code := "assert(" + name + " == nil, '" + name + " is available')"
		if err := s.DoString(code); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if err := s.DoString(`assert(string.upper("a") == "A" and math.floor(1.5) == 1)`); err != nil {
		t.Errorf("safe libraries should be open: %v", err)
	}
}

func TestSlashModule(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := newState(t, lua.WithLogger(logger))
	host := &stubHost{names: []string{"help", "echo"}, logger: logger}

	s.DoString(`
function probe()
	slash.log("warn", "probing", 42)
	print("printed")
	return slash.has("echo"), slash.has("nope"), #slash.names()
end
`)
	results, err := s.Call(context.Background(), host, "probe")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if results[0] != glua.LTrue || results[1] != glua.LFalse || results[2] != glua.LNumber(2) {
		t.Errorf("unexpected results %v", results)
	}
	out := buf.String()
	if !strings.Contains(out, "probing 42") || !strings.Contains(out, "level=WARN") {
		t.Errorf("expected slash.log output, got %q", out)
	}
	if !strings.Contains(out, "printed") {
		t.Errorf("expected print to reach the logger, got %q", out)
	}

	results, _ = s.Call(context.Background(), nil, "probe")
	if results[0] != glua.LFalse {
		t.Error("slash.has should be false outside a host call")
	}
}

func TestClosedState(t *testing.T) {
	s, _ := lua.NewState()
	s.Close()
	if !s.IsClosed() {
		t.Fatal("expected closed state")
	}
	if err := s.DoString(`x = 1`); !errors.Is(err, lua.ErrStateClosed) {
		t.Errorf("expected ErrStateClosed, got %v", err)
	}
	if s.HasFunction("print") {
		t.Error("closed state should report no functions")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
