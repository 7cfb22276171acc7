package hook_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/slashcore/internal/dispatcher/execctx"
	"github.com/dshills/slashcore/internal/dispatcher/hook"
)

func quietBus() *hook.Bus {
	return hook.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func record(order *[]string, label string, err error) hook.Func {
	return func(context.Context, *execctx.ExecutionContext, execctx.Host) error {
		*order = append(*order, label)
		return err
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    hook.Key
		wantErr bool
	}{
		{"pre:ping", hook.Key{Phase: hook.Pre, Command: "ping"}, false},
		{"POST:Ping", hook.Key{Phase: hook.Post, Command: "ping"}, false},
		{"post:*", hook.Key{Phase: hook.Post, Command: "*"}, false},
		{"ping", hook.Key{}, true},
		{"during:ping", hook.Key{}, true},
		{"pre:", hook.Key{}, true},
	}
	for _, tt := range tests {
		got, err := hook.ParseKey(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKey(%q) error = %v", tt.in, err)
			continue
		}
		if err != nil && !errors.Is(err, hook.ErrInvalidKey) {
			t.Errorf("ParseKey(%q) should wrap ErrInvalidKey, got %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseKey(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestRunOrder(t *testing.T) {
	var order []string
	b := quietBus()
	b.Register(hook.Pre, "*", record(&order, "wild", nil))
	b.Register(hook.Pre, "ping", record(&order, "one", nil))
	b.RegisterKey("pre:ping", record(&order, "two", nil))
	b.Register(hook.Post, "ping", record(&order, "post", nil))
	b.Register(hook.Pre, "other", record(&order, "other", nil))

	errs := b.Run(context.Background(), hook.Pre, "ping", execctx.New(), nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	if want := []string{"one", "two", "wild"}; !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	b := quietBus()
	b.Register(hook.Post, "x", record(&order, "first", boom))
	b.Register(hook.Post, "x", func(context.Context, *execctx.ExecutionContext, execctx.Host) error {
		panic("bad hook")
	})
	b.Register(hook.Post, "x", record(&order, "third", nil))

	errs := b.Run(context.Background(), hook.Post, "x", execctx.New(), nil)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if !errors.Is(errs[0], boom) {
		t.Errorf("expected first error to wrap boom, got %v", errs[0])
	}
	if !errors.Is(errs[1], hook.ErrPanic) {
		t.Errorf("expected second error to wrap ErrPanic, got %v", errs[1])
	}
	var herr *hook.Error
	if !errors.As(errs[1], &herr) || herr.Index != 1 || herr.Phase != hook.Post {
		t.Errorf("unexpected hook error %+v", herr)
	}
	if !reflect.DeepEqual(order, []string{"first", "third"}) {
		t.Errorf("expected remaining hooks to run, got %v", order)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	b := quietBus()
	if err := b.Register(hook.Pre, "x", nil); !errors.Is(err, hook.ErrNilHook) {
		t.Errorf("expected ErrNilHook, got %v", err)
	}
	if err := b.Register(hook.Pre, " ", record(new([]string), "", nil)); !errors.Is(err, hook.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if len(b.Keys()) != 0 {
		t.Errorf("expected no keys, got %v", b.Keys())
	}
}

func TestCountRemoveKeys(t *testing.T) {
	b := quietBus()
	noop := record(new([]string), "", nil)
	b.Register(hook.Pre, "Ping", noop)
	b.Register(hook.Pre, "ping", noop)
	b.Register(hook.Post, "*", noop)

	if got := b.Count(hook.Pre, "ping"); got != 2 {
		t.Errorf("expected 2 pre hooks, got %d", got)
	}
	keys := b.Keys()
	if len(keys) != 2 || keys[0].String() != "post:*" || keys[1].String() != "pre:ping" {
		t.Errorf("unexpected keys %v", keys)
	}
	if n := b.Remove(hook.Pre, "ping"); n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if b.Count(hook.Pre, "ping") != 0 {
		t.Error("expected hooks removed")
	}
}

func TestInstallAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	b := hook.NewBus(logger)
	hook.InstallAudit(b, nil)

	ec := execctx.New()
	ec.Command = "deploy"
	b.Run(context.Background(), hook.Pre, "deploy", ec, nil)
	ec.Err = errors.New("failed")
	b.Run(context.Background(), hook.Post, "deploy", ec, nil)

	out := buf.String()
	if !strings.Contains(out, "command start") || !strings.Contains(out, "command failed") {
		t.Errorf("expected audit lines, got %q", out)
	}
}
