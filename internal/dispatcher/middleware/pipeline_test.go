package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/execctx"
	"github.com/dshills/slashcore/internal/dispatcher/middleware"
)

type stubHost struct{}

func (stubHost) Has(string) bool { return false }
func (stubHost) Names() []string { return nil }
func (stubHost) Service(string) (any, bool) { return nil, false }
func (stubHost) Logger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func recorder(order *[]string, label string, cont bool) command.Middleware {
	return func(context.Context, *command.Command, *execctx.ExecutionContext, execctx.Host) (bool, error) {
		*order = append(*order, label)
		return cont, nil
	}
}

func TestPipelineOrdersByPriority(t *testing.T) {
	var order []string
	p := middleware.New()
	p.Use("fifty", recorder(&order, "50", true), 50)
	p.Use("ten-a", recorder(&order, "10a", true), 10)
	p.Use("ten-b", recorder(&order, "10b", true), 10)

	out, err := p.Run(context.Background(), &command.Command{Name: "x"}, execctx.New(), stubHost{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Continue {
		t.Error("expected pipeline to continue")
	}
	if want := []string{"10a", "10b", "50"}; !reflect.DeepEqual(order, want) {
		t.Errorf("expected order %v, got %v", want, order)
	}
}

func TestPipelineCommandMiddlewareRunsLast(t *testing.T) {
	var order []string
	p := middleware.New()
	p.Use("late", recorder(&order, "global-late", true), 1000)
	p.Use("early", recorder(&order, "global-early", true), 1)

	cmd := &command.Command{
		Name: "x",
		Middleware: []command.Middleware{
			recorder(&order, "local-1", true),
			recorder(&order, "local-2", true),
		},
	}
	if _, err := p.Run(context.Background(), cmd, execctx.New(), stubHost{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"global-early", "global-late", "local-1", "local-2"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected order %v, got %v", want, order)
	}
}

func TestPipelineFalseStops(t *testing.T) {
	var order []string
	p := middleware.New()
	p.Use("gate", recorder(&order, "gate", false), 10)
	p.Use("after", recorder(&order, "after", true), 20)

	cmd := &command.Command{Name: "x", Middleware: []command.Middleware{recorder(&order, "local", true)}}
	out, err := p.Run(context.Background(), cmd, execctx.New(), stubHost{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Continue {
		t.Error("expected pipeline to stop")
	}
	if out.StoppedBy != "gate" {
		t.Errorf("expected StoppedBy gate, got %q", out.StoppedBy)
	}
	if !reflect.DeepEqual(order, []string{"gate"}) {
		t.Errorf("expected only gate to run, got %v", order)
	}
}

func TestPipelineLocalFalseNamesCommand(t *testing.T) {
	var order []string
	p := middleware.New()
	cmd := &command.Command{Name: "deploy", Middleware: []command.Middleware{
		recorder(&order, "ok", true),
		recorder(&order, "no", false),
	}}
	out, _ := p.Run(context.Background(), cmd, execctx.New(), stubHost{})
	if out.StoppedBy != "deploy#1" {
		t.Errorf("expected deploy#1, got %q", out.StoppedBy)
	}
}

func TestPipelineErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	p := middleware.New()
	p.Use("bad", func(context.Context, *command.Command, *execctx.ExecutionContext, execctx.Host) (bool, error) {
		return true, boom
	}, 0)

	out, err := p.Run(context.Background(), &command.Command{Name: "x"}, execctx.New(), stubHost{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if out.Continue || out.StoppedBy != "bad" {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestPipelineRecoversPanic(t *testing.T) {
	p := middleware.New()
	p.Use("panics", func(context.Context, *command.Command, *execctx.ExecutionContext, execctx.Host) (bool, error) {
		panic("oops")
	}, 0)

	_, err := p.Run(context.Background(), &command.Command{Name: "x"}, execctx.New(), stubHost{})
	if !errors.Is(err, middleware.ErrPanic) {
		t.Errorf("expected ErrPanic, got %v", err)
	}
}

func TestPipelineUseNil(t *testing.T) {
	p := middleware.New()
	if err := p.Use("nil", nil, 0); !errors.Is(err, middleware.ErrNilMiddleware) {
		t.Errorf("expected ErrNilMiddleware, got %v", err)
	}
	if p.Len() != 0 {
		t.Errorf("expected empty pipeline, got %d", p.Len())
	}
}

func TestPipelineRemove(t *testing.T) {
	p := middleware.New()
	noop := func(context.Context, *command.Command, *execctx.ExecutionContext, execctx.Host) (bool, error) {
		return true, nil
	}
	p.Use("a", noop, 1)
	p.Use("b", noop, 2)
	p.Use("", noop, 3)

	if !p.Remove("a") {
		t.Error("expected a to be removed")
	}
	if p.Remove("a") {
		t.Error("expected second removal to report false")
	}
	entries := p.Entries()
	if len(entries) != 2 || entries[0].Name != "b" || entries[1].Name != "middleware#2" {
		t.Errorf("unexpected entries %+v", entries)
	}
}
