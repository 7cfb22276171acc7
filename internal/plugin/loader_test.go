package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/execctx"
	"github.com/dshills/slashcore/internal/dispatcher/handler"
	"github.com/dshills/slashcore/internal/dispatcher/hook"
	"github.com/dshills/slashcore/internal/plugin"
)

var errBoom = errors.New("boom")

// recordingTarget registers into a real registry and records the calls.
type recordingTarget struct {
	reg        *command.Registry
	calls      []string
	middleware []string
	hooks      []string
	failOn     string
}

func newTarget(opts ...command.RegistryOption) *recordingTarget {
	opts = append([]command.RegistryOption{command.WithLogger(quiet())}, opts...)
	return &recordingTarget{reg: command.NewRegistry(opts...)}
}

func (t *recordingTarget) Register(desc command.Descriptor) (*command.Command, error) {
	t.calls = append(t.calls, "command:"+desc.Name)
	if desc.Name == t.failOn {
		return nil, errBoom
	}
	cmd, _, err := t.reg.Register(desc)
	return cmd, err
}

func (t *recordingTarget) Use(name string, _ command.Middleware, _ int) error {
	t.calls = append(t.calls, "middleware:"+name)
	t.middleware = append(t.middleware, name)
	return nil
}

func (t *recordingTarget) AddHook(key string, _ hook.Func) error {
	t.calls = append(t.calls, "hook:"+key)
	t.hooks = append(t.hooks, key)
	return nil
}

// checkingTarget adds the registry dry-run used by atomic loads.
type checkingTarget struct{ *recordingTarget }

func (t checkingTarget) Check(descs []command.Descriptor) error { return t.reg.Check(descs) }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func noopMiddleware(context.Context, *command.Command, *execctx.ExecutionContext, execctx.Host) (bool, error) {
	return true, nil
}

func noopHook(context.Context, *execctx.ExecutionContext, execctx.Host) error { return nil }

func samplePlugin() *plugin.Plugin {
	return &plugin.Plugin{
		Name:    "weather",
		Version: "1.2.0",
		Author:  "acme",
		Commands: []command.Descriptor{
			{Name: "forecast", Handler: handler.Static("sunny")},
			{Name: "radar", Handler: handler.Static("map"), Author: "someone", Version: "0.1.0"},
		},
		Middleware: []plugin.MiddlewareSpec{
			{Name: "auth", Fn: noopMiddleware, Priority: 5},
			{Fn: noopMiddleware, Priority: 10},
		},
		Hooks: map[string][]hook.Func{
			"post:forecast": {noopHook},
			"pre:forecast":  {noopHook, noopHook},
		},
	}
}

func TestLoadOrderAndTagging(t *testing.T) {
	target := newTarget()
	l := plugin.NewLoader(plugin.WithLogger(quiet()))

	if err := l.Load(samplePlugin(), target); err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{
		"command:forecast",
		"command:radar",
		"middleware:weather/auth",
		"middleware:weather/middleware#1",
		"hook:post:forecast",
		"hook:pre:forecast",
		"hook:pre:forecast",
	}
	if !reflect.DeepEqual(target.calls, want) {
		t.Errorf("calls = %v, want %v", target.calls, want)
	}

	forecast, _ := target.reg.Get("forecast")
	if forecast.Author != "acme" || forecast.Version != "1.2.0" || forecast.Plugin != "weather" {
		t.Errorf("forecast not tagged from plugin: %+v", forecast.Info())
	}
	radar, _ := target.reg.Get("radar")
	if radar.Author != "someone" || radar.Version != "0.1.0" {
		t.Errorf("radar metadata overwritten: %+v", radar.Info())
	}

	info, ok := l.Info("weather")
	if !ok {
		t.Fatal("plugin not stored")
	}
	if !reflect.DeepEqual(info.Commands, []string{"forecast", "radar"}) || info.Middleware != 2 || info.Hooks != 3 {
		t.Errorf("unexpected info %+v", info)
	}
	if l.Len() != 1 || !l.Has("weather") {
		t.Error("expected one stored plugin")
	}
}

func TestLoadRejectsBadHeader(t *testing.T) {
	l := plugin.NewLoader(plugin.WithLogger(quiet()))
	target := newTarget()

	if err := l.Load(nil, target); !errors.Is(err, plugin.ErrNilPlugin) {
		t.Errorf("expected ErrNilPlugin, got %v", err)
	}
	if err := l.Load(&plugin.Plugin{Commands: []command.Descriptor{}}, target); !errors.Is(err, plugin.ErrMissingName) {
		t.Errorf("expected ErrMissingName, got %v", err)
	}
	if err := l.Load(&plugin.Plugin{Name: "x"}, target); !errors.Is(err, plugin.ErrMissingCommands) {
		t.Errorf("expected ErrMissingCommands, got %v", err)
	}
	if err := l.Load(&plugin.Plugin{Name: "empty", Commands: []command.Descriptor{}}, target); err != nil {
		t.Errorf("empty command list should load, got %v", err)
	}
	if err := l.Load(&plugin.Plugin{Name: "empty", Commands: []command.Descriptor{}}, target); !errors.Is(err, plugin.ErrAlreadyLoaded) {
		t.Errorf("expected ErrAlreadyLoaded, got %v", err)
	}
}

func TestLoadSequentialLeavesPartialState(t *testing.T) {
	target := newTarget()
	target.failOn = "radar"
	l := plugin.NewLoader(plugin.WithLogger(quiet()))

	err := l.Load(samplePlugin(), target)
	var lerr *plugin.LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if lerr.Plugin != "weather" || !errors.Is(err, errBoom) {
		t.Errorf("unexpected LoadError %+v", lerr)
	}
	if !target.reg.Has("forecast") {
		t.Error("earlier command should stay registered")
	}
	if len(target.middleware) != 0 || len(target.hooks) != 0 {
		t.Error("later items should not be registered")
	}
	if l.Has("weather") {
		t.Error("failed plugin should not be stored")
	}
}

func TestLoadAtomicValidatesFirst(t *testing.T) {
	target := newTarget()
	l := plugin.NewLoader(plugin.WithAtomic(), plugin.WithLogger(quiet()))
	if !l.Atomic() {
		t.Fatal("expected atomic loader")
	}

	p := samplePlugin()
	p.Commands = append(p.Commands, command.Descriptor{Name: "broken"})
	p.Hooks["during:forecast"] = []hook.Func{noopHook}

	err := l.Load(p, target)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, command.ErrInvalidDescriptor) || !errors.Is(err, hook.ErrInvalidKey) {
		t.Errorf("expected every problem reported, got %v", err)
	}
	if len(target.calls) != 0 {
		t.Errorf("nothing should be registered, got %v", target.calls)
	}
}

func TestLoadAtomicUsesChecker(t *testing.T) {
	target := checkingTarget{newTarget(command.WithPolicy(command.CollisionReject))}
	target.reg.Register(command.Descriptor{Name: "radar", Handler: handler.Static(1)})

	l := plugin.NewLoader(plugin.WithAtomic(), plugin.WithLogger(quiet()))
	err := l.Load(samplePlugin(), target)
	if !errors.Is(err, command.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if target.reg.Has("forecast") {
		t.Error("atomic load should not register anything on collision")
	}
}

func TestValidateDoesNotRegister(t *testing.T) {
	target := newTarget()
	l := plugin.NewLoader(plugin.WithLogger(quiet()))
	if err := l.Validate(samplePlugin(), target); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(target.calls) != 0 || l.Len() != 0 {
		t.Error("Validate must not register or store")
	}
}

type closer struct{ closed bool }

func (c *closer) Close() error { c.closed = true; return nil }

func TestListAndClose(t *testing.T) {
	target := newTarget()
	l := plugin.NewLoader(plugin.WithLogger(quiet()))

	c := &closer{}
	l.Load(&plugin.Plugin{Name: "b", Commands: []command.Descriptor{}, Closer: c}, target)
	l.Load(&plugin.Plugin{Name: "a", Commands: []command.Descriptor{}}, target)

	list := l.List()
	if len(list) != 2 || list[0].Name != "b" || list[1].Name != "a" {
		t.Errorf("expected load order [b a], got %+v", list)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !c.closed {
		t.Error("expected plugin closer to be called")
	}
}
