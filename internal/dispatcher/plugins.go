package dispatcher

import (
	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/hook"
	"github.com/dshills/slashcore/internal/notify"
	"github.com/dshills/slashcore/internal/plugin"
)

// LoadPlugin registers p's commands, middleware and hooks through the
// plugin loader. Registration events are held until the load finishes and
// are delivered even when a sequential load fails partway, since the
// commands registered before the failure stay in place.
func (d *Dispatcher) LoadPlugin(p *plugin.Plugin) error {
	if d.isClosed() {
		return ErrClosed
	}

	batch := d.notifier.NewBatch()
	err := d.plugins.Load(p, &pluginTarget{d: d, batch: batch})
	batch.Commit()
	if err != nil {
		return err
	}

	info, _ := d.plugins.Info(p.Name)
	d.notifier.Notify(notify.Event{
		Type:    notify.PluginLoaded,
		Plugin:  p.Name,
		Value:   info,
		Message: p.Version,
	})
	return nil
}

// pluginTarget routes a plugin's registrations into the dispatcher.
type pluginTarget struct {
	d     *Dispatcher
	batch *notify.Batch
}

func (t *pluginTarget) Register(desc command.Descriptor) (*command.Command, error) {
	cmd, replaced, err := t.d.registry.Register(desc)
	if err != nil {
		return nil, err
	}
	t.batch.Add(registeredEvent(cmd, replaced))
	return cmd, nil
}

func (t *pluginTarget) Use(name string, fn command.Middleware, priority int) error {
	return t.d.pipeline.Use(name, fn, priority)
}

func (t *pluginTarget) AddHook(key string, fn hook.Func) error {
	return t.d.hooks.RegisterKey(key, fn)
}

// Check lets atomic loads detect name and alias collisions up front.
func (t *pluginTarget) Check(descs []command.Descriptor) error {
	return t.d.registry.Check(descs)
}
