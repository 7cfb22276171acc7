// Package notify delivers dispatcher lifecycle events to subscribed
// observers.
//
// Observers are plain callbacks. They run synchronously on the goroutine
// that raised the event unless the Notifier was created WithAsync, in which
// case a single background goroutine delivers events in order.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// EventType identifies a lifecycle event.
type EventType int

const (
	// CommandRegistered fires after a command is added or replaced.
	CommandRegistered EventType = iota

	// CommandUnregistered fires after a command is removed.
	CommandUnregistered

	// CommandExecuted fires after a handler returns successfully.
	CommandExecuted

	// CommandError fires after a handler or middleware fails.
	CommandError

	// CommandNotFound fires when input names no command or alias.
	CommandNotFound

	// PluginLoaded fires after a plugin has been stored.
	PluginLoaded

	// CommandDeprecated fires when a deprecated command is invoked.
	CommandDeprecated

	// PermissionDenied fires when the permission gate rejects an invocation.
	PermissionDenied

	// MiddlewareAborted fires when a middleware stops an invocation.
	MiddlewareAborted
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case CommandRegistered:
		return "commandRegistered"
	case CommandUnregistered:
		return "commandUnregistered"
	case CommandExecuted:
		return "commandExecuted"
	case CommandError:
		return "commandError"
	case CommandNotFound:
		return "commandNotFound"
	case PluginLoaded:
		return "pluginLoaded"
	case CommandDeprecated:
		return "commandDeprecated"
	case PermissionDenied:
		return "permissionDenied"
	case MiddlewareAborted:
		return "middlewareAborted"
	default:
		return "unknown"
	}
}

// Event describes something that happened inside the dispatcher. Fields
// that do not apply to a type are left zero.
type Event struct {
	Type EventType

	// Command is the canonical command name, or the unresolved token for
	// CommandNotFound.
	Command string

	// Plugin names the plugin involved, if any.
	Plugin string

	// InvocationID links execution events to their ExecutionContext.
	InvocationID string

	Args        []string
	Value       any
	Err         error
	Duration    time.Duration
	Suggestions []string
	Missing     []string

	// Message carries advisories and abort reasons.
	Message string

	Time time.Time
}

// Observer receives events.
type Observer func(Event)

type subscriber struct {
	id       uint64
	types    map[EventType]bool // nil means every type
	observer Observer
}

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Notifier manages lifecycle subscriptions.
type Notifier struct {
	mu sync.RWMutex

	subscribers []subscriber
	nextID      uint64

	logger *slog.Logger

	async  bool
	buffer chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAsync enables asynchronous delivery through a buffer of the given
// size.
func WithAsync(bufferSize int) Option {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan Event, bufferSize)
		}
	}
}

// WithLogger sets the logger used to report observer panics.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}
	return n
}

// Subscribe registers an observer for every event.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.subscribe(nil, observer)
}

// SubscribeType registers an observer for the listed event types only.
func (n *Notifier) SubscribeType(observer Observer, types ...EventType) *Subscription {
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return n.subscribe(set, observer)
}

func (n *Notifier) subscribe(types map[EventType]bool, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subscribers = append(n.subscribers, subscriber{id: id, types: types, observer: observer})
	return &Subscription{id: id, notifier: n}
}

// Len returns the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

// Notify delivers an event. A zero Time is set to now. Events raised after
// Close are dropped.
func (n *Notifier) Notify(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()
	if closed {
		return
	}

	if n.async {
		select {
		case n.buffer <- e:
		case <-n.done:
		}
		return
	}
	n.deliver(e)
}

// Close stops delivery after draining buffered events. It is safe to call
// Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, s := range n.subscribers {
		if s.id == id {
			n.subscribers = append(n.subscribers[:i:i], n.subscribers[i+1:]...)
			return
		}
	}
}

// deliver calls matching observers in subscription order, outside the lock.
func (n *Notifier) deliver(e Event) {
	n.mu.RLock()
	var observers []Observer
	for _, s := range n.subscribers {
		if s.types == nil || s.types[e.Type] {
			observers = append(observers, s.observer)
		}
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		n.call(obs, e)
	}
}

func (n *Notifier) call(obs Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("observer panic", "event", e.Type.String(), "command", e.Command, "panic", r)
		}
	}()
	obs(e)
}

func (n *Notifier) processAsync() {
	defer n.wg.Done()

	for {
		select {
		case e := <-n.buffer:
			n.deliver(e)
		case <-n.done:
			for {
				select {
				case e := <-n.buffer:
					n.deliver(e)
				default:
					return
				}
			}
		}
	}
}

// Batch holds events back until Commit. Plugin loading uses it so that
// observers only hear about a plugin's commands once the plugin is stored.
type Batch struct {
	notifier *Notifier
	events   []Event
	mu       sync.Mutex
}

// NewBatch creates an empty batch.
func (n *Notifier) NewBatch() *Batch {
	return &Batch{notifier: n}
}

// Add queues an event.
func (b *Batch) Add(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

// Commit delivers the queued events in order and empties the batch.
func (b *Batch) Commit() {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()

	for _, e := range events {
		b.notifier.Notify(e)
	}
}

// Discard empties the batch without delivering anything.
func (b *Batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// Len returns the number of queued events.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
