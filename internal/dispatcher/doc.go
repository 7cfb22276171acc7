// Package dispatcher resolves slash-command input and coordinates its
// execution.
//
// The dispatcher owns the command registry, the middleware pipeline, the
// hook bus, the statistics collector and the history ring. Handlers only
// see the execution context and the read-only execctx.Host facade.
//
// # Pipeline
//
// When input is dispatched:
//
//  1. PARSE: input must start with the prefix ("/" by default); the rest is
//     split into a command token and arguments
//  2. RESOLVE: the token is looked up by name, then by alias; unknown
//     tokens return StatusNotFound with suggestions
//  3. PERMISSION_CHECK: every required permission must be granted, unless
//     the context carries "admin"
//  4. Deprecated commands log an advisory and notify observers
//  5. MIDDLEWARE: global middleware by ascending priority, then the
//     command's own middleware; false stops the invocation
//  6. PRE_HOOKS: command hooks, then wildcard hooks; failures are logged
//  7. EXECUTE: the handler runs with optional timeout and panic recovery
//  8. POST_HOOKS: as pre-hooks, with the result on the context
//  9. RECORD: statistics and history are updated for successes and
//     handler failures alike
//
// Steps 1 to 5 never touch statistics or history.
//
// # Usage
//
//	d, err := dispatcher.New(dispatcher.DefaultConfig().WithArgMode(dispatcher.ArgsShell))
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//
//	d.Register(command.Descriptor{
//	    Name:    "ping",
//	    Handler: handler.Static("pong"),
//	})
//
//	result, err := d.Dispatch(ctx, "/ping", execctx.WithUser("alice"))
//
// # Notifications
//
// Observers receive registration, execution, not-found, permission,
// deprecation, abort and plugin events:
//
//	d.SubscribeType(func(e notify.Event) {
//	    log.Printf("%s failed: %v", e.Command, e.Err)
//	}, notify.CommandError)
//
// # Concurrency
//
// Dispatch may be called from many goroutines. Within one invocation the
// stages run strictly in order; across invocations, history and
// statistics interleave in the order their RECORD step runs. The
// registry, pipeline and hook bus are internally locked, so registration
// may happen while commands run.
package dispatcher
