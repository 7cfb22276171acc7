// Package hook provides the pre/post hook bus for command dispatch.
//
// Hooks observe an invocation; unlike middleware they cannot stop it. Each
// hook list is keyed by a phase and a command name:
//
//	pre:deploy    runs after middleware, before the deploy handler
//	post:deploy   runs after the deploy handler, success or failure
//	post:*        runs after every command
//
// Within a key, hooks run in registration order. Wildcard hooks run after
// the command's own hooks of the same phase.
//
// # Failure Handling
//
// A hook that returns an error or panics is logged at warn level and
// reported back from Run as an *Error. The remaining hooks still run, and
// the dispatcher never fails an invocation because of a hook.
package hook
