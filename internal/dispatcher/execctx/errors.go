package execctx

import "errors"

// ErrPermissionDenied indicates the context lacks a required capability.
var ErrPermissionDenied = errors.New("execution context: permission denied")
