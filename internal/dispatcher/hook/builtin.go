package hook

import (
	"context"
	"log/slog"

	"github.com/dshills/slashcore/internal/dispatcher/execctx"
)

// AuditPre logs the start of every invocation it is registered for.
func AuditPre(logger *slog.Logger) Func {
	return func(_ context.Context, ec *execctx.ExecutionContext, _ execctx.Host) error {
		logger.Debug("command start",
			"command", ec.Command,
			"user", ec.User,
			"session", ec.Session,
			"invocation", ec.InvocationID,
		)
		return nil
	}
}

// AuditPost logs the outcome of every invocation it is registered for.
func AuditPost(logger *slog.Logger) Func {
	return func(_ context.Context, ec *execctx.ExecutionContext, _ execctx.Host) error {
		if ec.Err != nil {
			logger.Error("command failed",
				"command", ec.Command,
				"invocation", ec.InvocationID,
				"error", ec.Err,
			)
			return nil
		}
		logger.Debug("command complete",
			"command", ec.Command,
			"invocation", ec.InvocationID,
		)
		return nil
	}
}

// InstallAudit registers the audit hooks for every command.
func InstallAudit(b *Bus, logger *slog.Logger) {
	if logger == nil {
		logger = b.logger
	}
	_ = b.Register(Pre, Wildcard, AuditPre(logger))
	_ = b.Register(Post, Wildcard, AuditPost(logger))
}
