package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/execctx"
)

// Logging returns a middleware that logs every invocation that reaches it
// at debug level and always continues. A nil logger uses the host logger.
func Logging(logger *slog.Logger) command.Middleware {
	return func(_ context.Context, cmd *command.Command, ec *execctx.ExecutionContext, host execctx.Host) (bool, error) {
		l := logger
		if l == nil {
			l = host.Logger()
		}
		l.Debug("command invoked",
			"command", cmd.Name,
			"args", ec.Args,
			"user", ec.User,
			"session", ec.Session,
			"invocation", ec.InvocationID,
		)
		return true, nil
	}
}

// RateLimiter throttles invocations per user with a token bucket.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewRateLimiter allows each user perSecond invocations with bursts of
// burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// Allow reports whether user may run another command now.
func (rl *RateLimiter) Allow(user string) bool {
	rl.mu.Lock()
	lim, ok := rl.limiters[user]
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[user] = lim
	}
	rl.mu.Unlock()
	return lim.AllowN(rl.now(), 1)
}

// Middleware adapts the limiter to the pipeline. An exhausted bucket stops
// the invocation and leaves an advisory on the context.
func (rl *RateLimiter) Middleware() command.Middleware {
	return func(_ context.Context, cmd *command.Command, ec *execctx.ExecutionContext, host execctx.Host) (bool, error) {
		if rl.Allow(ec.User) {
			return true, nil
		}
		ec.Set(AdvisoryKey, "rate limit exceeded, try again shortly")
		host.Logger().Info("command rate limited", "command", cmd.Name, "user", ec.User)
		return false, nil
	}
}

// RateLimit is shorthand for NewRateLimiter(perSecond, burst).Middleware().
func RateLimit(perSecond float64, burst int) command.Middleware {
	return NewRateLimiter(perSecond, burst).Middleware()
}

// RequireSession stops invocations that are not bound to an explicit
// session.
func RequireSession() command.Middleware {
	return func(_ context.Context, cmd *command.Command, ec *execctx.ExecutionContext, _ execctx.Host) (bool, error) {
		if ec.Session == "" || ec.Session == execctx.DefaultSession {
			ec.Set(AdvisoryKey, cmd.Name+" requires an active session")
			return false, nil
		}
		return true, nil
	}
}
