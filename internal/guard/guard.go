// Package guard implements a mutual-exclusion region whose acquisition is
// bounded by a timeout. A caller that cannot get in within the bound gets a
// TimeoutError instead of blocking forever, which turns a deadlock into a
// visible failure.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/your-org/peoplecounter/internal/observability"
)

// ErrLockTimeout is matched by every TimeoutError.
var ErrLockTimeout = errors.New("lock timeout")

// TimeoutError reports which operation gave up waiting, and on behalf of
// which flow.
type TimeoutError struct {
	Op      string
	Flow    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: could not acquire lock within %s (flow %s)", e.Op, e.Timeout, e.Flow)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrLockTimeout }

type flowKey struct{}

// WithFlow names the calling flow for timeout reports.
func WithFlow(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, flowKey{}, name)
}

// FlowFrom returns the flow name stored by WithFlow, or "unknown".
func FlowFrom(ctx context.Context) string {
	if v, ok := ctx.Value(flowKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// Guard is a single-holder lock with bounded acquisition.
type Guard struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func New(timeout time.Duration) *Guard {
	return &Guard{sem: semaphore.NewWeighted(1), timeout: timeout}
}

// Release gives the guard back. It must be called exactly once.
type Release func()

// Acquire waits at most the configured timeout. Cancellation of ctx by the
// caller is returned unchanged; only expiry of the bound is a TimeoutError.
func (g *Guard) Acquire(ctx context.Context, op string) (Release, error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		terr := &TimeoutError{Op: op, Flow: FlowFrom(ctx), Timeout: g.timeout}
		slog.Error("lock acquisition timeout", "op", op, "flow", terr.Flow, "timeout", g.timeout)
		observability.LockTimeouts.WithLabelValues(op).Inc()
		return nil, terr
	}
	return func() { g.sem.Release(1) }, nil
}

// Do runs fn while holding the guard.
func (g *Guard) Do(ctx context.Context, op string, fn func()) error {
	release, err := g.Acquire(ctx, op)
	if err != nil {
		return err
	}
	defer release()
	fn()
	return nil
}
