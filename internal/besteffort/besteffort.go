// Package besteffort runs side effects whose failure must never fail the caller.
// Failures are logged and counted in datashare_best_effort_failures_total.
package besteffort

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/datashare/internal/logger"
	"github.com/weiwangfds/datashare/internal/metrics"
)

// Run executes fn and swallows its error or panic.
// It reports whether fn succeeded.
func Run(ctx context.Context, operation string, fields logrus.Fields, fn func(ctx context.Context) error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			record(operation, fields, fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()

	if err := fn(ctx); err != nil {
		record(operation, fields, err)
		return false
	}
	return true
}

// Go runs fn on its own goroutine, detached from the request context
func Go(ctx context.Context, operation string, fields logrus.Fields, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	go Run(detached, operation, fields, fn)
}

func record(operation string, fields logrus.Fields, err error) {
	metrics.BestEffortFailures.WithLabelValues(operation).Inc()
	logger.WithFields(fields).
		WithField("operation", operation).
		WithError(err).
		Warn("best-effort operation failed")
}
