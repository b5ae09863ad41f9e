// Package report carries anomalies and failures from the repair operations to
// whatever sink the operator configured. Callers receive a Reporter explicitly;
// there is no package-level state.
package report

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vbonduro/obrafix/internal/domain"
)

type Reporter interface {
	CaptureAnomaly(ctx context.Context, a domain.Anomaly)
	CaptureError(ctx context.Context, err error, attrs ...any)
}

// Nop discards everything. Used when telemetry is disabled.
type Nop struct{}

func (Nop) CaptureAnomaly(context.Context, domain.Anomaly) {}
func (Nop) CaptureError(context.Context, error, ...any)    {}

// Log writes every capture to a slog.Logger.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) CaptureAnomaly(ctx context.Context, a domain.Anomaly) {
	l.logger.WarnContext(ctx, "photo anomaly",
		"obra", a.Obra,
		"column", a.Column,
		"path", a.Path,
		"kind", string(a.Kind),
		"value", a.Value,
		"reason", a.Reason,
	)
}

func (l *Log) CaptureError(ctx context.Context, err error, attrs ...any) {
	l.logger.ErrorContext(ctx, "operation failed", append([]any{"error", err}, attrs...)...)
}

// Collector keeps captures in memory so a caller can print them afterwards.
type Collector struct {
	mu        sync.Mutex
	anomalies []domain.Anomaly
	errs      []error
}

func (c *Collector) CaptureAnomaly(_ context.Context, a domain.Anomaly) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anomalies = append(c.anomalies, a)
}

func (c *Collector) CaptureError(_ context.Context, err error, _ ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *Collector) Anomalies() []domain.Anomaly {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Anomaly(nil), c.anomalies...)
}

func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

// Multi fans every capture out to each reporter in order.
type Multi []Reporter

func (m Multi) CaptureAnomaly(ctx context.Context, a domain.Anomaly) {
	for _, r := range m {
		r.CaptureAnomaly(ctx, a)
	}
}

func (m Multi) CaptureError(ctx context.Context, err error, attrs ...any) {
	for _, r := range m {
		r.CaptureError(ctx, err, attrs...)
	}
}

// New returns the reporter selected by name: "log" or "none".
func New(name string, logger *slog.Logger) Reporter {
	switch name {
	case "log":
		return NewLog(logger)
	default:
		return Nop{}
	}
}
