// Package ops provides a best-effort audit publisher.
//
// Emit never fails the caller. Write failures are logged and counted, and a
// circuit breaker drops events while the store is unhealthy. Use it for
// events whose loss must not block the operation that produced them, such as
// role administration.
package ops

import (
	"context"
	"log/slog"
	"time"

	audit "custody/pkg/platform/audit"
)

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

// Publisher emits audit events without propagating store failures.
type Publisher struct {
	store   audit.Store
	breaker *CircuitBreaker
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(p *Publisher) {
		if cb != nil {
			p.breaker = cb
		}
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		breaker: NewCircuitBreaker(defaultFailureThreshold, defaultCooldown),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit writes the event if the circuit allows it. It always returns nil.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if !p.breaker.Allow() {
		if p.metrics != nil {
			p.metrics.IncCircuitBreakerDropped()
		}
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	if err := p.store.Append(ctx, event); err != nil {
		opened := p.breaker.RecordFailure()
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
			p.metrics.SetCircuitBreakerState(opened)
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "best-effort audit write failed",
				"action", event.Action,
				"subject", event.Subject,
				"circuit_open", opened,
				"error", err,
			)
		}
		return nil
	}

	p.breaker.RecordSuccess()
	if p.metrics != nil {
		p.metrics.IncTracked()
		p.metrics.SetCircuitBreakerState(false)
	}
	return nil
}

// Close is a no-op for the synchronous publisher.
func (p *Publisher) Close() error {
	return nil
}
