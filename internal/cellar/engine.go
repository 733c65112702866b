// Package cellar implements the volume ledger and the redemption state
// machine: issuing time-boxed single-use QR tokens against a purchased
// bottle and settling them with an exactly-once debit.
package cellar

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anishghanwat/StoreMyBottleApp/pkg/kafka"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/logging"
)

// EventPublisher emits redemption lifecycle events. Publishing is
// best-effort; failures are logged and never fail the operation.
type EventPublisher interface {
	PublishRedemptionEvent(ctx context.Context, event *kafka.RedemptionEvent) error
}

// Metrics holds the engine's Prometheus counters. Any field may be nil.
type Metrics struct {
	TokensIssued *prometheus.CounterVec // labels: outcome
	Settlements  *prometheus.CounterVec // labels: outcome
	TokensSwept  prometheus.Counter
}

// Engine owns all mutations of the volume ledger and token state.
type Engine struct {
	db        *sql.DB
	logger    logging.Logger
	cfg       Config
	cache     *DisplayCache
	publisher EventPublisher
	metrics   *Metrics
	now       func() time.Time
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithCache attaches a read-through display cache.
func WithCache(cache *DisplayCache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithPublisher attaches a redemption event publisher.
func WithPublisher(publisher EventPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

// WithMetrics attaches engine counters.
func WithMetrics(metrics *Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithClock overrides the engine clock. Tests use this to move time
// across the token TTL and the bottle freshness window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a redemption engine.
func NewEngine(db *sql.DB, logger logging.Logger, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's redemption policy.
func (e *Engine) Config() Config {
	return e.cfg
}

// newSecret returns a 128-bit random hex string used as the scannable QR
// value. Entropy must be high enough that guessing an in-window token is
// infeasible.
func newSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (e *Engine) countIssued(outcome string) {
	if e.metrics != nil && e.metrics.TokensIssued != nil {
		e.metrics.TokensIssued.WithLabelValues(outcome).Inc()
	}
}

func (e *Engine) countSettled(outcome string) {
	if e.metrics != nil && e.metrics.Settlements != nil {
		e.metrics.Settlements.WithLabelValues(outcome).Inc()
	}
}

func (e *Engine) publishEvent(ctx context.Context, event *kafka.RedemptionEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishRedemptionEvent(ctx, event); err != nil {
		e.logger.WithError(err).WithField("event_type", event.EventType).Warn("Failed to publish redemption event")
	}
}
