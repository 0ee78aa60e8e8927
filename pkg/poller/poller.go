// Package poller implements the timed-fetch subscription primitive behind
// every live view: an immediate fetch, a fixed-interval refetch, and a
// sequence-numbered latest-wins reducer so a slow response for an older
// tick can never overwrite a newer one.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// FetchFunc retrieves one value of the polled resource. It must honor ctx
// cancellation; the poller issues it once per tick.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is the externally visible state of a subscription at one point
// in time.
type Snapshot[T any] struct {
	// Value is the most recently applied successful result. It is kept
	// across failed cycles.
	Value T

	// Err is the error of the most recently applied cycle, nil after a
	// success. An error never clears Value.
	Err error

	// Loading is true until the first response of any kind is applied.
	Loading bool

	// InFlight is true while at least one issued fetch has not resolved.
	InFlight bool

	// LastUpdate is when Value was last replaced by a successful fetch.
	LastUpdate time.Time

	// Seq is the sequence number of the applied response. It only grows.
	Seq uint64
}

// Subscription is one independent live feed of a resource. Subscriptions
// never share state; polling the same resource twice issues two request
// streams.
type Subscription[T any] struct {
	id       string
	name     string
	fetch    FetchFunc[T]
	interval time.Duration
	logger   *zap.Logger

	mu         sync.Mutex
	snap       Snapshot[T]
	appliedSeq uint64
	pending    int
	closed     bool

	nextSeq   atomic.Uint64
	cancel    context.CancelFunc
	done      chan struct{}
	updates   chan Snapshot[T]
	closeOnce sync.Once

	fetchesTotal metric.Int64Counter
	fetchErrors  metric.Int64Counter
	staleDrops   metric.Int64Counter
	attrs        metric.MeasurementOption
}

// Option configures a subscription.
type Option func(*options)

type options struct {
	logger *zap.Logger
	name   string
}

// WithLogger attaches a logger for debug-level poll diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithName labels the subscription in logs and metrics. Defaults to
// "resource".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Subscribe starts polling fetch every interval, beginning with an
// immediate fetch. The returned subscription keeps running until
// Unsubscribe is called or ctx is cancelled.
func Subscribe[T any](ctx context.Context, fetch FetchFunc[T], interval time.Duration, opts ...Option) *Subscription[T] {
	o := options{logger: zap.NewNop(), name: "resource"}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		id:       uuid.NewString(),
		name:     o.name,
		fetch:    fetch,
		interval: interval,
		logger:   o.logger,
		cancel:   cancel,
		done:     make(chan struct{}),
		updates:  make(chan Snapshot[T], 1),
	}
	s.snap.Loading = true
	s.initMetrics()

	s.logger.Debug("subscription started",
		zap.String("subscription_id", s.id),
		zap.String("resource", s.name),
		zap.Duration("interval", interval))

	go s.run(ctx)
	return s
}

// FetchOnce is the one-shot variant used by non-live detail views: a
// single fetch with no timer and no subscription state.
func FetchOnce[T any](ctx context.Context, fetch FetchFunc[T]) (T, error) {
	return fetch(ctx)
}

func (s *Subscription[T]) initMetrics() {
	meter := otel.Meter("aetherwatch/poller")
	var err error

	s.fetchesTotal, err = meter.Int64Counter("poller_fetches_total",
		metric.WithDescription("Fetches issued by the poller"))
	if err != nil {
		s.logger.Warn("failed to create fetch counter", zap.Error(err))
	}
	s.fetchErrors, err = meter.Int64Counter("poller_fetch_errors_total",
		metric.WithDescription("Fetch cycles that resolved with an error"))
	if err != nil {
		s.logger.Warn("failed to create error counter", zap.Error(err))
	}
	s.staleDrops, err = meter.Int64Counter("poller_stale_drops_total",
		metric.WithDescription("Responses discarded because a newer one was already applied"))
	if err != nil {
		s.logger.Warn("failed to create stale-drop counter", zap.Error(err))
	}
	s.attrs = metric.WithAttributes(attribute.String("resource", s.name))
}

func (s *Subscription[T]) run(ctx context.Context) {
	defer close(s.done)

	s.issue(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.issue(ctx)
		}
	}
}

// issue tags a new fetch with the next sequence number and dispatches it.
// The fetch runs outside the tick loop so a slow response never delays
// the next tick; ordering is restored by the sequence check in apply.
func (s *Subscription[T]) issue(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending++
	s.snap.InFlight = true
	s.publishLocked()
	s.mu.Unlock()

	seq := s.nextSeq.Add(1)
	if s.fetchesTotal != nil {
		s.fetchesTotal.Add(ctx, 1, s.attrs)
	}

	go func() {
		value, err := s.fetch(ctx)
		s.apply(ctx, seq, value, err)
	}()
}

// apply installs a resolved fetch as the new snapshot, unless the
// subscription is closed or a response with a higher sequence number has
// already been applied. Both success and failure count as applied: a late
// success must not overwrite the error state of a newer cycle.
func (s *Subscription[T]) apply(ctx context.Context, seq uint64, value T, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.pending--
	s.snap.InFlight = s.pending > 0

	if seq <= s.appliedSeq {
		if s.staleDrops != nil {
			s.staleDrops.Add(ctx, 1, s.attrs)
		}
		s.logger.Debug("discarded superseded response",
			zap.String("resource", s.name),
			zap.Uint64("seq", seq),
			zap.Uint64("applied_seq", s.appliedSeq))
		return
	}

	s.appliedSeq = seq
	s.snap.Seq = seq
	s.snap.Loading = false

	if err != nil {
		if s.fetchErrors != nil {
			s.fetchErrors.Add(ctx, 1, s.attrs)
		}
		s.snap.Err = err
	} else {
		s.snap.Value = value
		s.snap.Err = nil
		s.snap.LastUpdate = time.Now()
	}

	s.publishLocked()
}

// publishLocked pushes the current snapshot to the updates channel,
// replacing any unconsumed one. Callers hold s.mu.
func (s *Subscription[T]) publishLocked() {
	select {
	case s.updates <- s.snap:
	default:
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- s.snap:
		default:
		}
	}
}

// Snapshot returns the current state of the subscription.
func (s *Subscription[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Updates returns a channel carrying the latest snapshot whenever it
// changes: once when a fetch is issued (InFlight set) and once when a
// response is applied. Slow consumers only ever see the most recent
// state; intermediate snapshots are replaced, not queued.
func (s *Subscription[T]) Updates() <-chan Snapshot[T] {
	return s.updates
}

// ID returns the unique identifier of this subscription.
func (s *Subscription[T]) ID() string {
	return s.id
}

// Unsubscribe stops the timer and closes the subscription. Responses that
// resolve afterwards are discarded unconditionally. Safe to call more
// than once.
func (s *Subscription[T]) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		<-s.done

		s.logger.Debug("subscription closed",
			zap.String("subscription_id", s.id),
			zap.String("resource", s.name))
	})
}

// Closed reports whether Unsubscribe has completed.
func (s *Subscription[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
