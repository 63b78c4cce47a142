// Package supervisor owns the reconnect loop for one subscription: it wraps
// package session in a retry loop that counts attempts, detects progress,
// recomputes the resume point from the tracked slot and commitment level,
// and enforces the fixed 5-second delay and the effective retry cap — the
// same Run/runOnce split this module's transport lineage uses, generalized
// from exponential to a fixed backoff (see [New]).
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/geysersdk/client/config"
	"github.com/geysersdk/client/geyserpb"
	"github.com/geysersdk/client/internal/merger"
	"github.com/geysersdk/client/internal/metrics"
	"github.com/geysersdk/client/internal/resume"
	"github.com/geysersdk/client/internal/session"
	"github.com/geysersdk/client/internal/slottracker"
	"github.com/geysersdk/client/transport"
)

// ReconnectDelay is the fixed interval the supervisor waits between attempts.
// Unlike an exponential backoff, this interval never grows.
const ReconnectDelay = 5 * time.Second

// ErrClosed is returned by Write once the supervisor has terminated and its
// modification channel is no longer being drained.
var ErrClosed = errors.New("supervisor: subscription has terminated")

// ErrUnsupportedOperation is returned by Write when the subscription was
// opened against a method that does not accept mid-stream modification
// (MethodSubscribePreprocessed).
var ErrUnsupportedOperation = errors.New("supervisor: write is unsupported on this method")

// CapExhaustedError is returned by Run when the effective reconnect cap is
// reached; it is the only error Run ever returns for a started subscription
// (cancellation returns nil).
type CapExhaustedError struct {
	Attempts int
	Last     error
}

func (e *CapExhaustedError) Error() string {
	return fmt.Sprintf("supervisor: reconnect cap exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *CapExhaustedError) Unwrap() error { return e.Last }

// Supervisor owns one subscription's cached request, tracked slot, progress
// flag, and modification channel, and drives the attempt loop.
type Supervisor struct {
	cfg    *config.Config
	method string
	logger *slog.Logger

	mu     sync.Mutex
	cached *geyserpb.SubscribeRequest

	tracker  *slottracker.Tracker // nil when replay is disabled
	progress atomic.Bool

	mods chan *geyserpb.SubscribeRequest
	done chan struct{}

	// attemptFn defaults to s.runAttempt; tests substitute a fake to drive
	// the retry state machine without a real network dial.
	attemptFn func(context.Context, session.Forward) error

	// delay defaults to ReconnectDelay; tests shrink it to keep the retry
	// state machine fast to exercise.
	delay time.Duration

	metrics *metrics.Metrics // nil when no instrumentation is requested
}

// Option customises a Supervisor built by New.
type Option func(*Supervisor)

// WithMetrics attaches m so connection/reconnect/error counters are
// recorded as the supervisor runs. Without this option the supervisor
// carries no instrumentation overhead.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// New builds a Supervisor for one subscription. initial is the caller's
// SubscribeRequest; if cfg.ReplayEnabled(), the internal slot-tracker filter
// is injected before the first attempt; otherwise any caller-supplied
// FromSlot is cleared.
func New(cfg *config.Config, method string, initial *geyserpb.SubscribeRequest, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		method: method,
		logger: logger,
		mods:   make(chan *geyserpb.SubscribeRequest, 16),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	cached := initial.Clone()
	if cfg.ReplayEnabled() {
		s.tracker = slottracker.New()
		cached = s.tracker.InjectFilter(cached)
	} else {
		cached.FromSlot = nil
	}
	s.cached = cached
	s.attemptFn = s.runAttempt
	s.delay = ReconnectDelay
	return s
}

// TrackerID returns the internal slot-tracker filter id, or "" when replay
// is disabled and no tracker exists.
func (s *Supervisor) TrackerID() string {
	if s.tracker == nil {
		return ""
	}
	return s.tracker.ID()
}

// Write merges update into the cached request and, if a session is
// currently connected, forwards the merged snapshot as a modification frame.
// The merge always lands in the cached request even if no session is
// connected right now (e.g. mid reconnect-delay), so the next reconnect's
// initial frame carries it regardless of whether the best-effort send to an
// active session succeeds.
func (s *Supervisor) Write(update *geyserpb.SubscribeRequest) error {
	if s.method == transport.MethodSubscribePreprocessed {
		return ErrUnsupportedOperation
	}

	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	s.mu.Lock()
	s.cached = merger.Merge(s.cached, update, s.TrackerID(), s.cfg.ReplayEnabled())
	snapshot := s.cached.Clone()
	s.mu.Unlock()

	select {
	case s.mods <- snapshot:
	default:
		// No attempt is currently draining mods (e.g. mid-delay, or a slow
		// consumer); the merged cached request will still be sent as the
		// initial frame of the next attempt.
	}
	return nil
}

// Run drives the reconnect loop until ctx is cancelled (returns nil) or the
// effective retry cap is reached (returns *CapExhaustedError). forward is
// called once per user-visible update using blocking submission.
func (s *Supervisor) Run(ctx context.Context, forward session.Forward) error {
	defer close(s.done)

	cap := s.cfg.EffectiveMaxReconnectAttempts()
	attempts := 0
	var lastErr error

	bo := backoff.WithContext(backoff.NewConstantBackOff(s.delay), ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		s.progress.Store(false)
		err := s.attemptFn(ctx, forward)
		if ctx.Err() != nil {
			return nil
		}

		if err == nil {
			attempts = 0
		} else {
			lastErr = err
			attempts++
			s.observeMetric(func(m *metrics.Metrics) { m.ReconnectAttempts.Add(1) })
			if s.progress.Load() {
				attempts = 1
			}
			if attempts >= cap {
				return &CapExhaustedError{Attempts: attempts, Last: lastErr}
			}
			s.logger.Warn("supervisor: attempt failed, will retry",
				slog.Int("attempt", attempts),
				slog.Int("cap", cap),
				slog.String("error", err.Error()),
			)
		}

		s.recomputeResume()

		d := bo.NextBackOff()
		if d == backoff.Stop {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d):
		}
	}
}

// runAttempt performs exactly one dial → open-stream → session.Run cycle.
// The dial is bounded by the configured connect timeout; the stream itself
// is opened on the unbounded caller ctx, since a gRPC stream's context
// governs its entire lifetime, not just its handshake.
func (s *Supervisor) runAttempt(ctx context.Context, forward session.Forward) error {
	s.observeMetric(func(m *metrics.Metrics) { m.ConnectionAttempts.Add(1) })

	ch := s.cfg.ChannelOptionsWithDefaults()

	dialCtx, dialCancel := context.WithTimeout(ctx, ch.ConnectTimeout)
	conn, err := transport.Dial(dialCtx, s.cfg)
	dialCancel()
	if err != nil {
		s.observeMetric(func(m *metrics.Metrics) { m.ConnectionErrors.Add(1) })
		return fmt.Errorf("supervisor: dial: %w", err)
	}
	defer conn.Close()

	stream, err := transport.OpenStream(ctx, conn, s.method)
	if err != nil {
		s.observeMetric(func(m *metrics.Metrics) { m.ConnectionErrors.Add(1) })
		return fmt.Errorf("supervisor: open stream: %w", err)
	}

	s.mu.Lock()
	initial := s.cached.Clone()
	// initial already carries every modification written so far; drop the
	// snapshots queued while no session was connected instead of re-sending
	// them as follow-up frames.
	for drained := false; !drained; {
		select {
		case <-s.mods:
		default:
			drained = true
		}
	}
	s.mu.Unlock()

	s.observeMetric(func(m *metrics.Metrics) { m.Connected.Store(1) })
	defer s.observeMetric(func(m *metrics.Metrics) { m.Connected.Store(0) })

	countingForward := func(u *geyserpb.SubscribeUpdate) error {
		s.observeMetric(func(m *metrics.Metrics) { m.UpdatesForwarded.Add(1) })
		return forward(u)
	}

	return session.Run(ctx, stream, initial, s.tracker, s.mods, &s.progress, countingForward, ch.Timeout, s.metrics)
}

// observeMetric calls fn with s.metrics when instrumentation was requested;
// a nil Metrics pointer is treated as a no-op.
func (s *Supervisor) observeMetric(fn func(*metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

// recomputeResume updates the cached request's FromSlot for the next
// attempt from the tracked slot, so a reconnect resumes instead of
// replaying from the beginning.
func (s *Supervisor) recomputeResume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	trackedSlot := uint64(0)
	if s.tracker != nil {
		trackedSlot = s.tracker.Slot()
	}
	s.cached = resume.Apply(s.cached, trackedSlot, s.cfg.ReplayEnabled())
}
