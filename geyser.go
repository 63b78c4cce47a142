// Package geyser is a resilient client for a Solana-style blockchain
// "geyser" gRPC streaming service: it maintains one long-lived
// bidirectional subscription per call to Subscribe, reconnecting on
// failure without losing position, and surfaces updates to the caller as a
// single, uninterrupted sequence.
package geyser

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/geysersdk/client/config"
	"github.com/geysersdk/client/geyserpb"
	"github.com/geysersdk/client/internal/metrics"
	"github.com/geysersdk/client/internal/supervisor"
	"github.com/geysersdk/client/registry"
	"github.com/geysersdk/client/transport"
)

// defaultOutputBuffer is used when Config.Channel.BufferSize is unset.
const defaultOutputBuffer = 64

// options collects the functional options Subscribe and SubscribeBytes
// accept.
type options struct {
	method               string
	emitPerAttemptErrors bool
	logger               *slog.Logger
	metrics              *metrics.Metrics
}

// Option customises a call to Subscribe or SubscribeBytes.
type Option func(*options)

// WithPreprocessed opens the subscription against the SubscribePreprocessed
// method instead of Subscribe. A subscription opened this way rejects
// Handle.Write with KindUnsupportedOperation.
func WithPreprocessed() Option {
	return func(o *options) { o.method = transport.MethodSubscribePreprocessed }
}

// WithPerAttemptErrors marks the native Result sequence for per-attempt
// error reporting. The supervisor hands back to Subscribe only a
// cap-exhausted error (or nothing, on cancellation), so failed attempts
// inside the retry loop are not yielded as Result items with or without this
// option: the sequence carries the same items either way. SubscribeBytes
// ignores this option.
func WithPerAttemptErrors() Option {
	return func(o *options) { o.emitPerAttemptErrors = true }
}

// WithLogger attaches a logger for internal diagnostics (dial failures,
// retry decisions). Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics attaches m so the engine records connection/reconnect/error
// counters as it runs. See package github.com/geysersdk/client/internal/metrics
// for the metric catalogue and Metrics.Handler for exposing them over HTTP.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func resolveOptions(opts []Option) *options {
	o := &options{
		method: transport.MethodSubscribe,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Subscribe opens a resilient subscription and returns a Handle plus a
// channel of Result the caller ranges over until it is closed. The channel
// is closed after Cancel, or after a single terminal *Error (cap-exhausted);
// it carries no other *Error values, including under WithPerAttemptErrors.
func Subscribe(ctx context.Context, cfg *config.Config, req *geyserpb.SubscribeRequest, opts ...Option) (*Handle, <-chan Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, newError(KindInvalidConfig, "invalid configuration", err)
	}
	if req == nil {
		req = &geyserpb.SubscribeRequest{}
	}

	o := resolveOptions(opts)

	bufSize := cfg.ChannelOptionsWithDefaults().BufferSize
	if bufSize <= 0 {
		bufSize = defaultOutputBuffer
	}
	out := make(chan Result, bufSize)

	runCtx, cancel := context.WithCancel(ctx)

	var supOpts []supervisor.Option
	if o.metrics != nil {
		supOpts = append(supOpts, supervisor.WithMetrics(o.metrics))
	}
	sup := supervisor.New(cfg, o.method, req, o.logger, supOpts...)

	id := uuid.NewString()
	h := &Handle{id: id, sup: sup, cancel: cancel}
	registry.Register(id, h.Cancel)
	if o.metrics != nil {
		o.metrics.ActiveSubscriptions.Add(1)
	}

	go runSupervisor(runCtx, sup, id, out, o)

	return h, out, nil
}

func runSupervisor(runCtx context.Context, sup *supervisor.Supervisor, id string, out chan Result, o *options) {
	defer close(out)
	defer registry.Unregister(id)
	defer func() {
		if o.metrics != nil {
			o.metrics.ActiveSubscriptions.Add(-1)
		}
	}()

	forward := func(u *geyserpb.SubscribeUpdate) error {
		select {
		case out <- Result{Update: u}:
			return nil
		case <-runCtx.Done():
			return runCtx.Err()
		}
	}

	err := sup.Run(runCtx, forward)
	if err == nil {
		return
	}

	var capErr *supervisor.CapExhaustedError
	if errors.As(err, &capErr) {
		emit(runCtx, out, Result{Err: newError(KindCapExhausted, "reconnect attempts exhausted", capErr)})
		return
	}

	if o.emitPerAttemptErrors {
		emit(runCtx, out, Result{Err: newError(KindStreamError, "attempt failed", err)})
	}
}

func emit(ctx context.Context, out chan Result, r Result) {
	select {
	case out <- r:
	case <-ctx.Done():
	}
}

// ByteCallback receives each forwarded update's exact wire-serialized bytes,
// or a single terminal error once retries are exhausted. It is the
// host-language (FFI) boundary adapter: err is non-nil at most once, as the
// final call; a subscription ended by cancellation makes no error call.
type ByteCallback func(err error, payload []byte)

// SubscribeBytes is the host-callback output adapter: it serializes every
// forwarded update to its exact wire form exactly once and delivers it
// through cb using blocking submission, so a slow host callback applies
// backpressure to the session. Per-message serialization failures are
// classified KindEncodeError, logged, and skipped — they are never
// delivered to cb. SubscribeBytes always uses the silent per-attempt-error
// policy regardless of WithPerAttemptErrors.
func SubscribeBytes(ctx context.Context, cfg *config.Config, req *geyserpb.SubscribeRequest, cb ByteCallback, opts ...Option) (*Handle, error) {
	o := resolveOptions(opts)
	h, results, err := Subscribe(ctx, cfg, req, append(opts, func(oo *options) { oo.emitPerAttemptErrors = false })...)
	if err != nil {
		return nil, err
	}

	go func() {
		for r := range results {
			if r.Err != nil {
				cb(r.Err, nil)
				continue
			}
			b, encErr := geyserpb.MarshalUpdate(r.Update)
			if encErr != nil {
				o.logger.Warn("geyser: dropping update that failed to encode",
					slog.String("error", encErr.Error()))
				continue
			}
			cb(nil, b)
		}
	}()

	return h, nil
}
