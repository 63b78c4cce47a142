package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geysersdk/client/config"
	"github.com/geysersdk/client/geyserpb"
	"github.com/geysersdk/client/internal/session"
	"github.com/geysersdk/client/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteRejectsModificationOnPreprocessed(t *testing.T) {
	cfg := &config.Config{Endpoint: "grpc://127.0.0.1:1"}
	s := New(cfg, transport.MethodSubscribePreprocessed, &geyserpb.SubscribeRequest{}, discardLogger())
	if err := s.Write(&geyserpb.SubscribeRequest{}); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("got %v, want ErrUnsupportedOperation", err)
	}
}

func TestWriteMergesIntoCached(t *testing.T) {
	cfg := &config.Config{Endpoint: "grpc://127.0.0.1:1"}
	s := New(cfg, transport.MethodSubscribe, &geyserpb.SubscribeRequest{}, discardLogger())

	update := &geyserpb.SubscribeRequest{
		Transactions: map[string]*geyserpb.SubscribeRequestFilterTransactions{"tx": {}},
	}
	if err := s.Write(update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.cached.Transactions["tx"] == nil {
		t.Fatal("expected merged transaction filter in cached request")
	}
}

func TestRunReturnsNilOnCancellation(t *testing.T) {
	cfg := &config.Config{Endpoint: "grpc://127.0.0.1:1", MaxReconnectAttempts: intPtr(3)}
	s := New(cfg, transport.MethodSubscribe, &geyserpb.SubscribeRequest{}, discardLogger())
	s.delay = time.Millisecond
	s.attemptFn = func(ctx context.Context, _ session.Forward) error {
		return errors.New("simulated failure")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	if err := s.Run(ctx, func(*geyserpb.SubscribeUpdate) error { return nil }); err != nil {
		t.Fatalf("expected nil on cancellation, got %v", err)
	}
}

func TestRunExhaustsCap(t *testing.T) {
	cfg := &config.Config{Endpoint: "grpc://127.0.0.1:1", MaxReconnectAttempts: intPtr(3)}
	s := New(cfg, transport.MethodSubscribe, &geyserpb.SubscribeRequest{}, discardLogger())
	s.delay = time.Millisecond

	var calls atomic.Int32
	s.attemptFn = func(ctx context.Context, _ session.Forward) error {
		calls.Add(1)
		return errors.New("simulated failure")
	}

	err := s.Run(context.Background(), func(*geyserpb.SubscribeUpdate) error { return nil })
	var capErr *CapExhaustedError
	if !errors.As(err, &capErr) {
		t.Fatalf("got %v, want *CapExhaustedError", err)
	}
	if capErr.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", capErr.Attempts)
	}
	if calls.Load() != 3 {
		t.Fatalf("attemptFn called %d times, want 3", calls.Load())
	}
}

func TestRunResetsCounterOnProgress(t *testing.T) {
	cfg := &config.Config{Endpoint: "grpc://127.0.0.1:1", MaxReconnectAttempts: intPtr(2)}
	s := New(cfg, transport.MethodSubscribe, &geyserpb.SubscribeRequest{}, discardLogger())
	s.delay = time.Millisecond

	var calls atomic.Int32
	s.attemptFn = func(ctx context.Context, forward session.Forward) error {
		n := calls.Add(1)
		if n <= 3 {
			s.progress.Store(true) // simulate a forwarded update before the failure
			return errors.New("simulated failure after progress")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(*geyserpb.SubscribeUpdate) error { return nil })
	}()

	select {
	case err := <-done:
		cancel()
		t.Fatalf("expected the loop to keep retrying past cap=2 because each attempt made progress, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	<-done
}

func intPtr(v int) *int { return &v }
