// Package session runs one connection attempt of a subscription over a
// bidirectional stream the caller has already opened: sending the initial
// request as the first frame,
// and multiplexing inbound messages, the outbound ping timer, and outbound
// modifications on a single select loop, the way a single attempt is driven
// in this module's transport lineage (one task, one select, no split
// dial/drain goroutines beyond the inbound reader).
package session

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/geysersdk/client/geyserpb"
	"github.com/geysersdk/client/internal/metrics"
	"github.com/geysersdk/client/internal/slottracker"
)

// pingInterval is the fixed liveness-probe cadence. The first tick is
// skipped implicitly: time.NewTicker only fires after the first interval
// elapses, never immediately.
const pingInterval = 30 * time.Second

// Stream is the minimal bidirectional-stream surface Run needs. It is
// satisfied by a *grpc.ClientStream-backed adapter built in package
// transport; no protoc-gen-go-grpc service stub exists in this module (see
// package geyserpb), so Run talks to Send/Recv/CloseSend directly instead of
// a generated client interface.
type Stream interface {
	Send(*geyserpb.SubscribeRequest) error
	Recv() (*geyserpb.SubscribeUpdate, error)
	CloseSend() error
}

// Forward delivers one user-visible update to the output adapter. It must
// use blocking submission — Forward does not return until the adapter has
// accepted the update — so a slow consumer applies backpressure to this
// session rather than updates being buffered or dropped.
type Forward func(*geyserpb.SubscribeUpdate) error

// Run drives exactly one connection attempt to completion. It returns nil
// for a graceful end of stream (io.EOF from the server, or ctx cancellation)
// and a non-nil error for any send/recv failure; the supervisor counts a
// non-nil error toward the reconnect cap and retries until the cap is reached.
//
// tracker may be nil when replay is disabled, in which case slot events are
// forwarded unmodified (no internal filter was ever injected, so none can
// match).
//
// handshakeTimeout bounds only the initial request frame — the first thing
// the server must acknowledge by starting to send updates back. It does not
// bound the stream itself: the ctx passed to the stream's underlying
// conn.NewStream call governs the stream's entire lifetime, so wrapping that
// ctx in a short timeout would tear the whole subscription down once the
// timeout elapsed instead of merely bounding the handshake.
//
// m may be nil, in which case stream error counts are not recorded.
func Run(
	ctx context.Context,
	stream Stream,
	initial *geyserpb.SubscribeRequest,
	tracker *slottracker.Tracker,
	mods <-chan *geyserpb.SubscribeRequest,
	progress *atomic.Bool,
	forward Forward,
	handshakeTimeout time.Duration,
	m *metrics.Metrics,
) error {
	if err := sendWithTimeout(stream, initial, handshakeTimeout); err != nil {
		recordSendError(m)
		return fmt.Errorf("session: send initial request: %w", err)
	}

	recvCh := make(chan recvResult, 1)
	go recvLoop(stream, recvCh)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	var pingID int32

	for {
		select {
		case <-ctx.Done():
			_ = stream.CloseSend()
			return nil

		case <-ticker.C:
			pingID++
			if err := stream.Send(&geyserpb.SubscribeRequest{
				Ping: &geyserpb.SubscribeRequestPing{ID: pingID},
			}); err != nil {
				recordSendError(m)
				return fmt.Errorf("session: send ping: %w", err)
			}

		case mod, ok := <-mods:
			if !ok {
				continue
			}
			if err := stream.Send(mod); err != nil {
				recordSendError(m)
				return fmt.Errorf("session: send modification: %w", err)
			}

		case res := <-recvCh:
			if res.err != nil {
				if res.err == io.EOF {
					return nil
				}
				recordRecvError(m)
				return fmt.Errorf("session: recv: %w", res.err)
			}
			if err := handle(stream, res.update, tracker, progress, forward, m); err != nil {
				return err
			}
		}
	}
}

// sendWithTimeout bounds the initial handshake send without touching the
// stream's own context: stream.Send here races against a timer instead of a
// derived context, since the stream's lifetime context must stay intact for
// the rest of Run.
func sendWithTimeout(stream Stream, req *geyserpb.SubscribeRequest, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- stream.Send(req) }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s", timeout)
	}
}

func recordSendError(m *metrics.Metrics) {
	if m != nil {
		m.StreamSendErrors.Add(1)
	}
}

func recordRecvError(m *metrics.Metrics) {
	if m != nil {
		m.StreamRecvErrors.Add(1)
	}
}

type recvResult struct {
	update *geyserpb.SubscribeUpdate
	err    error
}

// recvLoop reads from stream until it errors (including io.EOF), forwarding
// every result to ch. It exits after the first error; the caller is
// responsible for not reading ch again afterward.
func recvLoop(stream Stream, ch chan<- recvResult) {
	for {
		u, err := stream.Recv()
		if err != nil {
			ch <- recvResult{err: err}
			return
		}
		ch <- recvResult{update: u}
	}
}

// handle classifies one inbound update and either answers it directly
// (Ping→Pong), drops it (Pong, internal-only Slot), or forwards it with the
// internal slot-tracker id stripped from its filter list.
func handle(
	stream Stream,
	u *geyserpb.SubscribeUpdate,
	tracker *slottracker.Tracker,
	progress *atomic.Bool,
	forward Forward,
	m *metrics.Metrics,
) error {
	switch {
	case u.UpdatePing != nil:
		// The request message has no distinct pong field; answering a
		// server-originated ping with a ping frame of our own is what the
		// server correlates as the reply (it never inspects the id).
		if err := stream.Send(&geyserpb.SubscribeRequest{
			Ping: &geyserpb.SubscribeRequestPing{},
		}); err != nil {
			recordSendError(m)
			return fmt.Errorf("session: send ping reply: %w", err)
		}
		return nil

	case u.UpdatePong != nil:
		return nil

	case u.UpdateSlot != nil:
		if tracker != nil {
			tracker.Observe(u.UpdateSlot.Slot)
			stripped, ok := slottracker.StripInternalID(u.Filters, tracker.ID())
			if !ok {
				return nil
			}
			u.Filters = stripped
		}
		progress.Store(true)
		return forward(u)

	default:
		progress.Store(true)
		return forward(u)
	}
}
