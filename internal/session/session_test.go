package session

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geysersdk/client/geyserpb"
	"github.com/geysersdk/client/internal/metrics"
	"github.com/geysersdk/client/internal/slottracker"
)

const testHandshakeTimeout = time.Second

// fakeStream is an in-memory Stream double: inbound holds server-to-client
// frames consumed by Recv in order; sent records every client-to-server
// frame in order.
type fakeStream struct {
	inbound   chan *geyserpb.SubscribeUpdate
	recvErr   error
	sendErr   error
	sent      chan *geyserpb.SubscribeRequest
	closeSent atomic.Bool
}

func newFakeStream(capacity int) *fakeStream {
	return &fakeStream{
		inbound: make(chan *geyserpb.SubscribeUpdate, capacity),
		sent:    make(chan *geyserpb.SubscribeRequest, capacity),
	}
}

func (f *fakeStream) Send(r *geyserpb.SubscribeRequest) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent <- r
	return nil
}

func (f *fakeStream) Recv() (*geyserpb.SubscribeUpdate, error) {
	u, ok := <-f.inbound
	if !ok {
		if f.recvErr != nil {
			return nil, f.recvErr
		}
		return nil, io.EOF
	}
	return u, nil
}

func (f *fakeStream) CloseSend() error {
	f.closeSent.Store(true)
	return nil
}

func drainInitial(t *testing.T, stream *fakeStream) {
	t.Helper()
	select {
	case <-stream.sent:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial request frame")
	}
}

func TestRunForwardsSlotAndStripsInternalID(t *testing.T) {
	stream := newFakeStream(4)
	tracker := slottracker.New()
	var progress atomic.Bool
	forwarded := make(chan *geyserpb.SubscribeUpdate, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, stream, &geyserpb.SubscribeRequest{}, tracker, nil, &progress, func(u *geyserpb.SubscribeUpdate) error {
			forwarded <- u
			return nil
		}, testHandshakeTimeout, nil)
	}()

	drainInitial(t, stream)

	slot := uint64(1000)
	stream.inbound <- &geyserpb.SubscribeUpdate{
		Filters:    []string{"all", tracker.ID()},
		UpdateSlot: &geyserpb.UpdateSlot{Slot: slot},
	}

	select {
	case u := <-forwarded:
		if len(u.Filters) != 1 || u.Filters[0] != "all" {
			t.Fatalf("filters = %v, want [all]", u.Filters)
		}
	case <-time.After(time.Second):
		t.Fatal("update was not forwarded")
	}

	if tracker.Slot() != slot {
		t.Fatalf("tracker.Slot() = %d, want %d", tracker.Slot(), slot)
	}
	if !progress.Load() {
		t.Fatal("expected progress flag set")
	}

	close(stream.inbound)
	cancel()
	<-done
}

func TestRunDropsInternalOnlySlot(t *testing.T) {
	stream := newFakeStream(4)
	tracker := slottracker.New()
	var progress atomic.Bool
	forwarded := make(chan *geyserpb.SubscribeUpdate, 4)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, stream, &geyserpb.SubscribeRequest{}, tracker, nil, &progress, func(u *geyserpb.SubscribeUpdate) error {
			forwarded <- u
			return nil
		}, testHandshakeTimeout, nil)
	}()

	drainInitial(t, stream)

	stream.inbound <- &geyserpb.SubscribeUpdate{
		Filters:    []string{tracker.ID()},
		UpdateSlot: &geyserpb.UpdateSlot{Slot: 5},
	}

	select {
	case u := <-forwarded:
		t.Fatalf("expected no forward, got %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
	if progress.Load() {
		t.Fatal("progress flag must not be set for a dropped internal-only slot event")
	}

	cancel()
	<-done
}

func TestRunAnswersServerPingWithoutForwarding(t *testing.T) {
	stream := newFakeStream(4)
	var progress atomic.Bool
	forwarded := make(chan *geyserpb.SubscribeUpdate, 4)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, stream, &geyserpb.SubscribeRequest{}, nil, nil, &progress, func(u *geyserpb.SubscribeUpdate) error {
			forwarded <- u
			return nil
		}, testHandshakeTimeout, nil)
	}()

	drainInitial(t, stream)

	stream.inbound <- &geyserpb.SubscribeUpdate{UpdatePing: &geyserpb.UpdatePing{}}

	select {
	case req := <-stream.sent:
		if req.Ping == nil {
			t.Fatal("expected a ping-shaped reply frame")
		}
	case <-time.After(time.Second):
		t.Fatal("no reply frame sent for server ping")
	}

	select {
	case u := <-forwarded:
		t.Fatalf("ping must not be forwarded, got %+v", u)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	<-done
}

func TestRunSendsModification(t *testing.T) {
	stream := newFakeStream(4)
	var progress atomic.Bool
	mods := make(chan *geyserpb.SubscribeRequest, 1)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, stream, &geyserpb.SubscribeRequest{}, nil, mods, &progress, func(*geyserpb.SubscribeUpdate) error {
			return nil
		}, testHandshakeTimeout, nil)
	}()

	drainInitial(t, stream)

	want := &geyserpb.SubscribeRequest{Slots: map[string]*geyserpb.SubscribeRequestFilterSlots{"x": {}}}
	mods <- want

	select {
	case got := <-stream.sent:
		if got != want {
			t.Fatal("expected the modification frame to be sent verbatim")
		}
	case <-time.After(time.Second):
		t.Fatal("modification was not sent")
	}

	cancel()
	<-done
}

func TestRunReturnsErrorOnRecvFailure(t *testing.T) {
	stream := newFakeStream(4)
	stream.recvErr = errors.New("boom")
	close(stream.inbound)
	var progress atomic.Bool

	ctx := context.Background()
	err := Run(ctx, stream, &geyserpb.SubscribeRequest{}, nil, nil, &progress, func(*geyserpb.SubscribeUpdate) error {
		return nil
	}, testHandshakeTimeout, nil)
	if err == nil {
		t.Fatal("expected an error when the stream fails")
	}
}

func TestRunEndsGracefullyOnEOF(t *testing.T) {
	stream := newFakeStream(4)
	var progress atomic.Bool

	close(stream.inbound)
	err := Run(context.Background(), stream, &geyserpb.SubscribeRequest{}, nil, nil, &progress, func(*geyserpb.SubscribeUpdate) error {
		return nil
	}, testHandshakeTimeout, nil)
	if err != nil {
		t.Fatalf("expected nil error on graceful EOF, got %v", err)
	}
}

func TestRunRecordsSendErrorMetric(t *testing.T) {
	stream := newFakeStream(4)
	stream.sendErr = errors.New("send boom")
	var progress atomic.Bool
	m := metrics.New()

	err := Run(context.Background(), stream, &geyserpb.SubscribeRequest{}, nil, nil, &progress, func(*geyserpb.SubscribeUpdate) error {
		return nil
	}, testHandshakeTimeout, m)
	if err == nil {
		t.Fatal("expected an error when the initial send fails")
	}
	if got := m.StreamSendErrors.Load(); got != 1 {
		t.Fatalf("StreamSendErrors = %d, want 1", got)
	}
}

func TestRunRecordsRecvErrorMetric(t *testing.T) {
	stream := newFakeStream(4)
	stream.recvErr = errors.New("recv boom")
	close(stream.inbound)
	var progress atomic.Bool
	m := metrics.New()

	err := Run(context.Background(), stream, &geyserpb.SubscribeRequest{}, nil, nil, &progress, func(*geyserpb.SubscribeUpdate) error {
		return nil
	}, testHandshakeTimeout, m)
	if err == nil {
		t.Fatal("expected an error when recv fails")
	}
	if got := m.StreamRecvErrors.Load(); got != 1 {
		t.Fatalf("StreamRecvErrors = %d, want 1", got)
	}
}
