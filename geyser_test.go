package geyser_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"

	"github.com/geysersdk/client"
	"github.com/geysersdk/client/config"
	"github.com/geysersdk/client/geyserpb"
	"github.com/geysersdk/client/internal/slottracker"
	"github.com/geysersdk/client/internal/testserver"
)

func internalFilterID(req *geyserpb.SubscribeRequest) string {
	for k := range req.Slots {
		if strings.HasPrefix(k, slottracker.IDPrefix) {
			return k
		}
	}
	return ""
}

// TestHappyPathSlotSubscription is scenario A from the integration surface:
// the server emits 5 Slot events, each tagged with both the caller's filter
// and the engine's internal slot-tracker id; the caller must observe exactly
// 5 updates with the internal id stripped, in order.
func TestHappyPathSlotSubscription(t *testing.T) {
	srv, err := testserver.New(func(stream grpc.ServerStream) error {
		req, err := testserver.Recv(stream)
		if err != nil {
			return err
		}
		internalID := internalFilterID(req)

		for slot := uint64(1000); slot <= 1004; slot++ {
			if err := testserver.Send(stream, &geyserpb.SubscribeUpdate{
				Filters:    []string{"all", internalID},
				UpdateSlot: &geyserpb.UpdateSlot{Slot: slot},
			}); err != nil {
				return err
			}
		}
		<-stream.Context().Done()
		return nil
	})
	if err != nil {
		t.Fatalf("testserver.New: %v", err)
	}
	defer srv.Stop()

	cfg := &config.Config{Endpoint: srv.Target}
	req := &geyserpb.SubscribeRequest{
		Slots: map[string]*geyserpb.SubscribeRequestFilterSlots{
			"all": {FilterByCommitment: true},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, results, err := geyser.Subscribe(ctx, cfg, req)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer h.Cancel()

	want := []uint64{1000, 1001, 1002, 1003, 1004}
	for _, slot := range want {
		select {
		case r := <-results:
			if r.Err != nil {
				t.Fatalf("unexpected error result: %v", r.Err)
			}
			if r.Update.UpdateSlot == nil || r.Update.UpdateSlot.Slot != slot {
				t.Fatalf("got update %+v, want slot %d", r.Update, slot)
			}
			if len(r.Update.Filters) != 1 || r.Update.Filters[0] != "all" {
				t.Fatalf("filters = %v, want [all] (internal id must be stripped)", r.Update.Filters)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for slot %d", slot)
		}
	}
}

// TestRetryCapExhaustion is scenario E: a server that always refuses the
// stream must produce exactly one terminal cap-exhausted error, after which
// the result channel closes.
func TestRetryCapExhaustion(t *testing.T) {
	srv, err := testserver.New(func(stream grpc.ServerStream) error {
		return context.DeadlineExceeded
	})
	if err != nil {
		t.Fatalf("testserver.New: %v", err)
	}
	defer srv.Stop()

	maxAttempts := 2
	replay := false
	cfg := &config.Config{
		Endpoint:             srv.Target,
		MaxReconnectAttempts: &maxAttempts,
		Replay:               &replay,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, results, err := geyser.Subscribe(ctx, cfg, &geyserpb.SubscribeRequest{})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer h.Cancel()

	select {
	case r, ok := <-results:
		if !ok {
			t.Fatal("channel closed before the terminal error was delivered")
		}
		if r.Err == nil {
			t.Fatalf("expected a terminal error, got update %+v", r.Update)
		}
		if !geyserErrorIs(r.Err, geyser.KindCapExhausted) {
			t.Fatalf("got error %v, want KindCapExhausted", r.Err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the terminal error")
	}

	select {
	case _, ok := <-results:
		if ok {
			t.Fatal("expected the channel to be closed after the terminal error")
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after the terminal error")
	}
}

func geyserErrorIs(err error, kind geyser.Kind) bool {
	ge, ok := err.(*geyser.Error)
	return ok && ge.Kind == kind
}
