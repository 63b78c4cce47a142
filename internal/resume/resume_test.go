package resume

import (
	"testing"

	"github.com/geysersdk/client/geyserpb"
)

func TestComputeProcessedSubtractsMargin(t *testing.T) {
	if got := Compute(1050, geyserpb.CommitmentLevelProcessed); got != 1019 {
		t.Fatalf("got %d, want 1019", got)
	}
}

func TestComputeProcessedSaturatesAtZero(t *testing.T) {
	if got := Compute(5, geyserpb.CommitmentLevelProcessed); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestComputeConfirmedIsExact(t *testing.T) {
	if got := Compute(2000, geyserpb.CommitmentLevelConfirmed); got != 2000 {
		t.Fatalf("got %d, want 2000", got)
	}
}

func TestComputeFinalizedIsExact(t *testing.T) {
	if got := Compute(2000, geyserpb.CommitmentLevelFinalized); got != 2000 {
		t.Fatalf("got %d, want 2000", got)
	}
}

func TestApplyClearsWhenReplayDisabled(t *testing.T) {
	slot := uint64(42)
	req := &geyserpb.SubscribeRequest{FromSlot: &slot}
	got := Apply(req, 5000, false)
	if got.FromSlot != nil {
		t.Fatalf("expected FromSlot cleared, got %v", *got.FromSlot)
	}
}

func TestApplyClearsWhenNoSlotObserved(t *testing.T) {
	req := &geyserpb.SubscribeRequest{}
	got := Apply(req, 0, true)
	if got.FromSlot != nil {
		t.Fatal("expected FromSlot cleared when tracked slot is 0")
	}
}

func TestApplyDefaultsToProcessedWhenCommitmentUnset(t *testing.T) {
	req := &geyserpb.SubscribeRequest{}
	got := Apply(req, 1050, true)
	if got.FromSlot == nil || *got.FromSlot != 1019 {
		t.Fatalf("got %v, want 1019", got.FromSlot)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	req := &geyserpb.SubscribeRequest{}
	_ = Apply(req, 1050, true)
	if req.FromSlot != nil {
		t.Fatal("Apply mutated the input request")
	}
}
