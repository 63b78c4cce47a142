package registry

import "testing"

func TestRegisterUnregister(t *testing.T) {
	r := New()
	r.Register("a", func() {})
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	r.Unregister("a")
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}

func TestUnregisterMissingIsNoop(t *testing.T) {
	r := New()
	r.Unregister("missing")
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}

func TestShutdownAllCancelsEveryEntry(t *testing.T) {
	r := New()
	cancelled := map[string]bool{}
	r.Register("a", func() { cancelled["a"] = true })
	r.Register("b", func() { cancelled["b"] = true })

	r.ShutdownAll()

	if !cancelled["a"] || !cancelled["b"] {
		t.Fatalf("expected both entries cancelled, got %v", cancelled)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after ShutdownAll", r.Len())
	}
}

func TestShutdownAllFromWithinCancelDoesNotDeadlock(t *testing.T) {
	r := New()
	r.Register("a", func() { r.Unregister("a") })
	done := make(chan struct{})
	go func() {
		r.ShutdownAll()
		close(done)
	}()
	<-done
}
