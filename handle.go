package geyser

import (
	"sync"

	"github.com/geysersdk/client/geyserpb"
	"github.com/geysersdk/client/internal/supervisor"
	"github.com/geysersdk/client/registry"
)

// Handle is the caller-facing reference to a running subscription, returned
// by Subscribe and SubscribeBytes.
type Handle struct {
	id  string
	sup *supervisor.Supervisor

	cancel func()
	once   sync.Once
}

// ID returns this subscription's opaque identifier, the same key it is
// registered under in package registry.
func (h *Handle) ID() string { return h.id }

// Cancel signals the supervisor to terminate and removes the subscription
// from the process-wide registry. Cancel is idempotent: only the first call
// has any effect.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		registry.Unregister(h.id)
		h.cancel()
	})
}

// Write posts a subscription-modification request. It does not wait for the
// server to acknowledge it. It returns a *Error with KindUnsupportedOperation
// when the subscription was opened with WithPreprocessed, or a non-nil error
// when the supervisor has already terminated.
func (h *Handle) Write(req *geyserpb.SubscribeRequest) error {
	err := h.sup.Write(req)
	if err == nil {
		return nil
	}
	if ue := mapUnsupported(err); ue != nil {
		return ue
	}
	return err
}

func mapUnsupported(err error) *Error {
	if err == supervisor.ErrUnsupportedOperation {
		return newError(KindUnsupportedOperation, "write is not supported on this subscription", err)
	}
	return nil
}
