package geyser

// Kind classifies an Error by how the engine responds to it: whether it is
// retried, counted toward the reconnect cap, logged and swallowed, or
// surfaced to the caller. See the Kind constants for the exact policy.
type Kind int

const (
	// KindInvalidConfig marks a URI parse failure or malformed credential.
	// Fatal; returned directly from Subscribe, before any attempt is made.
	KindInvalidConfig Kind = iota

	// KindStreamError marks a dial, handshake, or mid-stream gRPC failure.
	// Retryable; counted toward the reconnect cap.
	KindStreamError

	// KindEncodeError marks a failure to serialize an outbound update at the
	// host-callback boundary. Per-message: logged and the message is
	// dropped, the session continues.
	KindEncodeError

	// KindUnsupportedOperation marks a Handle.Write call against a
	// subscription opened on a variant that rejects modification. Non-fatal;
	// returned to the caller from Write.
	KindUnsupportedOperation

	// KindCapExhausted marks a subscription whose reconnect attempts have
	// reached the effective cap. Terminal: surfaced as a single event, after
	// which the sequence ends.
	KindCapExhausted

	// KindCancelled marks caller-initiated termination via Handle.Cancel.
	// Terminal; never surfaced as an error.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfig:
		return "invalid-config"
	case KindStreamError:
		return "stream-error"
	case KindEncodeError:
		return "encode-error"
	case KindUnsupportedOperation:
		return "unsupported-operation"
	case KindCapExhausted:
		return "cap-exhausted"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the error type returned across the engine's public boundary. It
// wraps an underlying cause (if any) with a Kind so callers can branch with
// errors.Is against the sentinels below, or inspect Kind directly.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is the sentinel for e's Kind, so that
// errors.Is(err, geyser.ErrCapExhausted) works regardless of Msg/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Sentinels for errors.Is comparisons. Only Kind is compared; Msg and Cause
// are ignored by (*Error).Is.
var (
	ErrInvalidConfig        = &Error{Kind: KindInvalidConfig}
	ErrStreamError          = &Error{Kind: KindStreamError}
	ErrUnsupportedOperation = &Error{Kind: KindUnsupportedOperation}
	ErrCapExhausted         = &Error{Kind: KindCapExhausted}
	ErrCancelled            = &Error{Kind: KindCancelled}
)

// errors.As/Is friendliness: allow callers using the stdlib idiom directly.
var _ error = (*Error)(nil)
