package geyser

import "github.com/geysersdk/client/geyserpb"

// Result is one item of the native output sequence: exactly one of Update
// or Err is set. A non-nil Err is always the single terminal event
// (KindCapExhausted); failed attempts inside the retry loop are not
// delivered, including under WithPerAttemptErrors.
type Result struct {
	Update *geyserpb.SubscribeUpdate
	Err    error
}
