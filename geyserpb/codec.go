package geyserpb

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName deliberately matches grpc-go's built-in default codec name
// ("proto") so that registering it here, before any RPC is made, replaces
// the stock codec for every call that does not explicitly request another
// content-subtype. No protoc-gen-go-grpc stub ever runs in this module; the
// client invokes streams directly against method names (see package
// transport), so this codec is the only thing standing in for generated
// marshal/unmarshal code.
const codecName = "proto"

func init() {
	encoding.RegisterCodec(wireCodec{})
}

type wireCodec struct{}

func (wireCodec) Name() string { return codecName }

func (wireCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *SubscribeRequest:
		return MarshalRequest(m), nil
	case *SubscribeUpdate:
		return MarshalUpdate(m)
	default:
		return nil, fmt.Errorf("geyserpb: codec cannot marshal %T", v)
	}
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *SubscribeRequest:
		r, err := UnmarshalRequest(data)
		if err != nil {
			return err
		}
		*m = *r
		return nil
	case *SubscribeUpdate:
		u, err := UnmarshalUpdate(data)
		if err != nil {
			return err
		}
		*m = *u
		return nil
	default:
		return fmt.Errorf("geyserpb: codec cannot unmarshal into %T", v)
	}
}
