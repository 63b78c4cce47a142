package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/geysersdk/client/geyserpb"
)

// clientStream adapts a generic grpc.ClientStream to the typed
// Send/Recv/CloseSend surface package session depends on. It exists because
// this module carries no protoc-gen-go-grpc-generated service client; the
// registered "proto" codec (see package geyserpb) does the marshaling that a
// generated stub's Send/Recv would otherwise wrap.
type clientStream struct {
	grpc.ClientStream
}

func (s *clientStream) Send(req *geyserpb.SubscribeRequest) error {
	return s.ClientStream.SendMsg(req)
}

func (s *clientStream) Recv() (*geyserpb.SubscribeUpdate, error) {
	u := new(geyserpb.SubscribeUpdate)
	if err := s.ClientStream.RecvMsg(u); err != nil {
		return nil, err
	}
	return u, nil
}

// streamDesc describes the Subscribe/SubscribePreprocessed RPCs: both are
// full-duplex bidirectional streams.
var streamDesc = &grpc.StreamDesc{
	StreamName:    "Subscribe",
	ClientStreams: true,
	ServerStreams: true,
}

// OpenStream opens the bidirectional stream for method (MethodSubscribe or
// MethodSubscribePreprocessed) against conn. The returned value satisfies
// package session's Stream interface.
func OpenStream(ctx context.Context, conn *grpc.ClientConn, method string) (*clientStream, error) {
	s, err := conn.NewStream(ctx, streamDesc, method)
	if err != nil {
		return nil, fmt.Errorf("transport: open stream %s: %w", method, err)
	}
	return &clientStream{ClientStream: s}, nil
}
