// Package testserver runs a minimal in-process Geyser gRPC server for
// integration tests: no protoc-generated service registration exists in
// this module, so the Subscribe/SubscribePreprocessed streams are wired up
// by hand against a grpc.ServiceDesc the way a test double would stand in
// for a generated server.
package testserver

import (
	"net"

	"google.golang.org/grpc"

	"github.com/geysersdk/client/geyserpb"
	"github.com/geysersdk/client/transport"
)

// Handler implements one server-side connection of a Subscribe (or
// SubscribePreprocessed) RPC.
type Handler func(stream grpc.ServerStream) error

// Server is an in-process Geyser double bound to an ephemeral loopback
// port.
type Server struct {
	Target string // dial target, e.g. "grpc://127.0.0.1:54321"

	grpcServer *grpc.Server
	lis        net.Listener
}

// New starts a Server that runs handler for every incoming stream on both
// the Subscribe and SubscribePreprocessed methods.
func New(handler Handler) (*Server, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	wrapped := func(_ any, stream grpc.ServerStream) error {
		return handler(stream)
	}

	desc := &grpc.ServiceDesc{
		ServiceName: "Geyser",
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{StreamName: "Subscribe", Handler: wrapped, ServerStreams: true, ClientStreams: true},
			{StreamName: "SubscribePreprocessed", Handler: wrapped, ServerStreams: true, ClientStreams: true},
		},
	}

	srv := grpc.NewServer()
	srv.RegisterService(desc, nil)

	s := &Server{
		Target:     "grpc://" + lis.Addr().String(),
		grpcServer: srv,
		lis:        lis,
	}

	go srv.Serve(lis)

	return s, nil
}

// Stop shuts the server down immediately, terminating any in-flight stream.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

var _ = transport.MethodSubscribe // documents the method name this double implements

// Recv reads the next SubscribeRequest frame from stream.
func Recv(stream grpc.ServerStream) (*geyserpb.SubscribeRequest, error) {
	req := new(geyserpb.SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return nil, err
	}
	return req, nil
}

// Send writes one SubscribeUpdate frame to stream.
func Send(stream grpc.ServerStream, u *geyserpb.SubscribeUpdate) error {
	return stream.SendMsg(u)
}
