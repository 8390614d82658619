package grpcx

import (
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type DialOptions struct {
	// TransportCredentials defaults to plaintext; in-cluster TLS is terminated by the mesh.
	TransportCredentials grpc.DialOption

	// CallTimeout bounds unary calls whose context has no deadline of its own.
	CallTimeout time.Duration
}

// NewClient builds a lazily connecting client conn. Calls are traced and carry the caller's
// request id.
func NewClient(addr string, opts DialOptions, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	creds := opts.TransportCredentials
	if creds == nil {
		creds = grpc.WithTransportCredentials(insecure.NewCredentials())
	}
	interceptors := []grpc.UnaryClientInterceptor{UnaryClientRequestIDInterceptor()}
	if opts.CallTimeout > 0 {
		interceptors = append(interceptors, UnaryClientDeadlineInterceptor(opts.CallTimeout))
	}
	dialOpts := append([]grpc.DialOption{
		creds,
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(interceptors...),
	}, extra...)
	return grpc.NewClient(addr, dialOpts...)
}

// NewServer builds a server that traces calls and adopts the caller's request id.
func NewServer(opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerRequestIDInterceptor()),
	}
	return grpc.NewServer(append(base, opts...)...)
}
