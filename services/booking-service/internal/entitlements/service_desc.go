package entitlements

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// The entitlement service speaks plain structpb messages:
//
//	request:  {"provider_id": string, "feature": string}
//	response: {"allowed": bool}
const (
	serviceName  = "expertmarket.entitlements.v1.EntitlementsService"
	canUseMethod = "/" + serviceName + "/CanUse"

	fieldProviderID = "provider_id"
	fieldFeature    = "feature"
	fieldAllowed    = "allowed"
)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Checker)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CanUse", Handler: canUseHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "entitlements/v1/entitlements.proto",
}

// RegisterServer exposes impl over gRPC.
func RegisterServer(s grpc.ServiceRegistrar, impl Checker) {
	s.RegisterService(&serviceDesc, impl)
}

func canUseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		fields := req.(*structpb.Struct).GetFields()
		providerID := fields[fieldProviderID].GetStringValue()
		feature := fields[fieldFeature].GetStringValue()
		if providerID == "" || feature == "" {
			return nil, status.Error(codes.InvalidArgument, "provider_id and feature are required")
		}
		ok, err := srv.(Checker).CanUse(ctx, providerID, feature)
		if err != nil {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return &structpb.Struct{Fields: map[string]*structpb.Value{
			fieldAllowed: structpb.NewBoolValue(ok),
		}}, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: canUseMethod}
	return interceptor(ctx, in, info, call)
}
