package roll

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "quickroll.roll.v1.RollService"

// Method names of the roll service.
const (
	MethodCreateMessage      = "CreateMessage"
	MethodGetMessage         = "GetMessage"
	MethodListMessages       = "ListMessages"
	MethodProcessMessage     = "ProcessMessage"
	MethodClassify           = "Classify"
	MethodRollDamage         = "RollDamage"
	MethodRetroMultiRoll     = "RetroMultiRoll"
	MethodRetroCritical      = "RetroCritical"
	MethodReroll             = "Reroll"
	MethodRerollCandidates   = "RerollCandidates"
	MethodListAuditRecords   = "ListAuditRecords"
	MethodApplyDamage        = "ApplyDamage"
	MethodBreakConcentration = "BreakConcentration"
	MethodFinishAnimation    = "FinishAnimation"
)

// FullMethod returns the invoke path of a roll service method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// RollServiceServer is the server API of the roll service. Requests and
// responses travel as google.protobuf.Struct values.
type RollServiceServer interface {
	CreateMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMessages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Classify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RollDamage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RetroMultiRoll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RetroCritical(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reroll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RerollCandidates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAuditRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyDamage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BreakConcentration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FinishAnimation(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(RollServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) gogrpc.MethodDesc {
	return gogrpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RollServiceServer), ctx, in)
			}
			info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RollServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the roll service for grpc.Server registration.
var ServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RollServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		unary(MethodCreateMessage, RollServiceServer.CreateMessage),
		unary(MethodGetMessage, RollServiceServer.GetMessage),
		unary(MethodListMessages, RollServiceServer.ListMessages),
		unary(MethodProcessMessage, RollServiceServer.ProcessMessage),
		unary(MethodClassify, RollServiceServer.Classify),
		unary(MethodRollDamage, RollServiceServer.RollDamage),
		unary(MethodRetroMultiRoll, RollServiceServer.RetroMultiRoll),
		unary(MethodRetroCritical, RollServiceServer.RetroCritical),
		unary(MethodReroll, RollServiceServer.Reroll),
		unary(MethodRerollCandidates, RollServiceServer.RerollCandidates),
		unary(MethodListAuditRecords, RollServiceServer.ListAuditRecords),
		unary(MethodApplyDamage, RollServiceServer.ApplyDamage),
		unary(MethodBreakConcentration, RollServiceServer.BreakConcentration),
		unary(MethodFinishAnimation, RollServiceServer.FinishAnimation),
	},
	Streams: []gogrpc.StreamDesc{},
}

// RegisterRollServiceServer registers srv on s.
func RegisterRollServiceServer(s gogrpc.ServiceRegistrar, srv RollServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
