package grpcservice

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/service"
)

// Responder answers decoded requests. framed.Handler implements it.
type Responder interface {
	Respond(ctx context.Context, req *protocol.Request) *protocol.Response
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Responder)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: service.MethodGetInfo, Handler: methodHandler(service.MethodGetInfo)},
		{MethodName: service.MethodExecuteNonQuery, Handler: methodHandler(service.MethodExecuteNonQuery)},
		{MethodName: service.MethodExecuteScalar, Handler: methodHandler(service.MethodExecuteScalar)},
		{MethodName: service.MethodExecuteReader, Handler: methodHandler(service.MethodExecuteReader)},
		{MethodName: service.MethodExecuteBatch, Handler: methodHandler(service.MethodExecuteBatch)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "remotedb/v1/query.proto",
}

// RegisterServer registers r as the query service on s.
func RegisterServer(s grpc.ServiceRegistrar, r Responder) {
	s.RegisterService(&serviceDesc, r)
}

func methodHandler(method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, req any) (any, error) {
			return serve(ctx, srv.(Responder), method, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, in, info, call)
	}
}

func serve(ctx context.Context, r Responder, method string, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := protocol.RequestFromMessage(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	// the route decides the method, whatever the envelope says
	req.Method = method

	resp := r.Respond(ctx, req)
	if resp.Error != nil {
		return nil, toStatus(ctx, resp.Error)
	}
	return resp.Message(), nil
}
