// Package rpc describes the amlgate gRPC services without generated code.
// Requests and responses are google.protobuf.Struct messages.
package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service names.
const (
	TokenService  = "amlgate.v1.TokenService"
	OracleService = "amlgate.v1.OracleService"
)

// Token service methods.
const (
	MethodSetCategoryThreshold = "SetCategoryThreshold"
	MethodRemoveCategory       = "RemoveCategory"
	MethodSetOracleAddress     = "SetOracleAddress"
	MethodTransferOwnership    = "TransferOwnership"
	MethodTransfer             = "Transfer"
	MethodTransferAndNotify    = "TransferAndNotify"
	MethodRegisterAccount      = "RegisterAccount"
	MethodUnregisterAccount    = "UnregisterAccount"
	MethodReadRegistry         = "ReadRegistry"
	MethodBalanceOf            = "BalanceOf"
	MethodTotalSupply          = "TotalSupply"
	MethodOwner                = "Owner"
	MethodMetadata             = "Metadata"
	MethodCheck                = "Check"
)

// Oracle service methods.
const MethodClassify = "Classify"

// TokenMethods lists every TokenService method.
var TokenMethods = []string{
	MethodSetCategoryThreshold,
	MethodRemoveCategory,
	MethodSetOracleAddress,
	MethodTransferOwnership,
	MethodTransfer,
	MethodTransferAndNotify,
	MethodRegisterAccount,
	MethodUnregisterAccount,
	MethodReadRegistry,
	MethodBalanceOf,
	MethodTotalSupply,
	MethodOwner,
	MethodMetadata,
	MethodCheck,
}

// OracleMethods lists every OracleService method.
var OracleMethods = []string{MethodClassify}

// Handler serves one unary method.
type Handler func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// Router resolves a method name to its handler. Services registered with
// a ServiceDesc from NewServiceDesc must implement it.
type Router interface {
	Route(method string) Handler
}

// FullMethod returns the gRPC path for service/method.
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// NewServiceDesc builds a ServiceDesc for service whose methods are all
// unary Struct-to-Struct calls dispatched through Router.
func NewServiceDesc(service string, methods []string) *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: service,
		HandlerType: (*Router)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "amlgate/v1/" + service,
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m,
			Handler:    unaryHandler(service, m),
		})
	}
	return desc
}

func unaryHandler(service, method string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		h := srv.(Router).Route(method)
		if h == nil {
			return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", method)
		}
		if interceptor == nil {
			return h(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(service, method)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return h(ctx, req.(*structpb.Struct))
		})
	}
}

// Invoke performs a unary call and maps a status error back to the
// matching sentinel.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, service, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, FullMethod(service, method), in, out); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}
