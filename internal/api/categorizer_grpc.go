package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// CategorizerServiceName is the fully-qualified gRPC service name.
const CategorizerServiceName = "mirador.sop.v1.Categorizer"

// CategorizeFullMethod is the full method path of the Categorize RPC.
const CategorizeFullMethod = "/" + CategorizerServiceName + "/Categorize"

// CategorizerServer is the server API for the Categorizer service.
type CategorizerServer interface {
	Categorize(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterCategorizerServer attaches srv to the registrar.
func RegisterCategorizerServer(s grpc.ServiceRegistrar, srv CategorizerServer) {
	s.RegisterService(&categorizerServiceDesc, srv)
}

func categorizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CategorizerServer).Categorize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CategorizeFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CategorizerServer).Categorize(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var categorizerServiceDesc = grpc.ServiceDesc{
	ServiceName: CategorizerServiceName,
	HandlerType: (*CategorizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Categorize",
			Handler:    categorizeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mirador/sop/v1/categorizer.proto",
}

// CategorizerClient is a thin client for the Categorizer service.
type CategorizerClient struct {
	cc grpc.ClientConnInterface
}

// NewCategorizerClient wraps an established connection.
func NewCategorizerClient(cc grpc.ClientConnInterface) *CategorizerClient {
	return &CategorizerClient{cc: cc}
}

// Categorize invokes the Categorize RPC.
func (c *CategorizerClient) Categorize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CategorizeFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
