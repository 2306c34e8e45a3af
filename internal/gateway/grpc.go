package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/grpc"

	"github.com/tunnelgate/gateway/internal/registry"
	"github.com/tunnelgate/gateway/internal/router"
	"github.com/tunnelgate/gateway/internal/transport/grpccodec"
)

// grpcServer exposes the gateway over gRPC using grpccodec's JSON
// codec: a single unary "Call" method carrying a grpccodec.RawMessage
// envelope, dispatched by its Method field the same way the websocket
// transport dispatches by JSON-RPC method name. This avoids requiring
// protoc-generated stubs while still giving the gateway a genuine gRPC
// listener for clients that speak it.
type grpcServer struct {
	reg    *registry.Registry
	router *router.Router
	srv    *grpc.Server
}

func newGRPCServer(reg *registry.Registry, rt *router.Router) *grpcServer {
	gs := &grpcServer{reg: reg, router: rt}
	gs.srv = grpc.NewServer()
	gs.srv.RegisterService(&serviceDesc, gs)
	return gs
}

func (g *grpcServer) Serve(ln net.Listener) error {
	return g.srv.Serve(ln)
}

func (g *grpcServer) Stop() {
	g.srv.GracefulStop()
}

// Call is the single RPC method, registered manually below since there
// is no generated client stub to drive code generation from.
func (g *grpcServer) Call(ctx context.Context, req *grpccodec.RawMessage) (*grpccodec.RawMessage, error) {
	resp := &grpccodec.RawMessage{}

	switch req.Method {
	case "tools/list":
		return marshalResult(mcp.ListToolsResult{Tools: g.reg.ListVisible()})
	case "resources/list":
		return marshalResult(mcp.ListResourcesResult{Resources: g.reg.ListResources()})
	case "prompts/list":
		return marshalResult(mcp.ListPromptsResult{Prompts: g.reg.ListPrompts()})
	case "tools/call":
		var p mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			resp.Error = err.Error()
			return resp, nil
		}
		args, _ := p.Arguments.(map[string]interface{})
		result, err := g.router.Dispatch(ctx, p.Name, args)
		if err != nil {
			resp.Error = err.Error()
			return resp, nil
		}
		return marshalResult(result)
	default:
		resp.Error = fmt.Sprintf("method not found: %s", req.Method)
		return resp, nil
	}
}

func marshalResult(v interface{}) (*grpccodec.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &grpccodec.RawMessage{Result: data}, nil
}

// serviceDesc is a hand-authored grpc.ServiceDesc in place of a
// protoc-generated one, forwarding its single method straight to
// grpcServer.Call via grpccodec's registered JSON codec.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "tunnelgate.Gateway",
	HandlerType: (*grpcGatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Call",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(grpccodec.RawMessage)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(grpcGatewayServer).Call(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/tunnelgate.Gateway/Call"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(grpcGatewayServer).Call(ctx, req.(*grpccodec.RawMessage))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tunnelgate.proto",
}

type grpcGatewayServer interface {
	Call(ctx context.Context, req *grpccodec.RawMessage) (*grpccodec.RawMessage, error)
}
