package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	_ "github.com/tunnelgate/gateway/internal/transport/grpccodec"
	"github.com/tunnelgate/gateway/internal/prompttpl"
	"github.com/tunnelgate/gateway/internal/registry"
)

// GRPCExecutor dispatches a tool call as a unary gRPC call against the
// capability's configured target/method, using the gateway's JSON codec
// (internal/transport/grpccodec) rather than generated protobuf stubs.
type GRPCExecutor struct {
	tmpl *prompttpl.Engine
}

func (e *GRPCExecutor) Execute(ctx context.Context, entry *registry.ToolEntry, args map[string]interface{}) (*mcp.CallToolResult, error) {
	cap := entry.Capability

	conn, err := grpc.NewClient(cap.GRPCTarget,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	if err != nil {
		return nil, fmt.Errorf("dial grpc target %s: %w", cap.GRPCTarget, err)
	}
	defer conn.Close()

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}

	var reply json.RawMessage
	if err := conn.Invoke(ctx, cap.GRPCMethod, json.RawMessage(payload), &reply); err != nil {
		return nil, fmt.Errorf("grpc invoke %s: %w", cap.GRPCMethod, err)
	}

	return textResult(string(reply)), nil
}
