// Package mcpgw implements the MCP (Model Context Protocol) Gateway.
//
// The gateway exposes the tool catalog to external MCP clients. It supports:
//   - JSON-RPC 2.0 over HTTP
//   - Tool discovery filtered by the caller's trust level
//   - Tool invocation through the same policy gate the agent loop uses
//
// A client may resend a call with "confirmed": true after a confirmation
// request; that flag is the only way a confirmation reaches the policy
// engine.
package mcpgw

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/pkg/contracts"
	"github.com/geomind/agentcore/pkg/models"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidParams  = -32602
	CodeMethodNotFound = -32601
	CodeToolNotFound   = -32001
	CodeDenied         = -32002
	CodeNeedsConfirm   = -32003
)

// ProtocolVersion is the MCP revision the gateway speaks.
const ProtocolVersion = "2024-11-05"

// ToolGate is the tool gateway plus host-side confirmation.
type ToolGate interface {
	contracts.ToolGateway
	AuthorizeConfirmed(call models.ToolCall, tier models.TrustLevel) models.PolicyDecision
}

// Gateway is the MCP gateway over a tool gate.
type Gateway struct {
	tools   ToolGate
	version string
}

// NewGateway creates a new MCP gateway.
func NewGateway(tools ToolGate, version string) *Gateway {
	return &Gateway{tools: tools, version: version}
}

// HandleJSONRPC processes an MCP JSON-RPC 2.0 request at tier. It returns
// nil for notifications.
func (gw *Gateway) HandleJSONRPC(ctx context.Context, tier models.TrustLevel, req *models.MCPRequest) *models.MCPResponse {
	switch req.Method {

	// ── Discovery ────────────────────────────────────
	case "initialize":
		return gw.handleInitialize(req)

	case "tools/list":
		return gw.handleToolsList(tier, req)

	// ── Tool Invocation ──────────────────────────────
	case "tools/call":
		return gw.handleToolsCall(ctx, tier, req)

	// ── Notifications (no response) ──────────────────
	case "notifications/initialized":
		log.Debug().Str("tier", string(tier)).Msg("MCP client initialized")
		return nil

	case "ping":
		return result(req, map[string]string{"status": "pong"})

	default:
		return rpcError(req, CodeMethodNotFound, "Method not found",
			fmt.Sprintf("Method '%s' is not supported by the MCP gateway", req.Method))
	}
}

// handleInitialize responds to the MCP initialize handshake.
func (gw *Gateway) handleInitialize(req *models.MCPRequest) *models.MCPResponse {
	return result(req, map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]bool{"listChanged": false},
		},
		"serverInfo": map[string]string{
			"name":    "agentcore-mcp-gateway",
			"version": gw.version,
		},
	})
}

// handleToolsList returns the tools visible at tier.
func (gw *Gateway) handleToolsList(tier models.TrustLevel, req *models.MCPRequest) *models.MCPResponse {
	defs := gw.tools.Definitions(tier)
	infos := make([]models.MCPToolInfo, 0, len(defs))
	for _, d := range defs {
		infos = append(infos, models.MCPToolInfo{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return result(req, map[string]any{"tools": infos})
}

// handleToolsCall authorizes and invokes a tool.
func (gw *Gateway) handleToolsCall(ctx context.Context, tier models.TrustLevel, req *models.MCPRequest) *models.MCPResponse {
	var params models.MCPToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpcError(req, CodeInvalidParams, "Invalid params", err.Error())
	}
	if params.Name == "" {
		return rpcError(req, CodeInvalidParams, "Invalid params", "tool name is required")
	}

	call := models.ToolCall{ID: uuid.NewString(), Name: params.Name, Input: params.Arguments}
	if !gw.known(params.Name) {
		return rpcError(req, CodeToolNotFound, "Tool not found",
			fmt.Sprintf("Tool '%s' is not registered", params.Name))
	}

	var decision models.PolicyDecision
	if params.Confirmed {
		decision = gw.tools.AuthorizeConfirmed(call, tier)
	} else {
		decision = gw.tools.Authorize(call, tier)
	}
	if !decision.Allowed {
		log.Warn().
			Str("tool", params.Name).
			Str("tier", string(tier)).
			Str("reason", decision.Reason).
			Bool("needs_confirmation", decision.NeedsConfirmation).
			Msg("MCP tool call denied")
		if decision.NeedsConfirmation {
			return rpcError(req, CodeNeedsConfirm, "Confirmation required", decision)
		}
		return rpcError(req, CodeDenied, "Operation denied", decision)
	}

	out, err := gw.tools.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		return result(req, models.MCPToolResult{
			Content: []models.MCPContent{{
				Type: "text",
				Text: fmt.Sprintf("Tool execution error: %s", err.Error()),
			}},
			IsError: true,
		})
	}

	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		text = []byte(fmt.Sprint(out))
	}
	return result(req, models.MCPToolResult{
		Content: []models.MCPContent{{Type: "text", Text: string(text)}},
	})
}

// known reports whether name is registered at any tier.
func (gw *Gateway) known(name string) bool {
	for _, d := range gw.tools.Definitions(models.TrustRoot) {
		if d.Name == name {
			return true
		}
	}
	return false
}

func result(req *models.MCPRequest, v any) *models.MCPResponse {
	return &models.MCPResponse{Jsonrpc: "2.0", Result: v, ID: req.ID}
}

func rpcError(req *models.MCPRequest, code int, msg string, data any) *models.MCPResponse {
	return &models.MCPResponse{
		Jsonrpc: "2.0",
		Error:   &models.MCPError{Code: code, Message: msg, Data: data},
		ID:      req.ID,
	}
}
