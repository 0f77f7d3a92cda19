// Package tools exposes the remote validate and recommend operations as agent
// tools. Requests and results use the MCP tool-call shapes; failures come back
// as error results carrying the error envelope, never as transport errors.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/actuallystonmai/measurement-service/internal/invoker"
)

const (
	ToolValidateMeasurements = "validate_measurements"
	ToolRecommendSizes       = "recommend_sizes"
	ToolBreakerStatus        = "breaker_status"
)

var ErrUnknownTool = errors.New("unknown tool")

type Server struct {
	invoker *invoker.Invoker
	tools   map[string]func(context.Context, *protocol.CallToolRequest) (*protocol.CallToolResult, error)
}

func NewServer(inv *invoker.Invoker) *Server {
	s := &Server{invoker: inv}
	s.tools = map[string]func(context.Context, *protocol.CallToolRequest) (*protocol.CallToolResult, error){
		ToolValidateMeasurements: s.handleValidate,
		ToolRecommendSizes:       s.handleRecommend,
		ToolBreakerStatus:        s.handleBreakerStatus,
	}
	return s
}

func (s *Server) Names() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call routes a tool request. Only an unknown tool name is an error; tool
// failures are reported inside the result.
func (s *Server) Call(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	handle, ok := s.tools[req.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, req.Name)
	}
	return handle(ctx, req)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.Call(r.Context(), &request)
	if err != nil {
		if errors.Is(err, ErrUnknownTool) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("[tools] failed to encode response", "tool", request.Name, "error", err)
	}
}

func (s *Server) handleValidate(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	payload, err := json.Marshal(req.Arguments)
	if err != nil {
		return errorResult(domain.NewError(domain.ValidationError, "invalid_arguments", err.Error()))
	}

	out, err := s.invoker.Validate(ctx, payload)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(out)
}

func (s *Server) handleRecommend(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var m domain.NormalizedMeasurement
	if err := extractParams(req, &m); err != nil {
		return errorResult(domain.NewError(domain.ValidationError, "invalid_arguments", err.Error()))
	}

	out, err := s.invoker.Recommend(ctx, &m)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(out)
}

func (s *Server) handleBreakerStatus(_ context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return jsonResult(s.invoker.Breakers().Snapshot())
}

func extractParams(req *protocol.CallToolRequest, target any) error {
	raw, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	return nil
}

func jsonResult(data any) (*protocol.CallToolResult, error) {
	text, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			&protocol.TextContent{Type: "text", Text: string(text)},
		},
	}, nil
}

func errorResult(err error) (*protocol.CallToolResult, error) {
	env, ok := domain.AsEnvelope(err)
	if !ok {
		env = domain.NewError(domain.UnexpectedError, "internal", err.Error())
	}
	result, marshalErr := jsonResult(env)
	if marshalErr != nil {
		return nil, marshalErr
	}
	result.IsError = true
	return result, nil
}
