// Package gateway wires upstream and downstream transports together,
// proxying tool calls through the safety layer on the way in and the
// sanitization pipeline on the way out.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/guardline/promptguard/src/config"
	"github.com/guardline/promptguard/src/leak"
	"github.com/guardline/promptguard/src/safety"
	"github.com/guardline/promptguard/src/sanitizer"
	"github.com/guardline/promptguard/src/transport"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const namespaceSep = "__"

// Registry discovers tools from downstream servers, namespaces them,
// and registers proxy handlers on the upstream server. Each proxy call
// validates inbound arguments through the safety layer and runs the
// response through the sanitization pipeline.
type Registry struct {
	upstream   *transport.Upstream
	downstream *transport.DownstreamManager
	globalCfg  config.SanitizationConfig
	layer      *safety.Layer
	leaks      *leak.Detector
	logger     *slog.Logger
}

// NewRegistry creates a registry wired to the given upstream/downstream
// pair and safety layer.
func NewRegistry(
	upstream *transport.Upstream,
	downstream *transport.DownstreamManager,
	globalCfg config.SanitizationConfig,
	layer *safety.Layer,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		upstream:   upstream,
		downstream: downstream,
		globalCfg:  globalCfg,
		layer:      layer,
		leaks:      leak.NewDetector(),
		logger:     logger.With("area", "registry"),
	}
}

// DiscoverAndRegister iterates all downstream connections, discovers
// their tools, and registers namespaced proxy handlers on the upstream
// server. Returns the total number of tools registered.
func (r *Registry) DiscoverAndRegister(ctx context.Context) (int, error) {
	total := 0

	for name, conn := range r.downstream.Conns() {
		merged := config.Merge(&r.globalCfg, conn.Config.Sanitization)
		pipeline := BuildPipeline(merged, r.layer, r.leaks, name)

		count, err := r.registerServer(ctx, name, conn.Session, pipeline)
		if err != nil {
			return total, fmt.Errorf("registering tools for %s: %w", name, err)
		}

		r.logger.Info("registered tools", "server", name, "count", count)
		total += count
	}

	if total == 0 {
		return 0, fmt.Errorf("no tools discovered from any downstream server")
	}
	return total, nil
}

func (r *Registry) registerServer(
	ctx context.Context,
	serverName string,
	session *mcp.ClientSession,
	pipeline *sanitizer.Pipeline,
) (int, error) {
	count := 0
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return count, fmt.Errorf("listing tools: %w", err)
		}

		namespacedName := serverName + namespaceSep + tool.Name

		proxied := proxyTool(tool, namespacedName)
		handler := r.proxyHandler(serverName, tool.Name, namespacedName, pipeline)
		r.upstream.Server.AddTool(proxied, handler)

		count++
	}
	return count, nil
}

// proxyTool creates a copy of the downstream tool with a namespaced name.
func proxyTool(original *mcp.Tool, namespacedName string) *mcp.Tool {
	return &mcp.Tool{
		Name:        namespacedName,
		Description: original.Description,
		InputSchema: original.InputSchema,
		Annotations: original.Annotations,
		Title:       original.Title,
	}
}

// proxyHandler returns a ToolHandler that validates inbound arguments,
// forwards the call to the downstream session, then sanitizes the
// response. It looks up the session at call time so that reconnected
// sessions are used automatically.
func (r *Registry) proxyHandler(
	serverName string,
	downstreamName string,
	namespacedName string,
	pipeline *sanitizer.Pipeline,
) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scanID := uuid.NewString()
		logger := r.logger.With("scan_id", scanID, "tool", namespacedName)

		args, blocked := r.validateArguments(req.Params.Arguments, logger)
		if blocked != nil {
			return blocked, nil
		}

		session := r.downstream.Session(serverName)
		if session == nil {
			return nil, fmt.Errorf("downstream %s not connected", serverName)
		}

		result, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      downstreamName,
			Arguments: args,
		})
		if err != nil {
			return nil, fmt.Errorf("downstream call %s: %w", namespacedName, err)
		}

		return sanitizeResult(ctx, result, pipeline, logger)
	}
}

// validateArguments runs the marshalled tool arguments through the
// safety layer. It returns the arguments to forward (possibly rewritten
// under a sanitize policy) and, when the call must not proceed, an
// IsError result to hand back to the client.
func (r *Registry) validateArguments(arguments any, logger *slog.Logger) (any, *mcp.CallToolResult) {
	if arguments == nil {
		return arguments, nil
	}

	raw, err := json.Marshal(arguments)
	if err != nil {
		return arguments, nil
	}

	res, err := r.layer.ValidateMessage(string(raw))
	if err != nil {
		logger.Warn("blocked tool call arguments", "err", err)
		return arguments, &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			IsError: true,
		}
	}

	if len(res.Details) > 0 {
		logger.Warn("suspicious tool call arguments",
			"category", res.Category, "details", res.Details, "score", res.Score)
	}

	// A sanitize-policy rewrite is only usable if it is still valid JSON.
	if res.Sanitized != "" && json.Valid([]byte(res.Sanitized)) {
		return json.RawMessage(res.Sanitized), nil
	}
	return arguments, nil
}

// sanitizeResult runs each TextContent through the pipeline.
// On Block: replaces the entire result with an IsError response.
// On Modify: replaces text content with the sanitized version.
func sanitizeResult(
	ctx context.Context,
	result *mcp.CallToolResult,
	pipeline *sanitizer.Pipeline,
	logger *slog.Logger,
) (*mcp.CallToolResult, error) {
	for i, content := range result.Content {
		tc, ok := content.(*mcp.TextContent)
		if !ok {
			continue
		}

		pr, err := pipeline.Process(ctx, tc.Text)
		if err != nil {
			return nil, err
		}

		switch pr.FinalVerdict {
		case sanitizer.VerdictBlock:
			reason := "blocked by sanitization"
			if len(pr.Findings) > 0 {
				reason = strings.Join(pr.Findings, "; ")
			}
			logger.Warn("blocked tool response", "findings", pr.Findings)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: reason}},
				IsError: true,
			}, nil

		case sanitizer.VerdictModify:
			result.Content[i] = &mcp.TextContent{
				Text:        pr.FinalContent,
				Annotations: tc.Annotations,
			}
		}
	}

	return result, nil
}

// BuildPipeline constructs a sanitizer.Pipeline from a (merged) config.
// Scanner order: unicode -> length -> guard -> leak -> boundary.
func BuildPipeline(cfg config.SanitizationConfig, layer *safety.Layer, leaks *leak.Detector, source string) *sanitizer.Pipeline {
	var scanners []sanitizer.Scanner

	if deref(cfg.EnableInvisibleTextRemoval) {
		scanners = append(scanners, sanitizer.UnicodeScanner{})
	}

	if cfg.MaxResponseChars != nil && *cfg.MaxResponseChars > 0 {
		scanners = append(scanners, sanitizer.NewLengthScanner(*cfg.MaxResponseChars))
	}

	if deref(cfg.EnableInjectionDetection) {
		scanners = append(scanners, sanitizer.NewGuardScanner(layer.Guard()))
	}

	if deref(cfg.EnableLeakRedaction) {
		scanners = append(scanners, sanitizer.NewLeakScanner(leaks))
	}

	if deref(cfg.EnableBoundaryInjection) {
		scanners = append(scanners, sanitizer.NewBoundaryScanner(source))
	}

	return sanitizer.NewPipeline(scanners...)
}

func deref(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
