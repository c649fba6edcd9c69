package server

import (
	"context"
	"fmt"
	"math"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolfoundation/model"
)

// ToolHandler executes a tool with arguments parsed from a tools/call
// request. The result is returned to the client as structured content.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// ToolOption configures tool registration.
type ToolOption func(*toolConfig)

type toolConfig struct {
	namespace string
	tags      []string
	version   string
}

// WithNamespace sets the namespace for a tool.
func WithNamespace(ns string) ToolOption {
	return func(c *toolConfig) {
		c.namespace = ns
	}
}

// WithTags sets the tags for a tool.
func WithTags(tags ...string) ToolOption {
	return func(c *toolConfig) {
		c.tags = tags
	}
}

// WithVersion sets the version for a tool.
func WithVersion(v string) ToolOption {
	return func(c *toolConfig) {
		c.version = v
	}
}

func applyToolOptions(opts []ToolOption) toolConfig {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func buildTool(name, description string, inputSchema map[string]any, cfg toolConfig) model.Tool {
	return model.Tool{
		Tool: mcp.Tool{
			Name:        name,
			Description: description,
			InputSchema: inputSchema,
		},
		Namespace: cfg.namespace,
		Version:   cfg.version,
		Tags:      model.NormalizeTags(cfg.tags),
	}
}

// objectSchema builds a JSON schema for an object with the given
// properties.
func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringArg(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("%w: %s is required", ErrInvalidParams, key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidParams, key)
	}
	if required && s == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidParams, key)
	}
	return s, nil
}

// intArg accepts JSON numbers, which decode as float64.
func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidParams, key)
		}
		return int(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidParams, key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParams, key)
	}
}
