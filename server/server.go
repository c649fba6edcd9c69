package server

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/jonwraymond/biasdaily/app"
	"github.com/jonwraymond/toolfoundation/model"
)

// Config configures a Server.
type Config struct {
	ServerInfo ServerInfo

	// Logger receives request logs. Default: zap.NewNop().
	Logger *zap.Logger

	// Namespace groups the built-in tools. Default: "bias".
	Namespace string

	// SkipBuiltins registers no tools, leaving the server empty for
	// custom registrations.
	SkipBuiltins bool
}

// ServerInfo describes this MCP server in the initialize response.
type ServerInfo struct {
	Name    string
	Version string
}

type registeredTool struct {
	tool    model.Tool
	handler ToolHandler
}

// Server exposes an App as MCP tools.
type Server struct {
	mu     sync.RWMutex
	app    *app.App
	config Config
	logger *zap.Logger

	tools  map[string]*registeredTool // by ToolID
	byName map[string]string          // name -> ToolID
	order  []string

	calls    atomic.Uint64
	failures atomic.Uint64
}

// New creates a Server over a and registers the built-in tools.
func New(a *app.App, cfg Config) (*Server, error) {
	if cfg.ServerInfo.Name == "" {
		cfg.ServerInfo.Name = "biasdaily"
	}
	if cfg.ServerInfo.Version == "" {
		cfg.ServerInfo.Version = "dev"
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "bias"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		app:    a,
		config: cfg,
		logger: logger,
		tools:  make(map[string]*registeredTool),
		byName: make(map[string]string),
	}
	if !cfg.SkipBuiltins {
		if a == nil {
			return nil, fmt.Errorf("%w: app is required for built-in tools", ErrInvalidParams)
		}
		if err := s.registerBuiltins(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RegisterTool registers a tool with its handler.
func (s *Server) RegisterTool(tool model.Tool, handler ToolHandler) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}
	if handler == nil {
		return fmt.Errorf("invalid tool %s: nil handler", tool.Name)
	}

	id := tool.ToolID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, id)
	}
	if _, exists := s.byName[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
	}
	s.tools[id] = &registeredTool{tool: tool, handler: handler}
	s.byName[tool.Name] = id
	s.order = append(s.order, id)
	return nil
}

// RegisterFunc is a convenience for inline tool definition.
func (s *Server) RegisterFunc(
	name, description string,
	inputSchema map[string]any,
	handler ToolHandler,
	opts ...ToolOption,
) error {
	cfg := applyToolOptions(opts)
	tool := buildTool(name, description, inputSchema, cfg)
	return s.RegisterTool(tool, handler)
}

// ListAll returns registered tools in registration order.
func (s *Server) ListAll() []model.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]model.Tool, 0, len(s.order))
	for _, id := range s.order {
		tools = append(tools, s.tools[id].tool)
	}
	return tools
}

// GetTool returns a tool by name or by namespaced ID.
func (s *Server) GetTool(nameOrID string) (model.Tool, error) {
	rt, ok := s.lookup(nameOrID)
	if !ok {
		return model.Tool{}, fmt.Errorf("%w: %s", ErrToolNotFound, nameOrID)
	}
	return rt.tool, nil
}

func (s *Server) lookup(nameOrID string) (*registeredTool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rt, ok := s.tools[nameOrID]; ok {
		return rt, true
	}
	if id, ok := s.byName[nameOrID]; ok {
		return s.tools[id], true
	}
	return nil, false
}

// Execute runs a tool by name or ID with the given arguments.
func (s *Server) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	rt, ok := s.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}

	s.calls.Add(1)
	result, err := rt.handler(ctx, args)
	if err != nil {
		s.failures.Add(1)
		return nil, err
	}
	return result, nil
}

// Stats reports tool counts and call totals.
type Stats struct {
	Tools      int      `json:"tools"`
	ToolNames  []string `json:"toolNames"`
	Calls      uint64   `json:"calls"`
	Failures   uint64   `json:"failures"`
	Namespaces []string `json:"namespaces"`
}

// Stats returns server statistics.
func (s *Server) Stats() Stats {
	tools := s.ListAll()
	names := make([]string, 0, len(tools))
	var namespaces []string
	for _, t := range tools {
		names = append(names, t.Name)
		if t.Namespace != "" && !slices.Contains(namespaces, t.Namespace) {
			namespaces = append(namespaces, t.Namespace)
		}
	}
	slices.Sort(namespaces)
	return Stats{
		Tools:      len(tools),
		ToolNames:  names,
		Calls:      s.calls.Load(),
		Failures:   s.failures.Load(),
		Namespaces: namespaces,
	}
}
