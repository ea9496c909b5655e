package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/types"
)

// Handler 工具执行函数，params 已通过参数 schema 校验
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Tool 可供智能体调用的工具
type Tool struct {
	Name        string
	Description string
	// Parameters 参数的 JSON Schema，为空表示不校验
	Parameters json.RawMessage
	Handler    Handler
}

// ToolInfo 对外公开的工具描述
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Result 一次工具调用的结果
type Result struct {
	Success  bool          `json:"success"`
	Tool     string        `json:"tool"`
	Data     any           `json:"data,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Metrics 工具调用指标
type Metrics interface {
	RecordToolInvocation(tool, status string)
}

type nopMetrics struct{}

func (nopMetrics) RecordToolInvocation(string, string) {}

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry 工具注册表
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]entry
	metrics Metrics
	logger  *zap.Logger
}

// NewRegistry 创建空的工具注册表，metrics 可以为 nil
func NewRegistry(metrics Metrics, logger *zap.Logger) *Registry {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:   make(map[string]entry),
		metrics: metrics,
		logger:  logger.With(zap.String("component", "tool_registry")),
	}
}

// Register 注册工具并编译参数 schema，名称重复视为配置错误
func (r *Registry) Register(tool Tool) error {
	name := strings.TrimSpace(tool.Name)
	if name == "" {
		return types.Configuration("tool name is required")
	}
	if tool.Handler == nil {
		return types.Configuration(fmt.Sprintf("tool %s has no handler", name))
	}

	e := entry{tool: tool}
	if len(tool.Parameters) > 0 {
		schema, err := jsonschema.NewCompiler().Compile(tool.Parameters)
		if err != nil {
			return types.Configuration(fmt.Sprintf("tool %s has an invalid parameter schema", name)).WithCause(err)
		}
		e.schema = schema
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return types.Configuration(fmt.Sprintf("tool %s already registered", name))
	}
	r.tools[name] = e
	r.logger.Debug("tool registered", zap.String("tool", name))
	return nil
}

// ListTools 按名称排序返回全部工具
func (r *Registry) ListTools() []ToolInfo {
	r.mu.RLock()
	out := make([]ToolInfo, 0, len(r.tools))
	for name, e := range r.tools {
		out = append(out, ToolInfo{Name: name, Description: e.tool.Description, Parameters: e.tool.Parameters})
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b ToolInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// RunTool 校验参数并执行工具。未知工具返回 NotFound 错误；
// 参数非法或执行失败以 Success=false 的结果返回。
func (r *Registry) RunTool(ctx context.Context, name string, params json.RawMessage) (Result, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, types.NotFound("tool", name)
	}

	start := time.Now()
	result := Result{Tool: name}
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	if e.schema != nil {
		var v any
		if err := json.Unmarshal(params, &v); err != nil {
			return r.finish(result, start, "invalid_params", fmt.Sprintf("invalid JSON: %v", err)), nil
		}
		if res := e.schema.Validate(v); !res.IsValid() {
			return r.finish(result, start, "invalid_params", fmt.Sprintf("parameter validation failed: %s", res.Error())), nil
		}
	}

	data, err := e.tool.Handler(ctx, params)
	if err != nil {
		r.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		return r.finish(result, start, "error", err.Error()), nil
	}
	result.Success = true
	result.Data = data
	return r.finish(result, start, "success", ""), nil
}

func (r *Registry) finish(result Result, start time.Time, status, errMsg string) Result {
	result.Error = errMsg
	result.Duration = time.Since(start)
	r.metrics.RecordToolInvocation(result.Tool, status)
	return result
}
