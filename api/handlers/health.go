package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

const checkTimeout = 5 * time.Second

// HealthCheck 单项依赖检查
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// RuntimeStats 编排引擎当前持有的状态规模
type RuntimeStats struct {
	Sessions         int    `json:"sessions"`
	Discussions      int    `json:"active_discussions"`
	ActiveTasks      int    `json:"active_tasks"`
	RunningTasks     int    `json:"running_tasks"`
	PausedTasks      int    `json:"paused_tasks"`
	AgentsWithMemory int    `json:"agents_with_memory"`
	LLMCircuit       string `json:"llm_circuit,omitempty"`
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"` // healthy | degraded | unhealthy
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Runtime   *RuntimeStats          `json:"runtime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // pass | fail
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler 提供存活、就绪与运行状态报告。
// /healthz 只表示进程存活；/health 附带运行状态，检查失败时为 degraded；
// /ready 在任一检查失败时返回 503。
type HealthHandler struct {
	mu      sync.RWMutex
	checks  []HealthCheck
	runtime func() RuntimeStats

	started time.Time
	logger  *zap.Logger
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		started: time.Now(),
		logger:  logger.With(zap.String("component", "health")),
	}
}

// RegisterCheck 注册就绪检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// SetRuntime 设置运行状态来源，/health 每次请求时调用
func (h *HealthHandler) SetRuntime(fn func() RuntimeStats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runtime = fn
}

// HandleHealth 处理 GET /health
// @Summary 运行状态
// @Description 返回会话、讨论、任务数量与各项检查结果
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	results, ok := h.runChecks(r.Context())
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
		Checks:    results,
	}
	if !ok {
		status.Status = "degraded"
	}

	h.mu.RLock()
	runtime := h.runtime
	h.mu.RUnlock()
	if runtime != nil {
		stats := runtime()
		status.Runtime = &stats
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleHealthz 处理 GET /healthz（存活探针）
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{Status: "healthy", Timestamp: time.Now()})
}

// HandleReady 处理 GET /ready
// @Summary 就绪检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务已准备就绪"
// @Failure 503 {object} HealthStatus "熔断打开或依赖不可用"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	results, ok := h.runChecks(r.Context())
	status := HealthStatus{Status: "healthy", Timestamp: time.Now(), Checks: results}
	if !ok {
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// runChecks 依次执行检查，返回结果与是否全部通过。没有检查时结果为 nil。
func (h *HealthHandler) runChecks(parent context.Context) (map[string]CheckResult, bool) {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()
	if len(checks) == 0 {
		return nil, true
	}

	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()

	results := make(map[string]CheckResult, len(checks))
	ok := true
	for _, c := range checks {
		start := time.Now()
		err := c.Check(ctx)
		latency := time.Since(start)

		res := CheckResult{Status: "pass", Latency: latency.String()}
		if err != nil {
			ok = false
			res.Status = "fail"
			res.Message = err.Error()
			h.logger.Warn("health check failed",
				zap.String("check", c.Name()),
				zap.Duration("latency", latency),
				zap.Error(err))
		}
		results[c.Name()] = res
	}
	return results, ok
}

// HandleVersion 处理 GET /version
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	info := map[string]string{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, info)
	}
}

// CheckFunc 以函数实现 HealthCheck
type CheckFunc struct {
	name  string
	check func(ctx context.Context) error
}

func NewCheckFunc(name string, check func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, check: check}
}

func (c *CheckFunc) Name() string { return c.name }

func (c *CheckFunc) Check(ctx context.Context) error { return c.check(ctx) }
