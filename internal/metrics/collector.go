// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。它同时满足 llm.Recorder、conversation.Metrics、
// collaboration.Metrics、longrunning.Metrics 与 tools.Metrics。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	// 会话指标
	sessionsCreated *prometheus.CounterVec
	messagesTotal   *prometheus.CounterVec
	decompositions  *prometheus.CounterVec

	// 协作与任务指标
	collaborationsTotal *prometheus.CounterVec
	tasksTotal          *prometheus.CounterVec

	// 工具指标
	toolInvocations *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，指标注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// LLM 指标
	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"model", "mode", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "mode"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"model"},
	)

	// 会话指标
	c.sessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of conversation sessions created",
		},
		[]string{"workflow"},
	)

	c.messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of messages appended to sessions",
		},
		[]string{"kind"},
	)

	c.decompositions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_decompositions_total",
			Help:      "Total number of task decompositions",
		},
		[]string{"approach", "outcome"},
	)

	// 协作与任务指标
	c.collaborationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborations_total",
			Help:      "Total number of structured discussions by outcome",
		},
		[]string{"outcome"},
	)

	c.tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Total number of long-running tasks that reached a final status",
		},
		[]string{"kind", "status"},
	)

	// 工具指标
	c.toolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Total number of tool invocations",
		},
		[]string{"tool", "status"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// RecordLLMRequest 记录 LLM 请求，mode 为 complete 或 stream
func (c *Collector) RecordLLMRequest(model, mode, status string, duration time.Duration, tokens int) {
	c.llmRequestsTotal.WithLabelValues(model, mode, status).Inc()
	c.llmRequestDuration.WithLabelValues(model, mode).Observe(duration.Seconds())
	if tokens > 0 {
		c.llmTokensUsed.WithLabelValues(model).Add(float64(tokens))
	}
}

// =============================================================================
// 💬 会话指标记录
// =============================================================================

func (c *Collector) RecordSessionCreated(workflow string) {
	c.sessionsCreated.WithLabelValues(workflow).Inc()
}

func (c *Collector) RecordMessage(kind string) {
	c.messagesTotal.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordDecomposition(approach, outcome string) {
	c.decompositions.WithLabelValues(approach, outcome).Inc()
}

// =============================================================================
// 🤝 协作与任务指标记录
// =============================================================================

// RecordCollaboration 记录一次讨论的结果：consensus、no_consensus 或 error
func (c *Collector) RecordCollaboration(outcome string) {
	c.collaborationsTotal.WithLabelValues(outcome).Inc()
}

// RecordTask 记录长时任务的终态
func (c *Collector) RecordTask(kind, status string) {
	c.tasksTotal.WithLabelValues(kind, status).Inc()
}

// RecordToolInvocation 记录工具调用
func (c *Collector) RecordToolInvocation(tool, status string) {
	c.toolInvocations.WithLabelValues(tool, status).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown_" + strconv.Itoa(code)
	}
}
