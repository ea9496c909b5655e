package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agentteam/agent/collaboration"
	"github.com/BaSui01/agentteam/agent/conversation"
	"github.com/BaSui01/agentteam/agent/longrunning"
	"github.com/BaSui01/agentteam/agent/memory"
	"github.com/BaSui01/agentteam/agent/tools"
	"github.com/BaSui01/agentteam/api/handlers"
	"github.com/BaSui01/agentteam/config"
	"github.com/BaSui01/agentteam/internal/metrics"
	"github.com/BaSui01/agentteam/internal/server"
	"github.com/BaSui01/agentteam/internal/telemetry"
	"github.com/BaSui01/agentteam/llm"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组装全部组件，管理 API 与 metrics 两个端口
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	telemetry *telemetry.Providers
	collector *metrics.Collector
	breaker   *llm.ResilientTransport

	orchestrator *conversation.Orchestrator
	engine       *collaboration.Engine
	tracker      *longrunning.Tracker
	registry     *tools.Registry

	healthHandler *handlers.HealthHandler
	taskHandler   *handlers.TaskHandler
	// 后台任务执行使用的上下文，关闭时取消
	taskCancel context.CancelFunc

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer 按配置构建组件。ctx 只用于初始化遥测导出器。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		// 遥测不可用时继续提供服务
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.telemetry = providers
	s.collector = metrics.NewCollector(cfg.Telemetry.MetricsNamespace, logger)

	if err := s.initComponents(); err != nil {
		return nil, fmt.Errorf("failed to init components: %w", err)
	}
	s.initManagers()
	return s, nil
}

// =============================================================================
// 🔧 初始化
// =============================================================================

func (s *Server) initComponents() error {
	// HTTP → 限流/熔断/重试 → 指标与追踪
	retry := llm.DefaultRetryPolicy()
	retry.MaxRetries = s.cfg.LLM.MaxRetries
	s.breaker = llm.NewResilientTransport(llm.NewHTTPTransport(nil, s.logger), llm.ResilienceConfig{
		MaxFailures:       s.cfg.LLM.MaxFailures,
		OpenTimeout:       s.cfg.LLM.OpenTimeout,
		RequestsPerSecond: s.cfg.LLM.RequestsPerSecond,
		Burst:             s.cfg.LLM.Burst,
		Retry:             retry,
	}, s.logger)
	transport := llm.NewInstrumentedTransport(s.breaker, s.collector)

	ledger := memory.NewLedger(memory.LedgerConfig{
		ConversationLogSize:  s.cfg.Memory.ConversationLogSize,
		PreferenceLogSize:    s.cfg.Memory.PreferenceLogSize,
		ExperienceLogSize:    s.cfg.Memory.ExperienceLogSize,
		KnowledgePerCategory: s.cfg.Memory.KnowledgePerCategory,
	}, s.logger)

	orch, err := conversation.New(conversation.Options{
		Transport:              transport,
		Ledger:                 ledger,
		Metrics:                s.collector,
		Logger:                 s.logger,
		HistoryWindow:          s.cfg.Orchestrator.HistoryWindow,
		DecompositionThreshold: s.cfg.Orchestrator.DecompositionThreshold,
		SequentialDelay:        s.cfg.Orchestrator.SequentialDelay,
		SequentialStreamDelay:  s.cfg.Orchestrator.SequentialStreamDelay,
	})
	if err != nil {
		return err
	}
	s.orchestrator = orch

	s.engine = collaboration.NewEngine(transport, collaboration.Config{
		DebateRounds:      s.cfg.Collaboration.DebateRounds,
		DebateTurnDelay:   s.cfg.Collaboration.DebateTurnDelay,
		ConflictThreshold: s.cfg.Collaboration.ConflictThreshold,
		HistorySize:       s.cfg.Collaboration.HistorySize,
	}, s.logger, collaboration.WithMetrics(s.collector))

	s.tracker = longrunning.NewTracker(longrunning.Config{
		MaxCheckpoints: s.cfg.Tracker.MaxCheckpoints,
		StepDelays: longrunning.StepDelays{
			Simple:  s.cfg.Tracker.SimpleStepDelay,
			Medium:  s.cfg.Tracker.MediumStepDelay,
			Complex: s.cfg.Tracker.ComplexStepDelay,
		},
	}, s.logger,
		longrunning.WithPhaseRunner(longrunning.SessionRunner{Responder: orch}),
		longrunning.WithCollaborator(s.engine),
		longrunning.WithSessions(orch),
		longrunning.WithMetrics(s.collector),
	)

	s.registry = tools.NewRegistry(s.collector, s.logger)
	if err := tools.RegisterBuiltins(s.registry, ledger); err != nil {
		return err
	}

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewCheckFunc("llm_circuit", func(context.Context) error {
		if s.breaker.State() == gobreaker.StateOpen {
			return errors.New("circuit open")
		}
		return nil
	}))
	s.healthHandler.SetRuntime(s.runtimeStats)

	taskCtx, cancel := context.WithCancel(context.Background())
	s.taskCancel = cancel
	s.taskHandler = handlers.NewTaskHandler(taskCtx, s.tracker, s.logger)

	s.logger.Info("Components initialized",
		zap.String("llm_endpoint", s.cfg.LLM.Endpoint),
		zap.String("llm_model", s.cfg.LLM.Model))
	return nil
}

// runtimeStats 汇总各组件当前持有的状态，供 /health 报告
func (s *Server) runtimeStats() handlers.RuntimeStats {
	tasks := s.tracker.GetTaskStatistics()
	return handlers.RuntimeStats{
		Sessions:         s.orchestrator.SessionCount(),
		Discussions:      len(s.engine.Active()),
		ActiveTasks:      tasks.Active,
		RunningTasks:     tasks.Running,
		PausedTasks:      tasks.Paused,
		AgentsWithMemory: s.orchestrator.Ledger().Len(),
		LLMCircuit:       s.breaker.State().String(),
	}
}

// Handler 构建 API 路由与中间件链
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	defaultLLM := llm.Config{
		Endpoint: s.cfg.LLM.Endpoint,
		APIKey:   s.cfg.LLM.APIKey,
		Model:    s.cfg.LLM.Model,
		Timeout:  s.cfg.LLM.Timeout,
	}
	handlers.NewSessionHandler(s.orchestrator, defaultLLM, s.cfg.Server.AllowedOrigins, s.logger).Register(mux)
	handlers.NewCatalogHandler(s.orchestrator.Catalog(), s.orchestrator.Ledger(), s.logger).Register(mux)
	handlers.NewCollaborationHandler(s.engine, s.orchestrator, s.logger).Register(mux)
	handlers.NewToolHandler(s.registry, s.logger).Register(mux)
	s.taskHandler.Register(mux)

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		SecurityHeaders(),
		RequestLogger(s.logger),
	)
}

func (s *Server) initManagers() {
	api := server.DefaultConfig()
	api.Name = "api"
	api.Addr = fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)
	api.ReadTimeout = s.cfg.Server.ReadTimeout
	api.WriteTimeout = s.cfg.Server.WriteTimeout
	api.IdleTimeout = 2 * s.cfg.Server.ReadTimeout
	api.ShutdownTimeout = s.cfg.Server.ShutdownTimeout
	s.httpManager = server.NewManager(s.Handler(), api, s.logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	mcfg := server.DefaultConfig()
	mcfg.Name = "metrics"
	mcfg.Addr = fmt.Sprintf(":%d", s.cfg.Server.MetricsPort)
	mcfg.ReadTimeout = s.cfg.Server.ReadTimeout
	mcfg.WriteTimeout = s.cfg.Server.ReadTimeout
	mcfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout
	s.metricsManager = server.NewManager(metricsMux, mcfg, s.logger)
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 运行两个服务直到 ctx 结束或任一服务出错，然后停止后台任务并刷新遥测数据
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Run(gctx) })
	g.Go(func() error { return s.metricsManager.Run(gctx) })

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort))

	err := g.Wait()

	s.logger.Info("Starting graceful shutdown...")
	s.taskCancel()
	s.taskHandler.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if terr := s.telemetry.Shutdown(shutdownCtx); terr != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(terr))
	}

	s.logger.Info("Graceful shutdown completed")
	return err
}
