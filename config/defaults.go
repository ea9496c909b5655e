// =============================================================================
// 📦 agentteam 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:        DefaultServerConfig(),
		LLM:           DefaultLLMConfig(),
		Orchestrator:  DefaultOrchestratorConfig(),
		Collaboration: DefaultCollaborationConfig(),
		Tracker:       DefaultTrackerConfig(),
		Memory:        DefaultMemoryConfig(),
		Log:           DefaultLogConfig(),
		Telemetry:     DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Endpoint:          "https://api.openai.com/v1/chat/completions",
		Model:             "gpt-4o-mini",
		Timeout:           2 * time.Minute,
		MaxFailures:       5,
		OpenTimeout:       30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
		MaxRetries:        2,
	}
}

// DefaultOrchestratorConfig 返回默认编排配置
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		HistoryWindow:          10,
		DecompositionThreshold: 50,
		SequentialDelay:        500 * time.Millisecond,
		SequentialStreamDelay:  300 * time.Millisecond,
	}
}

// DefaultCollaborationConfig 返回默认讨论配置
func DefaultCollaborationConfig() CollaborationConfig {
	return CollaborationConfig{
		DebateRounds:      3,
		DebateTurnDelay:   800 * time.Millisecond,
		ConflictThreshold: 0.3,
		HistorySize:       100,
	}
}

// DefaultTrackerConfig 返回默认长时任务配置
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxCheckpoints:   10,
		SimpleStepDelay:  time.Second,
		MediumStepDelay:  2 * time.Second,
		ComplexStepDelay: 3 * time.Second,
	}
}

// DefaultMemoryConfig 返回默认记忆配置
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		KnowledgePerCategory: 50,
		ConversationLogSize:  100,
		ExperienceLogSize:    100,
		PreferenceLogSize:    100,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:          false,
		OTLPEndpoint:     "localhost:4317",
		ServiceName:      "agentteam",
		SampleRate:       0.1,
		MetricsNamespace: "agentteam",
	}
}
