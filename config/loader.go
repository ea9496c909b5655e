// =============================================================================
// 📦 agentteam 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AGENTTEAM").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 agentteam 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// LLM 传输层配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Orchestrator 会话编排配置
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`

	// Collaboration 结构化讨论配置
	Collaboration CollaborationConfig `yaml:"collaboration" env:"COLLABORATION"`

	// Tracker 长时任务配置
	Tracker TrackerConfig `yaml:"tracker" env:"TRACKER"`

	// Memory 智能体记忆配置
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时，流式接口需要足够长
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// WebSocket 允许的跨域来源模式，为空时只接受同源
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// Chat Completions 完整地址
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 默认模型
	Model string `yaml:"model" env:"MODEL"`
	// 单次请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 连续失败多少次后熔断
	MaxFailures uint32 `yaml:"max_failures" env:"MAX_FAILURES"`
	// 熔断打开时长
	OpenTimeout time.Duration `yaml:"open_timeout" env:"OPEN_TIMEOUT"`
	// 客户端限流，<=0 表示不限
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int     `yaml:"burst" env:"BURST"`
	// 可重试错误的最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
}

// OrchestratorConfig 会话编排配置
type OrchestratorConfig struct {
	// 构建上下文时保留的最近消息数
	HistoryWindow int `yaml:"history_window" env:"HISTORY_WINDOW"`
	// 复杂度达到该值时进行任务分解
	DecompositionThreshold int `yaml:"decomposition_threshold" env:"DECOMPOSITION_THRESHOLD"`
	// 顺序模式下相邻发言之间的延迟
	SequentialDelay       time.Duration `yaml:"sequential_delay" env:"SEQUENTIAL_DELAY"`
	SequentialStreamDelay time.Duration `yaml:"sequential_stream_delay" env:"SEQUENTIAL_STREAM_DELAY"`
}

// CollaborationConfig 结构化讨论配置
type CollaborationConfig struct {
	DebateRounds      int           `yaml:"debate_rounds" env:"DEBATE_ROUNDS"`
	DebateTurnDelay   time.Duration `yaml:"debate_turn_delay" env:"DEBATE_TURN_DELAY"`
	ConflictThreshold float64       `yaml:"conflict_threshold" env:"CONFLICT_THRESHOLD"`
	// 归档讨论的最大条数
	HistorySize int `yaml:"history_size" env:"HISTORY_SIZE"`
}

// TrackerConfig 长时任务配置
type TrackerConfig struct {
	// 每个任务保留的检查点数
	MaxCheckpoints int `yaml:"max_checkpoints" env:"MAX_CHECKPOINTS"`
	// 通用任务每步的模拟耗时
	SimpleStepDelay  time.Duration `yaml:"simple_step_delay" env:"SIMPLE_STEP_DELAY"`
	MediumStepDelay  time.Duration `yaml:"medium_step_delay" env:"MEDIUM_STEP_DELAY"`
	ComplexStepDelay time.Duration `yaml:"complex_step_delay" env:"COMPLEX_STEP_DELAY"`
}

// MemoryConfig 智能体记忆配置
type MemoryConfig struct {
	// 每个知识分类保留的条目数
	KnowledgePerCategory int `yaml:"knowledge_per_category" env:"KNOWLEDGE_PER_CATEGORY"`
	ConversationLogSize  int `yaml:"conversation_log_size" env:"CONVERSATION_LOG_SIZE"`
	ExperienceLogSize    int `yaml:"experience_log_size" env:"EXPERIENCE_LOG_SIZE"`
	PreferenceLogSize    int `yaml:"preference_log_size" env:"PREFERENCE_LOG_SIZE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用 OTLP 导出
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// Prometheus 指标命名空间
	MetricsNamespace string `yaml:"metrics_namespace" env:"METRICS_NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTTEAM",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 内置校验与自定义验证器
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.LLM.Endpoint == "" {
		errs = append(errs, "llm endpoint is required")
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, "llm timeout must be positive")
	}
	if c.Orchestrator.HistoryWindow <= 0 {
		errs = append(errs, "history_window must be positive")
	}
	if c.Orchestrator.DecompositionThreshold <= 0 || c.Orchestrator.DecompositionThreshold > 100 {
		errs = append(errs, "decomposition_threshold must be between 1 and 100")
	}
	if c.Orchestrator.SequentialDelay < 0 || c.Orchestrator.SequentialStreamDelay < 0 ||
		c.Collaboration.DebateTurnDelay < 0 ||
		c.Tracker.SimpleStepDelay < 0 || c.Tracker.MediumStepDelay < 0 || c.Tracker.ComplexStepDelay < 0 {
		errs = append(errs, "delays must not be negative")
	}
	if c.Collaboration.DebateRounds <= 0 {
		errs = append(errs, "debate_rounds must be positive")
	}
	if c.Collaboration.ConflictThreshold < 0 || c.Collaboration.ConflictThreshold > 1 {
		errs = append(errs, "conflict_threshold must be between 0 and 1")
	}
	if c.Tracker.MaxCheckpoints <= 0 {
		errs = append(errs, "max_checkpoints must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
