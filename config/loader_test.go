// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 10, cfg.Orchestrator.HistoryWindow)
	assert.Equal(t, 50, cfg.Orchestrator.DecompositionThreshold)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8888
  read_timeout: 60s

llm:
  endpoint: "http://llm.internal/v1/chat/completions"
  model: "qwen-max"
  max_failures: 3

orchestrator:
  sequential_delay: 0s
  sequential_stream_delay: 0s
  decomposition_threshold: 70

collaboration:
  debate_rounds: 2
  conflict_threshold: 0.5

tracker:
  max_checkpoints: 4
  simple_step_delay: 10ms

memory:
  knowledge_per_category: 20

log:
  level: "debug"
  format: "console"
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "http://llm.internal/v1/chat/completions", cfg.LLM.Endpoint)
	assert.Equal(t, "qwen-max", cfg.LLM.Model)
	assert.Equal(t, uint32(3), cfg.LLM.MaxFailures)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout, "unset keys keep defaults")

	assert.Zero(t, cfg.Orchestrator.SequentialDelay)
	assert.Zero(t, cfg.Orchestrator.SequentialStreamDelay)
	assert.Equal(t, 70, cfg.Orchestrator.DecompositionThreshold)

	assert.Equal(t, 2, cfg.Collaboration.DebateRounds)
	assert.Equal(t, 0.5, cfg.Collaboration.ConflictThreshold)
	assert.Equal(t, 800*time.Millisecond, cfg.Collaboration.DebateTurnDelay)

	assert.Equal(t, 4, cfg.Tracker.MaxCheckpoints)
	assert.Equal(t, 10*time.Millisecond, cfg.Tracker.SimpleStepDelay)
	assert.Equal(t, 20, cfg.Memory.KnowledgePerCategory)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("AGENTTEAM_SERVER_HTTP_PORT", "7777")
	t.Setenv("AGENTTEAM_LLM_API_KEY", "sk-test")
	t.Setenv("AGENTTEAM_LLM_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("AGENTTEAM_ORCHESTRATOR_SEQUENTIAL_STREAM_DELAY", "0s")
	t.Setenv("AGENTTEAM_COLLABORATION_DEBATE_TURN_DELAY", "1s")
	t.Setenv("AGENTTEAM_TRACKER_COMPLEX_STEP_DELAY", "5s")
	t.Setenv("AGENTTEAM_LOG_OUTPUT_PATHS", "stdout, /var/log/agentteam.log")
	t.Setenv("AGENTTEAM_TELEMETRY_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 2.5, cfg.LLM.RequestsPerSecond)
	assert.Zero(t, cfg.Orchestrator.SequentialStreamDelay)
	assert.Equal(t, time.Second, cfg.Collaboration.DebateTurnDelay)
	assert.Equal(t, 5*time.Second, cfg.Tracker.ComplexStepDelay)
	assert.Equal(t, []string{"stdout", "/var/log/agentteam.log"}, cfg.Log.OutputPaths)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8888
llm:
  model: "yaml-model"
  api_key: "yaml-key"
`)
	t.Setenv("AGENTTEAM_SERVER_HTTP_PORT", "9999")
	t.Setenv("AGENTTEAM_LLM_API_KEY", "env-key")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "yaml-model", cfg.LLM.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("AGENTTEAM_ORCHESTRATOR_SEQUENTIAL_DELAY", "soon")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}
	t.Setenv("AGENTTEAM_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().WithValidator(validator).Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_RunsBuiltinValidation(t *testing.T) {
	path := writeConfig(t, "orchestrator:\n  history_window: 0\n")

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history_window")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/path/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: [invalid
  this is not valid yaml
`)
	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "zero delays are allowed", modify: func(c *Config) {
			c.Orchestrator.SequentialDelay = 0
			c.Orchestrator.SequentialStreamDelay = 0
			c.Collaboration.DebateTurnDelay = 0
			c.Tracker.MediumStepDelay = 0
		}},
		{name: "invalid HTTP port", modify: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: true},
		{name: "missing endpoint", modify: func(c *Config) { c.LLM.Endpoint = "" }, wantErr: true},
		{name: "non-positive llm timeout", modify: func(c *Config) { c.LLM.Timeout = 0 }, wantErr: true},
		{name: "threshold out of range", modify: func(c *Config) { c.Orchestrator.DecompositionThreshold = 101 }, wantErr: true},
		{name: "negative delay", modify: func(c *Config) { c.Tracker.SimpleStepDelay = -time.Second }, wantErr: true},
		{name: "no debate rounds", modify: func(c *Config) { c.Collaboration.DebateRounds = 0 }, wantErr: true},
		{name: "conflict threshold above one", modify: func(c *Config) { c.Collaboration.ConflictThreshold = 1.5 }, wantErr: true},
		{name: "no checkpoints", modify: func(c *Config) { c.Tracker.MaxCheckpoints = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
