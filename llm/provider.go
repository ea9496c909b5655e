package llm

import (
	"context"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 发送给 LLM 的一条上下文消息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Config 单个智能体的模型配置，由调用方提供，引擎不解释其内容
type Config struct {
	Endpoint string        `json:"endpoint" yaml:"endpoint"`
	APIKey   string        `json:"api_key,omitempty" yaml:"api_key"`
	Model    string        `json:"model" yaml:"model"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// Usage 上游返回的 token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion 非流式调用结果
type Completion struct {
	Content string `json:"content"`
	Usage   *Usage `json:"usage,omitempty"`
}

// Transport 是引擎与外部 LLM 之间唯一的契约。
// 实现负责超时控制，失败时返回 TransportError。
type Transport interface {
	CompleteChat(ctx context.Context, cfg Config, messages []Message) (*Completion, error)
	// StreamChat 按到达顺序同步回调 onChunk，正常结束返回 nil。
	StreamChat(ctx context.Context, cfg Config, messages []Message, onChunk func(string)) error
}

// CostPerToken 每个 token 的估算价格（美元）
const CostPerToken = 0.00001

// EstimateCost 根据用量估算调用成本
func EstimateCost(usage *Usage) float64 {
	if usage == nil {
		return 0
	}
	return float64(usage.TotalTokens) * CostPerToken
}
