package api

import (
	"github.com/BaSui01/agentteam/llm"
)

// =============================================================================
// 会话请求
// =============================================================================

// FromTemplateRequest 按模板建队请求。
// @Description LLM 为空时使用服务端默认模型配置
type FromTemplateRequest struct {
	// 模板 ID（例如 product_development）
	TemplateID string `json:"template_id" example:"product_development"`
	// 会话名称，为空时使用模板名
	Name string `json:"name,omitempty"`
	// 全体成员共用的模型配置
	LLM *llm.Config `json:"llm,omitempty"`
}

// SendMessageRequest 发送消息请求，WebSocket 客户端帧使用同一结构。
// @Description 人类或外部参与者发出的一条消息
type SendMessageRequest struct {
	// 消息正文
	Text string `json:"text" example:"帮我设计一个登录页面"`
	// 发送者 ID，默认为 user
	Sender string `json:"sender,omitempty"`
}

// =============================================================================
// 讨论请求
// =============================================================================

// StartCollaborationRequest 发起结构化讨论。
// @Description AgentIDs 为空时会话内全部智能体参与，否则按 id 或类型筛选
type StartCollaborationRequest struct {
	SessionID string   `json:"session_id"`
	Topic     string   `json:"topic" example:"是否采用微服务架构"`
	AgentIDs  []string `json:"agent_ids,omitempty"`
}
