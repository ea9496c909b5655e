package conversation

import (
	"time"

	"github.com/BaSui01/agentteam/agent/scoring"
)

// EventType 流事件类型
type EventType string

const (
	EventAgentStart               EventType = "agent_start"
	EventContentUpdate            EventType = "content_update"
	EventAgentComplete            EventType = "agent_complete"
	EventAgentSelected            EventType = "agent_selected"
	EventSequenceStart            EventType = "sequence_start"
	EventSequenceComplete         EventType = "sequence_complete"
	EventDecompositionStart       EventType = "task_decomposition_start"
	EventDecompositionComplete    EventType = "task_decomposition_complete"
	EventDecomposedExecutionStart EventType = "decomposed_execution_start"
)

// SelectionReason group_chat 选择说明
const SelectionReason = "根据消息内容智能选择"

// 写入账本的偏好信号键
const (
	// PreferenceSelectedFor group_chat 选中该智能体的消息
	PreferenceSelectedFor = "selected_for"
	// PreferenceAssignedSubtask 任务分解时分配给该智能体的子任务
	PreferenceAssignedSubtask = "assigned_subtask"
)

// StreamEvent 会话流事件。Message 与 Plan 为事件发生时的快照。
type StreamEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	Agent   *Agent   `json:"agent,omitempty"`
	Message *Message `json:"message,omitempty"`

	// content_update
	Content     string `json:"content,omitempty"`
	FullContent string `json:"full_content,omitempty"`

	// agent_selected
	Reason string `json:"reason,omitempty"`

	// sequence_start / sequence_complete
	Index int `json:"index"`
	Total int `json:"total,omitempty"`

	// task_decomposition_*
	OriginalTask string             `json:"original_task,omitempty"`
	Approach     scoring.Approach   `json:"approach,omitempty"`
	Plan         *DecompositionPlan `json:"plan,omitempty"`
}

// EventHandler 同步接收流事件，按产生顺序调用
type EventHandler func(StreamEvent)
