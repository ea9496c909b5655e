package conversation

import (
	"slices"
	"time"

	"github.com/BaSui01/agentteam/agent/catalog"
	"github.com/BaSui01/agentteam/agent/scoring"
	"github.com/BaSui01/agentteam/llm"
)

// WorkflowPolicy selects which agents respond to a message.
type WorkflowPolicy string

const (
	PolicyRoundRobin WorkflowPolicy = "round_robin" // assistants take turns
	PolicyGroupChat  WorkflowPolicy = "group_chat"  // best-scoring assistant answers
	PolicySequential WorkflowPolicy = "sequential"  // every assistant answers in roster order
)

// AgentStatus is mutated only by the policy holding the turn.
type AgentStatus string

const (
	AgentIdle     AgentStatus = "idle"
	AgentThinking AgentStatus = "thinking"
	AgentSpeaking AgentStatus = "speaking"
	AgentWaiting  AgentStatus = "waiting"
)

// SessionStatus is the lifecycle status of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// HumanSenderID is the default sender of human messages.
const HumanSenderID = "user"

// Agent is a participant instance owned by one session.
type Agent struct {
	ID           string       `json:"id"`
	TypeID       string       `json:"type"`
	Name         string       `json:"name"`
	Role         catalog.Role `json:"role"`
	Instructions string       `json:"instructions"`
	Avatar       string       `json:"avatar"`
	Capabilities []string     `json:"capabilities"`
	LLM          llm.Config   `json:"-"`
	Status       AgentStatus  `json:"status"`
}

// HasCapability reports whether the agent carries any of the given tags.
func (a Agent) HasCapability(tags ...string) bool {
	for _, t := range tags {
		if slices.Contains(a.Capabilities, t) {
			return true
		}
	}
	return false
}

// IsAssistant reports whether the agent takes part in turn-taking.
func (a Agent) IsAssistant() bool {
	return a.Role == catalog.RoleAssistant
}

func (a Agent) clone() Agent {
	a.Capabilities = slices.Clone(a.Capabilities)
	return a
}

// Subtask is one line of a decomposition plan.
type Subtask struct {
	ID            string `json:"id"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	AssignedAgent string `json:"assigned_agent,omitempty"`
}

// Assignment maps a subtask to the agent selected for it.
type Assignment struct {
	SubtaskID string `json:"subtask_id"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

// DecompositionPlan is the coordinator's breakdown of a complex request.
type DecompositionPlan struct {
	Content     string           `json:"content"`
	Subtasks    []Subtask        `json:"subtasks"`
	Assignments []Assignment     `json:"assigned_agents"`
	Approach    scoring.Approach `json:"approach"`
	Degraded    bool             `json:"degraded,omitempty"`
}

func (p *DecompositionPlan) clone() *DecompositionPlan {
	if p == nil {
		return nil
	}
	out := *p
	out.Subtasks = slices.Clone(p.Subtasks)
	out.Assignments = slices.Clone(p.Assignments)
	return &out
}

// MessageType values stored in Metadata.Type.
const (
	MessageTypeDecomposition = "task_decomposition"
	MessageTypePhase         = "phase_response"
)

// Metadata is the closed set of per-message annotations.
type Metadata struct {
	Streaming     bool    `json:"streaming"`
	SelectedByAI  bool    `json:"selected_by_ai,omitempty"`
	SequenceIndex *int    `json:"sequence_index,omitempty"`
	TotalAgents   int     `json:"total_agents,omitempty"`
	ReplyTo       string  `json:"reply_to,omitempty"`
	Error         bool    `json:"error,omitempty"`
	Model         string  `json:"model,omitempty"`
	Tokens        int     `json:"tokens,omitempty"`
	Cost          float64 `json:"cost,omitempty"`

	Type string             `json:"type,omitempty"`
	Plan *DecompositionPlan `json:"plan,omitempty"`
}

// Message is one conversational turn. Content only grows while Streaming is true.
type Message struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	SenderID    string   `json:"sender_id"`
	SenderName  string   `json:"sender_name"`
	Timestamp   int64    `json:"timestamp"`
	IsFromHuman bool     `json:"is_from_human"`
	Avatar      string   `json:"avatar"`
	Metadata    Metadata `json:"metadata"`
}

func (m Message) clone() Message {
	if m.Metadata.SequenceIndex != nil {
		idx := *m.Metadata.SequenceIndex
		m.Metadata.SequenceIndex = &idx
	}
	m.Metadata.Plan = m.Metadata.Plan.clone()
	return m
}

// SessionMetadata records the template a session was created from.
type SessionMetadata struct {
	TemplateID    string          `json:"template_id,omitempty"`
	Phases        []catalog.Phase `json:"phases,omitempty"`
	EstimatedTime string          `json:"estimated_time,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
}

// Session is the aggregate root of a multi-agent conversation.
// Only the Orchestrator mutates it; callers receive snapshots.
type Session struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Agents           []Agent         `json:"agents"`
	Messages         []Message       `json:"messages"`
	CurrentSpeakerID string          `json:"current_speaker_id,omitempty"`
	Workflow         WorkflowPolicy  `json:"workflow"`
	MaxTurns         int             `json:"max_turns"`
	TurnCount        int             `json:"turn_count"`
	Status           SessionStatus   `json:"status"`
	Metadata         SessionMetadata `json:"metadata"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Agent returns the member with the given id.
func (s *Session) Agent(id string) (Agent, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

// Assistants returns the assistant-role members in roster order.
func (s *Session) Assistants() []Agent {
	out := make([]Agent, 0, len(s.Agents))
	for _, a := range s.Agents {
		if a.IsAssistant() {
			out = append(out, a)
		}
	}
	return out
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	out := *s
	out.Agents = make([]Agent, len(s.Agents))
	for i, a := range s.Agents {
		out.Agents[i] = a.clone()
	}
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.clone()
	}
	out.Metadata.Phases = slices.Clone(s.Metadata.Phases)
	out.Metadata.Tags = slices.Clone(s.Metadata.Tags)
	return &out
}

func (s *Session) agentIndex(id string) int {
	for i, a := range s.Agents {
		if a.ID == id {
			return i
		}
	}
	return -1
}
