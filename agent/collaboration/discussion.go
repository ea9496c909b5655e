package collaboration

import (
	"slices"
	"time"

	"github.com/BaSui01/agentteam/agent/conversation"
)

// Phase 讨论阶段，严格按顺序推进
type Phase string

const (
	PhaseInitialPositions  Phase = "initial_positions"
	PhaseDebate            Phase = "debate"
	PhaseConsensusBuilding Phase = "consensus_building"
	PhaseFinalization      Phase = "finalization"
)

// Phases 全部阶段，按执行顺序
var Phases = []Phase{PhaseInitialPositions, PhaseDebate, PhaseConsensusBuilding, PhaseFinalization}

// Position 参与者的初始立场
type Position struct {
	AgentID     string  `json:"agent_id"`
	AgentName   string  `json:"agent_name"`
	Content     string  `json:"content"`
	Confidence  float64 `json:"confidence"`
	Placeholder bool    `json:"placeholder,omitempty"`
}

// Argument 辩论中的一次反驳
type Argument struct {
	Round       int    `json:"round"`
	From        string `json:"from"`
	FromName    string `json:"from_name"`
	To          string `json:"to"`
	Content     string `json:"content"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Score 参与者对共识方案的评分
type Score struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Value     int    `json:"value"`
	Feedback  string `json:"feedback"`
	Failed    bool   `json:"failed,omitempty"`
}

// Consensus 协调员综合出的方案
type Consensus struct {
	CoordinatorID string  `json:"coordinator_id"`
	Original      string  `json:"original"`
	Proposal      string  `json:"proposal"`
	Revised       bool    `json:"revised"`
	Scores        []Score `json:"scores"`
	AverageScore  float64 `json:"average_score"`
}

func (c *Consensus) clone() *Consensus {
	if c == nil {
		return nil
	}
	out := *c
	out.Scores = slices.Clone(c.Scores)
	return &out
}

// Discussion 进行中的讨论
type Discussion struct {
	ID           string               `json:"id"`
	Topic        string               `json:"topic"`
	Participants []conversation.Agent `json:"participants"`
	Phases       []Phase              `json:"phases"`
	CurrentPhase Phase                `json:"current_phase"`
	Positions    map[string]Position  `json:"positions"`
	Arguments    []Argument           `json:"arguments"`
	Consensus    *Consensus           `json:"consensus,omitempty"`
	StartTime    time.Time            `json:"start_time"`
}

func (d *Discussion) clone() *Discussion {
	out := *d
	out.Participants = slices.Clone(d.Participants)
	out.Phases = slices.Clone(d.Phases)
	out.Positions = make(map[string]Position, len(d.Positions))
	for k, v := range d.Positions {
		out.Positions[k] = v
	}
	out.Arguments = slices.Clone(d.Arguments)
	out.Consensus = d.Consensus.clone()
	return &out
}

// Summary 已结束讨论的归档
type Summary struct {
	ID           string        `json:"id"`
	Topic        string        `json:"topic"`
	Participants []string      `json:"participants"`
	Consensus    *Consensus    `json:"consensus,omitempty"`
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
}

// Result StartCollaboration 的返回值
type Result struct {
	DiscussionID string        `json:"discussion_id"`
	Topic        string        `json:"topic"`
	Positions    []Position    `json:"positions"`
	Arguments    []Argument    `json:"arguments"`
	Consensus    *Consensus    `json:"consensus,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// EventType 协作事件类型
type EventType string

const (
	EventPhaseStart            EventType = "phase_start"
	EventPositionCollected     EventType = "position_collected"
	EventDebateRound           EventType = "debate_round"
	EventConsensusReached      EventType = "consensus_reached"
	EventCollaborationComplete EventType = "collaboration_complete"
	EventCollaborationError    EventType = "collaboration_error"
)

// Event 协作过程中的事件
type Event struct {
	Type         EventType  `json:"type"`
	DiscussionID string     `json:"discussion_id"`
	Timestamp    time.Time  `json:"timestamp"`
	Phase        Phase      `json:"phase,omitempty"`
	Position     *Position  `json:"position,omitempty"`
	Argument     *Argument  `json:"argument,omitempty"`
	Consensus    *Consensus `json:"consensus,omitempty"`
	Proposal     string     `json:"proposal,omitempty"`
	Error        string     `json:"error,omitempty"`
}
