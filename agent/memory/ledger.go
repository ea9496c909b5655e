package memory

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConversationSnapshot 一次应答的会话快照
type ConversationSnapshot struct {
	SessionID string    `json:"session_id"`
	Trigger   string    `json:"trigger"`
	Reply     string    `json:"reply"`
	Timestamp time.Time `json:"timestamp"`
}

// Preference 学习到的偏好信号
type Preference struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// ExperienceEvent 记录的经历事件
type ExperienceEvent struct {
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// LedgerStats 单个智能体的记忆统计
type LedgerStats struct {
	Conversations int `json:"conversations"`
	Preferences   int `json:"preferences"`
	Experiences   int `json:"experiences"`
	Knowledge     int `json:"knowledge"`
	Successes     int `json:"successes"`
}

type LedgerConfig struct {
	ConversationLogSize  int
	PreferenceLogSize    int
	ExperienceLogSize    int
	KnowledgePerCategory int

	Now func() time.Time
}

// DefaultLedgerConfig 返回默认容量
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		ConversationLogSize:  100,
		PreferenceLogSize:    100,
		ExperienceLogSize:    100,
		KnowledgePerCategory: defaultKnowledgePerCategory,
	}
}

type agentMemory struct {
	conversations []ConversationSnapshot
	preferences   []Preference
	experiences   []ExperienceEvent
	knowledge     *KnowledgeStore
}

// Ledger 按智能体维护有界的会话、偏好、经历日志，并按需创建知识库
type Ledger struct {
	mu     sync.RWMutex
	agents map[string]*agentMemory

	config LedgerConfig
	logger *zap.Logger
}

func NewLedger(config LedgerConfig, logger *zap.Logger) *Ledger {
	defaults := DefaultLedgerConfig()
	if config.ConversationLogSize <= 0 {
		config.ConversationLogSize = defaults.ConversationLogSize
	}
	if config.PreferenceLogSize <= 0 {
		config.PreferenceLogSize = defaults.PreferenceLogSize
	}
	if config.ExperienceLogSize <= 0 {
		config.ExperienceLogSize = defaults.ExperienceLogSize
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		agents: make(map[string]*agentMemory),
		config: config,
		logger: logger.With(zap.String("component", "memory_ledger")),
	}
}

// RecordConversation 记录会话快照，时间为空时取当前时间
func (l *Ledger) RecordConversation(agentID string, snap ConversationSnapshot) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = l.config.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.agentLocked(agentID)
	m.conversations = appendBounded(m.conversations, snap, l.config.ConversationLogSize)
}

// RecordPreference 记录偏好信号
func (l *Ledger) RecordPreference(agentID, key, value string) {
	p := Preference{Key: key, Value: value, Timestamp: l.config.Now()}
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.agentLocked(agentID)
	m.preferences = appendBounded(m.preferences, p, l.config.PreferenceLogSize)
}

// RecordExperience 记录经历事件
func (l *Ledger) RecordExperience(agentID string, ev ExperienceEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.config.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.agentLocked(agentID)
	m.experiences = appendBounded(m.experiences, ev, l.config.ExperienceLogSize)
	if !ev.Success {
		l.logger.Debug("experience recorded as failure",
			zap.String("agent_id", agentID),
			zap.String("kind", ev.Kind))
	}
}

// Knowledge 返回智能体的知识库，不存在时创建
func (l *Ledger) Knowledge(agentID string) *KnowledgeStore {
	l.mu.RLock()
	if m, ok := l.agents[agentID]; ok {
		l.mu.RUnlock()
		return m.knowledge
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.agentLocked(agentID).knowledge
}

// Lookup 返回已有的知识库，不会为未知智能体创建条目
func (l *Ledger) Lookup(agentID string) (*KnowledgeStore, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.agents[agentID]; ok {
		return m.knowledge, true
	}
	return nil, false
}

// Conversations 返回会话快照副本
func (l *Ledger) Conversations(agentID string) []ConversationSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.agents[agentID]; ok {
		return append([]ConversationSnapshot(nil), m.conversations...)
	}
	return nil
}

// Preferences 返回偏好信号副本
func (l *Ledger) Preferences(agentID string) []Preference {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.agents[agentID]; ok {
		return append([]Preference(nil), m.preferences...)
	}
	return nil
}

// Experiences 返回经历事件副本
func (l *Ledger) Experiences(agentID string) []ExperienceEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.agents[agentID]; ok {
		return append([]ExperienceEvent(nil), m.experiences...)
	}
	return nil
}

// Stats 返回智能体的记忆统计
func (l *Ledger) Stats(agentID string) LedgerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.agents[agentID]
	if !ok {
		return LedgerStats{}
	}
	stats := LedgerStats{
		Conversations: len(m.conversations),
		Preferences:   len(m.preferences),
		Experiences:   len(m.experiences),
		Knowledge:     m.knowledge.Len(),
	}
	for _, e := range m.experiences {
		if e.Success {
			stats.Successes++
		}
	}
	return stats
}

// Forget 删除智能体的全部记忆
func (l *Ledger) Forget(agentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.agents[agentID]
	delete(l.agents, agentID)
	return ok
}

// Len 有记忆的智能体数量
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.agents)
}

func (l *Ledger) agentLocked(agentID string) *agentMemory {
	m, ok := l.agents[agentID]
	if !ok {
		m = &agentMemory{
			knowledge: NewKnowledgeStore(KnowledgeStoreConfig{
				PerCategory: l.config.KnowledgePerCategory,
				Now:         l.config.Now,
			}),
		}
		l.agents[agentID] = m
	}
	return m
}

// appendBounded 追加后只保留最近 limit 条
func appendBounded[T any](items []T, item T, limit int) []T {
	items = append(items, item)
	if over := len(items) - limit; over > 0 {
		items = append([]T(nil), items[over:]...)
	}
	return items
}
