package collaboration

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/conversation"
	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/types"
)

// Metrics 协作引擎的观测接口
type Metrics interface {
	RecordCollaboration(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordCollaboration(string) {}

// Config 协作引擎配置
type Config struct {
	DebateRounds      int           `json:"debate_rounds" yaml:"debate_rounds"`
	DebateTurnDelay   time.Duration `json:"debate_turn_delay" yaml:"debate_turn_delay"`
	ConflictThreshold float64       `json:"conflict_threshold" yaml:"conflict_threshold"`
	HistorySize       int           `json:"history_size" yaml:"history_size"`
	AntonymPairs      []AntonymPair `json:"-" yaml:"-"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		DebateRounds:      3,
		DebateTurnDelay:   800 * time.Millisecond,
		ConflictThreshold: 0.3,
		HistorySize:       100,
	}
}

// Option 引擎选项
type Option func(*Engine)

// WithSleep 替换辩论节奏等待函数
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = fn }
}

// WithMetrics 设置指标收集器
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine 多智能体结构化讨论：立场收集、辩论、共识构建、归档
type Engine struct {
	transport llm.Transport
	config    Config
	metrics   Metrics
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time

	mu           sync.RWMutex
	active       map[string]*Discussion
	history      map[string]Summary
	historyOrder []string
}

// NewEngine 创建协作引擎
func NewEngine(transport llm.Transport, config Config, logger *zap.Logger, opts ...Option) *Engine {
	defaults := DefaultConfig()
	if config.DebateRounds <= 0 {
		config.DebateRounds = defaults.DebateRounds
	}
	if config.ConflictThreshold <= 0 {
		config.ConflictThreshold = defaults.ConflictThreshold
	}
	if config.HistorySize <= 0 {
		config.HistorySize = defaults.HistorySize
	}
	if len(config.AntonymPairs) == 0 {
		config.AntonymPairs = DefaultAntonymPairs
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		transport: transport,
		config:    config,
		metrics:   nopMetrics{},
		logger:    logger.With(zap.String("component", "collaboration_engine")),
		sleep:     sleepContext,
		now:       time.Now,
		active:    make(map[string]*Discussion),
		history:   make(map[string]Summary),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartCollaboration 运行一次完整讨论。任何阶段出错都会发出 collaboration_error
// 并返回错误；讨论在结束时总是从活动集合中移除。
func (e *Engine) StartCollaboration(ctx context.Context, topic string, participants []*conversation.Agent, onEvent func(Event)) (*Result, error) {
	if len(participants) == 0 {
		return nil, types.Configuration("collaboration requires at least one participant")
	}

	d := &Discussion{
		ID:           uuid.New().String(),
		Topic:        topic,
		Participants: make([]conversation.Agent, 0, len(participants)),
		Phases:       slices.Clone(Phases),
		Positions:    make(map[string]Position, len(participants)),
		StartTime:    e.now(),
	}
	for _, p := range participants {
		a := *p
		a.Capabilities = slices.Clone(p.Capabilities)
		d.Participants = append(d.Participants, a)
	}

	e.mu.Lock()
	e.active[d.ID] = d
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.active, d.ID)
		e.mu.Unlock()
	}()

	emit := func(ev Event) {
		if onEvent == nil {
			return
		}
		ev.DiscussionID = d.ID
		ev.Timestamp = e.now()
		onEvent(ev)
	}

	log := e.logger.With(zap.String("discussion_id", d.ID))
	log.Info("collaboration started", zap.String("topic", topic), zap.Int("participants", len(participants)))

	result, err := e.run(ctx, d, emit, log)
	if err != nil {
		log.Error("collaboration failed", zap.Error(err))
		emit(Event{Type: EventCollaborationError, Phase: e.phaseOf(d), Error: err.Error()})
		e.metrics.RecordCollaboration("error")
		return nil, err
	}

	outcome := "no_consensus"
	if result.Consensus != nil {
		outcome = "consensus"
	}
	e.metrics.RecordCollaboration(outcome)
	log.Info("collaboration completed", zap.String("outcome", outcome), zap.Duration("duration", result.Duration))
	return result, nil
}

func (e *Engine) run(ctx context.Context, d *Discussion, emit func(Event), log *zap.Logger) (*Result, error) {
	for _, phase := range Phases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.setPhase(d, phase)
		emit(Event{Type: EventPhaseStart, Phase: phase})

		var err error
		switch phase {
		case PhaseInitialPositions:
			e.collectPositions(ctx, d, emit, log)
		case PhaseDebate:
			err = e.debate(ctx, d, emit, log)
		case PhaseConsensusBuilding:
			err = e.buildConsensus(ctx, d, emit, log)
		case PhaseFinalization:
			return e.finalize(d, emit), nil
		}
		if err != nil {
			return nil, err
		}
	}
	return nil, types.NewError(types.ErrInternalError, "collaboration ended without finalization")
}

// ============================================================
// initial_positions
// ============================================================

func (e *Engine) collectPositions(ctx context.Context, d *Discussion, emit func(Event), log *zap.Logger) {
	for _, agent := range d.Participants {
		msgs := []llm.Message{
			{Role: llm.RoleSystem, Content: agent.Instructions},
			{Role: llm.RoleUser, Content: positionPrompt(agent, d.Topic)},
		}
		pos := Position{AgentID: agent.ID, AgentName: agent.Name}
		out, err := e.transport.CompleteChat(ctx, agent.LLM, msgs)
		if err != nil {
			log.Warn("position request failed", zap.String("agent_id", agent.ID), zap.Error(err))
			pos.Content = fmt.Sprintf("[%s] 暂时无法给出观点：%s", agent.Name, err.Error())
			pos.Confidence = PlaceholderConfidence
			pos.Placeholder = true
		} else {
			pos.Content = out.Content
			pos.Confidence = Confidence(out.Content)
		}

		e.mu.Lock()
		d.Positions[agent.ID] = pos
		e.mu.Unlock()

		p := pos
		emit(Event{Type: EventPositionCollected, Phase: PhaseInitialPositions, Position: &p})
	}
}

func positionPrompt(agent conversation.Agent, topic string) string {
	return fmt.Sprintf("讨论话题：%s\n\n请以%s的身份，结合你的专业能力（%s），给出你的立场和主要论据。请明确表明支持或反对的观点。",
		topic, agent.Name, strings.Join(agent.Capabilities, "、"))
}

// ============================================================
// debate
// ============================================================

func (e *Engine) debate(ctx context.Context, d *Discussion, emit func(Event), log *zap.Logger) error {
	participants := d.Participants
	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			a, b := participants[i], participants[j]
			e.mu.RLock()
			posA, posB := d.Positions[a.ID], d.Positions[b.ID]
			e.mu.RUnlock()

			score := ConflictScore(posA.Content, posB.Content, e.config.AntonymPairs)
			if score <= e.config.ConflictThreshold {
				continue
			}
			log.Debug("conflict detected",
				zap.String("agent_a", a.ID),
				zap.String("agent_b", b.ID),
				zap.Float64("score", score))

			if err := e.debatePair(ctx, d, a, b, posA, posB, emit, log); err != nil {
				return err
			}
		}
	}
	return nil
}

// debatePair 两名参与者交替反驳，每轮回应对方最近一次发言
func (e *Engine) debatePair(ctx context.Context, d *Discussion, a, b conversation.Agent, posA, posB Position, emit func(Event), log *zap.Logger) error {
	last := map[string]string{a.ID: posA.Content, b.ID: posB.Content}
	speaker, listener := a, b

	for round := 1; round <= e.config.DebateRounds; round++ {
		msgs := []llm.Message{
			{Role: llm.RoleSystem, Content: speaker.Instructions},
			{Role: llm.RoleUser, Content: rebuttalPrompt(d.Topic, listener.Name, last[listener.ID], last[speaker.ID])},
		}
		arg := Argument{Round: round, From: speaker.ID, FromName: speaker.Name, To: listener.ID}
		out, err := e.transport.CompleteChat(ctx, speaker.LLM, msgs)
		if err != nil {
			log.Warn("rebuttal failed", zap.String("agent_id", speaker.ID), zap.Int("round", round), zap.Error(err))
			arg.Content = fmt.Sprintf("[%s] 本轮未能回应：%s", speaker.Name, err.Error())
			arg.Placeholder = true
		} else {
			arg.Content = out.Content
			last[speaker.ID] = out.Content
		}

		e.mu.Lock()
		d.Arguments = append(d.Arguments, arg)
		e.mu.Unlock()
		emitted := arg
		emit(Event{Type: EventDebateRound, Phase: PhaseDebate, Argument: &emitted})

		speaker, listener = listener, speaker
		if round < e.config.DebateRounds && e.config.DebateTurnDelay > 0 {
			if err := e.sleep(ctx, e.config.DebateTurnDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

func rebuttalPrompt(topic, opponent, opponentView, ownView string) string {
	return fmt.Sprintf("讨论话题：%s\n\n你之前的观点：%s\n\n%s的观点：%s\n\n请针对%s的观点进行回应，指出分歧并说明你的理由。",
		topic, ownView, opponent, opponentView, opponent)
}

// ============================================================
// consensus_building
// ============================================================

func (e *Engine) buildConsensus(ctx context.Context, d *Discussion, emit func(Event), log *zap.Logger) error {
	coordIdx := slices.IndexFunc(d.Participants, func(a conversation.Agent) bool {
		return a.HasCapability("coordination")
	})
	if coordIdx < 0 {
		log.Debug("no coordinator, skipping consensus")
		return nil
	}
	coordinator := d.Participants[coordIdx]

	e.mu.RLock()
	digest := e.digest(d)
	e.mu.RUnlock()

	out, err := e.transport.CompleteChat(ctx, coordinator.LLM, []llm.Message{
		{Role: llm.RoleSystem, Content: coordinator.Instructions},
		{Role: llm.RoleUser, Content: fmt.Sprintf("讨论话题：%s\n\n%s\n请综合以上各方观点和辩论，提出一个各方都能接受的共识方案。", d.Topic, digest)},
	})
	if err != nil {
		return types.Transport("consensus proposal failed").WithCause(err)
	}
	proposal := out.Content

	consensus := &Consensus{CoordinatorID: coordinator.ID, Original: proposal, Proposal: proposal}
	total := 0
	for _, agent := range d.Participants {
		if agent.ID == coordinator.ID {
			continue
		}
		s := Score{AgentID: agent.ID, AgentName: agent.Name}
		reply, err := e.transport.CompleteChat(ctx, agent.LLM, []llm.Message{
			{Role: llm.RoleSystem, Content: agent.Instructions},
			{Role: llm.RoleUser, Content: fmt.Sprintf("讨论话题：%s\n\n共识方案：%s\n\n请从你的专业角度为该方案打分（1-10分），格式为\"N分\"，并给出改进建议。", d.Topic, proposal)},
		})
		if err != nil {
			log.Warn("proposal scoring failed", zap.String("agent_id", agent.ID), zap.Error(err))
			s.Value = defaultScore
			s.Failed = true
		} else {
			s.Value = ParseScore(reply.Content)
			s.Feedback = reply.Content
		}
		total += s.Value
		consensus.Scores = append(consensus.Scores, s)
	}
	if n := len(consensus.Scores); n > 0 {
		consensus.AverageScore = float64(total) / float64(n)
	}

	revised, err := e.transport.CompleteChat(ctx, coordinator.LLM, []llm.Message{
		{Role: llm.RoleSystem, Content: coordinator.Instructions},
		{Role: llm.RoleUser, Content: revisionPrompt(d.Topic, proposal, consensus.Scores)},
	})
	if err != nil {
		log.Warn("proposal revision failed, keeping original", zap.Error(err))
	} else if revised.Content != "" {
		consensus.Proposal = revised.Content
		consensus.Revised = true
	}

	e.mu.Lock()
	d.Consensus = consensus
	e.mu.Unlock()
	emit(Event{Type: EventConsensusReached, Phase: PhaseConsensusBuilding, Consensus: consensus.clone()})
	return nil
}

// digest 汇总立场与辩论，调用方持有读锁
func (e *Engine) digest(d *Discussion) string {
	var b strings.Builder
	b.WriteString("各方立场：\n")
	for _, a := range d.Participants {
		if p, ok := d.Positions[a.ID]; ok {
			fmt.Fprintf(&b, "- %s（置信度 %.1f）：%s\n", a.Name, p.Confidence, p.Content)
		}
	}
	if len(d.Arguments) > 0 {
		b.WriteString("\n辩论记录：\n")
		for _, arg := range d.Arguments {
			fmt.Fprintf(&b, "- 第%d轮 %s：%s\n", arg.Round, arg.FromName, arg.Content)
		}
	}
	return b.String()
}

func revisionPrompt(topic, proposal string, scores []Score) string {
	var b strings.Builder
	fmt.Fprintf(&b, "讨论话题：%s\n\n原方案：%s\n\n各方评分与反馈：\n", topic, proposal)
	for _, s := range scores {
		fmt.Fprintf(&b, "- %s：%d分 %s\n", s.AgentName, s.Value, s.Feedback)
	}
	b.WriteString("\n请根据反馈修订方案，输出最终版本。")
	return b.String()
}

// ============================================================
// finalization
// ============================================================

func (e *Engine) finalize(d *Discussion, emit func(Event)) *Result {
	e.mu.Lock()
	duration := e.now().Sub(d.StartTime)
	names := make([]string, len(d.Participants))
	for i, a := range d.Participants {
		names[i] = a.Name
	}
	summary := Summary{
		ID:           d.ID,
		Topic:        d.Topic,
		Participants: names,
		Consensus:    d.Consensus.clone(),
		StartTime:    d.StartTime,
		Duration:     duration,
	}
	e.archiveLocked(summary)

	result := &Result{
		DiscussionID: d.ID,
		Topic:        d.Topic,
		Arguments:    slices.Clone(d.Arguments),
		Consensus:    d.Consensus.clone(),
		Duration:     duration,
	}
	for _, a := range d.Participants {
		if p, ok := d.Positions[a.ID]; ok {
			result.Positions = append(result.Positions, p)
		}
	}
	e.mu.Unlock()

	proposal := ""
	if result.Consensus != nil {
		proposal = result.Consensus.Proposal
	}
	emit(Event{Type: EventCollaborationComplete, Phase: PhaseFinalization, Proposal: proposal})
	return result
}

// archiveLocked 写入有界历史，超出容量时淘汰最早的记录
func (e *Engine) archiveLocked(s Summary) {
	if _, ok := e.history[s.ID]; !ok {
		e.historyOrder = append(e.historyOrder, s.ID)
	}
	e.history[s.ID] = s
	for len(e.historyOrder) > e.config.HistorySize {
		delete(e.history, e.historyOrder[0])
		e.historyOrder = e.historyOrder[1:]
	}
}

// ============================================================
// 查询
// ============================================================

// Active 返回进行中讨论的快照
func (e *Engine) Active() []*Discussion {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Discussion, 0, len(e.active))
	for _, d := range e.active {
		out = append(out, d.clone())
	}
	slices.SortFunc(out, func(a, b *Discussion) int { return a.StartTime.Compare(b.StartTime) })
	return out
}

// History 返回指定讨论的归档
func (e *Engine) History(id string) (Summary, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.history[id]
	return s, ok
}

// Histories 按归档顺序返回全部历史
func (e *Engine) Histories() []Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Summary, 0, len(e.historyOrder))
	for _, id := range e.historyOrder {
		out = append(out, e.history[id])
	}
	return out
}

func (e *Engine) setPhase(d *Discussion, p Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d.CurrentPhase = p
}

func (e *Engine) phaseOf(d *Discussion) Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return d.CurrentPhase
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
