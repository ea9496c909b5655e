package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/catalog"
	"github.com/BaSui01/agentteam/agent/memory"
	"github.com/BaSui01/agentteam/agent/scoring"
	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/types"
)

const (
	humanName       = "我"
	humanAvatar     = "👤"
	otherAvatar     = "🤖"
	defaultMaxTurns = 10
)

// Metrics 编排器的观测接口，由 internal/metrics.Collector 实现
type Metrics interface {
	RecordSessionCreated(workflow string)
	RecordMessage(kind string)
	RecordDecomposition(approach, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordSessionCreated(string)        {}
func (nopMetrics) RecordMessage(string)               {}
func (nopMetrics) RecordDecomposition(string, string) {}

// Options 编排器配置。Transport 必填，其余字段为空时使用默认实现。
// 延迟字段按原值使用，0 表示不等待。
type Options struct {
	Transport llm.Transport
	Catalog   catalog.Catalog
	Ledger    *memory.Ledger
	Store     *Store
	Metrics   Metrics
	Logger    *zap.Logger

	HistoryWindow          int
	DecompositionThreshold int
	SequentialDelay        time.Duration
	SequentialStreamDelay  time.Duration

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// DefaultOptions 返回默认参数，调用方仍需设置 Transport
func DefaultOptions() Options {
	return Options{
		HistoryWindow:          defaultHistoryWindow,
		DecompositionThreshold: scoring.DefaultDecompositionThreshold,
		SequentialDelay:        500 * time.Millisecond,
		SequentialStreamDelay:  300 * time.Millisecond,
	}
}

// Orchestrator 管理会话生命周期并按工作流策略调度智能体应答
type Orchestrator struct {
	transport llm.Transport
	catalog   catalog.Catalog
	ledger    *memory.Ledger
	store     *Store
	metrics   Metrics
	logger    *zap.Logger

	historyWindow         int
	threshold             int
	sequentialDelay       time.Duration
	sequentialStreamDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New 创建编排器
func New(opts Options) (*Orchestrator, error) {
	if opts.Transport == nil {
		return nil, types.Configuration("conversation: transport is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		transport:             opts.Transport,
		catalog:               opts.Catalog,
		ledger:                opts.Ledger,
		store:                 opts.Store,
		metrics:               opts.Metrics,
		logger:                logger.With(zap.String("component", "orchestrator")),
		historyWindow:         opts.HistoryWindow,
		threshold:             opts.DecompositionThreshold,
		sequentialDelay:       opts.SequentialDelay,
		sequentialStreamDelay: opts.SequentialStreamDelay,
		sleep:                 opts.Sleep,
		now:                   opts.Now,
	}
	if o.catalog == nil {
		o.catalog = catalog.Default()
	}
	if o.ledger == nil {
		o.ledger = memory.NewLedger(memory.DefaultLedgerConfig(), logger)
	}
	if o.store == nil {
		o.store = NewStore()
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.historyWindow <= 0 {
		o.historyWindow = defaultHistoryWindow
	}
	if o.threshold <= 0 {
		o.threshold = scoring.DefaultDecompositionThreshold
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Ledger 返回编排器写入的记忆账本
func (o *Orchestrator) Ledger() *memory.Ledger { return o.ledger }

// Catalog 返回角色与模板目录
func (o *Orchestrator) Catalog() catalog.Catalog { return o.catalog }

// ============================================================
// 团队创建
// ============================================================

// MemberConfig 团队成员配置。Type 命中目录时使用目录角色，
// 否则直接使用本结构中的字面字段。
type MemberConfig struct {
	Type               string       `json:"type"`
	LLM                llm.Config   `json:"llm"`
	CustomInstructions string       `json:"custom_instructions,omitempty"`
	Name               string       `json:"name,omitempty"`
	Role               catalog.Role `json:"role,omitempty"`
	Avatar             string       `json:"avatar,omitempty"`
	Instructions       string       `json:"instructions,omitempty"`
	Capabilities       []string     `json:"capabilities,omitempty"`
}

// TeamConfig 创建会话的参数
type TeamConfig struct {
	Name     string          `json:"name"`
	Workflow WorkflowPolicy  `json:"workflow"`
	Members  []MemberConfig  `json:"members"`
	MaxTurns int             `json:"max_turns,omitempty"`
	Metadata SessionMetadata `json:"metadata,omitempty"`
}

// CreateAgentTeam 根据配置创建会话并注册
func (o *Orchestrator) CreateAgentTeam(cfg TeamConfig) (*Session, error) {
	if len(cfg.Members) == 0 {
		return nil, types.Configuration("team must have at least one member")
	}

	agents := make([]Agent, 0, len(cfg.Members))
	for _, m := range cfg.Members {
		agents = append(agents, o.newAgent(m))
	}

	workflow := cfg.Workflow
	if workflow == "" {
		workflow = PolicyRoundRobin
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	session := &Session{
		ID:        uuid.New().String(),
		Name:      cfg.Name,
		Agents:    agents,
		Messages:  []Message{},
		Workflow:  workflow,
		MaxTurns:  maxTurns,
		Status:    SessionActive,
		Metadata:  cfg.Metadata,
		CreatedAt: o.now(),
	}
	o.store.Put(session)
	o.metrics.RecordSessionCreated(string(workflow))
	o.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("workflow", string(workflow)),
		zap.Int("agents", len(agents)))
	return session.Clone(), nil
}

func (o *Orchestrator) newAgent(m MemberConfig) Agent {
	agent := Agent{
		ID:     uuid.New().String(),
		TypeID: m.Type,
		LLM:    m.LLM,
		Status: AgentIdle,
	}
	if p, ok := o.catalog.Persona(m.Type); ok {
		agent.Name = p.Name
		agent.Role = p.Role
		agent.Avatar = p.Avatar
		agent.Instructions = p.Instructions
		agent.Capabilities = p.Capabilities
	} else {
		agent.Name = m.Name
		agent.Role = m.Role
		agent.Avatar = m.Avatar
		agent.Instructions = m.Instructions
		agent.Capabilities = append([]string(nil), m.Capabilities...)
	}
	if agent.Role == "" {
		agent.Role = catalog.RoleAssistant
	}
	if agent.Capabilities == nil {
		agent.Capabilities = []string{}
	}
	if m.CustomInstructions != "" {
		agent.Instructions = m.CustomInstructions
	}
	return agent
}

// CreateTeamFromTemplate 按工作流模板创建会话，name 为空时使用模板名
func (o *Orchestrator) CreateTeamFromTemplate(templateID, name string, llmCfg llm.Config) (*Session, error) {
	tmpl, ok := o.catalog.Template(templateID)
	if !ok {
		return nil, types.NotFound("template", templateID)
	}
	if name == "" {
		name = tmpl.Name
	}
	members := make([]MemberConfig, 0, len(tmpl.Members))
	for _, m := range tmpl.Members {
		members = append(members, MemberConfig{Type: m.Type, LLM: llmCfg})
	}
	return o.CreateAgentTeam(TeamConfig{
		Name:     name,
		Workflow: WorkflowPolicy(tmpl.Workflow),
		Members:  members,
		Metadata: SessionMetadata{
			TemplateID:    tmpl.ID,
			Phases:        append([]catalog.Phase(nil), tmpl.Phases...),
			EstimatedTime: tmpl.EstimatedTime,
			Tags:          append([]string(nil), tmpl.Tags...),
		},
	})
}

// ============================================================
// 会话查询
// ============================================================

// GetSession 返回会话快照
func (o *Orchestrator) GetSession(id string) (*Session, bool) {
	return o.store.Get(id)
}

// DeleteSession 删除会话，并回收成员智能体在账本中的记忆。
// 智能体 id 在创建团队时生成，不会被其他会话共享。
func (o *Orchestrator) DeleteSession(id string) bool {
	session, ok := o.store.Get(id)
	if !ok || !o.store.Delete(id) {
		return false
	}
	for _, a := range session.Agents {
		o.ledger.Forget(a.ID)
	}
	o.logger.Info("session deleted",
		zap.String("session_id", id),
		zap.Int("agents_forgotten", len(session.Agents)))
	return true
}

// SessionCount 当前会话数量
func (o *Orchestrator) SessionCount() int {
	return o.store.Len()
}

// ListActiveSessions 按创建顺序返回所有会话快照
func (o *Orchestrator) ListActiveSessions() []*Session {
	return o.store.List()
}

// ============================================================
// 消息处理
// ============================================================

type sendOptions struct {
	sender   string
	handler  EventHandler
	blocking bool
}

// SendOption SendMessage 选项
type SendOption func(*sendOptions)

// WithSender 指定发送者，默认为 "user"
func WithSender(id string) SendOption {
	return func(o *sendOptions) { o.sender = id }
}

// WithEventHandler 接收流事件
func WithEventHandler(h EventHandler) SendOption {
	return func(o *sendOptions) { o.handler = h }
}

// WithBlocking 使用非流式调用，等待完整回复
func WithBlocking() SendOption {
	return func(o *sendOptions) { o.blocking = true }
}

// SendMessage 追加人类消息，评估复杂度，然后进行任务分解或按工作流策略应答。
// 同一会话上的调用串行执行。
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID, text string, opts ...SendOption) (*Session, error) {
	so := sendOptions{sender: HumanSenderID}
	for _, opt := range opts {
		opt(&so)
	}

	st, ok := o.store.state(sessionID)
	if !ok {
		return nil, types.NotFound("session", sessionID)
	}
	st.turn.Lock()
	defer st.turn.Unlock()

	emit := o.emitter(sessionID, so.handler)

	human := Message{
		ID:          uuid.New().String(),
		Content:     text,
		SenderID:    so.sender,
		SenderName:  so.sender,
		Timestamp:   o.now().UnixMilli(),
		IsFromHuman: so.sender == HumanSenderID,
		Avatar:      otherAvatar,
	}
	if human.IsFromHuman {
		human.SenderName = humanName
		human.Avatar = humanAvatar
	}

	var workflow WorkflowPolicy
	st.update(func(s *Session) {
		s.Messages = append(s.Messages, human)
		workflow = s.Workflow
	})
	o.metrics.RecordMessage("human")

	complexity := scoring.AnalyzeComplexityWithThreshold(text, o.threshold)
	o.logger.Debug("message received",
		zap.String("session_id", sessionID),
		zap.String("sender", so.sender),
		zap.Int("complexity", complexity.Score),
		zap.Bool("decompose", complexity.NeedsDecomposition))

	stream := !so.blocking
	switch {
	case complexity.NeedsDecomposition:
		o.decompose(ctx, st, text, complexity, emit, stream)
	case workflow == PolicyGroupChat:
		o.groupChat(ctx, st, text, emit, stream)
	case workflow == PolicySequential:
		o.sequential(ctx, st, text, human.ID, emit, stream)
	default:
		o.roundRobin(ctx, st, text, emit, stream)
	}
	return st.snapshot(), nil
}

// Events 以通道形式返回 SendMessage 的事件流。事件通道在处理结束后关闭，
// 之后错误通道最多产生一个错误并关闭。
func (o *Orchestrator) Events(ctx context.Context, sessionID, text string, opts ...SendOption) (<-chan StreamEvent, <-chan error) {
	events := make(chan StreamEvent)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		handler := func(ev StreamEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		_, err := o.SendMessage(ctx, sessionID, text, append(opts, WithEventHandler(handler))...)
		close(events)
		if err != nil {
			errc <- err
		}
	}()
	return events, errc
}

// Respond 让指定智能体在会话中应答一次。prompt 作为系统指令附加在历史之后，
// 供长任务按阶段驱动智能体。
func (o *Orchestrator) Respond(ctx context.Context, sessionID, agentID, prompt string) (*Message, error) {
	st, ok := o.store.state(sessionID)
	if !ok {
		return nil, types.NotFound("session", sessionID)
	}
	st.turn.Lock()
	defer st.turn.Unlock()

	var (
		agent Agent
		found bool
	)
	st.view(func(s *Session) { agent, found = s.Agent(agentID) })
	if !found {
		return nil, types.NotFound("agent", agentID)
	}

	msg := o.runTurn(ctx, st, turn{
		agent:   agent,
		trigger: prompt,
		extra:   prompt,
		meta:    Metadata{Type: MessageTypePhase},
	}, o.emitter(sessionID, nil))
	if msg.Metadata.Error {
		return &msg, types.Transport("agent response failed: " + msg.Content)
	}
	return &msg, nil
}

// emitter 为事件补充会话 id 与时间戳，handler 为空时丢弃事件
func (o *Orchestrator) emitter(sessionID string, handler EventHandler) EventHandler {
	return func(ev StreamEvent) {
		if handler == nil {
			return
		}
		ev.SessionID = sessionID
		ev.Timestamp = o.now()
		handler(ev)
	}
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
