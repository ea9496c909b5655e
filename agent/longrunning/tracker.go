package longrunning

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/catalog"
	"github.com/BaSui01/agentteam/agent/collaboration"
	"github.com/BaSui01/agentteam/agent/conversation"
	"github.com/BaSui01/agentteam/types"
)

// StepDelays 通用任务每步的模拟耗时
type StepDelays struct {
	Simple  time.Duration `json:"simple" yaml:"simple"`
	Medium  time.Duration `json:"medium" yaml:"medium"`
	Complex time.Duration `json:"complex" yaml:"complex"`
}

// For 按复杂度取耗时，未知复杂度按 medium 处理
func (d StepDelays) For(c Complexity) time.Duration {
	switch c {
	case ComplexitySimple:
		return d.Simple
	case ComplexityComplex:
		return d.Complex
	default:
		return d.Medium
	}
}

// Config 进度追踪器配置
type Config struct {
	MaxCheckpoints int        `json:"max_checkpoints" yaml:"max_checkpoints"`
	StepDelays     StepDelays `json:"step_delays" yaml:"step_delays"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxCheckpoints: 10,
		StepDelays: StepDelays{
			Simple:  time.Second,
			Medium:  2 * time.Second,
			Complex: 3 * time.Second,
		},
	}
}

// PhaseRunner 把工作流阶段交给指定智能体执行
type PhaseRunner interface {
	RunPhase(ctx context.Context, sessionID string, phase catalog.Phase, topic string) (string, error)
}

// Collaborator 协作型任务的执行者
type Collaborator interface {
	StartCollaboration(ctx context.Context, topic string, participants []*conversation.Agent, onEvent func(collaboration.Event)) (*collaboration.Result, error)
}

// SessionSource 查询会话成员
type SessionSource interface {
	GetSession(id string) (*conversation.Session, bool)
}

// Metrics 任务指标
type Metrics interface {
	RecordTask(kind, status string)
}

type nopMetrics struct{}

func (nopMetrics) RecordTask(string, string) {}

// Option 追踪器选项
type Option func(*Tracker)

// WithPhaseRunner 设置工作流阶段执行者
func WithPhaseRunner(r PhaseRunner) Option { return func(t *Tracker) { t.runner = r } }

// WithCollaborator 设置协作执行者
func WithCollaborator(c Collaborator) Option { return func(t *Tracker) { t.collaborator = c } }

// WithSessions 设置会话来源，协作型任务从中取参与者
func WithSessions(s SessionSource) Option { return func(t *Tracker) { t.sessions = s } }

// WithMetrics 设置指标收集器
func WithMetrics(m Metrics) Option {
	return func(t *Tracker) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithSleep 替换模拟耗时的等待函数
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Tracker) { t.sleep = fn }
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// Tracker 跟踪多阶段长时任务，支持基于检查点的暂停与恢复。
//
// 任务在阶段或步骤之间响应暂停；恢复时从最近的检查点继续，
// 已完成的阶段不会重复执行。结束（完成或失败）的任务移入历史。
type Tracker struct {
	config       Config
	runner       PhaseRunner
	collaborator Collaborator
	sessions     SessionSource
	metrics      Metrics
	logger       *zap.Logger
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time

	mu       sync.RWMutex
	active   map[string]*Task
	history  map[string]*Task
	inflight map[string]bool
	entropy  io.Reader
}

// NewTracker 创建进度追踪器
func NewTracker(config Config, logger *zap.Logger, opts ...Option) *Tracker {
	if config.MaxCheckpoints <= 0 {
		config.MaxCheckpoints = DefaultConfig().MaxCheckpoints
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		config:   config,
		metrics:  nopMetrics{},
		logger:   logger.With(zap.String("component", "progress_tracker")),
		sleep:    sleepContext,
		now:      time.Now,
		active:   make(map[string]*Task),
		history:  make(map[string]*Task),
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.entropy = ulid.Monotonic(rand.New(rand.NewSource(t.now().UnixNano())), 0)
	return t
}

// TaskConfig 创建任务的参数
type TaskConfig struct {
	Name           string          `json:"name"`
	Kind           TaskKind        `json:"kind"`
	Phases         []catalog.Phase `json:"phases,omitempty"`
	Steps          []string        `json:"steps,omitempty"`
	AssignedAgents []string        `json:"assigned_agents,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	Topic          string          `json:"topic,omitempty"`
	Complexity     Complexity      `json:"complexity,omitempty"`
}

// CreateTask 创建处于 pending 状态的任务
func (t *Tracker) CreateTask(cfg TaskConfig) (*Task, error) {
	if cfg.Name == "" {
		return nil, types.Configuration("task name is required")
	}
	kind := cfg.Kind
	if kind == "" {
		kind = KindGeneral
	}
	switch kind {
	case KindGeneral, KindCollaboration:
	case KindWorkflow:
		if len(cfg.Phases) == 0 {
			return nil, types.Configuration("workflow task requires at least one phase")
		}
	default:
		return nil, types.Configuration(fmt.Sprintf("unknown task kind %q", kind))
	}
	complexity := cfg.Complexity
	if complexity == "" {
		complexity = ComplexityMedium
	}

	task := &Task{
		ID:             uuid.New().String(),
		Name:           cfg.Name,
		Kind:           kind,
		Phases:         slices.Clone(cfg.Phases),
		Steps:          slices.Clone(cfg.Steps),
		Status:         StatusPending,
		CreatedAt:      t.now(),
		AssignedAgents: slices.Clone(cfg.AssignedAgents),
		SessionID:      cfg.SessionID,
		Topic:          cfg.Topic,
		Complexity:     complexity,
		Checkpoints:    []Checkpoint{},
	}

	t.mu.Lock()
	t.active[task.ID] = task
	t.mu.Unlock()

	t.logger.Info("task created",
		zap.String("task_id", task.ID),
		zap.String("kind", string(kind)),
		zap.Int("units", task.units()))
	return task.Clone(), nil
}

// StartTask 执行任务直到完成、失败或被暂停。
// 执行出错时任务标记为失败，错误通过回调发出后返回给调用方。
func (t *Tracker) StartTask(ctx context.Context, id string, onUpdate UpdateHandler) error {
	t.mu.Lock()
	task, ok := t.active[id]
	if !ok {
		t.mu.Unlock()
		return types.NotFound("task", id)
	}
	if task.Status != StatusPending {
		t.mu.Unlock()
		return types.InvalidTransition(fmt.Sprintf("task %s is %s, only pending tasks can start", id, task.Status))
	}
	now := t.now()
	task.Status = StatusRunning
	task.StartTime = &now
	t.inflight[id] = true
	snap := task.Clone()
	t.mu.Unlock()

	emit := t.emitter(id, onUpdate)
	emit(Update{Type: UpdateTaskStarted, Task: snap})
	t.logger.Info("task started", zap.String("task_id", id))
	return t.execute(ctx, id, emit)
}

// PauseTask 暂停运行中的任务并记录检查点，非运行状态返回 false
func (t *Tracker) PauseTask(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.active[id]
	if !ok || task.Status != StatusRunning {
		return false
	}
	task.Status = StatusPaused
	t.checkpointLocked(task, TagPaused)
	t.logger.Info("task paused", zap.String("task_id", id), zap.Int("index", task.CurrentIndex))
	return true
}

// ResumeTask 从最近的检查点恢复暂停的任务，并继续执行后续阶段。
// 若暂停时仍有阶段在执行，原执行循环直接继续，本调用立即返回。
func (t *Tracker) ResumeTask(ctx context.Context, id string, onUpdate UpdateHandler) error {
	t.mu.Lock()
	task, ok := t.active[id]
	if !ok {
		t.mu.Unlock()
		return types.NotFound("task", id)
	}
	if task.Status != StatusPaused {
		t.mu.Unlock()
		return types.InvalidTransition(fmt.Sprintf("task %s is %s, only paused tasks can resume", id, task.Status))
	}

	emit := t.emitter(id, onUpdate)
	if t.inflight[id] {
		task.Status = StatusRunning
		snap := task.Clone()
		t.mu.Unlock()
		emit(Update{Type: UpdateTaskResumed, Index: snap.CurrentIndex, Progress: snap.Progress, Task: snap})
		return nil
	}

	restored := task
	if n := len(task.Checkpoints); n > 0 {
		restored = task.Checkpoints[n-1].Snapshot.Clone()
		restored.Checkpoints = task.Checkpoints
	}
	restored.Status = StatusRunning
	t.active[id] = restored
	t.inflight[id] = true
	snap := restored.Clone()
	t.mu.Unlock()

	t.logger.Info("task resumed", zap.String("task_id", id), zap.Int("index", snap.CurrentIndex))
	emit(Update{Type: UpdateTaskResumed, Index: snap.CurrentIndex, Progress: snap.Progress, Task: snap})
	return t.execute(ctx, id, emit)
}

// ============================================================
// 执行循环
// ============================================================

// unitFunc 执行第 i 个单元，snap 为执行前的任务快照
type unitFunc func(ctx context.Context, snap *Task, i int, emit UpdateHandler) (PhaseResult, error)

type unitEvents struct {
	started   UpdateType
	completed UpdateType
	tag       string
}

func (t *Tracker) execute(ctx context.Context, id string, emit UpdateHandler) error {
	t.mu.RLock()
	task, ok := t.active[id]
	var kind TaskKind
	if ok {
		kind = task.Kind
	}
	t.mu.RUnlock()
	if !ok {
		return types.NotFound("task", id)
	}

	var (
		paused bool
		err    error
	)
	switch kind {
	case KindWorkflow:
		paused, err = t.runUnits(ctx, id, emit, t.runPhase,
			unitEvents{UpdatePhaseStarted, UpdatePhaseCompleted, TagPhase})
	case KindCollaboration:
		paused, err = t.runUnits(ctx, id, emit, t.runCollaboration, unitEvents{tag: TagPhase})
	default:
		paused, err = t.runUnits(ctx, id, emit, t.runStep,
			unitEvents{UpdateStepStarted, UpdateStepCompleted, TagStep})
	}
	if err != nil {
		t.fail(id, err, emit)
		return err
	}
	if !paused {
		t.finish(id, emit)
	}
	return nil
}

// runUnits 从 CurrentIndex 开始逐个执行单元。观察到非运行状态时
// 在同一临界区内释放执行权并返回 paused=true。
func (t *Tracker) runUnits(ctx context.Context, id string, emit UpdateHandler, run unitFunc, ev unitEvents) (bool, error) {
	for {
		t.mu.Lock()
		task, ok := t.active[id]
		if !ok {
			delete(t.inflight, id)
			t.mu.Unlock()
			return false, types.NotFound("task", id)
		}
		if task.Status != StatusRunning {
			delete(t.inflight, id)
			t.mu.Unlock()
			return true, nil
		}
		i, total := task.CurrentIndex, task.units()
		if i >= total {
			t.mu.Unlock()
			return false, nil
		}
		snap := task.snapshot()
		t.mu.Unlock()

		name := unitName(snap, i)
		if ev.started != "" {
			emit(Update{Type: ev.started, Index: i, Name: name, Progress: snap.Progress})
		}

		res, err := run(ctx, snap, i, emit)
		if err != nil {
			// 暂停期间失败的单元不改变状态，恢复时从暂停检查点重新执行
			t.mu.Lock()
			if task, ok := t.active[id]; ok && task.Status == StatusPaused {
				delete(t.inflight, id)
				task.Error = err.Error()
				t.mu.Unlock()
				t.logger.Warn("unit failed while task paused, will rerun on resume",
					zap.String("task_id", id),
					zap.Int("index", i),
					zap.Error(err))
				return true, nil
			}
			t.mu.Unlock()
			return false, err
		}
		res.Index = i
		if res.Name == "" {
			res.Name = name
		}
		res.CompletedAt = t.now()

		t.mu.Lock()
		task, ok = t.active[id]
		if !ok {
			delete(t.inflight, id)
			t.mu.Unlock()
			return false, types.NotFound("task", id)
		}
		task.Results = append(task.Results, res)
		task.CurrentIndex = i + 1
		task.Progress = max(task.Progress, float64(i+1)/float64(total)*100)
		t.checkpointLocked(task, ev.tag)
		progress := task.Progress
		t.mu.Unlock()

		if ev.completed != "" {
			emit(Update{Type: ev.completed, Index: i, Name: res.Name, Output: res.Output, Progress: progress})
		}
	}
}

func unitName(task *Task, i int) string {
	switch task.Kind {
	case KindWorkflow:
		return task.Phases[i].Phase
	case KindCollaboration:
		return task.topic()
	default:
		return task.stepName(i)
	}
}

// runPhase 指定了智能体的阶段交给 PhaseRunner，其余阶段直接以描述作为产出
func (t *Tracker) runPhase(ctx context.Context, snap *Task, i int, _ UpdateHandler) (PhaseResult, error) {
	phase := snap.Phases[i]
	res := PhaseResult{Name: phase.Phase, Agent: phase.Agent}
	if phase.Agent == "" || snap.SessionID == "" || t.runner == nil {
		res.Output = phase.Description
		return res, nil
	}
	out, err := t.runner.RunPhase(ctx, snap.SessionID, phase, snap.topic())
	if err != nil {
		return res, err
	}
	res.Output = out
	return res, nil
}

func (t *Tracker) runStep(ctx context.Context, snap *Task, i int, _ UpdateHandler) (PhaseResult, error) {
	if d := t.config.StepDelays.For(snap.Complexity); d > 0 {
		if err := t.sleep(ctx, d); err != nil {
			return PhaseResult{}, err
		}
	}
	name := snap.stepName(i)
	return PhaseResult{Name: name, Output: fmt.Sprintf("步骤「%s」已完成", name)}, nil
}

// collaborationProgress 协作阶段开始时对应的进度
var collaborationProgress = map[collaboration.Phase]float64{
	collaboration.PhaseInitialPositions:  25,
	collaboration.PhaseDebate:            50,
	collaboration.PhaseConsensusBuilding: 75,
	collaboration.PhaseFinalization:      100,
}

func (t *Tracker) runCollaboration(ctx context.Context, snap *Task, _ int, emit UpdateHandler) (PhaseResult, error) {
	if t.collaborator == nil {
		return PhaseResult{}, types.Configuration("collaboration task requires a collaborator")
	}
	participants, err := t.participants(snap)
	if err != nil {
		return PhaseResult{}, err
	}

	result, err := t.collaborator.StartCollaboration(ctx, snap.topic(), participants, func(ev collaboration.Event) {
		if ev.Type != collaboration.EventPhaseStart {
			return
		}
		p, ok := collaborationProgress[ev.Phase]
		if !ok {
			return
		}
		progress := t.advance(snap.ID, p)
		emit(Update{Type: UpdateCollaborationUpdate, Name: string(ev.Phase), Progress: progress})
	})
	if err != nil {
		return PhaseResult{}, err
	}

	res := PhaseResult{Name: snap.topic()}
	if result.Consensus != nil {
		res.Output = result.Consensus.Proposal
	}
	return res, nil
}

// participants 取会话中被指派的成员；未指派时取全部成员
func (t *Tracker) participants(snap *Task) ([]*conversation.Agent, error) {
	if t.sessions == nil {
		return nil, types.Configuration("collaboration task requires a session source")
	}
	session, ok := t.sessions.GetSession(snap.SessionID)
	if !ok {
		return nil, types.NotFound("session", snap.SessionID)
	}
	var out []*conversation.Agent
	for i := range session.Agents {
		a := &session.Agents[i]
		if len(snap.AssignedAgents) == 0 ||
			slices.Contains(snap.AssignedAgents, a.ID) ||
			slices.Contains(snap.AssignedAgents, a.TypeID) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, types.Configuration("collaboration task has no participants")
	}
	return out, nil
}

// advance 单调推进进度，返回推进后的值
func (t *Tracker) advance(id string, p float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.active[id]
	if !ok {
		return p
	}
	task.Progress = max(task.Progress, p)
	return task.Progress
}

func (t *Tracker) finish(id string, emit UpdateHandler) {
	t.mu.Lock()
	task, ok := t.active[id]
	delete(t.inflight, id)
	if !ok || task.Status != StatusRunning {
		t.mu.Unlock()
		return
	}
	now := t.now()
	task.Status = StatusCompleted
	task.Progress = 100
	task.EndTime = &now
	t.archiveLocked(task)
	snap := task.Clone()
	t.mu.Unlock()

	t.metrics.RecordTask(string(snap.Kind), string(StatusCompleted))
	t.logger.Info("task completed",
		zap.String("task_id", id),
		zap.Duration("duration", now.Sub(*snap.StartTime)))
	emit(Update{Type: UpdateTaskCompleted, Index: snap.CurrentIndex, Progress: 100, Task: snap})
}

func (t *Tracker) fail(id string, cause error, emit UpdateHandler) {
	t.mu.Lock()
	task, ok := t.active[id]
	delete(t.inflight, id)
	if !ok {
		t.mu.Unlock()
		return
	}
	now := t.now()
	task.Status = StatusFailed
	task.EndTime = &now
	task.Error = cause.Error()
	t.archiveLocked(task)
	snap := task.Clone()
	t.mu.Unlock()

	t.metrics.RecordTask(string(snap.Kind), string(StatusFailed))
	t.logger.Error("task failed",
		zap.String("task_id", id),
		zap.Int("index", snap.CurrentIndex),
		zap.Error(cause))
	emit(Update{Type: UpdateTaskFailed, Index: snap.CurrentIndex, Progress: snap.Progress, Error: snap.Error, Task: snap})
}

// checkpointLocked 追加检查点，超出上限时淘汰最早的
func (t *Tracker) checkpointLocked(task *Task, tag string) {
	now := t.now()
	cp := Checkpoint{
		ID:        ulid.MustNew(ulid.Timestamp(now), t.entropy).String(),
		Tag:       tag,
		Index:     task.CurrentIndex,
		Timestamp: now,
		Snapshot:  task.snapshot(),
	}
	task.Checkpoints = append(task.Checkpoints, cp)
	if over := len(task.Checkpoints) - t.config.MaxCheckpoints; over > 0 {
		task.Checkpoints = slices.Delete(task.Checkpoints, 0, over)
	}
}

func (t *Tracker) archiveLocked(task *Task) {
	delete(t.active, task.ID)
	t.history[task.ID] = task
}

// ============================================================
// 管理与查询
// ============================================================

// CompleteTask 手动结束任务并移入历史。运行中的任务不能手动结束。
func (t *Tracker) CompleteTask(id string) error {
	t.mu.Lock()
	task, ok := t.active[id]
	if !ok {
		_, archived := t.history[id]
		t.mu.Unlock()
		if archived {
			return nil
		}
		return types.NotFound("task", id)
	}
	if task.Status == StatusRunning || t.inflight[id] {
		t.mu.Unlock()
		return types.InvalidTransition(fmt.Sprintf("task %s is still running", id))
	}
	now := t.now()
	task.Status = StatusCompleted
	task.Progress = 100
	task.EndTime = &now
	if task.StartTime == nil {
		task.StartTime = &now
	}
	t.archiveLocked(task)
	kind := task.Kind
	t.mu.Unlock()

	t.metrics.RecordTask(string(kind), string(StatusCompleted))
	return nil
}

// DeleteTask 从活动集合和历史中移除任务
func (t *Tracker) DeleteTask(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, inActive := t.active[id]
	_, inHistory := t.history[id]
	delete(t.active, id)
	delete(t.history, id)
	delete(t.inflight, id)
	return inActive || inHistory
}

// GetTask 返回任务快照，先查活动集合再查历史
func (t *Tracker) GetTask(id string) (*Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if task, ok := t.active[id]; ok {
		return task.Clone(), true
	}
	if task, ok := t.history[id]; ok {
		return task.Clone(), true
	}
	return nil, false
}

// ListTasks 按创建时间返回全部任务（含历史）的快照
func (t *Tracker) ListTasks() []*Task {
	t.mu.RLock()
	out := make([]*Task, 0, len(t.active)+len(t.history))
	for _, task := range t.active {
		out = append(out, task.Clone())
	}
	for _, task := range t.history {
		out = append(out, task.Clone())
	}
	t.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b *Task) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// GetTaskStatistics 汇总任务状态，平均完成时间只统计历史中已完成的任务
func (t *Tracker) GetTaskStatistics() Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Statistics{Active: len(t.active), Total: len(t.active) + len(t.history)}
	for _, task := range t.active {
		switch task.Status {
		case StatusRunning:
			s.Running++
		case StatusPaused:
			s.Paused++
		}
	}
	var total time.Duration
	for _, task := range t.history {
		switch task.Status {
		case StatusCompleted:
			s.Completed++
			if task.StartTime != nil && task.EndTime != nil {
				total += task.EndTime.Sub(*task.StartTime)
			}
		case StatusFailed:
			s.Failed++
		}
	}
	if s.Completed > 0 {
		s.AverageCompletionTime = total / time.Duration(s.Completed)
	}
	return s
}

func (t *Tracker) emitter(id string, handler UpdateHandler) UpdateHandler {
	return func(u Update) {
		if handler == nil {
			return
		}
		u.TaskID = id
		u.Timestamp = t.now()
		handler(u)
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
