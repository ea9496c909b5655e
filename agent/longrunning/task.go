package longrunning

import (
	"slices"
	"time"

	"github.com/BaSui01/agentteam/agent/catalog"
)

// TaskKind 任务类型，决定执行方式
type TaskKind string

const (
	KindGeneral       TaskKind = "general"
	KindWorkflow      TaskKind = "workflow"
	KindCollaboration TaskKind = "collaboration"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusPaused    TaskStatus = "paused"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Terminal 完成与失败是终态
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Complexity 通用任务的复杂度提示，决定每步的模拟耗时
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Checkpoint 标签
const (
	TagStep   = "step"
	TagPhase  = "phase"
	TagPaused = "paused"
)

// PhaseResult 已完成阶段或步骤的产出
type PhaseResult struct {
	Index       int       `json:"index"`
	Name        string    `json:"name"`
	Agent       string    `json:"agent,omitempty"`
	Output      string    `json:"output"`
	CompletedAt time.Time `json:"completed_at"`
}

// Task 长时任务。CurrentIndex 指向下一个待执行的阶段或步骤。
type Task struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           TaskKind        `json:"kind"`
	Phases         []catalog.Phase `json:"phases,omitempty"`
	Steps          []string        `json:"steps,omitempty"`
	CurrentIndex   int             `json:"current_index"`
	Status         TaskStatus      `json:"status"`
	Progress       float64         `json:"progress"`
	CreatedAt      time.Time       `json:"created_at"`
	StartTime      *time.Time      `json:"start_time,omitempty"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	AssignedAgents []string        `json:"assigned_agents,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	Topic          string          `json:"topic,omitempty"`
	Complexity     Complexity      `json:"complexity,omitempty"`
	Results        []PhaseResult   `json:"results,omitempty"`
	Error          string          `json:"error,omitempty"`
	Checkpoints    []Checkpoint    `json:"checkpoints"`
}

// Checkpoint 任务状态快照。Snapshot 创建后不再修改，可以被多个副本共享。
type Checkpoint struct {
	ID        string    `json:"id"`
	Tag       string    `json:"tag"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  *Task     `json:"snapshot"`
}

// units 任务包含的执行单元数
func (t *Task) units() int {
	switch t.Kind {
	case KindWorkflow:
		return len(t.Phases)
	case KindCollaboration:
		return 1
	default:
		if len(t.Steps) > 0 {
			return len(t.Steps)
		}
		return len(t.Phases)
	}
}

// stepName 通用任务第 i 步的名称，没有步骤时回落到阶段
func (t *Task) stepName(i int) string {
	if len(t.Steps) > 0 {
		return t.Steps[i]
	}
	return t.Phases[i].Phase
}

// topic 协作话题，未设置时使用任务名
func (t *Task) topic() string {
	if t.Topic != "" {
		return t.Topic
	}
	return t.Name
}

// Clone 深拷贝任务，检查点快照按引用共享
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	out.Phases = slices.Clone(t.Phases)
	out.Steps = slices.Clone(t.Steps)
	out.AssignedAgents = slices.Clone(t.AssignedAgents)
	out.Results = slices.Clone(t.Results)
	out.Checkpoints = slices.Clone(t.Checkpoints)
	if t.StartTime != nil {
		st := *t.StartTime
		out.StartTime = &st
	}
	if t.EndTime != nil {
		et := *t.EndTime
		out.EndTime = &et
	}
	return &out
}

// snapshot 不含检查点列表的深拷贝
func (t *Task) snapshot() *Task {
	out := t.Clone()
	out.Checkpoints = nil
	return out
}

// UpdateType 进度事件类型
type UpdateType string

const (
	UpdateTaskStarted         UpdateType = "task_started"
	UpdateTaskCompleted       UpdateType = "task_completed"
	UpdateTaskFailed          UpdateType = "task_failed"
	UpdateTaskResumed         UpdateType = "task_resumed"
	UpdatePhaseStarted        UpdateType = "phase_started"
	UpdatePhaseCompleted      UpdateType = "phase_completed"
	UpdateStepStarted         UpdateType = "step_started"
	UpdateStepCompleted       UpdateType = "step_completed"
	UpdateCollaborationUpdate UpdateType = "collaboration_update"
)

// Update 推送给调用方的进度事件，Task 为快照
type Update struct {
	Type      UpdateType `json:"type"`
	TaskID    string     `json:"task_id"`
	Timestamp time.Time  `json:"timestamp"`
	Index     int        `json:"index"`
	Name      string     `json:"name,omitempty"`
	Output    string     `json:"output,omitempty"`
	Progress  float64    `json:"progress"`
	Error     string     `json:"error,omitempty"`
	Task      *Task      `json:"task,omitempty"`
}

// UpdateHandler 进度回调，同步调用
type UpdateHandler func(Update)

// Statistics 任务统计
type Statistics struct {
	Active                int           `json:"active"`
	Completed             int           `json:"completed"`
	Failed                int           `json:"failed"`
	Paused                int           `json:"paused"`
	Running               int           `json:"running"`
	Total                 int           `json:"total"`
	AverageCompletionTime time.Duration `json:"average_completion_time"`
}
