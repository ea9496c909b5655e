package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/scoring"
	"github.com/BaSui01/agentteam/llm"
)

// SubtaskPending 新解析出的子任务状态
const SubtaskPending = "pending"

var subtaskMarker = regexp.MustCompile(`^\d+\.|^-|^•`)

// decompositionPrompts 各分解方式的提示模板，%[1]s 为原始任务，%[2]s 为团队名单
var decompositionPrompts = map[scoring.Approach]string{
	scoring.ApproachProductDevelopment: "作为项目协调员，请将以下产品开发任务分解为具体的子任务：\n\n任务：%[1]s\n\n" +
		"请按以下格式输出分解方案：\n1. 任务分解说明\n2. 具体子任务列表（每个子任务包括：任务描述、建议负责角色、预估时间）\n3. 执行顺序建议\n\n" +
		"团队成员：%[2]s",
	scoring.ApproachResearchAnalysis: "作为研究协调员，请将以下研究分析任务分解为系统化的研究步骤：\n\n任务：%[1]s\n\n" +
		"请提供：\n1. 研究方法建议\n2. 具体研究步骤\n3. 每步骤的负责角色和产出要求\n4. 数据收集和分析计划\n\n" +
		"可用专家：%[2]s",
	scoring.ApproachDesignDevelopment: "作为设计开发协调员，请制定以下设计开发任务的执行计划：\n\n任务：%[1]s\n\n" +
		"请包括：\n1. 设计阶段规划\n2. 开发阶段规划\n3. 测试与优化计划\n4. 团队协作方式\n\n" +
		"团队能力：%[2]s",
	scoring.ApproachMarketingCampaign: "作为营销活动协调员，请策划以下营销任务的执行方案：\n\n任务：%[1]s\n\n" +
		"请提供：\n1. 营销策略框架\n2. 具体执行步骤\n3. 各专业角色的职责分工\n4. 效果评估方法\n\n" +
		"团队专长：%[2]s",
	scoring.ApproachGeneralProject: "作为项目协调员，请将以下任务进行合理分解：\n\n任务：%[1]s\n\n" +
		"请提供：\n1. 任务分析和分解思路\n2. 具体子任务清单\n3. 执行顺序和依赖关系\n4. 角色分工建议\n\n" +
		"可用资源：%[2]s",
}

// DecompositionPrompt 渲染分解提示，未知方式按 general_project 处理
func DecompositionPrompt(approach scoring.Approach, task string, agents []Agent) string {
	tmpl, ok := decompositionPrompts[approach]
	if !ok {
		tmpl = decompositionPrompts[scoring.ApproachGeneralProject]
	}
	return fmt.Sprintf(tmpl, task, Roster(agents))
}

// ParseSubtasks 从协调员的自由文本中提取以编号或项目符号开头的行。
// 子任务 id 使用行号，保证同一文本解析结果稳定。
func ParseSubtasks(content string) []Subtask {
	var out []Subtask
	for i, line := range strings.Split(content, "\n") {
		loc := subtaskMarker.FindStringIndex(line)
		if loc == nil {
			continue
		}
		out = append(out, Subtask{
			ID:          fmt.Sprintf("subtask_%d", i),
			Description: strings.TrimSpace(line[loc[1]:]),
			Status:      SubtaskPending,
		})
	}
	return out
}

// AssignSubtasks 为每个子任务选出得分最高的助手，并回写 AssignedAgent
func AssignSubtasks(subtasks []Subtask, assistants []Agent) []Assignment {
	candidates := candidatesOf(assistants)
	var out []Assignment
	for i := range subtasks {
		idx, ok := scoring.SelectBest(candidates, subtasks[i].Description)
		if !ok {
			continue
		}
		best := assistants[idx]
		subtasks[i].AssignedAgent = best.ID
		out = append(out, Assignment{SubtaskID: subtasks[i].ID, AgentID: best.ID, AgentName: best.Name})
	}
	return out
}

func candidatesOf(agents []Agent) []scoring.Candidate {
	out := make([]scoring.Candidate, len(agents))
	for i, a := range agents {
		out[i] = scoring.Candidate{ID: a.ID, Capabilities: a.Capabilities}
	}
	return out
}

// coordinatorOf 返回第一个具备协调能力的成员
func coordinatorOf(s *Session) (Agent, bool) {
	for _, a := range s.Agents {
		if a.HasCapability("coordination", "project_management") {
			return a, true
		}
	}
	return Agent{}, false
}

// decompose 由协调员生成分解方案。子任务的执行只发出
// decomposed_execution_start 事件，不在此处调度。
func (o *Orchestrator) decompose(ctx context.Context, st *sessionState, text string, complexity scoring.Complexity, emit EventHandler, stream bool) {
	var (
		coordinator Agent
		found       bool
		sessionID   string
		roster      []Agent
		assistants  []Agent
	)
	st.update(func(s *Session) {
		sessionID = s.ID
		coordinator, found = coordinatorOf(s)
		if !found {
			return
		}
		s.Agents[s.agentIndex(coordinator.ID)].Status = AgentThinking
		coordinator.Status = AgentThinking
		roster = cloneAgents(s.Agents)
		assistants = s.Assistants()
	})
	if !found {
		o.logger.Debug("no coordinator, falling back to group chat", zap.String("session_id", sessionID))
		o.groupChat(ctx, st, text, emit, stream)
		return
	}

	emit(StreamEvent{
		Type:         EventDecompositionStart,
		Agent:        &coordinator,
		OriginalTask: text,
		Approach:     complexity.Approach,
	})

	plan := o.generatePlan(ctx, coordinator, roster, assistants, text, complexity.Approach)

	msg := Message{
		ID:         uuid.New().String(),
		Content:    plan.Content,
		SenderID:   coordinator.ID,
		SenderName: coordinator.Name,
		Timestamp:  o.now().UnixMilli(),
		Avatar:     coordinator.Avatar,
		Metadata: Metadata{
			Type: MessageTypeDecomposition,
			Plan: plan,
		},
	}
	st.update(func(s *Session) {
		s.Messages = append(s.Messages, msg)
		if i := s.agentIndex(coordinator.ID); i >= 0 {
			s.Agents[i].Status = AgentIdle
		}
	})
	coordinator.Status = AgentIdle

	outcome := "success"
	if plan.Degraded {
		outcome = "degraded"
	}
	o.metrics.RecordDecomposition(string(complexity.Approach), outcome)
	o.metrics.RecordMessage("decomposition")

	snap := msg.clone()
	emit(StreamEvent{Type: EventDecompositionComplete, Agent: &coordinator, Message: &snap, Plan: plan.clone()})
	emit(StreamEvent{Type: EventDecomposedExecutionStart, Plan: plan.clone()})
}

func (o *Orchestrator) generatePlan(ctx context.Context, coordinator Agent, roster, assistants []Agent, text string, approach scoring.Approach) *DecompositionPlan {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: coordinator.Instructions + "\n\n" + DecompositionPrompt(approach, text, roster)},
		{Role: llm.RoleUser, Content: text},
	}

	start := time.Now()
	out, err := o.transport.CompleteChat(ctx, coordinator.LLM, msgs)
	if err != nil {
		o.logger.Warn("task decomposition failed",
			zap.String("agent_id", coordinator.ID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return &DecompositionPlan{
			Content:     fmt.Sprintf("任务分解过程中遇到问题：%s。将按照常规流程处理。", err.Error()),
			Subtasks:    []Subtask{},
			Assignments: []Assignment{},
			Approach:    approach,
			Degraded:    true,
		}
	}

	subtasks := ParseSubtasks(out.Content)
	assignments := AssignSubtasks(subtasks, assistants)
	for _, st := range subtasks {
		if st.AssignedAgent != "" {
			o.ledger.RecordPreference(st.AssignedAgent, PreferenceAssignedSubtask, st.Description)
		}
	}
	return &DecompositionPlan{
		Content:     out.Content,
		Subtasks:    subtasks,
		Assignments: assignments,
		Approach:    approach,
	}
}

func cloneAgents(agents []Agent) []Agent {
	out := make([]Agent, len(agents))
	for i, a := range agents {
		out[i] = a.clone()
	}
	return out
}
