package longrunning

import (
	"context"
	"fmt"

	"github.com/BaSui01/agentteam/agent/catalog"
	"github.com/BaSui01/agentteam/agent/conversation"
	"github.com/BaSui01/agentteam/types"
)

// Responder 会话内单个智能体的应答能力，由 conversation.Orchestrator 实现
type Responder interface {
	GetSession(id string) (*conversation.Session, bool)
	Respond(ctx context.Context, sessionID, agentID, prompt string) (*conversation.Message, error)
}

// SessionRunner 把工作流阶段交给会话中的成员完成。
// 阶段的 Agent 字段可以是成员 ID，也可以是人设类型。
type SessionRunner struct {
	Responder Responder
}

// RunPhase 实现 PhaseRunner
func (r SessionRunner) RunPhase(ctx context.Context, sessionID string, phase catalog.Phase, topic string) (string, error) {
	session, ok := r.Responder.GetSession(sessionID)
	if !ok {
		return "", types.NotFound("session", sessionID)
	}
	agentID := ""
	for _, a := range session.Agents {
		if a.ID == phase.Agent || a.TypeID == phase.Agent {
			agentID = a.ID
			break
		}
	}
	if agentID == "" {
		return "", types.NotFound("agent", phase.Agent)
	}

	msg, err := r.Responder.Respond(ctx, sessionID, agentID, phasePrompt(phase, topic))
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func phasePrompt(phase catalog.Phase, topic string) string {
	return fmt.Sprintf("当前任务：%s\n当前阶段：%s\n请完成本阶段的工作：%s", topic, phase.Phase, phase.Description)
}
