package conversation

import (
	"strings"

	"github.com/BaSui01/agentteam/agent/memory"
	"github.com/BaSui01/agentteam/llm"
)

const (
	defaultHistoryWindow = 10
	knowledgeHitLimit    = 3
)

// BuildContext 组装一次生成所需的消息列表：
// 系统提示（指令 + 团队名单），最近 window 条历史，以及可选的知识提示。
func BuildContext(agent Agent, session *Session, window int, knowledge []memory.KnowledgeEntry) []llm.Message {
	if window <= 0 {
		window = defaultHistoryWindow
	}

	msgs := make([]llm.Message, 0, window+2)
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleSystem,
		Content: agent.Instructions + "\n\n当前团队成员：" + Roster(session.Agents),
	})

	history := session.Messages
	if len(history) > window {
		history = history[len(history)-window:]
	}
	for _, m := range history {
		role := llm.RoleAssistant
		if m.IsFromHuman {
			role = llm.RoleUser
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.SenderName + ": " + m.Content})
	}

	if len(knowledge) > 0 {
		var b strings.Builder
		b.WriteString("相关记忆：")
		for _, k := range knowledge {
			b.WriteString("\n- [")
			b.WriteString(k.Category)
			b.WriteString("] ")
			b.WriteString(k.Payload)
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: b.String()})
	}
	return msgs
}

// Roster 渲染团队名单，格式为 name(cap1, cap2)，以 ", " 连接
func Roster(agents []Agent) string {
	parts := make([]string, 0, len(agents))
	for _, a := range agents {
		parts = append(parts, a.Name+"("+strings.Join(a.Capabilities, ", ")+")")
	}
	return strings.Join(parts, ", ")
}
