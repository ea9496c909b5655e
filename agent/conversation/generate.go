package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/memory"
	"github.com/BaSui01/agentteam/agent/scoring"
	"github.com/BaSui01/agentteam/llm"
)

// turn 描述一次智能体应答
type turn struct {
	agent   Agent
	trigger string
	meta    Metadata
	stream  bool

	// extra 追加在历史之后的指令，Respond 使用
	extra string

	onStart  func(agent *Agent, msg *Message)
	onFinish func(agent *Agent, msg *Message)
}

// FailureContent 生成失败时写入消息的文本
func FailureContent(agentName string, err error) string {
	return fmt.Sprintf("[%s] 抱歉，我在处理您的请求时遇到了问题。错误信息：%s", agentName, err.Error())
}

// runTurn 创建占位消息并生成内容。上下文在占位消息加入会话之前组装，
// 因此模型看不到自己的空回复。
func (o *Orchestrator) runTurn(ctx context.Context, st *sessionState, t turn, emit EventHandler) Message {
	knowledge := o.relevantKnowledge(t.agent.ID, t.trigger)

	var (
		msgs      []llm.Message
		msgIndex  int
		sessionID string
	)
	meta := t.meta
	meta.Streaming = true
	placeholder := Message{
		ID:         uuid.New().String(),
		SenderID:   t.agent.ID,
		SenderName: t.agent.Name,
		Timestamp:  o.now().UnixMilli(),
		Avatar:     t.agent.Avatar,
		Metadata:   meta,
	}

	st.update(func(s *Session) {
		sessionID = s.ID
		msgs = BuildContext(t.agent, s, o.historyWindow, knowledge)
		if t.extra != "" {
			msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: t.extra})
		}
		s.CurrentSpeakerID = t.agent.ID
		if i := s.agentIndex(t.agent.ID); i >= 0 {
			s.Agents[i].Status = AgentThinking
		}
		s.Messages = append(s.Messages, placeholder)
		msgIndex = len(s.Messages) - 1
	})

	agent := t.agent.clone()
	agent.Status = AgentThinking
	if t.onStart != nil {
		snap := placeholder.clone()
		t.onStart(&agent, &snap)
	}

	var (
		genErr error
		usage  *llm.Usage
	)
	if t.stream {
		genErr = o.transport.StreamChat(ctx, t.agent.LLM, msgs, func(chunk string) {
			o.appendChunk(st, msgIndex, chunk, emit)
		})
		if genErr != nil {
			o.appendChunk(st, msgIndex, FailureContent(t.agent.Name, genErr), emit)
		}
	} else {
		out, err := o.transport.CompleteChat(ctx, t.agent.LLM, msgs)
		genErr = err
		st.update(func(s *Session) {
			m := &s.Messages[msgIndex]
			if err != nil {
				m.Content = FailureContent(t.agent.Name, err)
				return
			}
			m.Content = out.Content
			m.Metadata.Model = t.agent.LLM.Model
			if out.Usage != nil {
				m.Metadata.Tokens = out.Usage.TotalTokens
			}
			m.Metadata.Cost = llm.EstimateCost(out.Usage)
		})
		if out != nil {
			usage = out.Usage
		}
	}

	var final Message
	st.update(func(s *Session) {
		m := &s.Messages[msgIndex]
		m.Metadata.Streaming = false
		if genErr != nil {
			m.Metadata.Error = true
		}
		if i := s.agentIndex(t.agent.ID); i >= 0 {
			s.Agents[i].Status = AgentIdle
		}
		final = m.clone()
	})
	agent.Status = AgentIdle

	if genErr != nil {
		o.logger.Warn("agent response failed",
			zap.String("session_id", sessionID),
			zap.String("agent_id", t.agent.ID),
			zap.Bool("stream", t.stream),
			zap.Error(genErr))
	}
	o.remember(sessionID, t, final, genErr == nil, usage)

	if t.onFinish != nil {
		snap := final.clone()
		t.onFinish(&agent, &snap)
	}
	return final
}

func (o *Orchestrator) appendChunk(st *sessionState, idx int, chunk string, emit EventHandler) {
	var snap Message
	st.update(func(s *Session) {
		m := &s.Messages[idx]
		m.Content += chunk
		snap = m.clone()
	})
	emit(StreamEvent{
		Type:        EventContentUpdate,
		Message:     &snap,
		Content:     chunk,
		FullContent: snap.Content,
	})
}

// relevantKnowledge 用整句与其中的主题词检索智能体的知识库。
// 只读，没有记忆的智能体不会在账本中留下条目。
func (o *Orchestrator) relevantKnowledge(agentID, trigger string) []memory.KnowledgeEntry {
	ks, ok := o.ledger.Lookup(agentID)
	if !ok {
		return nil
	}
	queries := append([]string{trigger}, scoring.Keywords(trigger)...)
	return ks.SearchAny(queries, knowledgeHitLimit)
}

// remember 把应答写入智能体的记忆。会话已删除时不再写入，
// 否则删除前发起的应答会把记忆重新带回账本。
func (o *Orchestrator) remember(sessionID string, t turn, msg Message, ok bool, usage *llm.Usage) {
	kind := "response"
	if !ok {
		kind = "error"
	}
	o.metrics.RecordMessage(kind)

	if _, live := o.store.state(sessionID); !live {
		o.logger.Debug("session deleted before response finished, skipping memory",
			zap.String("session_id", sessionID),
			zap.String("agent_id", t.agent.ID))
		return
	}

	now := o.now()
	o.ledger.RecordConversation(t.agent.ID, memory.ConversationSnapshot{
		SessionID: sessionID,
		Trigger:   t.trigger,
		Reply:     msg.Content,
		Timestamp: now,
	})
	o.ledger.RecordExperience(t.agent.ID, memory.ExperienceEvent{
		Kind:      "response",
		Detail:    sessionID,
		Success:   ok,
		Timestamp: now,
	})
	if ok && msg.Content != "" {
		o.ledger.Knowledge(t.agent.ID).Add("conversation", msg.Content)
	}

	if usage != nil {
		o.logger.Debug("agent response usage",
			zap.String("agent_id", t.agent.ID),
			zap.Int("tokens", usage.TotalTokens),
			zap.Float64("cost", llm.EstimateCost(usage)))
	}
}

// pause 在顺序模式的智能体之间等待，d 为 0 时立即返回
func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if err := o.sleep(ctx, d); err != nil {
		o.logger.Debug("sequential delay interrupted", zap.Error(err))
	}
}
