package conversation

import (
	"context"

	"github.com/BaSui01/agentteam/agent/scoring"
)

// roundRobin 助手轮流发言，turnCount 在生成前递增
func (o *Orchestrator) roundRobin(ctx context.Context, st *sessionState, text string, emit EventHandler, stream bool) {
	var (
		speaker Agent
		ok      bool
	)
	st.update(func(s *Session) {
		assistants := s.Assistants()
		if len(assistants) == 0 {
			return
		}
		speaker = assistants[s.TurnCount%len(assistants)]
		ok = true
		s.CurrentSpeakerID = speaker.ID
		s.TurnCount++
	})
	if !ok {
		return
	}

	o.runTurn(ctx, st, turn{
		agent:   speaker,
		trigger: text,
		stream:  stream,
		onStart: func(a *Agent, m *Message) {
			emit(StreamEvent{Type: EventAgentStart, Agent: a, Message: m})
		},
		onFinish: func(a *Agent, m *Message) {
			emit(StreamEvent{Type: EventAgentComplete, Agent: a, Message: m})
		},
	}, emit)
}

// groupChat 由评分选出一个助手，没有助手时不应答
func (o *Orchestrator) groupChat(ctx context.Context, st *sessionState, text string, emit EventHandler, stream bool) {
	var assistants []Agent
	st.view(func(s *Session) { assistants = s.Assistants() })
	selected, ok := selectAgent(assistants, text)
	if !ok {
		return
	}
	o.ledger.RecordPreference(selected.ID, PreferenceSelectedFor, text)

	o.runTurn(ctx, st, turn{
		agent:   selected,
		trigger: text,
		meta:    Metadata{SelectedByAI: true},
		stream:  stream,
		onStart: func(a *Agent, m *Message) {
			sel := a.clone()
			emit(StreamEvent{Type: EventAgentSelected, Agent: &sel, Reason: SelectionReason})
			emit(StreamEvent{Type: EventAgentStart, Agent: a, Message: m})
		},
		onFinish: func(a *Agent, m *Message) {
			emit(StreamEvent{Type: EventAgentComplete, Agent: a, Message: m})
		},
	}, emit)
}

// sequential 所有助手按名单顺序依次发言
func (o *Orchestrator) sequential(ctx context.Context, st *sessionState, text, replyTo string, emit EventHandler, stream bool) {
	var assistants []Agent
	st.view(func(s *Session) { assistants = s.Assistants() })

	delay := o.sequentialDelay
	if stream {
		delay = o.sequentialStreamDelay
	}
	total := len(assistants)
	for i, agent := range assistants {
		index := i
		o.runTurn(ctx, st, turn{
			agent:   agent,
			trigger: text,
			meta:    Metadata{SequenceIndex: &index, TotalAgents: total, ReplyTo: replyTo},
			stream:  stream,
			onStart: func(a *Agent, m *Message) {
				emit(StreamEvent{Type: EventSequenceStart, Agent: a, Message: m, Index: index, Total: total})
			},
			onFinish: func(a *Agent, m *Message) {
				emit(StreamEvent{Type: EventSequenceComplete, Agent: a, Message: m, Index: index, Total: total})
			},
		}, emit)

		if i < total-1 {
			o.pause(ctx, delay)
		}
	}
}

// selectAgent 在助手中选出得分最高者，无人得分时回退到第一个助手
func selectAgent(assistants []Agent, text string) (Agent, bool) {
	if len(assistants) == 0 {
		return Agent{}, false
	}
	if idx, ok := scoring.SelectBest(candidatesOf(assistants), text); ok {
		return assistants[idx], true
	}
	return assistants[0], true
}
