package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/agentteam/agent/catalog"
	"github.com/BaSui01/agentteam/agent/memory"
	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/testutil"
	"github.com/BaSui01/agentteam/testutil/mocks"
	"github.com/BaSui01/agentteam/types"
)

// complexMessage 命中多步骤、领域、综合与项目关键词，得分 100
const complexMessage = "请帮我开发一个完整的产品项目，第一步做需求，然后做设计和测试"

// ----------------------------------------------------------------------------
// helpers
// ----------------------------------------------------------------------------

func newOrchestrator(t *testing.T, tr llm.Transport, tweak ...func(*Options)) *Orchestrator {
	t.Helper()
	opts := DefaultOptions()
	opts.Transport = tr
	opts.Sleep = testutil.NoSleep
	for _, fn := range tweak {
		fn(&opts)
	}
	o, err := New(opts)
	require.NoError(t, err)
	return o
}

func literal(name string, caps ...string) MemberConfig {
	return MemberConfig{
		Type:         "custom_" + name,
		Name:         name,
		Instructions: name + "的指令",
		Capabilities: caps,
		LLM:          llm.Config{Model: "test-model"},
	}
}

func newTeam(t *testing.T, o *Orchestrator, workflow WorkflowPolicy, members ...MemberConfig) *Session {
	t.Helper()
	s, err := o.CreateAgentTeam(TeamConfig{Name: "测试团队", Workflow: workflow, Members: members})
	require.NoError(t, err)
	return s
}

type recorder struct {
	mu     sync.Mutex
	events []StreamEvent
}

func (r *recorder) handle(ev StreamEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) ofType(typ EventType) []StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StreamEvent
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// ----------------------------------------------------------------------------
// construction
// ----------------------------------------------------------------------------

func TestNew_RequiresTransport(t *testing.T) {
	t.Parallel()

	_, err := New(Options{})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrConfiguration))
}

func TestCreateAgentTeam_EmptyMembers(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	_, err := o.CreateAgentTeam(TeamConfig{Name: "空团队"})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrConfiguration))
	assert.Empty(t, o.ListActiveSessions())
}

func TestCreateAgentTeam_CatalogPersonas(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	s, err := o.CreateAgentTeam(TeamConfig{
		Name: "分析组",
		Members: []MemberConfig{
			{Type: "analyst"},
			{Type: "coder", CustomInstructions: "只写 Go"},
			{Type: "user_proxy"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, PolicyRoundRobin, s.Workflow)
	assert.Equal(t, 10, s.MaxTurns)
	assert.Equal(t, SessionActive, s.Status)
	assert.Zero(t, s.TurnCount)
	require.Len(t, s.Agents, 3)

	analyst := s.Agents[0]
	assert.Equal(t, "数据分析师", analyst.Name)
	assert.Equal(t, catalog.RoleAssistant, analyst.Role)
	assert.Contains(t, analyst.Capabilities, "data_analysis")
	assert.Equal(t, AgentIdle, analyst.Status)

	assert.Equal(t, "只写 Go", s.Agents[1].Instructions)
	assert.Equal(t, catalog.RoleUserProxy, s.Agents[2].Role)

	ids := map[string]bool{}
	for _, a := range s.Agents {
		assert.NotEmpty(t, a.ID)
		ids[a.ID] = true
	}
	assert.Len(t, ids, 3)

	got, ok := o.GetSession(s.ID)
	require.True(t, ok)
	assert.Equal(t, s.Name, got.Name)
}

func TestCreateAgentTeam_LiteralMember(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	s, err := o.CreateAgentTeam(TeamConfig{
		Workflow: PolicyGroupChat,
		MaxTurns: 3,
		Members: []MemberConfig{{
			Type:         "astronaut",
			Name:         "宇航员",
			Avatar:       "🚀",
			Instructions: "你在太空",
			Capabilities: []string{"research"},
		}},
	})
	require.NoError(t, err)

	a := s.Agents[0]
	assert.Equal(t, "宇航员", a.Name)
	assert.Equal(t, "🚀", a.Avatar)
	assert.Equal(t, "你在太空", a.Instructions)
	assert.Equal(t, catalog.RoleAssistant, a.Role)
	assert.Equal(t, []string{"research"}, a.Capabilities)
	assert.Equal(t, PolicyGroupChat, s.Workflow)
	assert.Equal(t, 3, s.MaxTurns)
}

func TestCreateTeamFromTemplate(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	cfg := llm.Config{Model: "gpt-test", Endpoint: "http://llm.local"}

	_, err := o.CreateTeamFromTemplate("does_not_exist", "", cfg)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrNotFound))

	s, err := o.CreateTeamFromTemplate("product_development", "", cfg)
	require.NoError(t, err)

	tmpl, _ := catalog.Default().Template("product_development")
	assert.Equal(t, tmpl.Name, s.Name)
	assert.Equal(t, PolicySequential, s.Workflow)
	assert.Equal(t, "product_development", s.Metadata.TemplateID)
	assert.Equal(t, tmpl.Phases, s.Metadata.Phases)
	assert.Equal(t, tmpl.EstimatedTime, s.Metadata.EstimatedTime)
	assert.Equal(t, tmpl.Tags, s.Metadata.Tags)
	require.Len(t, s.Agents, len(tmpl.Members))
	for _, a := range s.Agents {
		assert.Equal(t, cfg, a.LLM)
	}

	named, err := o.CreateTeamFromTemplate("product_development", "我的团队", cfg)
	require.NoError(t, err)
	assert.Equal(t, "我的团队", named.Name)
}

// ----------------------------------------------------------------------------
// session registry
// ----------------------------------------------------------------------------

func TestSendMessage_UnknownSession(t *testing.T) {
	t.Parallel()

	tr := mocks.NewMockTransport()
	o := newOrchestrator(t, tr)
	existing := newTeam(t, o, PolicyRoundRobin, literal("甲"))

	_, err := o.SendMessage(context.Background(), "missing", "你好")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrNotFound))

	after, ok := o.GetSession(existing.ID)
	require.True(t, ok)
	assert.Empty(t, after.Messages)
	assert.Zero(t, after.TurnCount)
	assert.Zero(t, tr.CallCount())
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	first := newTeam(t, o, PolicyRoundRobin, literal("甲"))
	second := newTeam(t, o, PolicyRoundRobin, literal("乙"))

	list := o.ListActiveSessions()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	assert.True(t, o.DeleteSession(first.ID))
	assert.False(t, o.DeleteSession(first.ID))
	_, ok := o.GetSession(first.ID)
	assert.False(t, ok)
	assert.Len(t, o.ListActiveSessions(), 1)
}

func TestGetSession_ReturnsSnapshot(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	s := newTeam(t, o, PolicyRoundRobin, literal("甲", "coding"))

	snap, _ := o.GetSession(s.ID)
	snap.Name = "改名"
	snap.Agents[0].Capabilities[0] = "hacked"

	again, _ := o.GetSession(s.ID)
	assert.Equal(t, "测试团队", again.Name)
	assert.Equal(t, []string{"coding"}, again.Agents[0].Capabilities)
}

// ----------------------------------------------------------------------------
// human message
// ----------------------------------------------------------------------------

func TestSendMessage_HumanMessage(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))

	out, err := o.SendMessage(context.Background(), s.ID, "你好")
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	human := out.Messages[0]
	assert.Equal(t, "你好", human.Content)
	assert.Equal(t, HumanSenderID, human.SenderID)
	assert.Equal(t, "我", human.SenderName)
	assert.Equal(t, "👤", human.Avatar)
	assert.True(t, human.IsFromHuman)

	out, err = o.SendMessage(context.Background(), s.ID, "来自机器人", WithSender("bot-7"))
	require.NoError(t, err)
	bot := out.Messages[2]
	assert.Equal(t, "bot-7", bot.SenderID)
	assert.Equal(t, "bot-7", bot.SenderName)
	assert.Equal(t, "🤖", bot.Avatar)
	assert.False(t, bot.IsFromHuman)
}

// ----------------------------------------------------------------------------
// round robin
// ----------------------------------------------------------------------------

func TestRoundRobin_FourthResponderWrapsAround(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport().WithResponse("收到"))
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"), literal("乙"), literal("丙"))

	var responders []string
	for i := 0; i < 4; i++ {
		out, err := o.SendMessage(context.Background(), s.ID, fmt.Sprintf("消息%d", i))
		require.NoError(t, err)
		last := out.Messages[len(out.Messages)-1]
		responders = append(responders, last.SenderID)
		assert.Equal(t, last.SenderID, out.CurrentSpeakerID)
	}

	final, _ := o.GetSession(s.ID)
	assert.Equal(t, 4, final.TurnCount)
	assert.Equal(t, responders[0], responders[3])
	assert.Equal(t, s.Agents[0].ID, responders[0])
	assert.Equal(t, s.Agents[1].ID, responders[1])
	assert.Equal(t, s.Agents[2].ID, responders[2])
}

func TestRoundRobin_OrderProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "assistants")
		k := rapid.IntRange(1, 12).Draw(rt, "messages")

		o, err := New(Options{Transport: mocks.NewMockTransport(), Sleep: testutil.NoSleep})
		if err != nil {
			rt.Fatal(err)
		}
		members := []MemberConfig{{Type: "user_proxy"}}
		for i := 0; i < n; i++ {
			members = append(members, literal(fmt.Sprintf("a%d", i)))
		}
		s, err := o.CreateAgentTeam(TeamConfig{Members: members})
		if err != nil {
			rt.Fatal(err)
		}
		assistants := s.Assistants()

		for i := 0; i < k; i++ {
			out, err := o.SendMessage(context.Background(), s.ID, "继续")
			if err != nil {
				rt.Fatal(err)
			}
			last := out.Messages[len(out.Messages)-1]
			if want := assistants[i%n].ID; last.SenderID != want {
				rt.Fatalf("message %d answered by %s, want %s", i, last.SenderID, want)
			}
			if out.TurnCount != i+1 {
				rt.Fatalf("turnCount = %d, want %d", out.TurnCount, i+1)
			}
		}
	})
}

func TestRoundRobin_Events(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport().WithStreamChunks("你", "好"))
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))

	rec := &recorder{}
	_, err := o.SendMessage(context.Background(), s.ID, "嗨", WithEventHandler(rec.handle))
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventAgentStart, EventContentUpdate, EventContentUpdate, EventAgentComplete}, rec.types())
	for _, ev := range rec.events {
		assert.Equal(t, s.ID, ev.SessionID)
		assert.False(t, ev.Timestamp.IsZero())
	}
	start := rec.events[0]
	require.NotNil(t, start.Agent)
	assert.Equal(t, AgentThinking, start.Agent.Status)
	assert.Equal(t, "", start.Message.Content)
	assert.True(t, start.Message.Metadata.Streaming)

	complete := rec.events[3]
	assert.Equal(t, AgentIdle, complete.Agent.Status)
	assert.Equal(t, "你好", complete.Message.Content)
	assert.False(t, complete.Message.Metadata.Streaming)
}

func TestNoAssistants_SessionUnchanged(t *testing.T) {
	t.Parallel()

	for _, wf := range []WorkflowPolicy{PolicyRoundRobin, PolicyGroupChat, PolicySequential} {
		tr := mocks.NewMockTransport()
		o := newOrchestrator(t, tr)
		s, err := o.CreateAgentTeam(TeamConfig{Workflow: wf, Members: []MemberConfig{{Type: "user_proxy"}}})
		require.NoError(t, err)

		out, err := o.SendMessage(context.Background(), s.ID, "有人吗")
		require.NoError(t, err, wf)
		assert.Len(t, out.Messages, 1, wf)
		assert.Zero(t, out.TurnCount, wf)
		assert.Zero(t, tr.CallCount(), wf)
	}
}

func TestUnknownWorkflow_FallsBackToRoundRobin(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	s := newTeam(t, o, WorkflowPolicy("chaos"), literal("甲"), literal("乙"))

	out, err := o.SendMessage(context.Background(), s.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, out.TurnCount)
	assert.Equal(t, s.Agents[0].ID, out.Messages[1].SenderID)
}

// ----------------------------------------------------------------------------
// group chat
// ----------------------------------------------------------------------------

func TestGroupChat_SelectsBestScoringAssistant(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	s := newTeam(t, o, PolicyGroupChat, literal("分析", "data_analysis"), literal("程序", "coding"))

	rec := &recorder{}
	out, err := o.SendMessage(context.Background(), s.ID, "请帮我写一段代码", WithEventHandler(rec.handle))
	require.NoError(t, err)

	reply := out.Messages[1]
	assert.Equal(t, s.Agents[1].ID, reply.SenderID)
	assert.True(t, reply.Metadata.SelectedByAI)
	assert.Zero(t, out.TurnCount)

	assert.Equal(t, []EventType{EventAgentSelected, EventAgentStart, EventContentUpdate, EventAgentComplete}, rec.types())
	assert.Equal(t, SelectionReason, rec.events[0].Reason)
	assert.Equal(t, s.Agents[1].ID, rec.events[0].Agent.ID)

	prefs := o.Ledger().Preferences(s.Agents[1].ID)
	require.Len(t, prefs, 1)
	assert.Equal(t, PreferenceSelectedFor, prefs[0].Key)
	assert.Equal(t, "请帮我写一段代码", prefs[0].Value)
	assert.Empty(t, o.Ledger().Preferences(s.Agents[0].ID))
}

func TestGroupChat_TieGoesToFirstAssistant(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	s := newTeam(t, o, PolicyGroupChat,
		MemberConfig{Type: "user_proxy"},
		literal("甲", "coding"),
		literal("乙", "research"))

	out, err := o.SendMessage(context.Background(), s.ID, "今天天气不错")
	require.NoError(t, err)
	assert.Equal(t, s.Agents[1].ID, out.Messages[1].SenderID)
}

// ----------------------------------------------------------------------------
// sequential
// ----------------------------------------------------------------------------

func TestSequential_AllAssistantsInOrder(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		delays []time.Duration
	)
	sleep := func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
		return nil
	}
	o := newOrchestrator(t, mocks.NewMockTransport(), func(opts *Options) { opts.Sleep = sleep })
	s := newTeam(t, o, PolicySequential, literal("甲"), MemberConfig{Type: "user_proxy"}, literal("乙"), literal("丙"))

	rec := &recorder{}
	out, err := o.SendMessage(context.Background(), s.ID, "大家好", WithEventHandler(rec.handle))
	require.NoError(t, err)

	require.Len(t, out.Messages, 4)
	human := out.Messages[0]
	assistants := out.Assistants()
	for i, m := range out.Messages[1:] {
		assert.Equal(t, assistants[i].ID, m.SenderID)
		require.NotNil(t, m.Metadata.SequenceIndex)
		assert.Equal(t, i, *m.Metadata.SequenceIndex)
		assert.Equal(t, 3, m.Metadata.TotalAgents)
		assert.Equal(t, human.ID, m.Metadata.ReplyTo)
		assert.False(t, m.Metadata.Streaming)
	}
	assert.Equal(t, assistants[2].ID, out.CurrentSpeakerID)
	assert.Zero(t, out.TurnCount)

	starts := rec.ofType(EventSequenceStart)
	completes := rec.ofType(EventSequenceComplete)
	require.Len(t, starts, 3)
	require.Len(t, completes, 3)
	for i := range starts {
		assert.Equal(t, i, starts[i].Index)
		assert.Equal(t, 3, starts[i].Total)
		assert.Equal(t, i, completes[i].Index)
	}

	assert.Equal(t, []time.Duration{300 * time.Millisecond, 300 * time.Millisecond}, delays)
}

func TestSequential_BlockingUsesLongerDelay(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	o := newOrchestrator(t, mocks.NewMockTransport(), func(opts *Options) {
		opts.Sleep = func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}
	})
	s := newTeam(t, o, PolicySequential, literal("甲"), literal("乙"))

	_, err := o.SendMessage(context.Background(), s.ID, "大家好", WithBlocking())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, delays)
}

func TestSequential_ZeroDelaySkipsSleep(t *testing.T) {
	t.Parallel()

	slept := false
	o := newOrchestrator(t, mocks.NewMockTransport(), func(opts *Options) {
		opts.SequentialStreamDelay = 0
		opts.Sleep = func(context.Context, time.Duration) error {
			slept = true
			return nil
		}
	})
	s := newTeam(t, o, PolicySequential, literal("甲"), literal("乙"))

	_, err := o.SendMessage(context.Background(), s.ID, "大家好")
	require.NoError(t, err)
	assert.False(t, slept)
}

// ----------------------------------------------------------------------------
// streaming
// ----------------------------------------------------------------------------

func TestStreaming_ConcatenationProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		chunks := rapid.SliceOfN(rapid.StringN(1, 6, -1), 1, 12).Draw(rt, "chunks")

		o, err := New(Options{Transport: mocks.NewMockTransport().WithStreamChunks(chunks...), Sleep: testutil.NoSleep})
		if err != nil {
			rt.Fatal(err)
		}
		s, err := o.CreateAgentTeam(TeamConfig{Members: []MemberConfig{literal("甲")}})
		if err != nil {
			rt.Fatal(err)
		}

		var (
			got          strings.Builder
			streamingOff int
		)
		_, err = o.SendMessage(context.Background(), s.ID, "讲个故事", WithEventHandler(func(ev StreamEvent) {
			switch ev.Type {
			case EventContentUpdate:
				got.WriteString(ev.Content)
				if ev.FullContent != got.String() {
					rt.Fatalf("fullContent %q, want %q", ev.FullContent, got.String())
				}
				if !ev.Message.Metadata.Streaming {
					rt.Fatal("streaming flag cleared before completion")
				}
			case EventAgentComplete:
				if ev.Message.Metadata.Streaming {
					rt.Fatal("streaming flag still set at completion")
				}
				streamingOff++
			}
		}))
		if err != nil {
			rt.Fatal(err)
		}

		final, _ := o.GetSession(s.ID)
		reply := final.Messages[1]
		if reply.Content != strings.Join(chunks, "") || reply.Content != got.String() {
			rt.Fatalf("content %q, chunks %q", reply.Content, chunks)
		}
		if streamingOff != 1 {
			rt.Fatalf("agent_complete emitted %d times", streamingOff)
		}
	})
}

func TestStreaming_FailureAppendsErrorChunk(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	tr := mocks.NewMockTransport().WithStreamFunc(func(_ context.Context, _ llm.Config, _ []llm.Message, onChunk func(string)) error {
		onChunk("部分")
		return boom
	})
	o := newOrchestrator(t, tr)
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))

	rec := &recorder{}
	out, err := o.SendMessage(context.Background(), s.ID, "你好", WithEventHandler(rec.handle))
	require.NoError(t, err)

	reply := out.Messages[1]
	want := "部分" + FailureContent("甲", boom)
	assert.Equal(t, want, reply.Content)
	assert.Equal(t, "[甲] 抱歉，我在处理您的请求时遇到了问题。错误信息：connection reset", FailureContent("甲", boom))
	assert.True(t, reply.Metadata.Error)
	assert.False(t, reply.Metadata.Streaming)
	assert.Equal(t, AgentIdle, out.Agents[0].Status)

	updates := rec.ofType(EventContentUpdate)
	require.Len(t, updates, 2)
	assert.Equal(t, want, updates[1].FullContent)
}

// ----------------------------------------------------------------------------
// blocking
// ----------------------------------------------------------------------------

func TestBlocking_RecordsUsage(t *testing.T) {
	t.Parallel()

	tr := mocks.NewMockTransport().WithResponse("完整回复").WithTokenUsage(120)
	o := newOrchestrator(t, tr)
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))

	out, err := o.SendMessage(context.Background(), s.ID, "你好", WithBlocking())
	require.NoError(t, err)

	reply := out.Messages[1]
	assert.Equal(t, "完整回复", reply.Content)
	assert.Equal(t, "test-model", reply.Metadata.Model)
	assert.Equal(t, 120, reply.Metadata.Tokens)
	assert.InDelta(t, 0.0012, reply.Metadata.Cost, 1e-12)
	assert.False(t, reply.Metadata.Error)
	assert.False(t, reply.Metadata.Streaming)

	call, ok := tr.LastCall()
	require.True(t, ok)
	assert.False(t, call.Stream)
}

func TestBlocking_FailureContent(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport().WithError(types.Transport("LLM API 调用失败: 500 Internal Server Error")))
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))

	out, err := o.SendMessage(context.Background(), s.ID, "你好", WithBlocking())
	require.NoError(t, err)

	reply := out.Messages[1]
	assert.True(t, reply.Metadata.Error)
	assert.True(t, strings.HasPrefix(reply.Content, "[甲] 抱歉，我在处理您的请求时遇到了问题。错误信息："))
	assert.Contains(t, reply.Content, "500")
	assert.Zero(t, reply.Metadata.Tokens)
}

// ----------------------------------------------------------------------------
// decomposition
// ----------------------------------------------------------------------------

func TestDecomposition_Plan(t *testing.T) {
	t.Parallel()

	plan := "分解方案如下\n1. 需求分析\n- 界面设计\n• 编码实现\n以上"
	tr := mocks.NewMockTransport().WithResponse(plan)
	o := newOrchestrator(t, tr)
	s := newTeam(t, o, PolicyRoundRobin,
		literal("协调", "project_management", "coordination"),
		literal("程序", "coding"),
		literal("设计", "ui_ux_design"))

	rec := &recorder{}
	out, err := o.SendMessage(context.Background(), s.ID, complexMessage, WithEventHandler(rec.handle))
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventDecompositionStart, EventDecompositionComplete, EventDecomposedExecutionStart}, rec.types())
	start := rec.events[0]
	assert.Equal(t, complexMessage, start.OriginalTask)
	assert.Equal(t, "product_development", string(start.Approach))
	assert.Equal(t, AgentThinking, start.Agent.Status)

	assert.Zero(t, out.TurnCount)
	require.Len(t, out.Messages, 2)
	msg := out.Messages[1]
	coordinator := out.Agents[0]
	assert.Equal(t, coordinator.ID, msg.SenderID)
	assert.Equal(t, plan, msg.Content)
	assert.Equal(t, MessageTypeDecomposition, msg.Metadata.Type)
	assert.Equal(t, AgentIdle, coordinator.Status)

	require.NotNil(t, msg.Metadata.Plan)
	subtasks := msg.Metadata.Plan.Subtasks
	require.Len(t, subtasks, 3)
	assert.Equal(t, "subtask_1", subtasks[0].ID)
	assert.Equal(t, "需求分析", subtasks[0].Description)
	assert.Equal(t, "subtask_2", subtasks[1].ID)
	assert.Equal(t, "界面设计", subtasks[1].Description)
	assert.Equal(t, "subtask_3", subtasks[2].ID)
	for _, st := range subtasks {
		assert.Equal(t, SubtaskPending, st.Status)
		assert.NotEmpty(t, st.AssignedAgent)
	}
	assignments := msg.Metadata.Plan.Assignments
	require.Len(t, assignments, 3)
	assert.Equal(t, out.Agents[2].ID, assignments[1].AgentID)
	assert.Equal(t, "设计", assignments[1].AgentName)

	var assigned []string
	for _, p := range o.Ledger().Preferences(out.Agents[2].ID) {
		assert.Equal(t, PreferenceAssignedSubtask, p.Key)
		assigned = append(assigned, p.Value)
	}
	assert.Contains(t, assigned, "界面设计")

	require.NotNil(t, rec.events[1].Plan)
	assert.Len(t, rec.events[2].Plan.Subtasks, 3)

	call, ok := tr.LastCall()
	require.True(t, ok)
	require.Len(t, call.Messages, 2)
	assert.Equal(t, llm.RoleSystem, call.Messages[0].Role)
	assert.True(t, strings.HasPrefix(call.Messages[0].Content, "协调的指令\n\n作为项目协调员，请将以下产品开发任务分解为具体的子任务："))
	assert.Contains(t, call.Messages[0].Content, "任务："+complexMessage)
	assert.Contains(t, call.Messages[0].Content, "团队成员：协调(project_management, coordination), 程序(coding), 设计(ui_ux_design)")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: complexMessage}, call.Messages[1])
}

func TestDecomposition_FailureDegrades(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport().WithError(errors.New("timeout")))
	s := newTeam(t, o, PolicyRoundRobin, literal("协调", "coordination"), literal("程序", "coding"))

	out, err := o.SendMessage(context.Background(), s.ID, complexMessage)
	require.NoError(t, err)

	msg := out.Messages[1]
	assert.Equal(t, "任务分解过程中遇到问题：timeout。将按照常规流程处理。", msg.Content)
	require.NotNil(t, msg.Metadata.Plan)
	assert.Empty(t, msg.Metadata.Plan.Subtasks)
	assert.Empty(t, msg.Metadata.Plan.Assignments)
	assert.True(t, msg.Metadata.Plan.Degraded)
	assert.Equal(t, AgentIdle, out.Agents[0].Status)
}

func TestDecomposition_NoCoordinatorFallsBackToGroupChat(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	s := newTeam(t, o, PolicySequential, literal("程序", "coding"), literal("设计", "ui_ux_design"))

	rec := &recorder{}
	out, err := o.SendMessage(context.Background(), s.ID, complexMessage, WithEventHandler(rec.handle))
	require.NoError(t, err)

	require.Len(t, out.Messages, 2)
	assert.True(t, out.Messages[1].Metadata.SelectedByAI)
	assert.Equal(t, EventAgentSelected, rec.types()[0])
}

func TestDecomposition_ThresholdIsConfigurable(t *testing.T) {
	t.Parallel()

	tr := mocks.NewMockTransport()
	o := newOrchestrator(t, tr, func(opts *Options) { opts.DecompositionThreshold = 1000 })
	s := newTeam(t, o, PolicyRoundRobin, literal("协调", "coordination"))

	out, err := o.SendMessage(context.Background(), s.ID, complexMessage)
	require.NoError(t, err)
	assert.Equal(t, 1, out.TurnCount)
	assert.Empty(t, out.Messages[1].Metadata.Type)
}

// ----------------------------------------------------------------------------
// memory
// ----------------------------------------------------------------------------

func TestResponses_UpdateLedger(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport().WithResponse("用 Go 重写"))
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))
	agentID := s.Agents[0].ID

	_, err := o.SendMessage(context.Background(), s.ID, "如何重构")
	require.NoError(t, err)

	stats := o.Ledger().Stats(agentID)
	assert.Equal(t, 1, stats.Conversations)
	assert.Equal(t, 1, stats.Experiences)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 1, stats.Knowledge)

	convs := o.Ledger().Conversations(agentID)
	require.Len(t, convs, 1)
	assert.Equal(t, s.ID, convs[0].SessionID)
	assert.Equal(t, "如何重构", convs[0].Trigger)
	assert.Equal(t, "用 Go 重写", convs[0].Reply)
}

func TestResponses_KnowledgeHitsReachContext(t *testing.T) {
	t.Parallel()

	tr := mocks.NewMockTransport()
	o := newOrchestrator(t, tr)
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))
	o.Ledger().Knowledge(s.Agents[0].ID).Add("fact", "部署窗口在周五")

	_, err := o.SendMessage(context.Background(), s.ID, "周五")
	require.NoError(t, err)

	call, _ := tr.LastCall()
	last := call.Messages[len(call.Messages)-1]
	assert.Equal(t, llm.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "部署窗口在周五")
}

func TestResponses_KnowledgeMatchesTopicKeywords(t *testing.T) {
	t.Parallel()

	tr := mocks.NewMockTransport()
	o := newOrchestrator(t, tr)
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))
	o.Ledger().Knowledge(s.Agents[0].ID).Add("conversation", "测试环境的部署脚本已经更新")

	_, err := o.SendMessage(context.Background(), s.ID, "下周的测试怎么安排")
	require.NoError(t, err)

	call, _ := tr.LastCall()
	last := call.Messages[len(call.Messages)-1]
	assert.Equal(t, llm.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "测试环境的部署脚本已经更新")
}

func TestResponses_KnowledgeReadDoesNotCreateLedgerEntries(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport())
	assert.Nil(t, o.relevantKnowledge("no-such-agent", "测试"))
	_, ok := o.Ledger().Lookup("no-such-agent")
	assert.False(t, ok)
	assert.Zero(t, o.Ledger().Len())
}

func TestDeleteSession_ForgetsMemberMemory(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport().WithResponse("好的"))
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))
	other := newTeam(t, o, PolicyRoundRobin, literal("乙"))
	agentID := s.Agents[0].ID

	_, err := o.SendMessage(context.Background(), s.ID, "你好")
	require.NoError(t, err)
	_, err = o.SendMessage(context.Background(), other.ID, "你好")
	require.NoError(t, err)
	require.Equal(t, 1, o.Ledger().Stats(agentID).Conversations)

	require.True(t, o.DeleteSession(s.ID))

	assert.Equal(t, memory.LedgerStats{}, o.Ledger().Stats(agentID))
	_, ok := o.Ledger().Lookup(agentID)
	assert.False(t, ok)
	assert.Equal(t, 1, o.Ledger().Stats(other.Agents[0].ID).Conversations)
	assert.Equal(t, 1, o.Ledger().Len())
}

// ----------------------------------------------------------------------------
// Respond / Events
// ----------------------------------------------------------------------------

func TestRespond(t *testing.T) {
	t.Parallel()

	tr := mocks.NewMockTransport().WithResponse("阶段产出")
	o := newOrchestrator(t, tr)
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"), literal("乙"))

	msg, err := o.Respond(context.Background(), s.ID, s.Agents[1].ID, "请完成需求阶段")
	require.NoError(t, err)
	assert.Equal(t, "阶段产出", msg.Content)
	assert.Equal(t, MessageTypePhase, msg.Metadata.Type)
	assert.Equal(t, s.Agents[1].ID, msg.SenderID)

	call, _ := tr.LastCall()
	last := call.Messages[len(call.Messages)-1]
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: "请完成需求阶段"}, last)

	got, _ := o.GetSession(s.ID)
	require.Len(t, got.Messages, 1)
	assert.Zero(t, got.TurnCount)

	_, err = o.Respond(context.Background(), s.ID, "ghost", "x")
	assert.True(t, types.IsCode(err, types.ErrNotFound))
	_, err = o.Respond(context.Background(), "missing", s.Agents[0].ID, "x")
	assert.True(t, types.IsCode(err, types.ErrNotFound))
}

func TestRespond_TransportFailure(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport().WithError(errors.New("down")))
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))

	msg, err := o.Respond(context.Background(), s.ID, s.Agents[0].ID, "执行")
	require.Error(t, err)
	require.NotNil(t, msg)
	assert.True(t, msg.Metadata.Error)
}

func TestEvents_Channel(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport().WithStreamChunks("a", "b", "c"))
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"))

	events, errc := o.Events(testutil.TestContext(t), s.ID, "hi")
	got := testutil.Collect(events)
	require.NoError(t, <-errc)

	require.Len(t, got, 5)
	assert.Equal(t, EventAgentStart, got[0].Type)
	assert.Equal(t, EventAgentComplete, got[4].Type)
	assert.Equal(t, "abc", got[4].Message.Content)

	events, errc = o.Events(testutil.TestContext(t), "missing", "hi")
	assert.Empty(t, testutil.Collect(events))
	err := <-errc
	assert.True(t, types.IsCode(err, types.ErrNotFound))
}

// ----------------------------------------------------------------------------
// concurrency
// ----------------------------------------------------------------------------

func TestSendMessage_SerialisedPerSession(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, mocks.NewMockTransport().WithStreamChunks("x", "y"))
	s := newTeam(t, o, PolicyRoundRobin, literal("甲"), literal("乙"))

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := o.SendMessage(context.Background(), s.ID, fmt.Sprintf("m%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	final, _ := o.GetSession(s.ID)
	assert.Equal(t, n, final.TurnCount)
	require.Len(t, final.Messages, 2*n)
	for i := 0; i < len(final.Messages); i += 2 {
		assert.True(t, final.Messages[i].IsFromHuman)
		assert.False(t, final.Messages[i+1].IsFromHuman)
		assert.Equal(t, "xy", final.Messages[i+1].Content)
	}
}
