package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentteam/agent/collaboration"
	"github.com/BaSui01/agentteam/agent/conversation"
	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/testutil"
	"github.com/BaSui01/agentteam/testutil/mocks"
)

type collabFixture struct {
	mux     *http.ServeMux
	engine  *collaboration.Engine
	session *conversation.Session
}

func newCollabFixture(t *testing.T) collabFixture {
	t.Helper()
	tr := mocks.NewMockTransport().WithResponse("我认可这个方向，8分")
	orch := newTestOrchestrator(t, tr)
	session, err := orch.CreateAgentTeam(conversation.TeamConfig{
		Name: "讨论组",
		Members: []conversation.MemberConfig{
			{Type: "custom_lead", Name: "协调员", Capabilities: []string{"coordination"}, LLM: llm.Config{Model: "m"}},
			{Type: "custom_dev", Name: "开发", Capabilities: []string{"coding"}, LLM: llm.Config{Model: "m"}},
		},
	})
	require.NoError(t, err)

	engine := collaboration.NewEngine(tr, collaboration.DefaultConfig(), nil, collaboration.WithSleep(testutil.NoSleep))
	mux := http.NewServeMux()
	NewCollaborationHandler(engine, orch, nil).Register(mux)
	return collabFixture{mux: mux, engine: engine, session: session}
}

func TestCollaborationHandler_StartSync(t *testing.T) {
	t.Parallel()

	f := newCollabFixture(t)
	body := `{"session_id":"` + f.session.ID + `","topic":"是否迁移到微服务"}`
	w, env := doJSON(t, f.mux, http.MethodPost, "/v1/collaborations", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := dataAs[collaboration.Result](t, env)
	assert.NotEmpty(t, result.DiscussionID)
	assert.Equal(t, "是否迁移到微服务", result.Topic)
	assert.Len(t, result.Positions, 2)
	require.NotNil(t, result.Consensus)
	assert.Equal(t, f.session.Agents[0].ID, result.Consensus.CoordinatorID)
	require.Len(t, result.Consensus.Scores, 1)
	assert.Equal(t, 8, result.Consensus.Scores[0].Value)

	w, env = doJSON(t, f.mux, http.MethodGet, "/v1/collaborations", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := dataAs[CollaborationList](t, env)
	assert.Empty(t, list.Active)
	require.Len(t, list.History, 1)
	assert.Equal(t, result.DiscussionID, list.History[0].ID)

	w, env = doJSON(t, f.mux, http.MethodGet, "/v1/collaborations/"+result.DiscussionID, "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := dataAs[collaboration.Summary](t, env)
	assert.Equal(t, []string{"协调员", "开发"}, summary.Participants)

	w, env = doJSON(t, f.mux, http.MethodGet, "/v1/collaborations/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestCollaborationHandler_AgentFilter(t *testing.T) {
	t.Parallel()

	f := newCollabFixture(t)
	body := `{"session_id":"` + f.session.ID + `","topic":"代码规范","agent_ids":["custom_dev"]}`
	w, env := doJSON(t, f.mux, http.MethodPost, "/v1/collaborations", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := dataAs[collaboration.Result](t, env)
	require.Len(t, result.Positions, 1)
	assert.Equal(t, f.session.Agents[1].ID, result.Positions[0].AgentID)
	// 没有协调员时跳过共识
	assert.Nil(t, result.Consensus)
}

func TestCollaborationHandler_StartErrors(t *testing.T) {
	t.Parallel()

	f := newCollabFixture(t)
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"missing topic", `{"session_id":"` + f.session.ID + `"}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing session id", `{"topic":"x"}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown session", `{"session_id":"ghost","topic":"x"}`, http.StatusNotFound, "NOT_FOUND"},
		{"no matching agents", `{"session_id":"` + f.session.ID + `","topic":"x","agent_ids":["nobody"]}`, http.StatusBadRequest, "CONFIGURATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doJSON(t, f.mux, http.MethodPost, "/v1/collaborations", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
	assert.Empty(t, f.engine.Histories())
}

func TestCollaborationHandler_StartSSE(t *testing.T) {
	t.Parallel()

	f := newCollabFixture(t)
	body := `{"session_id":"` + f.session.ID + `","topic":"发布节奏"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/collaborations", strings.NewReader(body))
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	events := readSSE(t, w.Body.String())
	names := eventNames(events)
	require.GreaterOrEqual(t, len(names), 3)
	assert.Equal(t, string(collaboration.EventPhaseStart), names[0])
	assert.Contains(t, names, string(collaboration.EventPositionCollected))
	assert.Contains(t, names, string(collaboration.EventConsensusReached))
	assert.Contains(t, names, string(collaboration.EventCollaborationComplete))
	assert.Equal(t, "result", names[len(names)-2])
	assert.Equal(t, "[DONE]", events[len(events)-1].Data)

	var result collaboration.Result
	require.NoError(t, json.Unmarshal([]byte(events[len(events)-2].Data), &result))
	assert.Equal(t, "发布节奏", result.Topic)
}
