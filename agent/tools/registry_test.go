package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentteam/agent/memory"
	"github.com/BaSui01/agentteam/testutil"
	"github.com/BaSui01/agentteam/types"
)

type toolMetrics struct {
	mu    sync.Mutex
	calls []string
}

func (m *toolMetrics) RecordToolInvocation(tool, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, tool+":"+status)
}

func echoTool() Tool {
	return Tool{
		Name:        "echo",
		Description: "原样返回 text",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
		Handler: func(_ context.Context, params json.RawMessage) (any, error) {
			var p struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, err
			}
			if p.Text == "fail" {
				return nil, errors.New("echo refused")
			}
			return p.Text, nil
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)
	require.NoError(t, r.Register(echoTool()))

	tests := []struct {
		name string
		tool Tool
	}{
		{name: "empty name", tool: Tool{Handler: echoTool().Handler}},
		{name: "no handler", tool: Tool{Name: "x"}},
		{name: "duplicate", tool: echoTool()},
		{name: "bad schema", tool: Tool{Name: "bad", Parameters: json.RawMessage(`{"type": `), Handler: echoTool().Handler}},
	}
	for _, tt := range tests {
		err := r.Register(tt.tool)
		require.Error(t, err, tt.name)
		assert.True(t, types.IsCode(err, types.ErrConfiguration), tt.name)
	}

	require.NoError(t, r.Register(Tool{Name: "alpha", Handler: echoTool().Handler}))
	list := r.ListTools()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "echo", list[1].Name)
	assert.Equal(t, "原样返回 text", list[1].Description)
}

func TestRegistry_RunTool(t *testing.T) {
	t.Parallel()

	metrics := &toolMetrics{}
	r := NewRegistry(metrics, nil)
	require.NoError(t, r.Register(echoTool()))
	ctx := testutil.TestContext(t)

	_, err := r.RunTool(ctx, "missing", nil)
	assert.True(t, types.IsCode(err, types.ErrNotFound))

	res, err := r.RunTool(ctx, "echo", json.RawMessage(`{"text":"你好"}`))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "你好", res.Data)
	assert.Equal(t, "echo", res.Tool)

	res, err = r.RunTool(ctx, "echo", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "parameter validation failed")

	res, err = r.RunTool(ctx, "echo", json.RawMessage(`{not json`))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid JSON")

	res, err = r.RunTool(ctx, "echo", json.RawMessage(`{"text":"fail"}`))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "echo refused", res.Error)

	assert.Equal(t, []string{"echo:success", "echo:invalid_params", "echo:invalid_params", "echo:error"}, metrics.calls)
}

func TestKnowledgeSearch(t *testing.T) {
	t.Parallel()

	ledger := memory.NewLedger(memory.DefaultLedgerConfig(), nil)
	ks := ledger.Knowledge("agent-1")
	ks.Add("conversation", "我们决定使用 PostgreSQL")
	ks.Add("conversation", "接口采用 REST 风格")
	ks.Add("decision", "PostgreSQL 主从部署")

	r := NewRegistry(nil, nil)
	require.NoError(t, RegisterBuiltins(r, ledger))
	ctx := testutil.TestContext(t)

	res, err := r.RunTool(ctx, KnowledgeSearchName, json.RawMessage(`{"agent_id":"agent-1","query":"postgresql"}`))
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	hits, ok := res.Data.([]memory.KnowledgeEntry)
	require.True(t, ok)
	require.Len(t, hits, 2)
	assert.Equal(t, "PostgreSQL 主从部署", hits[0].Payload)

	res, err = r.RunTool(ctx, KnowledgeSearchName, json.RawMessage(`{"agent_id":"agent-1","query":"REST","limit":1}`))
	require.NoError(t, err)
	assert.Len(t, res.Data, 1)

	res, err = r.RunTool(ctx, KnowledgeSearchName, json.RawMessage(`{"agent_id":"nobody","query":"x"}`))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Data)
	_, ok = ledger.Lookup("nobody")
	assert.False(t, ok)
	assert.Equal(t, 1, ledger.Len())

	res, err = r.RunTool(ctx, KnowledgeSearchName, json.RawMessage(`{"query":"x"}`))
	require.NoError(t, err)
	assert.False(t, res.Success)
}
