package tools

import (
	"context"
	"encoding/json"

	"github.com/BaSui01/agentteam/agent/memory"
	"github.com/BaSui01/agentteam/types"
)

// KnowledgeSearchName 内置知识检索工具名
const KnowledgeSearchName = "knowledge_search"

const defaultKnowledgeLimit = 5

var knowledgeSearchSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "string", "minLength": 1},
    "query": {"type": "string", "minLength": 1},
    "limit": {"type": "integer", "minimum": 1, "maximum": 50}
  },
  "required": ["agent_id", "query"]
}`)

type knowledgeSearchParams struct {
	AgentID string `json:"agent_id"`
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
}

// KnowledgeSearch 在智能体的知识库中检索
func KnowledgeSearch(ledger *memory.Ledger) Tool {
	return Tool{
		Name:        KnowledgeSearchName,
		Description: "在指定智能体的知识库中按关键词检索记忆，结果从新到旧排列",
		Parameters:  knowledgeSearchSchema,
		Handler: func(_ context.Context, raw json.RawMessage) (any, error) {
			var p knowledgeSearchParams
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, types.Parse("knowledge_search parameters").WithCause(err)
			}
			if p.Limit <= 0 {
				p.Limit = defaultKnowledgeLimit
			}
			var hits []memory.KnowledgeEntry
			if ks, ok := ledger.Lookup(p.AgentID); ok {
				hits = ks.Search(p.Query, p.Limit)
			}
			if hits == nil {
				hits = []memory.KnowledgeEntry{}
			}
			return hits, nil
		},
	}
}

// RegisterBuiltins 注册内置工具
func RegisterBuiltins(r *Registry, ledger *memory.Ledger) error {
	return r.Register(KnowledgeSearch(ledger))
}
