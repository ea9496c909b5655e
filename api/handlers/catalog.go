package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/catalog"
	"github.com/BaSui01/agentteam/agent/memory"
	"github.com/BaSui01/agentteam/types"
)

// CatalogHandler 角色与模板目录，以及智能体记忆查询
type CatalogHandler struct {
	catalog catalog.Catalog
	ledger  *memory.Ledger
	logger  *zap.Logger
}

// NewCatalogHandler 创建目录处理器
func NewCatalogHandler(c catalog.Catalog, ledger *memory.Ledger, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{catalog: c, ledger: ledger, logger: logger}
}

// Register 注册路由
func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/templates", h.HandleTemplates)
	mux.HandleFunc("GET /v1/templates/{id}", h.HandleTemplate)
	mux.HandleFunc("GET /v1/personas", h.HandlePersonas)
	mux.HandleFunc("GET /v1/agents/{id}/memory", h.HandleMemory)
}

func (h *CatalogHandler) HandleTemplates(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.catalog.Templates())
}

func (h *CatalogHandler) HandleTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tmpl, ok := h.catalog.Template(id)
	if !ok {
		WriteError(w, types.NotFound("template", id), h.logger)
		return
	}
	WriteSuccess(w, tmpl)
}

func (h *CatalogHandler) HandlePersonas(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.catalog.Personas())
}

// AgentMemory 单个智能体的记忆视图
type AgentMemory struct {
	AgentID       string                        `json:"agent_id"`
	Stats         memory.LedgerStats            `json:"stats"`
	Conversations []memory.ConversationSnapshot `json:"conversations"`
	Preferences   []memory.Preference           `json:"preferences"`
	Experiences   []memory.ExperienceEvent      `json:"experiences"`
	Categories    []string                      `json:"knowledge_categories"`
}

// HandleMemory 处理 GET /v1/agents/{id}/memory
func (h *CatalogHandler) HandleMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	categories := []string{}
	if ks, ok := h.ledger.Lookup(id); ok {
		categories = ks.Categories()
	}
	WriteSuccess(w, AgentMemory{
		AgentID:       id,
		Stats:         h.ledger.Stats(id),
		Conversations: h.ledger.Conversations(id),
		Preferences:   h.ledger.Preferences(id),
		Experiences:   h.ledger.Experiences(id),
		Categories:    categories,
	})
}
