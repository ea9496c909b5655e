package handlers

import (
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/collaboration"
	"github.com/BaSui01/agentteam/agent/conversation"
	"github.com/BaSui01/agentteam/api"
	"github.com/BaSui01/agentteam/types"
)

// CollaborationHandler 结构化讨论接口
type CollaborationHandler struct {
	engine   *collaboration.Engine
	sessions SessionSource
	logger   *zap.Logger
}

// SessionSource 按 id 读取会话快照
type SessionSource interface {
	GetSession(id string) (*conversation.Session, bool)
}

// NewCollaborationHandler 创建讨论处理器
func NewCollaborationHandler(engine *collaboration.Engine, sessions SessionSource, logger *zap.Logger) *CollaborationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollaborationHandler{
		engine:   engine,
		sessions: sessions,
		logger:   logger.With(zap.String("component", "collaboration_handler")),
	}
}

// Register 注册路由
func (h *CollaborationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/collaborations", h.HandleStart)
	mux.HandleFunc("GET /v1/collaborations", h.HandleList)
	mux.HandleFunc("GET /v1/collaborations/{id}", h.HandleGet)
}

// CollaborationList 进行中与已归档的讨论
type CollaborationList struct {
	Active  []*collaboration.Discussion `json:"active"`
	History []collaboration.Summary     `json:"history"`
}

// HandleStart 处理 POST /v1/collaborations。讨论同步进行：
// Accept 为 text/event-stream 时逐条推送讨论事件，否则结束后返回结果。
func (h *CollaborationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req api.StartCollaborationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		WriteError(w, invalidRequest("topic is required"), h.logger)
		return
	}
	participants, err := h.participants(req)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	if !wantsEventStream(r) {
		result, err := h.engine.StartCollaboration(r.Context(), req.Topic, participants, nil)
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
		WriteSuccess(w, result)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	result, err := h.engine.StartCollaboration(r.Context(), req.Topic, participants, func(ev collaboration.Event) {
		_ = sse.Send(string(ev.Type), ev)
	})
	if err != nil {
		// collaboration_error 事件已推送
		sse.Done()
		return
	}
	_ = sse.Send("result", result)
	sse.Done()
}

// HandleList 处理 GET /v1/collaborations
func (h *CollaborationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, CollaborationList{
		Active:  h.engine.Active(),
		History: h.engine.Histories(),
	})
}

// HandleGet 处理 GET /v1/collaborations/{id}，先查进行中的讨论再查归档
func (h *CollaborationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, d := range h.engine.Active() {
		if d.ID == id {
			WriteSuccess(w, d)
			return
		}
	}
	if s, ok := h.engine.History(id); ok {
		WriteSuccess(w, s)
		return
	}
	WriteError(w, types.NotFound("collaboration", id), h.logger)
}

func (h *CollaborationHandler) participants(req api.StartCollaborationRequest) ([]*conversation.Agent, error) {
	if req.SessionID == "" {
		return nil, invalidRequest("session_id is required")
	}
	session, ok := h.sessions.GetSession(req.SessionID)
	if !ok {
		return nil, types.NotFound("session", req.SessionID)
	}

	var out []*conversation.Agent
	for i := range session.Agents {
		a := &session.Agents[i]
		if len(req.AgentIDs) == 0 || slices.Contains(req.AgentIDs, a.ID) || slices.Contains(req.AgentIDs, a.TypeID) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, types.Configuration("no session agent matches agent_ids")
	}
	return out, nil
}
