package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/conversation"
	"github.com/BaSui01/agentteam/api"
	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/types"
)

// =============================================================================
// 💬 会话接口 Handler
// =============================================================================

// SessionHandler 会话创建、查询与消息收发
type SessionHandler struct {
	orch       *conversation.Orchestrator
	defaultLLM llm.Config
	origins    []string
	logger     *zap.Logger
}

// NewSessionHandler 创建会话处理器。defaultLLM 补齐请求中未给出的模型配置，
// origins 为 WebSocket 允许的跨域来源模式，为空时只接受同源。
func NewSessionHandler(orch *conversation.Orchestrator, defaultLLM llm.Config, origins []string, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		orch:       orch,
		defaultLLM: defaultLLM,
		origins:    origins,
		logger:     logger.With(zap.String("component", "session_handler")),
	}
}

// Register 注册路由
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", h.HandleCreate)
	mux.HandleFunc("POST /v1/sessions/from-template", h.HandleCreateFromTemplate)
	mux.HandleFunc("GET /v1/sessions", h.HandleList)
	mux.HandleFunc("GET /v1/sessions/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.HandleDelete)
	mux.HandleFunc("POST /v1/sessions/{id}/messages", h.HandleSendMessage)
	mux.HandleFunc("GET /v1/sessions/{id}/ws", h.HandleStream)
}

// HandleCreate 处理 POST /v1/sessions
// @Summary 创建智能体团队
// @Tags 会话
// @Accept json
// @Produce json
// @Param request body conversation.TeamConfig true "团队配置"
// @Success 201 {object} Response
// @Router /v1/sessions [post]
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg conversation.TeamConfig
	if err := DecodeJSONBody(w, r, &cfg, h.logger); err != nil {
		return
	}
	for i := range cfg.Members {
		cfg.Members[i].LLM = h.llmConfig(cfg.Members[i].LLM)
	}

	session, err := h.orch.CreateAgentTeam(cfg)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteStatus(w, http.StatusCreated, session)
}

// HandleCreateFromTemplate 处理 POST /v1/sessions/from-template
func (h *SessionHandler) HandleCreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	var req api.FromTemplateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.TemplateID == "" {
		WriteError(w, invalidRequest("template_id is required"), h.logger)
		return
	}
	var cfg llm.Config
	if req.LLM != nil {
		cfg = *req.LLM
	}

	session, err := h.orch.CreateTeamFromTemplate(req.TemplateID, req.Name, h.llmConfig(cfg))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteStatus(w, http.StatusCreated, session)
}

// HandleList 处理 GET /v1/sessions
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.orch.ListActiveSessions())
}

// HandleGet 处理 GET /v1/sessions/{id}
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, ok := h.orch.GetSession(id)
	if !ok {
		WriteError(w, types.NotFound("session", id), h.logger)
		return
	}
	WriteSuccess(w, session)
}

// HandleDelete 处理 DELETE /v1/sessions/{id}
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.orch.DeleteSession(id) {
		WriteError(w, types.NotFound("session", id), h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSendMessage 处理 POST /v1/sessions/{id}/messages。
// Accept 为 text/event-stream 时以 SSE 推送事件，否则等待完整回复后返回会话快照。
// @Summary 发送消息
// @Tags 会话
// @Accept json
// @Produce json,text/event-stream
// @Param id path string true "会话 ID"
// @Param request body api.SendMessageRequest true "消息"
// @Success 200 {object} Response
// @Failure 404 {object} Response "会话不存在"
// @Router /v1/sessions/{id}/messages [post]
func (h *SessionHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req api.SendMessageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, invalidRequest("text is required"), h.logger)
		return
	}
	if _, ok := h.orch.GetSession(id); !ok {
		WriteError(w, types.NotFound("session", id), h.logger)
		return
	}

	opts := senderOptions(req.Sender)
	if !wantsEventStream(r) {
		session, err := h.orch.SendMessage(r.Context(), id, req.Text, append(opts, conversation.WithBlocking())...)
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
		WriteSuccess(w, session)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	events, errc := h.orch.Events(r.Context(), id, req.Text, opts...)
	for ev := range events {
		if err := sse.Send(string(ev.Type), ev); err != nil {
			h.logger.Debug("sse client gone", zap.String("session_id", id), zap.Error(err))
		}
	}
	if err := <-errc; err != nil {
		sse.SendError(err)
		return
	}
	if session, ok := h.orch.GetSession(id); ok {
		_ = sse.Send("session", session)
	}
	sse.Done()
}

// =============================================================================
// 🔌 WebSocket
// =============================================================================

// StreamFrame 服务端推送的非事件帧
type StreamFrame struct {
	Type    string                `json:"type"` // "done" 或 "error"
	Session *conversation.Session `json:"session,omitempty"`
	Error   *ErrorInfo            `json:"error,omitempty"`
}

// HandleStream 处理 GET /v1/sessions/{id}/ws。客户端每发送一帧
// {text, sender}，服务端依次推送该轮的全部流事件，最后推送 done 帧。
func (h *SessionHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.orch.GetSession(id); !ok {
		WriteError(w, types.NotFound("session", id), h.logger)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer ws.CloseNow()

	log := h.logger.With(zap.String("session_id", id))
	log.Info("stream client connected")

	ctx := r.Context()
	for {
		var req api.SendMessageRequest
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				log.Debug("stream read ended", zap.Error(err))
			}
			break
		}
		if strings.TrimSpace(req.Text) == "" {
			h.writeFrame(ctx, ws, StreamFrame{Type: "error", Error: &ErrorInfo{Code: string(ErrInvalidRequest), Message: "text is required"}})
			continue
		}

		handler := func(ev conversation.StreamEvent) {
			if err := wsjson.Write(ctx, ws, ev); err != nil {
				log.Debug("stream write failed", zap.Error(err))
			}
		}
		opts := append(senderOptions(req.Sender), conversation.WithEventHandler(handler))
		session, err := h.orch.SendMessage(ctx, id, req.Text, opts...)
		if err != nil {
			code := string(types.GetErrorCode(err))
			if code == "" {
				code = string(types.ErrInternalError)
			}
			h.writeFrame(ctx, ws, StreamFrame{Type: "error", Error: &ErrorInfo{Code: code, Message: err.Error()}})
			continue
		}
		h.writeFrame(ctx, ws, StreamFrame{Type: "done", Session: session})
	}

	ws.Close(websocket.StatusNormalClosure, "")
	log.Info("stream client disconnected")
}

func (h *SessionHandler) writeFrame(ctx context.Context, ws *websocket.Conn, f StreamFrame) {
	if err := wsjson.Write(ctx, ws, f); err != nil {
		h.logger.Debug("stream write failed", zap.Error(err))
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// llmConfig 用默认配置补齐空字段
func (h *SessionHandler) llmConfig(c llm.Config) llm.Config {
	if c.Endpoint == "" {
		c.Endpoint = h.defaultLLM.Endpoint
	}
	if c.APIKey == "" {
		c.APIKey = h.defaultLLM.APIKey
	}
	if c.Model == "" {
		c.Model = h.defaultLLM.Model
	}
	if c.Timeout == 0 {
		c.Timeout = h.defaultLLM.Timeout
	}
	return c
}

func senderOptions(sender string) []conversation.SendOption {
	if sender == "" {
		return nil
	}
	return []conversation.SendOption{conversation.WithSender(sender)}
}
