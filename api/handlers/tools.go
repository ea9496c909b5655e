package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/tools"
)

// ToolHandler 工具列表与调用
type ToolHandler struct {
	registry *tools.Registry
	logger   *zap.Logger
}

// NewToolHandler 创建工具处理器
func NewToolHandler(registry *tools.Registry, logger *zap.Logger) *ToolHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolHandler{registry: registry, logger: logger}
}

// Register 注册路由
func (h *ToolHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/tools", h.HandleList)
	mux.HandleFunc("POST /v1/tools/{name}", h.HandleRun)
}

func (h *ToolHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.registry.ListTools())
}

// HandleRun 处理 POST /v1/tools/{name}，请求体即工具参数。
// 参数校验失败或工具出错时仍返回 200，结果中 success 为 false。
func (h *ToolHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		WriteError(w, invalidRequest("failed to read request body").WithCause(err), h.logger)
		return
	}

	result, err := h.registry.RunTool(r.Context(), r.PathValue("name"), json.RawMessage(body))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}
