package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/agentteam/types"
)

// =============================================================================
// 📡 SSE 辅助
// =============================================================================

// wantsEventStream 客户端是否通过 Accept 请求 SSE
func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// sseWriter 逐条写出 SSE 事件
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter 写出 SSE 响应头。底层不支持 Flush 时返回错误，此时尚未写出任何内容。
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, types.NewError(types.ErrInternalError, "streaming not supported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

// Send 写出一条 event；data 使用 json.Marshal 编码，避免换行破坏帧格式
func (s *sseWriter) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// SendError 写出 error 事件
func (s *sseWriter) SendError(err error) {
	info := ErrorInfo{Code: string(types.ErrInternalError), Message: err.Error()}
	if code := types.GetErrorCode(err); code != "" {
		info.Code = string(code)
	}
	_ = s.Send("error", info)
}

// Done 写出结束标记
func (s *sseWriter) Done() {
	_, _ = s.w.Write([]byte("data: [DONE]\n\n"))
	s.flusher.Flush()
}
