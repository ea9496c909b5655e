package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/types"
)

const defaultRequestTimeout = 60 * time.Second

// chatRequest OpenAI 兼容的请求体
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message *Message `json:"message,omitempty"`
		Delta   *Message `json:"delta,omitempty"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// HTTPTransport 通过 OpenAI 兼容接口调用 LLM
type HTTPTransport struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPTransport 创建 HTTP 传输层。client 为 nil 时使用默认客户端。
func NewHTTPTransport(client *http.Client, logger *zap.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPTransport{
		client: client,
		logger: logger.With(zap.String("component", "llm_http_transport")),
	}
}

// CompleteChat 非流式调用，内容取自 choices[0].message.content
func (t *HTTPTransport) CompleteChat(ctx context.Context, cfg Config, messages []Message) (*Completion, error) {
	ctx, cancel := withRequestTimeout(ctx, cfg)
	defer cancel()

	resp, err := t.do(ctx, cfg, messages, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.Parse("decode completion response").WithCause(err)
	}
	if len(body.Choices) == 0 || body.Choices[0].Message == nil {
		return nil, types.Parse("completion response has no choices")
	}
	return &Completion{
		Content: body.Choices[0].Message.Content,
		Usage:   body.Usage,
	}, nil
}

// StreamChat 读取 SSE 流并按顺序回调 onChunk。
// 只处理 "data:" 行，"[DONE]" 结束；无法解析的 JSON 片段记录日志后跳过。
func (t *HTTPTransport) StreamChat(ctx context.Context, cfg Config, messages []Message, onChunk func(string)) error {
	ctx, cancel := withRequestTimeout(ctx, cfg)
	defer cancel()

	resp, err := t.do(ctx, cfg, messages, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			done, perr := t.handleEvent(line, onChunk)
			if perr != nil {
				t.logger.Warn("skip malformed stream payload",
					zap.String("model", cfg.Model),
					zap.Error(perr))
			}
			if done {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return types.Transport("read stream").WithCause(err).WithRetryable(true)
		}
	}
}

// handleEvent 处理单行事件，返回是否已收到结束标记
func (t *HTTPTransport) handleEvent(line string, onChunk func(string)) (bool, error) {
	if !strings.HasPrefix(line, "data:") {
		return false, nil
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "[DONE]" {
		return true, nil
	}

	var chunk chatResponse
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return false, types.Parse("decode stream payload").WithCause(err)
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
		return false, nil
	}
	if content := chunk.Choices[0].Delta.Content; content != "" {
		onChunk(content)
	}
	return false, nil
}

func (t *HTTPTransport) do(ctx context.Context, cfg Config, messages []Message, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(chatRequest{Model: cfg.Model, Messages: messages, Stream: stream})
	if err != nil {
		return nil, types.Transport("encode request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.Transport("build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, types.Transport("LLM API 调用失败").WithCause(err).WithRetryable(true)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, types.Transport(fmt.Sprintf("LLM API 调用失败: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))).
			WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
	}
	return resp, nil
}

func withRequestTimeout(ctx context.Context, cfg Config) (context.Context, context.CancelFunc) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
