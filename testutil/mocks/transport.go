// MockTransport 的 LLM 传输层测试模拟实现。
//
// 支持固定响应、流式输出、按调用序号脚本化与错误注入场景。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/agentteam/llm"
)

// --- MockTransport 结构 ---

// MockTransport 是 llm.Transport 的模拟实现
type MockTransport struct {
	mu sync.Mutex

	// 响应配置
	response     string
	streamChunks []string
	err          error
	totalTokens  int

	// 按调用序号返回的脚本化响应，用完后回落到 response
	script []string

	completeFunc func(ctx context.Context, cfg llm.Config, msgs []llm.Message) (*llm.Completion, error)
	streamFunc   func(ctx context.Context, cfg llm.Config, msgs []llm.Message, onChunk func(string)) error

	// 行为控制
	failAfter int // 在第 N 次调用后失败
	callCount int

	calls []MockCall
}

// MockCall 记录单次调用
type MockCall struct {
	Config   llm.Config
	Messages []llm.Message
	Stream   bool
}

// --- 构造函数和 Builder 方法 ---

// NewMockTransport 创建新的 MockTransport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		response:    "Mock response",
		totalTokens: 30,
	}
}

// WithResponse 设置固定响应内容
func (m *MockTransport) WithResponse(response string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithScript 设置按调用顺序返回的响应
func (m *MockTransport) WithScript(responses ...string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append([]string(nil), responses...)
	return m
}

// WithError 设置返回错误
func (m *MockTransport) WithError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithStreamChunks 设置流式响应块
func (m *MockTransport) WithStreamChunks(chunks ...string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamChunks = append([]string(nil), chunks...)
	return m
}

// WithTokenUsage 设置每次调用的 token 总量
func (m *MockTransport) WithTokenUsage(total int) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalTokens = total
	return m
}

// WithFailAfter 设置在第 N 次调用后失败
func (m *MockTransport) WithFailAfter(n int, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.err = err
	return m
}

// WithCompleteFunc 设置自定义非流式调用
func (m *MockTransport) WithCompleteFunc(fn func(ctx context.Context, cfg llm.Config, msgs []llm.Message) (*llm.Completion, error)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

// WithStreamFunc 设置自定义流式调用
func (m *MockTransport) WithStreamFunc(fn func(ctx context.Context, cfg llm.Config, msgs []llm.Message, onChunk func(string)) error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamFunc = fn
	return m
}

// --- llm.Transport 接口实现 ---

// CompleteChat 返回脚本化或固定响应
func (m *MockTransport) CompleteChat(ctx context.Context, cfg llm.Config, msgs []llm.Message) (*llm.Completion, error) {
	content, err, fn := m.next(cfg, msgs, false)
	if fn != nil {
		return fn(ctx, cfg, msgs)
	}
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	tokens := m.totalTokens
	m.mu.Unlock()
	return &llm.Completion{Content: content, Usage: &llm.Usage{TotalTokens: tokens}}, nil
}

// StreamChat 依次回调配置的流式块；未配置时把完整响应作为单个块
func (m *MockTransport) StreamChat(ctx context.Context, cfg llm.Config, msgs []llm.Message, onChunk func(string)) error {
	m.mu.Lock()
	streamFn := m.streamFunc
	m.mu.Unlock()
	if streamFn != nil {
		m.record(cfg, msgs, true)
		return streamFn(ctx, cfg, msgs, onChunk)
	}

	content, err, _ := m.next(cfg, msgs, true)
	if err != nil {
		return err
	}
	m.mu.Lock()
	chunks := append([]string(nil), m.streamChunks...)
	m.mu.Unlock()
	if len(chunks) == 0 {
		chunks = []string{content}
	}
	for _, c := range chunks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		onChunk(c)
	}
	return nil
}

// --- 调用记录 ---

// Calls 返回调用记录副本
func (m *MockTransport) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockTransport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastCall 返回最后一次调用，没有调用时 ok 为 false
func (m *MockTransport) LastCall() (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return MockCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

func (m *MockTransport) record(cfg llm.Config, msgs []llm.Message, stream bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.calls = append(m.calls, MockCall{
		Config:   cfg,
		Messages: append([]llm.Message(nil), msgs...),
		Stream:   stream,
	})
}

func (m *MockTransport) next(cfg llm.Config, msgs []llm.Message, stream bool) (string, error, func(context.Context, llm.Config, []llm.Message) (*llm.Completion, error)) {
	m.record(cfg, msgs, stream)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !stream && m.completeFunc != nil {
		return "", nil, m.completeFunc
	}
	if m.failAfter > 0 {
		if m.callCount > m.failAfter {
			return "", m.err, nil
		}
	} else if m.err != nil {
		return "", m.err, nil
	}
	if idx := m.callCount - 1; idx < len(m.script) {
		return m.script[idx], nil, nil
	}
	return m.response, nil, nil
}
