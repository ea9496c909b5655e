package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Recorder 接收每次 LLM 调用的观测数据，由 internal/metrics.Collector 实现
type Recorder interface {
	RecordLLMRequest(model, mode, status string, duration time.Duration, tokens int)
}

// InstrumentedTransport 为每次调用记录指标并创建 span
type InstrumentedTransport struct {
	inner    Transport
	recorder Recorder
	tracer   trace.Tracer
}

// NewInstrumentedTransport recorder 可以为 nil
func NewInstrumentedTransport(inner Transport, recorder Recorder) *InstrumentedTransport {
	return &InstrumentedTransport{
		inner:    inner,
		recorder: recorder,
		tracer:   otel.Tracer("github.com/BaSui01/agentteam/llm"),
	}
}

func (t *InstrumentedTransport) CompleteChat(ctx context.Context, cfg Config, messages []Message) (*Completion, error) {
	ctx, span := t.tracer.Start(ctx, "llm.complete_chat", trace.WithAttributes(
		attribute.String("llm.model", cfg.Model),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	start := time.Now()
	out, err := t.inner.CompleteChat(ctx, cfg, messages)
	tokens := 0
	if out != nil && out.Usage != nil {
		tokens = out.Usage.TotalTokens
		span.SetAttributes(attribute.Int("llm.total_tokens", tokens))
	}
	t.finish(span, cfg.Model, "complete", start, tokens, err)
	return out, err
}

func (t *InstrumentedTransport) StreamChat(ctx context.Context, cfg Config, messages []Message, onChunk func(string)) error {
	ctx, span := t.tracer.Start(ctx, "llm.stream_chat", trace.WithAttributes(
		attribute.String("llm.model", cfg.Model),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	start := time.Now()
	chunks := 0
	err := t.inner.StreamChat(ctx, cfg, messages, func(chunk string) {
		chunks++
		onChunk(chunk)
	})
	span.SetAttributes(attribute.Int("llm.chunks", chunks))
	t.finish(span, cfg.Model, "stream", start, 0, err)
	return err
}

func (t *InstrumentedTransport) finish(span trace.Span, model, mode string, start time.Time, tokens int, err error) {
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if t.recorder != nil {
		t.recorder.RecordLLMRequest(model, mode, status, time.Since(start), tokens)
	}
}
