package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentteam/types"
)

// scriptedTransport 按顺序返回错误，用尽后成功
type scriptedTransport struct {
	errs   []error
	chunks []string
	calls  atomic.Int32
}

func (s *scriptedTransport) nextErr() error {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.errs) {
		return s.errs[n]
	}
	return nil
}

func (s *scriptedTransport) CompleteChat(ctx context.Context, cfg Config, messages []Message) (*Completion, error) {
	if err := s.nextErr(); err != nil {
		return nil, err
	}
	return &Completion{Content: "ok"}, nil
}

func (s *scriptedTransport) StreamChat(ctx context.Context, cfg Config, messages []Message, onChunk func(string)) error {
	err := s.nextErr()
	for _, c := range s.chunks {
		onChunk(c)
	}
	return err
}

func newTestResilient(inner Transport, cfg ResilienceConfig) *ResilientTransport {
	r := NewResilientTransport(inner, cfg, nil)
	r.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return r
}

func TestResilientTransport_RetriesRetryableErrors(t *testing.T) {
	t.Parallel()

	inner := &scriptedTransport{errs: []error{
		types.Transport("503").WithRetryable(true),
		types.Transport("503").WithRetryable(true),
	}}
	r := newTestResilient(inner, ResilienceConfig{Retry: RetryPolicy{MaxRetries: 2}})

	out, err := r.CompleteChat(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Content)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestResilientTransport_DoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	inner := &scriptedTransport{errs: []error{types.Transport("401")}}
	r := newTestResilient(inner, ResilienceConfig{Retry: RetryPolicy{MaxRetries: 3}})

	_, err := r.CompleteChat(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestResilientTransport_OpensCircuit(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	inner := &scriptedTransport{errs: []error{boom, boom, boom, boom}}
	r := newTestResilient(inner, ResilienceConfig{MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := r.CompleteChat(context.Background(), Config{}, nil)
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, r.State())

	_, err := r.CompleteChat(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTransport))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestResilientTransport_StreamNotRetriedAfterDelivery(t *testing.T) {
	t.Parallel()

	inner := &scriptedTransport{
		errs:   []error{types.Transport("reset").WithRetryable(true)},
		chunks: []string{"partial"},
	}
	r := newTestResilient(inner, ResilienceConfig{Retry: RetryPolicy{MaxRetries: 3}})

	var got []string
	err := r.StreamChat(context.Background(), Config{}, nil, func(c string) { got = append(got, c) })
	require.Error(t, err)
	assert.Equal(t, []string{"partial"}, got)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestResilientTransport_ParseErrorsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	perr := types.Parse("bad body")
	inner := &scriptedTransport{errs: []error{perr, perr, perr}}
	r := newTestResilient(inner, ResilienceConfig{MaxFailures: 1})

	for i := 0; i < 3; i++ {
		_, err := r.CompleteChat(context.Background(), Config{}, nil)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, r.State())
}

func TestNextBackoff(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{Multiplier: 3, MaxBackoff: time.Second}
	assert.Equal(t, 300*time.Millisecond, nextBackoff(100*time.Millisecond, p))
	assert.Equal(t, time.Second, nextBackoff(500*time.Millisecond, p))
}
