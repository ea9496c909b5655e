package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/agentteam/types"
)

// RetryPolicy 定义可重试错误的重试行为
type RetryPolicy struct {
	MaxRetries     int           `json:"max_retries" yaml:"max_retries"`
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff" yaml:"max_backoff"`
	Multiplier     float64       `json:"multiplier" yaml:"multiplier"`
}

// DefaultRetryPolicy 返回合理默认值
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}
}

// ResilienceConfig 熔断、限流与重试配置
type ResilienceConfig struct {
	// 连续失败多少次后熔断
	MaxFailures uint32 `json:"max_failures" yaml:"max_failures"`
	// 熔断打开后多久进入半开
	OpenTimeout time.Duration `json:"open_timeout" yaml:"open_timeout"`
	// 每秒请求数，<=0 表示不限流
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
	Retry             RetryPolicy
}

// ResilientTransport 为下游 Transport 增加限流、熔断和重试
type ResilientTransport struct {
	inner   Transport
	breaker *gobreaker.CircuitBreaker[*Completion]
	limiter *rate.Limiter
	retry   RetryPolicy
	sleep   func(context.Context, time.Duration) error
	logger  *zap.Logger
}

// NewResilientTransport 包装 inner。零值配置使用默认参数。
func NewResilientTransport(inner Transport, cfg ResilienceConfig, logger *zap.Logger) *ResilientTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "llm_resilience"))

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*Completion](gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// 解析错误说明上游可达，不计入熔断
		IsSuccessful: func(err error) bool {
			return err == nil || types.IsCode(err, types.ErrParse)
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &ResilientTransport{
		inner:   inner,
		breaker: cb,
		limiter: limiter,
		retry:   cfg.Retry,
		sleep:   sleepContext,
		logger:  logger,
	}
}

// CompleteChat 经过限流与熔断调用下游，可重试错误按策略退避重试
func (r *ResilientTransport) CompleteChat(ctx context.Context, cfg Config, messages []Message) (*Completion, error) {
	var result *Completion
	err := r.withRetry(ctx, func() (bool, error) {
		if err := r.limiter.Wait(ctx); err != nil {
			return false, types.Transport("rate limiter").WithCause(err)
		}
		out, err := r.breaker.Execute(func() (*Completion, error) {
			return r.inner.CompleteChat(ctx, cfg, messages)
		})
		if err != nil {
			return true, breakerError(err)
		}
		result = out
		return false, nil
	})
	return result, err
}

// StreamChat 只在尚未收到任何片段时重试，避免重复输出
func (r *ResilientTransport) StreamChat(ctx context.Context, cfg Config, messages []Message, onChunk func(string)) error {
	return r.withRetry(ctx, func() (bool, error) {
		if err := r.limiter.Wait(ctx); err != nil {
			return false, types.Transport("rate limiter").WithCause(err)
		}
		delivered := false
		_, err := r.breaker.Execute(func() (*Completion, error) {
			return nil, r.inner.StreamChat(ctx, cfg, messages, func(chunk string) {
				delivered = true
				onChunk(chunk)
			})
		})
		if err != nil {
			return !delivered, breakerError(err)
		}
		return false, nil
	})
}

// State 返回当前熔断状态
func (r *ResilientTransport) State() gobreaker.State {
	return r.breaker.State()
}

func (r *ResilientTransport) withRetry(ctx context.Context, call func() (retryable bool, err error)) error {
	backoff := r.retry.InitialBackoff
	for attempt := 0; ; attempt++ {
		canRetry, err := call()
		if err == nil {
			return nil
		}
		if !canRetry || attempt >= r.retry.MaxRetries || !types.IsRetryable(err) {
			return err
		}
		r.logger.Debug("retrying llm call", zap.Int("attempt", attempt+1), zap.Error(err))
		if serr := r.sleep(ctx, backoff); serr != nil {
			return err
		}
		backoff = nextBackoff(backoff, r.retry)
	}
}

func nextBackoff(current time.Duration, p RetryPolicy) time.Duration {
	mult := p.Multiplier
	if mult <= 1 {
		mult = 2
	}
	next := time.Duration(float64(current) * mult)
	if p.MaxBackoff > 0 && next > p.MaxBackoff {
		return p.MaxBackoff
	}
	return next
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.Transport("circuit open").WithCause(err)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
