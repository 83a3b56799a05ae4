package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/xela07ax/riskwatch/internal/infra"
)

// BreakerObserver получает смену состояния предохранителя (для метрик).
type BreakerObserver func(name string, open bool)

// reliability: лимитер, Circuit Breaker и ретраи вокруг одного запроса к бэкенду.
type reliability struct {
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
	timeout  time.Duration
}

func newReliability(name string, cfg infra.ReliabilityConfig, timeout time.Duration, observe BreakerObserver) *reliability {
	failures := cfg.CBFailures
	if failures == 0 {
		failures = 5
	}

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 4xx это ответ бэкенда, а не его отказ, предохранитель их не считает
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if observe != nil {
				observe(name, to == gobreaker.StateOpen)
			}
		},
	})

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}

	return &reliability{
		cb:       cb,
		limiter:  rate.NewLimiter(limit, burst),
		attempts: attempts,
		timeout:  timeout,
	}
}

// execute выполняет call под лимитером и предохранителем.
// Повторяются только идемпотентные запросы и только на TransientError:
// команды оператора не ретраятся никогда.
func (r *reliability) execute(ctx context.Context, idempotent bool, call func(ctx context.Context) error) error {
	// 1. Rate Limiter
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// 2. Circuit Breaker
	_, err := r.cb.Execute(func() (interface{}, error) {
		if !idempotent {
			return nil, r.once(ctx, call)
		}

		var lastErr error
		rt := retry.New(
			retry.Context(ctx),
			retry.Attempts(r.attempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Бэкенд сам сказал, когда приходить (Retry-After)
				var tErr *TransientError
				if errors.As(err, &tErr) && tErr.RetryAfter > 0 {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := rt.Do(func() error {
			lastErr = r.once(ctx, call)
			if lastErr != nil && !IsTransient(lastErr) {
				// Окончательный ответ: прекращаем попытки, ошибку вернем ниже
				return nil
			}
			return lastErr
		})
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, retryErr
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &TransientError{Cause: err}
	}
	return err
}

func (r *reliability) once(ctx context.Context, call func(ctx context.Context) error) error {
	if r.timeout <= 0 {
		return call(ctx)
	}
	tCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return call(tCtx)
}
