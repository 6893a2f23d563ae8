// Package resilience содержит retry с экспоненциальной задержкой и circuit breaker
// для идемпотентных чтений из Data & Identity Service.
package resilience

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// RetryConfig конфигурация для retry логики.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retry повторяет fn, пока она возвращает повторяемую ошибку.
// Только для чтений: записи расчёта никогда не повторяются автоматически.
func Retry(ctx context.Context, cfg RetryConfig, logger *log.Entry, operation string, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = log.New().WithField("component", "retry")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !ShouldRetry(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		logger.WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay,
			"error":     err,
		}).Warn("Operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	logger.WithFields(log.Fields{
		"operation":    operation,
		"max_attempts": cfg.MaxAttempts,
		"error":        lastErr,
	}).Error("Operation failed after all retry attempts")
	return lastErr
}

// ShouldRetry определяет, стоит ли повторять операцию при данной ошибке.
func ShouldRetry(err error) bool {
	// Бизнес-ошибки и отмена повтором не лечатся.
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, domain.ErrSellerNotFound) ||
		errors.Is(err, domain.ErrProductNotFound) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		domain.IsValidation(err) {
		return false
	}
	return true
}
