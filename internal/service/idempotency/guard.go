package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// DefaultTTL — время жизни ключа оформления.
const DefaultTTL = 24 * time.Hour

// ErrRequestInProgress — запрос с тем же ключом ещё выполняется.
var ErrRequestInProgress = errors.New("request with the same idempotency key is already processing")

// Исходы проверки ключа для метрик.
const (
	OutcomeNew        = "new"
	OutcomeReplayed   = "replayed"
	OutcomeInProgress = "in_progress"
	OutcomeMismatch   = "mismatch"
	OutcomeReleased   = "released"
)

// Response — ответ, который сохраняется под ключом и отдаётся при повторе.
type Response struct {
	Status int
	Body   []byte
	// Retryable помечает исход, после которого ключ освобождается (ошибка транспорта до записи).
	Retryable bool
}

// Guard выполняет обработчик не более одного раза на ключ.
type Guard struct {
	repo    domain.IdempotencyRepository
	ttl     time.Duration
	metrics *metrics.IdempotencyMetrics
	logger  *log.Entry
	now     func() time.Time
}

// NewGuard создаёт Guard. ttl <= 0 заменяется на DefaultTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, m *metrics.IdempotencyMetrics, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.New().WithField("component", "idempotency")
	}
	return &Guard{
		repo:    repo,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RequestHash строит hash запроса из его частей.
func RequestHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Do выполняет handler под ключом key.
//
// Пустой key выполняет handler без защиты. Для завершённого ключа возвращается
// сохранённый ответ и replayed=true, handler не вызывается. Частичный расчёт
// сохраняется как failed и повторно не выполняется.
func (g *Guard) Do(ctx context.Context, key, requestHash string, handler func(ctx context.Context) Response) (resp Response, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" || g.repo == nil {
		return handler(ctx), false, nil
	}
	logger := g.logger.WithField("idempotency_key", key)

	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		g.metrics.RecordRequest(OutcomeMismatch)
		return Response{}, false, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if !record.Status.Terminal() {
			g.metrics.RecordRequest(OutcomeInProgress)
			return Response{}, false, ErrRequestInProgress
		}
		g.metrics.RecordRequest(OutcomeReplayed)
		logger.WithField("status", record.HTTPStatus).Debug("replaying stored response")
		return Response{Status: record.HTTPStatus, Body: record.ResponseBody}, true, nil
	default:
		return Response{}, false, err
	}

	g.metrics.RecordRequest(OutcomeNew)
	resp = handler(ctx)

	// Сохранение ответа не должно зависеть от отмены запроса клиентом.
	storeCtx := context.WithoutCancel(ctx)
	switch {
	case resp.Retryable:
		if err := g.repo.Release(storeCtx, key); err != nil {
			logger.WithError(err).Warn("failed to release idempotency key")
		}
		g.metrics.RecordRequest(OutcomeReleased)
	case resp.Status >= 200 && resp.Status < 300:
		if err := g.repo.MarkDone(storeCtx, key, resp.Body, resp.Status); err != nil {
			logger.WithError(err).Warn("failed to store idempotent success response")
		}
	default:
		if err := g.repo.MarkFailed(storeCtx, key, resp.Body, resp.Status); err != nil {
			logger.WithError(err).Warn("failed to store idempotent failure response")
		}
	}
	return resp, false, nil
}
