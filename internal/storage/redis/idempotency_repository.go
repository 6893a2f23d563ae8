// Package redis хранит ключи идемпотентности оформления в Redis, общие для всех инстансов сервиса.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	defaultKeyPrefix      = "pos:idempotency:"
	defaultIdempotencyTTL = 24 * time.Hour
	opTimeout             = 2 * time.Second
)

// record: сериализованное представление IdempotencyRecord.
type record struct {
	RequestHash  string    `json:"request_hash"`
	ResponseBody []byte    `json:"response_body,omitempty"`
	HTTPStatus   int       `json:"http_status,omitempty"`
	Status       string    `json:"status"`
	TTLAt        time.Time `json:"ttl_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IdempotencyRepository реализует domain.IdempotencyRepository поверх SETNX и TTL ключей Redis.
type IdempotencyRepository struct {
	client    goredis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// NewIdempotencyRepository создаёт хранилище поверх готового клиента.
func NewIdempotencyRepository(client goredis.UniversalClient, keyPrefix string) *IdempotencyRepository {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &IdempotencyRepository{
		client:    client,
		keyPrefix: keyPrefix,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Connect открывает клиента по адресу и проверяет соединение.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)

// CreateProcessing атомарно занимает ключ через SETNX; TTL ключа совпадает с ttlAt.
func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := r.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}
	ttl := ttlAt.Sub(now)
	if ttl <= 0 {
		// Уже истёкший ключ хранить незачем, но занять его на время обработки нужно.
		ttl = time.Second
	}

	rec := record{
		RequestHash: requestHash,
		Status:      string(domain.IdempotencyStatusProcessing),
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("encode idempotency record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	created, err := r.client.SetNX(ctx, r.keyPrefix+key, payload, ttl).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
	}
	if !created {
		existing, getErr := r.Get(ctx, key)
		if getErr != nil {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
		}
		if existing.RequestHash != requestHash {
			return existing, domain.ErrIdempotencyHashMismatch
		}
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}

	return rec.toDomain(key), nil
}

// Get возвращает запись по ключу или ErrIdempotencyKeyNotFound.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("decode idempotency record %s: %w", key, err)
	}
	out := rec.toDomain(key)
	if !out.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q for key %s", rec.Status, key)
	}
	return out, nil
}

func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// Release удаляет ключ; отсутствующий ключ ошибкой не считается.
func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// DeleteExpired ничего не делает: Redis удаляет ключи по TTL сам.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, _ time.Time, _ int) (int, error) {
	return 0, ctx.Err()
}

func (r *IdempotencyRepository) markStatus(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	current, err := r.Get(ctx, key)
	if err != nil {
		return err
	}

	rec := record{
		RequestHash:  current.RequestHash,
		ResponseBody: append([]byte(nil), responseBody...),
		HTTPStatus:   httpStatus,
		Status:       string(status),
		TTLAt:        current.TTLAt,
		CreatedAt:    current.CreatedAt,
		UpdatedAt:    r.now(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// XX + KEEPTTL: не воскрешаем истёкший ключ и не продлеваем его жизнь.
	_, err = r.client.SetArgs(ctx, r.keyPrefix+strings.TrimSpace(key), payload, goredis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("mark idempotency key status: %w", err)
	}
	return nil
}

func (rec record) toDomain(key string) domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          key,
		RequestHash:  rec.RequestHash,
		ResponseBody: append([]byte(nil), rec.ResponseBody...),
		HTTPStatus:   rec.HTTPStatus,
		Status:       domain.IdempotencyStatus(rec.Status),
		TTLAt:        rec.TTLAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}
