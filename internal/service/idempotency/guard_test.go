package idempotency

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func countingHandler(resp Response) (func(context.Context) Response, *int32) {
	var calls int32
	return func(context.Context) Response {
		atomic.AddInt32(&calls, 1)
		return resp
	}, &calls
}

func TestGuardReplaysSuccess(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil, nil)
	handler, calls := countingHandler(Response{Status: http.StatusCreated, Body: []byte(`{"id":"o1"}`)})
	hash := RequestHash("s1", "cash")

	first, replayed, err := g.Do(context.Background(), "k1", hash, handler)
	require.NoError(t, err)
	require.False(t, replayed)
	require.Equal(t, http.StatusCreated, first.Status)

	second, replayed, err := g.Do(context.Background(), "k1", hash, handler)
	require.NoError(t, err)
	require.True(t, replayed)
	require.Equal(t, first.Status, second.Status)
	require.JSONEq(t, string(first.Body), string(second.Body))
	require.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestGuardReplaysPartialFailure(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil, nil)
	handler, calls := countingHandler(Response{Status: http.StatusInternalServerError, Body: []byte(`{"error":"partial"}`)})

	for i := 0; i < 3; i++ {
		resp, _, err := g.Do(context.Background(), "k1", "h", handler)
		require.NoError(t, err)
		require.Equal(t, http.StatusInternalServerError, resp.Status)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestGuardReleasesRetryableOutcome(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil, nil)
	handler, calls := countingHandler(Response{Status: http.StatusServiceUnavailable, Retryable: true})

	for i := 0; i < 2; i++ {
		_, replayed, err := g.Do(context.Background(), "k1", "h", handler)
		require.NoError(t, err)
		require.False(t, replayed)
	}
	require.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestGuardConflicts(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	g := NewGuard(repo, time.Hour, nil, nil)

	_, err := repo.CreateProcessing(context.Background(), "busy", "h", time.Now().Add(time.Hour))
	require.NoError(t, err)

	handler, calls := countingHandler(Response{Status: http.StatusOK})
	_, _, err = g.Do(context.Background(), "busy", "h", handler)
	require.ErrorIs(t, err, ErrRequestInProgress)

	_, _, err = g.Do(context.Background(), "busy", "other", handler)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
	require.Zero(t, atomic.LoadInt32(calls))
}

func TestGuardWithoutKey(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), 0, nil, nil)
	handler, calls := countingHandler(Response{Status: http.StatusCreated})

	for i := 0; i < 2; i++ {
		_, replayed, err := g.Do(context.Background(), "  ", "h", handler)
		require.NoError(t, err)
		require.False(t, replayed)
	}
	require.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestRequestHashStable(t *testing.T) {
	require.Equal(t, RequestHash("a", "b"), RequestHash("a", "b"))
	require.NotEqual(t, RequestHash("ab", ""), RequestHash("a", "b"))
}
