package outbox

import (
	"context"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func TestWorker_PublishesMemoryOutboxToKafka(t *testing.T) {
	repo := memory.NewOutboxRepository()
	for _, ref := range []string{"ord-1", "ord-2"} {
		_, err := repo.Enqueue(domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   ref,
			EventType:     "SaleSettled",
			Payload:       []byte(`{"total":"25.00"}`),
		})
		require.NoError(t, err)
	}

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()
	mockProducer.ExpectSendMessageAndSucceed()
	producer := kafka.NewProducerFromClient(mockProducer, nil)

	reg := prometheus.NewRegistry()
	m := metrics.NewOutboxMetrics(reg)
	worker := NewWorker(repo, kafka.NewOutboxPublisher(producer, kafka.TopicSettlementEvents),
		WithMetrics(m),
		WithRetryBaseDelay(0),
	)

	require.Equal(t, 2, worker.ProcessOnce(context.Background()))
	require.Empty(t, repo.AllPending())
	require.NoError(t, mockProducer.Close())

	count, err := testutil.GatherAndCount(reg, "pos_outbox_publish_attempts_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	pending, err := testutil.GatherAndCount(reg, "pos_outbox_pending_records")
	require.NoError(t, err)
	require.Equal(t, 1, pending)
}
