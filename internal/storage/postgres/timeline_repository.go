package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// TimelineRepository пишет журнал расчётов в timeline_events.
type TimelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) *TimelineRepository {
	return &TimelineRepository{db: store.DB()}
}

// Append сохраняет событие. Неудачный расчёт без заказа пишется только с номером чека.
func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	if event.OrderID == "" && event.Reference == "" {
		return fmt.Errorf("append timeline event: order id or reference is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO timeline_events (order_id, reference, type, reason, occurred)
		VALUES ($1,$2,$3,$4,$5)
	`, event.OrderID, event.Reference, event.Type, event.Reason, event.Occurred); err != nil {
		return fmt.Errorf("append timeline event: %w", err)
	}

	return nil
}

// List возвращает события заказа в порядке возникновения. Для расчёта, не дошедшего
// до создания заказа, ключом служит номер чека.
func (r *TimelineRepository) List(key string) ([]domain.TimelineEvent, error) {
	return r.list(`order_id = $1 OR (order_id = '' AND reference = $1)`, key)
}

func (r *TimelineRepository) list(where, value string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, reference, type, reason, occurred
		FROM timeline_events
		WHERE `+where+`
		ORDER BY occurred ASC, id ASC
	`, value)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.TimelineEvent, 0)
	for rows.Next() {
		var event domain.TimelineEvent
		if err := rows.Scan(&event.OrderID, &event.Reference, &event.Type, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		event.Occurred = event.Occurred.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}

	return events, nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
