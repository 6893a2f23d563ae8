package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// TimelineRepository хранит журнал расчётов в памяти.
type TimelineRepository struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{events: make(map[string][]domain.TimelineEvent)}
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)

// Append добавляет событие. Сбой до создания заказа журналируется по номеру чека.
func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	key := timelineKey(event)

	r.mu.Lock()
	defer r.mu.Unlock()

	events := append(r.events[key], event)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	r.events[key] = events
	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *TimelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

func timelineKey(event domain.TimelineEvent) string {
	if event.OrderID != "" {
		return event.OrderID
	}
	return event.Reference
}
