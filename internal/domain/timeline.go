package domain

import "time"

// TimelineEvent — запись журнала расчёта заказа (продажа, сбой, компенсация).
type TimelineEvent struct {
	OrderID   string
	Reference string
	Type      string
	Reason    string
	Occurred  time.Time
}
