package market

import (
	"encoding/json"
	"time"
)

const (
	EventBookingCreated       = "BookingCreated"
	EventBookingStatusChanged = "BookingStatusChanged"
	EventBookingExpired       = "BookingExpired"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g., "market-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // booking id
	Payload       json.RawMessage `json:"payload"`
}

// BookingEventPayload is shared by all booking events. PreviousStatus is empty
// for BookingCreated.
type BookingEventPayload struct {
	BookingID      int64         `json:"booking_id"`
	UserID         int64         `json:"user_id"`
	ProductID      int64         `json:"product_id"`
	ShopID         int64         `json:"shop_id"`
	Quantity       int           `json:"quantity"`
	Status         BookingStatus `json:"status"`
	PreviousStatus BookingStatus `json:"previous_status,omitempty"`
}
