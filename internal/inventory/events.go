package inventory

import (
	"context"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	kafkax "github.com/ariefcatur/go-local-market/internal/kafka"
	"github.com/ariefcatur/go-local-market/internal/market"
)

func bookingPayload(b market.Booking, shopID int64, prev market.BookingStatus) market.BookingEventPayload {
	return market.BookingEventPayload{
		BookingID:      b.ID,
		UserID:         b.UserID,
		ProductID:      b.ProductID,
		ShopID:         shopID,
		Quantity:       b.Quantity,
		Status:         b.Status,
		PreviousStatus: prev,
	}
}

// publishBooking wraps p in an envelope v1 and hands it to the producer. The
// request id, when present, travels as the trace id.
func (s *Service) publishBooking(ctx context.Context, topic, eventType string, p market.BookingEventPayload) {
	if s.Events == nil {
		return
	}
	ev := market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: strconv.FormatInt(p.BookingID, 10),
		Payload:       kafkax.MustMarshal(p),
	}
	s.Events.Publish(topic, market.PartitionKey(p.BookingID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(eventType, 1)...)
}
