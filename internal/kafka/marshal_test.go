package kafka

import (
	"encoding/json"
	"testing"

	"github.com/ariefcatur/go-local-market/internal/market"
)

func TestUnwrapPayload(t *testing.T) {
	env := market.Envelope{
		EventType: market.EventBookingCreated,
		Payload: MustMarshal(market.BookingEventPayload{
			BookingID: 9, ShopID: 2, Quantity: 3, Status: market.StatusPending,
		}),
	}

	var decoded market.Envelope
	if err := json.Unmarshal(MustMarshal(env), &decoded); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	p, err := UnwrapPayload[market.BookingEventPayload](decoded.Payload)
	if err != nil {
		t.Fatalf("UnwrapPayload failed: %v", err)
	}
	if p.BookingID != 9 || p.ShopID != 2 || p.Quantity != 3 || p.Status != market.StatusPending {
		t.Errorf("unexpected payload: %+v", p)
	}

	if _, err := UnwrapPayload[market.BookingEventPayload](json.RawMessage(`"nope"`)); err == nil {
		t.Error("expected error for mistyped payload")
	}
}

func TestEventHeaders(t *testing.T) {
	h := EventHeaders(market.EventBookingExpired, 1)
	if len(h) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(h))
	}
	if h[0].Key != "x-event-type" || string(h[0].Value) != market.EventBookingExpired {
		t.Errorf("unexpected type header: %+v", h[0])
	}
	if h[1].Key != "x-event-version" || string(h[1].Value) != "1" {
		t.Errorf("unexpected version header: %+v", h[1])
	}
}
