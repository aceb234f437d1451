package market

import "strconv"

const (
	TopicBookingCreated       = "market.booking.created"
	TopicBookingStatusChanged = "market.booking.status"
	TopicBookingExpired       = "market.booking.expired"
)

var BookingTopics = []string{TopicBookingCreated, TopicBookingStatusChanged, TopicBookingExpired}

// Partition key = booking id, so every event of one booking stays ordered.
func PartitionKey(bookingID int64) []byte { return []byte(strconv.FormatInt(bookingID, 10)) }
