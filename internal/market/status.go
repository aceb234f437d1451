package market

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

var validNext = map[BookingStatus]map[BookingStatus]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true},
	StatusCancelled: {},
	StatusCompleted: {},
}

func (s BookingStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to BookingStatus) bool {
	return validNext[from][to]
}

// Releases reports whether moving into s gives the booked units back to stock.
func (s BookingStatus) Releases() bool { return s == StatusCancelled }
