package deliveryperson

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidWindow = errors.New("availability window must start before it ends")

// Availability is a half-open [StartTime, EndTime) window in UTC.
type Availability struct {
	ID               uuid.UUID `json:"id"`
	DeliveryPersonID uuid.UUID `json:"deliveryPersonId"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
}

// NewAvailability validates the window and normalizes it to UTC.
func NewAvailability(deliveryPersonID uuid.UUID, start, end time.Time) (Availability, error) {
	if !start.Before(end) {
		return Availability{}, ErrInvalidWindow
	}

	return Availability{
		ID:               uuid.New(),
		DeliveryPersonID: deliveryPersonID,
		StartTime:        start.UTC(),
		EndTime:          end.UTC(),
	}, nil
}

// Covers reports whether at falls inside the window.
func (a Availability) Covers(at time.Time) bool {
	return !at.Before(a.StartTime) && at.Before(a.EndTime)
}

// Overlaps reports whether two windows share any instant. Touching windows do not overlap.
func (a Availability) Overlaps(other Availability) bool {
	return a.StartTime.Before(other.EndTime) && other.StartTime.Before(a.EndTime)
}
