package bookings

import "fmt"

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}

// PastDateError rejects bookings for dates before today in the configured
// booking timezone.
type PastDateError struct {
	Date string
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("cannot book %s: date is in the past", e.Date)
}

// SlotConflictError reports that the requested slot already holds a
// confirmed booking.
type SlotConflictError struct {
	Date string
	Slot string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot %s on %s is already booked", e.Slot, e.Date)
}
