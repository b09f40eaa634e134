package booking

import "errors"

var (
	// ErrSlotNotFound is returned when the referenced slot does not exist
	ErrSlotNotFound = errors.New("booking: slot not found")

	// ErrSlotConflict is returned when another booking won the race for the slot.
	// Never retry a conflict with the same slot; it is gone.
	ErrSlotConflict = errors.New("booking: slot already booked")

	// ErrMissingUser is returned when the requesting user id is empty
	ErrMissingUser = errors.New("booking: user id is required")

	// ErrMissingPatientName is returned when the patient name is empty
	ErrMissingPatientName = errors.New("booking: patient name is required")

	// ErrMissingEmail is returned when the contact email is empty
	ErrMissingEmail = errors.New("booking: email is required")

	// ErrMissingPhone is returned when the contact phone is empty
	ErrMissingPhone = errors.New("booking: phone is required")

	// ErrInvalidSlot is returned when the slot id is not a positive integer
	ErrInvalidSlot = errors.New("booking: valid slot id is required")

	// ErrUnavailable marks a transient persistence failure; callers may retry
	// with backoff.
	ErrUnavailable = errors.New("booking: store temporarily unavailable")
)
