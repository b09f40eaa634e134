package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/superclinic/clinic-assistant/internal/availability"
)

// Request carries everything needed to reserve a slot.
type Request struct {
	SlotID      int64  `json:"slotId"`
	UserID      string `json:"userId"`
	PatientName string `json:"patientName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// Validate checks the request shape before any store access.
func (r *Request) Validate() error {
	if r.SlotID <= 0 {
		return ErrInvalidSlot
	}
	if strings.TrimSpace(r.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(r.PatientName) == "" {
		return ErrMissingPatientName
	}
	if strings.TrimSpace(r.Email) == "" {
		return ErrMissingEmail
	}
	if strings.TrimSpace(r.Phone) == "" {
		return ErrMissingPhone
	}
	return nil
}

// Booking is a committed reservation. Created exactly once per slot, never
// updated or deleted through this engine.
type Booking struct {
	ID          uuid.UUID `json:"bookingId"`
	UserID      string    `json:"userId"`
	SlotID      int64     `json:"slotId"`
	PatientName string    `json:"patientName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Confirmation is the structured success payload returned to callers.
type Confirmation struct {
	Booking Booking               `json:"booking"`
	Slot    availability.SlotView `json:"slot"`
}
