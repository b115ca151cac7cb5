package booking

import "errors"

var (
	// ErrValidation is returned when appointment input is missing or malformed.
	ErrValidation = errors.New("invalid appointment input")

	// ErrSpecialistNotFound is returned when the referenced specialist does not exist.
	ErrSpecialistNotFound = errors.New("specialist not found")

	// ErrNotFound is returned when an appointment is not found or not owned by the caller.
	ErrNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned when a non-cancelled appointment already holds the slot.
	ErrSlotTaken = errors.New("appointment slot is already booked")

	// ErrIntentMismatch is returned when a payment event references an intent
	// id other than the one stored on the appointment.
	ErrIntentMismatch = errors.New("payment intent does not match appointment")

	// ErrInvalidTransition is returned when a status transition is not allowed
	// from the appointment's current state.
	ErrInvalidTransition = errors.New("invalid appointment status transition")
)
