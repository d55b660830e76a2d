package entity

import "errors"

var (
	// Event errors
	ErrEventNotFound  = errors.New("event not found")
	ErrEventClosed    = errors.New("event is not active")
	ErrEventFull      = errors.New("event is full")
	ErrDeadlinePassed = errors.New("rsvp deadline has passed")

	// RSVP errors
	ErrAlreadyConfirmed = errors.New("rsvp already confirmed")
	ErrNotConfirmed     = errors.New("rsvp is not confirmed")
	ErrQuotaExceeded    = errors.New("free monthly quota exceeded")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user with this email already exists")

	// Venue / matching errors
	ErrVenueUnresolvable = errors.New("venue unresolvable")
	ErrVisitNotFound     = errors.New("visit not found")
	ErrMatchNotFound     = errors.New("users have not crossed paths")

	// Collaborator errors
	ErrPaymentNotFound = errors.New("payment not found")

	// General errors
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("record store unavailable")
)
