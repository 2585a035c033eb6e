// internal/services/errors.go
package services

import "errors"

// Sentinel errors mapped to HTTP codes at the handler boundary.
var (
	// Client input
	ErrInvalidTier        = errors.New("unknown license tier")
	ErrTicketingDisabled  = errors.New("ticket sales are not enabled for this event")
	ErrInsufficientStock  = errors.New("not enough tickets available")
	ErrOutsideSaleWindow  = errors.New("ticket sales are closed for this event")
	ErrBelowMinimumCharge = errors.New("order total is below the minimum chargeable amount")

	// Not found
	ErrBeatNotFound    = errors.New("beat not found")
	ErrOfferNotFound   = errors.New("license offer not found")
	ErrEventNotFound   = errors.New("event not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrLicenseNotFound = errors.New("license not found")

	// Conflict / state
	ErrAlreadyRedeemed     = errors.New("ticket has already been validated")
	ErrInvalidTicketStatus = errors.New("ticket is not in a redeemable state")

	// Infrastructure
	ErrTemplateUnavailable = errors.New("no active license template for tier")
	ErrRenderFailed        = errors.New("document rendering failed")
)
