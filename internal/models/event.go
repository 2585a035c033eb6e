// internal/models/event.go
package models

import "time"

// Event carries the ticket inventory for a show. AvailableTickets and
// TicketsSold are mutated only by the fulfillment orchestrator through a
// single conditional update; availableTickets + ticketsSold == totalTickets
// must hold after every fulfillment.
type Event struct {
	BaseModel
	Name     string    `json:"name" gorm:"size:255;not null"`
	Venue    string    `json:"venue" gorm:"size:255"`
	City     string    `json:"city" gorm:"size:100"`
	StartsAt time.Time `json:"starts_at" gorm:"index"`

	TicketsEnabled   bool   `json:"tickets_enabled" gorm:"default:false"`
	TicketPrice      int64  `json:"ticket_price"` // minor units
	Currency         string `json:"currency" gorm:"size:3;default:'eur'"`
	TotalTickets     int    `json:"total_tickets"`
	AvailableTickets int    `json:"available_tickets"`
	TicketsSold      int    `json:"tickets_sold"`

	SaleStartsAt *time.Time `json:"sale_starts_at"`
	SaleEndsAt   *time.Time `json:"sale_ends_at"`
}

// SaleOpen reports whether ticket sales are inside the configured window.
// Unset bounds do not constrain the sale.
func (e *Event) SaleOpen(now time.Time) bool {
	if e.SaleStartsAt != nil && now.Before(*e.SaleStartsAt) {
		return false
	}
	if e.SaleEndsAt != nil && now.After(*e.SaleEndsAt) {
		return false
	}
	return true
}
