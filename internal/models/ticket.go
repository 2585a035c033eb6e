// internal/models/ticket.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is one seat of an event order. PurchaseID is the payment session id
// and deliberately a non-unique grouping key: one purchase owns N tickets.
// Per-seat identity lives on TicketCode and ValidationCode.
type Ticket struct {
	BaseModel
	EventID    uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	PurchaseID string    `json:"purchase_id" gorm:"size:255;not null;index"`

	TicketCode     string `json:"ticket_code" gorm:"size:20;not null;uniqueIndex"`
	ValidationCode string `json:"validation_code" gorm:"type:uuid;not null;uniqueIndex"`

	TicketNumber     int `json:"ticket_number"`     // seat index within the order, 1-based
	PurchaseQuantity int `json:"purchase_quantity"` // total seats in the order

	CustomerEmail string `json:"customer_email" gorm:"size:255;not null;index"`
	CustomerName  string `json:"customer_name" gorm:"size:255"`

	// Whole-order total, duplicated on every seat of the order.
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency" gorm:"size:3"`

	Validated   bool       `json:"validated" gorm:"default:false"`
	ValidatedAt *time.Time `json:"validated_at"`
	ValidatedBy string     `json:"validated_by" gorm:"size:255"`

	Status TicketStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`

	// Relationships
	Event Event `json:"event,omitempty" gorm:"foreignKey:EventID"`
}
