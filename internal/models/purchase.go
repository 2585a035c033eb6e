// internal/models/purchase.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Purchase is one completed beat order. The unique index on
// CheckoutSessionID is what makes beat webhook handling idempotent: a
// redelivered event hits the constraint instead of creating a second order.
type Purchase struct {
	BaseModel
	BeatID            uuid.UUID      `json:"beat_id" gorm:"type:uuid;not null;index"`
	OfferID           uuid.UUID      `json:"offer_id" gorm:"type:uuid;not null"`
	Tier              LicenseTier    `json:"tier" gorm:"type:varchar(20);not null"`
	CheckoutSessionID string         `json:"checkout_session_id" gorm:"size:255;not null;uniqueIndex"`
	CustomerEmail     string         `json:"customer_email" gorm:"size:255;not null;index"`
	CustomerName      string         `json:"customer_name" gorm:"size:255"`
	AmountTotal       int64          `json:"amount_total"`
	Currency          string         `json:"currency" gorm:"size:3"`
	Status            PurchaseStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CompletedAt       *time.Time     `json:"completed_at"`

	// Relationships
	Beat    Beat           `json:"beat,omitempty" gorm:"foreignKey:BeatID"`
	License *IssuedLicense `json:"license,omitempty" gorm:"foreignKey:PurchaseID"`
}

// ProcessedWebhookEvent records every payment event the ticket pipeline has
// seen, keyed by the gateway's event id. Inserting the row is the idempotency
// gate; processed_at is stamped only once fulfillment commits, so a retried
// delivery is acknowledged without side effects only after that.
type ProcessedWebhookEvent struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Provider        string     `json:"provider" gorm:"type:varchar(20);not null;uniqueIndex:ux_webhook_events_provider_event,priority:1"`
	ProviderEventID string     `json:"provider_event_id" gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_provider_event,priority:2"`
	EventType       string     `json:"event_type" gorm:"type:varchar(100);not null;index"`
	SessionID       string     `json:"session_id" gorm:"size:255;index"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FulfillmentAlert is a queryable record of a post-payment failure. The
// webhook still acknowledges the gateway; support works off these rows
// instead of grepping logs.
type FulfillmentAlert struct {
	BaseModel
	Source    string `json:"source" gorm:"type:varchar(30);not null;index"`
	SessionID string `json:"session_id" gorm:"size:255;index"`
	Stage     string `json:"stage" gorm:"type:varchar(50);not null"`
	Message   string `json:"message" gorm:"type:text;not null"`
	Details   JSONB  `json:"details,omitempty" gorm:"type:jsonb"`
	Resolved  bool   `json:"resolved" gorm:"default:false;index"`
}

const (
	AlertSourceBeatWebhook   = "beat_webhook"
	AlertSourceTicketWebhook = "ticket_webhook"
	AlertSourceDelivery      = "delivery"
)
