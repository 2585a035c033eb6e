// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type LicenseTier string

const (
	LicenseTierBasic     LicenseTier = "basic"
	LicenseTierPremium   LicenseTier = "premium"
	LicenseTierUnlimited LicenseTier = "unlimited"
)

func (t LicenseTier) Valid() bool {
	switch t {
	case LicenseTierBasic, LicenseTierPremium, LicenseTierUnlimited:
		return true
	}
	return false
}

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
)

type LicenseStatus string

const (
	LicenseStatusIssued  LicenseStatus = "issued"
	LicenseStatusRevoked LicenseStatus = "revoked"
	LicenseStatusExpired LicenseStatus = "expired"
)

type TicketStatus string

const (
	TicketStatusActive    TicketStatus = "active"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusRefunded  TicketStatus = "refunded"
)

type DeliveryFormat string

const (
	FormatMP3   DeliveryFormat = "mp3"
	FormatWAV   DeliveryFormat = "wav"
	FormatStems DeliveryFormat = "stems"
)

func (f DeliveryFormat) Valid() bool {
	switch f {
	case FormatMP3, FormatWAV, FormatStems:
		return true
	}
	return false
}
