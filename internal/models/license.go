// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LicenseTemplate is one version of the rule set for a tier. Multiple
// versions may coexist; only the highest active version is used for new
// issuance. Templates are never mutated in place, a rule change is a new
// version.
type LicenseTemplate struct {
	BaseModel
	Tier    LicenseTier `json:"tier" gorm:"type:varchar(20);not null;uniqueIndex:ux_license_templates_tier_version,priority:1"`
	Version int         `json:"version" gorm:"not null;uniqueIndex:ux_license_templates_tier_version,priority:2"`

	// Usage limits, 0 means unlimited.
	StreamCap       int64 `json:"stream_cap"`
	VideoCap        int64 `json:"video_cap"`
	PhysicalCopyCap int64 `json:"physical_copy_cap"`

	ContentIDAllowed  bool `json:"content_id_allowed"`
	PerformanceRights bool `json:"performance_rights"`
	BroadcastRights   bool `json:"broadcast_rights"`

	// Publishing split, must sum to 100.
	ProducerSplit int `json:"producer_split" gorm:"not null"`
	LicenseeSplit int `json:"licensee_split" gorm:"not null"`

	CreditLine   string `json:"credit_line" gorm:"size:255"`
	Jurisdiction string `json:"jurisdiction" gorm:"size:100"`
	Active       bool   `json:"active" gorm:"default:true;index"`
}

// Limits returns the template's rule set as the snapshot stored on an issued
// license. The copy is what the licensee contracted for; later template
// versions never touch it.
func (t *LicenseTemplate) Limits() JSONB {
	return JSONB{
		"stream_cap":         t.StreamCap,
		"video_cap":          t.VideoCap,
		"physical_copy_cap":  t.PhysicalCopyCap,
		"content_id_allowed": t.ContentIDAllowed,
		"performance_rights": t.PerformanceRights,
		"broadcast_rights":   t.BroadcastRights,
		"producer_split":     t.ProducerSplit,
		"licensee_split":     t.LicenseeSplit,
		"credit_line":        t.CreditLine,
		"jurisdiction":       t.Jurisdiction,
	}
}

// IssuedLicense is the immutable record of a granted beat license. Everything
// hashed into DocumentHash is frozen at issuance.
type IssuedLicense struct {
	BaseModel
	LicenseNumber   string      `json:"license_number" gorm:"size:32;not null;uniqueIndex"`
	TemplateID      uuid.UUID   `json:"template_id" gorm:"type:uuid;not null"`
	TemplateVersion int         `json:"template_version" gorm:"not null"`
	Tier            LicenseTier `json:"tier" gorm:"type:varchar(20);not null;index"`
	PurchaseID      uuid.UUID   `json:"purchase_id" gorm:"type:uuid;not null;index"`

	// Beat snapshot at issuance time.
	BeatTitle string `json:"beat_title" gorm:"size:255;not null"`
	BeatBPM   int    `json:"beat_bpm"`
	BeatKey   string `json:"beat_key" gorm:"size:10"`

	BuyerEmail string `json:"buyer_email" gorm:"size:255;not null;index"`
	BuyerName  string `json:"buyer_name" gorm:"size:255"`

	AmountTotal int64  `json:"amount_total"`
	Currency    string `json:"currency" gorm:"size:3"`

	LimitsSnapshot JSONB         `json:"limits_snapshot" gorm:"type:jsonb;not null"`
	DocumentHash   string        `json:"document_hash" gorm:"size:64;not null"`
	Status         LicenseStatus `json:"status" gorm:"type:varchar(20);default:'issued';index"`
	IssuedAt       time.Time     `json:"issued_at" gorm:"not null"`
}

// LicenseCounter backs sequential license numbers, one row per calendar
// year. The row is bumped with a single insert-or-increment statement so
// concurrent issuance can never hand out the same sequence twice. Gaps from
// failed issuance are acceptable, reuse is not.
type LicenseCounter struct {
	Year int   `json:"year" gorm:"primaryKey"`
	Seq  int64 `json:"seq" gorm:"not null"`
}
