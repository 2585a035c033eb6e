// internal/models/beat.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Beat struct {
	BaseModel
	Title      string `json:"title" gorm:"size:255;not null;index"`
	Producer   string `json:"producer" gorm:"size:255;not null"`
	BPM        int    `json:"bpm"`
	MusicalKey string `json:"musical_key" gorm:"size:10"`
	CoverURL   string `json:"cover_url" gorm:"size:512"`
	Published  bool   `json:"published" gorm:"default:true;index"`

	// Relationships
	Offers []LicenseOffer `json:"offers,omitempty" gorm:"foreignKey:BeatID"`
}

// FormatList is the set of audio formats a license offer delivers.
type FormatList []DeliveryFormat

func (f FormatList) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

func (f *FormatList) Scan(value interface{}) error {
	if value == nil {
		*f = nil
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

	return json.Unmarshal(bytes, f)
}

func (f FormatList) Contains(format DeliveryFormat) bool {
	for _, existing := range f {
		if existing == format {
			return true
		}
	}
	return false
}

// LicenseOffer is a purchasable license option embedded in a beat's catalog
// entry. Files must carry a storage key for every format the offer delivers;
// NewLicenseOffer is the only way to build one, so the pair can never drift
// apart.
type LicenseOffer struct {
	BaseModel
	BeatID   uuid.UUID   `json:"beat_id" gorm:"type:uuid;not null;index"`
	Tier     LicenseTier `json:"tier" gorm:"type:varchar(20);not null"`
	Price    int64       `json:"price" gorm:"not null"` // minor units
	Currency string      `json:"currency" gorm:"size:3;not null"`
	Formats  FormatList  `json:"formats" gorm:"type:jsonb;not null"`
	Files    JSONB       `json:"files" gorm:"type:jsonb;not null"` // format -> storage key
}

func NewLicenseOffer(beatID uuid.UUID, tier LicenseTier, price int64, currency string, formats FormatList, files map[DeliveryFormat]string) (*LicenseOffer, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("unknown license tier: %s", tier)
	}

	if price <= 0 {
		return nil, errors.New("offer price must be positive")
	}

	if len(formats) == 0 {
		return nil, errors.New("offer must deliver at least one format")
	}

	fileMap := make(JSONB, len(files))
	for _, format := range formats {
		if !format.Valid() {
			return nil, fmt.Errorf("unknown delivery format: %s", format)
		}

		key, ok := files[format]
		if !ok || key == "" {
			return nil, fmt.Errorf("offer is missing a file for format %s", format)
		}
		fileMap[string(format)] = key
	}

	return &LicenseOffer{
		BeatID:   beatID,
		Tier:     tier,
		Price:    price,
		Currency: currency,
		Formats:  formats,
		Files:    fileMap,
	}, nil
}

// FileKey returns the storage key for a delivered format.
func (o *LicenseOffer) FileKey(format DeliveryFormat) (string, bool) {
	if !o.Formats.Contains(format) {
		return "", false
	}

	key, ok := o.Files[string(format)].(string)
	return key, ok && key != ""
}
