// internal/services/license_service.go
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/models"
)

// LicenseService turns a completed purchase into an immutable, hash-verifiable
// license record with a human-readable sequential number.
type LicenseService struct {
	db        *gorm.DB
	config    *config.Config
	templates *TemplateService
}

type VerificationResult struct {
	Valid   bool            `json:"valid"`
	Message string          `json:"message"`
	License *LicenseSummary `json:"license,omitempty"`
}

// LicenseSummary is the public face of a license. The verify endpoint is
// unauthenticated, so buyer identity stays out of it.
type LicenseSummary struct {
	LicenseNumber string               `json:"license_number"`
	Tier          models.LicenseTier   `json:"tier"`
	Status        models.LicenseStatus `json:"status"`
	BeatTitle     string               `json:"beat_title"`
	IssuedAt      time.Time            `json:"issued_at"`
}

func summarizeLicense(license *models.IssuedLicense) *LicenseSummary {
	return &LicenseSummary{
		LicenseNumber: license.LicenseNumber,
		Tier:          license.Tier,
		Status:        license.Status,
		BeatTitle:     license.BeatTitle,
		IssuedAt:      license.IssuedAt,
	}
}

// licenseDigest fixes the field order of the canonical JSON the document
// hash is computed over. Changing this layout invalidates every stored hash.
type licenseDigest struct {
	LicenseID     string `json:"license_id"`
	LicenseNumber string `json:"license_number"`
	BeatTitle     string `json:"beat_title"`
	BuyerEmail    string `json:"buyer_email"`
	IssuedAt      string `json:"issued_at"`
}

func NewLicenseService(db *gorm.DB, cfg *config.Config, templates *TemplateService) *LicenseService {
	return &LicenseService{
		db:        db,
		config:    cfg,
		templates: templates,
	}
}

// IssueLicense creates the license record for a completed beat purchase
// inside the caller's transaction. The template limits are deep-copied onto
// the license; later template edits never reach an issued document.
func (s *LicenseService) IssueLicense(tx *gorm.DB, purchase *models.Purchase, beat *models.Beat) (*models.IssuedLicense, error) {
	template, err := s.templates.activeTemplate(tx, purchase.Tier)
	if err != nil {
		return nil, err
	}

	// Sub-second precision does not survive every driver round-trip, and the
	// timestamp is part of the hashed document.
	issuedAt := time.Now().UTC().Truncate(time.Second)

	number, err := s.nextLicenseNumber(tx, issuedAt.Year())
	if err != nil {
		return nil, err
	}

	license := &models.IssuedLicense{
		BaseModel:       models.BaseModel{ID: uuid.New()},
		LicenseNumber:   number,
		TemplateID:      template.ID,
		TemplateVersion: template.Version,
		Tier:            purchase.Tier,
		PurchaseID:      purchase.ID,
		BeatTitle:       beat.Title,
		BeatBPM:         beat.BPM,
		BeatKey:         beat.MusicalKey,
		BuyerEmail:      purchase.CustomerEmail,
		BuyerName:       purchase.CustomerName,
		AmountTotal:     purchase.AmountTotal,
		Currency:        purchase.Currency,
		LimitsSnapshot:  template.Limits(),
		Status:          models.LicenseStatusIssued,
		IssuedAt:        issuedAt,
	}

	hash, err := documentHash(license)
	if err != nil {
		return nil, fmt.Errorf("failed to compute document hash: %w", err)
	}
	license.DocumentHash = hash

	if err := tx.Create(license).Error; err != nil {
		return nil, fmt.Errorf("failed to persist license: %w", err)
	}

	return license, nil
}

// nextLicenseNumber reserves the next sequence for the year in one
// insert-or-increment statement. A reserved number is burned even if
// issuance fails afterwards; gaps are fine, reuse is not.
func (s *LicenseService) nextLicenseNumber(tx *gorm.DB, year int) (string, error) {
	var seq int64
	err := tx.Raw(
		`INSERT INTO license_counters (year, seq) VALUES (?, 1)
		 ON CONFLICT (year) DO UPDATE SET seq = license_counters.seq + 1
		 RETURNING seq`, year).Scan(&seq).Error
	if err != nil {
		return "", fmt.Errorf("failed to reserve license number: %w", err)
	}

	return fmt.Sprintf("%s-%d-%06d", s.config.License.BrandPrefix, year, seq), nil
}

// VerifyLicense looks up a license by its id or human-readable number and
// checks both status and document integrity.
func (s *LicenseService) VerifyLicense(identifier string) (*VerificationResult, error) {
	license, err := s.findByIdentifier(identifier)
	if err != nil {
		if errors.Is(err, ErrLicenseNotFound) {
			return &VerificationResult{Valid: false, Message: "License not found"}, nil
		}
		return nil, err
	}

	if license.Status != models.LicenseStatusIssued {
		return &VerificationResult{
			Valid:   false,
			Message: fmt.Sprintf("License is %s", license.Status),
			License: summarizeLicense(license),
		}, nil
	}

	hash, err := documentHash(license)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute document hash: %w", err)
	}

	if hash != license.DocumentHash {
		return &VerificationResult{
			Valid:   false,
			Message: "License record failed integrity verification",
		}, nil
	}

	return &VerificationResult{
		Valid:   true,
		Message: "License is valid",
		License: summarizeLicense(license),
	}, nil
}

// GetLicense fetches a license by id for the download path.
func (s *LicenseService) GetLicense(id uuid.UUID) (*models.IssuedLicense, error) {
	var license models.IssuedLicense
	if err := s.db.First(&license, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

// RevokeLicense flips an issued license to revoked. One-way.
func (s *LicenseService) RevokeLicense(id uuid.UUID) error {
	result := s.db.Model(&models.IssuedLicense{}).
		Where("id = ? AND status = ?", id, models.LicenseStatusIssued).
		Update("status", models.LicenseStatusRevoked)
	if result.Error != nil {
		return fmt.Errorf("failed to revoke license: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLicenseNotFound
	}
	return nil
}

func (s *LicenseService) findByIdentifier(identifier string) (*models.IssuedLicense, error) {
	var license models.IssuedLicense

	query := s.db
	if id, err := uuid.Parse(identifier); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("license_number = ?", identifier)
	}

	if err := query.First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &license, nil
}

func documentHash(license *models.IssuedLicense) (string, error) {
	digest := licenseDigest{
		LicenseID:     license.ID.String(),
		LicenseNumber: license.LicenseNumber,
		BeatTitle:     license.BeatTitle,
		BuyerEmail:    license.BuyerEmail,
		IssuedAt:      license.IssuedAt.UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(digest)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
