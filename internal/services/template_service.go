// internal/services/template_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soundhaus/label-backend/internal/models"
	"github.com/soundhaus/label-backend/internal/utils"
)

// TemplateService is the registry of versioned license rule sets. New
// issuance always resolves against the highest active version of a tier;
// older versions stay around because issued licenses reference them.
type TemplateService struct {
	db *gorm.DB
}

type CreateTemplateRequest struct {
	Tier              models.LicenseTier `json:"tier" validate:"required"`
	StreamCap         int64              `json:"stream_cap" validate:"min=0"`
	VideoCap          int64              `json:"video_cap" validate:"min=0"`
	PhysicalCopyCap   int64              `json:"physical_copy_cap" validate:"min=0"`
	ContentIDAllowed  bool               `json:"content_id_allowed"`
	PerformanceRights bool               `json:"performance_rights"`
	BroadcastRights   bool               `json:"broadcast_rights"`
	ProducerSplit     int                `json:"producer_split" validate:"min=0,max=100"`
	LicenseeSplit     int                `json:"licensee_split" validate:"min=0,max=100"`
	CreditLine        string             `json:"credit_line"`
	Jurisdiction      string             `json:"jurisdiction"`
}

func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

// ActiveTemplate resolves the template used for new issuance of a tier.
// There is no fallback: a missing template is a deployment error, not
// something to paper over mid-request.
func (s *TemplateService) ActiveTemplate(tier models.LicenseTier) (*models.LicenseTemplate, error) {
	return s.activeTemplate(s.db, tier)
}

func (s *TemplateService) activeTemplate(db *gorm.DB, tier models.LicenseTier) (*models.LicenseTemplate, error) {
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}

	var template models.LicenseTemplate
	err := db.Where("tier = ? AND active = ?", tier, true).
		Order("version DESC").
		First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateUnavailable, tier)
		}
		return nil, fmt.Errorf("failed to resolve active template: %w", err)
	}

	return &template, nil
}

// CreateVersion installs a new template version for a tier. The version is
// always max+1; existing versions are never edited.
func (s *TemplateService) CreateVersion(req *CreateTemplateRequest) (*models.LicenseTemplate, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if !req.Tier.Valid() {
		return nil, ErrInvalidTier
	}

	if req.ProducerSplit+req.LicenseeSplit != 100 {
		return nil, errors.New("publishing split must sum to 100")
	}

	var template *models.LicenseTemplate
	err := s.withTransaction(func(tx *gorm.DB) error {
		var maxVersion int
		if err := tx.Model(&models.LicenseTemplate{}).
			Where("tier = ?", req.Tier).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return fmt.Errorf("failed to determine latest version: %w", err)
		}

		template = &models.LicenseTemplate{
			Tier:              req.Tier,
			Version:           maxVersion + 1,
			StreamCap:         req.StreamCap,
			VideoCap:          req.VideoCap,
			PhysicalCopyCap:   req.PhysicalCopyCap,
			ContentIDAllowed:  req.ContentIDAllowed,
			PerformanceRights: req.PerformanceRights,
			BroadcastRights:   req.BroadcastRights,
			ProducerSplit:     req.ProducerSplit,
			LicenseeSplit:     req.LicenseeSplit,
			CreditLine:        req.CreditLine,
			Jurisdiction:      req.Jurisdiction,
			Active:            true,
		}

		if err := tx.Create(template).Error; err != nil {
			return fmt.Errorf("failed to create template version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return template, nil
}

// Deactivate takes a template version out of rotation. Licenses already
// issued against it keep their snapshots.
func (s *TemplateService) Deactivate(id uuid.UUID) error {
	result := s.db.Model(&models.LicenseTemplate{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate template: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTemplateUnavailable, id)
	}
	return nil
}

// ListTemplates returns all versions for a tier, newest first.
func (s *TemplateService) ListTemplates(tier models.LicenseTier) ([]models.LicenseTemplate, error) {
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}

	var templates []models.LicenseTemplate
	if err := s.db.Where("tier = ?", tier).
		Order("version DESC").
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	return templates, nil
}

func (s *TemplateService) withTransaction(fn func(*gorm.DB) error) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
