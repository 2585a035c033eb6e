// internal/services/redemption_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/soundhaus/label-backend/internal/models"
)

// RedemptionService handles door-scan validation. Redemption is a one-way
// flip guarded by a conditional update, so two staff devices scanning the
// same ticket race safely: exactly one wins, the other sees who got there
// first.
type RedemptionService struct {
	db *gorm.DB
}

// TicketSummary is the public view of a ticket, safe to show anyone holding
// the validation code. No buyer contact details.
type TicketSummary struct {
	TicketCode   string              `json:"ticket_code"`
	EventName    string              `json:"event_name"`
	EventVenue   string              `json:"event_venue"`
	EventStarts  time.Time           `json:"event_starts"`
	TicketNumber int                 `json:"ticket_number"`
	Quantity     int                 `json:"purchase_quantity"`
	Status       models.TicketStatus `json:"status"`
	Validated    bool                `json:"validated"`
	ValidatedAt  *time.Time          `json:"validated_at,omitempty"`
}

func NewRedemptionService(db *gorm.DB) *RedemptionService {
	return &RedemptionService{db: db}
}

// RedeemTicket marks the ticket as used. On ErrAlreadyRedeemed the returned
// ticket carries the original validation details so the door staff can see
// when and by whom the code was first scanned.
func (s *RedemptionService) RedeemTicket(validationCode, validatedBy string) (*models.Ticket, error) {
	ticket, err := s.findByValidationCode(validationCode)
	if err != nil {
		return nil, err
	}

	if ticket.Status != models.TicketStatusActive {
		return ticket, ErrInvalidTicketStatus
	}

	now := time.Now().UTC()
	result := s.db.Model(&models.Ticket{}).
		Where("validation_code = ? AND validated = ?", validationCode, false).
		Updates(map[string]interface{}{
			"validated":    true,
			"validated_at": &now,
			"validated_by": validatedBy,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to redeem ticket: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Lost the race or the code was scanned earlier. Re-read to report
		// the winning validation.
		redeemed, err := s.findByValidationCode(validationCode)
		if err != nil {
			return nil, err
		}
		return redeemed, ErrAlreadyRedeemed
	}

	ticket.Validated = true
	ticket.ValidatedAt = &now
	ticket.ValidatedBy = validatedBy

	logrus.WithFields(logrus.Fields{
		"ticket_code":  ticket.TicketCode,
		"event_id":     ticket.EventID,
		"validated_by": validatedBy,
	}).Info("Ticket redeemed")

	return ticket, nil
}

// VerifyTicket returns the public summary for a validation code. Read-only;
// never changes redemption state.
func (s *RedemptionService) VerifyTicket(validationCode string) (*TicketSummary, error) {
	ticket, err := s.findByValidationCode(validationCode)
	if err != nil {
		return nil, err
	}

	return &TicketSummary{
		TicketCode:   ticket.TicketCode,
		EventName:    ticket.Event.Name,
		EventVenue:   ticket.Event.Venue,
		EventStarts:  ticket.Event.StartsAt,
		TicketNumber: ticket.TicketNumber,
		Quantity:     ticket.PurchaseQuantity,
		Status:       ticket.Status,
		Validated:    ticket.Validated,
		ValidatedAt:  ticket.ValidatedAt,
	}, nil
}

// GetTicket fetches the full record for staff views and re-downloads.
func (s *RedemptionService) GetTicket(validationCode string) (*models.Ticket, error) {
	return s.findByValidationCode(validationCode)
}

func (s *RedemptionService) findByValidationCode(validationCode string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.Preload("Event").First(&ticket, "validation_code = ?", validationCode).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &ticket, nil
}
