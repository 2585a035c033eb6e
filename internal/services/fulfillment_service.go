// internal/services/fulfillment_service.go
package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/database"
	"github.com/soundhaus/label-backend/internal/models"
)

// FulfillmentService turns verified payment events into orders, licenses and
// tickets. Everything here runs after the customer has paid, so business
// failures are recorded as alerts and acknowledged instead of bounced back to
// the gateway; only a database outage propagates as an error.
type FulfillmentService struct {
	db            *gorm.DB
	config        *config.Config
	licenses      *LicenseService
	tickets       *TicketService
	pdfs          *PDFService
	storage       *StorageService
	notifications *NotificationService
}

const webhookProviderStripe = "stripe"

// Raised inside the ticket transaction when a concurrent delivery of the
// same event stamped the gate row first.
var errEventAlreadyProcessed = errors.New("webhook event already processed")

func NewFulfillmentService(
	db *gorm.DB,
	cfg *config.Config,
	licenses *LicenseService,
	tickets *TicketService,
	pdfs *PDFService,
	storage *StorageService,
	notifications *NotificationService,
) *FulfillmentService {
	return &FulfillmentService{
		db:            db,
		config:        cfg,
		licenses:      licenses,
		tickets:       tickets,
		pdfs:          pdfs,
		storage:       storage,
		notifications: notifications,
	}
}

type beatOrderMetadata struct {
	BeatID       uuid.UUID
	OfferID      uuid.UUID
	CustomerName string
}

type ticketOrderMetadata struct {
	EventID      uuid.UUID
	Quantity     int
	CustomerName string
}

// FulfillBeatPurchase records the purchase and issues its license in one
// transaction. The unique index on checkout_session_id is the idempotency
// gate: a redelivered event trips the constraint and is acknowledged without
// creating a second order.
func (s *FulfillmentService) FulfillBeatPurchase(eventID string, sess *stripe.CheckoutSession) error {
	log := logrus.WithFields(logrus.Fields{
		"event_id":   eventID,
		"session_id": sess.ID,
	})

	meta, err := parseBeatMetadata(sess)
	if err != nil {
		log.WithError(err).Error("Beat checkout session has unusable metadata")
		return s.recordAlert(models.AlertSourceBeatWebhook, sess.ID, "metadata", err.Error(), models.JSONB{
			"event_id": eventID,
			"metadata": sess.Metadata,
		})
	}

	var beat models.Beat
	if err := s.db.Preload("Offers").First(&beat, "id = ?", meta.BeatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Beat referenced by paid session no longer exists")
			return s.recordAlert(models.AlertSourceBeatWebhook, sess.ID, "lookup",
				"beat not found for paid session", models.JSONB{"beat_id": meta.BeatID.String()})
		}
		return fmt.Errorf("failed to load beat: %w", err)
	}

	var offer *models.LicenseOffer
	for i := range beat.Offers {
		if beat.Offers[i].ID == meta.OfferID {
			offer = &beat.Offers[i]
			break
		}
	}
	if offer == nil {
		log.Error("Offer referenced by paid session no longer exists")
		return s.recordAlert(models.AlertSourceBeatWebhook, sess.ID, "lookup",
			"license offer not found for paid session", models.JSONB{"offer_id": meta.OfferID.String()})
	}

	now := time.Now().UTC()
	purchase := &models.Purchase{
		BaseModel:         models.BaseModel{ID: uuid.New()},
		BeatID:            beat.ID,
		OfferID:           offer.ID,
		Tier:              offer.Tier,
		CheckoutSessionID: sess.ID,
		CustomerEmail:     customerEmail(sess),
		CustomerName:      meta.CustomerName,
		AmountTotal:       sess.AmountTotal,
		Currency:          string(sess.Currency),
		Status:            models.PurchaseStatusCompleted,
		CompletedAt:       &now,
	}

	var license *models.IssuedLicense
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(purchase).Error; err != nil {
			return err
		}
		issued, err := s.licenses.IssueLicense(tx, purchase, &beat)
		if err != nil {
			return err
		}
		license = issued
		return nil
	})

	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Info("Session already fulfilled, acknowledging redelivery")
			return nil
		}
		if errors.Is(err, ErrTemplateUnavailable) {
			log.WithError(err).Error("License issuance blocked by missing template")
			return s.recordAlert(models.AlertSourceBeatWebhook, sess.ID, "issuance",
				err.Error(), models.JSONB{"tier": string(offer.Tier)})
		}
		return fmt.Errorf("failed to fulfill beat purchase: %w", err)
	}

	log.WithField("license_number", license.LicenseNumber).Info("License issued")

	s.deliverLicense(sess.ID, license, offer)
	return nil
}

// FulfillTicketPurchase decrements inventory and creates the per-seat tickets
// atomically. The processed-event table is the idempotency gate here: the
// same gateway event id can only ever be inserted once.
func (s *FulfillmentService) FulfillTicketPurchase(eventID string, sess *stripe.CheckoutSession) error {
	log := logrus.WithFields(logrus.Fields{
		"event_id":   eventID,
		"session_id": sess.ID,
	})

	seen := &models.ProcessedWebhookEvent{
		Provider:        webhookProviderStripe,
		ProviderEventID: eventID,
		EventType:       "checkout.session.completed",
		SessionID:       sess.ID,
	}
	if err := s.db.Create(seen).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to register webhook event: %w", err)
		}

		// The gate row alone does not prove the order exists: a prior
		// attempt may have inserted it and then failed before committing
		// tickets. Only a set processed_at marks a finished delivery; an
		// unset one means the gateway retry must run fulfillment again.
		if err := s.db.First(seen, "provider = ? AND provider_event_id = ?",
			webhookProviderStripe, eventID).Error; err != nil {
			return fmt.Errorf("failed to load webhook event record: %w", err)
		}
		if seen.ProcessedAt != nil {
			log.Info("Event already processed, acknowledging redelivery")
			return nil
		}
		log.Info("Retrying fulfillment for previously failed event")
	}

	meta, err := parseTicketMetadata(sess)
	if err != nil {
		log.WithError(err).Error("Ticket checkout session has unusable metadata")
		return s.recordAlert(models.AlertSourceTicketWebhook, sess.ID, "metadata", err.Error(), models.JSONB{
			"event_id": eventID,
			"metadata": sess.Metadata,
		})
	}

	var event models.Event
	if err := s.db.First(&event, "id = ?", meta.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Event referenced by paid session no longer exists")
			return s.recordAlert(models.AlertSourceTicketWebhook, sess.ID, "lookup",
				"event not found for paid session", models.JSONB{"ticketed_event_id": meta.EventID.String()})
		}
		return fmt.Errorf("failed to load event: %w", err)
	}

	ctx := PurchaseContext{
		PurchaseID:    sess.ID,
		Quantity:      meta.Quantity,
		CustomerEmail: customerEmail(sess),
		CustomerName:  meta.CustomerName,
		TotalAmount:   sess.AmountTotal,
		Currency:      string(sess.Currency),
	}

	tickets, err := s.tickets.GenerateMultipleTickets(&event, ctx)
	if err != nil {
		log.WithError(err).Error("Failed to generate ticket data")
		return s.recordAlert(models.AlertSourceTicketWebhook, sess.ID, "generation",
			err.Error(), models.JSONB{"quantity": meta.Quantity})
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		// Single conditional update keeps the decrement atomic under
		// concurrent webhooks; no row lock held across other statements.
		result := tx.Model(&models.Event{}).
			Where("id = ? AND available_tickets >= ?", event.ID, meta.Quantity).
			Updates(map[string]interface{}{
				"available_tickets": gorm.Expr("available_tickets - ?", meta.Quantity),
				"tickets_sold":      gorm.Expr("tickets_sold + ?", meta.Quantity),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInsufficientStock
		}

		for _, ticket := range tickets {
			if err := tx.Create(ticket).Error; err != nil {
				return err
			}
		}

		// Conditional stamp: if a concurrent retry finished first, back
		// out instead of double-issuing seats.
		processedAt := time.Now().UTC()
		result = tx.Model(&models.ProcessedWebhookEvent{}).
			Where("id = ? AND processed_at IS NULL", seen.ID).
			Update("processed_at", &processedAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errEventAlreadyProcessed
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, errEventAlreadyProcessed) {
			log.Info("Event already processed, acknowledging redelivery")
			return nil
		}
		if errors.Is(err, ErrInsufficientStock) {
			// Payment went through for seats we no longer have. Support
			// resolves these manually (refund or reallocation).
			log.Error("Paid order exceeds remaining inventory")
			return s.recordAlert(models.AlertSourceTicketWebhook, sess.ID, "inventory",
				"paid order exceeds remaining ticket inventory", models.JSONB{
					"ticketed_event_id": event.ID.String(),
					"quantity":          meta.Quantity,
				})
		}
		return fmt.Errorf("failed to fulfill ticket purchase: %w", err)
	}

	log.WithField("quantity", len(tickets)).Info("Tickets issued")

	s.deliverTickets(tickets, &event)
	return nil
}

// deliverLicense renders the document, mints download links and mails the
// buyer. Best-effort: the license already exists, so failures become alerts.
func (s *FulfillmentService) deliverLicense(sessionID string, license *models.IssuedLicense, offer *models.LicenseOffer) {
	pdf, err := s.pdfs.RenderLicensePDF(license)
	if err != nil {
		s.deliveryAlert(sessionID, "render",
			fmt.Sprintf("license PDF render failed: %v", err),
			models.JSONB{"license_number": license.LicenseNumber})
		return
	}

	links, err := s.storage.DeliveryLinks(offer)
	if err != nil {
		logrus.WithError(err).WithField("license_number", license.LicenseNumber).
			Warn("Could not mint download links, sending license without files")
		links = nil
	}

	if err := s.notifications.SendLicenseDelivery(license, pdf, links); err != nil {
		s.deliveryAlert(sessionID, "email",
			fmt.Sprintf("license delivery email failed: %v", err),
			models.JSONB{"license_number": license.LicenseNumber, "buyer_email": license.BuyerEmail})
	}
}

func (s *FulfillmentService) deliverTickets(tickets []*models.Ticket, event *models.Event) {
	if len(tickets) == 0 {
		return
	}

	pdf, err := s.pdfs.RenderCombinedTicketsPDF(tickets, event)
	if err != nil {
		s.deliveryAlert(tickets[0].PurchaseID, "render",
			fmt.Sprintf("ticket PDF render failed: %v", err),
			models.JSONB{"ticketed_event_id": event.ID.String()})
		return
	}

	if err := s.notifications.SendTicketDelivery(tickets, event, pdf); err != nil {
		s.deliveryAlert(tickets[0].PurchaseID, "email",
			fmt.Sprintf("ticket delivery email failed: %v", err),
			models.JSONB{"ticketed_event_id": event.ID.String(), "customer_email": tickets[0].CustomerEmail})
	}
}

// recordAlert persists a post-payment failure for support. Returning an error
// here means even the alert could not be written, which is the one case the
// webhook should surface to the gateway.
func (s *FulfillmentService) recordAlert(source, sessionID, stage, message string, details models.JSONB) error {
	alert := &models.FulfillmentAlert{
		Source:    source,
		SessionID: sessionID,
		Stage:     stage,
		Message:   message,
		Details:   details,
	}

	if err := s.db.Create(alert).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"source":     source,
			"session_id": sessionID,
			"stage":      stage,
		}).Error("Failed to record fulfillment alert")
		return fmt.Errorf("failed to record fulfillment alert: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"source":     source,
		"session_id": sessionID,
		"stage":      stage,
		"message":    message,
	}).Warn("Fulfillment alert recorded")
	return nil
}

func (s *FulfillmentService) deliveryAlert(sessionID, stage, message string, details models.JSONB) {
	// Delivery runs after the order is safely persisted; if the alert write
	// fails too there is nothing left to do but log.
	_ = s.recordAlert(models.AlertSourceDelivery, sessionID, stage, message, details)
}

func parseBeatMetadata(sess *stripe.CheckoutSession) (*beatOrderMetadata, error) {
	beatID, err := uuid.Parse(sess.Metadata["beat_id"])
	if err != nil {
		return nil, fmt.Errorf("invalid beat_id in session metadata: %w", err)
	}
	offerID, err := uuid.Parse(sess.Metadata["offer_id"])
	if err != nil {
		return nil, fmt.Errorf("invalid offer_id in session metadata: %w", err)
	}

	return &beatOrderMetadata{
		BeatID:       beatID,
		OfferID:      offerID,
		CustomerName: sess.Metadata["customer_name"],
	}, nil
}

func parseTicketMetadata(sess *stripe.CheckoutSession) (*ticketOrderMetadata, error) {
	eventID, err := uuid.Parse(sess.Metadata["event_id"])
	if err != nil {
		return nil, fmt.Errorf("invalid event_id in session metadata: %w", err)
	}
	quantity, err := strconv.Atoi(sess.Metadata["quantity"])
	if err != nil || quantity < 1 {
		return nil, fmt.Errorf("invalid quantity in session metadata: %q", sess.Metadata["quantity"])
	}

	return &ticketOrderMetadata{
		EventID:      eventID,
		Quantity:     quantity,
		CustomerName: sess.Metadata["customer_name"],
	}, nil
}

func customerEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	return sess.CustomerEmail
}
