// internal/services/checkout_service.go
package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"gorm.io/gorm"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/models"
	"github.com/soundhaus/label-backend/internal/utils"
)

// CheckoutService validates an order and opens a hosted payment session.
// Metadata carries only the identifiers needed to reconstruct the order in
// the webhook; anything authoritative is re-fetched from the database there.
type CheckoutService struct {
	db     *gorm.DB
	config *config.Config
}

type BeatCheckoutRequest struct {
	BeatID        uuid.UUID `json:"beat_id" validate:"required"`
	OfferID       uuid.UUID `json:"offer_id" validate:"required"`
	CustomerEmail string    `json:"customer_email" validate:"required,email"`
	CustomerName  string    `json:"customer_name" validate:"required,max=255"`
}

type TicketCheckoutRequest struct {
	EventID       uuid.UUID `json:"event_id" validate:"required"`
	Quantity      int       `json:"quantity" validate:"required,min=1,max=20"`
	CustomerEmail string    `json:"customer_email" validate:"required,email"`
	CustomerName  string    `json:"customer_name" validate:"required,max=255"`
}

type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Stripe's per-currency minimum charge amounts, in minor units.
var minimumCharge = map[string]int64{
	"usd": 50,
	"eur": 50,
	"gbp": 30,
	"chf": 50,
	"cad": 50,
	"aud": 50,
	"dkk": 250,
	"nok": 300,
	"sek": 300,
	"pln": 200,
	"jpy": 50,
}

func NewCheckoutService(db *gorm.DB, cfg *config.Config) *CheckoutService {
	// Initialize Stripe
	stripe.Key = cfg.Stripe.SecretKey

	return &CheckoutService{
		db:     db,
		config: cfg,
	}
}

func (s *CheckoutService) CreateBeatCheckoutSession(req *BeatCheckoutRequest) (*CheckoutSessionResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var beat models.Beat
	if err := s.db.Preload("Offers").First(&beat, "id = ? AND published = ?", req.BeatID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBeatNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var offer *models.LicenseOffer
	for i := range beat.Offers {
		if beat.Offers[i].ID == req.OfferID {
			offer = &beat.Offers[i]
			break
		}
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(offer.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(beat.Title),
						Description: stripe.String(fmt.Sprintf("%s license · prod. %s", offer.Tier, beat.Producer)),
					},
					UnitAmount: stripe.Int64(offer.Price),
				},
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(req.CustomerEmail),
		SuccessURL:    stripe.String(s.config.Frontend.BaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(s.config.Frontend.BaseURL + "/checkout/cancelled"),
	}
	params.AddMetadata("beat_id", beat.ID.String())
	params.AddMetadata("offer_id", offer.ID.String())
	params.AddMetadata("tier", string(offer.Tier))
	params.AddMetadata("customer_name", req.CustomerName)

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSessionResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *CheckoutService) CreateTicketCheckoutSession(req *TicketCheckoutRequest) (*CheckoutSessionResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var event models.Event
	if err := s.db.First(&event, "id = ?", req.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !event.TicketsEnabled {
		return nil, ErrTicketingDisabled
	}

	if event.AvailableTickets < req.Quantity {
		return nil, ErrInsufficientStock
	}

	if !event.SaleOpen(time.Now()) {
		return nil, ErrOutsideSaleWindow
	}

	total := event.TicketPrice * int64(req.Quantity)
	if minimum, ok := minimumCharge[event.Currency]; ok && total < minimum {
		return nil, ErrBelowMinimumCharge
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(event.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(event.Name + " — Ticket"),
						Description: stripe.String(fmt.Sprintf("%s · %s", event.Venue, event.StartsAt.Format("02 Jan 2006"))),
					},
					UnitAmount: stripe.Int64(event.TicketPrice),
				},
				Quantity: stripe.Int64(int64(req.Quantity)),
			},
		},
		CustomerEmail: stripe.String(req.CustomerEmail),
		SuccessURL:    stripe.String(s.config.Frontend.BaseURL + "/tickets/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(s.config.Frontend.BaseURL + "/tickets/cancelled"),
	}
	params.AddMetadata("event_id", event.ID.String())
	params.AddMetadata("quantity", strconv.Itoa(req.Quantity))
	params.AddMetadata("customer_name", req.CustomerName)

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSessionResponse{SessionID: sess.ID, URL: sess.URL}, nil
}
