// internal/services/fulfillment_service_test.go
package services

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/database"
	"github.com/soundhaus/label-backend/internal/models"
)

type FulfillmentTestSuite struct {
	suite.Suite
	db          *gorm.DB
	cfg         *config.Config
	fulfillment *FulfillmentService
}

func (suite *FulfillmentTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.cfg = newTestConfig()
	require.NoError(suite.T(), database.SeedDefaultTemplates(suite.db))

	templates := NewTemplateService(suite.db)
	licenses := NewLicenseService(suite.db, suite.cfg, templates)
	tickets := NewTicketService(suite.cfg)
	pdfs := NewPDFService(suite.cfg)
	storage, err := NewStorageService(suite.cfg)
	require.NoError(suite.T(), err)
	notifications := NewNotificationService(suite.cfg)

	suite.fulfillment = NewFulfillmentService(
		suite.db, suite.cfg, licenses, tickets, pdfs, storage, notifications)
}

func beatSession(id string, beat *models.Beat, offer *models.LicenseOffer) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            id,
		AmountTotal:   offer.Price,
		Currency:      stripe.Currency(offer.Currency),
		CustomerEmail: "buyer@example.com",
		Metadata: map[string]string{
			"beat_id":       beat.ID.String(),
			"offer_id":      offer.ID.String(),
			"tier":          string(offer.Tier),
			"customer_name": "Alex Buyer",
		},
	}
}

func ticketSession(id string, event *models.Event, quantity int) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            id,
		AmountTotal:   event.TicketPrice * int64(quantity),
		Currency:      stripe.Currency(event.Currency),
		CustomerEmail: "fan@example.com",
		Metadata: map[string]string{
			"event_id":      event.ID.String(),
			"quantity":      strconv.Itoa(quantity),
			"customer_name": "Robin Fan",
		},
	}
}

func (suite *FulfillmentTestSuite) TestBeatFulfillmentIssuesLicense() {
	beat, offer := seedBeat(suite.T(), suite.db)
	sess := beatSession("cs_beat_1", beat, offer)

	require.NoError(suite.T(), suite.fulfillment.FulfillBeatPurchase("evt_1", sess))

	var purchase models.Purchase
	require.NoError(suite.T(), suite.db.Preload("License").
		First(&purchase, "checkout_session_id = ?", "cs_beat_1").Error)

	assert.Equal(suite.T(), models.PurchaseStatusCompleted, purchase.Status)
	assert.Equal(suite.T(), "buyer@example.com", purchase.CustomerEmail)
	require.NotNil(suite.T(), purchase.License)
	assert.Equal(suite.T(), models.LicenseStatusIssued, purchase.License.Status)
	assert.NotEmpty(suite.T(), purchase.License.DocumentHash)
}

func (suite *FulfillmentTestSuite) TestBeatFulfillmentIsIdempotent() {
	beat, offer := seedBeat(suite.T(), suite.db)
	sess := beatSession("cs_beat_2", beat, offer)

	require.NoError(suite.T(), suite.fulfillment.FulfillBeatPurchase("evt_2", sess))
	// Gateway redelivers the same session under a new event id.
	require.NoError(suite.T(), suite.fulfillment.FulfillBeatPurchase("evt_2_retry", sess))

	var purchases, licenses int64
	suite.db.Model(&models.Purchase{}).Count(&purchases)
	suite.db.Model(&models.IssuedLicense{}).Count(&licenses)
	assert.EqualValues(suite.T(), 1, purchases)
	assert.EqualValues(suite.T(), 1, licenses)
}

func (suite *FulfillmentTestSuite) TestBeatFulfillmentAlertsOnMissingTemplate() {
	beat, offer := seedBeat(suite.T(), suite.db)
	require.NoError(suite.T(), suite.db.Model(&models.LicenseTemplate{}).
		Where("tier = ?", models.LicenseTierPremium).
		Update("active", false).Error)

	require.NoError(suite.T(), suite.fulfillment.FulfillBeatPurchase("evt_3", beatSession("cs_beat_3", beat, offer)))

	// The whole transaction rolled back; only the alert remains.
	var purchases int64
	suite.db.Model(&models.Purchase{}).Count(&purchases)
	assert.EqualValues(suite.T(), 0, purchases)

	var alert models.FulfillmentAlert
	require.NoError(suite.T(), suite.db.First(&alert, "session_id = ?", "cs_beat_3").Error)
	assert.Equal(suite.T(), models.AlertSourceBeatWebhook, alert.Source)
	assert.Equal(suite.T(), "issuance", alert.Stage)
}

func (suite *FulfillmentTestSuite) TestBeatFulfillmentAlertsOnBadMetadata() {
	sess := &stripe.CheckoutSession{
		ID:       "cs_beat_4",
		Metadata: map[string]string{"beat_id": "not-a-uuid"},
	}
	require.NoError(suite.T(), suite.fulfillment.FulfillBeatPurchase("evt_4", sess))

	var alert models.FulfillmentAlert
	require.NoError(suite.T(), suite.db.First(&alert, "session_id = ?", "cs_beat_4").Error)
	assert.Equal(suite.T(), "metadata", alert.Stage)
}

func (suite *FulfillmentTestSuite) TestTicketFulfillmentCreatesSeats() {
	event := seedEvent(suite.T(), suite.db, 10)

	require.NoError(suite.T(), suite.fulfillment.FulfillTicketPurchase("evt_5", ticketSession("cs_tix_1", event, 3)))

	var tickets []models.Ticket
	require.NoError(suite.T(), suite.db.Order("ticket_number").
		Find(&tickets, "purchase_id = ?", "cs_tix_1").Error)
	require.Len(suite.T(), tickets, 3)

	for i, ticket := range tickets {
		assert.Equal(suite.T(), i+1, ticket.TicketNumber)
		assert.Equal(suite.T(), 3, ticket.PurchaseQuantity)
		assert.Regexp(suite.T(), `^TKT-[0-9A-Z]{4}-[0-9A-Z]{4}$`, ticket.TicketCode)
		assert.Equal(suite.T(), models.TicketStatusActive, ticket.Status)
	}

	var reloaded models.Event
	require.NoError(suite.T(), suite.db.First(&reloaded, "id = ?", event.ID).Error)
	assert.Equal(suite.T(), 7, reloaded.AvailableTickets)
	assert.Equal(suite.T(), 3, reloaded.TicketsSold)
	assert.Equal(suite.T(), reloaded.TotalTickets, reloaded.AvailableTickets+reloaded.TicketsSold)

	var seen models.ProcessedWebhookEvent
	require.NoError(suite.T(), suite.db.First(&seen, "provider_event_id = ?", "evt_5").Error)
	assert.NotNil(suite.T(), seen.ProcessedAt)
}

func (suite *FulfillmentTestSuite) TestTicketFulfillmentIgnoresReplayedEvent() {
	event := seedEvent(suite.T(), suite.db, 10)
	sess := ticketSession("cs_tix_2", event, 3)

	require.NoError(suite.T(), suite.fulfillment.FulfillTicketPurchase("evt_6", sess))
	require.NoError(suite.T(), suite.fulfillment.FulfillTicketPurchase("evt_6", sess))

	var tickets int64
	suite.db.Model(&models.Ticket{}).Count(&tickets)
	assert.EqualValues(suite.T(), 3, tickets)

	var reloaded models.Event
	require.NoError(suite.T(), suite.db.First(&reloaded, "id = ?", event.ID).Error)
	assert.Equal(suite.T(), 7, reloaded.AvailableTickets)
}

func (suite *FulfillmentTestSuite) TestTicketFulfillmentRetriesAfterFailedAttempt() {
	event := seedEvent(suite.T(), suite.db, 10)

	// A previous delivery registered the event but died before committing
	// tickets: the gate row exists with no processed_at stamp.
	require.NoError(suite.T(), suite.db.Create(&models.ProcessedWebhookEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_8",
		EventType:       "checkout.session.completed",
		SessionID:       "cs_tix_4",
	}).Error)

	require.NoError(suite.T(), suite.fulfillment.FulfillTicketPurchase("evt_8", ticketSession("cs_tix_4", event, 3)))

	var tickets int64
	suite.db.Model(&models.Ticket{}).Where("purchase_id = ?", "cs_tix_4").Count(&tickets)
	assert.EqualValues(suite.T(), 3, tickets)

	var reloaded models.Event
	require.NoError(suite.T(), suite.db.First(&reloaded, "id = ?", event.ID).Error)
	assert.Equal(suite.T(), 7, reloaded.AvailableTickets)

	var seen models.ProcessedWebhookEvent
	require.NoError(suite.T(), suite.db.First(&seen, "provider_event_id = ?", "evt_8").Error)
	assert.NotNil(suite.T(), seen.ProcessedAt)
}

func (suite *FulfillmentTestSuite) TestTicketFulfillmentAlertsWhenOversold() {
	event := seedEvent(suite.T(), suite.db, 2)
	sess := ticketSession("cs_tix_3", event, 3)

	require.NoError(suite.T(), suite.fulfillment.FulfillTicketPurchase("evt_7", sess))

	var tickets int64
	suite.db.Model(&models.Ticket{}).Count(&tickets)
	assert.EqualValues(suite.T(), 0, tickets)

	var reloaded models.Event
	require.NoError(suite.T(), suite.db.First(&reloaded, "id = ?", event.ID).Error)
	assert.Equal(suite.T(), 2, reloaded.AvailableTickets)
	assert.Equal(suite.T(), 0, reloaded.TicketsSold)

	var alert models.FulfillmentAlert
	require.NoError(suite.T(), suite.db.First(&alert, "session_id = ?", "cs_tix_3").Error)
	assert.Equal(suite.T(), models.AlertSourceTicketWebhook, alert.Source)
	assert.Equal(suite.T(), "inventory", alert.Stage)
}

func TestFulfillmentSuite(t *testing.T) {
	suite.Run(t, new(FulfillmentTestSuite))
}
