// internal/services/services_test.go
package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/database"
	"github.com/soundhaus/label-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.RunMigrations(db))
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		License: config.LicenseConfig{
			BrandPrefix:  "SHR",
			PlatformName: "Soundhaus Records",
		},
		Frontend: config.FrontendConfig{
			BaseURL: "https://shop.soundhaus.test",
		},
	}
}

func seedBeat(t *testing.T, db *gorm.DB) (*models.Beat, *models.LicenseOffer) {
	t.Helper()

	offer, err := models.NewLicenseOffer(
		uuid.Nil,
		models.LicenseTierPremium,
		4900,
		"eur",
		models.FormatList{models.FormatMP3, models.FormatWAV},
		map[models.DeliveryFormat]string{
			models.FormatMP3: "beats/night-drive/master.mp3",
			models.FormatWAV: "beats/night-drive/master.wav",
		},
	)
	require.NoError(t, err)

	beat := &models.Beat{
		Title:      "Night Drive",
		Producer:   "KVN",
		BPM:        140,
		MusicalKey: "F minor",
		Published:  true,
	}
	require.NoError(t, db.Create(beat).Error)

	offer.BeatID = beat.ID
	require.NoError(t, db.Create(offer).Error)

	beat.Offers = []models.LicenseOffer{*offer}
	return beat, offer
}

func seedEvent(t *testing.T, db *gorm.DB, total int) *models.Event {
	t.Helper()

	starts := time.Now().Add(72 * time.Hour)
	event := &models.Event{
		Name:             "Label Night",
		Venue:            "Gretchen",
		City:             "Berlin",
		StartsAt:         starts,
		TicketsEnabled:   true,
		TicketPrice:      2500,
		Currency:         "eur",
		TotalTickets:     total,
		AvailableTickets: total,
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func seedPurchase(t *testing.T, db *gorm.DB, beat *models.Beat, offer *models.LicenseOffer, sessionID string) *models.Purchase {
	t.Helper()

	now := time.Now().UTC()
	purchase := &models.Purchase{
		BeatID:            beat.ID,
		OfferID:           offer.ID,
		Tier:              offer.Tier,
		CheckoutSessionID: sessionID,
		CustomerEmail:     "buyer@example.com",
		CustomerName:      "Alex Buyer",
		AmountTotal:       offer.Price,
		Currency:          offer.Currency,
		Status:            models.PurchaseStatusCompleted,
		CompletedAt:       &now,
	}
	require.NoError(t, db.Create(purchase).Error)
	return purchase
}
