// internal/handlers/ticket_test.go
package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/database"
	"github.com/soundhaus/label-backend/internal/models"
	"github.com/soundhaus/label-backend/internal/services"
)

type TicketHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
	event  *models.Event
}

func (suite *TicketHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), database.RunMigrations(db))
	suite.db = db

	cfg := &config.Config{
		Environment: "test",
		Frontend:    config.FrontendConfig{BaseURL: "https://shop.soundhaus.test"},
		License:     config.LicenseConfig{PlatformName: "Soundhaus Records"},
	}

	handler := NewTicketHandler(services.NewRedemptionService(db), services.NewPDFService(cfg))

	suite.router = gin.New()
	suite.router.POST("/v1/tickets/validate/:code", func(c *gin.Context) {
		c.Set("user_email", "door@soundhaus.io")
		c.Next()
	}, handler.ValidateTicket)

	suite.event = &models.Event{
		Name:             "Label Night",
		Venue:            "Gretchen",
		City:             "Berlin",
		StartsAt:         time.Now().Add(48 * time.Hour),
		TicketsEnabled:   true,
		TicketPrice:      2500,
		Currency:         "eur",
		TotalTickets:     10,
		AvailableTickets: 8,
		TicketsSold:      2,
	}
	require.NoError(suite.T(), suite.db.Create(suite.event).Error)
}

func (suite *TicketHandlerTestSuite) seedTicket(status models.TicketStatus) *models.Ticket {
	ticket := &models.Ticket{
		EventID:          suite.event.ID,
		PurchaseID:       "cs_tix_" + uuid.NewString()[:8],
		TicketCode:       "TKT-" + uuid.NewString()[:4] + "-TEST",
		ValidationCode:   uuid.NewString(),
		TicketNumber:     1,
		PurchaseQuantity: 1,
		CustomerEmail:    "fan@example.com",
		CustomerName:     "Robin Fan",
		TotalAmount:      2500,
		Currency:         "eur",
		Status:           status,
	}
	require.NoError(suite.T(), suite.db.Create(ticket).Error)
	return ticket
}

func (suite *TicketHandlerTestSuite) validate(code string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/v1/tickets/validate/"+code, nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *TicketHandlerTestSuite) TestValidateActiveTicket() {
	ticket := suite.seedTicket(models.TicketStatusActive)

	w := suite.validate(ticket.ValidationCode)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var reloaded models.Ticket
	require.NoError(suite.T(), suite.db.First(&reloaded, "id = ?", ticket.ID).Error)
	assert.True(suite.T(), reloaded.Validated)
	assert.Equal(suite.T(), "door@soundhaus.io", reloaded.ValidatedBy)
}

func (suite *TicketHandlerTestSuite) TestValidateUnknownCode() {
	w := suite.validate(uuid.NewString())
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *TicketHandlerTestSuite) TestSecondValidationConflicts() {
	ticket := suite.seedTicket(models.TicketStatusActive)

	first := suite.validate(ticket.ValidationCode)
	second := suite.validate(ticket.ValidationCode)
	assert.Equal(suite.T(), http.StatusOK, first.Code)
	assert.Equal(suite.T(), http.StatusConflict, second.Code)
	assert.Contains(suite.T(), second.Body.String(), "already been validated")
}

func (suite *TicketHandlerTestSuite) TestCancelledTicketIsBadRequest() {
	ticket := suite.seedTicket(models.TicketStatusCancelled)

	w := suite.validate(ticket.ValidationCode)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "cancelled")

	var reloaded models.Ticket
	require.NoError(suite.T(), suite.db.First(&reloaded, "id = ?", ticket.ID).Error)
	assert.False(suite.T(), reloaded.Validated)
}

func TestTicketHandlerSuite(t *testing.T) {
	suite.Run(t, new(TicketHandlerTestSuite))
}
