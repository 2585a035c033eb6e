// internal/services/pdf_service_test.go
package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundhaus/label-backend/internal/models"
)

func TestRenderLicensePDF(t *testing.T) {
	svc := NewPDFService(newTestConfig())

	license := &models.IssuedLicense{
		BaseModel:     models.BaseModel{ID: uuid.New()},
		LicenseNumber: "SHR-2026-000042",
		Tier:          models.LicenseTierPremium,
		BeatTitle:     "Night Drive",
		BeatBPM:       140,
		BeatKey:       "F minor",
		BuyerEmail:    "buyer@example.com",
		BuyerName:     "Alex Buyer",
		AmountTotal:   4900,
		Currency:      "eur",
		LimitsSnapshot: models.JSONB{
			"stream_cap":         float64(1000000),
			"video_cap":          float64(3),
			"physical_copy_cap":  float64(0),
			"content_id_allowed": true,
			"performance_rights": true,
			"broadcast_rights":   false,
			"producer_split":     float64(50),
			"licensee_split":     float64(50),
			"credit_line":        "Prod. by Soundhaus",
			"jurisdiction":       "Germany",
		},
		DocumentHash: "deadbeef",
		Status:       models.LicenseStatusIssued,
		IssuedAt:     time.Now().UTC(),
	}

	pdf, err := svc.RenderLicensePDF(license)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestRenderCombinedTicketsPDF(t *testing.T) {
	svc := NewPDFService(newTestConfig())
	tickets, err := NewTicketService(newTestConfig()).GenerateMultipleTickets(testEvent(), PurchaseContext{
		PurchaseID:    "cs_tix_pdf",
		Quantity:      2,
		CustomerEmail: "fan@example.com",
		CustomerName:  "Robin Fan",
		TotalAmount:   5000,
		Currency:      "eur",
	})
	require.NoError(t, err)

	pdf, err := svc.RenderCombinedTicketsPDF(tickets, testEvent())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestRenderCombinedTicketsPDFOnePagePerSeat(t *testing.T) {
	cfg := newTestConfig()
	svc := NewPDFService(cfg)
	ticketSvc := NewTicketService(cfg)

	tickets, err := ticketSvc.GenerateMultipleTickets(testEvent(), PurchaseContext{
		PurchaseID:    "cs_tix_pdf5",
		Quantity:      5,
		CustomerEmail: "fan@example.com",
		CustomerName:  "Robin Fan",
		TotalAmount:   12500,
		Currency:      "eur",
	})
	require.NoError(t, err)
	require.Len(t, tickets, 5)

	// Every seat carries its own QR payload.
	urls := make(map[string]struct{}, len(tickets))
	for _, ticket := range tickets {
		urls[ticketSvc.ValidationURL(ticket)] = struct{}{}
	}
	assert.Len(t, urls, 5)

	pdf, err := svc.RenderCombinedTicketsPDF(tickets, testEvent())
	require.NoError(t, err)

	// Page dictionaries are stored uncompressed; /Type /Pages is the tree
	// root, the rest are the actual pages.
	pages := bytes.Count(pdf, []byte("/Type /Page")) - bytes.Count(pdf, []byte("/Type /Pages"))
	assert.Equal(t, 5, pages)
}

func TestRenderCombinedTicketsPDFRejectsEmptyOrder(t *testing.T) {
	svc := NewPDFService(newTestConfig())
	_, err := svc.RenderCombinedTicketsPDF(nil, testEvent())
	assert.ErrorIs(t, err, ErrRenderFailed)
}

func TestFormatCap(t *testing.T) {
	limits := models.JSONB{"stream_cap": float64(100000), "video_cap": float64(0)}

	assert.Equal(t, "100000", formatCap(limits, "stream_cap"))
	assert.Equal(t, "Unlimited", formatCap(limits, "video_cap"))
	assert.Equal(t, "—", formatCap(limits, "missing"))
}
