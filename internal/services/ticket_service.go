// internal/services/ticket_service.go
package services

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/google/uuid"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/models"
)

// TicketService produces per-seat ticket records and their QR payloads. The
// QR encodes a validation URL rather than raw ticket data, so redemption
// rules can change server-side without reprinting anything.
type TicketService struct {
	config *config.Config
}

// PurchaseContext carries the order-level fields shared by every seat.
type PurchaseContext struct {
	PurchaseID    string
	Quantity      int
	CustomerEmail string
	CustomerName  string
	TotalAmount   int64
	Currency      string
}

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func NewTicketService(cfg *config.Config) *TicketService {
	return &TicketService{config: cfg}
}

// GenerateTicketData builds one unpersisted ticket for a seat of the order.
func (s *TicketService) GenerateTicketData(event *models.Event, ctx PurchaseContext, seatIndex int) (*models.Ticket, error) {
	code, err := generateTicketCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ticket code: %w", err)
	}

	return &models.Ticket{
		BaseModel:        models.BaseModel{ID: uuid.New()},
		EventID:          event.ID,
		PurchaseID:       ctx.PurchaseID,
		TicketCode:       code,
		ValidationCode:   uuid.NewString(),
		TicketNumber:     seatIndex,
		PurchaseQuantity: ctx.Quantity,
		CustomerEmail:    ctx.CustomerEmail,
		CustomerName:     ctx.CustomerName,
		TotalAmount:      ctx.TotalAmount,
		Currency:         ctx.Currency,
		Status:           models.TicketStatusActive,
	}, nil
}

// GenerateMultipleTickets produces one record per seat, each with its own
// codes but shared purchase-level totals.
func (s *TicketService) GenerateMultipleTickets(event *models.Event, ctx PurchaseContext) ([]*models.Ticket, error) {
	if ctx.Quantity < 1 {
		return nil, fmt.Errorf("invalid ticket quantity: %d", ctx.Quantity)
	}

	tickets := make([]*models.Ticket, 0, ctx.Quantity)
	for seat := 1; seat <= ctx.Quantity; seat++ {
		ticket, err := s.GenerateTicketData(event, ctx, seat)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}

	return tickets, nil
}

// ValidationURL is the payload embedded in a ticket's QR code.
func (s *TicketService) ValidationURL(ticket *models.Ticket) string {
	return fmt.Sprintf("%s/ticket/%s", s.config.Frontend.BaseURL, ticket.ValidationCode)
}

// QRCodePNG renders the ticket's validation URL as a PNG image.
func (s *TicketService) QRCodePNG(ticket *models.Ticket, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}

	code, err := qr.Encode(s.ValidationURL(ticket), qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("failed to scale QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, fmt.Errorf("failed to render QR PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// generateTicketCode builds a short human-shareable code, TKT-XXXX-XXXX.
func generateTicketCode() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	chars := make([]byte, 8)
	for i, b := range raw {
		chars[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return fmt.Sprintf("TKT-%s-%s", chars[:4], chars[4:]), nil
}
