// internal/handlers/ticket.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundhaus/label-backend/internal/services"
	"github.com/soundhaus/label-backend/internal/utils"
)

type TicketHandler struct {
	redemptionService *services.RedemptionService
	pdfService        *services.PDFService
}

func NewTicketHandler(redemptionService *services.RedemptionService, pdfService *services.PDFService) *TicketHandler {
	return &TicketHandler{
		redemptionService: redemptionService,
		pdfService:        pdfService,
	}
}

// POST /tickets/validate/:code (staff)
func (h *TicketHandler) ValidateTicket(c *gin.Context) {
	code := c.Param("code")

	validatedBy, _ := utils.GetUserEmailFromContext(c)
	if validatedBy == "" {
		validatedBy, _ = utils.GetUserIDFromContext(c)
	}

	ticket, err := h.redemptionService.RedeemTicket(code, validatedBy)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTicketNotFound):
			utils.NotFoundResponse(c, "Ticket")
		case errors.Is(err, services.ErrAlreadyRedeemed):
			utils.ConflictResponse(c, "Ticket has already been validated", gin.H{
				"ticket_code":  ticket.TicketCode,
				"validated_at": ticket.ValidatedAt,
				"validated_by": ticket.ValidatedBy,
			})
		case errors.Is(err, services.ErrInvalidTicketStatus):
			// Cancelled or expired is a bad request, not a redemption race.
			utils.BadRequestResponse(c, fmt.Sprintf("Ticket is %s and cannot be validated", ticket.Status), nil)
		default:
			utils.InternalErrorResponse(c, "Could not validate ticket")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"ticket_code":   ticket.TicketCode,
		"event_name":    ticket.Event.Name,
		"ticket_number": ticket.TicketNumber,
		"quantity":      ticket.PurchaseQuantity,
		"validated_at":  ticket.ValidatedAt,
		"validated_by":  ticket.ValidatedBy,
	})
}

// GET /tickets/:code
func (h *TicketHandler) VerifyTicket(c *gin.Context) {
	summary, err := h.redemptionService.VerifyTicket(c.Param("code"))
	if err != nil {
		if errors.Is(err, services.ErrTicketNotFound) {
			utils.NotFoundResponse(c, "Ticket")
			return
		}
		utils.InternalErrorResponse(c, "Could not look up ticket")
		return
	}

	utils.SuccessResponse(c, summary)
}

// GET /tickets/:code/download
func (h *TicketHandler) DownloadTicket(c *gin.Context) {
	ticket, err := h.redemptionService.GetTicket(c.Param("code"))
	if err != nil {
		if errors.Is(err, services.ErrTicketNotFound) {
			utils.NotFoundResponse(c, "Ticket")
			return
		}
		utils.InternalErrorResponse(c, "Could not look up ticket")
		return
	}

	pdf, err := h.pdfService.RenderTicketPDF(ticket, &ticket.Event)
	if err != nil {
		utils.InternalErrorResponse(c, "Could not render ticket")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ticket.TicketCode+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
