// internal/handlers/checkout.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/soundhaus/label-backend/internal/services"
	"github.com/soundhaus/label-backend/internal/utils"
)

type CheckoutHandler struct {
	checkoutService *services.CheckoutService
}

func NewCheckoutHandler(checkoutService *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

// POST /checkout/beats
func (h *CheckoutHandler) CreateBeatCheckout(c *gin.Context) {
	var req services.BeatCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	response, err := h.checkoutService.CreateBeatCheckoutSession(&req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBeatNotFound):
			utils.NotFoundResponse(c, "Beat")
		case errors.Is(err, services.ErrOfferNotFound):
			utils.NotFoundResponse(c, "License offer")
		default:
			utils.InternalErrorResponse(c, "Could not start checkout")
		}
		return
	}

	utils.CreatedResponse(c, response)
}

// POST /checkout/tickets
func (h *CheckoutHandler) CreateTicketCheckout(c *gin.Context) {
	var req services.TicketCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	response, err := h.checkoutService.CreateTicketCheckoutSession(&req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEventNotFound):
			utils.NotFoundResponse(c, "Event")
		case errors.Is(err, services.ErrTicketingDisabled),
			errors.Is(err, services.ErrOutsideSaleWindow),
			errors.Is(err, services.ErrBelowMinimumCharge):
			utils.BadRequestResponse(c, err.Error(), nil)
		case errors.Is(err, services.ErrInsufficientStock):
			utils.ConflictResponse(c, err.Error(), nil)
		default:
			utils.InternalErrorResponse(c, "Could not start checkout")
		}
		return
	}

	utils.CreatedResponse(c, response)
}
