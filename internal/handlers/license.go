// internal/handlers/license.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soundhaus/label-backend/internal/services"
	"github.com/soundhaus/label-backend/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
	pdfService     *services.PDFService
}

func NewLicenseHandler(licenseService *services.LicenseService, pdfService *services.PDFService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
		pdfService:     pdfService,
	}
}

// GET /licenses/verify/:identifier
//
// Accepts either the license UUID or the human-readable number printed on
// the document.
func (h *LicenseHandler) VerifyLicense(c *gin.Context) {
	result, err := h.licenseService.VerifyLicense(c.Param("identifier"))
	if err != nil {
		utils.InternalErrorResponse(c, "Could not verify license")
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /licenses/:id/download?email=...
//
// The buyer email acts as a shared secret for re-downloads; it was delivered
// to that address in the first place.
func (h *LicenseHandler) DownloadLicense(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid license id", nil)
		return
	}

	email := c.Query("email")
	if email == "" {
		utils.BadRequestResponse(c, "email query parameter is required", nil)
		return
	}

	license, err := h.licenseService.GetLicense(id)
	if err != nil {
		if errors.Is(err, services.ErrLicenseNotFound) {
			utils.NotFoundResponse(c, "License")
			return
		}
		utils.InternalErrorResponse(c, "Could not look up license")
		return
	}

	if !strings.EqualFold(license.BuyerEmail, email) {
		utils.ForbiddenResponse(c, "Email does not match license holder")
		return
	}

	pdf, err := h.pdfService.RenderLicensePDF(license)
	if err != nil {
		utils.InternalErrorResponse(c, "Could not render license document")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", license.LicenseNumber+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
