// internal/handlers/admin.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soundhaus/label-backend/internal/models"
	"github.com/soundhaus/label-backend/internal/services"
	"github.com/soundhaus/label-backend/internal/utils"
)

// AdminHandler covers the back-office surface: fulfillment alerts, order
// history, template management, license revocation.
type AdminHandler struct {
	db              *gorm.DB
	templateService *services.TemplateService
	licenseService  *services.LicenseService
}

func NewAdminHandler(db *gorm.DB, templateService *services.TemplateService, licenseService *services.LicenseService) *AdminHandler {
	return &AdminHandler{
		db:              db,
		templateService: templateService,
		licenseService:  licenseService,
	}
}

// GET /admin/alerts?resolved=false
func (h *AdminHandler) GetAlerts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	query := h.db.Model(&models.FulfillmentAlert{})
	if resolved := c.Query("resolved"); resolved != "" {
		query = query.Where("resolved = ?", resolved == "true")
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalErrorResponse(c, "Could not load alerts")
		return
	}

	var alerts []models.FulfillmentAlert
	query = utils.ApplySort(query, params, []string{"created_at", "source", "stage"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&alerts).Error; err != nil {
		utils.InternalErrorResponse(c, "Could not load alerts")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(alerts, total, params))
}

// PUT /admin/alerts/:id/resolve
func (h *AdminHandler) ResolveAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid alert id", nil)
		return
	}

	result := h.db.Model(&models.FulfillmentAlert{}).
		Where("id = ?", id).
		Update("resolved", true)
	if result.Error != nil {
		utils.InternalErrorResponse(c, "Could not resolve alert")
		return
	}
	if result.RowsAffected == 0 {
		utils.NotFoundResponse(c, "Alert")
		return
	}

	utils.SuccessResponse(c, gin.H{"resolved": true})
}

// GET /admin/purchases
func (h *AdminHandler) GetPurchases(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	query := h.db.Model(&models.Purchase{})
	if email := c.Query("email"); email != "" {
		query = query.Where("customer_email = ?", email)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalErrorResponse(c, "Could not load purchases")
		return
	}

	var purchases []models.Purchase
	query = utils.ApplySort(query, params, []string{"created_at", "amount_total", "status"})
	query = utils.ApplyPagination(query, params)
	if err := query.Preload("Beat").Preload("License").Find(&purchases).Error; err != nil {
		utils.InternalErrorResponse(c, "Could not load purchases")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(purchases, total, params))
}

// GET /admin/templates?tier=basic
func (h *AdminHandler) GetTemplates(c *gin.Context) {
	templates, err := h.templateService.ListTemplates(models.LicenseTier(c.Query("tier")))
	if err != nil {
		if errors.Is(err, services.ErrInvalidTier) {
			utils.BadRequestResponse(c, err.Error(), nil)
			return
		}
		utils.InternalErrorResponse(c, "Could not load templates")
		return
	}

	utils.SuccessResponse(c, templates)
}

// POST /admin/templates
func (h *AdminHandler) CreateTemplate(c *gin.Context) {
	var req services.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	template, err := h.templateService.CreateVersion(&req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, template)
}

// PUT /admin/templates/:id/deactivate
func (h *AdminHandler) DeactivateTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid template id", nil)
		return
	}

	if err := h.templateService.Deactivate(id); err != nil {
		if errors.Is(err, services.ErrTemplateUnavailable) {
			utils.NotFoundResponse(c, "Template")
			return
		}
		utils.InternalErrorResponse(c, "Could not deactivate template")
		return
	}

	utils.SuccessResponse(c, gin.H{"deactivated": true})
}

// PUT /admin/licenses/:id/revoke
func (h *AdminHandler) RevokeLicense(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid license id", nil)
		return
	}

	if err := h.licenseService.RevokeLicense(id); err != nil {
		if errors.Is(err, services.ErrLicenseNotFound) {
			utils.NotFoundResponse(c, "License")
			return
		}
		utils.InternalErrorResponse(c, "Could not revoke license")
		return
	}

	utils.SuccessResponse(c, gin.H{"revoked": true})
}
