// internal/handlers/catalog.go
package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soundhaus/label-backend/internal/models"
	"github.com/soundhaus/label-backend/internal/utils"
)

// CatalogHandler serves the public storefront reads: published beats with
// their offers, and events with live availability.
type CatalogHandler struct {
	db *gorm.DB
}

func NewCatalogHandler(db *gorm.DB) *CatalogHandler {
	return &CatalogHandler{db: db}
}

// GET /beats
func (h *CatalogHandler) GetBeats(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	query := h.db.Model(&models.Beat{}).Where("published = ?", true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalErrorResponse(c, "Could not load beats")
		return
	}

	var beats []models.Beat
	query = utils.ApplySort(query, params, []string{"created_at", "title", "bpm"})
	query = utils.ApplyPagination(query, params)
	if err := query.Preload("Offers").Find(&beats).Error; err != nil {
		utils.InternalErrorResponse(c, "Could not load beats")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(beats, total, params))
}

// GET /beats/:id
func (h *CatalogHandler) GetBeat(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid beat id", nil)
		return
	}

	var beat models.Beat
	if err := h.db.Preload("Offers").First(&beat, "id = ? AND published = ?", id, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "Beat")
			return
		}
		utils.InternalErrorResponse(c, "Could not load beat")
		return
	}

	utils.SuccessResponse(c, beat)
}

// GET /events
func (h *CatalogHandler) GetEvents(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	query := h.db.Model(&models.Event{}).Where("starts_at > ?", time.Now())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalErrorResponse(c, "Could not load events")
		return
	}

	var events []models.Event
	query = utils.ApplySort(query, params, []string{"created_at", "starts_at", "name"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&events).Error; err != nil {
		utils.InternalErrorResponse(c, "Could not load events")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(events, total, params))
}

// GET /events/:id
func (h *CatalogHandler) GetEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid event id", nil)
		return
	}

	var event models.Event
	if err := h.db.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "Event")
			return
		}
		utils.InternalErrorResponse(c, "Could not load event")
		return
	}

	utils.SuccessResponse(c, event)
}
