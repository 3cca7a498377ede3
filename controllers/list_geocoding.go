package controller

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"prospectflow/models"
	"prospectflow/utils"
)

// StartGeocoding queues a list for background geocoding. The worker picks
// up pending lists and resolves coordinates for contacts that lack them
func (lc *ListController) StartGeocoding(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	list, err := lc.findOwnedList(listID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	if _, ok := list.GeocodingTemplate(); !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"No geocoding template configured; set settings.geocoding.fields first", nil)
	}

	if list.GeocodingStatus == models.GeocodingStatusPending || list.GeocodingStatus == models.GeocodingStatusRunning {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Geocoding is already in progress", nil)
	}

	var total int64
	if err := lc.DB.Model(&models.Contact{}).
		Where("contacts.list_id = ? AND contacts.is_deleted = FALSE", list.ID).
		Where(utils.MissingCoordinatesSQL).
		Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count contacts", err)
	}

	updates := map[string]interface{}{
		"geocoding_status": models.GeocodingStatusPending,
		"geocoded_count":   0,
		"geocoding_total":  total,
	}
	if err := lc.DB.Model(list).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to queue geocoding", err)
	}

	lc.Logger.Printf("Queued geocoding for list %d (%d contacts)", list.ID, total)

	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(fiber.Map{
		"status": models.GeocodingStatusPending,
		"total":  total,
	}))
}

// GetGeocodingStatus reports the geocoding progress of a list
func (lc *ListController) GetGeocodingStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	list, err := lc.findOwnedList(listID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"status":   list.GeocodingStatus,
		"geocoded": list.GeocodedCount,
		"total":    list.GeocodingTotal,
	}))
}
