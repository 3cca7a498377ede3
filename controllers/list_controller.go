package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"prospectflow/models"
	"prospectflow/utils"
)

// listContactCountSQL counts the live contacts of a list as a correlated
// subquery so list summaries never load contact rows
const listContactCountSQL = "(SELECT COUNT(*) FROM contacts WHERE contacts.list_id = contact_lists.id AND contacts.is_deleted = FALSE)"

type ListController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewListController(db *gorm.DB, logger *log.Logger) *ListController {
	return &ListController{
		DB:     db,
		Logger: logger,
	}
}

// findOwnedList loads a list owned by the given user. Missing and
// foreign-owned lists are both reported as gorm.ErrRecordNotFound
func (lc *ListController) findOwnedList(listID string, userID uint) (*models.ContactList, error) {
	var list models.ContactList
	if err := lc.DB.Where("id = ? AND user_id = ?", listID, userID).First(&list).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

// GetLists returns all contact lists for the user with live contact counts
func (lc *ListController) GetLists(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lists []models.ContactList
	if err := lc.DB.
		Select("contact_lists.*, " + listContactCountSQL + " AS contact_count").
		Where("user_id = ?", user.ID).
		Order("contact_lists.created_at DESC").
		Find(&lists).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lists", err)
	}

	return c.JSON(utils.SuccessResponse(lists))
}

// GetList returns a single contact list
func (lc *ListController) GetList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	var list models.ContactList
	if err := lc.DB.
		Select("contact_lists.*, "+listContactCountSQL+" AS contact_count").
		Where("id = ? AND user_id = ?", listID, user.ID).
		First(&list).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	return c.JSON(utils.SuccessResponse(list))
}

// UpdateList renames a contact list
func (lc *ListController) UpdateList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	var input struct {
		Name string `json:"name" validate:"required,max=200"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	// Validate input
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	list, err := lc.findOwnedList(listID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	list.Name = input.Name
	if err := lc.DB.Model(list).Update("name", input.Name).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update list", err)
	}

	return c.JSON(utils.SuccessResponse(list))
}

// UpdateListSettings merges the submitted keys into the settings document.
// A key set to null removes it; keys not mentioned are left untouched
func (lc *ListController) UpdateListSettings(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	var input struct {
		Settings models.JSONMap `json:"settings" validate:"required"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	// Validate input
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	list, err := lc.findOwnedList(listID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	list.Settings = list.Settings.Merge(input.Settings)
	if err := lc.DB.Model(list).Update("settings", list.Settings).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update settings", err)
	}

	return c.JSON(utils.SuccessResponse(list))
}

// GetListStats returns contact totals broken down by derived status
func (lc *ListController) GetListStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	list, err := lc.findOwnedList(listID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	var total, deleted int64
	if err := lc.DB.Model(&models.Contact{}).
		Where("contacts.list_id = ?", list.ID).
		Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute stats", err)
	}
	if err := lc.DB.Model(&models.Contact{}).
		Where("contacts.list_id = ? AND contacts.is_deleted = TRUE", list.ID).
		Count(&deleted).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute stats", err)
	}

	var rows []struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	if err := lc.DB.Model(&models.Contact{}).
		Select(utils.StatusSQL()+" AS status, COUNT(*) AS count").
		Where("contacts.list_id = ? AND contacts.is_deleted = FALSE", list.ID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute stats", err)
	}

	statuses := make(map[string]int64, len(models.ContactStatuses))
	for _, s := range models.ContactStatuses {
		statuses[s] = 0
	}
	for _, row := range rows {
		statuses[row.Status] = row.Count
	}

	var pipelineCount int64
	if err := lc.DB.Model(&models.Contact{}).
		Where("contacts.list_id = ? AND contacts.is_deleted = FALSE AND contacts.in_pipeline = TRUE", list.ID).
		Count(&pipelineCount).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute stats", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"total":       total,
		"active":      total - deleted,
		"deleted":     deleted,
		"in_pipeline": pipelineCount,
		"statuses":    statuses,
	}))
}

// DeleteList removes a list together with its contacts, activities and
// column mappings
func (lc *ListController) DeleteList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	list, err := lc.findOwnedList(listID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	// Start transaction
	tx := lc.DB.Begin()

	// First delete activities of the list's contacts
	contactIDs := tx.Table("contacts").Select("id").Where("list_id = ?", list.ID)
	if err := tx.Unscoped().Where("contact_id IN (?)", contactIDs).Delete(&models.Activity{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete activities", err)
	}

	// Then the contacts and column mappings
	if err := tx.Unscoped().Where("list_id = ?", list.ID).Delete(&models.Contact{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete contacts", err)
	}
	if err := tx.Unscoped().Where("list_id = ?", list.ID).Delete(&models.ColumnMapping{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete column mappings", err)
	}

	// Then the list itself
	result := tx.Unscoped().Where("id = ? AND user_id = ?", list.ID, user.ID).Delete(&models.ContactList{})
	if result.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete list", result.Error)
	}

	if result.RowsAffected == 0 {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
	}

	tx.Commit()

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "List deleted successfully",
	}))
}
