package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"prospectflow/models"
	"prospectflow/utils"
)

type ActivityController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewActivityController(db *gorm.DB, logger *log.Logger) *ActivityController {
	return &ActivityController{
		DB:     db,
		Logger: logger,
	}
}

// findOwnedContact loads a non-deleted contact owned by the user through
// its list
func (ac *ActivityController) findOwnedContact(contactID string, userID uint) (*models.Contact, error) {
	var contact models.Contact
	err := ac.DB.Model(&models.Contact{}).
		Joins("JOIN contact_lists ON contact_lists.id = contacts.list_id").
		Where("contacts.id = ? AND contact_lists.user_id = ? AND contacts.is_deleted = FALSE", contactID, userID).
		First(&contact).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// findOwnedActivity loads a non-deleted activity reachable through a list
// the user owns. Authorship is checked separately by the callers that
// require it
func (ac *ActivityController) findOwnedActivity(activityID string, userID uint) (*models.Activity, error) {
	var activity models.Activity
	err := ac.DB.Model(&models.Activity{}).
		Joins("JOIN contacts ON contacts.id = activities.contact_id").
		Joins("JOIN contact_lists ON contact_lists.id = contacts.list_id").
		Where("activities.id = ? AND contact_lists.user_id = ? AND activities.is_deleted = FALSE", activityID, userID).
		First(&activity).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetActivities returns the non-deleted activities of a contact, newest
// first
func (ac *ActivityController) GetActivities(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := c.Params("id")

	contact, err := ac.findOwnedContact(contactID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	var activities []models.Activity
	if err := ac.DB.
		Preload("User").
		Where("contact_id = ? AND is_deleted = ?", contact.ID, false).
		Order("created_at DESC, id DESC").
		Find(&activities).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activities", err)
	}

	return c.JSON(utils.SuccessResponse(activities))
}

// CreateActivity records an interaction with a contact. The caller becomes
// the author
func (ac *ActivityController) CreateActivity(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := c.Params("id")

	var input struct {
		Type    string     `json:"type" validate:"required,oneof=call email visit research"`
		Result  string     `json:"result" validate:"required,oneof=no followup lead"`
		Date    *time.Time `json:"date"`
		Content string     `json:"content" validate:"omitempty,max=5000"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	// Validate input
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	contact, err := ac.findOwnedContact(contactID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	activity := models.Activity{
		ContactID: contact.ID,
		UserID:    user.ID,
		Type:      input.Type,
		Result:    input.Result,
		Date:      input.Date,
		Content:   input.Content,
	}

	if err := ac.DB.Create(&activity).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create activity", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(activity))
}

// UpdateActivity edits an activity. Only the author may edit; the prior
// field values are kept as an edit_history snapshot in the metadata
func (ac *ActivityController) UpdateActivity(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	activityID := c.Params("id")

	var input struct {
		Type    string     `json:"type" validate:"omitempty,oneof=call email visit research"`
		Result  string     `json:"result" validate:"omitempty,oneof=no followup lead"`
		Date    *time.Time `json:"date"`
		Content *string    `json:"content" validate:"omitempty,max=5000"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	// Validate input
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	activity, err := ac.findOwnedActivity(activityID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Activity not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activity", err)
	}

	if activity.UserID != user.ID {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only the author can edit an activity", nil)
	}

	changed := false
	if input.Type != "" && input.Type != activity.Type {
		changed = true
	}
	if input.Result != "" && input.Result != activity.Result {
		changed = true
	}
	if input.Date != nil && (activity.Date == nil || !activity.Date.Equal(*input.Date)) {
		changed = true
	}
	if input.Content != nil && *input.Content != activity.Content {
		changed = true
	}
	if !changed {
		return c.JSON(utils.SuccessResponse(activity))
	}

	// Snapshot the current values before overwriting them
	activity.AppendEditSnapshot(user.ID)

	if input.Type != "" {
		activity.Type = input.Type
	}
	if input.Result != "" {
		activity.Result = input.Result
	}
	if input.Date != nil {
		activity.Date = input.Date
	}
	if input.Content != nil {
		activity.Content = *input.Content
	}
	activity.IsEdited = true

	updates := map[string]interface{}{
		"type":      activity.Type,
		"result":    activity.Result,
		"date":      activity.Date,
		"content":   activity.Content,
		"metadata":  activity.Metadata,
		"is_edited": true,
	}
	if err := ac.DB.Model(activity).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update activity", err)
	}

	return c.JSON(utils.SuccessResponse(activity))
}

// DeleteActivity soft-deletes an activity. Only the author may delete
func (ac *ActivityController) DeleteActivity(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	activityID := c.Params("id")

	activity, err := ac.findOwnedActivity(activityID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Activity not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activity", err)
	}

	if activity.UserID != user.ID {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only the author can delete an activity", nil)
	}

	if err := ac.DB.Model(activity).Update("is_deleted", true).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete activity", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Activity deleted successfully",
	}))
}
