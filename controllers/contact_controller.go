package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"prospectflow/models"
	"prospectflow/utils"
)

type ContactController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewContactController(db *gorm.DB, logger *log.Logger) *ContactController {
	return &ContactController{
		DB:     db,
		Logger: logger,
	}
}

// findOwnedContact loads a non-deleted contact through its list's owner.
// Missing, deleted and foreign-owned contacts all come back as
// gorm.ErrRecordNotFound
func (cc *ContactController) findOwnedContact(contactID string, userID uint) (*models.Contact, error) {
	var contact models.Contact
	err := cc.DB.Model(&models.Contact{}).
		Joins("JOIN contact_lists ON contact_lists.id = contacts.list_id").
		Where("contacts.id = ? AND contact_lists.user_id = ? AND contacts.is_deleted = FALSE", contactID, userID).
		Select("contacts.*, " + utils.StatusSQL() + " AS status, " + utils.ActivitiesCountSQL() + " AS activities_count").
		First(&contact).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// GetContacts returns one page of a list's contacts, filtered and sorted
// by the shared query parameters
func (cc *ContactController) GetContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	var list models.ContactList
	if err := cc.DB.Where("id = ? AND user_id = ?", listID, user.ID).First(&list).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	filters, err := utils.ParseContactFilters(c)
	if err != nil {
		var invalid *utils.InvalidFilterError
		if errors.As(err, &invalid) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, invalid.Message, nil)
		}
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filters", err)
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page number", nil)
	}

	contacts, total, err := utils.QueryContacts(cc.DB, list.ID, filters, page)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contacts", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  contacts,
		Total: total,
		Page:  page,
		Limit: utils.ContactPageSize,
	})
}

// GetContact returns one contact with its derived status and the
// non-deleted activity history, newest first
func (cc *ContactController) GetContact(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := c.Params("id")

	contact, err := cc.findOwnedContact(contactID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	if err := cc.DB.
		Where("contact_id = ? AND is_deleted = ?", contact.ID, false).
		Order("created_at DESC, id DESC").
		Find(&contact.Activities).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activities", err)
	}

	return c.JSON(utils.SuccessResponse(contact))
}

// UpdateContact merges the submitted fields into the contact document. A
// field set to null is removed; fields not mentioned stay as they are.
// Only the document column is written, so concurrent edits of different
// fields never clobber each other's unrelated writes
func (cc *ContactController) UpdateContact(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := c.Params("id")

	var input struct {
		Data models.JSONMap `json:"data" validate:"required"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	// Validate input
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	contact, err := cc.findOwnedContact(contactID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	contact.Data = contact.Data.Merge(input.Data)
	if err := cc.DB.Model(contact).Update("data", contact.Data).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update contact", err)
	}

	return c.JSON(utils.SuccessResponse(contact))
}

// DeleteContact soft-deletes a single contact
func (cc *ContactController) DeleteContact(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := c.Params("id")

	contact, err := cc.findOwnedContact(contactID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	if err := cc.DB.Model(contact).Update("is_deleted", true).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete contact", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Contact deleted successfully",
	}))
}

// BulkDeleteContacts soft-deletes the caller-owned subset of the submitted
// ids and reports how many rows were affected
func (cc *ContactController) BulkDeleteContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		IDs []uint `json:"ids" validate:"required,min=1"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	// Validate input
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	ownedLists := cc.DB.Model(&models.ContactList{}).Select("id").Where("user_id = ?", user.ID)
	result := cc.DB.Model(&models.Contact{}).
		Where("contacts.id IN ? AND contacts.is_deleted = FALSE", input.IDs).
		Where("contacts.list_id IN (?)", ownedLists).
		Update("is_deleted", true)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete contacts", result.Error)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"deleted": result.RowsAffected,
	}))
}

// TogglePipeline flips the pipeline flag of a contact. The response
// carries only the id and the new flag, never the document
func (cc *ContactController) TogglePipeline(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := c.Params("id")

	contact, err := cc.findOwnedContact(contactID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	inPipeline := !contact.InPipeline
	if err := cc.DB.Model(contact).Update("in_pipeline", inPipeline).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update contact", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"id":          contact.ID,
		"in_pipeline": inPipeline,
	}))
}
