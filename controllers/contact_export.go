package controller

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"prospectflow/models"
	"prospectflow/utils"
)

// ExportContacts streams the filtered contacts of a list as CSV. The row
// set is resolved through the same filter code path as the listing, so an
// export always matches what the caller currently sees
func (cc *ContactController) ExportContacts(c *fiber.Ctx) error {
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

	opts := utils.ExportOptions{
		IncludeStatus:          c.QueryBool("include_status", false),
		IncludeActivitiesCount: c.QueryBool("include_activities_count", false),
		IncludePipeline:        c.QueryBool("include_pipeline", false),
	}
	if raw := c.Query("columns"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if col := strings.TrimSpace(part); col != "" {
				opts.Columns = append(opts.Columns, col)
			}
		}
	} else {
		opts.Columns = list.Columns()
	}

	contacts, err := utils.CollectContacts(cc.DB, list.ID, filters)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contacts", err)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", "attachment; filename="+utils.ExportFilename(list.Name))

	if err := utils.WriteContactsCSV(c, contacts, opts); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
	}

	cc.Logger.Printf("Exported %d contacts from list %d (%q)", len(contacts), list.ID, list.Name)

	return nil
}
