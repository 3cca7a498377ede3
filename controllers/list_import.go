package controller

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"prospectflow/models"
	"prospectflow/utils"
)

// importBatchSize bounds the insert batches during file imports
const importBatchSize = 100

// readUpload fetches the uploaded form file and parses it into rows
func readUpload(c *fiber.Ctx) (*utils.ParsedFile, string, int64, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, "", 0, errors.New("a file upload named 'file' is required")
	}

	if file.Size > utils.MaxUploadSize {
		return nil, "", 0, fmt.Errorf("file too large (max %d MB)", utils.MaxUploadSize>>20)
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	parsed, err := utils.ParseContactsFile(file.Filename, src)
	if err != nil {
		return nil, "", 0, err
	}

	return parsed, file.Filename, file.Size, nil
}

// detectEmailField picks the column that most likely holds email addresses
func detectEmailField(headers []string) string {
	for _, h := range headers {
		if strings.EqualFold(h, "email") {
			return h
		}
	}
	for _, h := range headers {
		if strings.Contains(strings.ToLower(h), "email") {
			return h
		}
	}
	return ""
}

// applyColumnMappings renames document keys according to the saved
// source-to-target mappings. Headers are renamed the same way so the
// stored column order matches the documents
func applyColumnMappings(parsed *utils.ParsedFile, mappings []models.ColumnMapping) {
	renames := make(map[string]string)
	for _, m := range mappings {
		if m.TargetField != "" && m.TargetField != m.SourceColumn {
			renames[m.SourceColumn] = m.TargetField
		}
	}
	if len(renames) == 0 {
		return
	}

	for i, h := range parsed.Headers {
		if target, ok := renames[h]; ok {
			parsed.Headers[i] = target
		}
	}
	for _, row := range parsed.Rows {
		for source, target := range renames {
			if v, ok := row[source]; ok {
				row[target] = v
				delete(row, source)
			}
		}
	}
}

func buildImportMetadata(filename string, size int64, parsed *utils.ParsedFile) models.JSONMap {
	metadata := models.JSONMap{
		"original_filename": filename,
		"file_size":         size,
		"row_count":         len(parsed.Rows),
		"imported_at":       time.Now().UTC().Format(time.RFC3339),
	}
	if emailField := detectEmailField(parsed.Headers); emailField != "" {
		metadata["email_field"] = emailField
		metadata["invalid_emails"] = utils.CountInvalidEmails(parsed.Rows, emailField)
	}
	return metadata
}

func buildContacts(listID uint, rows []models.JSONMap) []models.Contact {
	contacts := make([]models.Contact, 0, len(rows))
	for _, row := range rows {
		contacts = append(contacts, models.Contact{
			ListID: listID,
			Data:   row,
		})
	}
	return contacts
}

// PreviewUpload parses an uploaded file and returns its headers and first
// rows without creating anything
func (lc *ListController) PreviewUpload(c *fiber.Ctx) error {
	parsed, _, _, err := readUpload(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}

	return c.JSON(utils.SuccessResponse(parsed.Preview()))
}

// CreateList creates a contact list from an uploaded file. The form carries
// the list name and the file; every data row becomes one contact document
func (lc *ListController) CreateList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "List name is required", nil)
	}
	if len(name) > 200 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "List name too long (max 200)", nil)
	}

	parsed, filename, size, err := readUpload(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}

	list := models.ContactList{
		UserID:   user.ID,
		UUID:     uuid.New().String(),
		Name:     name,
		Status:   models.ListStatusProcessing,
		Settings: models.JSONMap{"columns": parsed.Headers},
		Metadata: buildImportMetadata(filename, size, parsed),
	}

	if err := lc.DB.Create(&list).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create list", err)
	}

	tx := lc.DB.Begin()

	// Identity mappings record the original column order so later imports
	// and renames can refer back to the source columns
	mappings := make([]models.ColumnMapping, 0, len(parsed.Headers))
	for i, header := range parsed.Headers {
		mappings = append(mappings, models.ColumnMapping{
			ListID:       list.ID,
			SourceColumn: header,
			TargetField:  header,
			Position:     i,
		})
	}
	if len(mappings) > 0 {
		if err := tx.Create(&mappings).Error; err != nil {
			tx.Rollback()
			lc.DB.Model(&list).Update("status", models.ListStatusFailed)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save column mappings", err)
		}
	}

	contacts := buildContacts(list.ID, parsed.Rows)
	if len(contacts) > 0 {
		if err := tx.CreateInBatches(&contacts, importBatchSize).Error; err != nil {
			tx.Rollback()
			lc.DB.Model(&list).Update("status", models.ListStatusFailed)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import contacts", err)
		}
	}

	if err := tx.Model(&list).Update("status", models.ListStatusCompleted).Error; err != nil {
		tx.Rollback()
		lc.DB.Model(&list).Update("status", models.ListStatusFailed)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to finish import", err)
	}

	tx.Commit()

	list.Status = models.ListStatusCompleted
	list.ContactCount = int64(len(contacts))

	lc.Logger.Printf("Imported list %d (%q) with %d contacts", list.ID, list.Name, len(contacts))

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(list))
}

// ReimportContacts replaces the contacts of a list with the rows of a new
// upload. Activities of the old contacts are removed with them. Saved
// column mappings are applied to the incoming rows
func (lc *ListController) ReimportContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	list, err := lc.findOwnedList(listID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	parsed, filename, size, err := readUpload(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}

	var mappings []models.ColumnMapping
	if err := lc.DB.Where("list_id = ?", list.ID).Order("position ASC").Find(&mappings).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch column mappings", err)
	}
	applyColumnMappings(parsed, mappings)

	tx := lc.DB.Begin()

	// Drop the previous contents: activities first, then the contacts
	contactIDs := tx.Table("contacts").Select("id").Where("list_id = ?", list.ID)
	if err := tx.Unscoped().Where("contact_id IN (?)", contactIDs).Delete(&models.Activity{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to clear activities", err)
	}
	if err := tx.Unscoped().Where("list_id = ?", list.ID).Delete(&models.Contact{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to clear contacts", err)
	}

	contacts := buildContacts(list.ID, parsed.Rows)
	if len(contacts) > 0 {
		if err := tx.CreateInBatches(&contacts, importBatchSize).Error; err != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import contacts", err)
		}
	}

	// Record identity mappings for columns this upload introduced
	known := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		known[m.SourceColumn] = struct{}{}
		known[m.TargetField] = struct{}{}
	}
	position := len(mappings)
	var added []models.ColumnMapping
	for _, header := range parsed.Headers {
		if _, ok := known[header]; ok {
			continue
		}
		added = append(added, models.ColumnMapping{
			ListID:       list.ID,
			SourceColumn: header,
			TargetField:  header,
			Position:     position,
		})
		position++
	}
	if len(added) > 0 {
		if err := tx.Create(&added).Error; err != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save column mappings", err)
		}
	}

	list.Settings = list.Settings.Merge(models.JSONMap{"columns": parsed.Headers})
	updates := map[string]interface{}{
		"settings": list.Settings,
		"metadata": buildImportMetadata(filename, size, parsed),
		"status":   models.ListStatusCompleted,
	}
	if err := tx.Model(list).Updates(updates).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to finish import", err)
	}

	tx.Commit()

	lc.Logger.Printf("Reimported list %d (%q) with %d contacts", list.ID, list.Name, len(contacts))

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message":        "Contacts reimported successfully",
		"imported":       len(contacts),
		"replaced_lists": 1,
	}))
}

// GetColumnMappings returns the column mappings of a list in display order
func (lc *ListController) GetColumnMappings(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	list, err := lc.findOwnedList(listID, user.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch list", err)
	}

	var mappings []models.ColumnMapping
	if err := lc.DB.Where("list_id = ?", list.ID).Order("position ASC").Find(&mappings).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch column mappings", err)
	}

	return c.JSON(utils.SuccessResponse(mappings))
}

// UpdateColumnMappings replaces all column mappings of a list
func (lc *ListController) UpdateColumnMappings(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := c.Params("id")

	var input struct {
		Mappings []struct {
			SourceColumn string `json:"source_column" validate:"required,max=200"`
			TargetField  string `json:"target_field" validate:"required,max=200"`
		} `json:"mappings" validate:"required,min=1,dive"`
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

	mappings := make([]models.ColumnMapping, 0, len(input.Mappings))
	for i, m := range input.Mappings {
		mappings = append(mappings, models.ColumnMapping{
			ListID:       list.ID,
			SourceColumn: m.SourceColumn,
			TargetField:  m.TargetField,
			Position:     i,
		})
	}

	tx := lc.DB.Begin()

	if err := tx.Unscoped().Where("list_id = ?", list.ID).Delete(&models.ColumnMapping{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to replace column mappings", err)
	}
	if err := tx.Create(&mappings).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to replace column mappings", err)
	}

	tx.Commit()

	return c.JSON(utils.SuccessResponse(mappings))
}
