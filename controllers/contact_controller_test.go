package controller_test

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospectflow/models"
	"prospectflow/utils"
)

// Response shapes shared by the contact and activity tests. gorm.Model
// serializes its ID field as "ID".
type contactBody struct {
	ID              uint           `json:"ID"`
	ListID          uint           `json:"list_id"`
	Data            models.JSONMap `json:"data"`
	InPipeline      bool           `json:"in_pipeline"`
	Status          string         `json:"status"`
	ActivitiesCount int64          `json:"activities_count"`
	Activities      []activityBody `json:"activities"`
}

type activityBody struct {
	ID       uint                   `json:"ID"`
	UserID   uint                   `json:"user_id"`
	Type     string                 `json:"type"`
	Result   string                 `json:"result"`
	Content  string                 `json:"content"`
	IsEdited bool                   `json:"is_edited"`
	Metadata map[string]interface{} `json:"metadata"`
	User     *struct {
		Email string `json:"email"`
	} `json:"user"`
}

type pageBody struct {
	Data  []contactBody `json:"data"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func fetchContact(t *testing.T, app *fiber.App, token string, contactID uint) contactBody {
	t.Helper()
	resp := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/contacts/%d", contactID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body contactBody
	decodeEnvelope(t, resp, &body)
	return body
}

func postActivity(t *testing.T, app *fiber.App, token string, contactID uint, payload fiber.Map) activityBody {
	t.Helper()
	resp := doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/v1/contacts/%d/activities", contactID), token, payload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created activityBody
	decodeEnvelope(t, resp, &created)
	return created
}

func readCSV(t *testing.T, resp *http.Response) [][]string {
	t.Helper()
	defer resp.Body.Close()
	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	return records
}

func TestListContacts(t *testing.T) {
	app, db := setupApp(t)
	owner := createUser(t, db, "owner@example.com")
	token := authHeader(t, owner)
	list := createList(t, db, owner.ID, "Leads", nil)

	first := createContact(t, db, list.ID, models.JSONMap{"name": "first"})
	second := createContact(t, db, list.ID, models.JSONMap{"name": "second"})
	gone := createContact(t, db, list.ID, models.JSONMap{"name": "gone"})
	require.NoError(t, db.Model(gone).Update("is_deleted", true).Error)

	path := fmt.Sprintf("/api/v1/lists/%d/contacts", list.ID)

	t.Run("returns a page newest first", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, path, token, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var page pageBody
		decodeBody(t, resp, &page)
		assert.Equal(t, int64(2), page.Total)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, utils.ContactPageSize, page.Limit)
		require.Len(t, page.Data, 2)
		assert.Equal(t, second.ID, page.Data[0].ID)
		assert.Equal(t, first.ID, page.Data[1].ID)
		assert.Equal(t, models.StatusNotContacted, page.Data[0].Status)
	})

	t.Run("rejects a bad page", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, path+"?page=0", token, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("rejects a bad sort direction", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, path+"?sort_field=name&sort_direction=sideways", token, nil)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		env := decodeEnvelope(t, resp, nil)
		assert.Contains(t, env.Error, "sort_direction")
	})

	t.Run("rejects an unknown status filter", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, path+"?status_set=won", token, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("hides foreign lists", func(t *testing.T) {
		other := createUser(t, db, "other@example.com")
		resp := doJSON(t, app, fiber.MethodGet, path, authHeader(t, other), nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestContactStatusLifecycle(t *testing.T) {
	app, db := setupApp(t)
	owner := createUser(t, db, "owner@example.com")
	token := authHeader(t, owner)
	list := createList(t, db, owner.ID, "Pipeline", nil)
	contact := createContact(t, db, list.ID, models.JSONMap{"name": "Acme"})

	assert.Equal(t, models.StatusNotContacted, fetchContact(t, app, token, contact.ID).Status)

	followup := postActivity(t, app, token, contact.ID, fiber.Map{
		"type": "call", "result": "followup", "content": "callback next week",
	})
	assert.Equal(t, models.StatusInWorking, fetchContact(t, app, token, contact.ID).Status)

	lead := postActivity(t, app, token, contact.ID, fiber.Map{
		"type": "visit", "result": "lead",
	})
	assert.Equal(t, models.StatusConverted, fetchContact(t, app, token, contact.ID).Status)

	t.Run("deleting the latest activity falls back", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodDelete, fmt.Sprintf("/api/v1/activities/%d", lead.ID), token, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp.Body.Close()

		assert.Equal(t, models.StatusInWorking, fetchContact(t, app, token, contact.ID).Status)
	})

	t.Run("editing the latest activity changes the status", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPut, fmt.Sprintf("/api/v1/activities/%d", followup.ID), token, fiber.Map{
			"result": "no",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp.Body.Close()

		assert.Equal(t, models.StatusDropped, fetchContact(t, app, token, contact.ID).Status)
	})

	t.Run("no activities left means not contacted", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodDelete, fmt.Sprintf("/api/v1/activities/%d", followup.ID), token, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp.Body.Close()

		got := fetchContact(t, app, token, contact.ID)
		assert.Equal(t, models.StatusNotContacted, got.Status)
		assert.Equal(t, int64(0), got.ActivitiesCount)
	})
}

func TestGetContact(t *testing.T) {
	app, db := setupApp(t)
	owner := createUser(t, db, "owner@example.com")
	token := authHeader(t, owner)
	list := createList(t, db, owner.ID, "Leads", nil)
	contact := createContact(t, db, list.ID, models.JSONMap{"name": "Acme", "city": "Berlin"})

	base := time.Now().Add(-time.Hour)
	older := createActivity(t, db, contact.ID, owner.ID, models.ActivityResultFollowup, base)
	newer := createActivity(t, db, contact.ID, owner.ID, models.ActivityResultLead, base.Add(time.Minute))
	hidden := createActivity(t, db, contact.ID, owner.ID, models.ActivityResultNo, base.Add(2*time.Minute))
	require.NoError(t, db.Model(hidden).Update("is_deleted", true).Error)

	t.Run("returns the document with history", func(t *testing.T) {
		got := fetchContact(t, app, token, contact.ID)
		assert.Equal(t, "Acme", got.Data["name"])
		assert.Equal(t, models.StatusConverted, got.Status)
		assert.Equal(t, int64(2), got.ActivitiesCount)
		require.Len(t, got.Activities, 2)
		assert.Equal(t, newer.ID, got.Activities[0].ID)
		assert.Equal(t, older.ID, got.Activities[1].ID)
	})

	t.Run("unknown and foreign ids look identical", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, "/api/v1/contacts/424242", token, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		resp.Body.Close()

		other := createUser(t, db, "other@example.com")
		resp = doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/contacts/%d", contact.ID), authHeader(t, other), nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestUpdateContact(t *testing.T) {
	app, db := setupApp(t)
	owner := createUser(t, db, "owner@example.com")
	token := authHeader(t, owner)
	list := createList(t, db, owner.ID, "Leads", nil)
	contact := createContact(t, db, list.ID, models.JSONMap{
		"name": "Acme", "city": "Berlin", "phone": "030-1234",
	})
	path := fmt.Sprintf("/api/v1/contacts/%d", contact.ID)

	t.Run("merges the submitted fields", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPatch, path, token, fiber.Map{
			"data": fiber.Map{
				"city":  "Hamburg",
				"email": "info@acme.test",
				"phone": nil,
			},
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var updated contactBody
		decodeEnvelope(t, resp, &updated)
		assert.Equal(t, "Acme", updated.Data["name"])
		assert.Equal(t, "Hamburg", updated.Data["city"])
		assert.Equal(t, "info@acme.test", updated.Data["email"])
		assert.NotContains(t, updated.Data, "phone")

		var stored models.Contact
		require.NoError(t, db.First(&stored, contact.ID).Error)
		assert.Equal(t, "Acme", stored.Data["name"])
		assert.NotContains(t, stored.Data, "phone")
	})

	t.Run("requires a data document", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPatch, path, token, fiber.Map{})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("hides foreign contacts", func(t *testing.T) {
		other := createUser(t, db, "other@example.com")
		resp := doJSON(t, app, fiber.MethodPatch, path, authHeader(t, other), fiber.Map{
			"data": fiber.Map{"city": "Oslo"},
		})
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestDeleteContact(t *testing.T) {
	app, db := setupApp(t)
	owner := createUser(t, db, "owner@example.com")
	token := authHeader(t, owner)
	list := createList(t, db, owner.ID, "Leads", nil)
	contact := createContact(t, db, list.ID, models.JSONMap{"name": "Acme"})
	keep := createContact(t, db, list.ID, models.JSONMap{"name": "Keep"})

	path := fmt.Sprintf("/api/v1/contacts/%d", contact.ID)
	resp := doJSON(t, app, fiber.MethodDelete, path, token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	t.Run("disappears from reads", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, path, token, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		resp.Body.Close()

		listing := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/lists/%d/contacts", list.ID), token, nil)
		require.Equal(t, fiber.StatusOK, listing.StatusCode)
		var page pageBody
		decodeBody(t, listing, &page)
		assert.Equal(t, int64(1), page.Total)
		require.Len(t, page.Data, 1)
		assert.Equal(t, keep.ID, page.Data[0].ID)
	})

	t.Run("row survives as a soft delete", func(t *testing.T) {
		var stored models.Contact
		require.NoError(t, db.First(&stored, contact.ID).Error)
		assert.True(t, stored.IsDeleted)
	})
}

func TestBulkDeleteContacts(t *testing.T) {
	app, db := setupApp(t)
	owner := createUser(t, db, "owner@example.com")
	token := authHeader(t, owner)
	list := createList(t, db, owner.ID, "Mine", nil)
	mine1 := createContact(t, db, list.ID, models.JSONMap{"name": "one"})
	mine2 := createContact(t, db, list.ID, models.JSONMap{"name": "two"})

	other := createUser(t, db, "other@example.com")
	otherList := createList(t, db, other.ID, "Theirs", nil)
	theirs := createContact(t, db, otherList.ID, models.JSONMap{"name": "theirs"})

	t.Run("deletes only the owned subset", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/contacts/bulk-delete", token, fiber.Map{
			"ids": []uint{mine1.ID, mine2.ID, theirs.ID},
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result struct {
			Deleted int64 `json:"deleted"`
		}
		decodeEnvelope(t, resp, &result)
		assert.Equal(t, int64(2), result.Deleted)

		var foreign models.Contact
		require.NoError(t, db.First(&foreign, theirs.ID).Error)
		assert.False(t, foreign.IsDeleted)
	})

	t.Run("already deleted rows do not count again", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/contacts/bulk-delete", token, fiber.Map{
			"ids": []uint{mine1.ID, mine2.ID},
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result struct {
			Deleted int64 `json:"deleted"`
		}
		decodeEnvelope(t, resp, &result)
		assert.Equal(t, int64(0), result.Deleted)
	})

	t.Run("requires at least one id", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/contacts/bulk-delete", token, fiber.Map{
			"ids": []uint{},
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestTogglePipeline(t *testing.T) {
	app, db := setupApp(t)
	owner := createUser(t, db, "owner@example.com")
	token := authHeader(t, owner)
	list := createList(t, db, owner.ID, "Leads", nil)
	contact := createContact(t, db, list.ID, models.JSONMap{"name": "Acme"})

	path := fmt.Sprintf("/api/v1/contacts/%d/toggle-pipeline", contact.ID)

	var result struct {
		ID         uint `json:"id"`
		InPipeline bool `json:"in_pipeline"`
	}

	resp := doJSON(t, app, fiber.MethodPost, path, token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeEnvelope(t, resp, &result)
	assert.Equal(t, contact.ID, result.ID)
	assert.True(t, result.InPipeline)

	resp = doJSON(t, app, fiber.MethodPost, path, token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeEnvelope(t, resp, &result)
	assert.False(t, result.InPipeline)

	var stored models.Contact
	require.NoError(t, db.First(&stored, contact.ID).Error)
	assert.False(t, stored.InPipeline)
	// Toggling flips the flag and nothing else
	assert.Equal(t, models.JSONMap{"name": "Acme"}, stored.Data)
}

func TestExportContacts(t *testing.T) {
	app, db := setupApp(t)
	owner := createUser(t, db, "owner@example.com")
	token := authHeader(t, owner)
	list := createList(t, db, owner.ID, "Acme", models.JSONMap{
		"columns": []string{"name", "email"},
	})

	createContact(t, db, list.ID, models.JSONMap{"name": "alpha", "email": "a@x.test"})
	createContact(t, db, list.ID, models.JSONMap{"name": "bravo"})
	createContact(t, db, list.ID, models.JSONMap{"name": "charlie", "email": "c@x.test"})
	gone := createContact(t, db, list.ID, models.JSONMap{"name": "gone", "email": "g@x.test"})
	require.NoError(t, db.Model(gone).Update("is_deleted", true).Error)

	path := fmt.Sprintf("/api/v1/lists/%d/export", list.ID)

	t.Run("uses the stored column order", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, path+"?sort_field=name", token, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment; filename=acme_contacts_")

		records := readCSV(t, resp)
		require.Len(t, records, 4)
		assert.Equal(t, []string{"name", "email"}, records[0])
		assert.Equal(t, []string{"alpha", "a@x.test"}, records[1])
		assert.Equal(t, []string{"bravo", ""}, records[2])
		assert.Equal(t, []string{"charlie", "c@x.test"}, records[3])
	})

	t.Run("explicit columns with appended status", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, path+"?columns=email&include_status=true&sort_field=name", token, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		records := readCSV(t, resp)
		require.Len(t, records, 4)
		assert.Equal(t, []string{"email", "status"}, records[0])
		assert.Equal(t, []string{"a@x.test", models.StatusNotContacted}, records[1])
	})

	t.Run("export matches the filtered listing", func(t *testing.T) {
		query := "?search_field=email&search_term=x.test&sort_field=name&sort_direction=desc"

		listing := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/lists/%d/contacts", list.ID)+query, token, nil)
		require.Equal(t, fiber.StatusOK, listing.StatusCode)
		var page pageBody
		decodeBody(t, listing, &page)

		export := doJSON(t, app, fiber.MethodGet, path+query, token, nil)
		require.Equal(t, fiber.StatusOK, export.StatusCode)
		records := readCSV(t, export)

		require.Len(t, records, len(page.Data)+1)
		for i, row := range records[1:] {
			assert.Equal(t, page.Data[i].Data["name"], row[0])
		}
	})

	t.Run("rejects the same bad filters as the listing", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, path+"?status_set=wat", token, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("hides foreign lists", func(t *testing.T) {
		other := createUser(t, db, "other@example.com")
		resp := doJSON(t, app, fiber.MethodGet, path, authHeader(t, other), nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}
