package controller_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"prospectflow/config"
	"prospectflow/models"
	"prospectflow/routes"
	"prospectflow/utils"
)

const testPassword = "correct-horse-battery"

// setupApp wires the full application over a fresh in-memory database so
// tests exercise real requests through the production routing and
// middleware. The handlers resolve users through config.DB, so these tests
// must not run in parallel.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))

	config.DB = db
	config.AppConfig.JWTSecret = "test-secret"
	config.AppConfig.Redis.Enabled = false

	app := fiber.New()
	routes.SetupRoutes(app, db)
	return app, db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
		TokenVersion: 1,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func authHeader(t *testing.T, user *models.User) string {
	t.Helper()
	access, _, err := utils.GenerateJWTToken(user)
	require.NoError(t, err)
	return "Bearer " + access
}

func createList(t *testing.T, db *gorm.DB, userID uint, name string, settings models.JSONMap) *models.ContactList {
	t.Helper()
	list := models.ContactList{
		UserID:   userID,
		UUID:     uuid.New().String(),
		Name:     name,
		Status:   models.ListStatusCompleted,
		Settings: settings,
	}
	require.NoError(t, db.Create(&list).Error)
	return &list
}

func createContact(t *testing.T, db *gorm.DB, listID uint, data models.JSONMap) *models.Contact {
	t.Helper()
	contact := models.Contact{ListID: listID, Data: data}
	require.NoError(t, db.Create(&contact).Error)
	return &contact
}

func createActivity(t *testing.T, db *gorm.DB, contactID, userID uint, result string, createdAt time.Time) *models.Activity {
	t.Helper()
	activity := models.Activity{
		Model:     gorm.Model{CreatedAt: createdAt},
		ContactID: contactID,
		UserID:    userID,
		Type:      models.ActivityTypeCall,
		Result:    result,
	}
	require.NoError(t, db.Create(&activity).Error)
	return &activity
}

// doJSON performs a request with an optional JSON body and bearer token.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// uploadRequest builds a multipart form request carrying one file part.
func uploadRequest(t *testing.T, path, token string, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(fiber.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return req
}

func doUpload(t *testing.T, app *fiber.App, path, token string, fields map[string]string, filename string, content []byte) *http.Response {
	t.Helper()
	resp, err := app.Test(uploadRequest(t, path, token, fields, filename, content), -1)
	require.NoError(t, err)
	return resp
}

// envelope is the {success, data, error} wrapper most endpoints reply with.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// decodeEnvelope reads the response wrapper and unmarshals data into out
// when out is non-nil.
func decodeEnvelope(t *testing.T, resp *http.Response, out interface{}) envelope {
	t.Helper()
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if out != nil {
		require.NotNil(t, env.Data, "response has no data payload")
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

// decodeBody unmarshals an unwrapped JSON response.
func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func csvFile(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}
