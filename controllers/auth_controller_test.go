package controller_test

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"prospectflow/models"
	"prospectflow/utils"
)

type authResponseBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    uint   `json:"ID"`
		Email string `json:"email"`
	} `json:"user"`
}

func TestRegister(t *testing.T) {
	app, db := setupApp(t)

	t.Run("creates an account", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", "", fiber.Map{
			"email":    "new@example.com",
			"password": "longenough1",
			"name":     "Jo",
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		var body authResponseBody
		decodeBody(t, resp, &body)
		assert.NotEmpty(t, body.AccessToken)
		assert.NotEmpty(t, body.RefreshToken)
		assert.Equal(t, "new@example.com", body.User.Email)

		var user models.User
		require.NoError(t, db.Where("email = ?", "new@example.com").First(&user).Error)
		assert.NotEqual(t, "longenough1", user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough1")))
		require.NotNil(t, user.Name)
		assert.Equal(t, "Jo", *user.Name)
	})

	t.Run("rejects a duplicate email", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", "", fiber.Map{
			"email":    "new@example.com",
			"password": "anotherpass1",
		})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("validates the payload", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", "", fiber.Map{
			"email":    "not-an-email",
			"password": "longenough1",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()

		resp = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", "", fiber.Map{
			"email":    "short@example.com",
			"password": "short",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestLogin(t *testing.T) {
	app, db := setupApp(t)
	user := createUser(t, db, "kim@example.com")

	t.Run("returns tokens for valid credentials", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", "", fiber.Map{
			"email":    user.Email,
			"password": testPassword,
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body authResponseBody
		decodeBody(t, resp, &body)
		assert.NotEmpty(t, body.AccessToken)
		assert.Equal(t, user.Email, body.User.Email)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", "", fiber.Map{
			"email":    user.Email,
			"password": "wrong-password",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("rejects an unknown email", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", "", fiber.Map{
			"email":    "nobody@example.com",
			"password": testPassword,
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("rejects a deactivated account", func(t *testing.T) {
		blocked := createUser(t, db, "blocked@example.com")
		require.NoError(t, db.Model(blocked).Update("is_active", false).Error)

		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", "", fiber.Map{
			"email":    blocked.Email,
			"password": testPassword,
		})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestProtectedMiddleware(t *testing.T) {
	app, db := setupApp(t)
	user := createUser(t, db, "mid@example.com")

	t.Run("requires a token", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("rejects a malformed header", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", "Token abc", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("rejects garbage tokens", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", "Bearer not.a.jwt", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("rejects tokens from before a version bump", func(t *testing.T) {
		stale := authHeader(t, user)
		require.NoError(t, db.Model(user).Update("token_version", user.TokenVersion+1).Error)

		resp := doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", stale, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("rejects deactivated accounts", func(t *testing.T) {
		frozen := createUser(t, db, "frozen@example.com")
		token := authHeader(t, frozen)
		require.NoError(t, db.Model(frozen).Update("is_active", false).Error)

		resp := doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", token, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestGetCurrentUser(t *testing.T) {
	app, db := setupApp(t)
	user := createUser(t, db, "me@example.com")

	resp := doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", authHeader(t, user), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.Equal(t, user.Email, body["email"])
	assert.NotContains(t, body, "password_hash")
	assert.NotContains(t, body, "otp")
}

func TestRefreshToken(t *testing.T) {
	app, db := setupApp(t)
	user := createUser(t, db, "refresh@example.com")
	_, refresh, err := utils.GenerateJWTToken(user)
	require.NoError(t, err)

	t.Run("issues a new pair", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/refresh", "", fiber.Map{
			"refresh_token": refresh,
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body map[string]string
		decodeBody(t, resp, &body)
		require.NotEmpty(t, body["access_token"])

		me := doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", "Bearer "+body["access_token"], nil)
		assert.Equal(t, fiber.StatusOK, me.StatusCode)
		me.Body.Close()
	})

	t.Run("rejects garbage", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/refresh", "", fiber.Map{
			"refresh_token": "garbage",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestLogout(t *testing.T) {
	app, db := setupApp(t)
	user := createUser(t, db, "out@example.com")
	token := authHeader(t, user)
	_, refresh, err := utils.GenerateJWTToken(user)
	require.NoError(t, err)

	resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	t.Run("invalidates the access token", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", token, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("invalidates the refresh token", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/refresh", "", fiber.Map{
			"refresh_token": refresh,
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestChangePassword(t *testing.T) {
	app, db := setupApp(t)
	user := createUser(t, db, "change@example.com")

	t.Run("rejects a wrong current password", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/change-password", authHeader(t, user), fiber.Map{
			"current_password": "wrong-password",
			"new_password":     "brand-new-pass1",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("changes the password and revokes old tokens", func(t *testing.T) {
		old := authHeader(t, user)
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/change-password", old, fiber.Map{
			"current_password": testPassword,
			"new_password":     "brand-new-pass1",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp.Body.Close()

		me := doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", old, nil)
		assert.Equal(t, fiber.StatusUnauthorized, me.StatusCode)
		me.Body.Close()

		login := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", "", fiber.Map{
			"email":    user.Email,
			"password": "brand-new-pass1",
		})
		assert.Equal(t, fiber.StatusOK, login.StatusCode)
		login.Body.Close()
	})
}

func TestForgotPassword(t *testing.T) {
	app, db := setupApp(t)

	t.Run("does not reveal unknown accounts", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/forgot-password", "", fiber.Map{
			"email": "ghost@example.com",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		decodeBody(t, resp, &body)
		assert.Contains(t, body["message"], "If an account exists")
	})

	t.Run("throttles rapid requests", func(t *testing.T) {
		user := createUser(t, db, "eager@example.com")
		// A code sent moments ago still has its full expiry window left
		require.NoError(t, db.Model(user).Updates(map[string]interface{}{
			"otp":            "111111",
			"otp_expires_at": time.Now().Add(utils.OTPExpiry),
		}).Error)

		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/forgot-password", "", fiber.Map{
			"email": user.Email,
		})
		require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

		var body map[string]interface{}
		decodeBody(t, resp, &body)
		retry, ok := body["retry_after"].(float64)
		require.True(t, ok)
		assert.Greater(t, retry, 0.0)
		assert.LessOrEqual(t, retry, utils.OTPResendCooldown.Seconds())
	})
}

func TestResetPassword(t *testing.T) {
	app, db := setupApp(t)
	user := createUser(t, db, "reset@example.com")
	require.NoError(t, utils.SaveOTP(user.ID, "123456"))

	t.Run("rejects a wrong code", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/reset-password", "", fiber.Map{
			"email":        user.Email,
			"otp":          "654321",
			"new_password": "reset-pass-123",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("rejects an unknown email", func(t *testing.T) {
		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/reset-password", "", fiber.Map{
			"email":        "ghost@example.com",
			"otp":          "123456",
			"new_password": "reset-pass-123",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("resets with the correct code", func(t *testing.T) {
		stale := authHeader(t, user)

		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/reset-password", "", fiber.Map{
			"email":        user.Email,
			"otp":          "123456",
			"new_password": "reset-pass-123",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp.Body.Close()

		// The code is single use
		var reloaded models.User
		require.NoError(t, db.First(&reloaded, user.ID).Error)
		assert.Empty(t, reloaded.OTP)

		// Old sessions are revoked, the new password works
		me := doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", stale, nil)
		assert.Equal(t, fiber.StatusUnauthorized, me.StatusCode)
		me.Body.Close()

		login := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", "", fiber.Map{
			"email":    user.Email,
			"password": "reset-pass-123",
		})
		assert.Equal(t, fiber.StatusOK, login.StatusCode)
		login.Body.Close()
	})

	t.Run("rejects an expired code", func(t *testing.T) {
		expired := createUser(t, db, "late@example.com")
		require.NoError(t, db.Model(expired).Updates(map[string]interface{}{
			"otp":            "222222",
			"otp_expires_at": time.Now().Add(-time.Minute),
		}).Error)

		resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/reset-password", "", fiber.Map{
			"email":        expired.Email,
			"otp":          "222222",
			"new_password": "reset-pass-123",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}
