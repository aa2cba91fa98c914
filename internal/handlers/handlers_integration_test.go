package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"etlaq/internal/handlers"
	"etlaq/internal/models"
	"etlaq/internal/repositories"
	"etlaq/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "test_jwt_secret"

// setupApp sets up a Fiber app for testing with in-memory SQLite and the
// auth and todo handlers wired the way main does it.
func setupApp(t *testing.T) (*fiber.App, *services.AuthService) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.User{}, &models.Todo{}))

	userRepo := repositories.NewGORMUserRepository(db)
	todoRepo := repositories.NewGORMTodoRepository(db)

	authService := services.NewAuthService(userRepo, testJWTSecret, 0)
	todoService := services.NewTodoService(todoRepo, nil)

	app := fiber.New()
	api := app.Group("/api")
	handlers.NewAuthHandler(authService).RegisterRoutes(api)
	handlers.NewTodoHandler(todoService).RegisterRoutes(api)

	return app, authService
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}, token string) *http.Response {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRegisterAndTokenRoundTrip(t *testing.T) {
	app, authService := setupApp(t)

	resp := postJSON(t, app, "/api/auth/register", map[string]string{
		"email":    "Round@Example.com",
		"password": "password123",
		"name":     "  Round Trip  ",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)

	user := body["user"].(map[string]interface{})
	assert.Equal(t, "round@example.com", user["email"])
	assert.Equal(t, "Round Trip", user["name"])
	_, hasPassword := user["password"]
	assert.False(t, hasPassword)

	claims, err := authService.ValidateToken(body["token"].(string))
	assert.NoError(t, err)
	assert.Equal(t, user["id"], claims.UserID)
	assert.Equal(t, "round@example.com", claims.Email)
	assert.Equal(t, "Round Trip", claims.Name)
}

func TestRegisterValidationBoundaries(t *testing.T) {
	app, _ := setupApp(t)

	// Password of length 5 rejected
	resp := postJSON(t, app, "/api/auth/register", map[string]string{
		"email":    "short@example.com",
		"password": "12345",
		"name":     "Short",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Password of length 6 accepted
	resp = postJSON(t, app, "/api/auth/register", map[string]string{
		"email":    "short@example.com",
		"password": "123456",
		"name":     "Short",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Email missing "@" rejected
	resp = postJSON(t, app, "/api/auth/register", map[string]string{
		"email":    "not-an-email",
		"password": "password123",
		"name":     "Bad Email",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRegisterNameLengthAfterTrim(t *testing.T) {
	app, _ := setupApp(t)

	// A 50-character name passes even when surrounding whitespace pushes the
	// raw value past the limit.
	name50 := strings.Repeat("n", 50)
	resp := postJSON(t, app, "/api/auth/register", map[string]string{
		"email":    "padded@example.com",
		"password": "password123",
		"name":     "   " + name50 + "   ",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	user := decodeBody(t, resp)["user"].(map[string]interface{})
	assert.Equal(t, name50, user["name"])

	// 51 characters after trimming is still rejected.
	resp = postJSON(t, app, "/api/auth/register", map[string]string{
		"email":    "toolong@example.com",
		"password": "password123",
		"name":     " " + strings.Repeat("n", 51) + " ",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRegisterDuplicateEmail(t *testing.T) {
	app, _ := setupApp(t)

	resp := postJSON(t, app, "/api/auth/register", map[string]string{
		"email":    "dupe@example.com",
		"password": "password123",
		"name":     "First",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Same email with different casing conflicts
	resp = postJSON(t, app, "/api/auth/register", map[string]string{
		"email":    "DUPE@example.com",
		"password": "password123",
		"name":     "Second",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestLogin(t *testing.T) {
	app, _ := setupApp(t)

	resp := postJSON(t, app, "/api/auth/register", map[string]string{
		"email":    "login@example.com",
		"password": "password123",
		"name":     "Login",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, app, "/api/auth/login", map[string]string{
		"email":    "login@example.com",
		"password": "password123",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["token"])

	resp = postJSON(t, app, "/api/auth/login", map[string]string{
		"email":    "login@example.com",
		"password": "wrongpassword",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestAuthGate(t *testing.T) {
	app, _ := setupApp(t)

	// No Authorization header
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Malformed header
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Token abcdef")
	resp, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Expired token
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	expiredTokenString, _ := expired.SignedString([]byte(testJWTSecret))
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+expiredTokenString)
	resp, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestMeAndProfileUpdate(t *testing.T) {
	app, _ := setupApp(t)

	resp := postJSON(t, app, "/api/auth/register", map[string]string{
		"email":    "me@example.com",
		"password": "password123",
		"name":     "Original Name",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	token := decodeBody(t, resp)["token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	user := decodeBody(t, resp)["user"].(map[string]interface{})
	assert.Equal(t, "me@example.com", user["email"])

	// Only the name is updatable
	jsonBody, _ := json.Marshal(map[string]string{"name": "  New Name  "})
	req = httptest.NewRequest(http.MethodPut, "/api/auth/profile", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	user = decodeBody(t, resp)["user"].(map[string]interface{})
	assert.Equal(t, "New Name", user["name"])
	assert.Equal(t, "me@example.com", user["email"])
}

func TestTodoCRUD(t *testing.T) {
	app, _ := setupApp(t)

	// Create trims the title and defaults completed to false
	resp := postJSON(t, app, "/api/todos", map[string]string{"title": "  Buy milk  "}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Todo
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, "Buy milk", created.Title)
	assert.False(t, created.Completed)
	assert.NotEmpty(t, created.ID)

	// Repeated GET of an unmodified todo returns identical content
	var bodies [][]byte
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/todos/"+created.ID, nil)
		getResp, err := app.Test(req, -1)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, getResp.StatusCode)
		data, err := io.ReadAll(getResp.Body)
		assert.NoError(t, err)
		getResp.Body.Close()
		bodies = append(bodies, data)
	}
	assert.Equal(t, bodies[0], bodies[1])

	// Partial update: completed only, title untouched
	jsonBody, _ := json.Marshal(map[string]bool{"completed": true})
	req := httptest.NewRequest(http.MethodPut, "/api/todos/"+created.ID, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Todo
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	assert.Equal(t, "Buy milk", updated.Title)
	assert.True(t, updated.Completed)

	// Delete
	req = httptest.NewRequest(http.MethodDelete, "/api/todos/"+created.ID, nil)
	resp, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Gone
	req = httptest.NewRequest(http.MethodGet, "/api/todos/"+created.ID, nil)
	resp, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestTodoListNewestFirst(t *testing.T) {
	app, _ := setupApp(t)

	for i := 1; i <= 3; i++ {
		resp := postJSON(t, app, "/api/todos", map[string]string{
			"title": fmt.Sprintf("Todo %d", i),
		}, "")
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
		time.Sleep(5 * time.Millisecond) // distinct created_at values
	}

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var todos []models.Todo
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&todos))
	resp.Body.Close()

	assert.Len(t, todos, 3)
	assert.Equal(t, "Todo 3", todos[0].Title)
	assert.Equal(t, "Todo 2", todos[1].Title)
	assert.Equal(t, "Todo 1", todos[2].Title)
}

func TestTodoValidation(t *testing.T) {
	app, _ := setupApp(t)

	// Missing title
	resp := postJSON(t, app, "/api/todos", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Whitespace-only title trims to empty
	resp = postJSON(t, app, "/api/todos", map[string]string{"title": "   "}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Unknown id
	req := httptest.NewRequest(http.MethodGet, "/api/todos/no-such-id", nil)
	getResp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
	getResp.Body.Close()
}
