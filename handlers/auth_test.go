package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tulisin/auth"
	"tulisin/db"
	"tulisin/respond"
	"tulisin/services"
)

type testServer struct {
	h      *Handler
	db     *db.DB
	tokens *auth.TokenManager
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	ctx := context.Background()
	d, err := db.Open(ctx, db.Config{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, d.Migrate(ctx))
	t.Cleanup(func() { _ = d.Close() })

	tokens := auth.NewTokenManager("test-secret", 0)
	h := New(
		d,
		services.NewAuthService(d, tokens, bcrypt.MinCost),
		services.NewSectionService(d),
		services.NewNoteService(d),
		respond.Responder{},
	)
	return &testServer{h: h, db: d, tokens: tokens}
}

// call runs handler with an optional JSON body, caller and URL params given
// as name/value pairs.
func call(handler http.HandlerFunc, method, target string, body any, userID string, params ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	if len(params) > 0 {
		chiCtx := chi.NewRouteContext()
		for i := 0; i+1 < len(params); i += 2 {
			chiCtx.URLParams.Add(params[i], params[i+1])
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
	}
	if userID != "" {
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: userID}))
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func fieldsOf(t *testing.T, body map[string]any) map[string]string {
	t.Helper()
	details, ok := body["details"].([]any)
	require.True(t, ok, "details should be a list")
	out := map[string]string{}
	for _, d := range details {
		m := d.(map[string]any)
		out[m["field"].(string)] = m["message"].(string)
	}
	return out
}

func (s *testServer) registerUser(t *testing.T, email string) (string, string) {
	t.Helper()
	rr := call(s.h.Register, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"name": "Test User", "email": email, "password": "abcdef"}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	body := decodeBody(t, rr)
	user := body["user"].(map[string]any)
	return user["id"].(string), body["token"].(string)
}

func TestRegister(t *testing.T) {
	s := setupTestServer(t)

	// Test case 1: Successful registration
	t.Run("Successful registration", func(t *testing.T) {
		rr := call(s.h.Register, http.MethodPost, "/api/v1/auth/register",
			map[string]string{"name": " John ", "email": "  John@Example.com", "password": "abcdef"}, "")
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		body := decodeBody(t, rr)
		user := body["user"].(map[string]any)
		assert.Equal(t, "john@example.com", user["email"])
		assert.Equal(t, "John", user["name"])
		assert.NotContains(t, user, "passwordHash")
		assert.NotContains(t, user, "PasswordHash")
		assert.NotEmpty(t, body["token"])
		assert.NotEmpty(t, body["expiresAt"])
	})

	// Test case 2: User already exists
	t.Run("User already exists", func(t *testing.T) {
		rr := call(s.h.Register, http.MethodPost, "/api/v1/auth/register",
			map[string]string{"name": "John", "email": "JOHN@example.com", "password": "abcdef"}, "")
		assert.Equal(t, http.StatusConflict, rr.Code)

		body := decodeBody(t, rr)
		assert.Equal(t, "Email already exists", body["error"])
		assert.Equal(t, "CONFLICT", body["code"])
	})

	// Test case 3: Invalid request body
	t.Run("Invalid request body", func(t *testing.T) {
		rr := call(s.h.Register, http.MethodPost, "/api/v1/auth/register", "not json", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		body := decodeBody(t, rr)
		assert.Equal(t, "Invalid request body", body["error"])
		assert.Equal(t, "Request body must be a valid JSON object", fieldsOf(t, body)["body"])
	})

	t.Run("Field validation", func(t *testing.T) {
		rr := call(s.h.Register, http.MethodPost, "/api/v1/auth/register",
			map[string]string{"name": "   ", "email": "nope", "password": "123"}, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		body := decodeBody(t, rr)
		assert.Equal(t, "Validation failed", body["error"])
		fields := fieldsOf(t, body)
		assert.Equal(t, "Name is required and must be a string", fields["name"])
		assert.Equal(t, "Email must be a valid email address", fields["email"])
		assert.Equal(t, "Password must be at least 6 characters long", fields["password"])
	})

	t.Run("Missing fields", func(t *testing.T) {
		rr := call(s.h.Register, http.MethodPost, "/api/v1/auth/register", map[string]string{}, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		fields := fieldsOf(t, decodeBody(t, rr))
		assert.Equal(t, "Name is required and must be a string", fields["name"])
		assert.Equal(t, "Email is required and must be a string", fields["email"])
		assert.Equal(t, "Password is required and must be a string", fields["password"])
	})

	t.Run("Password too long", func(t *testing.T) {
		rr := call(s.h.Register, http.MethodPost, "/api/v1/auth/register",
			map[string]string{"name": "A", "email": "long@x.com", "password": strings.Repeat("p", 80)}, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		assert.Equal(t, "Password must not exceed 72 characters", fieldsOf(t, decodeBody(t, rr))["password"])
	})

	t.Run("Password over 72 bytes", func(t *testing.T) {
		// 40 runes pass the length rule but encode to 80 bytes.
		rr := call(s.h.Register, http.MethodPost, "/api/v1/auth/register",
			map[string]string{"name": "A", "email": "wide@x.com", "password": strings.Repeat("é", 40)}, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

		body := decodeBody(t, rr)
		assert.Equal(t, "Validation failed", body["error"])
		assert.Equal(t, "Password must not exceed 72 bytes", fieldsOf(t, body)["password"])
	})

	t.Run("Password of exactly 72 bytes", func(t *testing.T) {
		rr := call(s.h.Register, http.MethodPost, "/api/v1/auth/register",
			map[string]string{"name": "A", "email": "edge@x.com", "password": strings.Repeat("p", 72)}, "")
		assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	})

	t.Run("Wrong type", func(t *testing.T) {
		rr := call(s.h.Register, http.MethodPost, "/api/v1/auth/register",
			`{"name": 42, "email": "a@x.com", "password": "abcdef"}`, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Name must be a string", fieldsOf(t, decodeBody(t, rr))["name"])
	})
}

func TestLogin(t *testing.T) {
	s := setupTestServer(t)
	s.registerUser(t, "test@example.com")

	// Test case 1: Successful login
	t.Run("Successful login", func(t *testing.T) {
		rr := call(s.h.Login, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": "Test@Example.com", "password": "abcdef"}, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		body := decodeBody(t, rr)
		token, ok := body["token"].(string)
		require.True(t, ok)
		assert.Len(t, strings.Split(token, "."), 3)

		p, err := s.tokens.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "test@example.com", p.Email)
	})

	// Test case 2: Invalid credentials
	t.Run("Invalid credentials", func(t *testing.T) {
		rr := call(s.h.Login, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": "test@example.com", "password": "wrongpassword"}, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		body := decodeBody(t, rr)
		assert.Equal(t, "Invalid email or password", body["error"])
		assert.Equal(t, "AUTHENTICATION_ERROR", body["code"])
	})

	// Test case 3: User not found
	t.Run("User not found", func(t *testing.T) {
		rr := call(s.h.Login, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": "nonexistent@example.com", "password": "abcdef"}, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Invalid email or password", decodeBody(t, rr)["error"])
	})
}

func TestMeAndLogout(t *testing.T) {
	s := setupTestServer(t)
	userID, _ := s.registerUser(t, "me@example.com")

	t.Run("Me", func(t *testing.T) {
		rr := call(s.h.Me, http.MethodGet, "/api/v1/auth/me", nil, userID)
		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, userID, body["id"])
		assert.Equal(t, "me@example.com", body["email"])
	})

	t.Run("Me for deleted user", func(t *testing.T) {
		rr := call(s.h.Me, http.MethodGet, "/api/v1/auth/me", nil, "0b6f4c3e-8a51-4a0e-9a57-9f3c1f1b2d44")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "User not found", decodeBody(t, rr)["error"])
	})

	t.Run("Logout", func(t *testing.T) {
		rr := call(s.h.Logout, http.MethodPost, "/api/v1/auth/logout", nil, userID)
		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Logout successful", body["message"])
	})
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	rr := call(s.h.Health, http.MethodGet, "/api/v1/health", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "ok", body["status"])

	database := body["database"].(map[string]any)
	assert.Equal(t, "sqlite", database["driver"])
	assert.Equal(t, true, database["healthy"])
	pool := database["pool"].(map[string]any)
	assert.Contains(t, pool, "totalCount")
	assert.Contains(t, pool, "waitCount")
	assert.NotContains(t, pool, "waitingCount")

	require.NoError(t, s.db.Close())
	rr = call(s.h.Health, http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
