package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/usergate/internal/auth"
	"github.com/hitoshi/usergate/internal/identity"
	"github.com/hitoshi/usergate/internal/middleware"
	"github.com/hitoshi/usergate/internal/model"
)

func staticVerifier(uid string, emailVerified bool) *mockTokenVerifier {
	return &mockTokenVerifier{
		verifyFn: func(ctx context.Context, token string) (*identity.VerifiedToken, error) {
			if token != "good-token" {
				return nil, auth.ErrInvalidToken
			}
			return &identity.VerifiedToken{UID: uid, EmailVerified: emailVerified}, nil
		},
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

// --- GET /api/auth/health ---

func TestAuthHandler_Health_OK(t *testing.T) {
	h := NewAuthHandler(&mockUserService{}, staticVerifier("fb-1", false), &mockPinger{})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/api/auth/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestAuthHandler_Health_DatabaseDown(t *testing.T) {
	h := NewAuthHandler(&mockUserService{}, staticVerifier("fb-1", false), &mockPinger{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/api/auth/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// --- GET /api/auth/check/{uid} ---

func serveCheck(h *AuthHandler, uid string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/auth/check/{uid}", h.CheckUser)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/check/"+uid, nil))
	return w
}

func TestAuthHandler_CheckUser_Exists(t *testing.T) {
	svc := &mockUserService{
		findByFirebaseUIDFn: func(ctx context.Context, uid string) (*model.UserDTO, error) {
			if uid != "fb-1" {
				t.Errorf("uid = %q, want fb-1", uid)
			}
			return &model.UserDTO{ID: "user-1", Email: "alice@example.com"}, nil
		},
	}
	w := serveCheck(NewAuthHandler(svc, nil, nil), "fb-1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["exists"] != true {
		t.Errorf("exists = %v, want true", body["exists"])
	}
	user, ok := body["user"].(map[string]any)
	if !ok || user["id"] != "user-1" {
		t.Errorf("user = %v, want id user-1", body["user"])
	}
	if _, leaked := user["firebaseUid"]; leaked {
		t.Error("public projection must not expose firebaseUid")
	}
}

func TestAuthHandler_CheckUser_NotExists(t *testing.T) {
	w := serveCheck(NewAuthHandler(&mockUserService{}, nil, nil), "fb-unknown")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["exists"] != false {
		t.Errorf("exists = %v, want false", body["exists"])
	}
	if _, ok := body["user"]; ok {
		t.Error("user should be omitted when the user does not exist")
	}
}

// --- POST /api/auth/register ---

func TestAuthHandler_Register_Success(t *testing.T) {
	svc := &mockUserService{
		createFn: func(ctx context.Context, input model.CreateUserInput, password string) (*model.UserDTO, error) {
			if input.Email != "alice@example.com" || input.Name != "Alice" {
				t.Errorf("input = %+v", input)
			}
			if password != "s3cret-pass" {
				t.Errorf("password = %q, want the supplied password", password)
			}
			return &model.UserDTO{ID: "3f1c2e9a-0000-4000-8000-000000000001", Email: input.Email, Roles: []model.Role{model.RoleUser}}, nil
		},
	}
	h := NewAuthHandler(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"alice@example.com","password":"s3cret-pass","name":"Alice"}`))
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if loc := w.Header().Get("Location"); loc != "/api/users/3f1c2e9a-0000-4000-8000-000000000001" {
		t.Errorf("Location = %q", loc)
	}
	body := decodeBody(t, w)
	if body["message"] != "User created successfully" {
		t.Errorf("message = %v", body["message"])
	}
	if _, ok := body["user"].(map[string]any); !ok {
		t.Errorf("user = %v, want object", body["user"])
	}
}

func TestAuthHandler_Register_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing email", `{"password":"p"}`, "Email is required"},
		{"invalid email", `{"email":"not-an-email","password":"p"}`, "Invalid email format"},
		{"missing password", `{"email":"alice@example.com"}`, "Password is required"},
		{"malformed json", `{"email":`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				createFn: func(ctx context.Context, input model.CreateUserInput, password string) (*model.UserDTO, error) {
					t.Error("Create should not be called for an invalid body")
					return nil, nil
				},
			}
			h := NewAuthHandler(svc, nil, nil)

			w := httptest.NewRecorder()
			h.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tt.body)))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if msg, _ := decodeBody(t, w)["error"].(string); !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("error = %q, want to contain %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestAuthHandler_Register_ServiceFailureIs500(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"conflict", model.NewEmailConflictError("A user with this email already exists"), "Failed to create user: A user with this email already exists"},
		{"provider", model.NewIdentityProviderError("create", errors.New("EMAIL_EXISTS")), "Failed to create user: Failed to create user in identity provider: EMAIL_EXISTS"},
		{"internal", errors.New("pq: connection reset"), "Failed to create user: internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				createFn: func(ctx context.Context, input model.CreateUserInput, password string) (*model.UserDTO, error) {
					return nil, tt.err
				},
			}
			h := NewAuthHandler(svc, nil, nil)

			w := httptest.NewRecorder()
			h.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register",
				strings.NewReader(`{"email":"alice@example.com","password":"p"}`)))

			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
			}
			if msg := decodeBody(t, w)["error"]; msg != tt.wantMsg {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

// --- POST /api/auth/verify-token ---

func registeredInternalUser(emailVerified bool) func(ctx context.Context, uid string) (*model.InternalUserDTO, error) {
	return func(ctx context.Context, uid string) (*model.InternalUserDTO, error) {
		if uid != "fb-1" {
			return nil, nil
		}
		return &model.InternalUserDTO{
			UserDTO:     model.UserDTO{ID: "user-1", Email: "alice@example.com", EmailVerified: emailVerified, Roles: []model.Role{model.RoleUser}},
			FirebaseUID: "fb-1",
		}, nil
	}
}

func verifyTokenRequest(header string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-token", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return req
}

func TestAuthHandler_VerifyToken_BadHeader(t *testing.T) {
	h := NewAuthHandler(&mockUserService{}, staticVerifier("fb-1", false), nil)

	for _, header := range []string{"", "Basic abc", "Bearer "} {
		w := httptest.NewRecorder()
		h.VerifyToken(w, verifyTokenRequest(header))

		if w.Code != http.StatusBadRequest {
			t.Errorf("header %q: status = %d, want %d", header, w.Code, http.StatusBadRequest)
		}
	}
}

func TestAuthHandler_VerifyToken_InvalidToken(t *testing.T) {
	h := NewAuthHandler(&mockUserService{}, staticVerifier("fb-1", false), nil)

	w := httptest.NewRecorder()
	h.VerifyToken(w, verifyTokenRequest("Bearer forged"))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	body := decodeBody(t, w)
	if body["verified"] != false {
		t.Errorf("verified = %v, want false", body["verified"])
	}
	if body["error"] != "Invalid token: invalid or expired token" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestAuthHandler_VerifyToken_Unregistered(t *testing.T) {
	svc := &mockUserService{findInternalByFirebaseUIDFn: registeredInternalUser(false)}
	h := NewAuthHandler(svc, staticVerifier("fb-stranger", false), nil)

	w := httptest.NewRecorder()
	h.VerifyToken(w, verifyTokenRequest("Bearer good-token"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	body := decodeBody(t, w)
	if body["verified"] != true || body["exists"] != false {
		t.Errorf("body = %v, want verified=true exists=false", body)
	}
	if body["message"] != "Token is valid but user is not registered in the system" {
		t.Errorf("message = %v", body["message"])
	}
	if svc.lastLoginCalls != 0 {
		t.Error("last login should not be touched for an unregistered user")
	}
}

func TestAuthHandler_VerifyToken_Success(t *testing.T) {
	svc := &mockUserService{
		findInternalByFirebaseUIDFn: registeredInternalUser(true),
		setEmailVerifiedFn: func(ctx context.Context, id string, verified bool) (*model.UserDTO, error) {
			t.Error("email verification should not be synced when already verified")
			return nil, nil
		},
	}
	h := NewAuthHandler(svc, staticVerifier("fb-1", true), nil)

	w := httptest.NewRecorder()
	h.VerifyToken(w, verifyTokenRequest("Bearer good-token"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["verified"] != true || body["exists"] != true {
		t.Errorf("body = %v, want verified=true exists=true", body)
	}
	user, _ := body["user"].(map[string]any)
	if user["id"] != "user-1" {
		t.Errorf("user = %v", body["user"])
	}
	if _, leaked := user["firebaseUid"]; leaked {
		t.Error("verify-token must return the public projection")
	}
	if svc.lastLoginCalls != 1 {
		t.Errorf("lastLoginCalls = %d, want 1", svc.lastLoginCalls)
	}
}

func TestAuthHandler_VerifyToken_SyncsEmailVerified(t *testing.T) {
	synced := false
	svc := &mockUserService{
		findInternalByFirebaseUIDFn: registeredInternalUser(false),
		setEmailVerifiedFn: func(ctx context.Context, id string, verified bool) (*model.UserDTO, error) {
			synced = true
			if id != "user-1" || !verified {
				t.Errorf("SetEmailVerified(%q, %v), want (user-1, true)", id, verified)
			}
			return &model.UserDTO{ID: id, EmailVerified: true}, nil
		},
	}
	h := NewAuthHandler(svc, staticVerifier("fb-1", true), nil)

	w := httptest.NewRecorder()
	h.VerifyToken(w, verifyTokenRequest("Bearer good-token"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !synced {
		t.Error("expected email verification to be synced from the token")
	}
	user, _ := decodeBody(t, w)["user"].(map[string]any)
	if user["emailVerified"] != true {
		t.Errorf("emailVerified = %v, want true", user["emailVerified"])
	}
}

func TestAuthHandler_VerifyToken_LastLoginFailureIgnored(t *testing.T) {
	svc := &mockUserService{
		findInternalByFirebaseUIDFn: registeredInternalUser(false),
		updateLastLoginFn: func(ctx context.Context, id string) error {
			return errors.New("deadlock detected")
		},
	}
	h := NewAuthHandler(svc, staticVerifier("fb-1", false), nil)

	w := httptest.NewRecorder()
	h.VerifyToken(w, verifyTokenRequest("Bearer good-token"))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// --- GET /api/auth/me ---

func TestAuthHandler_Me(t *testing.T) {
	svc := &mockUserService{
		findByFirebaseUIDFn: func(ctx context.Context, uid string) (*model.UserDTO, error) {
			if uid == "fb-1" {
				return &model.UserDTO{ID: "user-1", Email: "alice@example.com"}, nil
			}
			return nil, nil
		},
	}
	h := NewAuthHandler(svc, nil, nil)

	t.Run("registered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req = req.WithContext(middleware.ContextWithSession(req.Context(), &model.Session{UserID: "user-1", FirebaseUID: "fb-1"}))
		w := httptest.NewRecorder()
		h.Me(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if body := decodeBody(t, w); body["id"] != "user-1" {
			t.Errorf("id = %v, want user-1", body["id"])
		}
	})

	t.Run("deleted since authentication", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req = req.WithContext(middleware.ContextWithSession(req.Context(), &model.Session{UserID: "user-2", FirebaseUID: "fb-2"}))
		w := httptest.NewRecorder()
		h.Me(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
		if body := decodeBody(t, w); body["error"] != "User not found" {
			t.Errorf("error = %v", body["error"])
		}
	})

	t.Run("no session", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
