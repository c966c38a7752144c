// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/usergate/internal/auth"
	"github.com/hitoshi/usergate/internal/middleware"
	"github.com/hitoshi/usergate/internal/model"
	"github.com/hitoshi/usergate/internal/repository"
)

const (
	msgUserCreated       = "User created successfully"
	msgCreateFailed      = "Failed to create user: "
	msgBadAuthHeader     = "Authorization header must be 'Bearer <token>'"
	msgInvalidToken      = "Invalid token: "
	msgTokenUnregistered = "Token is valid but user is not registered in the system"
	msgUserNotFound      = "User not found"
)

// healthCheckTimeout はDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// AuthHandler は /api/auth 配下のHTTPハンドラー。
type AuthHandler struct {
	users    UserServiceInterface
	verifier middleware.TokenVerifier
	db       repository.Pinger
}

// NewAuthHandler はAuthHandlerを生成する。dbがnilの場合、ヘルスチェックは常に成功する。
func NewAuthHandler(users UserServiceInterface, verifier middleware.TokenVerifier, db repository.Pinger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		verifier: verifier,
		db:       db,
	}
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// checkResponse はユーザー存在確認のレスポンス。
type checkResponse struct {
	Exists bool           `json:"exists"`
	User   *model.UserDTO `json:"user,omitempty"`
}

// registerResponse はセルフ登録のレスポンス。
type registerResponse struct {
	Message string         `json:"message"`
	User    *model.UserDTO `json:"user"`
}

// verifyTokenResponse はトークン検証のレスポンス。
type verifyTokenResponse struct {
	Verified bool           `json:"verified"`
	Exists   *bool          `json:"exists,omitempty"`
	User     *model.UserDTO `json:"user,omitempty"`
	Message  string         `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Health はプロセスとDBの疎通状態を返す。
// GET /api/auth/health
func (h *AuthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// CheckUser は外部IdPのサブジェクトIDに対応するユーザーが登録済みかを返す。
// GET /api/auth/check/{uid}
func (h *AuthHandler) CheckUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByFirebaseUID(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, checkResponse{Exists: false})
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Exists: true, User: user})
}

// Register はセルフ登録を処理する。
// サービス層の失敗は種類を問わず500として返す。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		handleServiceError(w, validationError(err))
		return
	}

	user, err := h.users.Create(r.Context(), model.CreateUserInput{
		Email: req.Email,
		Name:  req.Name,
	}, req.Password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			middleware.WriteError(w, http.StatusInternalServerError, msgCreateFailed+apiErr.Message)
			return
		}
		slog.Error("failed to register user", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, msgCreateFailed+"internal error")
		return
	}

	w.Header().Set("Location", "/api/users/"+user.ID)
	writeJSON(w, http.StatusCreated, registerResponse{Message: msgUserCreated, User: user})
}

// VerifyToken はベアラートークンを検証し、対応するユーザーを返す。
// ログインとして扱い、最終ログイン日時を更新する。
// POST /api/auth/verify-token
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, msgBadAuthHeader)
		return
	}

	verified, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, verifyTokenResponse{
			Verified: false,
			Error:    msgInvalidToken + err.Error(),
		})
		return
	}

	user, err := h.users.FindInternalByFirebaseUID(r.Context(), verified.UID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	exists := user != nil
	if !exists {
		writeJSON(w, http.StatusNotFound, verifyTokenResponse{
			Verified: true,
			Exists:   &exists,
			Message:  msgTokenUnregistered,
		})
		return
	}

	dto := &user.UserDTO
	if verified.EmailVerified && !user.EmailVerified {
		synced, err := h.users.SetEmailVerified(r.Context(), user.ID, true)
		if err != nil {
			slog.Warn("failed to sync email verification",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		} else {
			dto = synced
		}
	}

	if err := h.users.UpdateLastLogin(r.Context(), user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, verifyTokenResponse{
		Verified: true,
		Exists:   &exists,
		User:     dto,
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		handleServiceError(w, model.NewUnauthenticatedError("Missing or invalid authorization token"))
		return
	}

	user, err := h.users.FindByFirebaseUID(r.Context(), sess.FirebaseUID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		middleware.WriteError(w, http.StatusNotFound, msgUserNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
