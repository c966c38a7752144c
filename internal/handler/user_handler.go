package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/usergate/internal/middleware"
	"github.com/hitoshi/usergate/internal/model"
)

// UserServiceInterface はハンドラーが必要とするユーザー管理サービスのインターフェース。
// user.Serviceが実装する。
type UserServiceInterface interface {
	FindAll(ctx context.Context) ([]*model.UserDTO, error)
	FindByID(ctx context.Context, id string) (*model.UserDTO, error)
	FindByFirebaseUID(ctx context.Context, uid string) (*model.UserDTO, error)
	FindInternalByFirebaseUID(ctx context.Context, uid string) (*model.InternalUserDTO, error)
	Create(ctx context.Context, input model.CreateUserInput, password string) (*model.UserDTO, error)
	Update(ctx context.Context, id string, input model.UpdateUserInput) (*model.UserDTO, error)
	Delete(ctx context.Context, id string) error
	AddRole(ctx context.Context, id string, role model.Role) (*model.UserDTO, error)
	RemoveRole(ctx context.Context, id string, role model.Role) (*model.UserDTO, error)
	SetEmailVerified(ctx context.Context, id string, verified bool) (*model.UserDTO, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

// UserHandler は /api/users 配下のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// List は全ユーザーを返す。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.FindAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Get は指定IDのユーザーを返す。
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetByFirebaseUID は外部IdPのサブジェクトIDでユーザーを返す。内部用射影を返す。
// GET /api/users/firebase/{uid}
func (h *UserHandler) GetByFirebaseUID(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.FindInternalByFirebaseUID(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		handleServiceError(w, model.NewUserNotFoundError())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Create は管理者によるユーザー作成を処理する。IdP側のパスワードはランダムに生成される。
// POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		handleServiceError(w, validationError(err))
		return
	}

	user, err := h.service.Create(r.Context(), model.CreateUserInput{
		Email: req.Email,
		Name:  req.Name,
	}, "")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/users/"+user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// Update はメールアドレス・表示名を部分更新する。
// PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		handleServiceError(w, validationError(err))
		return
	}

	user, err := h.service.Update(r.Context(), id, model.UpdateUserInput{
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete はユーザーを削除する。
// DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddRole はロールを付与する。ボディはJSON文字列（例: "ADMIN"）。
// PUT /api/users/{id}/roles
func (h *UserHandler) AddRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var raw string
	if !decodeJSON(w, r, &raw) {
		return
	}
	role, err := model.ParseRole(raw)
	if err != nil {
		handleServiceError(w, model.NewValidationError("Invalid role: "+raw))
		return
	}

	user, err := h.service.AddRole(r.Context(), id, role)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// RemoveRole はロールを剥奪する。未定義のロール名は404。
// DELETE /api/users/{id}/roles/{role}
func (h *UserHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	role, err := model.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Role not found")
		return
	}

	user, err := h.service.RemoveRole(r.Context(), id, role)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// SetEmailVerified はメールアドレス確認済みフラグを設定する。
// PUT /api/users/{id}/email-verified
func (h *UserHandler) SetEmailVerified(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req emailVerifiedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		handleServiceError(w, validationError(err))
		return
	}

	user, err := h.service.SetEmailVerified(r.Context(), id, *req.Verified)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
