// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError はサービス層からHTTP境界へ伝播する型付きエラー。
// Codeは境界層でHTTPステータスに1対1で変換される。
type APIError struct {
	Code    string // エラーコード
	Message string // レスポンスのerrorフィールドにそのまま載るメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated       = "UNAUTHENTICATED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeEmailConflict         = "EMAIL_CONFLICT"
	ErrCodeInvalidRoleState      = "INVALID_ROLE_STATE"
	ErrCodeValidationFailed      = "VALIDATION_FAILED"
	ErrCodeIdentityProviderError = "IDENTITY_PROVIDER_ERROR"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeUserNotFound,
		Message: "User not found",
	}
}

// NewEmailConflictError はメールアドレスが既に使われている場合のエラーを生成する。
func NewEmailConflictError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeEmailConflict,
		Message: message,
	}
}

// NewInvalidRoleStateError はロール集合が空になる操作を拒否するエラーを生成する。
func NewInvalidRoleStateError(role Role) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidRoleState,
		Message: fmt.Sprintf("Cannot remove the %s role if it's the only role", role),
	}
}

// NewValidationError はリクエスト内容が不正な場合のエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: message,
	}
}

// NewIdentityProviderError は外部IdP呼び出しの失敗を表すエラーを生成する。
func NewIdentityProviderError(action string, err error) *APIError {
	return &APIError{
		Code:    ErrCodeIdentityProviderError,
		Message: fmt.Sprintf("Failed to %s user in identity provider: %v", action, err),
	}
}

// NewUnauthenticatedError はトークンが無い・無効な場合のエラーを生成する。
func NewUnauthenticatedError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeUnauthenticated,
		Message: message,
	}
}

// NewForbiddenError は認証済みだが操作が許可されない場合のエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeForbidden,
		Message: message,
	}
}
