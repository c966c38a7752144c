package handler

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/hitoshi/usergate/internal/model"
)

const (
	maxEmailLength = 320
	maxNameLength  = 255
)

// registerRequest はセルフ登録リクエストのボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Validate はリクエスト内容を検証する。
func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.Required.Error("Email is required"),
			validation.Length(0, maxEmailLength),
			is.EmailFormat.Error("Invalid email format"),
		),
		validation.Field(&r.Password, validation.Required.Error("Password is required")),
		validation.Field(&r.Name, validation.Length(0, maxNameLength)),
	)
}

// createUserRequest は管理者によるユーザー作成リクエストのボディ。
type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Validate はリクエスト内容を検証する。
func (r createUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.Required.Error("Email is required"),
			validation.Length(0, maxEmailLength),
			is.EmailFormat.Error("Invalid email format"),
		),
		validation.Field(&r.Name, validation.Length(0, maxNameLength)),
	)
}

// updateUserRequest はユーザー更新リクエストのボディ。省略したフィールドは変更しない。
type updateUserRequest struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
}

// Validate はリクエスト内容を検証する。
func (r updateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.NilOrNotEmpty.Error("Email must not be empty"),
			validation.Length(0, maxEmailLength),
			is.EmailFormat.Error("Invalid email format"),
		),
		validation.Field(&r.Name, validation.Length(0, maxNameLength)),
	)
}

// emailVerifiedRequest はメール確認状態の設定リクエストのボディ。
type emailVerifiedRequest struct {
	Verified *bool `json:"verified"`
}

// Validate はリクエスト内容を検証する。
func (r emailVerifiedRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Verified, validation.NotNil.Error("verified is required")),
	)
}

// validationError は検証エラーをVALIDATION_FAILEDのAPIErrorに変換する。
// メッセージはフィールド名順に連結する。
func validationError(err error) *model.APIError {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return model.NewValidationError(err.Error())
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, errs[field].Error())
	}
	return model.NewValidationError(strings.Join(msgs, "; "))
}
