// Package identity は外部IdP（Firebase Authentication）とのやり取りを提供する。
// トークン検証とアカウントのプロビジョニングのみを担い、資格情報そのものは扱わない。
package identity

import (
	"context"
	"errors"
	"time"
)

// ErrProviderDisabled はIdP連携が無効化されている場合に返るエラー。
var ErrProviderDisabled = errors.New("identity provider is not configured")

// VerifiedToken は検証済みIDトークンから取り出したクレーム。
type VerifiedToken struct {
	UID           string // 外部IdPのサブジェクトID
	Email         string
	EmailVerified bool
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// CreateAccountParams はIdP側アカウント作成のパラメータ。
type CreateAccountParams struct {
	Email       string
	Password    string
	DisplayName string
}

// UpdateAccountParams はIdP側アカウント更新のパラメータ。
// nilのフィールドは送信しない。
type UpdateAccountParams struct {
	Email       *string
	DisplayName *string
}

// IsEmpty は送信すべきフィールドが1つも無いかを返す。
func (p UpdateAccountParams) IsEmpty() bool {
	return p.Email == nil && p.DisplayName == nil
}

// Provider は外部IdPの機能のうち本サービスが利用する部分。
type Provider interface {
	// VerifyIDToken はIDトークンの署名・有効期限・発行者を検証する。
	VerifyIDToken(ctx context.Context, idToken string) (*VerifiedToken, error)
	// CreateAccount はIdP側にアカウントを作成し、発行されたサブジェクトIDを返す。
	CreateAccount(ctx context.Context, params CreateAccountParams) (string, error)
	// UpdateAccount はIdP側アカウントのメールアドレス・表示名を更新する。
	UpdateAccount(ctx context.Context, uid string, params UpdateAccountParams) error
	// DeleteAccount はIdP側アカウントを削除する。
	DeleteAccount(ctx context.Context, uid string) error
}
