// Package auth はベアラートークンの検証を提供する。
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hitoshi/usergate/internal/identity"
)

// ErrInvalidToken はトークン検証に失敗した場合に返るエラー。
// 署名不正・期限切れ・失効・通信エラーなど原因は区別しない。
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenVerifier は外部IdPによるトークン検証をラップする。
type TokenVerifier struct {
	provider identity.Provider
}

// NewTokenVerifier はTokenVerifierを生成する。
func NewTokenVerifier(provider identity.Provider) *TokenVerifier {
	return &TokenVerifier{provider: provider}
}

// Verify はトークンを検証し、検証済みのクレームを返す。
// IdP側のあらゆる失敗はErrInvalidTokenに集約する。
func (v *TokenVerifier) Verify(ctx context.Context, token string) (*identity.VerifiedToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	verified, err := v.provider.VerifyIDToken(ctx, token)
	if err != nil {
		slog.Debug("token verification failed", slog.String("error", err.Error()))
		return nil, ErrInvalidToken
	}
	if verified == nil || verified.UID == "" {
		return nil, ErrInvalidToken
	}

	return verified, nil
}

// BearerToken はAuthorizationヘッダーの値から "Bearer " スキームのトークンを取り出す。
// スキームが一致しない、またはトークンが空の場合はfalseを返す。
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
