package identity

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// firebaseAuthClient は*auth.Clientのうち本パッケージが使うメソッド。
type firebaseAuthClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
}

// FirebaseProvider はFirebase Admin SDKを使用したProvider実装。
type FirebaseProvider struct {
	client firebaseAuthClient
}

// NewFirebaseProvider はサービスアカウント鍵ファイルからFirebase Admin SDKを初期化する。
func NewFirebaseProvider(ctx context.Context, credentialsPath string) (*FirebaseProvider, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth client: %w", err)
	}

	return &FirebaseProvider{client: client}, nil
}

// VerifyIDToken はFirebase IDトークンを検証する。
func (p *FirebaseProvider) VerifyIDToken(ctx context.Context, idToken string) (*VerifiedToken, error) {
	token, err := p.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	verified := &VerifiedToken{
		UID:       token.UID,
		IssuedAt:  time.Unix(token.IssuedAt, 0),
		ExpiresAt: time.Unix(token.Expires, 0),
	}
	if email, ok := token.Claims["email"].(string); ok {
		verified.Email = email
	}
	if ev, ok := token.Claims["email_verified"].(bool); ok {
		verified.EmailVerified = ev
	}

	return verified, nil
}

// CreateAccount はFirebase上にユーザーを作成する。
func (p *FirebaseProvider) CreateAccount(ctx context.Context, params CreateAccountParams) (string, error) {
	req := (&auth.UserToCreate{}).
		Email(params.Email).
		Password(params.Password)
	if params.DisplayName != "" {
		req = req.DisplayName(params.DisplayName)
	}

	record, err := p.client.CreateUser(ctx, req)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", fmt.Errorf("email %s already exists in firebase: %w", params.Email, err)
		}
		return "", fmt.Errorf("failed to create firebase user: %w", err)
	}

	return record.UID, nil
}

// UpdateAccount はFirebase上のユーザーを更新する。
func (p *FirebaseProvider) UpdateAccount(ctx context.Context, uid string, params UpdateAccountParams) error {
	req := &auth.UserToUpdate{}
	if params.Email != nil {
		req = req.Email(*params.Email)
	}
	if params.DisplayName != nil {
		req = req.DisplayName(*params.DisplayName)
	}

	if _, err := p.client.UpdateUser(ctx, uid, req); err != nil {
		return fmt.Errorf("failed to update firebase user: %w", err)
	}
	return nil
}

// DeleteAccount はFirebase上のユーザーを削除する。
func (p *FirebaseProvider) DeleteAccount(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		return fmt.Errorf("failed to delete firebase user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Provider = (*FirebaseProvider)(nil)
