package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/usergate/internal/auth"
	"github.com/hitoshi/usergate/internal/identity"
	"github.com/hitoshi/usergate/internal/metrics"
	"github.com/hitoshi/usergate/internal/model"
)

const (
	msgMissingToken  = "Missing or invalid authorization token"
	msgInvalidToken  = "Invalid token: "
	msgNotRegistered = "User not registered in the system"
)

// TokenVerifier はベアラートークンを検証するインターフェース。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*identity.VerifiedToken, error)
}

// SessionResolver は検証済みトークンからローカルユーザーを解決するインターフェース。
// user.Serviceが実装する。
type SessionResolver interface {
	FindInternalByFirebaseUID(ctx context.Context, uid string) (*model.InternalUserDTO, error)
	NewSession(u *model.InternalUserDTO, token *identity.VerifiedToken) *model.Session
	UpdateLastLogin(ctx context.Context, id string) error
}

// AuthRecorder は認証ゲートの判定結果を記録するインターフェース。
type AuthRecorder interface {
	RecordAuthentication(outcome string)
}

// Authenticator はベアラートークンを検証し、リクエストにSessionを付与する認証ゲート。
type Authenticator struct {
	verifier    TokenVerifier
	resolver    SessionResolver
	recorder    AuthRecorder
	publicPaths []string
}

// NewAuthenticator はAuthenticatorを生成する。
// publicPathsに前方一致（パスセグメント単位）するリクエストは検証せずに通す。
func NewAuthenticator(verifier TokenVerifier, resolver SessionResolver, recorder AuthRecorder, publicPaths []string) *Authenticator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Authenticator{
		verifier:    verifier,
		resolver:    resolver,
		recorder:    recorder,
		publicPaths: publicPaths,
	}
}

// Middleware は認証ゲートのミドルウェアを返す。
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			a.recorder.RecordAuthentication(metrics.AuthOutcomeMissingToken)
			WriteError(w, http.StatusUnauthorized, msgMissingToken)
			return
		}

		verified, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			a.recorder.RecordAuthentication(metrics.AuthOutcomeInvalidToken)
			WriteError(w, http.StatusUnauthorized, msgInvalidToken+err.Error())
			return
		}

		u, err := a.resolver.FindInternalByFirebaseUID(r.Context(), verified.UID)
		if err != nil {
			a.recorder.RecordAuthentication(metrics.AuthOutcomeError)
			slog.Error("failed to resolve user for token",
				slog.String("firebase_uid", verified.UID),
				slog.String("error", err.Error()),
			)
			WriteInternalServerError(w)
			return
		}
		if u == nil {
			a.recorder.RecordAuthentication(metrics.AuthOutcomeUnregistered)
			WriteError(w, http.StatusForbidden, msgNotRegistered)
			return
		}

		sess := a.resolver.NewSession(u, verified)
		a.recorder.RecordAuthentication(metrics.AuthOutcomeSuccess)

		if err := a.resolver.UpdateLastLogin(r.Context(), u.ID); err != nil {
			slog.Warn("failed to update last login",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
		}

		annotateSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}

func (a *Authenticator) isPublic(path string) bool {
	for _, p := range a.publicPaths {
		p = strings.TrimSuffix(p, "/")
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthentication(string)      {}
func (nopRecorder) RecordAuthorizationDenied(string) {}
