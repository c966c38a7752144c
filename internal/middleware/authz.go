package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/usergate/internal/metrics"
	"github.com/hitoshi/usergate/internal/model"
)

const (
	msgUserNotFound      = "User not found"
	msgInsufficientRoles = "User does not have the required permissions"
)

// RoleRequirement はルートに要求するロール。
// Classはルートグループ単位、Methodは個々のルート単位の宣言で、両者の和集合が要求される。
type RoleRequirement struct {
	Class  []model.Role
	Method []model.Role
}

// Roles はClassとMethodの和集合を返す。
func (r RoleRequirement) Roles() model.RoleSet {
	return model.NewRoleSet(r.Class...).Union(model.NewRoleSet(r.Method...))
}

// UserLookup は外部IdPのサブジェクトIDでユーザーを再取得するインターフェース。
type UserLookup interface {
	FindByFirebaseUID(ctx context.Context, uid string) (*model.UserDTO, error)
}

// AuthzRecorder は認可ゲートの拒否を記録するインターフェース。
type AuthzRecorder interface {
	RecordAuthorizationDenied(reason string)
}

// Authorizer はSessionのユーザーが要求ロールのいずれかを持つかを判定する認可ゲート。
type Authorizer struct {
	users    UserLookup
	recorder AuthzRecorder
}

// NewAuthorizer はAuthorizerを生成する。
func NewAuthorizer(users UserLookup, recorder AuthzRecorder) *Authorizer {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Authorizer{users: users, recorder: recorder}
}

// Require は指定ロールを要求するミドルウェアを返す。
// 要求ロールの和集合はルート登録時に1回だけ計算する。
// ロールは判定のたびにストアから再取得するため、リクエスト途中のロール変更も反映される。
func (a *Authorizer) Require(req RoleRequirement) func(next http.Handler) http.Handler {
	required := req.Roles()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil || len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			u, err := a.users.FindByFirebaseUID(r.Context(), sess.FirebaseUID)
			if err != nil {
				slog.Error("failed to load user for authorization",
					slog.String("firebase_uid", sess.FirebaseUID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if u == nil {
				a.recorder.RecordAuthorizationDenied(metrics.DenyReasonUserNotFound)
				WriteError(w, http.StatusForbidden, msgUserNotFound)
				return
			}

			if !model.NewRoleSet(u.Roles...).Intersects(required) {
				a.recorder.RecordAuthorizationDenied(metrics.DenyReasonInsufficientRoles)
				slog.Info("authorization denied",
					slog.String("user_id", u.ID),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteError(w, http.StatusForbidden, msgInsufficientRoles)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
