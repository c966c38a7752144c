package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/usergate/internal/middleware"
	"github.com/hitoshi/usergate/internal/model"
	"github.com/hitoshi/usergate/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Authenticator     *middleware.Authenticator
	Authorizer        *middleware.Authorizer

	// 認証
	TokenVerifier middleware.TokenVerifier
	HealthChecker repository.Pinger

	// ユーザー
	UserService UserServiceInterface

	// /metrics。nilの場合は公開しない
	MetricsHandler http.Handler
}

// usersClassRoles は /api/users 配下の全ルートに共通する要求ロール。
// 現状はメソッド単位の宣言のみで、クラス単位の要求は無い。
var usersClassRoles []model.Role

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → SecurityHeaders → CORS → Authenticator
//	  → [/api] RateLimit(General, セッションがあればユーザー単位、無ければIP単位)
//	  → Authorizer(ルート単位)
//
// 認証ゲートは全リクエストに掛かり、公開するパスはAuthenticatorの許可リストだけで決まる。
// 許可リストに無い未知のパスは404ではなく401になる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(deps.Authenticator.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.UserService, deps.TokenVerifier, deps.HealthChecker)
	userHandler := NewUserHandler(deps.UserService)

	// ルート単位の要求ロール。クラス単位とメソッド単位の和集合を要求する
	require := func(method ...model.Role) func(http.Handler) http.Handler {
		return deps.Authorizer.Require(middleware.RoleRequirement{
			Class:  usersClassRoles,
			Method: method,
		})
	}

	general := deps.RateLimiter.GeneralMiddleware()

	r.Route("/api", func(r chi.Router) {
		r.Use(general)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/health", authHandler.Health)
			r.Get("/check/{uid}", authHandler.CheckUser)
			r.With(deps.RateLimiter.RegistrationMiddleware()).Post("/register", authHandler.Register)
			r.Post("/verify-token", authHandler.VerifyToken)
			r.Get("/me", authHandler.Me)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(require(model.RoleAdmin)).Get("/", userHandler.List)
			r.With(require(model.RoleAdmin)).Post("/", userHandler.Create)
			r.With(require(model.RoleAdmin)).Get("/firebase/{uid}", userHandler.GetByFirebaseUID)

			r.Route("/{id}", func(r chi.Router) {
				r.With(require()).Get("/", userHandler.Get)
				r.With(require()).Put("/", userHandler.Update)
				r.With(require(model.RoleAdmin)).Delete("/", userHandler.Delete)

				r.With(require(model.RoleAdmin)).Put("/roles", userHandler.AddRole)
				r.With(require(model.RoleAdmin)).Delete("/roles/{role}", userHandler.RemoveRole)
				r.With(require(model.RoleAdmin)).Put("/email-verified", userHandler.SetEmailVerified)
			})
		})
	})

	return r
}
