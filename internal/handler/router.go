package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tasklive/internal/metrics"
	"github.com/hitoshi/tasklive/internal/middleware"
)

// HTTPStatusRecorder はレスポンスのステータスコードを記録するメトリクス。
type HTTPStatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用
	HealthChecker  HealthChecker
	StatusRecorder HTTPStatusRecorder
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// タスク
	TaskService TaskServiceInterface

	// ライブ配信
	LivePath        string
	LiveHandler     http.Handler
	LiveRequireAuth bool
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → StatusMetrics → Logging → SecurityHeaders → CORS
//
// 認証が必要なルートには Session → RateLimit(General) を追加で適用する。
// 登録・ログインはクライアントIP単位のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.StatusRecorder != nil {
		r.Use(metrics.StatusMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	session := middleware.NewSessionMiddleware(deps.Authenticator)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	taskHandler := NewTaskHandler(deps.TaskService)

	// --- 認証不要のルート ---

	r.Get("/health", Health(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.LoginMiddleware())
			r.Post("/", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})
		r.Post("/logout", authHandler.Logout)

		r.With(session).Get("/me", authHandler.Me)
	})

	if deps.LiveHandler != nil {
		livePath := deps.LivePath
		if livePath == "" {
			livePath = "/websocket"
		}
		live := deps.LiveHandler
		if deps.LiveRequireAuth {
			live = session(live)
		}
		r.Method(http.MethodGet, livePath, live)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/v1/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.Patch("/", taskHandler.UpdateTask)
				r.Delete("/", taskHandler.DeleteTask)
			})
		})
	})

	return r
}
