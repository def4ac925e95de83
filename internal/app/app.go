package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/tasklive/internal/auth"
	"github.com/hitoshi/tasklive/internal/config"
	"github.com/hitoshi/tasklive/internal/database"
	"github.com/hitoshi/tasklive/internal/handler"
	"github.com/hitoshi/tasklive/internal/live"
	"github.com/hitoshi/tasklive/internal/logger"
	"github.com/hitoshi/tasklive/internal/metrics"
	"github.com/hitoshi/tasklive/internal/middleware"
	"github.com/hitoshi/tasklive/internal/repository"
	"github.com/hitoshi/tasklive/internal/security"
	"github.com/hitoshi/tasklive/internal/task"
)

// shutdownTimeout はグレースフルシャットダウンの上限時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、フラグで上書きした上でJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer, opts Options) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. フラグ指定があれば環境変数より優先する
	if opts.Port != "" {
		cfg.ServerPort = opts.Port
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	opts, err := ParseArgs(args, w)
	if err != nil {
		return err
	}
	if opts.Help {
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if opts.Command == CommandHealthcheck {
		port := opts.Port
		if port == "" {
			port = os.Getenv("SERVER_PORT")
		}
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w, opts)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(opts.Command)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch opts.Command {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// server はHTTPサーバーと、シャットダウン時に後始末が必要な依存をまとめたもの。
type server struct {
	http     *http.Server
	registry *live.Registry
	limiter  *middleware.RateLimiter
}

// newServer は全依存関係をワイヤリングし、起動前のサーバーを返す。
// 署名シークレットが無い場合はauth.ErrMissingSecretを返す。
func newServer(cfg *config.Config, db *sql.DB) (*server, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)

	// 2. メトリクスの初期化
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. セキュリティ・認証の初期化
	sanitizer := security.NewTextSanitizer()
	codec, err := auth.NewTokenCodec([]byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}
	gate := auth.NewGate(codec, userRepo, collector)

	// 4. ライブ配信の初期化
	registry := live.NewRegistry(collector)
	broadcaster := live.NewBroadcaster(registry, taskRepo, collector, cfg.LiveWriteTimeout)
	gateway := live.NewGateway(registry, middleware.AllowedOrigins(cfg.CORSAllowedOrigin))

	// 5. ドメインサービスの初期化
	taskService := task.NewService(taskRepo, broadcaster, sanitizer, collector)
	authService := auth.NewService(userRepo, codec, broadcaster, sanitizer, auth.ServiceConfig{
		BcryptCost: cfg.BcryptCost,
	})

	// 6. ルーターの構築
	// configのレート制限はreq/min単位。RateLimiterConfig内でreq/secに変換する
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     gate,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Logger:            slog.Default(),

		HealthChecker:  db,
		StatusRecorder: collector,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
			TokenTTL:     codec.TTL(),
		},

		TaskService: taskService,

		LivePath:        cfg.LivePath,
		LiveHandler:     gateway,
		LiveRequireAuth: cfg.LiveRequireAuth,
	})

	return &server{
		http: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		registry: registry,
		limiter:  limiter,
	}, nil
}

// shutdown は新規リクエストの受付を止め、残っているライブ接続を閉じる。
func (s *server) shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)

	// ハイジャック済みのWebSocket接続はShutdownの対象外のため明示的に閉じる
	closed := s.registry.Drain()
	s.limiter.Stop()

	slog.Info("live connections drained", slog.Int("count", closed))
	return err
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 依存関係のワイヤリング
	srv, err := newServer(cfg, db)
	if err != nil {
		return err
	}

	// 3. HTTPサーバーの起動
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", srv.http.Addr),
			slog.String("live_path", cfg.LivePath),
		)
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			srv.registry.Drain()
			srv.limiter.Stop()
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
