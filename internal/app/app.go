// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brunosj/thfradio/internal/cache"
	"github.com/brunosj/thfradio/internal/calendar"
	"github.com/brunosj/thfradio/internal/config"
	"github.com/brunosj/thfradio/internal/database"
	"github.com/brunosj/thfradio/internal/handler"
	"github.com/brunosj/thfradio/internal/logger"
	"github.com/brunosj/thfradio/internal/metrics"
	"github.com/brunosj/thfradio/internal/middleware"
	"github.com/brunosj/thfradio/internal/mixcloud"
	"github.com/brunosj/thfradio/internal/model"
	"github.com/brunosj/thfradio/internal/pace"
	"github.com/brunosj/thfradio/internal/repository"
	"github.com/brunosj/thfradio/internal/security"
	"github.com/brunosj/thfradio/internal/shows"
	"github.com/brunosj/thfradio/internal/soundcloud"
	"github.com/brunosj/thfradio/internal/tags"
	"github.com/brunosj/thfradio/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// services はserveとworkerの両モードで共有するドメインサービス一式。
type services struct {
	aggregator *shows.Aggregator
	calendar   *calendar.Service
	tags       *tags.Source
}

// buildServices は設定から全ドメインサービスをワイヤリングする。
// dbがnilの場合はスナップショット永続化とトークン永続化を無効化する。
func buildServices(cfg *config.Config, db *sql.DB, collector *metrics.Collector) (*services, error) {
	// 1. アウトバウンドURLの静的検証
	ssrfGuard := security.NewSSRFGuard()
	for _, u := range []string{cfg.MixcloudAPI, cfg.CalendarICSURL} {
		if err := ssrfGuard.ValidateURL(u); err != nil {
			return nil, fmt.Errorf("invalid upstream URL %q: %w", u, err)
		}
	}
	if cfg.TagListURL != "" {
		if err := ssrfGuard.ValidateURL(cfg.TagListURL); err != nil {
			return nil, fmt.Errorf("invalid upstream URL %q: %w", cfg.TagListURL, err)
		}
	}

	// 2. SSRF防止付きHTTPクライアントとサニタイザ
	httpClient := ssrfGuard.NewSafeClient(cfg.FetchTimeout)
	sanitizer := security.NewContentSanitizer()

	// 3. スナップショット・トークンの永続化層（DBがある場合のみ）
	var (
		showOpts     = []cache.Option[[]model.Show]{cache.WithMetrics[[]model.Show](collector)}
		calendarOpts = []cache.Option[[]model.ScheduleEntry]{cache.WithMetrics[[]model.ScheduleEntry](collector)}
		tokenStore   soundcloud.TokenStore
	)
	if db != nil {
		snapRepo := repository.NewPostgresSnapshotRepo(db)
		showOpts = append(showOpts, cache.WithFallback[[]model.Show](
			repository.NewSnapshotStore[[]model.Show](snapRepo, repository.SnapshotKindShows),
		))
		calendarOpts = append(calendarOpts, cache.WithFallback[[]model.ScheduleEntry](
			repository.NewSnapshotStore[[]model.ScheduleEntry](snapRepo, repository.SnapshotKindCalendar),
		))
		tokenStore = repository.NewPostgresTokenRepo(db, "soundcloud")
	}

	// 4. キャッシュ層
	showCache := cache.New[[]model.Show](
		"shows", cfg.ShowCacheTTL, cfg.StaleExtension, slog.Default(), showOpts...,
	)
	calendarCache := cache.New[[]model.ScheduleEntry](
		"calendar", cfg.CalendarCacheTTL, cfg.StaleExtension, slog.Default(), calendarOpts...,
	)

	// 5. アップストリームクライアント（ホストごとにPacerを分ける）
	mixcloudClient := mixcloud.NewClient(
		httpClient, pace.NewPacer(cfg.UpstreamMinDelay), slog.Default(),
		mixcloud.WithEndpoint(cfg.MixcloudAPI),
		mixcloud.WithPageLimits(cfg.MixcloudPageSize, cfg.MixcloudMaxItems),
		mixcloud.WithSkipRecorder(collector),
	)

	soundcloudPacer := pace.NewPacer(cfg.UpstreamMinDelay)
	creds := soundcloud.NewCredentialManager(httpClient, soundcloudPacer, slog.Default(),
		soundcloud.CredentialConfig{
			ClientID:       cfg.SoundcloudClientID,
			ClientSecret:   cfg.SoundcloudClientSecret,
			StaleExtension: cfg.StaleExtension,
			Store:          tokenStore,
		},
	)
	soundcloudClient := soundcloud.NewClient(
		httpClient, creds, soundcloudPacer, slog.Default(), cfg.SoundcloudUserID, "",
		soundcloud.WithSkipRecorder(collector),
	)

	calendarClient := calendar.NewClient(
		httpClient, pace.NewPacer(cfg.UpstreamMinDelay), sanitizer, slog.Default(),
		cfg.CalendarICSURL, cfg.CalendarWindowWeeks,
	)

	// 6. ドメインサービス
	return &services{
		aggregator: shows.NewAggregator(
			mixcloudClient, soundcloudClient, showCache, slog.Default(),
			shows.WithMetrics(collector),
		),
		calendar: calendar.NewService(
			calendarClient, calendarCache, slog.Default(),
			calendar.WithFetchMetrics(collector),
		),
		tags: tags.NewSource(httpClient, slog.Default(), cfg.TagListURL),
	}, nil
}

// openDatabase は設定にDATABASE_URLがある場合のみDB接続を開く。
// 未設定の場合はnilを返し、永続化なしで動作する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		slog.Info("DATABASE_URL is not set, snapshot persistence is disabled")
		return nil, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// startMetricsServer はPrometheusスクレイプ用のサーバーを別ポートで起動する。
func startMetricsServer(gatherer prometheus.Gatherer, port string) *http.Server {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: metrics.SetupMetricsRoute(gatherer),
	}

	go func() {
		slog.Info("metrics server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	return server
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続（任意）
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// 2. メトリクスレジストリ
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービスのワイヤリング
	svcs, err := buildServices(cfg, db, collector)
	if err != nil {
		return err
	}

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		Catalog:  svcs.aggregator,
		Genres:   svcs.tags,
		Schedule: svcs.calendar,
		TagList:  svcs.tags,

		Busters: []handler.NamedBuster{
			{Name: "shows", Buster: svcs.aggregator},
			{Name: "calendar", Buster: svcs.calendar},
			{Name: "tags", Buster: svcs.tags},
		},
		CacheBustToken: cfg.CacheBustToken,
	})

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsServer := startMetricsServer(registry, cfg.MetricsPort)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// キャッシュのバックグラウンドリフレッシュスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続（任意）
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// 2. メトリクスレジストリ
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービスのワイヤリング
	svcs, err := buildServices(cfg, db, collector)
	if err != nil {
		return err
	}

	// 4. リフレッシュ対象の登録
	targets := []refresh.Target{
		{Name: "shows", Refresh: func(ctx context.Context) error {
			_, err := svcs.aggregator.GetAllShows(ctx)
			return err
		}},
		{Name: "calendar", Refresh: func(ctx context.Context) error {
			_, err := svcs.calendar.GetSchedule(ctx)
			return err
		}},
	}
	if cfg.TagListURL != "" {
		targets = append(targets, refresh.Target{
			Name: "tags",
			Refresh: func(ctx context.Context) error {
				_, err := svcs.tags.List(ctx)
				return err
			},
		})
	}

	scheduler := refresh.NewScheduler(slog.Default(), targets...)

	metricsServer := startMetricsServer(registry, cfg.MetricsPort)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Int("target_count", len(targets)),
	)

	// リフレッシュスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RefreshInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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
