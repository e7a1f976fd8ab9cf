package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"finmentor/internal/bot"
	"finmentor/internal/cache"
	"finmentor/internal/chart"
	"finmentor/internal/config"
	"finmentor/internal/db"
	"finmentor/internal/engine"
	"finmentor/internal/handler"
	"finmentor/internal/job"
	"finmentor/internal/provider"
	"finmentor/internal/repository"
	"finmentor/internal/service"
	"finmentor/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "finmentor/docs"
)

var (
	loadEnvFunc             = godotenv.Load
	loadConfigFunc          = config.Load
	initPostgresFunc        = db.InitPostgres
	initRedisFunc           = cache.InitRedis
	initTracerFunc          = tracing.InitTracer
	newEvaluationRepoFunc   = repository.NewEvaluationRepository
	newConversationRepoFunc = repository.NewConversationRepository
	loadEngineConfigFunc    = engine.LoadConfig
	loadRegistryFunc        = func(path string) (*engine.Registry, error) {
		if path == "" {
			return engine.DefaultRegistry()
		}
		return engine.LoadRegistry(path)
	}
	newEngineFunc            = engine.New
	newReportCacheFunc       = cache.NewReportCache
	newChartRendererFunc     = chart.NewRenderer
	newSnapshotProviderFunc  = provider.NewSnapshotProvider
	newEvaluationServiceFunc = service.NewEvaluationService
	newOpenAICompleterFunc   = service.NewOpenAICompleter
	newAdvisorServiceFunc    = service.NewAdvisorService
	startTelegramBotFunc     = bot.StartTelegramBot
	newAlertHubFunc          = handler.NewAlertHub
	newRetentionJobFunc      = job.NewReportRetention
	startRetentionJobFunc    = func(j *job.ReportRetention, ctx context.Context) { go j.Start(ctx) }
	newAlertWatcherFunc      = job.NewAlertWatcher
	startAlertWatcherFunc    = func(w *job.AlertWatcher, ctx context.Context) { go w.Start(ctx) }
	newHandlerFunc           = handler.New
	newRouterFunc            = gin.Default
	setupSignalNotify        = ossignal.Notify
	waitForSignalFunc        = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc      = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc   = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Finmentor API
// @version         1.0
// @description     Deterministic financial risk evaluation with OpenTelemetry tracing.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repositories and run migrations. Without a database the server
	// still evaluates; it just cannot store or list reports.
	evalRepo := newEvaluationRepoFunc(db.Pool, tracer)
	convRepo := newConversationRepoFunc(db.Pool, tracer)
	var store service.ReportStore
	var conversations service.ConversationStore
	var pruner job.ReportPruner
	if db.Pool != nil {
		if err := evalRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run evaluation migrations: %v", err)
		}
		if err := convRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run conversation migrations: %v", err)
		}
		store = evalRepo
		conversations = convRepo
		pruner = evalRepo
	}

	// Load the rule registry and engine tuning, falling back to the
	// embedded defaults when no override files are configured.
	engineCfg, err := loadEngineConfigFunc(cfg.EngineConfigPath)
	if err != nil {
		log.Fatalf("failed to load engine config: %v", err)
	}
	registry, err := loadRegistryFunc(cfg.RegistryPath)
	if err != nil {
		log.Fatalf("failed to load rule registry: %v", err)
	}
	ruleEngine := newEngineFunc(engineCfg, registry)

	// Create services
	reportCache := newReportCacheFunc(cache.Client, cfg.ReportCacheTTLSecs)
	chartRenderer := newChartRendererFunc()
	snapshots := newSnapshotProviderFunc(tracer)
	evalService := newEvaluationServiceFunc(tracer, ruleEngine, store, reportCache, chartRenderer, snapshots)

	completer := newOpenAICompleterFunc(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	advisorService := newAdvisorServiceFunc(tracer, completer, conversations, evalService, cfg.AdvisorMaxHistory)

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	dispatcher := startTelegramBotFunc(evalService, advisorService)

	alertHub := newAlertHubFunc()

	// Background jobs (stopped by ctx cancel). The alert watcher is the
	// single alert source here so batch writers get picked up too.
	retention := newRetentionJobFunc(tracer, pruner, cfg.RetentionDays)
	startRetentionJobFunc(retention, ctx)

	watcherSinks := []job.AlertSink{alertHub}
	if dispatcher != nil {
		watcherSinks = append(watcherSinks, dispatcher)
	}
	watcher := newAlertWatcherFunc(tracer, evalService, time.Duration(cfg.AlertPollSecs)*time.Second, watcherSinks...)
	startAlertWatcherFunc(watcher, ctx)

	// Create handlers and routes
	h := newHandlerFunc(tracer, evalService, advisorService, registry, alertHub)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("finmentor"))
	r.Use(cors.Default())

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    httpAddrFromEnv(cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

// httpAddrFromEnv prefers the PORT variable set by most deploy platforms and
// falls back to the configured port.
func httpAddrFromEnv(defaultPort int) string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return fmt.Sprintf(":%d", defaultPort)
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
