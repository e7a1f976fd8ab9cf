package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"finmentor/internal/cache"
	"finmentor/internal/chart"
	"finmentor/internal/config"
	"finmentor/internal/db"
	"finmentor/internal/engine"
	"finmentor/internal/provider"
	"finmentor/internal/repository"
	"finmentor/internal/service"
	"finmentor/internal/tui"
	"finmentor/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	gossh "golang.org/x/crypto/ssh"
)

type consoleUserKey struct{}

var (
	loadEnvFunc             = godotenv.Load
	loadConfigFunc          = config.Load
	initPostgresFunc        = db.InitPostgres
	initRedisFunc           = cache.InitRedis
	initTracerFunc          = tracing.InitTracer
	newEvaluationRepoFunc   = repository.NewEvaluationRepository
	newConversationRepoFunc = repository.NewConversationRepository
	newConsoleUserRepoFunc  = repository.NewConsoleUserRepository
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
	startSSHServerFunc       = func(srv *ssh.Server) error { return srv.ListenAndServe() }
	shutdownSSHServerFunc    = func(srv *ssh.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify        = ossignal.Notify
	waitForSignalFunc        = func(quit <-chan os.Signal) { <-quit }
)

// consoleAuthorizer is the slice of the console user repository the SSH
// server needs.
type consoleAuthorizer interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (*repository.ConsoleUser, error)
	UpdateLastLogin(ctx context.Context, userID int64) error
}

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	evalRepo := newEvaluationRepoFunc(db.Pool, tracer)
	convRepo := newConversationRepoFunc(db.Pool, tracer)
	consoleRepo := newConsoleUserRepoFunc(db.Pool, tracer)
	var store service.ReportStore
	var conversations service.ConversationStore
	var authorizer consoleAuthorizer
	if db.Pool != nil {
		if err := consoleRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run console user migrations: %v", err)
		}
		store = evalRepo
		conversations = convRepo
		authorizer = consoleRepo
	}

	engineCfg, err := loadEngineConfigFunc(cfg.EngineConfigPath)
	if err != nil {
		log.Fatalf("failed to load engine config: %v", err)
	}
	registry, err := loadRegistryFunc(cfg.RegistryPath)
	if err != nil {
		log.Fatalf("failed to load rule registry: %v", err)
	}
	ruleEngine := newEngineFunc(engineCfg, registry)

	reportCache := newReportCacheFunc(cache.Client, cfg.ReportCacheTTLSecs)
	chartRenderer := newChartRendererFunc()
	snapshots := newSnapshotProviderFunc(tracer)
	evalService := newEvaluationServiceFunc(tracer, ruleEngine, store, reportCache, chartRenderer, snapshots)

	completer := newOpenAICompleterFunc(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	advisorService := newAdvisorServiceFunc(tracer, completer, conversations, evalService, cfg.AdvisorMaxHistory)

	srv, err := wish.NewServer(
		wish.WithAddress(net.JoinHostPort(cfg.SSHBind, fmt.Sprintf("%d", cfg.SSHPort))),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(publicKeyAuth(ctx, authorizer)),
		wish.WithMiddleware(
			bubbletea.Middleware(teaHandler(evalService, advisorService, registry)),
			activeterm.Middleware(),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to build ssh server: %v", err)
	}

	go func() {
		if err := startSSHServerFunc(srv); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Fatalf("ssh listen: %v", err)
		}
	}()
	log.Printf("ssh console listening on %s:%d", cfg.SSHBind, cfg.SSHPort)

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down ssh console...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownSSHServerFunc(srv, shutdownCtx); err != nil {
		log.Printf("ssh server forced to shutdown: %v", err)
	}
}

// publicKeyAuth admits operators whose key fingerprint is registered and
// active. Without a database every key is admitted as a read-only guest.
func publicKeyAuth(ctx context.Context, authorizer consoleAuthorizer) func(ssh.Context, ssh.PublicKey) bool {
	return func(sctx ssh.Context, key ssh.PublicKey) bool {
		if authorizer == nil {
			return true
		}

		fingerprint := gossh.FingerprintSHA256(key)
		user, err := authorizer.FindByFingerprint(ctx, fingerprint)
		if err != nil {
			log.Printf("console auth lookup failed for %s: %v", fingerprint, err)
			return false
		}
		if user == nil {
			log.Printf("rejected unknown console key %s (user %s)", fingerprint, sctx.User())
			return false
		}

		if err := authorizer.UpdateLastLogin(ctx, user.ID); err != nil {
			log.Printf("failed to record console login for %s: %v", user.Username, err)
		}
		sctx.SetValue(consoleUserKey{}, user)
		return true
	}
}

func teaHandler(
	evaluations tui.EvaluationQuerier,
	advisorService tui.AdvisorQuerier,
	rules tui.RuleQuerier,
) func(ssh.Session) (tea.Model, []tea.ProgramOption) {
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		svc := tui.Services{
			Evaluations: evaluations,
			Advisor:     advisorService,
			Rules:       rules,
			Username:    s.User(),
		}
		if user, ok := s.Context().Value(consoleUserKey{}).(*repository.ConsoleUser); ok && user != nil {
			svc.UserID = user.ID
			svc.Username = user.Username
		}
		return tui.NewAppModel(svc), []tea.ProgramOption{tea.WithAltScreen()}
	}
}
