package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"finmentor/internal/cache"
	"finmentor/internal/chart"
	"finmentor/internal/config"
	"finmentor/internal/db"
	"finmentor/internal/engine"
	mcpserver "finmentor/internal/mcp"
	"finmentor/internal/provider"
	"finmentor/internal/repository"
	"finmentor/internal/service"
	"finmentor/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB

var (
	loadEnvFunc           = godotenv.Load
	loadConfigFunc        = config.Load
	initPostgresFunc      = db.InitPostgres
	initRedisFunc         = cache.InitRedis
	initTracerFunc        = tracing.InitTracer
	newEvaluationRepoFunc = repository.NewEvaluationRepository
	loadEngineConfigFunc  = engine.LoadConfig
	loadRegistryFunc      = func(path string) (*engine.Registry, error) {
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
	newMCPServerFunc         = mcpserver.NewServer
	newMCPHandlerFunc        = mcpserver.NewHTTPTransportHandler
	runStdioFunc             = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
)

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
	var store service.ReportStore
	if db.Pool != nil {
		store = evalRepo
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

	mcpSrv := newMCPServerFunc(tracer, evalService, evalService, registry, engineCfg, mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
	})

	transport := strings.ToLower(strings.TrimSpace(cfg.MCPTransport))
	switch transport {
	case "", "stdio":
		if err := runStdioFunc(ctx, mcpSrv); err != nil {
			log.Fatalf("mcp stdio server failed: %v", err)
		}
	case "http":
		if err := runHTTPMode(ctx, cancel, cfg, mcpSrv); err != nil {
			log.Fatalf("mcp http server failed: %v", err)
		}
	default:
		log.Fatalf("unsupported MCP_TRANSPORT: %s", cfg.MCPTransport)
	}
}

func runHTTPMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server) error {
	if !cfg.MCPHTTPEnabled {
		return fmt.Errorf("MCP_HTTP_ENABLED must be true when MCP_TRANSPORT=http")
	}
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return fmt.Errorf("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}

	handler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Printf("mcp http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}
