package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"finmentor/internal/domain"
	"finmentor/internal/engine"
	"finmentor/internal/provider"
	"finmentor/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc = godotenv.Load
	openPool    = pgxpool.New
)

type options struct {
	file   string
	dir    string
	demo   bool
	out    string
	pretty bool
	store  bool
}

// snapshotLoader is the slice of the snapshot provider the batch loop needs.
type snapshotLoader interface {
	LoadFile(ctx context.Context, path string) (map[string]any, error)
	DemoSnapshot() (map[string]any, error)
}

type reportStore interface {
	InsertReport(ctx context.Context, report *domain.Report) (*domain.EvaluationSummary, error)
}

type batchResult struct {
	Reports  []*domain.Report
	Stored   int
	Rejected int
}

func main() {
	loadEnvFunc()

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		log.Fatalf("parse options: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	tracer := trace.NewNoopTracerProvider().Tracer("evalbatch")

	engineCfg, err := engine.LoadConfig(strings.TrimSpace(os.Getenv("ENGINE_CONFIG_PATH")))
	if err != nil {
		log.Fatalf("load engine config: %v", err)
	}
	registry, err := loadRegistry(strings.TrimSpace(os.Getenv("RULES_REGISTRY_PATH")))
	if err != nil {
		log.Fatalf("load rule registry: %v", err)
	}
	ruleEngine := engine.New(engineCfg, registry)
	snapshots := provider.NewSnapshotProvider(tracer)

	var store reportStore
	if opts.store {
		dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
		if dsn == "" {
			log.Fatal("DATABASE_URL is required with -store")
		}
		pool, err := openPool(ctx, dsn)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatalf("ping postgres: %v", err)
		}
		repo := repository.NewEvaluationRepository(pool, tracer)
		if err := repo.RunMigrations(ctx); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
		store = repo
	}

	paths, err := resolvePaths(ctx, opts, snapshots)
	if err != nil {
		log.Fatalf("resolve snapshots: %v", err)
	}

	result, err := runBatch(ctx, ruleEngine, snapshots, store, opts, paths)
	if err != nil {
		log.Fatalf("batch failed: %v", err)
	}

	if err := writeReports(opts, result.Reports); err != nil {
		log.Fatalf("write reports: %v", err)
	}

	log.Printf(
		"batch complete: evaluated=%d stored=%d rejected=%d",
		len(result.Reports),
		result.Stored,
		result.Rejected,
	)
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("evalbatch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	file := fs.String("file", "", "evaluate a single snapshot JSON file")
	dir := fs.String("dir", "", "evaluate every .json snapshot directly under a directory")
	demo := fs.Bool("demo", false, "evaluate the embedded demo snapshot")
	out := fs.String("out", "-", "write resulting reports to a file, or - for stdout")
	pretty := fs.Bool("pretty", false, "indent the JSON output")
	store := fs.Bool("store", false, "persist reports to Postgres (requires DATABASE_URL)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		file:   strings.TrimSpace(*file),
		dir:    strings.TrimSpace(*dir),
		demo:   *demo,
		out:    strings.TrimSpace(*out),
		pretty: *pretty,
		store:  *store,
	}

	sources := 0
	if opts.file != "" {
		sources++
	}
	if opts.dir != "" {
		sources++
	}
	if opts.demo {
		sources++
	}
	if sources != 1 {
		return options{}, fmt.Errorf("exactly one of -file, -dir, or -demo is required")
	}
	if opts.out == "" {
		return options{}, fmt.Errorf("out cannot be empty")
	}
	return opts, nil
}

func loadRegistry(path string) (*engine.Registry, error) {
	if path == "" {
		return engine.DefaultRegistry()
	}
	return engine.LoadRegistry(path)
}

func resolvePaths(ctx context.Context, opts options, snapshots *provider.SnapshotProvider) ([]string, error) {
	switch {
	case opts.file != "":
		return []string{opts.file}, nil
	case opts.dir != "":
		paths, err := snapshots.ListDir(ctx, opts.dir)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no .json snapshots under %s", opts.dir)
		}
		return paths, nil
	default:
		return nil, nil
	}
}

// runBatch evaluates each snapshot, persisting when a store is configured.
// Invalid snapshots are counted and skipped; anything else aborts the run.
func runBatch(
	ctx context.Context,
	ruleEngine *engine.Engine,
	snapshots snapshotLoader,
	store reportStore,
	opts options,
	paths []string,
) (batchResult, error) {
	var result batchResult

	payloads := make([]map[string]any, 0, len(paths)+1)
	if opts.demo {
		payload, err := snapshots.DemoSnapshot()
		if err != nil {
			return result, err
		}
		payloads = append(payloads, payload)
	}
	for _, path := range paths {
		payload, err := snapshots.LoadFile(ctx, path)
		if err != nil {
			return result, err
		}
		payloads = append(payloads, payload)
	}

	for _, payload := range payloads {
		report, err := ruleEngine.Evaluate(payload)
		if err != nil {
			if _, ok := domain.AsValidation(err); ok {
				log.Printf("skipping invalid snapshot: %v", err)
				result.Rejected++
				continue
			}
			return result, err
		}
		if store != nil {
			if _, err := store.InsertReport(ctx, report); err != nil {
				return result, fmt.Errorf("store report for %s %s: %w", report.Metadata.UserID, report.Metadata.Month, err)
			}
			result.Stored++
		}
		result.Reports = append(result.Reports, report)
		log.Printf(
			"evaluated %s %s: severity=%s score=%.1f",
			report.Metadata.UserID,
			report.Metadata.Month,
			report.TopSeverity(),
			report.OverallScore(),
		)
	}

	return result, nil
}

func writeReports(opts options, reports []*domain.Report) error {
	var (
		raw []byte
		err error
	)
	if opts.pretty {
		raw, err = json.MarshalIndent(reports, "", "  ")
	} else {
		raw, err = json.Marshal(reports)
	}
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	if opts.out == "-" {
		_, err = os.Stdout.Write(raw)
		return err
	}
	return os.WriteFile(opts.out, raw, 0o644)
}
