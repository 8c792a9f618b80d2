// Command vigia runs the country risk signal pipeline.
//
// Usage:
//
//	vigia -config vigia.yaml              # daemon: pipeline + HTTP API
//	vigia -db vigia.db -once              # run one cycle and exit
//	vigia -db vigia.db -ingest raw.json   # load raw records and exit
//	vigia -db vigia.db -summary           # print latest summary and exit
//	vigia -db vigia.db -rebuild 2025-06-01:2025-06-10
//	vigia -db vigia.db -stats             # print store counters and exit
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigialab/vigia/dbopen"
	"github.com/vigialab/vigia/observability"
	"github.com/vigialab/vigia/riskpipe"
)

func main() {
	configPath := flag.String("config", "", "path to vigia.yaml config file")
	dbPath := flag.String("db", "", "path to SQLite database")
	once := flag.Bool("once", false, "run one pipeline cycle and exit")
	ingestPath := flag.String("ingest", "", "JSON file of raw records to load, then exit")
	showSummary := flag.Bool("summary", false, "print the latest daily summary and exit")
	showStats := flag.Bool("stats", false, "print store counters and exit")
	rebuild := flag.String("rebuild", "", "recompute summaries for FROM:TO date range, then exit")
	noAPI := flag.Bool("no-api", false, "daemon mode without the HTTP API")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		once:        *once,
		ingestPath:  *ingestPath,
		showSummary: *showSummary,
		showStats:   *showStats,
		rebuild:     *rebuild,
		noAPI:       *noAPI,
	}
	if err := run(ctx, logger, *configPath, *dbPath, opts); err != nil {
		logger.Error("vigia: fatal", "error", err)
		os.Exit(1)
	}
}

type options struct {
	once        bool
	ingestPath  string
	showSummary bool
	showStats   bool
	rebuild     string
	noAPI       bool
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath string, opts options) error {
	cfg, err := resolveConfig(configPath, dbPath)
	if err != nil {
		return err
	}

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := observability.Init(db); err != nil {
		return fmt.Errorf("observability schema: %w", err)
	}
	metrics := observability.NewMetricsManager(db, 256, 30*time.Second)
	defer metrics.Close()

	svc, err := riskpipe.New(db, cfg, logger, riskpipe.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	// One-shot: load raw records from a JSON file.
	if opts.ingestPath != "" {
		n, err := ingestFile(ctx, svc, opts.ingestPath)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		logger.Info("vigia: ingested", "records", n, "file", opts.ingestPath)
		return nil
	}

	// One-shot: latest summary.
	if opts.showSummary {
		summary, err := svc.CurrentRisk(ctx)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		if summary == nil {
			fmt.Fprintln(os.Stderr, "no risk data yet")
			return nil
		}
		return printJSON(summary)
	}

	// One-shot: store counters.
	if opts.showStats {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		return printJSON(stats)
	}

	// One-shot: rebuild a date range.
	if opts.rebuild != "" {
		from, to, ok := strings.Cut(opts.rebuild, ":")
		if !ok {
			return fmt.Errorf("rebuild: want FROM:TO, got %q", opts.rebuild)
		}
		return svc.Rebuild(ctx, from, to)
	}

	// One-shot: single cycle.
	if opts.once {
		res, err := svc.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("cycle: %w", err)
		}
		return printJSON(res)
	}

	// Daemon mode.
	svc.Start(ctx)
	heartbeat := observability.NewHeartbeatWriter(db, "vigia-pipeline", time.Minute)
	go heartbeat.Run(ctx)

	var apiServer *http.Server
	if !opts.noAPI {
		apiServer = &http.Server{
			Addr:              cfg.API.Addr,
			Handler:           svc.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("vigia: api listening", "addr", cfg.API.Addr)
			if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("vigia: api server", "error", err)
			}
		}()
	}
	logger.Info("vigia: running", "db", cfg.DBPath, "interval", cfg.Pipeline.Interval)

	<-ctx.Done()
	logger.Info("vigia: shutting down")
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		apiServer.Shutdown(shutdownCtx)
	}
	return nil
}

// rawLine is one record in an -ingest file: a JSON array of these.
type rawLine struct {
	Source        string          `json:"source"`
	SourceEventID string          `json:"source_event_id"`
	Payload       json.RawMessage `json:"payload"`
}

func ingestFile(ctx context.Context, svc *riskpipe.Service, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var lines []rawLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, line := range lines {
		if err := svc.IngestRaw(ctx, line.Source, line.SourceEventID, line.Payload); err != nil {
			return i, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return len(lines), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resolveConfig(configPath, dbPath string) (*riskpipe.Config, error) {
	if configPath != "" {
		return riskpipe.LoadConfigFile(configPath)
	}

	cfg := &riskpipe.Config{}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if cfg.DBPath == "" {
		fmt.Fprintln(os.Stderr, "usage: vigia -config <file> | -db <path> [-once] [-ingest <file>] [-summary] [-stats] [-rebuild FROM:TO]")
		os.Exit(1)
	}
	return cfg, nil
}
