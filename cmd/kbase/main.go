// Package main is the kbase CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kbase/internal/cli"
	"github.com/hyperjump/kbase/internal/config"
	"github.com/hyperjump/kbase/internal/models"
	"github.com/hyperjump/kbase/internal/server"
	"github.com/hyperjump/kbase/internal/storage"
	"github.com/hyperjump/kbase/internal/watcher"
	"github.com/hyperjump/kbase/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kbase/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory is preferred if it exists. A missing default config is not an
// error: built-in defaults and the environment are used instead.
// Returns the config and the path it came from (empty when defaults were used).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if cwd, err := os.Getwd(); err == nil {
				if err := config.LoadEnvFiles(cwd); err != nil {
					return nil, "", err
				}
			}
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// argsReorder moves flags that follow positional arguments to the front so that
// flag.Parse sees them; the flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinQuestion joins positional args so quoted and unquoted questions behave alike.
func joinQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "documents":
		runDocuments()
	case "stats":
		runStats()
	case "health":
		runHealth()
	case "version", "--version", "-v":
		fmt.Printf("kbase version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config, builds the logger and initializes components for direct
// (serverless) commands.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("vector_backend", cfg.Vector.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchSvc := watcher.NewWatcher(
		components.Indexer,
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
		watcher.WithLogger(logger),
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(components.Service, cfg, logger, server.WithWatch(watchSvc, resolvedConfigPath))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kbase ingest [flags] <file>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	failed := 0
	for _, path := range fs.Args() {
		stat, err := components.Indexer.IngestFile(context.Background(), path, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("Ingested %s (%d characters, %d chunks)\n", stat.Filename, stat.TextLength, stat.ChunkCount)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode only)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = query the index directly)")
	k := fs.Int("k", 0, "number of chunks to retrieve (0 = configured default)")
	stream := fs.Bool("stream", false, "print the answer as it is generated")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kbase ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := joinQuestion(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	if *stream && format == cli.OutputJSON {
		fatalf("--stream cannot be combined with --output json")
	}

	if *serverURL != "" {
		if *stream {
			if err := askStreamViaHTTP(*serverURL, question, *k, printStreamEvent()); err != nil {
				fatalf("Ask failed: %v", err)
			}
			return
		}
		answer, err := askViaHTTP(*serverURL, question, *k)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
		if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if *stream {
		sources, events, err := components.Service.QueryStream(ctx, question, *k)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
		onEvent := printStreamEvent()
		_ = onEvent(sseEvent{Type: "sources", Sources: sources})
		for ev := range events {
			if err := onEvent(sseEvent{Type: string(ev.Type), Content: ev.Content}); err != nil {
				fatalf("Ask failed: %v", err)
			}
		}
		return
	}
	answer, err := components.Service.Query(ctx, question, *k)
	if err != nil {
		fatalf("Ask failed: %v", err)
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// printStreamEvent returns a handler that prints deltas as they arrive and the
// sources once the stream is done.
func printStreamEvent() func(sseEvent) error {
	var sources []string
	return func(ev sseEvent) error {
		switch ev.Type {
		case "sources":
			sources = ev.Sources
		case string(models.EventContent):
			fmt.Print(ev.Content)
		case string(models.EventDone):
			fmt.Println()
			cli.WriteSources(os.Stdout, sources)
		case string(models.EventError):
			fmt.Println()
			return errors.New(ev.Content)
		}
		return nil
	}
}

func runDocuments() {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode only)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var docs []models.DocumentStat
	if *serverURL != "" {
		var resp struct {
			Documents []models.DocumentStat `json:"documents"`
		}
		if err := getJSON(*serverURL, "/documents", &resp); err != nil {
			fatalf("Documents failed: %v", err)
		}
		docs = resp.Documents
	} else {
		_, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		if docs, err = components.Indexer.Documents(context.Background()); err != nil {
			fatalf("Documents failed: %v", err)
		}
	}
	if err := cli.WriteDocuments(os.Stdout, docs, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode only)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var stats models.SystemStats
	if *serverURL != "" {
		if err := getJSON(*serverURL, "/stats", &stats); err != nil {
			fatalf("Stats failed: %v", err)
		}
	} else {
		cfg, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		if stats, err = directStats(context.Background(), cfg, components); err != nil {
			fatalf("Stats failed: %v", err)
		}
	}
	if err := cli.WriteStats(os.Stdout, &stats, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func directStats(ctx context.Context, cfg *config.Config, c *Components) (models.SystemStats, error) {
	processing, err := c.Indexer.ProcessingStats(ctx)
	if err != nil {
		return models.SystemStats{}, err
	}
	collection, err := c.Indexer.CollectionStats(ctx)
	if err != nil {
		return models.SystemStats{}, err
	}
	stats := models.SystemStats{
		Processing:      processing,
		Collection:      collection,
		SupportedUpload: cfg.Upload.Extensions,
	}
	if cfg.Vector.Backend != "memory" {
		stats.IndexPath = cfg.Storage.IndexPath
		if n, err := storage.IndexDiskUsage(stats.IndexPath); err == nil {
			stats.IndexDiskUsage = n
		}
	}
	return stats, nil
}

func runHealth() {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var h models.Health
	healthErr := getJSON(*serverURL, "/health", &h)
	if healthErr != nil && h.Status == "" {
		h.Status = "unreachable"
	}
	if err := cli.WriteHealth(os.Stdout, &h, format); err != nil {
		fatalf("Output failed: %v", err)
	}
	if healthErr != nil || !h.Healthy() {
		if healthErr != nil {
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", healthErr)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`kbase - question answering over your documents

Usage:
  kbase <command> [flags]

Commands:
  server      Start the HTTP API and directory watcher
  ingest      Add files to the knowledge base
  ask         Ask a question
  documents   List ingested documents
  stats       Show processing and index statistics
  health      Check a running server
  version     Print version
  help        Show this help

Examples:
  kbase server --config ./config.yaml
  kbase ingest ./handbook.pdf ./notes.md
  kbase ask what is the refund policy --k 3
  kbase ask --stream "how do I reset my password"
  kbase ask --server "" what are cats

Run 'kbase <command> -h' for command flags.`)
}
