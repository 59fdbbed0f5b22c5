// Package main is the ragdoc CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/ragdoc/internal/cli"
	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/metrics"
	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/internal/rag"
	"github.com/hyperjump/ragdoc/internal/server"
	"github.com/hyperjump/ragdoc/internal/watcher"
	"github.com/hyperjump/ragdoc/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultServerURL = "http://localhost:3000"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory is preferred if it exists. When neither exists, the
// built-in defaults and environment are used. Returns the path actually loaded,
// or "" for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == config.DefaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			cfg, err := config.Default()
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
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
	case "clear":
		runClear()
	case "documents":
		runDocuments()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("ragdoc version %s\n", version)
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

// openService loads config and opens the pipeline in-process.
func openService(configPath string, debug bool) (*rag.Service, *config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	svc, err := rag.Open(context.Background(), cfg, logger, nil)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	return svc, cfg, logger
}

func outputFormat(s string) cli.OutputFormat {
	f, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return f
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging and CORS")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	cfg.Debug = cfg.Debug || *debug
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug),
		zap.String("vector_backend", cfg.Vector.Backend),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("generation", cfg.Generation.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := rag.Open(ctx, cfg, logger, metrics.New())
	if err != nil {
		logger.Fatal("failed to initialize pipeline", zap.Error(err))
	}
	defer svc.Close()

	watchSvc := watcher.FromConfig(cfg.Watch, svc, watcher.WithLogger(logger))
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	go watchSvc.SyncExistingFiles()

	srv := server.NewServer(svc, cfg, logger, server.WithWatch(watchSvc, resolvedConfigPath))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Stop(shutdownCtx)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	recursive := fs.Bool("recursive", true, "descend into subdirectories")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: ragdoc ingest [flags] <file-or-directory>...")
		os.Exit(1)
	}
	format := outputFormat(*output)

	svc, cfg, logger := openService(*configPath, false)
	defer svc.Close()
	defer logger.Sync()
	if cfg.Vector.Backend == "memory" {
		fmt.Fprintln(os.Stderr, "warning: the memory vector backend does not persist; ingest through a running server instead")
	}

	ctx := context.Background()
	failed := false
	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		if info.IsDir() {
			n, err := svc.Indexer().IndexDirectory(ctx, path, nil, *recursive)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				failed = true
			}
			fmt.Printf("%s: %d files ingested\n", path, n)
			continue
		}
		res, err := svc.IngestFile(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		if err := cli.WriteIngestResult(os.Stdout, path, res, format); err != nil {
			fatalf("Output failed: %v", err)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = run the pipeline in-process)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: ragdoc ask [flags] <question>")
		os.Exit(1)
	}
	format := outputFormat(*output)

	var ans *models.Answer
	if *serverURL != "" {
		ans = &models.Answer{}
		if err := newAPIClient(*serverURL).do(http.MethodPost, "/ask", models.AskRequest{Question: question}, ans); err != nil {
			fatalf("Ask failed: %v", err)
		}
	} else {
		svc, _, logger := openService(*configPath, false)
		defer svc.Close()
		defer logger.Sync()
		var err error
		if ans, err = svc.Ask(context.Background(), question); err != nil {
			fatalf("Ask failed: %v", err)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, ans, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = clear in-process)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		var out struct {
			Message string `json:"message"`
		}
		if err := newAPIClient(*serverURL).do(http.MethodPost, "/clear", nil, &out); err != nil {
			fatalf("Clear failed: %v", err)
		}
		fmt.Println(out.Message)
		return
	}
	svc, _, logger := openService(*configPath, false)
	defer svc.Close()
	defer logger.Sync()
	if err := svc.Clear(context.Background()); err != nil {
		fatalf("Clear failed: %v", err)
	}
	fmt.Println("Knowledge base cleared successfully")
}

func runDocuments() {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the ledger directly)")
	offset := fs.Int("offset", 0, "skip this many documents")
	limit := fs.Int("limit", 0, "maximum documents to list (0 = all)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := outputFormat(*output)

	var docs []*models.Document
	if *serverURL != "" {
		var out struct {
			Documents []*models.Document `json:"documents"`
		}
		path := fmt.Sprintf("/api/v1/documents?offset=%d&limit=%d", *offset, *limit)
		if err := newAPIClient(*serverURL).do(http.MethodGet, path, nil, &out); err != nil {
			fatalf("List failed: %v", err)
		}
		docs = out.Documents
	} else {
		svc, _, logger := openService(*configPath, false)
		defer svc.Close()
		defer logger.Sync()
		var err error
		if docs, err = svc.Documents(context.Background(), *offset, *limit); err != nil {
			fatalf("List failed: %v", err)
		}
	}
	if err := cli.WriteDocuments(os.Stdout, docs, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = delete in-process)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: ragdoc delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	if *serverURL != "" {
		if err := newAPIClient(*serverURL).do(http.MethodDelete, "/api/v1/documents/"+url.PathEscape(docID), nil, nil); err != nil {
			fatalf("Delete failed: %v", err)
		}
	} else {
		svc, _, logger := openService(*configPath, false)
		defer svc.Close()
		defer logger.Sync()
		if err := svc.DeleteDocument(context.Background(), docID); err != nil {
			fatalf("Delete failed: %v", err)
		}
	}
	fmt.Printf("Deleted: %s\n", docID)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the pipeline in-process)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := outputFormat(*output)

	st := &rag.Status{}
	if *serverURL != "" {
		if err := newAPIClient(*serverURL).do(http.MethodGet, "/api/v1/status", nil, st); err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		svc, _, logger := openService(*configPath, false)
		defer svc.Close()
		defer logger.Sync()
		var err error
		if st, err = svc.Status(context.Background()); err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ragdoc watch <add|remove|list> [path]")
		fmt.Println("  ragdoc watch add <path>     Add directory to watch")
		fmt.Println("  ragdoc watch remove <path>  Remove directory from watch")
		fmt.Println("  ragdoc watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not ingest files already in the directory")
	_ = fs.Parse(os.Args[3:])
	client := newAPIClient(*serverURL)

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fatalf("Usage: ragdoc watch add <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body := map[string]any{"path": path, "sync": !*noSync}
		if err := client.do(http.MethodPost, "/api/v1/watch/directories", body, nil); err != nil {
			fatalf("Add failed: %v", err)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fatalf("Usage: ragdoc watch remove <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := client.do(http.MethodDelete, "/api/v1/watch/directories?path="+url.QueryEscape(path), nil, nil); err != nil {
			fatalf("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := client.do(http.MethodGet, "/api/v1/watch/directories", nil, &out); err != nil {
			fatalf("List failed: %v", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fatalf("Unknown watch subcommand: %s", sub)
	}
}

func printUsage() {
	fmt.Print(`ragdoc - ask questions about your documents

Usage:
  ragdoc <command> [flags] [args]

Commands:
  server       Start the HTTP server and directory watcher
  ingest       Ingest files or directories (.pdf .docx .odt .rtf .xlsx .pptx .odp .ods .txt .md)
  ask          Ask a question against the knowledge base
  clear        Remove every document and chunk
  documents    List ingested documents
  delete       Delete one document by id
  status       Show collection and ledger counts
  watch        Manage watched directories on a running server
  version      Print the version
  help         Show this help

Config is read from -config, defaulting to ./config.yaml and then
` + config.DefaultConfigPath + `. API keys may come from the environment
or a .env file next to the config (GEMINI_API_KEY, OPENAI_API_KEY).

Examples:
  ragdoc server -debug
  ragdoc ask "What does the contract say about termination?"
  ragdoc ask -server "" -output json what is RAG
  ragdoc ingest ~/Documents/reports
  ragdoc watch add ~/Inbox
`)
}
