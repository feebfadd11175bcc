package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/huddleplay/assist/internal/api"
	"github.com/huddleplay/assist/internal/assembler"
	"github.com/huddleplay/assist/internal/config"
	"github.com/huddleplay/assist/internal/ingest"
	"github.com/huddleplay/assist/internal/llm"
	"github.com/huddleplay/assist/internal/memory"
	"github.com/huddleplay/assist/internal/retrieval"
	"github.com/huddleplay/assist/internal/storage"
	"github.com/huddleplay/assist/internal/suggest"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the assist server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running assist server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show assist system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "assist.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// newProvider builds the configured LLM backend.
func newProvider(cfg config.Config) (llm.Provider, error) {
	switch cfg.Provider.Kind {
	case "openai":
		return llm.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, cfg.OpenAI.EmbedModel)
	case "ollama":
		return llm.NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "assist version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Ensure the API token exists before anything binds to a port.
	apiToken, err := config.GetAPIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("assist is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("assist is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	slog.Info("LLM provider ready", "provider", provider.Name())

	if ollamaProvider, ok := provider.(*llm.OllamaProvider); ok {
		if !ollamaProvider.IsRunning(ctx) {
			return fmt.Errorf("ollama is not reachable at %s", cfg.Ollama.BaseURL)
		}
	}

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the suggestion pipeline.
	embedder := retrieval.NewEmbedder(provider)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	for _, collection := range []string{retrieval.InteractionCollection, retrieval.DocumentCollection} {
		if err := vectorStore.EnsureCollection(ctx, collection, cfg.Embedding.Dimension); err != nil {
			return fmt.Errorf("ensuring collection %s: %w", collection, err)
		}
	}

	asm := assembler.New(embedder, vectorStore, assembler.Config{
		MaxInteractions: cfg.Retrieval.MaxInteractions,
		MaxDocs:         cfg.Retrieval.MaxDocs,
		MaxChunkLen:     cfg.Retrieval.MaxChunkLen,
		ScoreThreshold:  float32(cfg.Retrieval.ScoreThreshold),
	})
	orchestrator := suggest.New(provider, suggest.Options{
		Temperature:      float32(cfg.Generation.Temperature),
		RegenTemperature: float32(cfg.Generation.RegenTemperature),
		MaxTokens:        cfg.Generation.MaxTokens,
	})
	writer := memory.NewWriter(embedder, vectorStore, memory.GateConfig{
		MinDraftWords:      cfg.Quality.MinDraftWords,
		MinScreenshotChars: cfg.Quality.MinScreenshotChars,
		RequireQuestion:    cfg.Quality.RequireQuestion,
	})
	ingestor := ingest.New(embedder, vectorStore, cfg.Ingest.MaxChunkChars)

	appHandler := api.NewAppHandler(api.AppDeps{
		Store:        store,
		Assembler:    asm,
		Orchestrator: orchestrator,
		Writer:       writer,
		Ingestor:     ingestor,
		Embedder:     embedder,
		Vectors:      vectorStore,
		Token:        apiToken,
		HTTPClient:   &http.Client{Timeout: 15 * time.Second},
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// MCP server on its own port (streamable HTTP transport).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Assembler:    asm,
		Orchestrator: orchestrator,
		Writer:       writer,
		Embedder:     embedder,
		Vectors:      vectorStore,
	})
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
	httpMCP := server.NewStreamableHTTPServer(mcpSrv)
	go func() {
		slog.Info("MCP server listening", "addr", mcpAddr)
		if err := httpMCP.Start(mcpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP server error", "error", err)
		}
	}()

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "assist listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpMCP.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP server shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("assist is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop assist (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to assist (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Provider", "%s", cfg.Provider.Kind)
	switch cfg.Provider.Kind {
	case "openai":
		printStatus("Chat model", "%s", cfg.OpenAI.ChatModel)
		printStatus("Embed model", "%s", cfg.OpenAI.EmbedModel)
	case "ollama":
		printStatus("Chat model", "%s", cfg.Ollama.ChatModel)
		printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	}

	// Show counts if the server is up.
	if apiClient, clientErr := newAPIClient(); clientErr == nil {
		if healthResp, err := apiClient.get("/health"); err == nil {
			var health struct {
				Interactions int `json:"interactions"`
				Documents    int `json:"documents"`
				Logged       int `json:"logged"`
			}
			if decodeJSON(healthResp, &health) == nil {
				printStatus("Interactions", "%d", health.Interactions)
				printStatus("Document chunks", "%d", health.Documents)
				printStatus("Logged huddles", "%d", health.Logged)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
