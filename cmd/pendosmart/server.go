package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
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

	"github.com/projectcraftbeer/PendoSmart/internal/api"
	"github.com/projectcraftbeer/PendoSmart/internal/config"
	"github.com/projectcraftbeer/PendoSmart/internal/evaluate"
	"github.com/projectcraftbeer/PendoSmart/internal/smartling"
	"github.com/projectcraftbeer/PendoSmart/internal/storage"
	pssync "github.com/projectcraftbeer/PendoSmart/internal/sync"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pendosmart server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running pendosmart server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pendosmart system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "pendosmart.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "pendosmart version %s\n", version)

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
	log := slog.Default()

	if cfg.Server.AdminToken == "" {
		printWarning("PENDOSMART_ADMIN_TOKEN is not set; /admin endpoints are unauthenticated")
	}

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("pendosmart is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("pendosmart is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// Smartling client and authenticated session over stored credentials.
	client := smartling.NewWithBaseURL(cfg.Smartling.BaseURL)
	session := smartling.NewSession(client, store, log)
	syncSvc := pssync.New(store, client, session, log)

	// Pick the evaluator: the local model when it is enabled and reachable,
	// the neutral stub otherwise. The flag lives in settings so the
	// dashboard can flip it without a restart losing the choice.
	evaluator := evaluate.New(selectCompletion(ctx, store, cfg, log), log)

	deps := api.Deps{
		Store:     store,
		Client:    client,
		Session:   session,
		Sync:      syncSvc,
		Evaluator: evaluator,
		Token:     cfg.Server.AdminToken,
		Log:       log,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(deps)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("MCP stdio server error", "error", err)
		}
	}()
	log.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "pendosmart listening on %s\n", addr)
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
	return srv.Shutdown(shutdownCtx)
}

// selectCompletion resolves the text-completion backend for the evaluator.
// The Ollama backend is used only when the download flag is on, the daemon
// answers, and the configured model can be made available.
func selectCompletion(ctx context.Context, store *storage.Store, cfg config.Config, log *slog.Logger) evaluate.TextCompletion {
	val, err := store.GetSetting(api.SettingModelDownload)
	if err != nil || val != "true" {
		log.Info("model download disabled, using stub evaluator")
		return evaluate.Stub{}
	}

	oll := evaluate.NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.Model)
	if !oll.IsRunning(ctx) {
		log.Warn("ollama not reachable, using stub evaluator", "base_url", cfg.Ollama.BaseURL)
		return evaluate.Stub{}
	}
	if err := oll.EnsureModel(ctx); err != nil {
		log.Warn("model not available, using stub evaluator", "model", cfg.Ollama.Model, "error", err)
		return evaluate.Stub{}
	}
	log.Info("evaluating with local model", "model", cfg.Ollama.Model)
	return oll
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
		printError("pendosmart is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop pendosmart (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to pendosmart (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	ctx := context.Background()
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	httpClient := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := httpClient.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check Ollama.
	ollamaResp, err := httpClient.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}
	printStatus("Model", "%s", cfg.Ollama.Model)

	// Show credential and translation counts if the server is running.
	if running {
		client := &apiClient{
			baseURL:    serverURL,
			token:      cfg.Server.AdminToken,
			httpClient: httpClient,
		}

		if keysResp, err := client.get(ctx, "/admin/smartling-keys"); err == nil {
			var keys struct {
				UserID    string `json:"user_id"`
				ProjectID string `json:"project_id"`
				Locale    string `json:"locale"`
			}
			if decodeJSON(keysResp, &keys) == nil {
				if keys.UserID == "" {
					printStatus("Smartling", "no credentials configured")
				} else {
					printStatus("Smartling", "project %s, locale %s", keys.ProjectID, keys.Locale)
				}
			}
		}

		if tableResp, err := client.get(ctx, "/admin/smartling-translations-table?per_page=1"); err == nil {
			var table struct {
				Total int `json:"total"`
			}
			if decodeJSON(tableResp, &table) == nil {
				printStatus("Translations", "%d", table.Total)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
