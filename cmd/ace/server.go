package main

import (
	"context"
	"errors"
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

	"github.com/yalor/ace/internal/api"
	"github.com/yalor/ace/internal/auction"
	"github.com/yalor/ace/internal/bridge"
	"github.com/yalor/ace/internal/bus"
	"github.com/yalor/ace/internal/config"
	"github.com/yalor/ace/internal/extract"
	"github.com/yalor/ace/internal/history"
	"github.com/yalor/ace/internal/journal"
	"github.com/yalor/ace/internal/llm"
	"github.com/yalor/ace/internal/partner"
	"github.com/yalor/ace/internal/profile"
	"github.com/yalor/ace/internal/synth"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ace server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running ace server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ace system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "ace.pid")
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
	fmt.Fprintf(os.Stderr, "ace version %s\n", version)

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

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("ace is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("ace is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check Ollama readiness. The pipeline degrades without it: turns still
	// flow, but no intents are extracted and no offers are produced.
	llmClient := llm.New(cfg.Ollama.BaseURL)
	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	if !llmClient.IsRunning(pingCtx) {
		printWarning("Ollama not reachable at %s, intent extraction will fail until it is up", cfg.Ollama.BaseURL)
	}
	cancelPing()

	// Open the event journal.
	journalStore, err := journal.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer func() {
		if err := journalStore.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing journal: %v\n", err)
		}
	}()

	// Assemble the pipeline around a shared event bus.
	b := bus.New()
	profiles := profile.NewStore()
	hist := history.NewStoreWithMaxTurns(cfg.History.MaxTurns)

	writer := journal.NewWriter(journalStore)
	stopWriter := writer.Start(b)
	defer stopWriter()

	extractor := extract.NewLLMExtractor(llmClient, cfg.Ollama.ExtractModel)
	analyzer := extract.NewAnalyzer(b, extractor, profiles, hist)
	stopAnalyzer := analyzer.Start(ctx)
	defer stopAnalyzer()

	synthesizer := synth.New(b, profiles)
	stopSynth := synthesizer.Start()
	defer stopSynth()

	engine := auction.New(b, config.DurationOr(cfg.Auction.Window, auction.DefaultWindow))
	stopEngine := engine.Start()
	defer stopEngine()

	connectors := []partner.Connector{
		partner.NewWebhookConnector(
			"coupon-network",
			cfg.Partners.CouponNetworkURL,
			config.DurationOr(cfg.Auction.ConnectorDeadline, partner.DefaultDeadline),
		),
	}
	router := partner.NewRouter(b, connectors)
	stopRouter := router.Start(ctx)
	defer stopRouter()

	br := bridge.New(b, config.DurationOr(cfg.Bridge.Deadline, bridge.DefaultDeadline))

	// Build HTTP handler and server.
	handler := api.NewHandler(api.Deps{
		Bus:      b,
		Bridge:   br,
		Profiles: profiles,
		Journal:  journalStore,
		Token:    cfg.Server.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Bridge:   br,
		Profiles: profiles,
		Journal:  journalStore,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "ace listening on %s\n", addr)
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

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("ace is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop ace (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to ace (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	serverUp := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			serverUp = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check Ollama.
	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Extract model", "%s", cfg.Ollama.ExtractModel)

	// Show pipeline counters if server is running.
	if serverUp {
		apiClt := &apiClient{
			baseURL:    serverURL,
			token:      cfg.Server.Token,
			httpClient: client,
		}
		if statsResp, err := apiClt.get(ctx, "/v1/stats"); err == nil {
			var stats map[string]int64
			if decodeJSON(statsResp, &stats) == nil {
				printStatus("Turns processed", "%d", stats["INPUT_RECEIVED"])
				printStatus("Offers delivered", "%d", stats["OFFER_READY"])
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
