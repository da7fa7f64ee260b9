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
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/profiledir/internal/api"
	"github.com/kalambet/profiledir/internal/config"
	"github.com/kalambet/profiledir/internal/directory"
	"github.com/kalambet/profiledir/internal/events"
	"github.com/kalambet/profiledir/internal/metrics"
	"github.com/kalambet/profiledir/internal/relay"
	"github.com/kalambet/profiledir/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Start the profiledir server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running profiledir server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show profiledir server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "profiledir.pid")
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

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// backend bundles what the storage choice decides: the directory itself, an
// optional store and the cleanup to run on exit.
type backend struct {
	dir   *directory.Directory
	store *storage.Store
}

// openBackend builds the directory for cfg. With the sqlite backend the store
// is seeded on first run, loaded into memory and then follows every change
// through a Mirror that also writes the event outbox.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backend, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		var seed []directory.Profile
		if cfg.Seed.Enabled {
			seed = directory.SeedProfiles()
		}
		return &backend{dir: directory.New(seed)}, nil
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	n, err := store.CountProfiles()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("counting stored profiles: %w", err)
	}
	if n == 0 && cfg.Seed.Enabled {
		if err := store.ImportProfiles(directory.SeedProfiles()); err != nil {
			store.Close()
			return nil, fmt.Errorf("seeding storage: %w", err)
		}
		logger.Info("seeded empty store", "profiles", len(directory.SeedProfiles()))
	}

	dir := directory.New(nil)
	if err := dir.Load(ctx, store); err != nil {
		store.Close()
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	dir.Subscribe(storage.NewMirror(store, true, logger))

	return &backend{dir: dir, store: store}, nil
}

func (b *backend) Close() {
	if b.store == nil {
		return
	}
	if err := b.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "profiledir version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	// Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("profiledir is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("profiledir is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()
	slog.Info("directory ready", "backend", cfg.Storage.Backend, "profiles", be.dir.Len())

	m := metrics.New()
	m.SetProfiles(be.dir.Len())
	be.dir.Subscribe(m)

	publisher, err := events.NewEventPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
	if err != nil {
		return fmt.Errorf("initializing event publisher: %w", err)
	}
	defer publisher.Close()

	if cfg.API.Token == "" {
		slog.Warn("PROFILEDIR_API_TOKEN is not set, profile mutations are unauthenticated")
	}

	appHandler := api.NewAppHandler(api.AppDeps{
		Directory: be.dir,
		Token:     cfg.API.Token,
		Metrics:   m,
		Exporter:  m.Handler(),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)
	}

	srv := &http.Server{
		Handler: appHandler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "profiledir listening on %s\n", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// With a store, changes reach the broker through the outbox; otherwise
	// they are published as they happen.
	if be.store != nil {
		worker := relay.NewWorker(be.store, publisher, cfg.Relay.PollInterval, relay.WithLogger(logger))
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
		slog.Info("outbox relay started", "poll_interval", cfg.Relay.PollInterval)
	} else if publisher.Enabled() {
		be.dir.Subscribe(events.NewNotifier(publisher, logger))
	}

	if cfg.Server.MCPStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Directory: be.dir,
			Metrics:   m,
			Version:   version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
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
		printError("profiledir is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop profiledir (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to profiledir (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      cfg.API.Token,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	reportStatus(ctx, client)

	printStatus("Backend", "%s", cfg.Storage.Backend)
	if cfg.Storage.Backend == config.BackendSQLite {
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
	}
	if cfg.Events.AMQPURL != "" {
		printStatus("Events", "exchange %s", cfg.Events.Exchange)
	} else {
		printStatus("Events", "disabled")
	}
	return nil
}

func reportStatus(ctx context.Context, client *apiClient) bool {
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		return false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return false
	}
	printStatus("Server", "running at %s", client.baseURL)

	tagsResp, err := client.get(ctx, "/tags")
	if err == nil {
		var tags []string
		if decodeJSON(tagsResp, &tags) == nil {
			printStatus("Tags", "%d", len(tags))
		}
	}
	profResp, err := client.get(ctx, "/profiles?limit=100")
	if err == nil {
		var profiles []directory.Profile
		if decodeJSON(profResp, &profiles) == nil {
			printStatus("Profiles", "%s", countLabel(len(profiles), 100))
		}
	}
	return true
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
