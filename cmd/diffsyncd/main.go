// Command diffsyncd is the differential-synchronization server: it
// owns the authoritative document, reconciles every connected client
// against it, and exposes Prometheus metrics for observability.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/beesaferoot/diff-sync/internal/config"
	"github.com/beesaferoot/diff-sync/internal/ratelimit"
	"github.com/beesaferoot/diff-sync/internal/server"
	"github.com/beesaferoot/diff-sync/internal/store"
	apperrors "github.com/beesaferoot/diff-sync/pkg/errors"
	"github.com/beesaferoot/diff-sync/pkg/logger"
	"github.com/beesaferoot/diff-sync/pkg/metrics"
)

// exit codes: 0 clean, 1 config/flag error, 2 unrecoverable I/O or
// store error.
func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var appErr *apperrors.AppError
	var netErr net.Error
	if (errors.As(err, &appErr) && appErr.Code == apperrors.CodeStore) || errors.As(err, &netErr) {
		os.Exit(2)
	}
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "diffsyncd",
		Short: "Differential synchronization server",
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath   string
		address      string
		databasePath string
		documentName string
		inMemory     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the diffsync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Address = address
			}
			if databasePath != "" {
				cfg.DatabasePath = databasePath
			}
			if documentName != "" {
				cfg.DocumentName = documentName
			}
			return runServe(cmd.Context(), cfg, configPath, inMemory)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&address, "address", "", "Override the listen address (host:port)")
	cmd.Flags().StringVar(&databasePath, "database-path", "", "Override the SQLite database path")
	cmd.Flags().StringVar(&documentName, "document-name", "", "Override the document name to serve")
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "Use an in-memory store instead of SQLite")

	return cmd
}

func runServe(ctx context.Context, cfg config.Server, configPath string, inMemory bool) error {
	log := logger.Default

	var docStore store.DocumentStore
	if inMemory {
		docStore = store.NewMemoryStore()
	} else {
		sqliteStore, err := store.OpenSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return err
		}
		docStore = sqliteStore
	}
	defer docStore.Close()

	mx := metrics.New(cfg.Metrics.Namespace)
	limiter := ratelimit.New(cfg.RateLimit)
	defer limiter.Close()

	srv := server.New(docStore, cfg.DocumentName, mx, log)

	listenerCfg := server.ListenerConfig{
		Address:              cfg.Address,
		Transport:            server.DefaultListenerConfig(cfg.Address).Transport,
		StaleSweepInterval:   cfg.StaleSweepInterval(),
		StaleTimeout:         cfg.StaleTimeout(),
		StatusReportInterval: cfg.StatusReportInterval(),
		ReadDeadline:         cfg.ReadDeadline(),
	}
	ln := server.NewListener(srv, listenerCfg, limiter)

	if configPath != "" {
		watcher, err := config.Watch(configPath, func(reloaded config.Server, err error) {
			if err != nil {
				log.Error("config reload: %v", err)
				return
			}
			ln.SetStaleTimeout(reloaded.StaleTimeout())
		})
		if err != nil {
			log.Error("config hot-reload disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- ln.Run(runCtx) }()

	if cfg.Metrics.Address != "" {
		go serveHTTP(runCtx, cfg.Metrics.Address, srv, log)
	}

	return <-errCh
}

// statusView is the JSON shape returned by /status: a snapshot of the
// authoritative document and who is currently attached to it.
type statusView struct {
	DocumentVersion uint64   `json:"document_version"`
	DocumentLength  int      `json:"document_length"`
	Clients         []string `json:"clients"`
}

// serveHTTP runs the server's observability surface: /healthz for a bare
// liveness probe, /status for a JSON snapshot of server state, and
// /metrics for Prometheus scraping.
func serveHTTP(ctx context.Context, address string, srv *server.Server, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		content, err := srv.DocumentContent()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		view := statusView{
			DocumentVersion: srv.Version(),
			DocumentLength:  len(content),
			Clients:         srv.ConnectedClients(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view)
	})
	mux.Handle("/metrics", promhttp.Handler())
	httpSrv := &http.Server{Addr: address, Handler: mux}

	go func() {
		<-ctx.Done()
		httpSrv.Close()
	}()

	log.Info("http observability surface listening on %s", address)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("http server: %v", err)
	}
}
