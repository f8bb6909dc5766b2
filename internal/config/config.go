// Package config loads the YAML configuration file shared by the
// diffsyncd server binary, applying the same read-then-default
// pattern karoo's cmd/karoo/main.go uses for its JSON config, and
// supports watching the file for hot-reload via fsnotify.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/beesaferoot/diff-sync/internal/ratelimit"
)

// Server is the diffsyncd server's full configuration.
type Server struct {
	Address      string `yaml:"address"`
	DatabasePath string `yaml:"database_path"`
	DocumentName string `yaml:"document_name"`

	Timers struct {
		SyncTickMs          int `yaml:"sync_tick_ms"`
		HeartbeatSeconds    int `yaml:"heartbeat_seconds"`
		StaleSweepSeconds   int `yaml:"stale_sweep_seconds"`
		StaleTimeoutSeconds int `yaml:"stale_timeout_seconds"`
		StatusReportSeconds int `yaml:"status_report_seconds"`
		ReadDeadlineSeconds int `yaml:"read_deadline_seconds"`
	} `yaml:"timers"`

	RateLimit ratelimit.Config `yaml:"ratelimit"`

	Metrics struct {
		Namespace string `yaml:"namespace"`
		Address   string `yaml:"address"`
	} `yaml:"metrics"`
}

// Default mirrors the spec's out-of-the-box defaults.
func Default() Server {
	cfg := Server{
		Address:      "127.0.0.1:8080",
		DatabasePath: "diffsync.db",
		DocumentName: "main",
	}
	cfg.Timers.SyncTickMs = 500
	cfg.Timers.HeartbeatSeconds = 30
	cfg.Timers.StaleSweepSeconds = 30
	cfg.Timers.StaleTimeoutSeconds = 120
	cfg.Timers.StatusReportSeconds = 10
	cfg.Timers.ReadDeadlineSeconds = 60
	cfg.RateLimit = ratelimit.DefaultConfig()
	cfg.Metrics.Namespace = "diffsync"
	cfg.Metrics.Address = "127.0.0.1:9090"
	return cfg
}

// Load reads and parses the YAML file at path, filling any zero-valued
// field from Default(). A missing file is not an error: Load returns
// the defaults unchanged.
func Load(path string) (Server, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Server{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Server{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Server) {
	d := Default()
	if cfg.Address == "" {
		cfg.Address = d.Address
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = d.DatabasePath
	}
	if cfg.DocumentName == "" {
		cfg.DocumentName = d.DocumentName
	}
	if cfg.Timers.SyncTickMs == 0 {
		cfg.Timers.SyncTickMs = d.Timers.SyncTickMs
	}
	if cfg.Timers.HeartbeatSeconds == 0 {
		cfg.Timers.HeartbeatSeconds = d.Timers.HeartbeatSeconds
	}
	if cfg.Timers.StaleSweepSeconds == 0 {
		cfg.Timers.StaleSweepSeconds = d.Timers.StaleSweepSeconds
	}
	if cfg.Timers.StaleTimeoutSeconds == 0 {
		cfg.Timers.StaleTimeoutSeconds = d.Timers.StaleTimeoutSeconds
	}
	if cfg.Timers.StatusReportSeconds == 0 {
		cfg.Timers.StatusReportSeconds = d.Timers.StatusReportSeconds
	}
	if cfg.Timers.ReadDeadlineSeconds == 0 {
		cfg.Timers.ReadDeadlineSeconds = d.Timers.ReadDeadlineSeconds
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = d.Metrics.Namespace
	}
}

// SyncTick returns the configured client sync tick as a Duration.
func (s Server) SyncTick() time.Duration {
	return time.Duration(s.Timers.SyncTickMs) * time.Millisecond
}

// Heartbeat returns the configured heartbeat interval as a Duration.
func (s Server) Heartbeat() time.Duration {
	return time.Duration(s.Timers.HeartbeatSeconds) * time.Second
}

// StaleSweepInterval returns the configured sweep interval.
func (s Server) StaleSweepInterval() time.Duration {
	return time.Duration(s.Timers.StaleSweepSeconds) * time.Second
}

// StaleTimeout returns the configured staleness window.
func (s Server) StaleTimeout() time.Duration {
	return time.Duration(s.Timers.StaleTimeoutSeconds) * time.Second
}

// StatusReportInterval returns the configured status report interval.
func (s Server) StatusReportInterval() time.Duration {
	return time.Duration(s.Timers.StatusReportSeconds) * time.Second
}

// ReadDeadline returns the configured per-read liveness deadline.
func (s Server) ReadDeadline() time.Duration {
	return time.Duration(s.Timers.ReadDeadlineSeconds) * time.Second
}

// Watcher notifies onChange with a freshly reloaded config whenever
// the file at path is written, using fsnotify the way a hot-reloading
// service layer typically would.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching path's containing directory (fsnotify does not
// reliably track edits to a single file across editors that replace it
// via rename) and invokes onChange with the reloaded config on every
// write or create event for that file.
func Watch(path string, onChange func(Server, error)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	dir := dirOf(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}

	watcher := &Watcher{watcher: w, done: make(chan struct{})}
	go watcher.loop(path, onChange)
	return watcher, nil
}

func (w *Watcher) loop(path string, onChange func(Server, error)) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(path)
			onChange(cfg, err)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
