package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	if cfg.Address != want.Address || cfg.DocumentName != want.DocumentName {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diffsync.yaml")
	if err := os.WriteFile(path, []byte("address: 0.0.0.0:9000\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != "0.0.0.0:9000" {
		t.Errorf("address = %q", cfg.Address)
	}
	if cfg.DocumentName != "main" {
		t.Errorf("document_name = %q, want default", cfg.DocumentName)
	}
	if cfg.Timers.SyncTickMs != 500 {
		t.Errorf("sync_tick_ms = %d, want default 500", cfg.Timers.SyncTickMs)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != Default().Address {
		t.Errorf("got %+v", cfg)
	}
}

func TestDurationHelpersConvertFromConfiguredUnits(t *testing.T) {
	cfg := Default()
	if cfg.SyncTick().Milliseconds() != 500 {
		t.Errorf("SyncTick() = %v", cfg.SyncTick())
	}
	if cfg.StaleTimeout().Seconds() != 120 {
		t.Errorf("StaleTimeout() = %v", cfg.StaleTimeout())
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diffsync.yaml")
	if err := os.WriteFile(path, []byte("timers:\n  stale_timeout_seconds: 120\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reloaded := make(chan Server, 1)
	w, err := Watch(path, func(cfg Server, err error) {
		if err != nil {
			t.Errorf("reload: %v", err)
			return
		}
		reloaded <- cfg
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("timers:\n  stale_timeout_seconds: 7\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Timers.StaleTimeoutSeconds != 7 {
			t.Errorf("stale_timeout_seconds = %d, want 7", cfg.Timers.StaleTimeoutSeconds)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onChange was never called after rewriting the config file")
	}
}

func TestDirOfHandlesRootAndRelativePaths(t *testing.T) {
	if got := dirOf("/etc/diffsync/config.yaml"); got != "/etc/diffsync" {
		t.Errorf("dirOf = %q", got)
	}
	if got := dirOf("config.yaml"); got != "." {
		t.Errorf("dirOf(relative) = %q, want \".\"", got)
	}
}
