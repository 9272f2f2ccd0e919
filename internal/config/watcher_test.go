package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// countingReload returns a ReloadFunc that counts invocations and records
// the path it was called with.
func countingReload(count *int32, lastPath *atomic.Value, err error) ReloadFunc {
	return func(path string) error {
		if lastPath != nil {
			lastPath.Store(path)
		}
		atomic.AddInt32(count, 1)
		return err
	}
}

// waitForReload polls until the counter moves or the deadline passes.
func waitForReload(count *int32) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(count) > 0 {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func writeWatchedFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestWatchConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeWatchedFile(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := WatchConfigFile(configPath, countingReload(&reloadCount, nil, nil))
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	// Give watcher time to start
	time.Sleep(100 * time.Millisecond)

	writeWatchedFile(t, configPath, "updated: content")

	if !waitForReload(&reloadCount) {
		t.Error("Expected reload to be triggered")
	}
}

func TestWatchConfigFileAtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeWatchedFile(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := WatchConfigFile(configPath, countingReload(&reloadCount, nil, nil))
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	// Simulate atomic write (like vim does): write to temp, then rename
	tempPath := filepath.Join(tmpDir, "config.yaml.tmp")
	writeWatchedFile(t, tempPath, "atomic: content")
	if err := os.Rename(tempPath, configPath); err != nil {
		t.Fatalf("Failed to rename temp file: %v", err)
	}

	if !waitForReload(&reloadCount) {
		t.Error("Expected reload to be triggered on atomic write")
	}
}

func TestWatchCatalogFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	catalogPath := filepath.Join(tmpDir, "prometheus.yaml")
	writeWatchedFile(t, configPath, "server:\n  host: localhost\n")
	writeWatchedFile(t, catalogPath, "prometheus.uri: http://prom:9090\n")

	var reloadCount int32
	var lastPath atomic.Value
	watcher, err := WatchCatalogFile(configPath, catalogPath, countingReload(&reloadCount, &lastPath, nil))
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	// Editing the catalog triggers a reload of the envelope, which re-binds
	// the catalog.
	writeWatchedFile(t, catalogPath, "prometheus.uri: http://prom2:9090\n")

	if !waitForReload(&reloadCount) {
		t.Fatal("Expected reload to be triggered by a catalog edit")
	}
	if got := lastPath.Load(); got != configPath {
		t.Errorf("reload called with %v, want the envelope path %v", got, configPath)
	}
}

func TestWatchConfigFileReloadError(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeWatchedFile(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := WatchConfigFile(configPath, countingReload(&reloadCount, nil, errors.New("reload failed")))
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	writeWatchedFile(t, configPath, "updated: content")

	// Reload should have been attempted even though it failed
	if !waitForReload(&reloadCount) {
		t.Error("Expected reload to be attempted despite error")
	}
}

func TestWatchConfigFileOtherFileIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	otherPath := filepath.Join(tmpDir, "other.yaml")
	writeWatchedFile(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := WatchConfigFile(configPath, countingReload(&reloadCount, nil, nil))
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	// Modify a different file in the same directory
	writeWatchedFile(t, otherPath, "other: content")

	// Wait a bit to ensure no reload triggered
	time.Sleep(300 * time.Millisecond)

	if atomic.LoadInt32(&reloadCount) != 0 {
		t.Error("Expected no reload for changes to other files")
	}
}

func TestWatchConfigFileNonexistentDir(t *testing.T) {
	_, err := WatchConfigFile("/nonexistent/path/config.yaml", func(path string) error { return nil })
	if err == nil {
		t.Error("Expected error for nonexistent directory")
	}
}

func TestWatchConfigFileClose(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeWatchedFile(t, configPath, "initial: content")

	var reloadCount int32
	watcher, err := WatchConfigFile(configPath, countingReload(&reloadCount, nil, nil))
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}

	// Close the watcher
	watcher.Close()

	// Wait for goroutine to exit
	time.Sleep(100 * time.Millisecond)

	writeWatchedFile(t, configPath, "updated: content")

	time.Sleep(200 * time.Millisecond)

	// No reload should happen after close
	if atomic.LoadInt32(&reloadCount) != 0 {
		t.Error("Expected no reload after watcher closed")
	}
}
