package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher(WithWatcherLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestWatcher_Watch_NonexistentDir(t *testing.T) {
	w := newTestWatcher(t)
	if err := w.Watch("/nonexistent/dir/config.yaml"); err == nil {
		t.Error("Watch() on missing directory succeeded")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w := newTestWatcher(t)
	w.StartAsync()

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWatcher_FileChange(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("log:\n  level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t)
	if err := w.Watch(configFile); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	changed := make(chan string, 10)
	w.OnChange(func(path string) {
		select {
		case changed <- path:
		default:
		}
	})
	w.StartAsync()

	// A sibling file must not trigger the callback.
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-changed:
		if filepath.Base(path) != "config.yaml" {
			t.Errorf("callback for %q, want config.yaml", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnChange() callback was not triggered within timeout")
	}
}
