package storage

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestBadger(t *testing.T, dir string, opts ...BadgerOption) *BadgerKV {
	t.Helper()

	cfg := DefaultConfig(dir)
	cfg.Badger.GCInterval = "1h" // Disable auto GC for tests
	cfg.Badger.SyncWrites = false

	kv, err := NewBadgerKV(cfg, append([]BadgerOption{WithLogger(slog.Default())}, opts...)...)
	if err != nil {
		t.Fatalf("NewBadgerKV() error = %v", err)
	}
	return kv
}

func TestBadgerKV_BasicOperations(t *testing.T) {
	kv := newTestBadger(t, t.TempDir())
	defer kv.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		if err := kv.Set(ctx, "token", "abc"); err != nil {
			t.Fatal(err)
		}
		res := kv.Get(ctx, "token")
		if !res.Ok() || res.Value != "abc" {
			t.Errorf("Get() = %+v, want found abc", res)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		res := kv.Get(ctx, "non-existent")
		if res.Status != StatusMissing {
			t.Errorf("Get() status = %v, want missing", res.Status)
		}
		if res.Err != nil {
			t.Errorf("Get() err = %v, want nil", res.Err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		kv.Set(ctx, "customerId", "CUST1")
		kv.Set(ctx, "customerId", "CUST2")
		if res := kv.Get(ctx, "customerId"); res.Value != "CUST2" {
			t.Errorf("Get() = %q, want CUST2", res.Value)
		}
	})

	t.Run("RemoveMany", func(t *testing.T) {
		kv.Set(ctx, "a", "1")
		kv.Set(ctx, "b", "2")

		if err := kv.RemoveMany(ctx, []string{"a", "b", "never-existed"}); err != nil {
			t.Fatalf("RemoveMany() error = %v", err)
		}
		for _, k := range []string{"a", "b"} {
			if res := kv.Get(ctx, k); res.Status != StatusMissing {
				t.Errorf("Get(%s) status = %v after remove, want missing", k, res.Status)
			}
		}
	})

	t.Run("Empty key", func(t *testing.T) {
		if err := kv.Set(ctx, "", "x"); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("Set(\"\") error = %v, want ErrEmptyKey", err)
		}
		if res := kv.Get(ctx, ""); res.Status != StatusFailed {
			t.Errorf("Get(\"\") status = %v, want failed", res.Status)
		}
	})

	t.Run("Canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if res := kv.Get(cctx, "token"); res.Status != StatusFailed {
			t.Errorf("Get() with canceled ctx status = %v, want failed", res.Status)
		}
		if err := kv.Set(cctx, "token", "x"); !errors.Is(err, context.Canceled) {
			t.Errorf("Set() with canceled ctx error = %v, want context.Canceled", err)
		}
	})
}

func TestBadgerKV_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	kv := newTestBadger(t, dir)
	if err := kv.Set(ctx, "token", "persisted"); err != nil {
		t.Fatal(err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := newTestBadger(t, dir)
	defer reopened.Close()

	if res := reopened.Get(ctx, "token"); res.Value != "persisted" {
		t.Errorf("Get() after reopen = %+v, want persisted", res)
	}
}

func TestBadgerKV_Closed(t *testing.T) {
	kv := newTestBadger(t, t.TempDir())
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}
	if err := kv.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}

	ctx := context.Background()
	if res := kv.Get(ctx, "token"); !errors.Is(res.Err, ErrClosed) {
		t.Errorf("Get() after close err = %v, want ErrClosed", res.Err)
	}
	if err := kv.Set(ctx, "token", "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Set() after close error = %v, want ErrClosed", err)
	}
	if err := kv.RemoveMany(ctx, []string{"token"}); !errors.Is(err, ErrClosed) {
		t.Errorf("RemoveMany() after close error = %v, want ErrClosed", err)
	}
}

func TestBadgerKV_InMemory(t *testing.T) {
	kv := newTestBadger(t, "", WithInMemory())
	defer kv.Close()

	ctx := context.Background()
	if err := kv.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if res := kv.Get(ctx, "k"); res.Value != "v" {
		t.Errorf("Get() = %+v, want v", res)
	}
}

func TestBadgerKV_RequiresDir(t *testing.T) {
	if _, err := NewBadgerKV(DefaultConfig("")); err == nil {
		t.Error("NewBadgerKV() without dir should fail")
	}
}

func TestBadgerKV_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	kv := newTestBadger(t, t.TempDir(), WithMetrics(reg))
	defer kv.Close()

	if _, err := kv.GC(context.Background()); err != nil {
		t.Fatalf("GC() error = %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"crmdesk_badger_lsm_size_bytes",
		"crmdesk_badger_value_log_size_bytes",
		"crmdesk_badger_last_gc_timestamp_seconds",
		"crmdesk_badger_gc_rewrites_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestOpen(t *testing.T) {
	t.Run("unknown engine", func(t *testing.T) {
		cfg := DefaultConfig(t.TempDir())
		cfg.Engine = "sqlite"
		if _, err := Open(cfg); err == nil {
			t.Error("Open() with unknown engine should fail")
		}
	})

	t.Run("memory engine ignores dir", func(t *testing.T) {
		cfg := DefaultConfig("/nonexistent/should/not/be/created")
		cfg.Engine = "memory"
		kv, err := Open(cfg)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer kv.Close()
		if _, ok := kv.(*BadgerKV); !ok {
			t.Errorf("Open() = %T, want *BadgerKV", kv)
		}
	})

	t.Run("encryption key seals", func(t *testing.T) {
		cfg := DefaultConfig("")
		cfg.Engine = "memory"
		cfg.EncryptionKey = "0123456789abcdef"
		kv, err := Open(cfg)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer kv.Close()
		if _, ok := kv.(*SealedKV); !ok {
			t.Errorf("Open() = %T, want *SealedKV", kv)
		}
	})
}
