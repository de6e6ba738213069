package repl

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestHistory_Add(t *testing.T) {
	h := NewHistory("")

	h.Add("status")
	h.Add("  ")
	h.Add("status")
	h.Add("fetch orders")
	h.Add("status")

	want := []string{"status", "fetch orders", "status"}
	if got := h.Entries(); !slices.Equal(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
	if got := h.Get(0); got != "status" {
		t.Errorf("Get(0) = %q, want status", got)
	}
	if got := h.Get(1); got != "fetch orders" {
		t.Errorf("Get(1) = %q, want fetch orders", got)
	}
	if got := h.Get(5); got != "" {
		t.Errorf("Get(5) = %q, want empty", got)
	}
}

func TestHistory_SkipsPasswords(t *testing.T) {
	h := NewHistory("")

	lines := []string{
		"login --email a@b.c --password hunter2",
		"login --email a@b.c --password=hunter2",
		"login -e a@b.c -p hunter2",
	}
	for _, l := range lines {
		h.Add(l)
	}
	h.Add("login --email a@b.c")

	if got := h.Entries(); !slices.Equal(got, []string{"login --email a@b.c"}) {
		t.Errorf("Entries() = %v", got)
	}
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory("")
	h.maxSize = 3

	for _, c := range []string{"a", "b", "c", "d", "e"} {
		h.Add(c)
	}
	if got := h.Entries(); !slices.Equal(got, []string{"c", "d", "e"}) {
		t.Errorf("Entries() = %v", got)
	}
}

func TestHistory_SaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "history")

	h := NewHistory(file)
	h.Add("status")
	h.Add("fetch orders")
	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("history mode = %o, want 600", perm)
	}

	loaded := NewHistory(file)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := loaded.Entries(); !slices.Equal(got, []string{"status", "fetch orders"}) {
		t.Errorf("Entries() = %v", got)
	}
}

func TestHistory_LoadMissing(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "absent"))
	if err := h.Load(); err != nil {
		t.Errorf("Load() error = %v, want nil", err)
	}
	if len(h.Entries()) != 0 {
		t.Error("expected empty history")
	}
}

func TestHistory_NoFile(t *testing.T) {
	h := NewHistory("")
	h.Add("status")
	if err := h.Save(); err != nil {
		t.Errorf("Save() error = %v", err)
	}
	if err := h.Load(); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}
