package repl

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// defaultHistorySize is the number of entries kept.
const defaultHistorySize = 1000

// History manages command history for the REPL.
type History struct {
	entries []string
	maxSize int
	file    string
}

// NewHistory creates a History persisted at file. An empty file keeps
// history in memory only.
func NewHistory(file string) *History {
	return &History{
		maxSize: defaultHistorySize,
		file:    file,
	}
}

// Add adds a command to history. Lines carrying a password and repeats
// of the previous entry are not recorded.
func (h *History) Add(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || hasSecret(cmd) {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return
	}
	h.entries = append(h.entries, cmd)
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[len(h.entries)-h.maxSize:]
	}
}

func hasSecret(cmd string) bool {
	for _, f := range strings.Fields(cmd) {
		if f == "-p" || strings.HasPrefix(f, "--password") {
			return true
		}
	}
	return false
}

// Get returns the history entry at index (0 = most recent).
func (h *History) Get(index int) string {
	if index < 0 || index >= len(h.entries) {
		return ""
	}
	return h.entries[len(h.entries)-1-index]
}

// Entries returns the history, oldest first.
func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}

// Load loads history from file.
func (h *History) Load() error {
	if h.file == "" {
		return nil
	}
	file, err := os.Open(h.file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		h.Add(scanner.Text())
	}
	return scanner.Err()
}

// Save saves history to file, readable only by the owner.
func (h *History) Save() error {
	if h.file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.file), 0o700); err != nil {
		return err
	}

	file, err := os.OpenFile(h.file, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	for _, entry := range h.entries {
		if _, err := w.WriteString(entry + "\n"); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
