package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// spinnerInterval is the frame period.
const spinnerInterval = 100 * time.Millisecond

// Spinner displays a progress animation.
type Spinner struct {
	w       io.Writer
	message string
	frames  []string

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
	running bool
}

// NewSpinner creates a new spinner.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start starts the spinner animation. Starting a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.run(s.done, s.stopped)
}

func (s *Spinner) run(done, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		s.mu.Lock()
		fmt.Fprintf(s.w, "\r%s %s", s.frames[i%len(s.frames)], s.message)
		s.mu.Unlock()

		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

// halt stops the animation and waits for the last frame to be written.
// Returns false if the spinner was not running.
func (s *Spinner) halt() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	close(s.done)
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped
	return true
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	if s.halt() {
		fmt.Fprint(s.w, "\r\033[K")
	}
}

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) {
	s.halt()
	fmt.Fprintf(s.w, "\r\033[K✓ %s\n", message)
}

// Fail stops the spinner with a failure message.
func (s *Spinner) Fail(message string) {
	s.halt()
	fmt.Fprintf(s.w, "\r\033[K✗ %s\n", message)
}
