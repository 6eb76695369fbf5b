package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const spinnerInterval = 120 * time.Millisecond

// Spinner is an indeterminate progress indicator drawn on one terminal line.
type Spinner struct {
	out     io.Writer
	enabled bool
	label   string

	mu      sync.Mutex
	start   time.Time
	frame   int
	lastLen int
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner draws on stderr when it is a terminal and quiet is false.
func NewSpinner(label string, quiet bool) *Spinner {
	stat, err := os.Stderr.Stat()
	enabled := err == nil && (stat.Mode()&os.ModeCharDevice) != 0 && !quiet
	return &Spinner{out: os.Stderr, enabled: enabled, label: label}
}

// NewSpinnerWith draws on out whenever enabled is set.
func NewSpinnerWith(out io.Writer, label string, enabled bool) *Spinner {
	return &Spinner{out: out, enabled: enabled, label: label}
}

// Start begins animating until Stop is called.
func (s *Spinner) Start() {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.start = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
}

func (s *Spinner) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	s.tick()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Spinner) tick() {
	frames := [4]string{"-", "\\", "|", "/"}
	s.mu.Lock()
	frame := frames[s.frame%len(frames)]
	s.frame++
	elapsed := time.Since(s.start).Truncate(time.Second)
	s.mu.Unlock()

	s.printStatus(fmt.Sprintf("%s %s %s", frame, s.label, VerboseStyle.Render(elapsed.String())))
}

// Stop ends the animation and clears the line. Safe to call more than once.
func (s *Spinner) Stop() {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", s.lastLen))
	s.lastLen = 0
}

func (s *Spinner) printStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastLen > len(status) {
		status += strings.Repeat(" ", s.lastLen-len(status))
	}
	s.lastLen = len(status)
	fmt.Fprintf(s.out, "\r%s", status)
}
