package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/netresearch/testenv/core"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows an animated line while a long operation such as setup runs.
// When stdout is not a terminal it logs the start and the result instead.
type Spinner struct {
	logger     core.Logger
	writer     io.Writer
	message    string
	isTerminal bool

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
	started bool
}

// NewSpinner creates a spinner writing to stdout.
func NewSpinner(logger core.Logger, message string) *Spinner {
	return &Spinner{
		logger:     logger,
		writer:     os.Stdout,
		message:    message,
		isTerminal: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Start begins the animation. Starting twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	if !s.isTerminal {
		s.logger.Noticef("%s...", s.message)
		return
	}

	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.animate(s.done, s.stopped)
}

// Stop ends the animation and reports result. Stopping a spinner that is
// not running is a no-op.
func (s *Spinner) Stop(success bool, result string) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	done, stopped := s.done, s.stopped
	s.done, s.stopped = nil, nil
	s.mu.Unlock()

	if done == nil {
		if success {
			s.logger.Noticef("✅ %s", result)
		} else {
			s.logger.Errorf("❌ %s", result)
		}
		return
	}

	close(done)
	<-stopped

	fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
	if success {
		fmt.Fprintf(s.writer, "✅ %s\n", result)
	} else {
		fmt.Fprintf(s.writer, "❌ %s\n", result)
	}
}

func (s *Spinner) animate(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i = (i + 1) % len(spinnerFrames) {
		select {
		case <-done:
			return
		case <-ticker.C:
			fmt.Fprintf(s.writer, "\r%s %s", spinnerFrames[i], s.message)
		}
	}
}

// StepReporter reports the progress of a fixed number of steps, as a bar
// on terminals and as log lines elsewhere.
type StepReporter struct {
	logger     core.Logger
	writer     io.Writer
	total      int
	isTerminal bool

	mu      sync.Mutex
	current int
}

// NewStepReporter creates a reporter for total steps.
func NewStepReporter(logger core.Logger, total int) *StepReporter {
	return &StepReporter{
		logger:     logger,
		writer:     os.Stdout,
		total:      total,
		isTerminal: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Step advances to the next step and reports message.
func (r *StepReporter) Step(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.total <= 0 {
		return
	}
	if r.current < r.total {
		r.current++
	}

	if !r.isTerminal {
		r.logger.Noticef("[%d/%d] %s", r.current, r.total, message)
		return
	}
	fmt.Fprintf(r.writer, "\r[%d/%d] %s %s", r.current, r.total, progressBar(r.current, r.total, 20), message)
	if r.current == r.total {
		fmt.Fprintln(r.writer)
	}
}

// Complete reports that every step is done.
func (r *StepReporter) Complete(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = r.total
	r.logger.Noticef("✅ %s", message)
}

// Current returns the number of the last reported step.
func (r *StepReporter) Current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func progressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	filled := min(done*width/total, width)
	percent := done * 100 / total
	return fmt.Sprintf("%s%s %d%%", strings.Repeat("█", filled), strings.Repeat("░", width-filled), percent)
}
