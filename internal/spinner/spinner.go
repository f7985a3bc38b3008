// Package spinner draws a single-line progress indicator on a terminal.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Interval is the time between frames.
const Interval = 80 * time.Millisecond

// Spinner redraws "<frame> <message>" in place until stopped. The message can
// change while it runs.
type Spinner struct {
	w        io.Writer
	mu       sync.Mutex
	message  string
	frame    int
	width    int
	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start draws the first frame on w and keeps animating in the background.
// Call Stop to clear the line.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	s.draw()
	go s.loop()
	return s
}

// Update replaces the message shown from the next frame on.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop clears the line and waits for the animation to end. It is safe to call
// more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.cleared
}

func (s *Spinner) loop() {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width)) //nolint:errcheck
			s.mu.Unlock()
			close(s.cleared)
			return
		case <-ticker.C:
			s.draw()
		}
	}
}

// draw pads each line to the widest one so a shorter message leaves no
// residue from the previous frame.
func (s *Spinner) draw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := frames[s.frame%len(frames)] + " " + s.message
	s.frame++
	if w := runewidth.StringWidth(line); w > s.width {
		s.width = w
	}
	fmt.Fprintf(s.w, "\r%s", runewidth.FillRight(line, s.width)) //nolint:errcheck
}
