package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Checklist draws step snapshots in place: pending steps muted, running
// steps with a spinner, finished steps with a check or a cross.
type Checklist struct {
	out           io.Writer
	mu            sync.Mutex
	steps         []stepState
	renderedLines int
	frame         int
	stop          chan struct{}
	stopped       chan struct{}
	spinning      bool
	once          sync.Once
}

func NewChecklist(out io.Writer) *Checklist {
	return &Checklist{out: out, stop: make(chan struct{}), stopped: make(chan struct{})}
}

func (c *Checklist) OnSnapshot(snap stepSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.steps = snap.Steps
	c.redraw()
	if !c.spinning {
		c.spinning = true
		go c.spin()
	}
}

// Close stops the spinner and leaves the final state on screen.
func (c *Checklist) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.mu.Lock()
		spinning := c.spinning
		c.mu.Unlock()
		if spinning {
			<-c.stopped
		}

		c.mu.Lock()
		c.redraw()
		c.mu.Unlock()
	})
}

func (c *Checklist) spin() {
	defer close(c.stopped)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.frame = (c.frame + 1) % len(spinFrames)
			c.redraw()
			c.mu.Unlock()
		}
	}
}

// redraw reprints all step lines in place. Caller must hold c.mu.
func (c *Checklist) redraw() {
	if len(c.steps) == 0 && c.renderedLines == 0 {
		return
	}
	if c.renderedLines > 0 {
		fmt.Fprintf(c.out, "\033[%dA", c.renderedLines)
	}
	for _, s := range c.steps {
		fmt.Fprintf(c.out, "\r%s\033[K\n", c.line(s))
	}
	for i := len(c.steps); i < c.renderedLines; i++ {
		fmt.Fprint(c.out, "\r\033[K\n")
	}
	c.renderedLines = max(c.renderedLines, len(c.steps))
}

func (c *Checklist) line(s stepState) string {
	var icon, label string
	switch s.Status {
	case stepRunning:
		icon, label = Accent(spinFrames[c.frame]), s.Title
	case stepDone:
		icon, label = Success("✓"), s.Title
	case stepFailed:
		icon, label = ErrorStyle.Render("✗"), ErrorStyle.Render(s.Title)
	default:
		icon, label = Muted("●"), Muted(s.Title)
	}
	line := stepIndent(s) + icon + " " + label
	if s.Message != "" {
		line += " " + Muted(s.Message)
	}
	return line
}

func stepIndent(s stepState) string {
	if s.ParentID != "" {
		return "    "
	}
	return "  "
}
