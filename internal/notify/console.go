package notify

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ConsoleSink renders notifications onto a terminal: toasts as timestamped
// lines, sounds as the terminal bell.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSink writes notifications to out.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

// ShowToast prints one notification line.
func (c *ConsoleSink) ShowToast(t Toast) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	suffix := ""
	if t.Sticky {
		suffix = " (pinned)"
	}
	_, err := fmt.Fprintf(c.out, "%s  %s: %s%s\n", time.Now().Format("15:04:05"), t.Title, t.Body, suffix)
	return err
}

// PlaySound rings the terminal bell.
func (c *ConsoleSink) PlaySound(Sound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprint(c.out, "\a")
	return err
}
