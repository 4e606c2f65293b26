// Package clipboard copies tab-separated receipt data to the system
// clipboard and tracks the short-lived "Copied!" confirmation.
package clipboard

import (
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// FeedbackWindow is how long Copied reports true after a successful copy
const FeedbackWindow = 2 * time.Second

// Writer places text on a clipboard
type Writer interface {
	WriteAll(text string) error
}

type systemWriter struct{}

func (systemWriter) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Copier writes text to a clipboard and remembers the last success for
// the feedback window. A failed write leaves the indicator unchanged.
type Copier struct {
	writer Writer
	window time.Duration

	mu     sync.Mutex
	copied bool
	gen    uint64
	timer  *time.Timer
}

// New returns a Copier for the system clipboard
func New() *Copier {
	return NewWithWriter(systemWriter{}, FeedbackWindow)
}

// NewWithWriter returns a Copier using w and the given feedback window
func NewWithWriter(w Writer, window time.Duration) *Copier {
	return &Copier{writer: w, window: window}
}

// Copy writes text to the clipboard
func (c *Copier) Copy(text string) error {
	if err := c.writer.WriteAll(text); err != nil {
		return fmt.Errorf("writing clipboard: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	gen := c.gen
	c.copied = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// a later copy restarted the window
		if c.gen == gen {
			c.copied = false
		}
	})
	return nil
}

// Copied reports whether a copy succeeded within the feedback window
func (c *Copier) Copied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copied
}
