package platform

import (
	"errors"
	"time"

	"github.com/atotto/clipboard"
)

var ErrNoClipboard = errors.New("platform: no clipboard available")

type Clipboard interface {
	// Set copies text and clears it after ttl, unless something else was
	// copied in the meantime. A zero ttl never clears.
	Set(text string, ttl time.Duration) error
}

// backend is the raw clipboard. Tests swap it.
type backend interface {
	ReadAll() (string, error)
	WriteAll(string) error
}

type systemBackend struct{}

func (systemBackend) ReadAll() (string, error) { return clipboard.ReadAll() }
func (systemBackend) WriteAll(s string) error  { return clipboard.WriteAll(s) }

type sysClipboard struct {
	b     backend
	after func(time.Duration, func()) *time.Timer
}

func (c *sysClipboard) Set(text string, ttl time.Duration) error {
	if err := c.b.WriteAll(text); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	c.after(ttl, func() {
		if cur, err := c.b.ReadAll(); err == nil && cur == text {
			_ = c.b.WriteAll("")
		}
	})
	return nil
}

type noopClipboard struct{}

func (noopClipboard) Set(string, time.Duration) error { return ErrNoClipboard }

// NewClipboard returns the system clipboard, or one whose Set always fails
// with ErrNoClipboard when no clipboard utility is installed.
func NewClipboard() Clipboard {
	if clipboard.Unsupported {
		return noopClipboard{}
	}
	return &sysClipboard{b: systemBackend{}, after: time.AfterFunc}
}
