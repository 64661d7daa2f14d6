package platform

import (
	"errors"
	"testing"
	"time"
)

type memBackend struct {
	data string
	fail bool
}

func (m *memBackend) ReadAll() (string, error) { return m.data, nil }

func (m *memBackend) WriteAll(s string) error {
	if m.fail {
		return errors.New("no display")
	}
	m.data = s
	return nil
}

// manual fires timers only when run is called.
type manual struct{ pending []func() }

func (m *manual) after(_ time.Duration, f func()) *time.Timer {
	m.pending = append(m.pending, f)
	return nil
}

func (m *manual) run() {
	for _, f := range m.pending {
		f()
	}
	m.pending = nil
}

func TestClipboardClearsAfterTTL(t *testing.T) {
	b := &memBackend{}
	m := &manual{}
	c := &sysClipboard{b: b, after: m.after}

	if err := c.Set("hunter2", time.Second); err != nil {
		t.Fatal(err)
	}
	if b.data != "hunter2" {
		t.Fatalf("clipboard = %q", b.data)
	}
	m.run()
	if b.data != "" {
		t.Fatalf("clipboard not cleared: %q", b.data)
	}
}

func TestClipboardKeepsForeignContent(t *testing.T) {
	b := &memBackend{}
	m := &manual{}
	c := &sysClipboard{b: b, after: m.after}

	if err := c.Set("hunter2", time.Second); err != nil {
		t.Fatal(err)
	}
	b.data = "something else"
	m.run()
	if b.data != "something else" {
		t.Fatalf("clipboard overwritten: %q", b.data)
	}
}

func TestClipboardZeroTTL(t *testing.T) {
	b := &memBackend{}
	m := &manual{}
	c := &sysClipboard{b: b, after: m.after}
	if err := c.Set("x", 0); err != nil {
		t.Fatal(err)
	}
	if len(m.pending) != 0 {
		t.Fatal("zero ttl should not schedule a clear")
	}
}

func TestClipboardWriteError(t *testing.T) {
	c := &sysClipboard{b: &memBackend{fail: true}, after: (&manual{}).after}
	if err := c.Set("x", time.Second); err == nil {
		t.Fatal("expected error")
	}
}

func TestNoopClipboard(t *testing.T) {
	if err := (noopClipboard{}).Set("x", 0); !errors.Is(err, ErrNoClipboard) {
		t.Fatalf("got %v", err)
	}
}
