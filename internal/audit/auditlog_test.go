package audit

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud-keychain/internal/keychain"
)

func events() []keychain.Event {
	ts := time.Unix(1700000000, 0)
	return []keychain.Event{
		{Type: keychain.EventUnlock, Keychain: "K1", Time: ts},
		{Type: keychain.EventItemAdded, Keychain: "K1", Item: "I1", Time: ts.Add(time.Second)},
		{Type: keychain.EventLock, Keychain: "K1", Time: ts.Add(2 * time.Second)},
	}
}

func TestRecordAndVerify(t *testing.T) {
	l := New()
	for _, ev := range events() {
		if _, err := l.Record(ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := l.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	entries := l.Entries()
	if len(entries) != 3 || entries[1].What != "item-added" || entries[1].Item != "I1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Hash == entries[1].Hash {
		t.Fatal("expected distinct hashes")
	}
}

func TestVerifyDetectsTamper(t *testing.T) {
	l := New()
	for _, ev := range events() {
		l.Record(ev)
	}
	l.entries[1].Item = "I2"
	if err := l.Verify(); !errors.Is(err, ErrBrokenChain) {
		t.Fatalf("expected broken chain, got %v", err)
	}
}

func TestPersistAndLoad(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	evs := events()
	for _, ev := range evs[:2] {
		if _, err := l.Record(ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("wrote %d lines", n)
	}

	l2, err := Load(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	l2.SetOutput(&buf)
	if _, err := l2.Record(evs[2]); err != nil {
		t.Fatalf("record: %v", err)
	}
	data := buf.String()
	l3, err := Load(strings.NewReader(data))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(l3.Entries()) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(l3.Entries()))
	}

	tampered := strings.Replace(data, `"what":"unlock"`, `"what":"lock"`, 1)
	if _, err := Load(strings.NewReader(tampered)); !errors.Is(err, ErrBrokenChain) {
		t.Fatalf("expected broken chain, got %v", err)
	}
}

// flakyWriter fails the write numbered failOn (1-based) and passes the rest
// through to buf.
type flakyWriter struct {
	buf    bytes.Buffer
	n      int
	failOn int
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.n++
	if w.n == w.failOn {
		return 0, errors.New("disk full")
	}
	return w.buf.Write(p)
}

func TestRecordWriteFailureKeepsChain(t *testing.T) {
	w := &flakyWriter{failOn: 2}
	l := New()
	l.SetOutput(w)

	evs := events()
	if _, err := l.Record(evs[0]); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := l.Record(evs[1]); err == nil {
		t.Fatal("expected write error")
	}
	if len(l.Entries()) != 1 {
		t.Fatalf("failed entry kept in memory: %d entries", len(l.Entries()))
	}
	if _, err := l.Record(evs[2]); err != nil {
		t.Fatalf("record after failure: %v", err)
	}

	reloaded, err := Load(bytes.NewReader(w.buf.Bytes()))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := reloaded.Entries()
	if len(got) != 2 || got[0].What != "unlock" || got[1].What != "lock" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[1].Hash != l.Entries()[1].Hash {
		t.Fatal("persisted chain differs from memory")
	}
}
