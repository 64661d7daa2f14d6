package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"cloud-keychain/internal/keychain"
)

var ErrBrokenChain = errors.New("audit: chain broken")

// Entry is one hash-chained record of a keychain event. Only identifiers
// are logged.
type Entry struct {
	TS       int64  `json:"ts"`
	What     string `json:"what"`
	Keychain string `json:"keychain"`
	Item     string `json:"item,omitempty"`
	Hash     string `json:"hash"`
}

type Log struct {
	lastHash []byte
	entries  []Entry
	out      io.Writer
}

func New() *Log { return &Log{} }

// Load reads JSON-lines entries written by a previous Log and checks the
// chain.
func Load(r io.Reader) (*Log, error) {
	l := New()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("audit: entry %d: %w", len(l.entries), err)
		}
		l.entries = append(l.entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := l.Verify(); err != nil {
		return nil, err
	}
	if n := len(l.entries); n > 0 {
		l.lastHash, _ = hex.DecodeString(l.entries[n-1].Hash)
	}
	return l, nil
}

// SetOutput makes the log append each new entry to w as a JSON line.
func (l *Log) SetOutput(w io.Writer) { l.out = w }

// Record appends ev to the chain. When the output write fails the entry is
// dropped and the chain is left where it was, so the next entry links to
// the last one that was persisted.
func (l *Log) Record(ev keychain.Event) (Entry, error) {
	e := Entry{
		TS:       ev.Time.Unix(),
		What:     ev.Type.String(),
		Keychain: ev.Keychain,
		Item:     ev.Item,
	}
	sum := chain(l.lastHash, e)
	e.Hash = hex.EncodeToString(sum)

	if l.out != nil {
		b, err := json.Marshal(e)
		if err != nil {
			return Entry{}, err
		}
		if _, err := l.out.Write(append(b, '\n')); err != nil {
			return Entry{}, fmt.Errorf("audit: write: %w", err)
		}
	}
	l.lastHash = sum
	l.entries = append(l.entries, e)
	return e, nil
}

func (l *Log) Verify() error {
	var prev []byte
	for i, e := range l.entries {
		sum := chain(prev, e)
		if hex.EncodeToString(sum) != e.Hash {
			return fmt.Errorf("%w at entry %d", ErrBrokenChain, i)
		}
		prev = sum
	}
	return nil
}

func (l *Log) Entries() []Entry { return append([]Entry(nil), l.entries...) }

func chain(prev []byte, e Entry) []byte {
	h := sha256.New()
	h.Write(prev)
	for _, s := range []string{strconv.FormatInt(e.TS, 10), e.What, e.Keychain, e.Item} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return h.Sum(nil)
}
