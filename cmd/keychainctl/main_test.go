package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloud-keychain/internal/audit"
	cr "cloud-keychain/internal/crypto"
	"cloud-keychain/internal/keychain"
	"cloud-keychain/internal/platform"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	logrus.SetLevel(logrus.PanicLevel)
	os.Exit(m.Run())
}

type script struct{ answers []string }

func (s *script) next(string) ([]byte, error) {
	if len(s.answers) == 0 {
		return nil, errors.New("unexpected prompt")
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return []byte(a), nil
}

func testSession(t *testing.T, cfg config) (*session, *bytes.Buffer, *script) {
	t.Helper()
	if cfg.path == "" {
		cfg.path = filepath.Join(t.TempDir(), "1Password.cloudkeychain")
	}
	if cfg.profile == "" {
		cfg.profile = keychain.DefaultProfileName
	}
	s, err := newSession(cfg)
	require.NoError(t, err)
	t.Cleanup(s.close)
	var out bytes.Buffer
	sc := &script{}
	s.out = &out
	s.prompt = sc.next
	return s, &out, sc
}

var addedID = regexp.MustCompile(`Added item: ([0-9A-F]{32})`)

func TestSessionLifecycle(t *testing.T) {
	s, out, sc := testSession(t, config{})

	sc.answers = []string{"fred", "fred"}
	require.NoError(t, s.create("it's fred"))
	assert.Contains(t, out.String(), "Keychain created:")

	assert.Error(t, s.create(""), "second create must fail")

	out.Reset()
	sc.answers = []string{"fred"}
	require.NoError(t, s.add(keychain.Login{Title: "GitHub", Username: "octo", Password: "gen:12", URL: "https://github.com"}))
	m := addedID.FindStringSubmatch(out.String())
	require.Len(t, m, 2, out.String())
	id := m[1]

	out.Reset()
	sc.answers = []string{"fred"}
	require.NoError(t, s.get("git", false, false, 0))
	assert.Contains(t, out.String(), "GitHub")
	assert.Contains(t, out.String(), "octo")
	assert.Contains(t, out.String(), redacted)

	out.Reset()
	sc.answers = []string{"fred"}
	require.NoError(t, s.setPass(id, "hunter2"))

	out.Reset()
	sc.answers = []string{"fred"}
	require.NoError(t, s.get(id, true, false, 0))
	assert.Contains(t, out.String(), "hunter2")
	assert.NotContains(t, out.String(), redacted)

	sc.answers = []string{"wrong"}
	err := s.get(id, false, false, 0)
	assert.ErrorIs(t, err, cr.ErrIntegrity)

	out.Reset()
	sc.answers = []string{"fred"}
	require.NoError(t, s.list(false))
	assert.Contains(t, out.String(), "Login")
	assert.Contains(t, out.String(), id)

	sc.answers = []string{"fred"}
	require.NoError(t, s.delete(id, false))
	out.Reset()
	sc.answers = []string{"fred"}
	require.NoError(t, s.list(false))
	assert.Equal(t, "no items\n", out.String())
	out.Reset()
	sc.answers = []string{"fred"}
	require.NoError(t, s.list(true))
	assert.Contains(t, out.String(), "(trashed)")

	sc.answers = []string{"fred", "barney", "barney"}
	require.NoError(t, s.passwd())

	sc.answers = []string{"fred"}
	assert.ErrorIs(t, s.list(false), cr.ErrIntegrity)

	sc.answers = []string{"barney"}
	require.NoError(t, s.delete(id, true))
	out.Reset()
	sc.answers = []string{"barney"}
	require.NoError(t, s.find("git"))
	assert.Equal(t, "no items\n", out.String())
}

func TestGetShowsOneTimeCode(t *testing.T) {
	s, out, sc := testSession(t, config{})
	sc.answers = []string{"fred", "fred"}
	require.NoError(t, s.create(""))

	sc.answers = []string{"fred"}
	require.NoError(t, s.add(keychain.Login{Title: "Bank", Password: "p", OTP: "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"}))

	now = func() time.Time { return time.Unix(1234567890, 0) }
	defer func() { now = time.Now }()
	out.Reset()
	sc.answers = []string{"fred"}
	require.NoError(t, s.get("bank", false, false, 0))
	assert.Contains(t, out.String(), "005924 (30s left)")
	assert.NotContains(t, out.String(), "GEZDGNBV")
}

type memClipboard struct {
	text string
	ttl  time.Duration
}

func (c *memClipboard) Set(text string, ttl time.Duration) error {
	c.text, c.ttl = text, ttl
	return nil
}

func TestGetClipLocksBeforeWaiting(t *testing.T) {
	s, out, sc := testSession(t, config{})
	sc.answers = []string{"fred", "fred"}
	require.NoError(t, s.create(""))
	sc.answers = []string{"fred"}
	require.NoError(t, s.add(keychain.Login{Title: "Mail", Password: "hunter2"}))

	clip := &memClipboard{}
	clipboard = func() platform.Clipboard { return clip }
	defer func() { clipboard = platform.NewClipboard }()

	var events []keychain.EventType
	s.opts.Notify = func(ev keychain.Event) { events = append(events, ev.Type) }
	var slept time.Duration
	s.sleep = func(d time.Duration) {
		slept = d
		require.NotEmpty(t, events)
		assert.Equal(t, keychain.EventLock, events[len(events)-1], "keychain must be locked while waiting")
	}

	out.Reset()
	sc.answers = []string{"fred"}
	require.NoError(t, s.get("mail", false, true, 5*time.Second))
	assert.Equal(t, "hunter2", clip.text)
	assert.Equal(t, 5*time.Second, clip.ttl)
	assert.Equal(t, 5*time.Second+clipboardGrace, slept)
	assert.Equal(t, []keychain.EventType{keychain.EventUnlock, keychain.EventLock}, events)
	assert.NotContains(t, out.String(), "hunter2")
}

func TestSessionWithoutKeychain(t *testing.T) {
	s, _, _ := testSession(t, config{})
	err := s.list(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create")
}

func TestCreatePasswordMismatch(t *testing.T) {
	s, _, sc := testSession(t, config{})
	sc.answers = []string{"fred", "barney"}
	assert.Error(t, s.create(""))
	_, err := os.Stat(filepath.Join(s.store.(interface{ Dir() string }).Dir(), "profile.js"))
	assert.True(t, os.IsNotExist(err))
}

func TestSessionAudit(t *testing.T) {
	dir := t.TempDir()
	cfg := config{
		path:      filepath.Join(dir, "kc"),
		auditPath: filepath.Join(dir, "audit.log"),
	}
	s, _, sc := testSession(t, cfg)
	sc.answers = []string{"fred", "fred"}
	require.NoError(t, s.create(""))
	sc.answers = []string{"fred"}
	require.NoError(t, s.add(keychain.Login{Title: "Mail", Password: "p"}))
	s.close()

	f, err := os.Open(cfg.auditPath)
	require.NoError(t, err)
	defer f.Close()
	l, err := audit.Load(f)
	require.NoError(t, err)
	var what []string
	for _, e := range l.Entries() {
		what = append(what, e.What)
	}
	assert.Contains(t, what, "unlock")
	assert.Contains(t, what, "item-added")
	assert.Contains(t, what, "lock")

	// A second session continues the same chain.
	s2, _, sc2 := testSession(t, cfg)
	sc2.answers = []string{"fred"}
	require.NoError(t, s2.list(false))
	s2.close()
	b, err := os.ReadFile(cfg.auditPath)
	require.NoError(t, err)
	l2, err := audit.Load(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Greater(t, len(l2.Entries()), len(l.Entries()))
}

func TestLookupAmbiguous(t *testing.T) {
	k, err := keychain.Create([]byte("fred"), keychain.Options{Logger: logrus.New()})
	require.NoError(t, err)
	for _, title := range []string{"Gmail", "GitHub"} {
		_, err := k.CreateItem(keychain.Login{Title: title})
		require.NoError(t, err)
	}
	_, err = lookup(k, "^g")
	assert.ErrorContains(t, err, "2 items match")
	_, err = lookup(k, "nothing")
	assert.ErrorContains(t, err, "no item matches")
	it, err := lookup(k, "hub")
	require.NoError(t, err)
	assert.Equal(t, "GitHub", it.Title())
}

func TestResolvePassword(t *testing.T) {
	p, err := resolvePassword("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", p)

	for in, n := range map[string]int{"gen:16": 16, "gen:": genDefault, "gen:x": genDefault, "gen:-3": genDefault} {
		p, err := resolvePassword(in)
		require.NoError(t, err, in)
		assert.Len(t, p, n, in)
		for _, c := range p {
			assert.True(t, strings.ContainsRune(genAlphabet, c), "%q not in alphabet", c)
		}
	}
	_, err = resolvePassword("gen:100000")
	assert.Error(t, err)
}

func TestTrimNewline(t *testing.T) {
	assert.Equal(t, "abc", string(trimNewline([]byte("abc\r\n"))))
	assert.Equal(t, "abc", string(trimNewline([]byte("abc\n"))))
	assert.Equal(t, "abc", string(trimNewline([]byte("abc"))))
	assert.Equal(t, "", string(trimNewline([]byte("\n"))))
}

func TestSetPasswordField(t *testing.T) {
	d := &keychain.Details{Fields: []keychain.Field{{Name: "username", Value: "u", Designation: "username"}}}
	setPasswordField(d, "one")
	setPasswordField(d, "two")
	require.Len(t, d.Fields, 2)
	v, _ := d.Field("password")
	assert.Equal(t, "two", v)
}
