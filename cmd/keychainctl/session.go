package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"cloud-keychain/internal/audit"
	cr "cloud-keychain/internal/crypto"
	"cloud-keychain/internal/keychain"
	"cloud-keychain/internal/storage"
)

type config struct {
	path       string
	profile    string
	mongoURI   string
	db         string
	iterations int
	auditPath  string
	verbose    bool
}

// session binds one store, an optional audit log and the output streams
// for a single command run.
type session struct {
	ctx    context.Context
	store  storage.Store
	opts   keychain.Options
	out    io.Writer
	prompt func(string) ([]byte, error)
	sleep  func(time.Duration)

	audit   *audit.Log
	closers []func() error
}

func newSession(cfg config) (*session, error) {
	s := &session{
		ctx:    context.Background(),
		out:    os.Stdout,
		prompt: promptSecret,
		sleep:  time.Sleep,
	}
	store, closer, err := buildStore(s.ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.store = store
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	s.opts = keychain.Options{
		Iterations:  cfg.iterations,
		ProfileName: cfg.profile,
		Logger:      logrus.StandardLogger(),
	}
	if cfg.auditPath != "" {
		if err := s.openAudit(cfg.auditPath); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

func buildStore(ctx context.Context, cfg config) (storage.Store, func() error, error) {
	if cfg.mongoURI == "" {
		return storage.NewFileStore(cfg.path, cfg.profile), nil, nil
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ms, err := storage.NewMongoStore(cctx, cfg.mongoURI, cfg.db, cfg.profile)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	return ms, func() error { return ms.Close(context.Background()) }, nil
}

// openAudit resumes the chain stored at path and appends new events to it.
func (s *session) openAudit(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	l, err := audit.Load(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("audit log %s: %w", path, err)
	}
	l.SetOutput(f)
	s.audit = l
	s.closers = append(s.closers, f.Close)
	s.opts.Notify = s.record
	return nil
}

func (s *session) record(ev keychain.Event) {
	if _, err := s.audit.Record(ev); err != nil {
		logrus.WithError(err).Warn("audit entry not written")
	}
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logrus.WithError(err).Debug("close")
		}
	}
	s.closers = nil
}

// unlock loads the keychain and unlocks it with a prompted password. The
// caller must Lock it.
func (s *session) unlock() (*keychain.Keychain, error) {
	k, err := storage.Open(s.ctx, s.store, s.opts)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.New("no keychain here; run create first")
	}
	if err != nil {
		return nil, err
	}
	prompt := "Master password: "
	if hint := k.PasswordHint(); hint != "" {
		prompt = fmt.Sprintf("Master password (hint: %s): ", hint)
	}
	master, err := s.prompt(prompt)
	if err != nil {
		return nil, err
	}
	defer cr.Zero(master)
	if err := k.Unlock(master); err != nil {
		return nil, err
	}
	return k, nil
}

func (s *session) save(k *keychain.Keychain) error {
	return storage.Save(s.ctx, s.store, k)
}

// newPassword prompts twice and fails if the answers differ.
func (s *session) newPassword(prompt string) ([]byte, error) {
	first, err := s.prompt(prompt)
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, errors.New("empty password")
	}
	second, err := s.prompt("Repeat: ")
	if err != nil {
		cr.Zero(first)
		return nil, err
	}
	defer cr.Zero(second)
	if !bytes.Equal(first, second) {
		cr.Zero(first)
		return nil, errors.New("passwords do not match")
	}
	return first, nil
}
