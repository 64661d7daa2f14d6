package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	cr "cloud-keychain/internal/crypto"
	"cloud-keychain/internal/keychain"
	"cloud-keychain/internal/platform"
	"cloud-keychain/internal/storage"
)

var clipboard = platform.NewClipboard

func (s *session) create(hint string) error {
	_, err := s.store.LoadProfile(s.ctx)
	if err == nil {
		return errors.New("a keychain already exists here")
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	master, err := s.newPassword("Master password: ")
	if err != nil {
		return err
	}
	defer cr.Zero(master)

	opts := s.opts
	opts.PasswordHint = hint
	k, err := keychain.Create(master, opts)
	if err != nil {
		return err
	}
	defer k.Lock()
	if err := s.save(k); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Keychain created:", k.UUID())
	return nil
}

func (s *session) add(l keychain.Login) error {
	pass, err := s.itemPassword(l.Password)
	if err != nil {
		return err
	}
	l.Password = pass

	k, err := s.unlock()
	if err != nil {
		return err
	}
	defer k.Lock()

	it, err := k.CreateItem(l)
	if err != nil {
		return err
	}
	if err := s.save(k); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Added item:", it.UUID())
	return nil
}

// itemPassword resolves gen:N and prompts when no password was given.
func (s *session) itemPassword(arg string) (string, error) {
	if arg != "" {
		return resolvePassword(arg)
	}
	b, err := s.newPassword("Item password: ")
	if err != nil {
		return "", err
	}
	defer cr.Zero(b)
	return string(b), nil
}

func (s *session) get(query string, print, clip bool, ttl time.Duration) error {
	k, err := s.unlock()
	if err != nil {
		return err
	}
	defer k.Lock()

	it, err := lookup(k, query)
	if err != nil {
		return err
	}
	if err := it.Unlock(keychain.SectionAll); err != nil {
		return err
	}
	d, err := it.Details()
	if err != nil {
		return err
	}
	o, err := it.Overview()
	if err != nil {
		return err
	}
	formatItem(s.out, it, o, d, print)

	if !clip {
		return nil
	}
	pass, ok := d.Field("password")
	if !ok {
		return errors.New("item has no password field")
	}
	if err := clipboard().Set(pass, ttl); err != nil {
		return err
	}
	k.Lock()
	if ttl > 0 {
		fmt.Fprintf(s.out, "Password copied, clearing in %s\n", ttl)
		s.sleep(ttl + clipboardGrace)
	} else {
		fmt.Fprintln(s.out, "Password copied")
	}
	return nil
}

// lookup resolves query as an item uuid first, then as a title pattern that
// must match exactly one item.
func lookup(k *keychain.Keychain, query string) (*keychain.Item, error) {
	it, err := k.Item(query)
	if err == nil {
		return it, nil
	}
	if !errors.Is(err, keychain.ErrNotFound) {
		return nil, err
	}
	found, err := k.FindItems(query)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no item matches %q", query)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%d items match %q; use a uuid", len(found), query)
	}
}

func (s *session) list(trashed bool) error {
	k, err := s.unlock()
	if err != nil {
		return err
	}
	defer k.Lock()

	var items []*keychain.Item
	for _, it := range k.Items() {
		if it.Trashed() && !trashed {
			continue
		}
		items = append(items, it)
	}
	formatList(s.out, items)
	return nil
}

func (s *session) find(pattern string) error {
	k, err := s.unlock()
	if err != nil {
		return err
	}
	defer k.Lock()

	found, err := k.FindItems(pattern)
	if err != nil {
		return err
	}
	formatList(s.out, found)
	return nil
}

func (s *session) setPass(id, arg string) error {
	pass, err := s.itemPassword(arg)
	if err != nil {
		return err
	}
	k, err := s.unlock()
	if err != nil {
		return err
	}
	defer k.Lock()

	it, err := k.Item(id)
	if err != nil {
		return err
	}
	if err := it.Unlock(keychain.SectionDetails); err != nil {
		return err
	}
	d, err := it.Details()
	if err != nil {
		return err
	}
	setPasswordField(d, pass)
	it.SetDetails(d)
	if err := it.Encrypt(keychain.SectionDetails); err != nil {
		return err
	}
	if err := s.save(k); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Password updated for item:", id)
	return nil
}

// setPasswordField updates the password-designated field, adding one if the
// item has none. Other fields are left alone.
func setPasswordField(d *keychain.Details, pass string) {
	for i := range d.Fields {
		if d.Fields[i].Designation == "password" {
			d.Fields[i].Value = pass
			return
		}
	}
	d.Fields = append(d.Fields, keychain.Field{Type: "P", Name: "password", Value: pass, Designation: "password"})
}

func (s *session) passwd() error {
	k, err := storage.Open(s.ctx, s.store, s.opts)
	if err != nil {
		return err
	}
	defer k.Lock()

	old, err := s.prompt("Current password: ")
	if err != nil {
		return err
	}
	defer cr.Zero(old)
	next, err := s.newPassword("New password: ")
	if err != nil {
		return err
	}
	defer cr.Zero(next)

	if err := k.ChangePassword(old, next); err != nil {
		return err
	}
	if err := s.save(k); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Keychain password changed")
	return nil
}

func (s *session) delete(id string, purge bool) error {
	k, err := s.unlock()
	if err != nil {
		return err
	}
	defer k.Lock()

	it, err := k.Item(id)
	if err != nil {
		return err
	}
	if purge {
		if err := k.RemoveItem(id); err != nil {
			return err
		}
	} else {
		it.SetTrashed(true)
	}
	if err := s.save(k); err != nil {
		return err
	}
	logrus.WithField("item", id).WithField("purge", purge).Debug("item deleted")
	fmt.Fprintln(s.out, "Deleted item:", id)
	return nil
}
