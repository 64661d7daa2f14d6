package keychain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	cr "cloud-keychain/internal/crypto"
)

const (
	DefaultIterations    = 10000
	DefaultProfileName   = "default"
	DefaultLastUpdatedBy = "Dropbox"

	saltSize         = 16
	masterSeedSize   = 256
	overviewSeedSize = 64
)

var now = time.Now

type Options struct {
	Iterations    int
	ProfileName   string
	PasswordHint  string
	LastUpdatedBy string

	// Notify is called synchronously for every Event.
	Notify func(Event)
	Logger logrus.FieldLogger
}

func (o *Options) setDefaults() {
	if o.Iterations < DefaultIterations {
		o.Iterations = DefaultIterations
	}
	if o.ProfileName == "" {
		o.ProfileName = DefaultProfileName
	}
	if o.LastUpdatedBy == "" {
		o.LastUpdatedBy = DefaultLastUpdatedBy
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
}

// Keychain holds a profile's key hierarchy and its items. The master and
// overview key pairs exist only while unlocked.
//
// A Keychain is not safe for concurrent use.
type Keychain struct {
	uuid          string
	salt          []byte
	iterations    int
	createdAt     int64
	updatedAt     int64
	profileName   string
	passwordHint  string
	lastUpdatedBy string

	masterBlob   []byte
	overviewBlob []byte

	master   *cr.KeyPair
	overview *cr.KeyPair

	items map[string]*Item
	opts  Options
	log   logrus.FieldLogger
}

func newKeychain(opts Options) *Keychain {
	opts.setDefaults()
	return &Keychain{
		items: make(map[string]*Item),
		opts:  opts,
	}
}

// Create builds a new keychain protected by password. It starts unlocked.
func Create(password []byte, opts Options) (*Keychain, error) {
	k := newKeychain(opts)
	id, err := newUUID()
	if err != nil {
		return nil, err
	}
	salt, err := cr.RandomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	ts := now().Unix()
	k.uuid = id
	k.salt = salt
	k.iterations = k.opts.Iterations
	k.createdAt, k.updatedAt = ts, ts
	k.profileName = k.opts.ProfileName
	k.passwordHint = k.opts.PasswordHint
	k.lastUpdatedBy = k.opts.LastUpdatedBy
	k.log = k.opts.Logger.WithField("keychain", k.uuid)

	masterSeed, err := cr.RandomBytes(masterSeedSize)
	if err != nil {
		return nil, err
	}
	defer cr.Zero(masterSeed)
	overviewSeed, err := cr.RandomBytes(overviewSeedSize)
	if err != nil {
		return nil, err
	}
	defer cr.Zero(overviewSeed)

	super, err := DeriveSuperKey(password, k.salt, k.iterations)
	if err != nil {
		return nil, err
	}
	defer super.Zero()
	codec := cr.NewCodec(super)
	if k.masterBlob, err = codec.Seal(cr.KindProfileKey, masterSeed); err != nil {
		return nil, err
	}
	if k.overviewBlob, err = codec.Seal(cr.KindProfileKey, overviewSeed); err != nil {
		return nil, err
	}

	if k.master, err = cr.ProfileKeyPair(masterSeed); err != nil {
		return nil, err
	}
	if k.overview, err = cr.ProfileKeyPair(overviewSeed); err != nil {
		k.master.Zero()
		k.master = nil
		return nil, err
	}
	k.log.Debug("keychain created")
	return k, nil
}

// Load rebuilds a locked keychain from its profile record. Options fields
// that the profile carries are ignored.
func Load(p Profile, opts Options) (*Keychain, error) {
	k := newKeychain(opts)
	var err error
	if k.salt, err = cr.DecodeBase64(p.Salt); err != nil {
		return nil, fmt.Errorf("%w: profile salt: %v", cr.ErrFormat, err)
	}
	if k.masterBlob, err = cr.DecodeBase64(p.MasterKey); err != nil {
		return nil, fmt.Errorf("%w: profile master key: %v", cr.ErrFormat, err)
	}
	if k.overviewBlob, err = cr.DecodeBase64(p.OverviewKey); err != nil {
		return nil, fmt.Errorf("%w: profile overview key: %v", cr.ErrFormat, err)
	}
	if p.Iterations < 1 {
		return nil, fmt.Errorf("%w: profile iterations %d", cr.ErrFormat, p.Iterations)
	}
	k.uuid = p.UUID
	k.iterations = p.Iterations
	k.createdAt = p.CreatedAt
	k.updatedAt = p.UpdatedAt
	k.profileName = p.ProfileName
	k.passwordHint = p.PasswordHint
	k.lastUpdatedBy = p.LastUpdatedBy
	k.log = k.opts.Logger.WithField("keychain", k.uuid)
	return k, nil
}

// DeriveSuperKey runs the password through PBKDF2-HMAC-SHA512 and splits the
// result into encryption and HMAC keys.
func DeriveSuperKey(password, salt []byte, iterations int) (*cr.KeyPair, error) {
	raw, err := cr.PBKDF2(password, salt, iterations, 512)
	if err != nil {
		return nil, err
	}
	defer cr.Zero(raw)
	return cr.SplitKeyPair(raw)
}

func (k *Keychain) UUID() string { return k.uuid }

func (k *Keychain) Iterations() int { return k.iterations }

func (k *Keychain) PasswordHint() string { return k.passwordHint }

func (k *Keychain) Unlocked() bool { return k.master != nil && k.overview != nil }

// Unlock derives the super key from password and opens the master and
// overview keys. A wrong password yields an error wrapping
// crypto.ErrIntegrity and leaves the keychain locked.
func (k *Keychain) Unlock(password []byte) error {
	if k.Unlocked() {
		k.log.Debug("keychain already unlocked")
		return nil
	}
	super, err := DeriveSuperKey(password, k.salt, k.iterations)
	if err != nil {
		return err
	}
	defer super.Zero()
	codec := cr.NewCodec(super)

	master, err := codec.OpenProfileKey(k.masterBlob)
	if err != nil {
		return openProfileError("master", err)
	}
	overview, err := codec.OpenProfileKey(k.overviewBlob)
	if err != nil {
		master.Zero()
		return openProfileError("overview", err)
	}
	k.master, k.overview = master, overview

	for _, it := range k.items {
		if err := it.Unlock(SectionOverview); err != nil {
			k.log.WithField("item", it.uuid).WithError(err).Warn("could not unlock item overview")
		}
	}
	k.log.Info("keychain unlocked")
	k.emit(EventUnlock, "")
	return nil
}

func openProfileError(which string, err error) error {
	if errors.Is(err, cr.ErrIntegrity) {
		return fmt.Errorf("keychain: wrong password: %w", err)
	}
	return fmt.Errorf("keychain: open %s key: %w", which, err)
}

// Lock discards the master and overview keys and every item's plaintext.
func (k *Keychain) Lock() {
	wasUnlocked := k.Unlocked()
	k.master.Zero()
	k.overview.Zero()
	k.master, k.overview = nil, nil
	for _, it := range k.items {
		it.Lock(SectionAll)
	}
	if wasUnlocked {
		k.log.Info("keychain locked")
		k.emit(EventLock, "")
	}
}

// ChangePassword re-seals the master and overview seeds under a key derived
// from newPassword. The stored blobs are replaced only when both succeed.
func (k *Keychain) ChangePassword(oldPassword, newPassword []byte) error {
	oldKey, err := DeriveSuperKey(oldPassword, k.salt, k.iterations)
	if err != nil {
		return err
	}
	defer oldKey.Zero()
	oldCodec := cr.NewCodec(oldKey)

	masterSeed, err := oldCodec.OpenBuffer(k.masterBlob)
	if err != nil {
		return openProfileError("master", err)
	}
	defer cr.Zero(masterSeed)
	overviewSeed, err := oldCodec.OpenBuffer(k.overviewBlob)
	if err != nil {
		return openProfileError("overview", err)
	}
	defer cr.Zero(overviewSeed)

	newKey, err := DeriveSuperKey(newPassword, k.salt, k.iterations)
	if err != nil {
		return err
	}
	defer newKey.Zero()
	newCodec := cr.NewCodec(newKey)
	masterBlob, err := newCodec.Seal(cr.KindProfileKey, masterSeed)
	if err != nil {
		return err
	}
	overviewBlob, err := newCodec.Seal(cr.KindProfileKey, overviewSeed)
	if err != nil {
		return err
	}

	k.masterBlob, k.overviewBlob = masterBlob, overviewBlob
	k.updatedAt = now().Unix()
	k.log.Info("keychain password changed")
	k.emit(EventPasswordChange, "")
	return nil
}

// Profile exports the persisted profile record.
func (k *Keychain) Profile() Profile {
	return Profile{
		LastUpdatedBy: k.lastUpdatedBy,
		UpdatedAt:     k.updatedAt,
		ProfileName:   k.profileName,
		Salt:          cr.EncodeBase64(k.salt),
		PasswordHint:  k.passwordHint,
		MasterKey:     cr.EncodeBase64(k.masterBlob),
		Iterations:    k.iterations,
		UUID:          k.uuid,
		OverviewKey:   cr.EncodeBase64(k.overviewBlob),
		CreatedAt:     k.createdAt,
	}
}

// CreateItem builds a new login item, seals it and adds it to the keychain.
func (k *Keychain) CreateItem(l Login) (*Item, error) {
	it, err := newLoginItem(k, l)
	if err != nil {
		return nil, err
	}
	if err := k.AddItem(it); err != nil {
		return nil, err
	}
	return it, nil
}

// AddItem stores an item created for this keychain, replacing any item
// with the same uuid.
func (k *Keychain) AddItem(it *Item) error {
	if it.keychain != k {
		return ErrForeignItem
	}
	k.items[it.uuid] = it
	k.log.WithField("item", it.uuid).Debug("item added")
	k.emit(EventItemAdded, it.uuid)
	return nil
}

// AddRecord loads a persisted item, locking any item it replaces. When the
// keychain is unlocked the item's overview is opened straight away.
// Loading is not a change, so no event is emitted.
func (k *Keychain) AddRecord(r ItemRecord) (*Item, error) {
	it, err := LoadItem(k, r)
	if err != nil {
		return nil, err
	}
	if old, ok := k.items[it.uuid]; ok {
		old.Lock(SectionAll)
	}
	k.items[it.uuid] = it
	if k.Unlocked() {
		if err := it.Unlock(SectionOverview); err != nil {
			k.log.WithField("item", it.uuid).WithError(err).Warn("could not unlock item overview")
		}
	}
	return it, nil
}

func (k *Keychain) Item(id string) (*Item, error) {
	it, ok := k.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return it, nil
}

// Items returns all items ordered by uuid.
func (k *Keychain) Items() []*Item {
	out := make([]*Item, 0, len(k.items))
	for _, it := range k.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].uuid < out[j].uuid })
	return out
}

// RemoveItem locks and forgets an item.
func (k *Keychain) RemoveItem(id string) error {
	it, ok := k.items[id]
	if !ok {
		return ErrNotFound
	}
	it.Lock(SectionAll)
	delete(k.items, id)
	k.emit(EventItemRemoved, id)
	return nil
}

// Records exports every item. It fails if any item has changes that were
// not encrypted.
func (k *Keychain) Records() ([]ItemRecord, error) {
	items := k.Items()
	out := make([]ItemRecord, 0, len(items))
	for _, it := range items {
		r, err := it.Record()
		if err != nil {
			return nil, fmt.Errorf("keychain: item %s: %w", it.uuid, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// FindItems returns the items whose overview title matches query, a
// case-insensitive regular expression. Trashed items are skipped.
func (k *Keychain) FindItems(query string) ([]*Item, error) {
	if !k.Unlocked() {
		return nil, ErrLocked
	}
	re, err := regexp.Compile("(?i)" + query)
	if err != nil {
		return nil, fmt.Errorf("keychain: bad query: %w", err)
	}
	return k.findItems(re), nil
}

func (k *Keychain) findItems(re *regexp.Regexp) []*Item {
	var out []*Item
	for _, it := range k.Items() {
		if !it.trashed && it.Match(re) {
			out = append(out, it)
		}
	}
	return out
}

// newUUID returns a random uuid as 32 uppercase hex characters.
func newUUID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ToUpper(strings.ReplaceAll(u.String(), "-", "")), nil
}
