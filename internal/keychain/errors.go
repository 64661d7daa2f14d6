package keychain

import "errors"

var (
	ErrLocked        = errors.New("keychain: locked")
	ErrSectionLocked = errors.New("keychain: section has no plaintext")
	ErrDependency    = errors.New("keychain: item keys unavailable")
	ErrNotFound      = errors.New("keychain: item not found")
	ErrUnsealed      = errors.New("keychain: item has unencrypted changes")
	ErrForeignItem   = errors.New("keychain: item belongs to another keychain")
)
