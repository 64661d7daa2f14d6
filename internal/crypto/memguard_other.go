//go:build !linux && !darwin

package crypto

func mlock(b []byte) error   { return nil }
func munlock(b []byte) error { return nil }
