package keychain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	personal := newTestKeychain(t, Options{})
	shared := newTestKeychain(t, Options{})
	_, err := personal.CreateItem(Login{Title: "Mail"})
	require.NoError(t, err)
	_, err = shared.CreateItem(Login{Title: "Team mail"})
	require.NoError(t, err)
	_, err = shared.CreateItem(Login{Title: "Router"})
	require.NoError(t, err)

	a := r.Add(personal, "/home/a/1Password.cloudkeychain")
	b := r.Add(shared, "/srv/shared.cloudkeychain")
	assert.NotEqual(t, a, b)

	got, ok := r.Get(b)
	require.True(t, ok)
	assert.Same(t, shared, got)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, a, list[0].ID)
	assert.Equal(t, "/srv/shared.cloudkeychain", list[1].Path)

	found, err := r.FindItems("mail")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	shared.Lock()
	found, err = r.FindItems("mail")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Mail", found[0].Title())

	r.Remove(a)
	_, ok = r.Get(a)
	assert.False(t, ok)
	c := r.Add(personal, "again")
	assert.NotEqual(t, a, c, "ids must not be reused")

	_, err = r.FindItems("[")
	assert.Error(t, err)
}
