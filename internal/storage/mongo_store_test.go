package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloud-keychain/internal/keychain"
)

// Runs only when KEYCHAIN_TEST_MONGO_URI points at a disposable server.
func TestMongoStoreRoundTrip(t *testing.T) {
	uri := os.Getenv("KEYCHAIN_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("KEYCHAIN_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := "keychain_test_" + time.Now().Format("20060102150405")
	s, err := NewMongoStore(ctx, uri, db, "default")
	require.NoError(t, err)
	defer func() {
		_ = s.client.Database(db).Drop(ctx)
		_ = s.Close(ctx)
	}()

	_, err = s.LoadProfile(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	k, err := keychain.Create(testPassword, quietOptions())
	require.NoError(t, err)
	a, err := k.CreateItem(keychain.Login{Title: "a"})
	require.NoError(t, err)
	_, err = k.CreateItem(keychain.Login{Title: "b"})
	require.NoError(t, err)
	require.NoError(t, Save(ctx, s, k))

	require.NoError(t, k.RemoveItem(a.UUID()))
	require.NoError(t, Save(ctx, s, k))

	loaded, err := Open(ctx, s, quietOptions())
	require.NoError(t, err)
	assert.Equal(t, k.Profile(), mustProfile(t, s))
	require.Len(t, loaded.Items(), 1)
	require.NoError(t, loaded.Unlock(testPassword))
	assert.Equal(t, "b", loaded.Items()[0].Title())
}

func mustProfile(t *testing.T, s Store) keychain.Profile {
	p, err := s.LoadProfile(context.Background())
	require.NoError(t, err)
	return p
}
