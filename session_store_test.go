package mtprotosender

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSessionStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileSessionStore(filepath.Join(dir, "session.bin"))

	snap := SessionSnapshot{ID: 123, Salt: 456, TimeOffset: -7, AuthKey: []byte("0123456789abcdef")}
	require.NoError(t, store.Save(snap))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestFileSessionStoreLoadMissing(t *testing.T) {
	dir := t.TempDir()
	store := NewFileSessionStore(filepath.Join(dir, "does-not-exist.bin"))
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSessionData)
}

func TestEncryptedFileSessionStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewEncryptedFileSessionStore(filepath.Join(dir, "session.enc"), []byte("correct horse battery staple"))

	snap := SessionSnapshot{ID: 999, Salt: 111, TimeOffset: 3, AuthKey: []byte("some raw auth key bytes")}
	require.NoError(t, store.Save(snap))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestEncryptedFileSessionStoreWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.enc")
	writer := NewEncryptedFileSessionStore(path, []byte("right passphrase"))
	require.NoError(t, writer.Save(SessionSnapshot{ID: 1, Salt: 2, AuthKey: []byte("key")}))

	reader := NewEncryptedFileSessionStore(path, []byte("wrong passphrase"))
	_, err := reader.Load()
	require.Error(t, err)
}

func TestEncryptedFileSessionStoreLoadMissing(t *testing.T) {
	dir := t.TempDir()
	store := NewEncryptedFileSessionStore(filepath.Join(dir, "absent.enc"), []byte("pass"))
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSessionData)
}
