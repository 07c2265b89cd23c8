package storage

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Upload(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "http://localhost:8080", "test-secret")

	fileURL, err := store.Upload([]byte("%PDF-1.4 test"), "results/abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/artifacts/results/abc.pdf", fileURL)

	data, err := os.ReadFile(filepath.Join(dir, "results", "abc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 test"), data)
}

func TestFileStore_Open(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "http://localhost:8080", "test-secret")

	_, err := store.Upload([]byte("%PDF-1.4 test"), "results/abc.pdf")
	require.NoError(t, err)

	file, err := store.Open("results/abc.pdf")
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 test"), data)

	t.Run("missing artifact", func(t *testing.T) {
		_, err := store.Open("results/missing.pdf")
		assert.Error(t, err)
	})

	t.Run("key cannot escape the base path", func(t *testing.T) {
		outside := filepath.Join(filepath.Dir(dir), "outside.txt")
		require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))

		_, err := store.Open("../outside.txt")
		assert.Error(t, err)
	})
}

func TestFileStore_SignedURLRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir(), "http://localhost:8080", "test-secret")

	signed, err := store.SignedURL("results/abc.pdf", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	expires := u.Query().Get("expires")
	signature := u.Query().Get("signature")
	require.NotEmpty(t, expires)
	require.NotEmpty(t, signature)

	assert.True(t, store.VerifySignedURL("results/abc.pdf", expires, signature))

	t.Run("tampered key fails", func(t *testing.T) {
		assert.False(t, store.VerifySignedURL("results/other.pdf", expires, signature))
	})

	t.Run("tampered signature fails", func(t *testing.T) {
		assert.False(t, store.VerifySignedURL("results/abc.pdf", expires, "deadbeef"))
	})

	t.Run("tampered expiry fails", func(t *testing.T) {
		later := strconv.FormatInt(time.Now().Add(48*time.Hour).Unix(), 10)
		assert.False(t, store.VerifySignedURL("results/abc.pdf", later, signature))
	})

	t.Run("expired url fails", func(t *testing.T) {
		past := strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)
		// Even a correctly signed but expired pair fails
		expiredStore := store.(*fileStore)
		assert.False(t, store.VerifySignedURL("results/abc.pdf", past, expiredStore.sign("results/abc.pdf", past)))
	})

	t.Run("different secret fails", func(t *testing.T) {
		other := NewFileStore(t.TempDir(), "http://localhost:8080", "other-secret")
		assert.False(t, other.VerifySignedURL("results/abc.pdf", expires, signature))
	})
}
