package storage

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ArtifactStore persists result artifacts and produces time-limited
// signed URLs for them. The raw storage path is never handed to clients.
type ArtifactStore interface {
	Upload(data []byte, key string) (string, error)
	Open(key string) (io.ReadCloser, error)
	SignedURL(key string, ttl time.Duration) (string, error)
	VerifySignedURL(key, expires, signature string) bool
}

type fileStore struct {
	basePath string
	baseURL  string
	secret   []byte
}

func NewFileStore(basePath, baseURL, secret string) ArtifactStore {
	return &fileStore{
		basePath: basePath,
		baseURL:  baseURL,
		secret:   []byte(secret),
	}
}

func (s *fileStore) Upload(data []byte, key string) (string, error) {
	fullPath := filepath.Join(s.basePath, key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	return s.baseURL + "/artifacts/" + key, nil
}

func (s *fileStore) Open(key string) (io.ReadCloser, error) {
	// Clean the key so it cannot escape the base path
	fullPath := filepath.Join(s.basePath, filepath.Clean("/"+key))

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	return file, nil
}

// SignedURL returns a URL that verifies until now+ttl. The signature
// covers the key and the expiry timestamp.
func (s *fileStore) SignedURL(key string, ttl time.Duration) (string, error) {
	expires := strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)
	sig := s.sign(key, expires)

	u, err := url.Parse(s.baseURL + "/artifacts/" + key)
	if err != nil {
		return "", fmt.Errorf("failed to build signed url: %w", err)
	}

	q := u.Query()
	q.Set("expires", expires)
	q.Set("signature", sig)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (s *fileStore) VerifySignedURL(key, expires, signature string) bool {
	ts, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || time.Now().Unix() > ts {
		return false
	}
	expected := s.sign(key, expires)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *fileStore) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key + ":" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}
