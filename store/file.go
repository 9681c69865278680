// Package store provides TokenStore implementations: a file-backed JSON
// store, a Redis-backed store, and an in-memory store for tests.
//
// Stores persist exactly two string values, the access and refresh tokens,
// and always clear them together. They never validate token shape: a garbage
// value round-trips intact and surfaces later as a claim-decode miss.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	authkit "github.com/pulsefit/authkit-go"
)

// File persists the token pair as a JSON file with owner-only permissions.
type File struct {
	path string
	mu   sync.Mutex
}

// compile-time check
var _ authkit.TokenStore = (*File)(nil)

// NewFile creates a file-backed store at path. The parent directory must
// exist; the file is created on first Save.
func NewFile(path string) *File {
	return &File{path: path}
}

type filePayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Save durably replaces the stored pair. The file is written to a temp
// sibling and renamed so a crash never leaves a half-written pair.
func (f *File) Save(_ context.Context, pair authkit.TokenPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(filePayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("store: encode pair: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("store: replace %s: %w", filepath.Base(f.path), err)
	}
	return nil
}

// Load returns the stored pair, or (nil, nil) when no file exists.
func (f *File) Load(_ context.Context) (*authkit.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", filepath.Base(f.path), err)
	}

	var payload filePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", filepath.Base(f.path), err)
	}
	return &authkit.TokenPair{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}, nil
}

// Clear removes the file. Clearing an absent file is not an error.
func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: remove %s: %w", filepath.Base(f.path), err)
	}
	return nil
}
