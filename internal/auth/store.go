package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenPath matches the cache location of earlier releases.
const DefaultTokenPath = "data/token_cache"

// cachedToken is the persisted form. It is a superset of the raw token
// endpoint response, so caches written from that response still load.
type cachedToken struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresIn    int64      `json:"expires_in,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
}

// EncodeToken serializes tok for storage.
func EncodeToken(tok *oauth2.Token) ([]byte, error) {
	if tok == nil {
		return nil, fmt.Errorf("nil token")
	}
	ct := cachedToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		ct.Scope = scope
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		ct.Expiry = &expiry
	}
	return json.MarshalIndent(ct, "", "  ")
}

// DecodeToken parses a stored token. A bare expires_in without an expiry
// carries no reference time and is ignored.
func DecodeToken(data []byte) (*oauth2.Token, error) {
	var ct cachedToken
	if err := json.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("invalid token cache: %w", err)
	}
	if ct.AccessToken == "" {
		return nil, fmt.Errorf("%w: cached token has no access_token", ErrNoCredential)
	}

	tok := &oauth2.Token{
		AccessToken:  ct.AccessToken,
		TokenType:    ct.TokenType,
		RefreshToken: ct.RefreshToken,
	}
	if ct.Expiry != nil {
		tok.Expiry = *ct.Expiry
	}
	return tok, nil
}

// FileStore keeps the token in a JSON file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed token store.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultTokenPath
	}
	return &FileStore{path: path}
}

// Path returns the cache file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the cached token.
func (s *FileStore) Load(ctx context.Context) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no token cache at %s", ErrNoCredential, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}
	return DecodeToken(data)
}

// Save writes the token atomically.
func (s *FileStore) Save(ctx context.Context, tok *oauth2.Token) error {
	data, err := EncodeToken(tok)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace token cache: %w", err)
	}
	return nil
}

// Clear removes the cached token. A missing file is not an error.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
