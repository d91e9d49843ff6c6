package redis

import (
	"context"
	"fmt"

	"github.com/Jayphen/dida-digest/internal/auth"
	"golang.org/x/oauth2"
)

// TokenStore keeps the OAuth token in Redis so several hosts can share one
// authorization.
type TokenStore struct {
	c   *Client
	key string
}

// NewTokenStore returns an auth.TokenStore backed by c.
func NewTokenStore(c *Client) *TokenStore {
	return &TokenStore{c: c, key: TokenKey}
}

// Load reads the stored token.
func (s *TokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	data, err := s.c.rdb.Get(ctx, s.key).Bytes()
	if isNil(err) {
		return nil, fmt.Errorf("%w: no token in redis", auth.ErrNoCredential)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	return auth.DecodeToken(data)
}

// Save stores tok without expiry; staleness is judged from the token itself.
func (s *TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	data, err := auth.EncodeToken(tok)
	if err != nil {
		return err
	}
	return s.c.rdb.Set(ctx, s.key, data, 0).Err()
}

// Clear deletes the stored token.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.c.rdb.Del(ctx, s.key).Err()
}
