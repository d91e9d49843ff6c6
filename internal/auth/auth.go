// Package auth supplies the bearer credential for the task service. It runs
// the OAuth2 authorization-code flow, persists the resulting token, and
// hands the access token to the task source on every request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Dida365 OAuth endpoints.
const (
	DefaultAuthURL  = "https://dida365.com/oauth/authorize"
	DefaultTokenURL = "https://dida365.com/oauth/token"
	DefaultScope    = "tasks:read"
)

var (
	// ErrNoCredential means no usable token is stored; the user must authorize.
	ErrNoCredential = errors.New("no credential available")

	// ErrStateMismatch is returned when a callback carries an unexpected state.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrAccessDenied is returned when the user declines authorization.
	ErrAccessDenied = errors.New("authorization denied")
)

// TokenProvider supplies the current bearer credential.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenStore persists the OAuth token between runs.
// Load returns an error wrapping ErrNoCredential when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
	Clear(ctx context.Context) error
}

// OAuthConfig holds the registered application's OAuth settings.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string   // defaults to DefaultAuthURL
	TokenURL     string   // defaults to DefaultTokenURL
	Scopes       []string // defaults to DefaultScope

	// HTTPClient is used for the token endpoint; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Flow runs the authorization-code exchange and stores the result.
type Flow struct {
	cfg    *oauth2.Config
	store  TokenStore
	client *http.Client
}

// NewFlow creates an OAuth flow backed by store.
func NewFlow(c OAuthConfig, store TokenStore) (*Flow, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, fmt.Errorf("client ID and client secret are required")
	}
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}

	authURL := c.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}

	return &Flow{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store:  store,
		client: c.HTTPClient,
	}, nil
}

// NewState returns a random value for the OAuth state parameter.
func NewState() string {
	return uuid.NewString()
}

// AuthCodeURL returns the URL the user opens to grant access.
func (f *Flow) AuthCodeURL(state string) string {
	return f.cfg.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token and stores it.
func (f *Flow) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("authorization code is empty")
	}

	// The token endpoint expects the scope again alongside the code.
	tok, err := f.cfg.Exchange(f.withClient(ctx), code,
		oauth2.SetAuthURLParam("scope", strings.Join(f.cfg.Scopes, " ")))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	if err := f.store.Save(ctx, tok); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return tok, nil
}

// refresh uses the refresh token, if the service issued one.
func (f *Flow) refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	fresh, err := f.cfg.TokenSource(f.withClient(ctx), tok).Token()
	if err != nil {
		return nil, err
	}
	if err := f.store.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to store refreshed token: %w", err)
	}
	return fresh, nil
}

func (f *Flow) withClient(ctx context.Context) context.Context {
	if f.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, f.client)
}

// Provider reads the stored token and refreshes it when possible.
type Provider struct {
	store TokenStore
	flow  *Flow
	now   func() time.Time
}

// NewProvider creates a TokenProvider. flow may be nil, in which case
// expired tokens are reported as ErrNoCredential without a refresh attempt.
func NewProvider(store TokenStore, flow *Flow) *Provider {
	return &Provider{store: store, flow: flow, now: time.Now}
}

// Token returns the current access token.
func (p *Provider) Token(ctx context.Context) (string, error) {
	tok, err := p.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if tok == nil || tok.AccessToken == "" {
		return "", ErrNoCredential
	}

	if !tok.Expiry.IsZero() && !p.now().Before(tok.Expiry) {
		if p.flow == nil || tok.RefreshToken == "" {
			return "", fmt.Errorf("%w: token expired at %s", ErrNoCredential, tok.Expiry.Format(time.RFC3339))
		}
		fresh, err := p.flow.refresh(ctx, tok)
		if err != nil {
			return "", fmt.Errorf("%w: refresh failed: %v", ErrNoCredential, err)
		}
		return fresh.AccessToken, nil
	}

	return tok.AccessToken, nil
}

// Status describes the stored credential for display.
type Status struct {
	Present bool
	Expiry  time.Time // zero when the service did not report one
	Expired bool
}

// Inspect reports whether a token is stored and whether it has expired.
func Inspect(ctx context.Context, store TokenStore, now time.Time) (Status, error) {
	tok, err := store.Load(ctx)
	if errors.Is(err, ErrNoCredential) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	st := Status{Present: tok.AccessToken != "", Expiry: tok.Expiry}
	st.Expired = !tok.Expiry.IsZero() && !now.Before(tok.Expiry)
	return st, nil
}
