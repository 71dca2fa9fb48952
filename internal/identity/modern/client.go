// Package modern implements the OAuth-style identity provider client.
// Interactive login runs an authorization-code flow: a local callback
// server is started, the user's browser is opened at the provider's
// authorize URL, and the returned code is exchanged for tokens. Refresh
// exchanges the stored refresh token without user interaction.
package modern

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/packsmith/launcher/internal/identity"
)

// Config holds provider endpoints and client settings
type Config struct {
	ClientID string
	AuthURL  string
	TokenURL string
	// ProfileURL returns the account profile for a bearer token
	ProfileURL string
	Scopes     []string
	// CallbackPort is the first port tried for the local callback server;
	// the next few are tried if it is taken
	CallbackPort int
	// LoginTimeout bounds the whole interactive flow
	LoginTimeout time.Duration
}

// DefaultConfig returns stock settings for the given provider endpoints
func DefaultConfig(clientID, authURL, tokenURL, profileURL string) Config {
	return Config{
		ClientID:     clientID,
		AuthURL:      authURL,
		TokenURL:     tokenURL,
		ProfileURL:   profileURL,
		Scopes:       []string{"openid", "offline_access"},
		CallbackPort: 28562,
		LoginTimeout: 5 * time.Minute,
	}
}

// Client talks to a modern identity provider
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	// openBrowser is swappable for tests
	openBrowser func(url string) error
}

// Ensure Client implements the interface
var _ identity.ModernClient = (*Client)(nil)

// New creates a modern client
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: 30 * time.Second},
		logger:      logger.With(slog.String("component", "identity-modern")),
		openBrowser: browser.OpenURL,
	}
}

func (c *Client) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.cfg.ClientID,
		RedirectURL: redirectURL,
		Scopes:      c.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.cfg.AuthURL,
			TokenURL: c.cfg.TokenURL,
		},
	}
}

// InteractiveLogin drives the browser-based authorization-code flow
func (c *Client) InteractiveLogin(ctx context.Context) (*identity.AuthResult, error) {
	if c.cfg.LoginTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.LoginTimeout)
		defer cancel()
	}

	listener, port, err := c.listen()
	if err != nil {
		c.logger.Warn("no callback port available", slog.Any("error", err))
		return identity.Failure("Could not start the login callback server."), nil
	}

	redirectURL := fmt.Sprintf("http://localhost:%d/callback", port)
	oauthCfg := c.oauthConfig(redirectURL)

	state, err := randomState()
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("generating state: %w", err)
	}

	codeCh := make(chan string, 1)
	errCh := make(chan string, 1)

	router := mux.NewRouter()
	router.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- "Login response did not match this login attempt."
			return
		}
		if errCode := query.Get("error"); errCode != "" {
			desc := query.Get("error_description")
			if desc == "" {
				desc = errCode
			}
			fmt.Fprintln(w, "Login failed. You can close this window.")
			errCh <- desc
			return
		}
		fmt.Fprintln(w, "Login complete. You can close this window and return to the launcher.")
		codeCh <- query.Get("code")
	}).Methods(http.MethodGet)

	server := &http.Server{Handler: router}
	go server.Serve(listener)
	defer server.Shutdown(context.Background())

	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.logger.Info("opening browser for login", slog.Int("callback_port", port))
	if err := c.openBrowser(authURL); err != nil {
		c.logger.Warn("could not open browser", slog.Any("error", err))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case message := <-errCh:
		return identity.Failure(message), nil
	case code := <-codeCh:
		return c.exchange(ctx, oauthCfg, code)
	}
}

func (c *Client) exchange(ctx context.Context, oauthCfg *oauth2.Config, code string) (*identity.AuthResult, error) {
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return identity.Failure(oauthMessage(err)), nil
	}
	return c.finish(ctx, token)
}

// Refresh exchanges the refresh token for fresh tokens
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*identity.AuthResult, error) {
	source := c.oauthConfig("").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return identity.Failure(oauthMessage(err)), nil
	}
	return c.finish(ctx, token)
}

// finish turns an OAuth token into an AuthResult, looking up the profile
// for the display name and user id
func (c *Client) finish(ctx context.Context, token *oauth2.Token) (*identity.AuthResult, error) {
	profile, err := c.Profile(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}
	if !profile.OK {
		return profile, nil
	}

	result := &identity.AuthResult{
		OK:           true,
		DisplayName:  profile.DisplayName,
		UserID:       profile.UserID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		result.ExpiresIn = time.Until(token.Expiry)
	}
	return result, nil
}

// Profile looks up the account profile for an access token
func (c *Client) Profile(ctx context.Context, accessToken string) (*identity.AuthResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("profile transport failure", slog.Any("error", err))
		return identity.Failure("Could not reach the profile server."), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return identity.Failure(fmt.Sprintf("The profile server rejected the request (status %d).", resp.StatusCode)), nil
	}

	var profile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil || profile.Name == "" {
		return identity.Failure("The profile server returned an unexpected response."), nil
	}

	return &identity.AuthResult{
		OK:          true,
		DisplayName: profile.Name,
		UserID:      profile.ID,
	}, nil
}

// listen grabs the first free port at or just above the configured one
func (c *Client) listen() (net.Listener, int, error) {
	for port := c.cfg.CallbackPort; port < c.cfg.CallbackPort+10; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		if err == nil {
			return listener, port, nil
		}
	}
	return nil, 0, errors.New("no free callback port")
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// oauthMessage extracts the provider's error description from an oauth2
// retrieve error, falling back to a generic message
func oauthMessage(err error) string {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorDescription != "" {
			return retrieveErr.ErrorDescription
		}
		if retrieveErr.ErrorCode != "" {
			return retrieveErr.ErrorCode
		}
		return fmt.Sprintf("The identity provider rejected the request (status %d).", retrieveErr.Response.StatusCode)
	}
	return "Could not reach the identity provider."
}
