// Package legacy implements the username/password identity provider
// protocol: a JSON POST to /authenticate, with the successful response
// kept verbatim as the account's stored auth blob, and /validate to check
// a blob without re-entering the password.
package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/packsmith/launcher/internal/identity"
)

// Agent identifies the game to the provider
type Agent struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// Config holds provider connection settings
type Config struct {
	// BaseURL is the provider root, e.g. https://auth.example.com
	BaseURL string
	// Agent is sent with every authenticate call
	Agent Agent
	// Timeout bounds a single HTTP request
	Timeout time.Duration
}

// DefaultConfig returns the stock provider settings
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Agent:   Agent{Name: "Minecraft", Version: 1},
		Timeout: 30 * time.Second,
	}
}

// Client talks to a legacy identity provider
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// Ensure Client implements the interface
var _ identity.LegacyClient = (*Client)(nil)

// New creates a legacy client
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(slog.String("component", "identity-legacy")),
	}
}

type authenticateRequest struct {
	Agent       Agent  `json:"agent"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	ClientToken string `json:"clientToken"`
	RequestUser bool   `json:"requestUser"`
}

type authenticateResponse struct {
	AccessToken     string `json:"accessToken"`
	ClientToken     string `json:"clientToken"`
	SelectedProfile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"selectedProfile"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
}

type errorResponse struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

// Authenticate performs a full username/password login. The raw successful
// response body becomes the stored auth blob; the launcher never interprets
// it beyond the fields needed for validation.
func (c *Client) Authenticate(ctx context.Context, username, password, clientToken string) (*identity.AuthResult, error) {
	body, err := json.Marshal(authenticateRequest{
		Agent:       c.cfg.Agent,
		Username:    username,
		Password:    password,
		ClientToken: clientToken,
		RequestUser: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding authenticate request: %w", err)
	}

	raw, status, err := c.post(ctx, "/authenticate", body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("authenticate transport failure", slog.Any("error", err))
		return identity.Failure("Could not reach the authentication server."), nil
	}

	if status != http.StatusOK {
		return identity.Failure(providerMessage(raw, status)), nil
	}

	var resp authenticateResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.AccessToken == "" || resp.SelectedProfile.Name == "" {
		c.logger.Warn("authenticate response unparseable", slog.Int("status", status))
		return identity.Failure("The authentication server returned an unexpected response."), nil
	}

	userID := resp.User.ID
	if userID == "" {
		userID = resp.SelectedProfile.ID
	}

	return &identity.AuthResult{
		OK:             true,
		DisplayName:    resp.SelectedProfile.Name,
		UserID:         userID,
		StoredAuthBlob: string(raw),
	}, nil
}

// Validate checks whether a stored auth blob's session is still usable
func (c *Client) Validate(ctx context.Context, storedAuthBlob string) (bool, error) {
	var blob struct {
		AccessToken string `json:"accessToken"`
		ClientToken string `json:"clientToken"`
	}
	if err := json.Unmarshal([]byte(storedAuthBlob), &blob); err != nil || blob.AccessToken == "" {
		return false, nil
	}

	body, err := json.Marshal(map[string]string{
		"accessToken": blob.AccessToken,
		"clientToken": blob.ClientToken,
	})
	if err != nil {
		return false, fmt.Errorf("encoding validate request: %w", err)
	}

	_, status, err := c.post(ctx, "/validate", body)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}

	return status == http.StatusNoContent || status == http.StatusOK, nil
}

// ProfileName extracts the profile name a stored auth blob carries. The
// blob is the raw authenticate response, so the name is the one current
// as of the last successful login or validation.
func (c *Client) ProfileName(storedAuthBlob string) (string, bool) {
	var blob struct {
		SelectedProfile struct {
			Name string `json:"name"`
		} `json:"selectedProfile"`
	}
	if err := json.Unmarshal([]byte(storedAuthBlob), &blob); err != nil || blob.SelectedProfile.Name == "" {
		return "", false
	}
	return blob.SelectedProfile.Name, true
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return raw, resp.StatusCode, nil
}

// providerMessage extracts the provider's human-readable error, falling
// back to a generic message when the body is not the documented shape
func providerMessage(raw []byte, status int) string {
	var resp errorResponse
	if err := json.Unmarshal(raw, &resp); err == nil && resp.ErrorMessage != "" {
		return resp.ErrorMessage
	}
	return fmt.Sprintf("The authentication server rejected the request (status %d).", status)
}
