package testutil

import (
	"context"
	"sync"

	"github.com/packsmith/launcher/internal/identity"
	"github.com/packsmith/launcher/internal/model"
)

// FakeLegacyClient is a scriptable legacy identity client. If Block is
// set, calls wait on it (or on ctx) before returning, which lets tests
// cancel a task mid-flight.
type FakeLegacyClient struct {
	AuthResult       *identity.AuthResult
	ValidateValue    bool
	ProfileNameValue string
	Block            chan struct{}

	mu    sync.Mutex
	calls []string
	// LastClientToken records the token passed to the latest Authenticate
	LastClientToken string
}

var _ identity.LegacyClient = (*FakeLegacyClient)(nil)

func (c *FakeLegacyClient) Authenticate(ctx context.Context, username, password, clientToken string) (*identity.AuthResult, error) {
	c.mu.Lock()
	c.calls = append(c.calls, "authenticate")
	c.LastClientToken = clientToken
	c.mu.Unlock()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.AuthResult, nil
}

func (c *FakeLegacyClient) Validate(ctx context.Context, storedAuthBlob string) (bool, error) {
	c.mu.Lock()
	c.calls = append(c.calls, "validate")
	c.mu.Unlock()

	if err := c.wait(ctx); err != nil {
		return false, err
	}
	return c.ValidateValue, nil
}

func (c *FakeLegacyClient) ProfileName(storedAuthBlob string) (string, bool) {
	return c.ProfileNameValue, c.ProfileNameValue != ""
}

func (c *FakeLegacyClient) wait(ctx context.Context) error {
	if c.Block == nil {
		return ctx.Err()
	}
	select {
	case <-c.Block:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Calls returns the provider calls made so far
func (c *FakeLegacyClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// FakeModernClient is a scriptable modern identity client
type FakeModernClient struct {
	LoginResult   *identity.AuthResult
	RefreshResult *identity.AuthResult
	ProfileResult *identity.AuthResult

	mu    sync.Mutex
	calls []string
}

var _ identity.ModernClient = (*FakeModernClient)(nil)

func (c *FakeModernClient) InteractiveLogin(ctx context.Context) (*identity.AuthResult, error) {
	c.record("login")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.LoginResult, nil
}

func (c *FakeModernClient) Refresh(ctx context.Context, refreshToken string) (*identity.AuthResult, error) {
	c.record("refresh")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.RefreshResult, nil
}

func (c *FakeModernClient) Profile(ctx context.Context, accessToken string) (*identity.AuthResult, error) {
	c.record("profile")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.ProfileResult, nil
}

func (c *FakeModernClient) record(call string) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

// Calls returns the provider calls made so far
func (c *FakeModernClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Dialog is one presented dialog
type Dialog struct {
	Title string
	Body  string
}

// RecordingView captures everything the coordinator presents
type RecordingView struct {
	mu         sync.Mutex
	errors     []Dialog
	infos      []Dialog
	reloginIDs []model.AccountID
	begins     int
	ends       int
	abort      func()
}

func (v *RecordingView) Begin(title string, abort func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.begins++
	v.abort = abort
}

func (v *RecordingView) End() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ends++
}

func (v *RecordingView) PresentError(title, body string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, Dialog{Title: title, Body: body})
}

func (v *RecordingView) PresentInfo(title, body string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.infos = append(v.infos, Dialog{Title: title, Body: body})
}

func (v *RecordingView) RequestRelogin(id model.AccountID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reloginIDs = append(v.reloginIDs, id)
}

// ProgressCounts returns how many times the progress indicator was shown
// and dismissed
func (v *RecordingView) ProgressCounts() (begins, ends int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.begins, v.ends
}

// Abort invokes the abort hook from the latest progress indicator
func (v *RecordingView) Abort() {
	v.mu.Lock()
	abort := v.abort
	v.mu.Unlock()
	if abort != nil {
		abort()
	}
}

// ErrorDialogs returns a copy of the presented errors
func (v *RecordingView) ErrorDialogs() []Dialog {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Dialog(nil), v.errors...)
}

// InfoDialogs returns a copy of the presented infos
func (v *RecordingView) InfoDialogs() []Dialog {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Dialog(nil), v.infos...)
}

// Relogins returns a copy of the requested relogin IDs
func (v *RecordingView) Relogins() []model.AccountID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.AccountID(nil), v.reloginIDs...)
}
