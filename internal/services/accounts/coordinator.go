// Package accounts holds the account lifecycle coordinator: it owns the
// roster, drives logins and token refreshes on background workers, persists
// every mutation before notifying views, and keeps at most one
// authentication task in flight.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/packsmith/launcher/internal/bus"
	"github.com/packsmith/launcher/internal/dependencies/clock"
	"github.com/packsmith/launcher/internal/dependencies/random"
	"github.com/packsmith/launcher/internal/dispatch"
	"github.com/packsmith/launcher/internal/identity"
	"github.com/packsmith/launcher/internal/model"
	"github.com/packsmith/launcher/internal/roster"
	"github.com/packsmith/launcher/internal/tasks"
	"github.com/packsmith/launcher/internal/view"
)

// Dialog titles and bodies shown through the view
const (
	titleNotAdded       = "Account Not Added"
	titleEdited         = "Account Edited"
	titleRefreshed      = "Access Token Refreshed"
	titleRefreshFailed  = "Failed To Refresh Access Token"
	titleValidateFailed = "Session Expired"
	titleNameNotUpdated = "Display Name Not Updated"
	titleSaveFailed     = "Could Not Save Accounts"

	bodyAlreadyExists = "This account already exists."
	bodyEdited        = "Account edited successfully"
	bodyRefreshed     = "Access token refreshed successfully"
)

// Coordinator orchestrates add/edit/delete/refresh across the roster, the
// identity clients, the task runner and the change bus
type Coordinator struct {
	store  *roster.Store
	legacy identity.LegacyClient
	modern identity.ModernClient
	runner *tasks.Runner
	queue  *dispatch.Queue
	bus    *bus.Bus
	view   view.View
	clock  clock.Clock
	random random.Random
	logger *slog.Logger

	mu      sync.Mutex
	idle    *sync.Cond
	pending *tasks.Handle // at most one in-flight authentication task
}

// Config holds the coordinator's collaborators
type Config struct {
	Store  *roster.Store
	Legacy identity.LegacyClient
	Modern identity.ModernClient
	Runner *tasks.Runner
	Queue  *dispatch.Queue
	Bus    *bus.Bus
	View   view.View
	Clock  clock.Clock
	Random random.Random
	Logger *slog.Logger
}

// New creates a Coordinator
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		store:  cfg.Store,
		legacy: cfg.Legacy,
		modern: cfg.Modern,
		runner: cfg.Runner,
		queue:  cfg.Queue,
		bus:    cfg.Bus,
		view:   cfg.View,
		clock:  cfg.Clock,
		random: cfg.Random,
		logger: cfg.Logger.With(slog.String("component", "accounts")),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// beginOp claims the single pending-op slot, or fails with model.ErrBusy.
// The returned handle is live before the task starts, so a cancel arriving
// at any point after beginOp reaches the real task.
func (c *Coordinator) beginOp() (*tasks.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return nil, model.ErrBusy
	}
	handle := tasks.NewHandle()
	c.pending = handle
	return handle, nil
}

// finishOp releases the pending-op slot; called from terminal callbacks on
// the dispatch goroutine
func (c *Coordinator) finishOp() {
	c.mu.Lock()
	c.pending = nil
	c.idle.Broadcast()
	c.mu.Unlock()
}

// WaitIdle blocks until no authentication task is in flight
func (c *Coordinator) WaitIdle() {
	c.mu.Lock()
	for c.pending != nil {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

// Cancel aborts the in-flight task, if any. Safe to call at any time; a
// cancel arriving after commit has begun is ignored.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	handle := c.pending
	c.mu.Unlock()
	if handle != nil {
		handle.Cancel()
	}
}

// Busy reports whether an authentication task is in flight
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// submit starts the claimed task with pending-slot bookkeeping. The
// callbacks run on the dispatch goroutine with the slot already released,
// so a follow-up command issued from a callback is not rejected as busy.
func (c *Coordinator) submit(handle *tasks.Handle, title string, run func(ctx context.Context) (any, error), onSuccess func(any), onFailure func(error)) {
	c.runner.Start(handle, title, run,
		func(result any) {
			c.finishOp()
			onSuccess(result)
		},
		func(err error) {
			c.finishOp()
			if onFailure != nil {
				onFailure(err)
			} else {
				c.view.PresentError("Unexpected Error", err.Error())
			}
		},
		func() {
			// Cancellation is terminal and silent: no dialog, no emission
			c.finishOp()
		},
	)
}

// commit applies mutate to the roster, persists, and emits on the change
// bus. If persistence fails the mutation is rolled back and a storage
// error is presented; the bus stays silent because nothing changed.
func (c *Coordinator) commit(mutate func(*roster.Store)) bool {
	if err := c.store.Update(context.Background(), mutate); err != nil {
		c.logger.Error("persist failed", slog.Any("error", err))
		c.view.PresentError(titleSaveFailed, fmt.Sprintf("Your accounts could not be saved: %v", err))
		return false
	}
	c.bus.Post()
	return true
}

// BeginAddLegacy authenticates a new username/password account. A fresh
// client token is generated and kept for the account's lifetime.
func (c *Coordinator) BeginAddLegacy(username, password string) error {
	if c.store.ExistsByUsername(username) {
		c.view.PresentError(titleNotAdded, bodyAlreadyExists)
		return model.ErrUsernameExists
	}
	handle, err := c.beginOp()
	if err != nil {
		return err
	}

	clientToken := c.random.ID()
	c.logger.Info("adding legacy account", slog.String("username", username))

	c.submit(handle, "Logging in as "+username,
		func(ctx context.Context) (any, error) {
			return c.legacy.Authenticate(ctx, username, password, clientToken)
		},
		func(result any) {
			auth := result.(*identity.AuthResult)
			if !auth.OK {
				c.logger.Warn("legacy login failed", slog.String("username", username))
				c.view.PresentError(titleNotAdded, auth.ErrorMessage)
				return
			}

			account := &model.Account{
				ID:             model.AccountID(c.random.ID()),
				Family:         model.FamilyLegacy,
				DisplayName:    auth.DisplayName,
				Username:       username,
				CreatedAt:      c.clock.Now(),
				ClientToken:    clientToken,
				StoredAuthBlob: auth.StoredAuthBlob,
				PasswordCache:  password,
			}
			c.commit(func(st *roster.Store) {
				st.Upsert(account)
				_ = st.SetSelected(account.ID)
			})
		},
		nil,
	)
	return nil
}

// BeginEditLegacy re-authenticates an existing legacy account with fresh
// credentials. The identifier and client token are preserved; the entered
// username and the auth blob are replaced.
func (c *Coordinator) BeginEditLegacy(id model.AccountID, username, password string) error {
	account, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if !account.IsLegacy() {
		return model.ErrWrongFamily
	}
	handle, err := c.beginOp()
	if err != nil {
		return err
	}

	clientToken := account.ClientToken
	c.logger.Info("editing legacy account", slog.String("id", string(id)))

	c.submit(handle, "Logging in as "+username,
		func(ctx context.Context) (any, error) {
			return c.legacy.Authenticate(ctx, username, password, clientToken)
		},
		func(result any) {
			auth := result.(*identity.AuthResult)
			if !auth.OK {
				c.view.PresentError(titleNotAdded, auth.ErrorMessage)
				return
			}

			current, err := c.store.Get(id)
			if err != nil {
				// Deleted while the login ran; nothing to edit
				c.logger.Warn("account vanished during edit", slog.String("id", string(id)))
				return
			}
			current.Username = username
			current.DisplayName = auth.DisplayName
			current.StoredAuthBlob = auth.StoredAuthBlob
			current.MustRelogin = false
			current.PasswordCache = password

			if c.commit(func(st *roster.Store) { st.Upsert(current) }) {
				c.view.PresentInfo(titleEdited, bodyEdited)
			}
		},
		nil,
	)
	return nil
}

// BeginAddModern drives an interactive browser login and adds the
// resulting account. If the provider user already has an account in the
// roster, that account is updated instead of duplicated.
func (c *Coordinator) BeginAddModern() error {
	return c.beginModernLogin("")
}

// BeginRelogin re-runs the interactive login for an existing modern
// account whose refresh has failed, preserving its identifier
func (c *Coordinator) BeginRelogin(id model.AccountID) error {
	account, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if !account.IsModern() {
		return model.ErrWrongFamily
	}
	return c.beginModernLogin(id)
}

func (c *Coordinator) beginModernLogin(target model.AccountID) error {
	handle, err := c.beginOp()
	if err != nil {
		return err
	}

	c.logger.Info("starting interactive login", slog.String("target", string(target)))

	c.submit(handle, "Logging in",
		func(ctx context.Context) (any, error) {
			return c.modern.InteractiveLogin(ctx)
		},
		func(result any) {
			auth := result.(*identity.AuthResult)
			if !auth.OK {
				c.view.PresentError(titleNotAdded, auth.ErrorMessage)
				return
			}
			c.commitModernLogin(target, auth)
		},
		nil,
	)
	return nil
}

// commitModernLogin writes a successful interactive login into the roster:
// onto the relogin target if one was given, onto an existing account for
// the same provider user, or as a brand-new selected account.
func (c *Coordinator) commitModernLogin(target model.AccountID, auth *identity.AuthResult) {
	if target == "" {
		if existing := c.findModernByUserID(auth.UserID); existing != "" {
			target = existing
		}
	}

	if target != "" {
		account, err := c.store.Get(target)
		if err != nil {
			c.logger.Warn("relogin target vanished", slog.String("id", string(target)))
			return
		}
		c.applyModernAuth(account, auth)
		c.commit(func(st *roster.Store) { st.Upsert(account) })
		return
	}

	account := &model.Account{
		ID:        model.AccountID(c.random.ID()),
		Family:    model.FamilyModern,
		Username:  auth.DisplayName,
		CreatedAt: c.clock.Now(),
	}
	c.applyModernAuth(account, auth)
	c.commit(func(st *roster.Store) {
		st.Upsert(account)
		_ = st.SetSelected(account.ID)
	})
}

func (c *Coordinator) applyModernAuth(account *model.Account, auth *identity.AuthResult) {
	account.DisplayName = auth.DisplayName
	account.UserID = auth.UserID
	account.AccessToken = auth.AccessToken
	account.MustRelogin = false
	if auth.RefreshToken != "" {
		account.RefreshToken = auth.RefreshToken
	}
	if auth.ExpiresIn > 0 {
		account.AccessTokenExpiry = c.clock.Now().Add(auth.ExpiresIn)
	}
}

func (c *Coordinator) findModernByUserID(userID string) model.AccountID {
	if userID == "" {
		return ""
	}
	for _, account := range c.store.List() {
		if account.IsModern() && account.UserID == userID {
			return account.ID
		}
	}
	return ""
}

// BeginRefreshModern refreshes the account's access token. On refresh
// failure the account is flagged for re-login, the flag is persisted, and
// the view is asked to start an interactive login for it.
func (c *Coordinator) BeginRefreshModern(id model.AccountID) error {
	account, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if !account.IsModern() {
		return model.ErrWrongFamily
	}
	if account.RefreshToken == "" {
		return model.ErrNoRefreshToken
	}
	handle, err := c.beginOp()
	if err != nil {
		return err
	}

	refreshToken := account.RefreshToken
	c.logger.Info("refreshing access token", slog.String("id", string(id)))

	c.submit(handle, "Refreshing access token for "+account.DisplayName,
		func(ctx context.Context) (any, error) {
			return c.modern.Refresh(ctx, refreshToken)
		},
		func(result any) {
			auth := result.(*identity.AuthResult)
			current, err := c.store.Get(id)
			if err != nil {
				c.logger.Warn("account vanished during refresh", slog.String("id", string(id)))
				return
			}

			if !auth.OK {
				c.logger.Warn("refresh failed", slog.String("id", string(id)), slog.String("message", auth.ErrorMessage))
				current.MustRelogin = true
				c.commit(func(st *roster.Store) { st.Upsert(current) })
				c.view.PresentError(titleRefreshFailed, auth.ErrorMessage)
				c.view.RequestRelogin(id)
				return
			}

			c.applyModernAuth(current, auth)
			if c.commit(func(st *roster.Store) { st.Upsert(current) }) {
				c.view.PresentInfo(titleRefreshed, bodyRefreshed)
			}
		},
		nil,
	)
	return nil
}

// BeginRevalidateLegacy checks a legacy account's stored session, flagging
// the account for re-login if the provider no longer accepts it
func (c *Coordinator) BeginRevalidateLegacy(id model.AccountID) error {
	account, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if !account.IsLegacy() {
		return model.ErrWrongFamily
	}
	handle, err := c.beginOp()
	if err != nil {
		return err
	}

	blob := account.StoredAuthBlob

	c.submit(handle, "Checking session for "+account.DisplayName,
		func(ctx context.Context) (any, error) {
			return c.legacy.Validate(ctx, blob)
		},
		func(result any) {
			valid := result.(bool)
			if valid {
				return
			}

			current, err := c.store.Get(id)
			if err != nil {
				return
			}
			current.MustRelogin = true
			c.commit(func(st *roster.Store) { st.Upsert(current) })
			c.view.PresentError(titleValidateFailed, "Your saved session is no longer valid. Please login again.")
			c.view.RequestRelogin(id)
		},
		nil,
	)
	return nil
}

// BeginUpdateDisplayName re-reads the provider's current name for the
// account and updates its display name. Modern accounts go through the
// profile endpoint; legacy accounts revalidate their stored session and
// adopt the profile name it carries.
func (c *Coordinator) BeginUpdateDisplayName(id model.AccountID) error {
	account, err := c.store.Get(id)
	if err != nil {
		return err
	}
	handle, err := c.beginOp()
	if err != nil {
		return err
	}

	title := "Updating display name for " + account.DisplayName
	if account.IsModern() {
		accessToken := account.AccessToken
		c.submit(handle, title,
			func(ctx context.Context) (any, error) {
				return c.modern.Profile(ctx, accessToken)
			},
			func(result any) {
				auth := result.(*identity.AuthResult)
				if !auth.OK {
					c.view.PresentError(titleNameNotUpdated, auth.ErrorMessage)
					return
				}
				c.applyDisplayName(id, auth.DisplayName)
			},
			nil,
		)
		return nil
	}

	blob := account.StoredAuthBlob
	c.submit(handle, title,
		func(ctx context.Context) (any, error) {
			return c.legacy.Validate(ctx, blob)
		},
		func(result any) {
			if !result.(bool) {
				c.view.PresentError(titleNameNotUpdated, "Your saved session is no longer valid. Please login again.")
				return
			}
			name, ok := c.legacy.ProfileName(blob)
			if !ok {
				c.view.PresentError(titleNameNotUpdated, "Your saved session does not carry a profile name.")
				return
			}
			c.applyDisplayName(id, name)
		},
		nil,
	)
	return nil
}

// applyDisplayName writes the freshly fetched name, skipping the persist
// and the emission when nothing changed
func (c *Coordinator) applyDisplayName(id model.AccountID, name string) {
	current, err := c.store.Get(id)
	if err != nil {
		return
	}
	if current.DisplayName == name {
		return
	}
	current.DisplayName = name
	c.commit(func(st *roster.Store) { st.Upsert(current) })
}

// Delete removes the account. The view supplies the user's confirmation
// decision; an unconfirmed delete is a no-op. Deleting an absent account
// is also a no-op, making delete idempotent.
func (c *Coordinator) Delete(id model.AccountID, confirmed bool) error {
	if !confirmed {
		return nil
	}
	if c.Busy() {
		return model.ErrBusy
	}

	var opErr error
	if err := c.queue.Do(func() {
		if _, err := c.store.Get(id); err != nil {
			return
		}
		c.logger.Info("deleting account", slog.String("id", string(id)))
		if !c.commit(func(st *roster.Store) { st.Remove(id) }) {
			opErr = fmt.Errorf("deleting account %s: persist failed", id)
		}
	}); err != nil {
		return err
	}
	return opErr
}

// Select marks the account as selected, or clears the selection when id is
// empty. Selection is a view concern: it is not persisted here, but is
// included the next time the roster is saved. An emission happens on every
// call, even reselecting the same account.
func (c *Coordinator) Select(id model.AccountID) error {
	if c.Busy() {
		return model.ErrBusy
	}

	var opErr error
	if err := c.queue.Do(func() {
		if err := c.store.SetSelected(id); err != nil {
			opErr = err
			return
		}
		c.bus.Post()
	}); err != nil {
		return err
	}
	return opErr
}
