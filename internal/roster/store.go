// Package roster holds the in-memory account roster and persists it through
// a pluggable durable backend. The store owns ordering, selection and the
// username uniqueness check; backends only move opaque bytes.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/packsmith/launcher/internal/model"
)

// Backend is the durable side of the roster. Write must be atomic: either
// the full document replaces the previous one, or the previous one survives.
type Backend interface {
	// Write persists the encoded roster document
	Write(ctx context.Context, data []byte) error
	// Read returns the last persisted document, or model.ErrRosterNotFound
	// if nothing has been persisted yet
	Read(ctx context.Context) ([]byte, error)
}

// Store is the in-memory roster. All mutation goes through its lock; the
// coordinator additionally serializes callers on the dispatch queue.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu       sync.RWMutex
	accounts map[model.AccountID]*model.Account
	order    []model.AccountID
	selected model.AccountID // empty = no selection
}

// New creates an empty Store over the given backend
func New(backend Backend, logger *slog.Logger) *Store {
	return &Store{
		backend:  backend,
		logger:   logger.With(slog.String("component", "roster")),
		accounts: make(map[model.AccountID]*model.Account),
	}
}

// List returns the accounts in insertion order. The returned values are
// copies; mutating them does not affect the roster.
func (s *Store) List() []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Account, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.accounts[id])
	}
	return out
}

// Get returns a copy of the account, or model.ErrAccountNotFound
func (s *Store) Get(id model.AccountID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// ExistsByUsername reports whether any account has the entered username
func (s *Store) ExistsByUsername(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if account.Username == username {
			return true
		}
	}
	return false
}

// Upsert inserts the account or replaces it by ID. A replaced account
// keeps its position in the listing order.
func (s *Store) Upsert(account *model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *account
	if _, ok := s.accounts[copied.ID]; !ok {
		s.order = append(s.order, copied.ID)
	}
	s.accounts[copied.ID] = &copied
}

// Remove deletes the account; removing an absent ID is a no-op. If the
// removed account was selected, the selection is cleared.
func (s *Store) Remove(id model.AccountID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return
	}
	delete(s.accounts, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.selected == id {
		s.selected = ""
	}
}

// SetSelected marks the account as selected, or clears the selection when
// id is empty. Selecting an unknown account is an error.
func (s *Store) SetSelected(id model.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, ok := s.accounts[id]; !ok {
			return model.ErrAccountNotFound
		}
	}
	s.selected = id
	return nil
}

// Selected returns the selected account ID, or empty if none
func (s *Store) Selected() model.AccountID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Len returns the number of accounts in the roster
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Persist writes the whole roster to the backend. On failure the in-memory
// state is untouched (Persist never mutates it in the first place).
func (s *Store) Persist(ctx context.Context) error {
	s.mu.RLock()
	data, err := encodeDocument(s.accounts, s.order, s.selected)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding roster: %w", err)
	}

	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("persisting roster: %w", err)
	}
	return nil
}

// Load replaces the in-memory roster from the backend. An absent document
// produces an empty roster; a malformed one fails with a
// model.ErrRosterFormat-wrapped error and leaves memory untouched.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.backend.Read(ctx)
	if err != nil {
		if errors.Is(err, model.ErrRosterNotFound) {
			s.mu.Lock()
			s.accounts = make(map[model.AccountID]*model.Account)
			s.order = nil
			s.selected = ""
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("reading roster: %w", err)
	}

	accounts, order, selected, err := decodeDocument(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.accounts = accounts
	s.order = order
	s.selected = selected
	s.mu.Unlock()

	s.logger.Info("roster loaded", slog.Int("accounts", len(order)))
	return nil
}

// Update applies mutate to the roster and persists the result. If
// persistence fails, the in-memory roster is rolled back so that memory
// equals disk. mutate may call any Store method.
func (s *Store) Update(ctx context.Context, mutate func(*Store)) error {
	saved := s.snapshotState()
	mutate(s)
	if err := s.Persist(ctx); err != nil {
		s.restoreState(saved)
		return err
	}
	return nil
}

type storeState struct {
	accounts map[model.AccountID]*model.Account
	order    []model.AccountID
	selected model.AccountID
}

func (s *Store) snapshotState() storeState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make(map[model.AccountID]*model.Account, len(s.accounts))
	for id, account := range s.accounts {
		copied := *account
		accounts[id] = &copied
	}
	order := make([]model.AccountID, len(s.order))
	copy(order, s.order)
	return storeState{accounts: accounts, order: order, selected: s.selected}
}

func (s *Store) restoreState(state storeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = state.accounts
	s.order = state.order
	s.selected = state.selected
}
