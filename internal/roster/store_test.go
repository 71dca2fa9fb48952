package roster_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/packsmith/launcher/internal/model"
	"github.com/packsmith/launcher/internal/roster"
	"github.com/packsmith/launcher/internal/roster/memory"
	"github.com/packsmith/launcher/internal/testutil"
)

type StoreSuite struct {
	suite.Suite
	backend *memory.Backend
	store   *roster.Store
	ctx     context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.backend = memory.New()
	s.store = roster.New(s.backend, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *StoreSuite) legacyAccount(id, username string) *model.Account {
	return &model.Account{
		ID:             model.AccountID(id),
		Family:         model.FamilyLegacy,
		DisplayName:    username,
		Username:       username,
		CreatedAt:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		ClientToken:    "client-token-" + id,
		StoredAuthBlob: `{"accessToken":"blob"}`,
		PasswordCache:  "secret",
	}
}

func (s *StoreSuite) modernAccount(id, userID string) *model.Account {
	return &model.Account{
		ID:                model.AccountID(id),
		Family:            model.FamilyModern,
		DisplayName:       "Alex",
		Username:          "Alex",
		CreatedAt:         time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		AccessToken:       "access",
		RefreshToken:      "refresh",
		AccessTokenExpiry: time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		UserID:            userID,
	}
}

func (s *StoreSuite) TestListPreservesInsertionOrder() {
	s.store.Upsert(s.legacyAccount("b", "b@example.com"))
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.store.Upsert(s.legacyAccount("c", "c@example.com"))

	ids := []model.AccountID{}
	for _, account := range s.store.List() {
		ids = append(ids, account.ID)
	}
	s.Equal([]model.AccountID{"b", "a", "c"}, ids)
}

func (s *StoreSuite) TestUpsertReplaceKeepsPosition() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.store.Upsert(s.legacyAccount("b", "b@example.com"))

	updated := s.legacyAccount("a", "renamed@example.com")
	s.store.Upsert(updated)

	accounts := s.store.List()
	s.Require().Len(accounts, 2)
	s.Equal(model.AccountID("a"), accounts[0].ID)
	s.Equal("renamed@example.com", accounts[0].Username)
}

func (s *StoreSuite) TestGetReturnsCopy() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))

	account, err := s.store.Get("a")
	s.Require().NoError(err)
	account.Username = "mutated"

	again, err := s.store.Get("a")
	s.Require().NoError(err)
	s.Equal("a@example.com", again.Username)
}

func (s *StoreSuite) TestGetUnknown() {
	_, err := s.store.Get("nope")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *StoreSuite) TestExistsByUsername() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.True(s.store.ExistsByUsername("a@example.com"))
	s.False(s.store.ExistsByUsername("b@example.com"))
}

func (s *StoreSuite) TestRemoveClearsSelection() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.Require().NoError(s.store.SetSelected("a"))

	s.store.Remove("a")

	s.Equal(0, s.store.Len())
	s.Equal(model.AccountID(""), s.store.Selected())
}

func (s *StoreSuite) TestRemoveAbsentIsNoop() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.store.Remove("nope")
	s.Equal(1, s.store.Len())
}

func (s *StoreSuite) TestSetSelectedUnknown() {
	s.ErrorIs(s.store.SetSelected("nope"), model.ErrAccountNotFound)
}

func (s *StoreSuite) TestPersistAndLoadRoundTrip() {
	legacy := s.legacyAccount("a", "a@example.com")
	modern := s.modernAccount("m", "u-1")
	modern.MustRelogin = true
	s.store.Upsert(legacy)
	s.store.Upsert(modern)
	s.Require().NoError(s.store.SetSelected("m"))

	s.Require().NoError(s.store.Persist(s.ctx))

	restored := roster.New(s.backend, testutil.NopLogger())
	s.Require().NoError(restored.Load(s.ctx))

	s.Equal(2, restored.Len())
	s.Equal(model.AccountID("m"), restored.Selected())

	gotLegacy, err := restored.Get("a")
	s.Require().NoError(err)
	s.Equal(legacy.Username, gotLegacy.Username)
	s.Equal(legacy.ClientToken, gotLegacy.ClientToken)
	s.Equal(legacy.StoredAuthBlob, gotLegacy.StoredAuthBlob)
	s.Equal(legacy.CreatedAt, gotLegacy.CreatedAt)

	gotModern, err := restored.Get("m")
	s.Require().NoError(err)
	s.Equal(modern.AccessToken, gotModern.AccessToken)
	s.Equal(modern.RefreshToken, gotModern.RefreshToken)
	s.Equal(modern.AccessTokenExpiry, gotModern.AccessTokenExpiry)
	s.Equal(modern.UserID, gotModern.UserID)
	s.True(gotModern.MustRelogin)

	// Order survives the round trip
	s.Equal(model.AccountID("a"), restored.List()[0].ID)
}

func (s *StoreSuite) TestPersistLoadPersistIsStable() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.store.Upsert(s.modernAccount("m", "u-1"))
	s.Require().NoError(s.store.SetSelected("m"))
	s.Require().NoError(s.store.Persist(s.ctx))

	first, err := s.backend.Read(s.ctx)
	s.Require().NoError(err)

	restored := roster.New(s.backend, testutil.NopLogger())
	s.Require().NoError(restored.Load(s.ctx))
	s.Require().NoError(restored.Persist(s.ctx))

	second, err := s.backend.Read(s.ctx)
	s.Require().NoError(err)
	s.Equal(string(first), string(second))
}

func (s *StoreSuite) TestPersistNeverWritesPasswordCache() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.Require().NoError(s.store.Persist(s.ctx))

	data, err := s.backend.Read(s.ctx)
	s.Require().NoError(err)
	s.NotContains(string(data), "secret")

	restored := roster.New(s.backend, testutil.NopLogger())
	s.Require().NoError(restored.Load(s.ctx))
	account, err := restored.Get("a")
	s.Require().NoError(err)
	s.Empty(account.PasswordCache)
}

func (s *StoreSuite) TestLoadAbsentDocumentGivesEmptyRoster() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.Require().NoError(s.store.Load(s.ctx))
	s.Equal(0, s.store.Len())
}

func (s *StoreSuite) TestLoadMalformedJSON() {
	s.backend.SetData([]byte("{not json"))
	err := s.store.Load(s.ctx)
	s.ErrorIs(err, model.ErrRosterFormat)
}

func (s *StoreSuite) TestLoadWrongVersion() {
	s.backend.SetData([]byte(`{"version": 2, "accounts": []}`))
	s.ErrorIs(s.store.Load(s.ctx), model.ErrRosterFormat)
}

func (s *StoreSuite) TestLoadDuplicateID() {
	doc := `{
  "version": 1,
  "accounts": [
    {"id": "a", "family": "legacy", "entered_name": "x", "client_token": "t"},
    {"id": "a", "family": "legacy", "entered_name": "y", "client_token": "t"}
  ]
}`
	s.backend.SetData([]byte(doc))
	s.ErrorIs(s.store.Load(s.ctx), model.ErrRosterFormat)
}

func (s *StoreSuite) TestLoadSelectedMustExist() {
	doc := `{
  "version": 1,
  "selected": "ghost",
  "accounts": [
    {"id": "a", "family": "legacy", "entered_name": "x", "client_token": "t"}
  ]
}`
	s.backend.SetData([]byte(doc))
	s.ErrorIs(s.store.Load(s.ctx), model.ErrRosterFormat)
}

func (s *StoreSuite) TestLoadMissingRequiredFields() {
	cases := map[string]string{
		"missing id":           `{"version":1,"accounts":[{"family":"legacy","entered_name":"x","client_token":"t"}]}`,
		"missing entered_name": `{"version":1,"accounts":[{"id":"a","family":"legacy","client_token":"t"}]}`,
		"missing client_token": `{"version":1,"accounts":[{"id":"a","family":"legacy","entered_name":"x"}]}`,
		"missing user_id":      `{"version":1,"accounts":[{"id":"a","family":"modern","entered_name":"x"}]}`,
		"unknown family":       `{"version":1,"accounts":[{"id":"a","family":"other","entered_name":"x"}]}`,
	}
	for name, doc := range cases {
		s.backend.SetData([]byte(doc))
		s.ErrorIs(s.store.Load(s.ctx), model.ErrRosterFormat, name)
	}
}

func (s *StoreSuite) TestLoadIgnoresUnknownFields() {
	doc := `{
  "version": 1,
  "future_field": true,
  "accounts": [
    {"id": "a", "family": "legacy", "entered_name": "x", "client_token": "t", "launcher_theme": "dark"}
  ]
}`
	s.backend.SetData([]byte(doc))
	s.Require().NoError(s.store.Load(s.ctx))
	s.Equal(1, s.store.Len())
}

func (s *StoreSuite) TestLoadFailureLeavesMemoryUntouched() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.backend.SetData([]byte("{not json"))

	s.Error(s.store.Load(s.ctx))
	s.Equal(1, s.store.Len())
}

func (s *StoreSuite) TestUpdatePersistsMutation() {
	err := s.store.Update(s.ctx, func(st *roster.Store) {
		st.Upsert(s.legacyAccount("a", "a@example.com"))
	})
	s.Require().NoError(err)
	s.Equal(1, s.backend.Writes())
	s.Equal(1, s.store.Len())
}

func (s *StoreSuite) TestUpdateRollsBackOnWriteFailure() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.Require().NoError(s.store.SetSelected("a"))
	s.backend.FailNextWrite()

	err := s.store.Update(s.ctx, func(st *roster.Store) {
		st.Remove("a")
		st.Upsert(s.legacyAccount("b", "b@example.com"))
	})
	s.Require().ErrorIs(err, memory.ErrWriteFailed)

	s.Equal(1, s.store.Len())
	_, getErr := s.store.Get("a")
	s.NoError(getErr)
	s.Equal(model.AccountID("a"), s.store.Selected())
}

func (s *StoreSuite) TestEncodedDocumentShape() {
	s.store.Upsert(s.legacyAccount("a", "a@example.com"))
	s.Require().NoError(s.store.SetSelected("a"))
	s.Require().NoError(s.store.Persist(s.ctx))

	data, err := s.backend.Read(s.ctx)
	s.Require().NoError(err)

	var doc map[string]any
	s.Require().NoError(json.Unmarshal(data, &doc))
	s.Equal(float64(1), doc["version"])
	s.Equal("a", doc["selected"])

	accounts := doc["accounts"].([]any)
	s.Require().Len(accounts, 1)
	record := accounts[0].(map[string]any)
	s.Equal("a@example.com", record["entered_name"])
	s.Equal("client-token-a", record["client_token"])
	s.Equal("2024-01-01T12:00:00Z", record["created_at"])
}
