package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/packsmith/launcher/internal/model"
	"github.com/packsmith/launcher/internal/roster"
	"github.com/packsmith/launcher/internal/testutil"
)

type BackendSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	backend *Backend
	ctx     context.Context
}

func TestBackendSuite(t *testing.T) {
	suite.Run(t, new(BackendSuite))
}

func (s *BackendSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	s.backend = NewWithClient(client, DefaultConfig())
	s.ctx = context.Background()
}

func (s *BackendSuite) TearDownTest() {
	if s.backend != nil {
		_ = s.backend.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *BackendSuite) TestReadBeforeAnyWrite() {
	_, err := s.backend.Read(s.ctx)
	s.ErrorIs(err, model.ErrRosterNotFound)
}

func (s *BackendSuite) TestWriteThenRead() {
	s.Require().NoError(s.backend.Write(s.ctx, []byte(`{"version":1}`)))

	data, err := s.backend.Read(s.ctx)
	s.Require().NoError(err)
	s.Equal(`{"version":1}`, string(data))
}

func (s *BackendSuite) TestWriteReplacesWhole() {
	s.Require().NoError(s.backend.Write(s.ctx, []byte("first")))
	s.Require().NoError(s.backend.Write(s.ctx, []byte("second")))

	data, err := s.backend.Read(s.ctx)
	s.Require().NoError(err)
	s.Equal("second", string(data))
}

func (s *BackendSuite) TestDocumentStoredUnderConfiguredKey() {
	s.Require().NoError(s.backend.Write(s.ctx, []byte("doc")))

	stored, err := s.mini.Get(DefaultConfig().Key)
	s.Require().NoError(err)
	s.Equal("doc", stored)
}

func (s *BackendSuite) TestStorePersistsThroughRedis() {
	store := roster.New(s.backend, testutil.NopLogger())
	store.Upsert(&model.Account{
		ID:          "a",
		Family:      model.FamilyLegacy,
		Username:    "a@example.com",
		ClientToken: "token",
	})
	s.Require().NoError(store.Persist(s.ctx))

	restored := roster.New(s.backend, testutil.NopLogger())
	s.Require().NoError(restored.Load(s.ctx))
	s.Equal(1, restored.Len())
}

func (s *BackendSuite) TestNewRejectsBadURL() {
	cfg := DefaultConfig()
	cfg.URL = "not-a-url"
	_, err := New(cfg)
	s.Error(err)
}
