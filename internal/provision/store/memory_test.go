package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"detour/internal/provision/models"
	"detour/internal/singbox"
	"detour/pkg/platform/sentinel"
)

type MemoryRegistrySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *MemoryRegistrySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestMemoryRegistrySuite(t *testing.T) {
	suite.Run(t, new(MemoryRegistrySuite))
}

func newRecord(name string) *models.Record {
	now := time.Now()
	return &models.Record{
		Client: &models.Client{
			Name:     name,
			Platform: singbox.PlatformAndroid,
			Regions: map[string]models.RemoteIdentity{
				"primary":   {UUID: uuid.NewString(), SubID: "a1b2c3d4e5f60718"},
				"secondary": {UUID: uuid.NewString(), SubID: "1122334455667788"},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		Document: models.DocumentRef{
			FileName:  name + "-android.json",
			PublicURL: "http://localhost:8080/api/configs/" + name + "-android.json",
		},
	}
}

// TestPutAndLookups verifies insert-if-absent and retrieval semantics.
func (s *MemoryRegistrySuite) TestPutAndLookups() {
	s.Run("puts and finds record by name", func() {
		record := newRecord("alice")
		s.Require().NoError(s.store.Put(s.ctx, record))

		found, err := s.store.Get(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(record.Client.Regions, found.Client.Regions)
		s.Equal(record.Document, found.Document)
	})

	s.Run("returns ErrNotFound for unknown name", func() {
		_, err := s.store.Get(s.ctx, "nobody")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("exists reflects stored names", func() {
		s.Require().NoError(s.store.Put(s.ctx, newRecord("bob")))

		ok, err := s.store.Exists(s.ctx, "bob")
		s.Require().NoError(err)
		s.True(ok)

		ok, err = s.store.Exists(s.ctx, "nobody")
		s.Require().NoError(err)
		s.False(ok)
	})
}

// TestNameUniqueness verifies a second Put for the same name is rejected.
func (s *MemoryRegistrySuite) TestNameUniqueness() {
	s.Require().NoError(s.store.Put(s.ctx, newRecord("carol")))

	err := s.store.Put(s.ctx, newRecord("carol"))
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

// TestDelete verifies delete reports whether a record existed.
func (s *MemoryRegistrySuite) TestDelete() {
	s.Run("deletes existing record", func() {
		s.Require().NoError(s.store.Put(s.ctx, newRecord("dave")))

		deleted, err := s.store.Delete(s.ctx, "dave")
		s.Require().NoError(err)
		s.True(deleted)

		_, err = s.store.Get(s.ctx, "dave")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("reports false for missing record", func() {
		deleted, err := s.store.Delete(s.ctx, "nobody")
		s.Require().NoError(err)
		s.False(deleted)
	})
}

// TestList verifies listing is name-sorted.
func (s *MemoryRegistrySuite) TestList() {
	s.Require().NoError(s.store.Put(s.ctx, newRecord("zoe")))
	s.Require().NoError(s.store.Put(s.ctx, newRecord("adam")))
	s.Require().NoError(s.store.Put(s.ctx, newRecord("mia")))

	records, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal("adam", records[0].Client.Name)
	s.Equal("mia", records[1].Client.Name)
	s.Equal("zoe", records[2].Client.Name)
}

// TestUpdateDocument verifies the document ref is replaced and the
// timestamp bumped.
func (s *MemoryRegistrySuite) TestUpdateDocument() {
	s.Run("updates stored document ref", func() {
		record := newRecord("erin")
		s.Require().NoError(s.store.Put(s.ctx, record))

		ref := models.DocumentRef{FileName: "erin-ios.json", PublicURL: "http://x/erin-ios.json"}
		s.Require().NoError(s.store.UpdateDocument(s.ctx, "erin", ref))

		found, err := s.store.Get(s.ctx, "erin")
		s.Require().NoError(err)
		s.Equal(ref, found.Document)
		s.True(found.Client.UpdatedAt.After(record.Client.UpdatedAt) ||
			found.Client.UpdatedAt.Equal(record.Client.UpdatedAt))
	})

	s.Run("returns ErrNotFound for unknown name", func() {
		err := s.store.UpdateDocument(s.ctx, "nobody", models.DocumentRef{})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestIsolation verifies returned records are copies, not aliases of stored
// state.
func (s *MemoryRegistrySuite) TestIsolation() {
	record := newRecord("frank")
	s.Require().NoError(s.store.Put(s.ctx, record))

	found, err := s.store.Get(s.ctx, "frank")
	s.Require().NoError(err)
	found.Client.Regions["primary"] = models.RemoteIdentity{UUID: "tampered", SubID: "tampered"}

	again, err := s.store.Get(s.ctx, "frank")
	s.Require().NoError(err)
	s.NotEqual("tampered", again.Client.Regions["primary"].UUID)
}
