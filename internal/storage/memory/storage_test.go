package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/storage"
	"github.com/mcoot/playerhub/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
}

func TestStorageSuite(t *testing.T) {
	s := new(StorageSuite)
	s.Factory = func(t *testing.T) storage.Storage {
		return New()
	}
	suite.Run(t, s)
}

func (s *StorageSuite) TestUpdateDataDoesNotLeakBetweenPlayers() {
	_, err := s.Storage.UpdateData(s.Ctx, "player-1", "k", func(string, bool) (string, error) {
		return "v", nil
	})
	s.Require().NoError(err)

	mem := s.Storage.(*Storage)
	s.Len(mem.data, 1)
	s.Contains(mem.data, model.PlayerID("player-1"))
}
