package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/wfunc/figurine-hub/internal/errors"
	"github.com/wfunc/figurine-hub/internal/lock"
	"github.com/wfunc/figurine-hub/internal/models"
	"github.com/wfunc/figurine-hub/internal/repository"
)

// CharacterServiceTestSuite 角色查询服务测试套件
type CharacterServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	db       *gorm.DB
	services *Services
	alice    *models.User
	bob      *models.User
}

func (suite *CharacterServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = repository.SetupTestDB()
	suite.services = NewServices(repository.NewManager(suite.db), lock.NewMemoryLocker(), DefaultConfig(), nil, nil, zap.NewNop())
	suite.alice = repository.SeedUser(suite.T(), suite.db, "alice@example.com")
	suite.bob = repository.SeedUser(suite.T(), suite.db, "bob@example.com")
}

func (suite *CharacterServiceTestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

func (suite *CharacterServiceTestSuite) TestListCharactersForUser() {
	gandalf := repository.SeedCharacter(suite.T(), suite.db, suite.alice.ID, "Gandalf")
	repository.SeedCharacter(suite.T(), suite.db, suite.alice.ID, "Aragorn")
	repository.SeedCharacter(suite.T(), suite.db, suite.bob.ID, "Frodo")

	summary, err := suite.services.Figurine.BindFigurine(suite.ctx, suite.alice.ID, "TAG-001", &gandalf.ID)
	suite.Require().NoError(err)

	list, total, err := suite.services.Character.ListCharactersForUser(suite.ctx, suite.alice.ID, 1, 20)
	suite.Require().NoError(err)
	suite.Equal(int64(2), total)
	suite.Require().Len(list, 2)

	linked := 0
	for _, c := range list {
		if c.ID == gandalf.ID {
			suite.Require().NotNil(c.FigurineID)
			suite.Equal(summary.ID, *c.FigurineID)
			linked++
		} else {
			suite.Nil(c.FigurineID)
		}
	}
	suite.Equal(1, linked)

	_, _, err = suite.services.Character.ListCharactersForUser(suite.ctx, "", 1, 20)
	suite.Equal(apperrors.ErrInvalidInput, apperrors.GetCode(err))
}

func (suite *CharacterServiceTestSuite) TestGetCharacter() {
	frodo := repository.SeedCharacter(suite.T(), suite.db, suite.bob.ID, "Frodo")

	c, err := suite.services.Character.GetCharacter(suite.ctx, suite.bob.ID, frodo.ID)
	suite.Require().NoError(err)
	suite.Equal("Frodo", c.Name)
	suite.Equal(3, c.Level)

	_, err = suite.services.Character.GetCharacter(suite.ctx, suite.alice.ID, frodo.ID)
	suite.Equal(apperrors.ErrNotOwner, apperrors.GetCode(err))

	_, err = suite.services.Character.GetCharacter(suite.ctx, suite.bob.ID, "missing")
	suite.Equal(apperrors.ErrNotFound, apperrors.GetCode(err))
}

func TestCharacterServiceSuite(t *testing.T) {
	suite.Run(t, new(CharacterServiceTestSuite))
}
