package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/welldanyogia/coachhub-backend/internal/errors"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"gorm.io/gorm"
)

// ConversationRepositoryTestSuite is the test suite for ConversationRepository
type ConversationRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo ConversationRepository

	coach models.Participant
	admin models.Participant
	other models.Participant
}

func (s *ConversationRepositoryTestSuite) SetupSuite() {
	s.db = openTestDB(s.T())
	s.repo = NewConversationRepository(s.db)
	s.coach = models.Participant{ID: "123", Type: models.ParticipantCoach}
	s.admin = models.Participant{ID: "9", Type: models.ParticipantAdmin}
	s.other = models.Participant{ID: "77", Type: models.ParticipantClient}
}

func (s *ConversationRepositoryTestSuite) TearDownSuite() {
	closeTestDB(s.db)
}

func (s *ConversationRepositoryTestSuite) SetupTest() {
	resetTables(s.T(), s.db)
}

func TestConversationRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(ConversationRepositoryTestSuite))
}

func (s *ConversationRepositoryTestSuite) newDirect(a, b models.Participant) *models.Conversation {
	return &models.Conversation{
		Type:         models.ConversationDirect,
		DirectKey:    ptr(models.DirectKey(a, b)),
		Participants: participantRows(a, b),
	}
}

// ==================== Create Tests ====================

func (s *ConversationRepositoryTestSuite) TestCreate_PersistsParticipantsInOrder() {
	ctx := context.Background()
	conversation := &models.Conversation{
		Type:         models.ConversationGroup,
		Name:         ptr("Cohort"),
		Participants: participantRows(s.other, s.coach, s.admin),
	}

	err := s.repo.Create(ctx, conversation)
	require.NoError(s.T(), err)
	assert.NotEmpty(s.T(), conversation.ID)

	found, err := s.repo.GetByID(ctx, conversation.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"77", "123", "9"}, found.ParticipantIDs())
	assert.Equal(s.T(), []models.ParticipantType{models.ParticipantClient, models.ParticipantCoach, models.ParticipantAdmin}, found.ParticipantTypes())
	assert.Equal(s.T(), map[string]int{"client:77": 0, "coach:123": 0, "admin:9": 0}, found.UnreadCounts())
}

func (s *ConversationRepositoryTestSuite) TestCreate_DuplicateDirectPairRejected() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Create(ctx, s.newDirect(s.coach, s.admin)))

	err := s.repo.Create(ctx, s.newDirect(s.admin, s.coach))

	assert.ErrorIs(s.T(), err, ErrDuplicateEntry)
	var count int64
	s.db.Model(&models.Conversation{}).Count(&count)
	assert.Equal(s.T(), int64(1), count)
}

func (s *ConversationRepositoryTestSuite) TestCreate_GroupsWithoutDirectKeyCoexist() {
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		err := s.repo.Create(ctx, &models.Conversation{
			Type:         models.ConversationGroup,
			Name:         ptr("Group"),
			Participants: participantRows(s.coach, s.admin),
		})
		require.NoError(s.T(), err)
	}
}

// ==================== Get Tests ====================

func (s *ConversationRepositoryTestSuite) TestGetByID_NotFound() {
	_, err := s.repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(s.T(), err, apperrors.ErrConversationNotFound)
}

func (s *ConversationRepositoryTestSuite) TestGetByDirectKey_IsOrderIndependent() {
	ctx := context.Background()
	created := s.newDirect(s.coach, s.admin)
	require.NoError(s.T(), s.repo.Create(ctx, created))

	found, err := s.repo.GetByDirectKey(ctx, models.DirectKey(s.admin, s.coach))

	require.NoError(s.T(), err)
	assert.Equal(s.T(), created.ID, found.ID)
	assert.Len(s.T(), found.Participants, 2)
}

// ==================== List Tests ====================

func (s *ConversationRepositoryTestSuite) TestList_FiltersByMembershipSearchAndUnread() {
	ctx := context.Background()
	withAdmin := s.newDirect(s.coach, s.admin)
	require.NoError(s.T(), s.repo.Create(ctx, withAdmin))
	group := &models.Conversation{
		Type:         models.ConversationGroup,
		Name:         ptr("Morning Accountability"),
		Participants: participantRows(s.coach, s.other),
	}
	require.NoError(s.T(), s.repo.Create(ctx, group))
	notMine := s.newDirect(s.admin, s.other)
	require.NoError(s.T(), s.repo.Create(ctx, notMine))

	s.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND participant_key = ?", group.ID, s.coach.Key()).
		Update("unread_count", 2)
	s.db.Model(&models.Conversation{}).Where("id = ?", group.ID).Update("last_message_at", at(5))
	s.db.Model(&models.Conversation{}).Where("id = ?", withAdmin.ID).Update("last_message_at", at(1))

	all, total, err := s.repo.List(ctx, ConversationFilter{ParticipantKey: s.coach.Key(), Limit: 20})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), total)
	require.Len(s.T(), all, 2)
	assert.Equal(s.T(), group.ID, all[0].ID)
	assert.Equal(s.T(), withAdmin.ID, all[1].ID)
	assert.Len(s.T(), all[0].Participants, 2)

	searched, total, err := s.repo.List(ctx, ConversationFilter{ParticipantKey: s.coach.Key(), Search: "ACCOUNT", Limit: 20})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), total)
	assert.Equal(s.T(), group.ID, searched[0].ID)

	unread, total, err := s.repo.List(ctx, ConversationFilter{ParticipantKey: s.coach.Key(), UnreadOnly: true, Limit: 20})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), total)
	assert.Equal(s.T(), group.ID, unread[0].ID)
}

func (s *ConversationRepositoryTestSuite) TestList_TypeMustMatchID() {
	ctx := context.Background()
	require.NoError(s.T(), s.repo.Create(ctx, s.newDirect(s.coach, s.admin)))

	sameIDOtherType := models.Participant{ID: s.coach.ID, Type: models.ParticipantClient}
	list, total, err := s.repo.List(ctx, ConversationFilter{ParticipantKey: sameIDOtherType.Key(), Limit: 20})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), total)
	assert.Empty(s.T(), list)
}

func (s *ConversationRepositoryTestSuite) TestList_Pagination() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		conversation := &models.Conversation{
			Type:         models.ConversationGroup,
			Name:         ptr("Group"),
			Participants: participantRows(s.coach),
		}
		require.NoError(s.T(), s.repo.Create(ctx, conversation))
		s.db.Model(&models.Conversation{}).Where("id = ?", conversation.ID).Update("last_message_at", at(i))
	}

	page, total, err := s.repo.List(ctx, ConversationFilter{ParticipantKey: s.coach.Key(), Limit: 2, Offset: 2})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(3), total)
	assert.Len(s.T(), page, 1)
}
