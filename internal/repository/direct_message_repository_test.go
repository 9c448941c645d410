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

// DirectMessageRepositoryTestSuite is the test suite for DirectMessageRepository
type DirectMessageRepositoryTestSuite struct {
	suite.Suite
	db            *gorm.DB
	repo          DirectMessageRepository
	conversations ConversationRepository

	coach        models.Participant
	admin        models.Participant
	conversation *models.Conversation
}

func (s *DirectMessageRepositoryTestSuite) SetupSuite() {
	s.db = openTestDB(s.T())
	s.repo = NewDirectMessageRepository(s.db)
	s.conversations = NewConversationRepository(s.db)
	s.coach = models.Participant{ID: "123", Type: models.ParticipantCoach}
	s.admin = models.Participant{ID: "9", Type: models.ParticipantAdmin}
}

func (s *DirectMessageRepositoryTestSuite) TearDownSuite() {
	closeTestDB(s.db)
}

func (s *DirectMessageRepositoryTestSuite) SetupTest() {
	resetTables(s.T(), s.db)

	s.conversation = &models.Conversation{
		Type:         models.ConversationDirect,
		DirectKey:    ptr(models.DirectKey(s.coach, s.admin)),
		Participants: participantRows(s.coach, s.admin),
	}
	require.NoError(s.T(), s.conversations.Create(context.Background(), s.conversation))
}

func TestDirectMessageRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(DirectMessageRepositoryTestSuite))
}

func (s *DirectMessageRepositoryTestSuite) send(from models.Participant, content string, minute int) *models.DirectMessage {
	message := &models.DirectMessage{
		ConversationID: s.conversation.ID,
		SenderID:       from.ID,
		SenderType:     from.Type,
		SenderName:     "Sender " + from.ID,
		Content:        ptr(content),
		CreatedAt:      at(minute),
	}
	require.NoError(s.T(), s.repo.Send(context.Background(), message))
	return message
}

func (s *DirectMessageRepositoryTestSuite) unreadCounts() map[string]int {
	conversation, err := s.conversations.GetByID(context.Background(), s.conversation.ID)
	require.NoError(s.T(), err)
	return conversation.UnreadCounts()
}

// ==================== Send Tests ====================

func (s *DirectMessageRepositoryTestSuite) TestSend_IncrementsEveryoneButSender() {
	message := s.send(s.coach, "hello", 0)

	assert.Equal(s.T(), map[string]int{"coach:123": 0, "admin:9": 1}, s.unreadCounts())

	conversation, err := s.conversations.GetByID(context.Background(), s.conversation.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), conversation.LastMessageID)
	assert.Equal(s.T(), message.ID, *conversation.LastMessageID)
	require.NotNil(s.T(), conversation.LastMessageAt)
	assert.True(s.T(), conversation.LastMessageAt.Equal(at(0)))
}

func (s *DirectMessageRepositoryTestSuite) TestSend_DefaultsTypeAndMedia() {
	message := s.send(s.coach, "hello", 0)

	found, err := s.repo.GetByID(context.Background(), message.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.MessageText, found.Type)
	assert.NotNil(s.T(), found.MediaURLs)
	assert.Empty(s.T(), found.MediaURLs)
}

func (s *DirectMessageRepositoryTestSuite) TestSend_UnknownConversationRollsBack() {
	message := &models.DirectMessage{
		ConversationID: "missing",
		SenderID:       s.coach.ID,
		SenderType:     s.coach.Type,
		Content:        ptr("hello"),
	}
	s.db.Exec("PRAGMA foreign_keys = OFF")
	defer s.db.Exec("PRAGMA foreign_keys = ON")

	err := s.repo.Send(context.Background(), message)

	assert.ErrorIs(s.T(), err, apperrors.ErrConversationNotFound)
	var count int64
	s.db.Model(&models.DirectMessage{}).Count(&count)
	assert.Equal(s.T(), int64(0), count)
}

// ==================== Read Tests ====================

func (s *DirectMessageRepositoryTestSuite) TestGetByID_ResolvesReplyPreview() {
	original := s.send(s.admin, "question?", 0)
	reply := &models.DirectMessage{
		ConversationID:   s.conversation.ID,
		SenderID:         s.coach.ID,
		SenderType:       s.coach.Type,
		Content:          ptr("answer"),
		ReplyToMessageID: ptr(original.ID),
		CreatedAt:        at(1),
	}
	require.NoError(s.T(), s.repo.Send(context.Background(), reply))

	found, err := s.repo.GetByID(context.Background(), reply.ID)

	require.NoError(s.T(), err)
	require.NotNil(s.T(), found.ReplyTo)
	assert.Equal(s.T(), original.ID, found.ReplyTo.ID)
	assert.Equal(s.T(), "question?", *found.ReplyTo.Content)
	assert.Equal(s.T(), s.admin.Type, found.ReplyTo.SenderType)
}

func (s *DirectMessageRepositoryTestSuite) TestGetByID_NotFound() {
	_, err := s.repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(s.T(), err, apperrors.ErrMessageNotFound)
}

func (s *DirectMessageRepositoryTestSuite) TestListByConversation_FiltersAndOrdersNewestFirst() {
	s.send(s.coach, "Plan for week one", 0)
	s.send(s.admin, "Sounds good", 1)
	s.send(s.coach, "week two PLAN", 2)
	image := &models.DirectMessage{
		ConversationID: s.conversation.ID,
		SenderID:       s.admin.ID,
		SenderType:     s.admin.Type,
		Type:           models.MessageImage,
		MediaURLs:      []string{"https://cdn.example.com/a.png"},
		CreatedAt:      at(3),
	}
	require.NoError(s.T(), s.repo.Send(context.Background(), image))

	all, total, err := s.repo.ListByConversation(context.Background(), s.conversation.ID, MessageFilter{Limit: 10})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(4), total)
	assert.Equal(s.T(), image.ID, all[0].ID)
	assert.Equal(s.T(), []string{"https://cdn.example.com/a.png"}, []string(all[0].MediaURLs))

	plans, total, err := s.repo.ListByConversation(context.Background(), s.conversation.ID, MessageFilter{Search: "plan", Limit: 10})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), total)
	assert.Equal(s.T(), "week two PLAN", *plans[0].Content)

	images, total, err := s.repo.ListByConversation(context.Background(), s.conversation.ID, MessageFilter{Type: models.MessageImage, Limit: 10})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), total)
	assert.Equal(s.T(), image.ID, images[0].ID)

	before, after := at(2), at(0)
	between, total, err := s.repo.ListByConversation(context.Background(), s.conversation.ID, MessageFilter{Before: &before, After: &after, Limit: 10})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), total)
	assert.Equal(s.T(), "Sounds good", *between[0].Content)
}

func (s *DirectMessageRepositoryTestSuite) TestRecent_LimitsNewestFirst() {
	for i := 0; i < 5; i++ {
		s.send(s.coach, "m", i)
	}
	last := s.send(s.admin, "latest", 10)

	recent, err := s.repo.Recent(context.Background(), s.conversation.ID, 3)

	require.NoError(s.T(), err)
	assert.Len(s.T(), recent, 3)
	assert.Equal(s.T(), last.ID, recent[0].ID)
}

// ==================== Edit/Delete Tests ====================

func (s *DirectMessageRepositoryTestSuite) TestUpdateContent_SetsEditedFlags() {
	message := s.send(s.coach, "typo", 0)

	updated, err := s.repo.UpdateContent(context.Background(), message.ID, "fixed", at(5))

	require.NoError(s.T(), err)
	assert.Equal(s.T(), "fixed", *updated.Content)
	assert.True(s.T(), updated.IsEdited)
	require.NotNil(s.T(), updated.EditedAt)
	assert.True(s.T(), updated.EditedAt.Equal(at(5)))
}

func (s *DirectMessageRepositoryTestSuite) TestUpdateContent_NotFound() {
	_, err := s.repo.UpdateContent(context.Background(), "missing", "x", at(0))
	assert.ErrorIs(s.T(), err, apperrors.ErrMessageNotFound)
}

func (s *DirectMessageRepositoryTestSuite) TestDelete_RemovesRowAndAdjustsConversation() {
	first := s.send(s.coach, "first", 0)
	second := s.send(s.coach, "second", 1)
	require.Equal(s.T(), 2, s.unreadCounts()["admin:9"])

	err := s.repo.Delete(context.Background(), second.ID)
	require.NoError(s.T(), err)

	_, err = s.repo.GetByID(context.Background(), second.ID)
	assert.ErrorIs(s.T(), err, apperrors.ErrMessageNotFound)
	assert.Equal(s.T(), map[string]int{"coach:123": 0, "admin:9": 1}, s.unreadCounts())

	conversation, err := s.conversations.GetByID(context.Background(), s.conversation.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), conversation.LastMessageID)
	assert.Equal(s.T(), first.ID, *conversation.LastMessageID)
}

func (s *DirectMessageRepositoryTestSuite) TestDelete_LastMessageClearsPointer() {
	only := s.send(s.coach, "only", 0)

	require.NoError(s.T(), s.repo.Delete(context.Background(), only.ID))

	conversation, err := s.conversations.GetByID(context.Background(), s.conversation.ID)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), conversation.LastMessageID)
	assert.Nil(s.T(), conversation.LastMessageAt)
}

func (s *DirectMessageRepositoryTestSuite) TestDelete_NotFound() {
	err := s.repo.Delete(context.Background(), "missing")
	assert.ErrorIs(s.T(), err, apperrors.ErrMessageNotFound)
}

// ==================== MarkRead Tests ====================

func (s *DirectMessageRepositoryTestSuite) TestMarkRead_RecomputesReaderCounter() {
	m1 := s.send(s.coach, "one", 0)
	m2 := s.send(s.coach, "two", 1)
	s.send(s.coach, "three", 2)

	receipts, err := s.repo.MarkRead(context.Background(), []string{m1.ID, m2.ID}, s.admin, at(10))

	require.NoError(s.T(), err)
	require.Len(s.T(), receipts, 1)
	assert.Equal(s.T(), ReadReceipt{
		ConversationID: s.conversation.ID,
		MessageIDs:     []string{m1.ID, m2.ID},
		UnreadCount:    1,
	}, receipts[0])
	assert.Equal(s.T(), map[string]int{"coach:123": 0, "admin:9": 1}, s.unreadCounts())

	found, err := s.repo.GetByID(context.Background(), m1.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), found.IsRead)
	require.NotNil(s.T(), found.ReadAt)
}

func (s *DirectMessageRepositoryTestSuite) TestMarkRead_NeverTouchesOwnMessages() {
	own := s.send(s.admin, "mine", 0)
	theirs := s.send(s.coach, "theirs", 1)

	_, err := s.repo.MarkRead(context.Background(), []string{own.ID, theirs.ID}, s.admin, at(10))
	require.NoError(s.T(), err)

	found, err := s.repo.GetByID(context.Background(), own.ID)
	require.NoError(s.T(), err)
	assert.False(s.T(), found.IsRead)
	assert.Nil(s.T(), found.ReadAt)

	found, err = s.repo.GetByID(context.Background(), theirs.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), found.IsRead)

	// the coach's counter still reflects the admin's unread message
	assert.Equal(s.T(), map[string]int{"coach:123": 1, "admin:9": 0}, s.unreadCounts())
}

func (s *DirectMessageRepositoryTestSuite) TestMarkRead_GroupsIDsPerConversation() {
	client := models.Participant{ID: "7", Type: models.ParticipantClient}
	other := &models.Conversation{
		Type:         models.ConversationDirect,
		DirectKey:    ptr(models.DirectKey(client, s.admin)),
		Participants: participantRows(client, s.admin),
	}
	require.NoError(s.T(), s.conversations.Create(context.Background(), other))

	here := s.send(s.coach, "from coach", 0)
	own := s.send(s.admin, "mine", 1)
	there := &models.DirectMessage{ConversationID: other.ID, SenderID: client.ID, SenderType: client.Type, Content: ptr("from client"), CreatedAt: at(2)}
	require.NoError(s.T(), s.repo.Send(context.Background(), there))

	receipts, err := s.repo.MarkRead(context.Background(), []string{here.ID, own.ID, there.ID}, s.admin, at(10))

	require.NoError(s.T(), err)
	require.Len(s.T(), receipts, 2)
	byConversation := map[string][]string{}
	for _, r := range receipts {
		byConversation[r.ConversationID] = r.MessageIDs
	}
	assert.Equal(s.T(), []string{here.ID}, byConversation[s.conversation.ID])
	assert.Equal(s.T(), []string{there.ID}, byConversation[other.ID])
}

func (s *DirectMessageRepositoryTestSuite) TestMarkRead_IgnoresNonParticipants() {
	message := s.send(s.coach, "private", 0)
	outsider := models.Participant{ID: "55", Type: models.ParticipantClient}

	receipts, err := s.repo.MarkRead(context.Background(), []string{message.ID}, outsider, at(1))

	require.NoError(s.T(), err)
	assert.Empty(s.T(), receipts)
	found, err := s.repo.GetByID(context.Background(), message.ID)
	require.NoError(s.T(), err)
	assert.False(s.T(), found.IsRead)
}

func (s *DirectMessageRepositoryTestSuite) TestMarkRead_EmptyInput() {
	receipts, err := s.repo.MarkRead(context.Background(), nil, s.admin, at(0))

	require.NoError(s.T(), err)
	assert.Empty(s.T(), receipts)
}
