package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/welldanyogia/coachhub-backend/internal/errors"
	"github.com/welldanyogia/coachhub-backend/internal/events"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"github.com/welldanyogia/coachhub-backend/internal/repository"
	"github.com/welldanyogia/coachhub-backend/internal/validator"
	"github.com/welldanyogia/coachhub-backend/internal/websocket"
)

const (
	// conversationHistoryLimit is how many messages a conversation detail carries
	conversationHistoryLimit = 50

	// DefaultSupportChatName names support conversations when none is configured
	DefaultSupportChatName = "Support Chat"
)

// CreateConversationInput is the payload of a conversation creation request.
// ParticipantIDs and ParticipantTypes are parallel lists.
type CreateConversationInput struct {
	Type             models.ConversationType  `json:"type"`
	Name             *string                  `json:"name"`
	ParticipantIDs   []string                 `json:"participantIds"`
	ParticipantTypes []models.ParticipantType `json:"participantTypes"`
}

// SendMessageInput is the payload of a send request
type SendMessageInput struct {
	Type             models.MessageType `json:"type"`
	Content          *string            `json:"content"`
	MediaURLs        []string           `json:"mediaUrls"`
	FileURL          *string            `json:"fileUrl"`
	FileName         *string            `json:"fileName"`
	FileSize         *int64             `json:"fileSize"`
	ReplyToMessageID *string            `json:"replyToMessageId"`
}

// ConversationQuery narrows a conversation listing
type ConversationQuery struct {
	Search     string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// MessageDeleted is the realtime payload of a deleted message
type MessageDeleted struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
}

// MessagesRead is the realtime payload of a read receipt
type MessagesRead struct {
	ConversationID string   `json:"conversationId"`
	Reader         string   `json:"reader"`
	MessageIDs     []string `json:"messageIds"`
	UnreadCount    int      `json:"unreadCount"`
}

// MessagingService defines the conversation and direct message operations
type MessagingService interface {
	CreateConversation(ctx context.Context, input CreateConversationInput, requester models.Participant) (*models.ConversationView, error)
	GetConversations(ctx context.Context, query ConversationQuery, requester models.Participant) ([]models.ConversationView, int64, error)
	GetConversation(ctx context.Context, id string, requester models.Participant) (*models.ConversationView, error)
	SendMessage(ctx context.Context, conversationID string, input SendMessageInput, sender models.Participant, senderName string) (*models.DirectMessage, error)
	GetMessages(ctx context.Context, conversationID string, filter repository.MessageFilter, requester models.Participant) ([]models.DirectMessage, int64, error)
	EditMessage(ctx context.Context, messageID, content string, requester models.Participant) (*models.DirectMessage, error)
	DeleteMessage(ctx context.Context, messageID string, requester models.Participant) error
	MarkAsRead(ctx context.Context, messageIDs []string, requester models.Participant) ([]repository.ReadReceipt, error)
	GetUnreadCount(ctx context.Context, conversationID string, requester models.Participant) (int, error)
	CreateSupportConversation(ctx context.Context, coachID string) (*models.ConversationView, error)
}

// MessagingConfig holds configuration for the messaging service
type MessagingConfig struct {
	SupportChatName string
}

type messagingService struct {
	conversations repository.ConversationRepository
	messages      repository.DirectMessageRepository
	directory     repository.DirectoryRepository
	notifier      Notifier
	publisher     events.Publisher
	config        MessagingConfig
	logger        *slog.Logger
	now           func() time.Time
}

// NewMessagingService creates a new MessagingService. A nil notifier or
// publisher disables realtime pushes or bus events respectively.
func NewMessagingService(
	conversations repository.ConversationRepository,
	messages repository.DirectMessageRepository,
	directory repository.DirectoryRepository,
	notifier Notifier,
	publisher events.Publisher,
	config MessagingConfig,
	logger *slog.Logger,
) MessagingService {
	if config.SupportChatName == "" {
		config.SupportChatName = DefaultSupportChatName
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}

	return &messagingService{
		conversations: conversations,
		messages:      messages,
		directory:     directory,
		notifier:      notifier,
		publisher:     publisher,
		config:        config,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateConversation adds the requester to the participants when missing and
// creates the conversation. A direct conversation for a pair that already has
// one returns the existing record.
func (s *messagingService) CreateConversation(ctx context.Context, input CreateConversationInput, requester models.Participant) (*models.ConversationView, error) {
	participants, err := normalizeParticipants(input, requester)
	if err != nil {
		return nil, err
	}

	var name *string
	if input.Name != nil {
		if trimmed := validator.SanitizeString(*input.Name, 255); trimmed != "" {
			name = &trimmed
		}
	}

	conversation := &models.Conversation{Type: input.Type, Name: name}
	switch input.Type {
	case models.ConversationDirect:
		if len(participants) != 2 {
			return nil, apperrors.BadRequest("direct conversations require exactly 2 participants")
		}
		directKey := models.DirectKey(participants[0], participants[1])
		existing, err := s.conversations.GetByDirectKey(ctx, directKey)
		if err == nil {
			return s.viewWithLatest(ctx, existing)
		}
		if !errors.Is(err, apperrors.ErrConversationNotFound) {
			return nil, err
		}
		conversation.DirectKey = &directKey
	case models.ConversationGroup:
		if name == nil {
			return nil, apperrors.BadRequest("group conversations require a name")
		}
	default:
		return nil, apperrors.BadRequest("type must be direct or group")
	}

	for _, p := range participants {
		conversation.Participants = append(conversation.Participants, models.ConversationParticipant{
			ParticipantID:   p.ID,
			ParticipantType: p.Type,
			ParticipantKey:  p.Key(),
		})
	}

	if err := s.conversations.Create(ctx, conversation); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) && conversation.DirectKey != nil {
			// A concurrent request created the pair first
			existing, getErr := s.conversations.GetByDirectKey(ctx, *conversation.DirectKey)
			if getErr != nil {
				return nil, getErr
			}
			return s.viewWithLatest(ctx, existing)
		}
		return nil, err
	}

	s.logger.Info("conversation created",
		slog.String("conversation_id", conversation.ID),
		slog.String("type", string(conversation.Type)),
		slog.Int("participants", len(participants)))

	view := conversation.View(nil)
	return &view, nil
}

// normalizeParticipants validates the parallel id/type lists and appends the requester
func normalizeParticipants(input CreateConversationInput, requester models.Participant) ([]models.Participant, error) {
	if len(input.ParticipantIDs) != len(input.ParticipantTypes) {
		return nil, apperrors.BadRequest("participantIds and participantTypes must have the same length")
	}

	seen := make(map[string]bool, len(input.ParticipantIDs)+1)
	participants := make([]models.Participant, 0, len(input.ParticipantIDs)+1)
	for i, id := range input.ParticipantIDs {
		p := models.Participant{ID: strings.TrimSpace(id), Type: input.ParticipantTypes[i]}
		if err := validator.ValidateID(p.ID); err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("participantIds[%d]: %v", i, err))
		}
		if !p.Type.Valid() {
			return nil, apperrors.BadRequest(fmt.Sprintf("participantTypes[%d]: unknown participant type %q", i, p.Type))
		}
		if seen[p.Key()] {
			return nil, apperrors.BadRequest(fmt.Sprintf("participant %s is listed twice", p.Key()))
		}
		seen[p.Key()] = true
		participants = append(participants, p)
	}

	if !seen[requester.Key()] {
		participants = append(participants, requester)
	}
	return participants, nil
}

// viewWithLatest renders a conversation with its newest message
func (s *messagingService) viewWithLatest(ctx context.Context, conversation *models.Conversation) (*models.ConversationView, error) {
	latest, err := s.messages.Recent(ctx, conversation.ID, 1)
	if err != nil {
		return nil, err
	}
	view := conversation.View(latest)
	return &view, nil
}

// authorize loads the conversation and checks the requester belongs to it
func (s *messagingService) authorize(ctx context.Context, conversationID string, requester models.Participant) (*models.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(requester.ID, requester.Type) {
		return nil, apperrors.ErrNotParticipant
	}
	return conversation, nil
}

// GetConversations lists the requester's conversations, most recently active first
func (s *messagingService) GetConversations(ctx context.Context, query ConversationQuery, requester models.Participant) ([]models.ConversationView, int64, error) {
	limit, offset := validator.ValidatePagination(query.Limit, query.Offset)
	conversations, total, err := s.conversations.List(ctx, repository.ConversationFilter{
		ParticipantKey: requester.Key(),
		Search:         query.Search,
		UnreadOnly:     query.UnreadOnly,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, 0, err
	}

	views := make([]models.ConversationView, 0, len(conversations))
	for i := range conversations {
		views = append(views, conversations[i].View(nil))
	}
	return views, total, nil
}

// GetConversation returns the conversation with its latest messages oldest-first
func (s *messagingService) GetConversation(ctx context.Context, id string, requester models.Participant) (*models.ConversationView, error) {
	conversation, err := s.authorize(ctx, id, requester)
	if err != nil {
		return nil, err
	}

	recent, err := s.messages.Recent(ctx, id, conversationHistoryLimit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	view := conversation.View(recent)
	return &view, nil
}

// SendMessage stores the message, bumps the other participants' unread
// counters and announces it once committed.
func (s *messagingService) SendMessage(ctx context.Context, conversationID string, input SendMessageInput, sender models.Participant, senderName string) (*models.DirectMessage, error) {
	conversation, err := s.authorize(ctx, conversationID, sender)
	if err != nil {
		return nil, err
	}

	message, err := s.buildMessage(ctx, conversationID, input)
	if err != nil {
		return nil, err
	}
	message.SenderID = sender.ID
	message.SenderType = sender.Type
	message.SenderName = validator.SanitizeString(senderName, 255)
	message.CreatedAt = s.now()

	if err := s.messages.Send(ctx, message); err != nil {
		return nil, err
	}

	stored, err := s.messages.GetByID(ctx, message.ID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(conversation.ParticipantKeys(), websocket.MessageTypeNewMessage, stored)

	recipients := make([]string, 0, len(conversation.Participants))
	for _, key := range conversation.ParticipantKeys() {
		if key != sender.Key() {
			recipients = append(recipients, key)
		}
	}
	s.publish(ctx, events.MessageSent{
		ConversationID: conversationID,
		MessageID:      stored.ID,
		SenderID:       sender.ID,
		SenderType:     sender.Type,
		Recipients:     recipients,
		MessageType:    stored.Type,
		CreatedAt:      stored.CreatedAt,
	})

	return stored, nil
}

// buildMessage validates the payload into an unsaved message
func (s *messagingService) buildMessage(ctx context.Context, conversationID string, input SendMessageInput) (*models.DirectMessage, error) {
	message := &models.DirectMessage{
		ConversationID: conversationID,
		Type:           input.Type,
		MediaURLs:      input.MediaURLs,
		FileURL:        input.FileURL,
		FileName:       input.FileName,
		FileSize:       input.FileSize,
	}
	if message.Type == "" {
		message.Type = models.MessageText
	}
	if !message.Type.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown message type %q", input.Type))
	}
	if message.MediaURLs == nil {
		message.MediaURLs = []string{}
	}

	if input.Content != nil {
		if content := validator.SanitizeMessage(*input.Content); content != "" {
			message.Content = &content
		}
	}
	if message.FileName != nil {
		name := validator.SanitizeFilename(*message.FileName)
		message.FileName = &name
	}

	switch message.Type {
	case models.MessageText:
		if message.Content == nil {
			return nil, apperrors.BadRequest("text messages require content")
		}
	case models.MessageFile:
		if message.FileURL == nil || *message.FileURL == "" {
			return nil, apperrors.BadRequest("file messages require fileUrl")
		}
	default:
		if len(message.MediaURLs) == 0 && message.FileURL == nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("%s messages require mediaUrls or fileUrl", message.Type))
		}
	}

	if input.ReplyToMessageID != nil && *input.ReplyToMessageID != "" {
		target, err := s.messages.GetByID(ctx, *input.ReplyToMessageID)
		if err != nil {
			if errors.Is(err, apperrors.ErrMessageNotFound) {
				return nil, apperrors.BadRequest("replyToMessageId does not reference an existing message")
			}
			return nil, err
		}
		if target.ConversationID != conversationID {
			return nil, apperrors.BadRequest("replyToMessageId belongs to another conversation")
		}
		message.ReplyToMessageID = &target.ID
	}

	return message, nil
}

// GetMessages lists a conversation's messages newest-first
func (s *messagingService) GetMessages(ctx context.Context, conversationID string, filter repository.MessageFilter, requester models.Participant) ([]models.DirectMessage, int64, error) {
	if _, err := s.authorize(ctx, conversationID, requester); err != nil {
		return nil, 0, err
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, 0, apperrors.BadRequest(fmt.Sprintf("unknown message type %q", filter.Type))
	}

	filter.Limit, filter.Offset = validator.ValidatePagination(filter.Limit, filter.Offset)
	return s.messages.ListByConversation(ctx, conversationID, filter)
}

// ownedMessage loads a message and checks the requester sent it
func (s *messagingService) ownedMessage(ctx context.Context, messageID string, requester models.Participant) (*models.DirectMessage, error) {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !message.AuthoredBy(requester.ID, requester.Type) {
		return nil, apperrors.ErrNotSender
	}
	return message, nil
}

// EditMessage replaces the content of a message the requester sent
func (s *messagingService) EditMessage(ctx context.Context, messageID, content string, requester models.Participant) (*models.DirectMessage, error) {
	content = validator.SanitizeMessage(content)
	if content == "" {
		return nil, apperrors.BadRequest("content is required")
	}

	if _, err := s.ownedMessage(ctx, messageID, requester); err != nil {
		return nil, err
	}

	updated, err := s.messages.UpdateContent(ctx, messageID, content, s.now())
	if err != nil {
		return nil, err
	}

	s.notifyConversation(ctx, updated.ConversationID, websocket.MessageTypeMessageEdited, updated)
	return updated, nil
}

// DeleteMessage removes a message the requester sent
func (s *messagingService) DeleteMessage(ctx context.Context, messageID string, requester models.Participant) error {
	message, err := s.ownedMessage(ctx, messageID, requester)
	if err != nil {
		return err
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}

	s.logger.Info("message deleted",
		slog.String("message_id", messageID),
		slog.String("conversation_id", message.ConversationID))

	s.notifyConversation(ctx, message.ConversationID, websocket.MessageTypeMessageDeleted, MessageDeleted{
		ID:             messageID,
		ConversationID: message.ConversationID,
	})
	return nil
}

// MarkAsRead flags the messages as read for the requester and returns the
// recomputed unread counter of every conversation they belong to.
func (s *messagingService) MarkAsRead(ctx context.Context, messageIDs []string, requester models.Participant) ([]repository.ReadReceipt, error) {
	ids := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, apperrors.BadRequest("messageIds is required")
	}

	receipts, err := s.messages.MarkRead(ctx, ids, requester, s.now())
	if err != nil {
		return nil, err
	}

	for _, receipt := range receipts {
		s.notifyConversation(ctx, receipt.ConversationID, websocket.MessageTypeMessagesRead, MessagesRead{
			ConversationID: receipt.ConversationID,
			Reader:         requester.Key(),
			MessageIDs:     receipt.MessageIDs,
			UnreadCount:    receipt.UnreadCount,
		})
	}
	return receipts, nil
}

// GetUnreadCount returns the requester's unread counter in a conversation
func (s *messagingService) GetUnreadCount(ctx context.Context, conversationID string, requester models.Participant) (int, error) {
	conversation, err := s.authorize(ctx, conversationID, requester)
	if err != nil {
		return 0, err
	}
	return conversation.UnreadCounts()[requester.Key()], nil
}

// CreateSupportConversation opens, or reuses, the direct conversation between
// the coach and the longest-serving active admin.
func (s *messagingService) CreateSupportConversation(ctx context.Context, coachID string) (*models.ConversationView, error) {
	admin, err := s.directory.EarliestActiveAdmin(ctx)
	if err != nil {
		return nil, err
	}

	name := s.config.SupportChatName
	return s.CreateConversation(ctx, CreateConversationInput{
		Type:             models.ConversationDirect,
		Name:             &name,
		ParticipantIDs:   []string{admin.ID},
		ParticipantTypes: []models.ParticipantType{models.ParticipantAdmin},
	}, models.Participant{ID: coachID, Type: models.ParticipantCoach})
}

// notifyConversation pushes an event to every participant of a conversation
func (s *messagingService) notifyConversation(ctx context.Context, conversationID string, eventType websocket.MessageType, payload interface{}) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		s.logger.Warn("failed to load conversation for notification",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err))
		return
	}
	s.notifier.Notify(conversation.ParticipantKeys(), eventType, payload)
}

// publish hands an event to the bus
func (s *messagingService) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.publisher, s.logger, event)
}
