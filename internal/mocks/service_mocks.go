// Package mocks holds testify mocks of the service and storage interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"github.com/welldanyogia/coachhub-backend/internal/repository"
	"github.com/welldanyogia/coachhub-backend/internal/services"
)

// MockMessagingService implements services.MessagingService
type MockMessagingService struct {
	mock.Mock
}

// CreateConversation creates or reuses a conversation
func (m *MockMessagingService) CreateConversation(ctx context.Context, input services.CreateConversationInput, requester models.Participant) (*models.ConversationView, error) {
	args := m.Called(ctx, input, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationView), args.Error(1)
}

// GetConversations lists the requester's conversations
func (m *MockMessagingService) GetConversations(ctx context.Context, query services.ConversationQuery, requester models.Participant) ([]models.ConversationView, int64, error) {
	args := m.Called(ctx, query, requester)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.ConversationView), args.Get(1).(int64), args.Error(2)
}

// GetConversation returns one conversation
func (m *MockMessagingService) GetConversation(ctx context.Context, id string, requester models.Participant) (*models.ConversationView, error) {
	args := m.Called(ctx, id, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationView), args.Error(1)
}

// SendMessage stores a message
func (m *MockMessagingService) SendMessage(ctx context.Context, conversationID string, input services.SendMessageInput, sender models.Participant, senderName string) (*models.DirectMessage, error) {
	args := m.Called(ctx, conversationID, input, sender, senderName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DirectMessage), args.Error(1)
}

// GetMessages lists a conversation's messages
func (m *MockMessagingService) GetMessages(ctx context.Context, conversationID string, filter repository.MessageFilter, requester models.Participant) ([]models.DirectMessage, int64, error) {
	args := m.Called(ctx, conversationID, filter, requester)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.DirectMessage), args.Get(1).(int64), args.Error(2)
}

// EditMessage replaces a message's content
func (m *MockMessagingService) EditMessage(ctx context.Context, messageID, content string, requester models.Participant) (*models.DirectMessage, error) {
	args := m.Called(ctx, messageID, content, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DirectMessage), args.Error(1)
}

// DeleteMessage removes a message
func (m *MockMessagingService) DeleteMessage(ctx context.Context, messageID string, requester models.Participant) error {
	args := m.Called(ctx, messageID, requester)
	return args.Error(0)
}

// MarkAsRead flags messages as read
func (m *MockMessagingService) MarkAsRead(ctx context.Context, messageIDs []string, requester models.Participant) ([]repository.ReadReceipt, error) {
	args := m.Called(ctx, messageIDs, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.ReadReceipt), args.Error(1)
}

// GetUnreadCount returns the requester's unread counter
func (m *MockMessagingService) GetUnreadCount(ctx context.Context, conversationID string, requester models.Participant) (int, error) {
	args := m.Called(ctx, conversationID, requester)
	return args.Int(0), args.Error(1)
}

// CreateSupportConversation opens the coach's support chat
func (m *MockMessagingService) CreateSupportConversation(ctx context.Context, coachID string) (*models.ConversationView, error) {
	args := m.Called(ctx, coachID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationView), args.Error(1)
}

// MockEmailSyncService implements services.EmailSyncService
type MockEmailSyncService struct {
	mock.Mock
}

// SyncClientEmails runs one coach sync
func (m *MockEmailSyncService) SyncClientEmails(ctx context.Context, coachID string) (*services.SyncResult, error) {
	args := m.Called(ctx, coachID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SyncResult), args.Error(1)
}

// AutoSyncAllCoaches sweeps every coach
func (m *MockEmailSyncService) AutoSyncAllCoaches(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// IngestForAccount runs one relayed message through the pipeline
func (m *MockEmailSyncService) IngestForAccount(ctx context.Context, accountID string, email models.InboundEmail) (bool, error) {
	args := m.Called(ctx, accountID, email)
	return args.Bool(0), args.Error(1)
}

// GetEmailThreads lists a coach's threads
func (m *MockEmailSyncService) GetEmailThreads(ctx context.Context, coachID, status string, limit int) ([]models.EmailThread, error) {
	args := m.Called(ctx, coachID, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EmailThread), args.Error(1)
}

// GetEmailThread returns one thread
func (m *MockEmailSyncService) GetEmailThread(ctx context.Context, coachID, threadID string) (*models.EmailThread, error) {
	args := m.Called(ctx, coachID, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailThread), args.Error(1)
}

// UpdateThreadStatus sets a thread's read flag
func (m *MockEmailSyncService) UpdateThreadStatus(ctx context.Context, coachID, threadID string, isRead bool) (*models.EmailThread, error) {
	args := m.Called(ctx, coachID, threadID, isRead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailThread), args.Error(1)
}

// GetSyncStats summarizes a coach's threads
func (m *MockEmailSyncService) GetSyncStats(ctx context.Context, coachID string) (*models.SyncStats, error) {
	args := m.Called(ctx, coachID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncStats), args.Error(1)
}
