package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/welldanyogia/coachhub-backend/internal/errors"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"gorm.io/gorm"
)

// MessageFilter narrows a conversation's message listing
type MessageFilter struct {
	Type   models.MessageType
	Search string
	Before *time.Time
	After  *time.Time
	Limit  int
	Offset int
}

// ReadReceipt is the recomputed unread counter of a reader in one conversation
type ReadReceipt struct {
	ConversationID string `json:"conversationId"`
	// MessageIDs are the ids of this conversation that were marked read
	MessageIDs  []string `json:"messageIds"`
	UnreadCount int      `json:"unreadCount"`
}

// DirectMessageRepository defines the interface for direct message data access
type DirectMessageRepository interface {
	Send(ctx context.Context, message *models.DirectMessage) error
	GetByID(ctx context.Context, id string) (*models.DirectMessage, error)
	ListByConversation(ctx context.Context, conversationID string, filter MessageFilter) ([]models.DirectMessage, int64, error)
	Recent(ctx context.Context, conversationID string, limit int) ([]models.DirectMessage, error)
	UpdateContent(ctx context.Context, id, content string, editedAt time.Time) (*models.DirectMessage, error)
	Delete(ctx context.Context, id string) error
	MarkRead(ctx context.Context, ids []string, reader models.Participant, readAt time.Time) ([]ReadReceipt, error)
}

// directMessageRepository implements DirectMessageRepository using GORM
type directMessageRepository struct {
	db *gorm.DB
}

// NewDirectMessageRepository creates a new DirectMessageRepository instance
func NewDirectMessageRepository(db *gorm.DB) DirectMessageRepository {
	return &directMessageRepository{db: db}
}

// notAuthoredBy excludes rows sent by the given participant
const notAuthoredBy = "NOT (sender_id = ? AND sender_type = ?)"

// Send inserts the message, points the conversation at it and increments the
// unread counter of every participant except the sender, all in one transaction.
func (r *directMessageRepository) Send(ctx context.Context, message *models.DirectMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		result := tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Updates(map[string]interface{}{
				"last_message_id": message.ID,
				"last_message_at": message.CreatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update conversation: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrConversationNotFound
		}

		senderKey := models.ParticipantKey(message.SenderType, message.SenderID)
		err := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND participant_key <> ?", message.ConversationID, senderKey).
			Update("unread_count", gorm.Expr("unread_count + 1")).Error
		if err != nil {
			return fmt.Errorf("failed to increment unread counters: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a message with its reply preview
func (r *directMessageRepository) GetByID(ctx context.Context, id string) (*models.DirectMessage, error) {
	var message models.DirectMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", err)
	}

	messages := []models.DirectMessage{message}
	if err := r.attachReplies(ctx, messages); err != nil {
		return nil, err
	}
	return &messages[0], nil
}

// ListByConversation returns filtered messages newest-first
func (r *directMessageRepository) ListByConversation(ctx context.Context, conversationID string, filter MessageFilter) ([]models.DirectMessage, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.DirectMessage{}).Where("conversation_id = ?", conversationID)
		if filter.Type != "" {
			q = q.Where("type = ?", filter.Type)
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			q = q.Where("LOWER(content) LIKE ?", "%"+strings.ToLower(search)+"%")
		}
		if filter.Before != nil {
			q = q.Where("created_at < ?", *filter.Before)
		}
		if filter.After != nil {
			q = q.Where("created_at > ?", *filter.After)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var messages []models.DirectMessage
	err := scoped().
		Order("created_at DESC, id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}

	if err := r.attachReplies(ctx, messages); err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// Recent returns up to limit messages of a conversation, newest-first
func (r *directMessageRepository) Recent(ctx context.Context, conversationID string, limit int) ([]models.DirectMessage, error) {
	var messages []models.DirectMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	if err := r.attachReplies(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateContent rewrites the message body and flags it as edited
func (r *directMessageRepository) UpdateContent(ctx context.Context, id, content string, editedAt time.Time) (*models.DirectMessage, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DirectMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
			"edited_at": editedAt,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrMessageNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete hard-deletes a message. An unread message no longer counts toward the
// other participants' unread counters, and a conversation pointing at it falls
// back to its newest remaining message.
func (r *directMessageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message models.DirectMessage
		if err := tx.Where("id = ?", id).First(&message).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrMessageNotFound
			}
			return fmt.Errorf("failed to load message: %w", err)
		}

		if err := tx.Delete(&models.DirectMessage{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete message: %w", err)
		}

		if !message.IsRead {
			senderKey := models.ParticipantKey(message.SenderType, message.SenderID)
			err := tx.Model(&models.ConversationParticipant{}).
				Where("conversation_id = ? AND participant_key <> ? AND unread_count > 0", message.ConversationID, senderKey).
				Update("unread_count", gorm.Expr("unread_count - 1")).Error
			if err != nil {
				return fmt.Errorf("failed to decrement unread counters: %w", err)
			}
		}

		var latest models.DirectMessage
		err := tx.Where("conversation_id = ?", message.ConversationID).
			Order("created_at DESC, id DESC").
			Limit(1).
			Find(&latest).Error
		if err != nil {
			return fmt.Errorf("failed to load latest message: %w", err)
		}

		updates := map[string]interface{}{"last_message_id": nil, "last_message_at": nil}
		if latest.ID != "" {
			updates = map[string]interface{}{"last_message_id": latest.ID, "last_message_at": latest.CreatedAt}
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ? AND last_message_id = ?", message.ConversationID, id).
			Updates(updates).Error
	})
}

// MarkRead flags the given messages as read on behalf of reader, skipping the
// reader's own messages and conversations the reader is not part of. The reader's
// unread counter is then recomputed for every conversation the ids touch.
func (r *directMessageRepository) MarkRead(ctx context.Context, ids []string, reader models.Participant, readAt time.Time) ([]ReadReceipt, error) {
	if len(ids) == 0 {
		return []ReadReceipt{}, nil
	}

	readerKey := reader.Key()
	memberOf := r.db.Model(&models.ConversationParticipant{}).
		Select("conversation_id").
		Where("participant_key = ?", readerKey)

	var receipts []ReadReceipt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var touched []models.DirectMessage
		err := tx.Model(&models.DirectMessage{}).
			Select("id", "conversation_id", "sender_id", "sender_type").
			Where("id IN ?", ids).
			Where("conversation_id IN (?)", memberOf).
			Order("conversation_id, created_at, id").
			Find(&touched).Error
		if err != nil {
			return fmt.Errorf("failed to resolve conversations: %w", err)
		}
		if len(touched) == 0 {
			return nil
		}

		// conversation id -> ids marked read there, in first-seen order
		var conversationIDs []string
		marked := make(map[string][]string)
		for _, m := range touched {
			if _, ok := marked[m.ConversationID]; !ok {
				conversationIDs = append(conversationIDs, m.ConversationID)
				marked[m.ConversationID] = []string{}
			}
			if m.AuthoredBy(reader.ID, reader.Type) {
				continue
			}
			marked[m.ConversationID] = append(marked[m.ConversationID], m.ID)
		}

		err = tx.Model(&models.DirectMessage{}).
			Where("id IN ?", ids).
			Where("conversation_id IN ?", conversationIDs).
			Where(notAuthoredBy, reader.ID, reader.Type).
			Updates(map[string]interface{}{"is_read": true, "read_at": readAt}).Error
		if err != nil {
			return fmt.Errorf("failed to mark messages as read: %w", err)
		}

		for _, conversationID := range conversationIDs {
			var unread int64
			err := tx.Model(&models.DirectMessage{}).
				Where("conversation_id = ? AND is_read = ?", conversationID, false).
				Where(notAuthoredBy, reader.ID, reader.Type).
				Count(&unread).Error
			if err != nil {
				return fmt.Errorf("failed to count unread messages: %w", err)
			}

			err = tx.Model(&models.ConversationParticipant{}).
				Where("conversation_id = ? AND participant_key = ?", conversationID, readerKey).
				Update("unread_count", unread).Error
			if err != nil {
				return fmt.Errorf("failed to store unread count: %w", err)
			}

			receipts = append(receipts, ReadReceipt{
				ConversationID: conversationID,
				MessageIDs:     marked[conversationID],
				UnreadCount:    int(unread),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if receipts == nil {
		receipts = []ReadReceipt{}
	}
	return receipts, nil
}

// attachReplies resolves the reply preview of every message referencing another one
func (r *directMessageRepository) attachReplies(ctx context.Context, messages []models.DirectMessage) error {
	seen := make(map[string]struct{})
	var ids []string
	for _, m := range messages {
		if m.ReplyToMessageID == nil {
			continue
		}
		if _, ok := seen[*m.ReplyToMessageID]; ok {
			continue
		}
		seen[*m.ReplyToMessageID] = struct{}{}
		ids = append(ids, *m.ReplyToMessageID)
	}
	if len(ids) == 0 {
		return nil
	}

	var previews []models.ReplyPreview
	err := r.db.WithContext(ctx).
		Model(&models.DirectMessage{}).
		Select("id, content, sender_id, sender_type, sender_name, created_at").
		Where("id IN ?", ids).
		Scan(&previews).Error
	if err != nil {
		return fmt.Errorf("failed to load reply previews: %w", err)
	}

	byID := make(map[string]*models.ReplyPreview, len(previews))
	for i := range previews {
		byID[previews[i].ID] = &previews[i]
	}
	for i := range messages {
		if messages[i].ReplyToMessageID != nil {
			messages[i].ReplyTo = byID[*messages[i].ReplyToMessageID]
		}
	}
	return nil
}
