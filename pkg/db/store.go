package db

import (
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a conversation does not exist or is not owned
// by the requesting user. The two cases are deliberately indistinguishable.
var ErrNotFound = pkgerrors.New("conversation not found")

// Store is the durable conversation store. All conversation reads and writes
// are keyed by (id, user id) so ownership is enforced at this boundary.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store on an open gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates the database tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Conversation{}, &Message{})
}

// DB exposes the underlying handle for test setup.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ========== Conversations ==========

// CreateConversation persists a new conversation.
func (s *Store) CreateConversation(conv *Conversation) error {
	if err := s.db.Create(conv).Error; err != nil {
		return pkgerrors.Wrap(err, "create conversation")
	}
	return nil
}

// FindByIDAndUser returns the conversation only when owned by userID.
// A missing conversation and a conversation owned by someone else both
// return ErrNotFound.
func (s *Store) FindByIDAndUser(id, userID string) (*Conversation, error) {
	var conv Conversation
	err := s.db.First(&conv, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if pkgerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "find conversation")
	}
	return &conv, nil
}

// ConversationExists reports whether any user owns the given id. Used to
// distinguish "create it" from "someone else's conversation" without leaking
// that distinction to callers of the API.
func (s *Store) ConversationExists(id string) (bool, error) {
	var count int64
	if err := s.db.Model(&Conversation{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, pkgerrors.Wrap(err, "check conversation")
	}
	return count > 0, nil
}

// ListConversations returns a page of the user's conversations, most recently
// active first.
func (s *Store) ListConversations(userID string, limit, offset int) ([]Conversation, bool, error) {
	var conversations []Conversation

	// Fetch one more to check if there are more results
	err := s.db.Where("user_id = ?", userID).
		Order("last_activity_at DESC").
		Limit(limit + 1).Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "list conversations")
	}

	hasMore := len(conversations) > limit
	if hasMore {
		conversations = conversations[:limit]
	}
	return conversations, hasMore, nil
}

// SaveConversationFields applies a partial whole-record write. Fields not in
// the map are untouched; concurrent writers are last-writer-wins.
func (s *Store) SaveConversationFields(id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	err := s.db.Model(&Conversation{}).Where("id = ?", id).Updates(fields).Error
	return pkgerrors.Wrap(err, "save conversation")
}

// TouchActivity refreshes last_activity_at and pushes expires_at forward.
func (s *Store) TouchActivity(id string, ttl time.Duration) error {
	now := time.Now()
	return s.SaveConversationFields(id, map[string]interface{}{
		"last_activity_at": now,
		"expires_at":       now.Add(ttl),
	})
}

// DeleteByIDForUser removes a conversation and all of its messages.
func (s *Store) DeleteByIDForUser(id, userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&Conversation{})
		if res.Error != nil {
			return pkgerrors.Wrap(res.Error, "delete conversation")
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&Message{}).Error; err != nil {
			return pkgerrors.Wrap(err, "delete messages")
		}
		return nil
	})
}

// DeleteExpired removes conversations whose retention window has lapsed,
// cascading to their messages. Returns the number of conversations removed.
func (s *Store) DeleteExpired(now time.Time) (int64, error) {
	var removed int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&Conversation{}).
			Where("expires_at <= ?", now).
			Pluck("id", &ids).Error; err != nil {
			return pkgerrors.Wrap(err, "find expired conversations")
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("conversation_id IN ?", ids).Delete(&Message{}).Error; err != nil {
			return pkgerrors.Wrap(err, "delete expired messages")
		}
		res := tx.Where("id IN ?", ids).Delete(&Conversation{})
		if res.Error != nil {
			return pkgerrors.Wrap(res.Error, "delete expired conversations")
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

// ========== Messages ==========

// CreateMessages persists a batch of messages in one transaction.
func (s *Store) CreateMessages(msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range msgs {
			if err := tx.Create(m).Error; err != nil {
				return pkgerrors.Wrap(err, "create message")
			}
		}
		return nil
	})
}

// SaveMessage inserts or updates a single message.
func (s *Store) SaveMessage(msg *Message) error {
	return pkgerrors.Wrap(s.db.Save(msg).Error, "save message")
}

// FindMessages returns all messages of a conversation in creation order.
func (s *Store) FindMessages(conversationID string) ([]Message, error) {
	var messages []Message
	err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find messages")
	}
	return messages, nil
}

// FindRecentMessages returns the most recent `limit` messages in creation
// order.
func (s *Store) FindRecentMessages(conversationID string, limit int) ([]Message, error) {
	var messages []Message
	err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find recent messages")
	}
	// Reverse back into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// FindMessagesAfter returns messages created strictly after the given
// watermark message, in creation order. Rows sharing the watermark's
// timestamp are ordered by id so none are skipped. An unknown watermark
// falls back to the full history.
func (s *Store) FindMessagesAfter(conversationID, messageID string) ([]Message, error) {
	var watermark Message
	err := s.db.First(&watermark, "id = ? AND conversation_id = ?", messageID, conversationID).Error
	if err != nil {
		if pkgerrors.Is(err, gorm.ErrRecordNotFound) {
			return s.FindMessages(conversationID)
		}
		return nil, pkgerrors.Wrap(err, "find watermark message")
	}

	var messages []Message
	err = s.db.Where("conversation_id = ? AND (created_at > ? OR (created_at = ? AND id > ?))",
		conversationID, watermark.CreatedAt, watermark.CreatedAt, watermark.ID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find messages after watermark")
	}
	return messages, nil
}

// CountUserMessagesInWindow counts the user's own turns across all of their
// conversations within the trailing window. The window slides; there is no
// bucket reset.
func (s *Store) CountUserMessagesInWindow(userID string, window time.Duration) (int64, error) {
	since := time.Now().Add(-window)
	var count int64
	err := s.db.Model(&Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ? AND messages.role = ? AND messages.created_at > ?",
			userID, RoleUser, since).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(err, "count messages in window")
	}
	return count, nil
}
