package repository

import (
	"context"
	"time"

	"sidequest/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines persistence operations for chats and their messages.
type ChatRepository interface {
	Create(ctx context.Context, memberIDs ...uint) (*models.Chat, error)
	GetByID(ctx context.Context, id uint) (*models.Chat, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Chat, error)
	ChatIDsForUser(ctx context.Context, userID uint) ([]uint, error)
	Delete(ctx context.Context, id uint) error
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, chatID uint) ([]models.Message, error)
	GetMessage(ctx context.Context, id uint) (*models.Message, error)
	DeleteMessage(ctx context.Context, id uint) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository returns a new ChatRepository implementation.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// recentFirst is the ordering used wherever a user's chats are listed; the
// room tie-break relies on it.
const recentFirst = "chats.last_activity DESC, chats.id DESC"

func (r *chatRepository) Create(ctx context.Context, memberIDs ...uint) (*models.Chat, error) {
	chat := &models.Chat{LastActivity: time.Now().UTC()}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(chat).Error; err != nil {
			return err
		}
		for _, uid := range memberIDs {
			if err := tx.Exec("INSERT INTO chat_members (chat_id, user_id) VALUES (?, ?)", chat.ID, uid).Error; err != nil {
				return err
			}
		}
		return tx.Preload("Members").First(chat, chat.ID).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return chat, nil
}

func (r *chatRepository) GetByID(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).Preload("Members").First(&chat, id).Error; err != nil {
		return nil, notFoundOr(err, "Chat", id)
	}
	return &chat, nil
}

func (r *chatRepository) ListForUser(ctx context.Context, userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Preload("Members").
		Joins("JOIN chat_members ON chat_members.chat_id = chats.id").
		Where("chat_members.user_id = ?", userID).
		Order(recentFirst).
		Find(&chats).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return chats, nil
}

// ChatIDsForUser lists the user's chat ids, most recently active first.
func (r *chatRepository) ChatIDsForUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Chat{}).
		Joins("JOIN chat_members ON chat_members.chat_id = chats.id").
		Where("chat_members.user_id = ?", userID).
		Order(recentFirst).
		Pluck("chats.id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *chatRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Chat{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewNotFoundError("Chat", id)
		}
		return deleteChats(tx, []uint{id})
	})
	if err != nil {
		return passThrough(err)
	}
	return nil
}

// deleteChats removes chats with their messages and memberships. It runs
// inside the caller's transaction.
func deleteChats(tx *gorm.DB, ids []uint) error {
	if err := tx.Where("chat_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM chat_members WHERE chat_id IN ?", ids).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Chat{}).Error
}

// CreateMessage stores msg and advances the chat's last activity in one
// transaction.
func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		res := tx.Model(&models.Chat{}).Where("id = ?", msg.ChatID).Update("last_activity", msg.CreatedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Chat", msg.ChatID)
		}
		return tx.Create(msg).Error
	})
	if err != nil {
		return passThrough(err)
	}
	return nil
}

// GetMessages returns the chat history in persistence order.
func (r *chatRepository) GetMessages(ctx context.Context, chatID uint) ([]models.Message, error) {
	var messages []models.Message
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("id ASC").Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *chatRepository) GetMessage(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, notFoundOr(err, "Message", id)
	}
	return &msg, nil
}

func (r *chatRepository) DeleteMessage(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Message{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Message", id)
	}
	return nil
}
