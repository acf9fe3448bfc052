package models

import (
	"time"
)

// Chat is a conversation between its members. Its id doubles as the
// realtime room identifier.
type Chat struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	LastActivity time.Time `gorm:"not null;index" json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	Members      []User    `gorm:"many2many:chat_members;" json:"members,omitempty"`
	Messages     []Message `gorm:"foreignKey:ChatID" json:"messages,omitempty"`
}

// HasMember reports whether userID belongs to the chat. Members must be loaded.
func (c *Chat) HasMember(userID uint) bool {
	return containsUser(c.Members, userID)
}

// Message is one line of text sent into a chat.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"not null;index" json:"chat_id"`
	SenderID  uint      `gorm:"not null;index" json:"sender_id"`
	Body      string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"time"`
}
