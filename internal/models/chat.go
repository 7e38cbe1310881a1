package models

import "time"

type Conversation struct {
	ID                 int64      `json:"id"`
	UserAID            string     `json:"user_a_id"`
	UserBID            string     `json:"user_b_id"`
	UnreadA            int        `json:"-"`
	UnreadB            int        `json:"-"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview *string    `json:"last_message_preview,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// OtherParticipant returns the participant that is not the given user.
func (c *Conversation) OtherParticipant(userID string) string {
	if userID == c.UserAID {
		return c.UserBID
	}
	return c.UserAID
}

// UnreadFor returns the unread counter belonging to the given participant's
// side of the conversation.
func (c *Conversation) UnreadFor(userID string) int {
	if userID == c.UserAID {
		return c.UnreadA
	}
	return c.UnreadB
}

type ChatMessage struct {
	ID             int64        `json:"id"`
	ConversationID int64        `json:"conversation_id"`
	SenderID       string       `json:"sender_id"`
	RecipientID    string       `json:"recipient_id"`
	Content        string       `json:"content"`
	IsRead         bool         `json:"is_read"`
	CreatedAt      time.Time    `json:"created_at"`
	Sender         *UserSummary `json:"sender,omitempty"`
}

type ConversationSummary struct {
	Conversation
	OtherUserID string `json:"other_user_id"`
	UnreadCount int    `json:"unread_count"`
}

type ConversationView struct {
	Conversation
	OtherUser   *UserSummary `json:"other_user,omitempty"`
	OtherOnline bool         `json:"other_online"`
	UnreadCount int          `json:"unread_count"`
}

type PaginationMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}
