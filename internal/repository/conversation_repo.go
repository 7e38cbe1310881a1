package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mattkerbyy/Bubbly-sub001/internal/models"
	"github.com/mattkerbyy/Bubbly-sub001/pkg/pairkey"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `
	id, user_a_id, user_b_id, unread_a, unread_b,
	last_message_at, last_message_preview, created_at, updated_at
`

// CreateOrGet resolves the conversation between two users, creating it on
// first contact. The pair is canonicalized before the lookup, so argument
// order never matters, and the upsert rides on the unique constraint over the
// canonical pair: two racing first-contact requests converge on one row.
func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	userID string,
	otherUserID string,
) (*models.Conversation, error) {
	userA, userB, err := pairkey.Canonicalize(userID, otherUserID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO conversations (user_a_id, user_b_id)
		VALUES ($1, $2)
		ON CONFLICT (user_a_id, user_b_id)
		DO UPDATE SET updated_at = conversations.updated_at
		RETURNING ` + conversationColumns

	return r.scanConversation(r.db.QueryRow(ctx, query, userA, userB))
}

func (r *ConversationRepository) GetByIDForParticipant(
	ctx context.Context,
	conversationID int64,
	participantID string,
) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1 AND (user_a_id = $2 OR user_b_id = $2)
	`

	return r.scanConversation(r.db.QueryRow(ctx, query, conversationID, participantID))
}

// ListForParticipant returns every conversation the user takes part in,
// annotated with the other participant and the unread counter belonging to
// the caller's side, most recently active first. Conversations that never
// carried a message sort last.
func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID string,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id, c.user_a_id, c.user_b_id, c.unread_a, c.unread_b,
			c.last_message_at, c.last_message_preview, c.created_at, c.updated_at,
			CASE WHEN c.user_a_id = $1 THEN c.user_b_id ELSE c.user_a_id END,
			CASE WHEN c.user_a_id = $1 THEN c.unread_a ELSE c.unread_b END
		FROM conversations c
		WHERE c.user_a_id = $1 OR c.user_b_id = $1
		ORDER BY c.last_message_at DESC NULLS LAST, c.id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.UserAID,
			&summary.UserBID,
			&summary.UnreadA,
			&summary.UnreadB,
			&summary.LastMessageAt,
			&summary.LastMessagePreview,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.OtherUserID,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// RecordMessage refreshes the denormalized last-message fields and bumps the
// unread counter on the recipient's side by one. The increment happens inside
// the UPDATE itself, so concurrent sends into the same conversation are both
// preserved.
func (r *ConversationRepository) RecordMessage(
	ctx context.Context,
	conversationID int64,
	recipientID string,
	preview string,
	sentAt time.Time,
) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = $2,
		    last_message_preview = $3,
		    updated_at = NOW(),
		    unread_a = unread_a + CASE WHEN user_a_id = $4 THEN 1 ELSE 0 END,
		    unread_b = unread_b + CASE WHEN user_b_id = $4 THEN 1 ELSE 0 END
		WHERE id = $1
	`, conversationID, sentAt, preview, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ResetUnread zeroes the unread counter on the participant's side. A hard
// reset, never a decrement, so the counter self-heals if it ever drifted.
func (r *ConversationRepository) ResetUnread(
	ctx context.Context,
	conversationID int64,
	participantID string,
) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET unread_a = CASE WHEN user_a_id = $2 THEN 0 ELSE unread_a END,
		    unread_b = CASE WHEN user_b_id = $2 THEN 0 ELSE unread_b END
		WHERE id = $1
	`, conversationID, participantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, conversationID int64) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM conversations
		WHERE id = $1
	`, conversationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UnreadTotalForParticipant sums the caller-side counters across all of the
// user's conversations. It never scans the messages table.
func (r *ConversationRepository) UnreadTotalForParticipant(
	ctx context.Context,
	participantID string,
) (int, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE WHEN user_a_id = $1 THEN unread_a ELSE unread_b END
		), 0)
		FROM conversations
		WHERE user_a_id = $1 OR user_b_id = $1
	`

	var total int
	if err := r.db.QueryRow(ctx, query, participantID).Scan(&total); err != nil {
		return 0, err
	}

	return total, nil
}

func (r *ConversationRepository) scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conversation models.Conversation
	err := row.Scan(
		&conversation.ID,
		&conversation.UserAID,
		&conversation.UserBID,
		&conversation.UnreadA,
		&conversation.UnreadB,
		&conversation.LastMessageAt,
		&conversation.LastMessagePreview,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}
