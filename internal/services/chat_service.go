package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mattkerbyy/Bubbly-sub001/internal/models"
	"github.com/mattkerbyy/Bubbly-sub001/internal/repository"
	"github.com/mattkerbyy/Bubbly-sub001/pkg/pairkey"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUserNotFound = errors.New("user not found")
	ErrConflict     = errors.New("conflict")
)

const (
	maxContentRunes  = 2000
	previewRuneLimit = 120

	sendRetryLimit   = 3
	sendRetryBackoff = 25 * time.Millisecond
)

type userReader interface {
	GetSummaryByID(ctx context.Context, id string) (*models.UserSummary, error)
}

// PresenceChecker answers whether a user currently holds an open realtime
// connection. Presence is advisory display state and is never persisted here.
type PresenceChecker interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// ChatService composes the conversation and message repositories into the
// externally visible messaging operations. It is the only place transactions
// are opened: every mutation that spans both tables commits as one unit.
type ChatService struct {
	db               *pgxpool.Pool
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         userReader
	presence         PresenceChecker
}

type ChatDelivery struct {
	Conversation *models.Conversation
	Message      *models.ChatMessage
	RecipientID  string
}

func NewChatService(
	db *pgxpool.Pool,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
	presence PresenceChecker,
) *ChatService {
	return &ChatService{
		db:               db,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		presence:         presence,
	}
}

// ResolveConversation finds or lazily creates the conversation between the
// caller and a peer, and annotates it relative to the caller: who the other
// user is, whether they are online, and the caller-side unread count.
func (s *ChatService) ResolveConversation(
	ctx context.Context,
	callerID string,
	otherUserID string,
) (*models.ConversationView, error) {
	if _, _, err := pairkey.Canonicalize(callerID, otherUserID); err != nil {
		return nil, ErrInvalidInput
	}

	otherUser, err := s.userRepo.GetSummaryByID(ctx, strings.TrimSpace(otherUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	conversation, err := s.conversationRepo.CreateOrGet(ctx, callerID, otherUserID)
	if err != nil {
		if errors.Is(err, pairkey.ErrSameUser) || errors.Is(err, pairkey.ErrEmptyID) {
			return nil, ErrInvalidInput
		}
		return nil, err
	}

	return &models.ConversationView{
		Conversation: *conversation,
		OtherUser:    otherUser,
		OtherOnline:  s.isOnline(ctx, otherUser.ID),
		UnreadCount:  conversation.UnreadFor(strings.TrimSpace(callerID)),
	}, nil
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	callerID string,
) ([]models.ConversationSummary, error) {
	if callerID == "" {
		return nil, ErrInvalidInput
	}

	return s.conversationRepo.ListForParticipant(ctx, callerID)
}

// ListMessages returns one page of a conversation's history in chronological
// order. The page is fetched newest-first so "the most recent N" is cheap,
// then reversed for display. Listing never changes read state; that only
// happens through MarkMessagesRead.
func (s *ChatService) ListMessages(
	ctx context.Context,
	callerID string,
	conversationID int64,
	page int,
	limit int,
) ([]models.ChatMessage, int, error) {
	if callerID == "" || conversationID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	if _, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, callerID); err != nil {
		return nil, 0, notFoundOr(err)
	}

	messages, total, err := s.messageRepo.ListByConversation(
		ctx,
		conversationID,
		limit,
		(page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, total, nil
}

// SendMessage appends a message and, in the same transaction, refreshes the
// conversation's last-message cache and bumps the recipient-side unread
// counter by exactly one. Contention on the conversation row is the one hot
// spot in the system, so serialization failures retry a few times before
// surfacing as a conflict.
func (s *ChatService) SendMessage(
	ctx context.Context,
	senderID string,
	conversationID int64,
	content string,
) (*ChatDelivery, error) {
	if senderID == "" || conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxContentRunes {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	recipientID := conversation.OtherParticipant(senderID)

	var message *models.ChatMessage
	for attempt := 1; ; attempt++ {
		message, err = s.sendOnce(ctx, conversationID, senderID, recipientID, trimmed)
		if err == nil {
			break
		}
		if isRetryableTxError(err) {
			if attempt >= sendRetryLimit {
				return nil, ErrConflict
			}
			if err := sleepCtx(ctx, time.Duration(attempt)*sendRetryBackoff); err != nil {
				return nil, err
			}
			continue
		}
		if errors.Is(err, pgx.ErrNoRows) || isForeignKeyViolation(err) {
			// The conversation was deleted while the send was in flight;
			// the rollback already discarded the insert.
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Display-only enrichment; the send has already committed.
	if sender, err := s.userRepo.GetSummaryByID(ctx, senderID); err == nil {
		message.Sender = sender
	}

	return &ChatDelivery{
		Conversation: conversation,
		Message:      message,
		RecipientID:  recipientID,
	}, nil
}

func (s *ChatService) sendOnce(
	ctx context.Context,
	conversationID int64,
	senderID string,
	recipientID string,
	content string,
) (*models.ChatMessage, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	message, err := txMessageRepo.Create(ctx, conversationID, senderID, recipientID, content)
	if err != nil {
		return nil, err
	}

	if err := txConversationRepo.RecordMessage(
		ctx,
		conversationID,
		recipientID,
		previewOf(content),
		message.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return message, nil
}

// MarkMessagesRead flips every unread message addressed to the reader and
// resets the reader-side counter to zero in one transaction. Calling it again
// immediately is a no-op. It returns how many messages changed state.
func (s *ChatService) MarkMessagesRead(
	ctx context.Context,
	readerID string,
	conversationID int64,
) (int64, error) {
	if readerID == "" || conversationID <= 0 {
		return 0, ErrInvalidInput
	}

	if _, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, readerID); err != nil {
		return 0, notFoundOr(err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	// The reset goes first so this tx takes the conversation-row lock before
	// reading messages: an in-flight send holding that lock commits before
	// the flip statement runs, and its message is flipped along with the
	// rest. Flipping first could zero the counter over a message the flip
	// never saw.
	if err := txConversationRepo.ResetUnread(ctx, conversationID, readerID); err != nil {
		return 0, notFoundOr(err)
	}

	marked, err := txMessageRepo.MarkConversationRead(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return marked, nil
}

// DeleteConversation removes a conversation on behalf of either participant.
// The schema cascades the delete to every message the conversation owns.
func (s *ChatService) DeleteConversation(
	ctx context.Context,
	requesterID string,
	conversationID int64,
) error {
	if requesterID == "" || conversationID <= 0 {
		return ErrInvalidInput
	}

	if _, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, requesterID); err != nil {
		return notFoundOr(err)
	}

	if err := s.conversationRepo.Delete(ctx, conversationID); err != nil {
		return notFoundOr(err)
	}

	return nil
}

// UnreadSummary totals the caller-side unread counters across every
// conversation the user participates in. Cost scales with the user's
// conversation count, never with message volume.
func (s *ChatService) UnreadSummary(ctx context.Context, callerID string) (int, error) {
	if callerID == "" {
		return 0, ErrInvalidInput
	}

	return s.conversationRepo.UnreadTotalForParticipant(ctx, callerID)
}

func (s *ChatService) isOnline(ctx context.Context, userID string) bool {
	if s.presence == nil {
		return false
	}
	// Presence is a display annotation; resolution must not fail with it.
	online, err := s.presence.IsOnline(ctx, userID)
	if err != nil {
		return false
	}
	return online
}

func previewOf(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRuneLimit {
		return content
	}
	return string(runes[:previewRuneLimit])
}

// A caller who is not a participant gets the same answer as a conversation
// that does not exist.
func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
