package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists chats and their messages in Postgres. Idempotency of
// replays is the database schema's concern, not handled here.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetChat returns the chat by id, or nil when it does not exist.
func (r *Repository) GetChat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	query := `SELECT id, user_id, last_message_time, created_at FROM chats WHERE id = $1`

	chat := &Chat{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&chat.ID, &chat.UserID, &chat.LastMessageTime, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying chat: %w", err)
	}
	return chat, nil
}

// GetMessages returns a chat's messages in conversation order.
func (r *Repository) GetMessages(ctx context.Context, chatID uuid.UUID) ([]StoredMessage, error) {
	query := `
		SELECT id, chat_id, role, content, created, display_type
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY created ASC`

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("querying chat messages: %w", err)
	}
	defer rows.Close()

	var messages []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Created, &m.DisplayType); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AppendTurn stores the user and assistant messages of a completed exchange
// and bumps the chat's last-message time, all in one transaction. The user
// message may be empty when the assistant opens a new conversation; nothing
// is stored for it in that case.
func (r *Repository) AppendTurn(ctx context.Context, turn Turn) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO chat_messages (id, chat_id, role, content, created, display_type)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if turn.UserMessage != "" {
		_, err = tx.Exec(ctx, insert,
			uuid.New(), turn.ChatID, "user", turn.UserMessage, turn.UserTimestamp, "text")
		if err != nil {
			return fmt.Errorf("inserting user message: %w", err)
		}
	}

	_, err = tx.Exec(ctx, insert,
		uuid.New(), turn.ChatID, "assistant", turn.AgentMessage, turn.AgentTimestamp, "text")
	if err != nil {
		return fmt.Errorf("inserting agent message: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE chats SET last_message_time = $1 WHERE id = $2`,
		time.Now(), turn.ChatID)
	if err != nil {
		return fmt.Errorf("updating chat: %w", err)
	}

	return tx.Commit(ctx)
}
