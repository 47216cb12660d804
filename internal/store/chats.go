package store

import (
	"context"
	"fmt"

	"github.com/timemachine-ai/retrospect/internal/report"
)

// ListChatMessages returns a session's transcript in chronological order.
func (s *Store) ListChatMessages(ctx context.Context, sessionID string) ([]report.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chat_id, session_id, sender, message, sent_at, sentiment_label, sentiment_score
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY sent_at ASC, chat_id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []report.ChatMessage
	for rows.Next() {
		var m report.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Message, &m.Timestamp,
			&m.SentimentLabel, &m.SentimentScore); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return messages, nil
}

// CountChatMessages reports how many messages a session has.
func (s *Store) CountChatMessages(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE session_id = $1`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chat messages: %w", err)
	}
	return count, nil
}

// InsertChatMessage appends one message to a session transcript.
func (s *Store) InsertChatMessage(ctx context.Context, m report.ChatMessage) (int64, error) {
	var chatID int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (session_id, sender, message, sent_at, sentiment_label, sentiment_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING chat_id`,
		m.SessionID, m.Sender, m.Message, m.Timestamp, m.SentimentLabel, m.SentimentScore,
	).Scan(&chatID)
	if err != nil {
		return 0, fmt.Errorf("insert chat message: %w", err)
	}
	return chatID, nil
}
