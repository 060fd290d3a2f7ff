package store

import (
	"context"
	"fmt"
	"time"
)

// Memory is a minimal row for the memories reminders attach to. Semantic
// content and search live in the external memory API; this table exists so
// ownership checks are enforceable locally.
type Memory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateMemory inserts a memory row.
func (s *Store) CreateMemory(ctx context.Context, m *Memory) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO memories (id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4)`,
		m.ID, m.UserID, m.Content, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// MemoryOwner returns the owning user of a memory, or "" when the memory
// does not exist.
func (s *Store) MemoryOwner(ctx context.Context, memoryID string) (string, error) {
	var userID string
	err := s.db.QueryRow(ctx,
		`SELECT user_id FROM memories WHERE id = $1`, memoryID,
	).Scan(&userID)
	if err != nil {
		if noRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("memory owner: %w", err)
	}
	return userID, nil
}
