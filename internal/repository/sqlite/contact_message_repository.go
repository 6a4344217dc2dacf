package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agency-site/internal/domain"
	"agency-site/internal/repository"
)

const createContactMessagesTable = `
CREATE TABLE IF NOT EXISTS contact_messages (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	message TEXT NOT NULL,
	is_read BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contact_messages_created_at ON contact_messages(created_at);
`

type ContactMessageRepository struct {
	db *sql.DB
}

func NewContactMessageRepository(db *sql.DB) repository.ContactMessageRepository {
	return &ContactMessageRepository{db: db}
}

func (r *ContactMessageRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createContactMessagesTable); err != nil {
		return fmt.Errorf("create contact_messages table: %w", err)
	}
	return nil
}

func (r *ContactMessageRepository) Create(ctx context.Context, msg *domain.ContactMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO contact_messages (id, name, email, message, is_read, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.Name,
		msg.Email,
		msg.Message,
		msg.IsRead,
		msg.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

func (r *ContactMessageRepository) List(ctx context.Context) ([]domain.ContactMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, email, message, is_read, created_at
FROM contact_messages
ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query contact messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.ContactMessage{}
	for rows.Next() {
		var msg domain.ContactMessage
		if err := rows.Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Message, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *ContactMessageRepository) MarkRead(ctx context.Context, id string) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM contact_messages WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("contact message %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup contact message: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE contact_messages SET is_read = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark contact message read: %w", err)
	}
	return nil
}
