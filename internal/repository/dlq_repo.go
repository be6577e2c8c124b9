package repository

import (
	"context"
	"database/sql"
	"fmt"

	"studyshare/internal/model"
)

// DLQRepository stores Pub/Sub messages that exhausted their delivery attempts.
type DLQRepository interface {
	Create(ctx context.Context, message *model.DeadLetterMessage) error
}

type dlqRepository struct {
	db *sql.DB
}

func NewDLQRepository(db *sql.DB) DLQRepository {
	return &dlqRepository{db: db}
}

func (r *dlqRepository) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	query := `
		INSERT INTO dead_letter_messages (subscription_name, message_id, payload, attributes, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subscription_name, message_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		message.SubscriptionName,
		message.MessageID,
		message.Payload,
		message.Attributes,
		message.Status,
	); err != nil {
		return fmt.Errorf("failed to insert dead letter message %s: %w", message.MessageID, err)
	}
	return nil
}
