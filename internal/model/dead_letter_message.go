package model

import "time"

const DeadLetterStatusUnprocessed = "unprocessed"

// DeadLetterMessage is an access event that Pub/Sub gave up delivering.
type DeadLetterMessage struct {
	ID               string    `db:"id"`
	SubscriptionName string    `db:"subscription_name"`
	MessageID        string    `db:"message_id"`
	Payload          string    `db:"payload"`
	Attributes       *string   `db:"attributes"` // JSON object, nil when the message had none
	Status           string    `db:"status"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}
