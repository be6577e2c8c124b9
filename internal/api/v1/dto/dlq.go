package dto

// PubSubPushRequest is the request body for a Pub/Sub push notification.
type PubSubPushRequest struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
}

// PubSubMessage is the actual message from Pub/Sub.
type PubSubMessage struct {
	Data       string            `json:"data"` // base64
	MessageID  string            `json:"messageId" validate:"required"`
	Attributes map[string]string `json:"attributes"`
}
