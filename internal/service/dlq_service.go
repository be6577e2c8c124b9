package service

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"studyshare/internal/api/v1/dto"
	"studyshare/internal/model"
	"studyshare/internal/repository"
)

// DLQService persists access events that Pub/Sub dead-lettered.
type DLQService interface {
	ProcessAndSave(ctx context.Context, req *dto.PubSubPushRequest) error
}

type dlqService struct {
	repo repository.DLQRepository
}

func NewDLQService(repo repository.DLQRepository) DLQService {
	return &dlqService{repo: repo}
}

func (s *dlqService) ProcessAndSave(ctx context.Context, req *dto.PubSubPushRequest) error {
	// Keep undecodable data as-is so nothing is lost.
	payload, err := base64.StdEncoding.DecodeString(req.Message.Data)
	if err != nil {
		payload = []byte(req.Message.Data)
	}

	var attributes *string
	if len(req.Message.Attributes) > 0 {
		if b, err := json.Marshal(req.Message.Attributes); err == nil {
			a := string(b)
			attributes = &a
		}
	}

	return s.repo.Create(ctx, &model.DeadLetterMessage{
		SubscriptionName: req.Subscription,
		MessageID:        req.Message.MessageID,
		Payload:          string(payload),
		Attributes:       attributes,
		Status:           model.DeadLetterStatusUnprocessed,
	})
}
