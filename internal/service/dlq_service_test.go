package service

import (
	"context"
	"encoding/base64"
	"testing"

	"studyshare/internal/api/v1/dto"
	"studyshare/internal/model"
)

type captureDLQRepo struct {
	saved []*model.DeadLetterMessage
}

func (r *captureDLQRepo) Create(_ context.Context, m *model.DeadLetterMessage) error {
	r.saved = append(r.saved, m)
	return nil
}

func TestDLQServiceProcessAndSave(t *testing.T) {
	repo := &captureDLQRepo{}
	svc := NewDLQService(repo)

	err := svc.ProcessAndSave(context.Background(), &dto.PubSubPushRequest{
		Subscription: "projects/p/subscriptions/access-events-dlq",
		Message: dto.PubSubMessage{
			Data:       base64.StdEncoding.EncodeToString([]byte(`{"type":"bonus_granted"}`)),
			MessageID:  "42",
			Attributes: map[string]string{"event_type": "bonus_granted"},
		},
	})
	if err != nil {
		t.Fatalf("ProcessAndSave: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("saved %d messages", len(repo.saved))
	}
	m := repo.saved[0]
	if m.Payload != `{"type":"bonus_granted"}` || m.MessageID != "42" || m.Status != model.DeadLetterStatusUnprocessed {
		t.Errorf("message = %+v", m)
	}
	if m.Attributes == nil || *m.Attributes != `{"event_type":"bonus_granted"}` {
		t.Errorf("attributes = %v", m.Attributes)
	}
}

func TestDLQServiceKeepsUndecodablePayload(t *testing.T) {
	repo := &captureDLQRepo{}
	if err := NewDLQService(repo).ProcessAndSave(context.Background(), &dto.PubSubPushRequest{
		Message: dto.PubSubMessage{Data: "not base64!", MessageID: "7"},
	}); err != nil {
		t.Fatal(err)
	}
	if repo.saved[0].Payload != "not base64!" || repo.saved[0].Attributes != nil {
		t.Errorf("message = %+v", repo.saved[0])
	}
}
