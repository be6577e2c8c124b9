package uploadreward

import (
	"context"
	"encoding/json"
	"time"

	"studyshare/internal/model"
	"studyshare/internal/pgmq"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Job is written to the queue by the upload completion flow.
type Job struct {
	UserID     string `json:"user_id" validate:"required,uuid"`
	ResourceID string `json:"resource_id" validate:"required,uuid"`
}

// Queue is the subset of pgmq the worker needs.
type Queue interface {
	ReadWithPoll(ctx context.Context, queue string, vtSec, maxMessages, pollSec int) ([]*pgmq.Message, error)
	Send(ctx context.Context, queue string, payload []byte) error
	Delete(ctx context.Context, queue string, msgIDs []int64) error
}

// Granter credits the uploader.
type Granter interface {
	GrantBonusForUpload(ctx context.Context, userID string) (model.AccessInfo, error)
}

type Settings struct {
	QueueName           string
	DeadLetterQueueName string
	PollTimeoutSec      int
	VisibilityTimeout   int
	PollMaxMsg          int
	MaxRetries          int
	BackoffInitial      time.Duration
	BackoffMax          time.Duration
}

type Worker struct {
	queue    Queue
	granter  Granter
	settings Settings
	validate *validator.Validate
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewWorker(queue Queue, granter Granter, settings Settings, logger zerolog.Logger) *Worker {
	if settings.MaxRetries < 1 {
		settings.MaxRetries = 1
	}
	return &Worker{
		queue:    queue,
		granter:  granter,
		settings: settings,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("orchestrator", "upload-reward").Str("queue", settings.QueueName).Logger(),
		sleep:    sleepCtx,
	}
}

// Run polls the upload-reward queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("Starting upload reward orchestrator")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Shutting down upload reward orchestrator")
			return nil
		default:
		}

		msgs, err := w.queue.ReadWithPoll(ctx, w.settings.QueueName, w.settings.VisibilityTimeout, w.settings.PollMaxMsg, w.settings.PollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error().Err(err).Msg("Error reading upload reward queue")
			_ = w.sleep(ctx, time.Second)
			continue
		}
		for _, msg := range msgs {
			w.process(ctx, msg)
		}
	}
}

func (w *Worker) process(ctx context.Context, msg *pgmq.Message) {
	log := w.logger.With().Int64("msg_id", msg.ID).Int("read_ct", msg.ReadCt).Logger()

	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal upload reward payload; moving to DLQ")
		w.deadLetter(ctx, msg, log)
		return
	}
	if err := w.validate.Struct(&job); err != nil {
		log.Error().Err(err).Msg("Invalid upload reward payload; moving to DLQ")
		w.deadLetter(ctx, msg, log)
		return
	}
	log = log.With().Str("user_id", job.UserID).Str("resource_id", job.ResourceID).Logger()

	backoff := w.settings.BackoffInitial
	var grantErr error
	for attempt := 1; attempt <= w.settings.MaxRetries; attempt++ {
		var info model.AccessInfo
		info, grantErr = w.granter.GrantBonusForUpload(ctx, job.UserID)
		if grantErr == nil {
			log.Info().
				Int("max_views_this_month", info.MaxViewsThisMonth).
				Int("remaining", info.Remaining).
				Msg("Upload bonus granted")
			break
		}
		log.Error().Err(grantErr).Int("attempt", attempt).Msg("Upload bonus grant failed")
		if attempt == w.settings.MaxRetries {
			break
		}
		if err := w.sleep(ctx, backoff); err != nil {
			// Shutting down; the message reappears after its visibility timeout.
			return
		}
		backoff *= 2
		if backoff > w.settings.BackoffMax {
			backoff = w.settings.BackoffMax
		}
	}

	if grantErr != nil {
		log.Warn().Int("attempts", w.settings.MaxRetries).Err(grantErr).Msg("Exhausted all upload bonus retries; moving job to DLQ")
		w.deadLetter(ctx, msg, log)
		return
	}
	if err := w.queue.Delete(ctx, w.settings.QueueName, []int64{msg.ID}); err != nil {
		log.Error().Err(err).Msg("Error deleting upload reward message")
	}
}

func (w *Worker) deadLetter(ctx context.Context, msg *pgmq.Message, log zerolog.Logger) {
	if err := w.queue.Send(ctx, w.settings.DeadLetterQueueName, msg.Data); err != nil {
		// Leave the original in place so it is retried after its visibility timeout.
		log.Error().Err(err).Str("dlq", w.settings.DeadLetterQueueName).Msg("Failed to send message to dead-letter queue")
		return
	}
	if err := w.queue.Delete(ctx, w.settings.QueueName, []int64{msg.ID}); err != nil {
		log.Error().Err(err).Msg("Error deleting upload reward message after failure")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
