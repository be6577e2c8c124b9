package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"studyshare/internal/config"
	"studyshare/internal/database"
	"studyshare/internal/logger"
	"studyshare/internal/orchestrator/uploadreward"
	"studyshare/internal/pgmq"
	"studyshare/internal/pubsub"
	"studyshare/internal/repository"
	"studyshare/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	mode := flag.String("mode", "", "Orchestrator mode: upload-reward")
	flag.Parse()

	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var runErr error
	switch *mode {
	case "upload-reward":
		runErr = runUploadReward(ctx, cfg, logger)
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s orchestrator failed: %v", *mode, runErr)
	}
	logger.Info().Msgf("%s orchestrator stopped gracefully", *mode)
}

func runUploadReward(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	pool, err := database.Connect(ctx, cfg.DBConnectionString, cfg.Environment)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info().Msg("Database connection established")

	db := database.SQLDB(pool)
	defer db.Close()

	queue := pgmq.New(db)
	for _, q := range []string{cfg.UploadRewardQueueName, cfg.UploadRewardDeadLetterQueueName} {
		if err := queue.CreateQueue(ctx, q); err != nil {
			return err
		}
	}
	logger.Info().Msg("PGMQ client initialized")

	policy, err := cfg.AccessPolicy()
	if err != nil {
		return err
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(policy); err != nil {
		return fmt.Errorf("invalid access policy: %w", err)
	}

	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg.GCPProjectID)
		if err != nil {
			return err
		}
		defer p.Close()
		publisher = p
	}

	accessSvc := service.NewAccessService(
		repository.NewAccessRepo(pool),
		repository.NewResourceRepo(pool),
		policy,
		publisher,
		cfg.PubSubAccessEventsTopic,
		logger,
	)

	worker := uploadreward.NewWorker(queue, accessSvc, uploadreward.Settings{
		QueueName:           cfg.UploadRewardQueueName,
		DeadLetterQueueName: cfg.UploadRewardDeadLetterQueueName,
		PollTimeoutSec:      cfg.UploadRewardPollTimeoutSec,
		VisibilityTimeout:   cfg.UploadRewardVisibilityTimeout,
		PollMaxMsg:          cfg.UploadRewardPollMaxMsg,
		MaxRetries:          cfg.UploadRewardMaxRetries,
		BackoffInitial:      time.Duration(cfg.UploadRewardBackoffInitialSec) * time.Second,
		BackoffMax:          time.Duration(cfg.UploadRewardBackoffMaxSec) * time.Second,
	}, logger)
	return worker.Run(ctx)
}
