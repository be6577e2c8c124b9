package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"studyshare/internal/model"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	DBAutoMigrate      bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	// Either the raw secret or the Secret Manager secret holding it must be set.
	JWTSecret     string `envconfig:"SUPABASE_JWT_SECRET"`
	JWTSecretName string `envconfig:"SUPABASE_JWT_SECRET_NAME"`

	S3URL       string `envconfig:"SUPABASE_S3_URL" required:"true"`
	S3Bucket    string `envconfig:"SUPABASE_S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"SUPABASE_S3_REGION" required:"true"`
	S3AccessKey string `envconfig:"SUPABASE_S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"SUPABASE_S3_SECRET_KEY" required:"true"`

	// Pub/Sub
	GCPProjectID                  string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubAccessEventsTopic       string `envconfig:"PUBSUB_ACCESS_EVENTS_TOPIC" default:"access-events"`
	DLQEndpointURL                string `envconfig:"DLQ_ENDPOINT_URL"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`

	// Access gate policy
	AccessGateEnabled           bool   `envconfig:"ACCESS_GATE_ENABLED" default:"true"`
	AccessFreeViewsPerMonth     int    `envconfig:"ACCESS_FREE_VIEWS_PER_MONTH" default:"5"`
	AccessMaxAdWatchesPerMonth  int    `envconfig:"ACCESS_MAX_AD_WATCHES_PER_MONTH" default:"3"`
	AccessUploadBonusViews      int    `envconfig:"ACCESS_UPLOAD_BONUS_VIEWS" default:"5"`
	AccessAdBonusViews          int    `envconfig:"ACCESS_AD_BONUS_VIEWS" default:"3"`
	AccessTimezone              string `envconfig:"ACCESS_TIMEZONE" default:"UTC"`
	ResourceContentURLExpirySec int    `envconfig:"RESOURCE_CONTENT_URL_EXPIRY_SEC" default:"900"`

	// Upload reward orchestrator settings
	UploadRewardQueueName           string `envconfig:"UPLOAD_REWARD_QUEUE_NAME" default:"upload_reward_queue"`
	UploadRewardPollTimeoutSec      int    `envconfig:"UPLOAD_REWARD_POLL_TIMEOUT_SEC" default:"30"`
	UploadRewardVisibilityTimeout   int    `envconfig:"UPLOAD_REWARD_VISIBILITY_TIMEOUT_SEC" default:"300"`
	UploadRewardPollMaxMsg          int    `envconfig:"UPLOAD_REWARD_POLL_MAX_MSG" default:"1"`
	UploadRewardMaxRetries          int    `envconfig:"UPLOAD_REWARD_MAX_RETRIES" default:"5"`
	UploadRewardBackoffInitialSec   int    `envconfig:"UPLOAD_REWARD_BACKOFF_INITIAL_SEC" default:"1"`
	UploadRewardBackoffMaxSec       int    `envconfig:"UPLOAD_REWARD_BACKOFF_MAX_SEC" default:"60"`
	UploadRewardDeadLetterQueueName string `envconfig:"UPLOAD_REWARD_DEAD_LETTER_QUEUE_NAME" default:"upload_reward_queue_dlq"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" && cfg.JWTSecretName == "" {
		return nil, fmt.Errorf("one of SUPABASE_JWT_SECRET or SUPABASE_JWT_SECRET_NAME is required")
	}
	return &cfg, nil
}

// AccessPolicy builds the gate policy from the ACCESS_* settings.
// The result is not validated; callers run it through a validator.
func (c *Config) AccessPolicy() (model.AccessPolicy, error) {
	loc, err := time.LoadLocation(c.AccessTimezone)
	if err != nil {
		return model.AccessPolicy{}, fmt.Errorf("loading access timezone %q: %w", c.AccessTimezone, err)
	}
	return model.AccessPolicy{
		Enabled:              c.AccessGateEnabled,
		BaseMonthlyAllowance: c.AccessFreeViewsPerMonth,
		MaxAdWatches:         c.AccessMaxAdWatchesPerMonth,
		UploadBonusViews:     c.AccessUploadBonusViews,
		AdBonusViews:         c.AccessAdBonusViews,
		Location:             loc,
	}, nil
}

// IsLocalDev reports whether Pub/Sub is pointed at the emulator.
func (c *Config) IsLocalDev() bool {
	return c.PubSubEmulatorHost != ""
}
