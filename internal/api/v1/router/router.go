package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"studyshare/internal/api/v1/handler"
	"studyshare/internal/config"
	"studyshare/internal/database"
	"studyshare/internal/middleware"
	"studyshare/internal/pubsub"
	"studyshare/internal/repository"
	"studyshare/internal/secrets"
	"studyshare/internal/service"
	"studyshare/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New builds the HTTP handler and everything behind it. The returned cleanup
// releases the database pool and the Pub/Sub client.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// 1. Database
	pool, err := database.Connect(ctx, cfg.DBConnectionString, cfg.Environment)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, pool.Close)
	logger.Info().Msg("Database connection successful")

	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return nil, cleanup, err
		}
		logger.Info().Msg("Database schema applied")
	}
	sqlDB := database.SQLDB(pool)
	closers = append(closers, func() { _ = sqlDB.Close() })

	// 2. Secrets
	jwtSecret, err := resolveJWTSecret(ctx, cfg)
	if err != nil {
		return nil, cleanup, err
	}

	// 3. Storage
	s3Client, err := storage.NewS3Client(ctx, storage.S3Options{
		Endpoint:  cfg.S3URL,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return nil, cleanup, err
	}
	signer := storage.NewURLSigner(s3Client, cfg.S3Bucket)

	// 4. Validation and policy
	validate := validator.New(validator.WithRequiredStructEnabled())
	policy, err := cfg.AccessPolicy()
	if err != nil {
		return nil, cleanup, err
	}
	if err := validate.Struct(policy); err != nil {
		return nil, cleanup, fmt.Errorf("invalid access policy: %w", err)
	}
	logger.Info().
		Bool("enabled", policy.Enabled).
		Int("free_views", policy.BaseMonthlyAllowance).
		Int("max_ad_watches", policy.MaxAdWatches).
		Int("upload_bonus", policy.UploadBonusViews).
		Int("ad_bonus", policy.AdBonusViews).
		Str("timezone", policy.Location.String()).
		Msg("Access policy loaded")

	// 5. Pub/Sub
	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = p.Close() })
		publisher = p
	} else {
		logger.Warn().Msg("GCP_PROJECT_ID not set; access events will not be published")
	}

	// 6. Repositories, services and handlers
	accessRepo := repository.NewAccessRepo(pool)
	resourceRepo := repository.NewResourceRepo(pool)
	dlqRepo := repository.NewDLQRepository(sqlDB)

	accessSvc := service.NewAccessService(accessRepo, resourceRepo, policy, publisher, cfg.PubSubAccessEventsTopic, logger)
	resourceSvc := service.NewResourceService(resourceRepo, accessSvc, signer, time.Duration(cfg.ResourceContentURLExpirySec)*time.Second, logger)
	dlqSvc := service.NewDLQService(dlqRepo)

	accessHandler := handler.NewAccessHandler(accessSvc, validate, logger)
	resourceHandler := handler.NewResourceHandler(resourceSvc, validate, logger)
	dlqHandler := handler.NewDLQHandler(dlqSvc, validate, logger)

	// 7. Middleware
	authMiddleware := middleware.AuthMiddleware(jwtSecret, logger)
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(cfg.IsLocalDev(), cfg.DLQEndpointURL, cfg.PubSubPushServiceAccountEmail, logger)

	return Mount(pool, logger, func(v1 *http.ServeMux) {
		accessHandler.RegisterRoutes(v1, authMiddleware)
		resourceHandler.RegisterRoutes(v1, authMiddleware)
		dlqHandler.RegisterRoutes(v1, pubsubAuthMiddleware)
	}), cleanup, nil
}

// Mount places the v1 routes under /v1 and wraps everything in CORS and request logging.
// pool may be nil, in which case /healthz reports ok without checking the database.
func Mount(pool *pgxpool.Pool, logger zerolog.Logger, register func(v1 *http.ServeMux)) http.Handler {
	apiV1Mux := http.NewServeMux()
	register(apiV1Mux)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Redirect /api/* to /v1/* for backward compatibility
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusMovedPermanently)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux))
}

func resolveJWTSecret(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.JWTSecretName == "" {
		return cfg.JWTSecret, nil
	}
	resolver, err := secrets.NewResolver(ctx, cfg.GCPProjectID)
	if err != nil {
		return "", err
	}
	defer resolver.Close()
	secret, err := resolver.Get(ctx, cfg.JWTSecretName)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", fmt.Errorf("secret %s is empty", cfg.JWTSecretName)
	}
	return secret, nil
}
