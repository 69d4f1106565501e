package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"audiotour/internal/api/v1/handler"
	"audiotour/internal/config"
	"audiotour/internal/middleware"
	"audiotour/internal/pubsub"
	"audiotour/internal/repository"
	"audiotour/internal/service"
	"audiotour/internal/session"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	ctx := context.Background()

	// 1. Open the connection pool against the Supabase Postgres instance.
	dsn := cfg.DatabaseURL
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}
	logger.Info().Msg("Database connection successful")

	// 2. Resolve the OpenAI API key: environment first, Secret Manager
	// when the environment is empty and a GCP project is configured.
	openAIKey := cfg.OpenAIAPIKey
	if openAIKey == "" {
		secrets, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is not set and Secret Manager is unavailable: %w", err)
		}
		openAIKey, err = secrets.GetOpenAIKey(ctx)
		_ = secrets.Close()
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("fetching OpenAI key from Secret Manager: %w", err)
		}
	}

	// 3. Initialize the S3 client for audio storage.
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("loading S3 config: %w", err)
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	// 4. Initialize validator and session store.
	validate := validator.New(validator.WithRequiredStructEnabled())
	sessions := session.NewStore()

	// 5. Pub/Sub publisher for access-request notifications (optional).
	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("creating Pub/Sub publisher: %w", err)
		}
		publisher = p
	} else {
		logger.Warn().Msg("GCP_PROJECT_ID not set, access-request notifications disabled")
	}

	// 6. Initialize repositories & services & handlers.
	whitelistRepo := repository.NewWhitelistRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)

	whitelistSvc := service.NewWhitelistService(whitelistRepo, publisher, cfg.AccessRequestTopic, logger)
	usageSvc := service.NewUsageService(usageRepo, whitelistRepo, whitelistSvc, service.QuotaLimits{
		TokenLimit:   cfg.MonthlyTokenLimit,
		TTSCharLimit: cfg.MonthlyTTSCharLimit,
	}, logger)
	authSvc := service.NewAuthService(whitelistSvc, logger)
	generator := service.NewOpenAIClient(service.OpenAIOptions{
		BaseURL:   cfg.OpenAIBaseURL,
		APIKey:    openAIKey,
		Model:     cfg.OpenAIModel,
		TTSModel:  cfg.TTSModel,
		TTSVoice:  cfg.TTSVoice,
		MaxTokens: cfg.MaxCompletionTokens,
	}, logger)
	audioStore := service.NewS3AudioStore(s3Client, cfg.S3Bucket)
	tourSvc := service.NewTourService(generator, usageSvc, audioStore, cfg.MaxCompletionTokens, logger)

	authHandler := handler.NewAuthHandler(authSvc, sessions, validate, logger)
	usageHandler := handler.NewUsageHandler(usageSvc)
	tourHandler := handler.NewTourHandler(tourSvc, cfg.TourDefaultDuration, validate, logger)
	adminHandler := handler.NewAdminHandler(whitelistSvc, usageSvc, validate, logger)

	// 7. Initialize middleware and mount routes under /v1.
	sessionMw := middleware.SessionMiddleware(sessions)

	apiV1Mux := http.NewServeMux()
	authHandler.RegisterRoutes(apiV1Mux, sessionMw)
	usageHandler.RegisterRoutes(apiV1Mux, sessionMw)
	tourHandler.RegisterRoutes(apiV1Mux, sessionMw)
	adminHandler.RegisterRoutes(apiV1Mux, sessionMw)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// 8. Apply CORS middleware.
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some
// S3-compatible services. See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
