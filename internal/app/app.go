// Package app builds the dependency graph shared by the API server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"agribid-backend/config"
	"agribid-backend/internal/domain"
	"agribid-backend/internal/repository/memory"
	"agribid-backend/internal/repository/postgres"
	"agribid-backend/internal/repository/supabase"
	"agribid-backend/internal/usecase"
	"agribid-backend/pkg/auth"
	"agribid-backend/pkg/database"
	"agribid-backend/pkg/logger"
	"agribid-backend/pkg/metrics"
	redispkg "agribid-backend/pkg/redis"
	"agribid-backend/pkg/security"
	"agribid-backend/pkg/storage"
	"agribid-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
)

const serviceName = "agribid-api"

// Container holds the long-lived components. Optional backends (database,
// redis, object storage) are nil when not configured.
type Container struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  metrics.MetricsCollector
	Validate *validator.Validate
	Supabase *supabase.Client
	DB       *pgxpool.Pool
	Redis    *goredis.Client
	Images   domain.ImageStore
	Verifier *auth.Verifier
	Security *security.SecurityLogger

	Profiles  domain.ProfileRepository
	Products  domain.ProductRepository
	Projector domain.UserProjector
	ProfileUC domain.ProfileUsecase
	ProductUC domain.ProductUsecase
	HealthUC  usecase.HealthUsecase
}

// New connects every configured backend and wires the usecases. Failing to
// reach redis or object storage is logged and the feature degrades; a
// configured database that cannot be reached is an error.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	defaultType, err := domain.ParseUserType(cfg.DefaultUserType)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_USER_TYPE: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c := &Container{
		Config:   cfg,
		Registry: reg,
		Metrics:  metrics.NewCollector(reg),
		Validate: validation.New(),
		Supabase: supabase.NewClient(cfg.SupabaseUrl, cfg.SupabaseKey, nil),
		Security: security.InitSecurityLogger(serviceName, environment(cfg)),
	}

	if cfg.DBUrl != "" {
		if cfg.AutoMigrate {
			if err := database.RunMigrations(cfg.DBUrl); err != nil {
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		pool, err := database.NewPostgresConnection(ctx, cfg.DBUrl)
		if err != nil {
			return nil, err
		}
		c.DB = pool
	}

	if cfg.UpstashRedisURL != "" {
		if err := redispkg.Initialize(redispkg.Config{URL: cfg.UpstashRedisURL, Password: cfg.UpstashRedisPassword}); err != nil {
			logger.Log.Warn("Redis unavailable, using in-memory fallbacks", "error", err)
		} else {
			c.Redis = redispkg.Client()
		}
	}

	if cfg.S3Bucket != "" {
		images, err := storage.NewS3ImageStore(ctx, s3Config(cfg))
		if err != nil {
			logger.Log.Warn("Image storage unavailable, uploads disabled", "error", err)
		} else {
			c.Images = images
		}
	}

	var jwks *auth.Provider
	if cfg.SupabaseUrl != "" {
		jwks = auth.NewProvider(cfg.SupabaseUrl+"/auth/v1/.well-known/jwks.json", nil)
	}
	c.Verifier = auth.NewVerifier(cfg.SupabaseJWTSecret, jwks)

	if c.DB != nil {
		c.Profiles = postgres.NewProfileRepository(c.DB)
		c.Products = postgres.NewProductRepository(c.DB)
	} else {
		// Row-level security needs the caller's token; the service key covers
		// calls made outside a request.
		c.Profiles = supabase.NewProfileRepository(c.Supabase, supabase.ContextToken(serviceKey(cfg)))
		c.Products = memory.NewSeededProductRepository()
	}

	c.Projector = usecase.NewUserProjector(c.Profiles, defaultType)
	c.ProfileUC = usecase.NewProfileUsecase(c.Profiles, c.Projector, c.Validate)
	c.ProductUC = usecase.NewProductUsecase(c.Products, usecase.NewSimulatedAssessor(nil), c.Metrics)
	c.HealthUC = usecase.NewHealthUsecase(c.healthDeps())

	logger.Log.Info("Components initialized",
		"database", c.DB != nil,
		"redis", c.Redis != nil,
		"image_storage", c.Images != nil,
	)
	return c, nil
}

// NewSessionManager returns a session manager bound to a fresh auth client
// that persists its session in store. The caller must Dispose the manager.
func (c *Container) NewSessionManager(store domain.SessionStore) (domain.SessionManager, *supabase.AuthClient) {
	authClient := supabase.NewAuthClient(c.Supabase, store, c.Config.SessionRefreshMargin, c.Metrics)

	profiles, projector := c.Profiles, c.Projector
	if c.DB == nil {
		profiles = supabase.NewProfileRepository(c.Supabase, authClient.AccessToken)
		defaultType, _ := domain.ParseUserType(c.Config.DefaultUserType)
		projector = usecase.NewUserProjector(profiles, defaultType)
	}

	manager := usecase.NewSessionManager(authClient, profiles, projector, c.Validate, c.Metrics, usecase.SessionConfig{
		EmailRedirectURL:     c.Config.EmailRedirectURL,
		ProfileWriteAttempts: c.Config.ProfileWriteAttempts,
		ProfileWriteBackoff:  c.Config.ProfileWriteBackoff,
	})
	return manager, authClient
}

// LoginTracker returns the failed-login tracker. Without redis it never blocks.
func (c *Container) LoginTracker() *security.LoginTracker {
	return security.NewLoginTracker(c.Redis, security.LoginTrackerConfig{
		MaxAttempts:   c.Config.FailedLoginMaxAttempts,
		AttemptWindow: time.Duration(c.Config.FailedLoginBlockMinutes) * time.Minute,
		BlockDuration: time.Duration(c.Config.FailedLoginBlockMinutes) * time.Minute,
		UseIPTracking: true,
	}, c.Security)
}

func (c *Container) Close() {
	if c.DB != nil {
		c.DB.Close()
	}
	if c.Redis != nil {
		if err := redispkg.Close(); err != nil {
			logger.Log.Warn("Failed to close redis", "error", err)
		}
	}
	if c.Security != nil {
		_ = c.Security.Sync()
	}
}

func (c *Container) healthDeps() map[string]usecase.Pinger {
	deps := map[string]usecase.Pinger{
		"database": nil,
		"redis":    nil,
	}
	if c.DB != nil {
		deps["database"] = c.DB
	}
	if c.Redis != nil {
		deps["redis"] = redispkg.Ping{}
	}
	return deps
}

func s3Config(cfg *config.Config) storage.S3Config {
	return storage.S3Config{
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Endpoint:        cfg.S3Endpoint,
		PublicBaseURL:   cfg.S3PublicBaseURL,
	}
}

func serviceKey(cfg *config.Config) string {
	if cfg.SupabaseServiceKey != "" {
		return cfg.SupabaseServiceKey
	}
	return cfg.SupabaseKey
}

func environment(cfg *config.Config) string {
	if cfg.GinMode == "release" {
		return "production"
	}
	return "development"
}
