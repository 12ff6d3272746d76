package v1

import (
	"net/http"
	"time"

	"agribid-backend/config"
	"agribid-backend/internal/delivery/http/middleware"
	"agribid-backend/internal/delivery/http/response"
	"agribid-backend/internal/domain"
	"agribid-backend/internal/usecase"
	"agribid-backend/pkg/metrics"
	"agribid-backend/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	Config        *config.Config
	Sessions      SessionFactory
	ProfileUC     domain.ProfileUsecase
	ProductUC     domain.ProductUsecase
	HealthUC      usecase.HealthUsecase
	Projector     domain.UserProjector
	Verifier      middleware.TokenVerifier
	RateLimiter   *middleware.RateLimiter
	LoginTracker  *security.LoginTracker
	UploadLimiter *security.UploadLimiter
	Images        domain.ImageStore
	Security      *security.SecurityLogger
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global Middlewares
	r.Use(middleware.CORSMiddleware(deps.Config.AllowedOrigins, deps.Config.GinMode == gin.ReleaseMode)) // CORS must be first!
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.MetricsMiddleware(deps.Metrics))
	r.Use(middleware.ErrorHandler())

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	window := time.Duration(deps.Config.RateLimitWindowSeconds) * time.Second

	v1 := r.Group("/v1")
	v1.Use(middleware.SecurityHeadersMiddleware())
	v1.Use(deps.RateLimiter.Middleware(middleware.GlobalRateLimitConfig(deps.Config.RateLimitGlobalThreshold, window)))

	NewHealthHandler(v1, deps.HealthUC)

	// Auth endpoints that hit the auth service get the strict limit.
	strict := v1.Group("")
	strict.Use(deps.RateLimiter.Middleware(middleware.AuthRateLimitConfig(deps.Config.RateLimitLoginThreshold, window)))

	optional := v1.Group("")
	optional.Use(middleware.OptionalAuth(deps.Verifier, deps.Projector))

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(deps.Verifier, deps.Projector, deps.Security))
	{
		NewAuthHandler(strict, protected, deps.Sessions, deps.LoginTracker, deps.Security)
		NewProfileHandler(protected, deps.ProfileUC)
		NewProductHandler(v1, optional, protected, deps.ProductUC)
		NewUploadHandler(protected, deps.Images, deps.UploadLimiter, deps.Security)
	}

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "Route not found", nil)
	})

	return r
}
