package router

import (
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"iatlab/internal/config"
	"iatlab/internal/handlers"
	"iatlab/internal/store"
	"iatlab/internal/validation"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitExceeded(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again later.")
}

func Setup(log *zap.Logger, cfg *config.Config, s store.Store) *gin.Engine {
	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(log))

	// Browser clients submit from a separately hosted test page, so CORS
	// origins come from configuration.
	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Requested-With", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}
	if len(cfg.Server.CORSOrigins) == 1 && cfg.Server.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	}
	router.Use(cors.New(corsConfig))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
	})

	// Handlers and routes
	policy := validation.Policy{Strict: cfg.Validation.Strict}
	resultsHandler := handlers.NewResultsHandler(log, s, policy, cfg.Server.MaxPageLimit, cfg.Debug())
	healthHandler := handlers.NewHealthHandler(log, s)

	// Submissions are hand-initiated, one per completed test, so a tight
	// per-IP limit on the write path is safe.
	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 10,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: rateLimitExceeded,
		KeyFunc:      keyFunc,
	})

	router.GET("/health", healthHandler.Health)
	router.GET("/test-atlas", healthHandler.Probe)

	api := router.Group("/api")
	{
		api.POST("/test-results", limiter, resultsHandler.Create)
		api.GET("/test-results", resultsHandler.List)
		api.GET("/test-results/count/all", resultsHandler.Count)
		api.GET("/test-results/:id", resultsHandler.GetByID)
	}

	return router
}
