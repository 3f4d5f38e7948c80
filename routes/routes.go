package routes

import (
	"net/http"
	"time"
	"transferdesk/config"
	"transferdesk/controllers"
	"transferdesk/database"
	"transferdesk/middleware"
	"transferdesk/repositories"
	"transferdesk/services"
	"transferdesk/utils"
	"transferdesk/workers"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// SetupRoutes wires repositories, services, and controllers and returns the
// router plus the audit worker (the caller owns its lifecycle).
func SetupRoutes(cfg *config.Config, db *mongo.Database, redisClient *redis.Client) (*gin.Engine, *workers.AuditWorker) {
	router := gin.New()

	repos := initializeRepositories(db, redisClient)

	auditWorker := workers.NewAuditWorker(repos.DispatchLog, repos.Rule, workers.DefaultAuditWorkerConfig())

	svcs := initializeServices(cfg, repos, auditWorker)
	ctrls := initializeControllers(svcs, repos, auditWorker)

	setupGlobalMiddleware(router, cfg, redisClient)

	jwtService := utils.NewJWTService(cfg.JWTSecret)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, repos.User)

	setupPublicRoutes(router, cfg, ctrls, redisClient)
	setupAdminRoutes(router, ctrls, authMiddleware)

	return router, auditWorker
}

// Repositories initialization
type Repositories struct {
	Rule        *repositories.RuleRepository
	Template    *repositories.TemplateRepository
	User        *repositories.UserRepository
	Location    *repositories.LocationRepository
	DispatchLog *repositories.DispatchLogRepository
}

func initializeRepositories(db *mongo.Database, redisClient *redis.Client) *Repositories {
	return &Repositories{
		Rule:        repositories.NewRuleRepository(db, redisClient),
		Template:    repositories.NewTemplateRepository(db),
		User:        repositories.NewUserRepository(db),
		Location:    repositories.NewLocationRepository(db),
		DispatchLog: repositories.NewDispatchLogRepository(db),
	}
}

// Services initialization
type Services struct {
	Engine   *services.RuleEngine
	Rule     *services.RuleService
	Template *services.TemplateService
}

func initializeServices(cfg *config.Config, repos *Repositories, auditWorker *workers.AuditWorker) *Services {
	dispatcher := services.NewChannelDispatcher(
		services.DispatcherConfig{
			WorkerCount:   cfg.DispatchWorkers,
			RetryAttempts: cfg.DispatchRetries,
			RetryDelay:    cfg.DispatchRetryDelay,
		},
		cfg.InitEmailProvider(),
		cfg.InitSMSProvider(),
	)

	engine := services.NewRuleEngine(
		repos.Rule,
		repos.Template,
		repos.User,
		dispatcher,
		auditWorker,
		cfg.HandleTimeout,
	)

	return &Services{
		Engine:   engine,
		Rule:     services.NewRuleService(repos.Rule, repos.Template, engine),
		Template: services.NewTemplateService(repos.Template),
	}
}

// Controllers initialization
type Controllers struct {
	Event    *controllers.EventController
	Rule     *controllers.RuleController
	Template *controllers.TemplateController
	Dispatch *controllers.DispatchController
}

func initializeControllers(svcs *Services, repos *Repositories, auditWorker *workers.AuditWorker) *Controllers {
	return &Controllers{
		Event:    controllers.NewEventController(svcs.Engine),
		Rule:     controllers.NewRuleController(svcs.Rule),
		Template: controllers.NewTemplateController(svcs.Template),
		Dispatch: controllers.NewDispatchController(repos.DispatchLog, auditWorker),
	}
}

func setupGlobalMiddleware(router *gin.Engine, cfg *config.Config, redisClient *redis.Client) {
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.Environment))
	router.Use(middleware.LoggerMiddleware(middleware.LoggerConfig{
		SkipPaths: []string{"/health"},
	}))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Redis:     redisClient,
		Requests:  cfg.RateLimitRequests,
		Window:    time.Duration(cfg.RateLimitWindow) * time.Minute,
		SkipPaths: []string{"/health"},
	})
	router.Use(rateLimiter.Middleware())
}

func setupPublicRoutes(router *gin.Engine, cfg *config.Config, ctrls *Controllers, redisClient *redis.Client) {
	router.GET("/health", healthHandler(redisClient))

	// Event intake: server-to-server, authenticated by service token.
	v1 := router.Group("/api/v1")
	v1.POST("/events", middleware.RequireServiceToken(cfg.ServiceToken), ctrls.Event.IngestEvent)
}

func healthHandler(redisClient *redis.Client) gin.HandlerFunc {
	startTime := time.Now()

	return func(c *gin.Context) {
		servicesStatus := map[string]string{
			"database": "healthy",
			"redis":    "healthy",
		}
		status := "healthy"

		if !database.IsConnected() {
			servicesStatus["database"] = "unhealthy"
			status = "degraded"
		}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				servicesStatus["redis"] = "unhealthy"
				status = "degraded"
			}
		}

		httpStatus := http.StatusOK
		if status != "healthy" {
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"timestamp": time.Now(),
			"services":  servicesStatus,
			"uptime":    time.Since(startTime).String(),
		})
	}
}
