package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workloy/workloy/internal/cache"
	"github.com/workloy/workloy/internal/config"
	apierrors "github.com/workloy/workloy/internal/errors"
	"github.com/workloy/workloy/internal/imagehost"
	"github.com/workloy/workloy/internal/ledger"
	"github.com/workloy/workloy/internal/logging"
	"github.com/workloy/workloy/internal/middleware"
	"github.com/workloy/workloy/internal/monitoring"
	"github.com/workloy/workloy/internal/payment"
	"github.com/workloy/workloy/internal/stats"
	"github.com/workloy/workloy/internal/submission"
	"github.com/workloy/workloy/internal/task"
	"github.com/workloy/workloy/internal/user"
	"github.com/workloy/workloy/internal/withdrawal"
)

// APIServer wires the service layer to the HTTP surface
type APIServer struct {
	config   *config.Config
	router   *gin.Engine
	db       *pgxpool.Pool
	redis    *cache.Redis
	verifier middleware.TokenVerifier

	users       *user.Service
	ledger      *ledger.Service
	tasks       *task.Service
	submissions *submission.Service
	withdrawals *withdrawal.Service
	payments    *payment.Service
	stats       *stats.Service
	images      *imagehost.Client
}

// NewAPIServer creates a new API server instance. redis may be nil, which
// disables rate limiting.
func NewAPIServer(cfg *config.Config, db *pgxpool.Pool, redis *cache.Redis) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:      cfg,
		router:      router,
		db:          db,
		redis:       redis,
		verifier:    middleware.NewHMACVerifier(&cfg.Auth),
		users:       user.NewService(db),
		ledger:      ledger.NewService(db),
		tasks:       task.NewService(db),
		submissions: submission.NewService(db),
		withdrawals: withdrawal.NewService(db),
		payments:    payment.NewService(db, &cfg.Stripe),
		stats:       stats.NewService(db),
		images:      imagehost.NewClient(&cfg.ImgBB),
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	auth := middleware.Auth(s.verifier)
	worker := middleware.RequireWorker(s.users)
	buyer := middleware.RequireBuyer(s.users)
	admin := middleware.RequireAdmin(s.users)
	limited := middleware.RateLimit(s.redis, &s.config.RateLimit)

	users := s.router.Group("/users")
	users.Use(auth)
	{
		users.POST("", s.handleRegister)
		users.GET("", admin, s.handleListUsers)
		users.GET("/:email", s.handleGetUser)
		users.GET("/:email/role", s.handleGetRole)
		users.PUT("/:email", s.handleUpdateProfile)
		users.PATCH("/role/:id", admin, s.handleUpdateRole)
		users.DELETE("/:id", admin, s.handleDeleteUser)
	}

	s.router.GET("/user/coins", auth, s.handleGetCoins)

	tasks := s.router.Group("/tasks")
	tasks.Use(auth)
	{
		tasks.POST("", buyer, limited, s.handleCreateTask)
		tasks.GET("", buyer, s.handleListMyTasks)
		tasks.GET("/all", admin, s.handleListAllTasks)
		tasks.GET("/available", worker, s.handleListAvailableTasks)
		tasks.GET("/:id", s.handleGetTask)
		tasks.PUT("/:id", buyer, s.handleUpdateTask)
		tasks.DELETE("/:id", s.handleDeleteTask)
	}

	submissions := s.router.Group("/submissions")
	submissions.Use(auth)
	{
		submissions.POST("", worker, limited, s.handleCreateSubmission)
		submissions.GET("/pending", buyer, s.handleListPendingSubmissions)
		submissions.GET("/my", worker, s.handleListMySubmissions)
		submissions.GET("/approved", worker, s.handleListApprovedSubmissions)
		submissions.PUT("/approve/:id", buyer, s.handleApproveSubmission)
		submissions.PUT("/reject/:id", buyer, s.handleRejectSubmission)
	}

	withdrawals := s.router.Group("/withdrawals")
	withdrawals.Use(auth)
	{
		withdrawals.POST("", worker, limited, s.handleRequestWithdrawal)
		withdrawals.GET("/pending", admin, s.handleListPendingWithdrawals)
		withdrawals.GET("/my", worker, s.handleListMyWithdrawals)
		withdrawals.GET("/total/:email", s.handleWithdrawalTotal)
		withdrawals.PATCH("/approve/:id", admin, s.handleApproveWithdrawal)
		withdrawals.PATCH("/reject/:id", admin, s.handleRejectWithdrawal)
	}

	payments := s.router.Group("/payments")
	payments.Use(auth)
	{
		payments.POST("/intent", buyer, limited, s.handleCreatePaymentIntent)
		payments.POST("", buyer, limited, s.handleRecordPayment)
		payments.GET("", s.handlePaymentHistory)
		payments.GET("/packages", s.handleListPackages)
	}

	dashboard := s.router.Group("/dashboard")
	dashboard.Use(auth)
	{
		dashboard.GET("/admin-stats", admin, s.handleAdminStats)
		dashboard.GET("/worker-stats", worker, s.handleWorkerStats)
		dashboard.GET("/buyer-stats", buyer, s.handleBuyerStats)
	}
}

// healthCheck reports liveness and database reachability
func (s *APIServer) healthCheck(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
		return
	}
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "ok"
		if err := s.redis.Health(c.Request.Context()); err != nil {
			redisStatus = "unavailable"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api",
		"redis":   redisStatus,
	})
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.ErrorResponse{
		Error:     *err,
		RequestID: middleware.GetRequestIDFromContext(c),
	})
}
