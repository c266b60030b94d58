package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gazette-monitor/internal/editions"
	"gazette-monitor/internal/queue"
	"gazette-monitor/internal/services/health"
	"gazette-monitor/internal/shared/metrics"
	"gazette-monitor/internal/shared/server/middleware"
	"gazette-monitor/internal/shared/server/respond"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	CORSAllowOrigin []string
	RunsPerMinute   int

	Health   *health.Service
	Editions editions.Repo
	Runner   Runner
	Queue    queue.Client
	Limiter  *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		status := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if ok, _ := status["ok"].(bool); !ok {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})

	if deps.Editions != nil {
		editions.NewHandler(deps.Editions).RegisterRoutes(api)
	}

	runs := &runsHandler{runner: deps.Runner, queue: deps.Queue}
	api.POST("/runs", middleware.RateLimit(deps.Limiter, middleware.PerMinute(deps.RunsPerMinute)), runs.create)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
