package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/peoplecounter/internal/api/handlers"
	"github.com/your-org/peoplecounter/internal/api/ws"
	"github.com/your-org/peoplecounter/internal/config"
	"github.com/your-org/peoplecounter/internal/state"
)

type RouterConfig struct {
	State    *state.AggregationState
	Settings *config.Settings
	LineX    float64
	Source   string
	Hub      *ws.Hub
	// Backlog is optional; when set /api/status reports the queue depth.
	Backlog handlers.Backlog
	// Deps are probed by /readyz.
	Deps map[string]handlers.Pinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	systemH := handlers.NewSystemHandler(cfg.Deps)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	counterH := handlers.NewCounterHandler(cfg.State, cfg.Settings, cfg.LineX, cfg.Source)
	if cfg.Backlog != nil {
		counterH.WithBacklog(cfg.Backlog)
	}
	r.GET("/chart", counterH.Chart)

	apiG := r.Group("/api")
	apiG.GET("/data", counterH.Data)
	apiG.POST("/reset", counterH.Reset)
	apiG.POST("/settings", counterH.Settings)
	apiG.GET("/status", counterH.Status)
	apiG.GET("/test", counterH.Test)

	if cfg.Hub != nil {
		r.GET("/ws", cfg.Hub.HandleWS)
	}

	return r
}
