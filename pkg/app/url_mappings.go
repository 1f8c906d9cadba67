package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arenabeat/resultgate/internal/controllers"
	"github.com/arenabeat/resultgate/internal/middleware"
)

func SetupMappings(app *Application) {
	engine := app.Engine

	// Discovery, probe, and metrics endpoints stay open: orchestration
	// health checks and arbiters inspect them before authenticating.
	engine.GET("/.well-known/agent-card.json", controllers.NewAgentCardController(app.AgentCard()).Handle)
	engine.GET("/status", controllers.NewStatusController(app.Started, time.Now).Handle)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	stream := controllers.NewStreamController(app.Stream)
	clientAuth := middleware.ClientAuthMiddleware(app.ClientValidator)
	engine.POST("/", clientAuth, stream.Handle)
	engine.GET("/", clientAuth, stream.Handle)
}
