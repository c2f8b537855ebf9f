// router/router.go

package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veildata/veil/controller"
	"github.com/veildata/veil/dao"
	"github.com/veildata/veil/db"
	"github.com/veildata/veil/middleware"
	"github.com/veildata/veil/ratelimit"
)

func SetupRouter(
	controllers *controller.Controllers,
	callerDAO *dao.CallerDAO,
	limiter *ratelimit.Limiter,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	router.GET("/healthz", healthz)

	api := router.Group("/api/v1")
	api.Use(middleware.APIKeyAuth(callerDAO))

	// The query pipeline runs its own rate-limit step so the decision can
	// be surfaced in the response; no limiter middleware here.
	controllers.Query.RegisterRoutes(api)

	admin := api.Group("")
	admin.Use(middleware.RateLimiter(limiter, "admin"))
	controllers.Consent.RegisterRoutes(admin)
	controllers.Token.RegisterRoutes(admin)
	controllers.Category.RegisterRoutes(admin)
	controllers.Record.RegisterRoutes(admin)
	controllers.Audit.RegisterRoutes(admin)

	return router
}

// healthz reports liveness plus connectivity of the backing stores.
func healthz(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{"neo4j": "ok", "redis": "ok"}

	if err := db.Neo4jDriver.VerifyConnectivity(); err != nil {
		checks["neo4j"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := db.RedisClient.Ping(c).Err(); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, checks)
}
