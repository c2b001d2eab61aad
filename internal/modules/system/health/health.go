package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/pkg/cron"
	pkgredis "github.com/stayknown/core/internal/pkg/redis"
	"github.com/stayknown/core/internal/pkg/response"
	"gorm.io/gorm"
)

func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB, rc *pkgredis.Client, sched *cron.Scheduler, authMW gin.HandlerFunc) {
	rg.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		dbOK := err == nil && sqlDB.Ping() == nil

		redisOK := rc != nil && rc.Ping(c.Request.Context()) == nil

		status := "ok"
		code := http.StatusOK
		if !dbOK || !redisOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":   status,
			"database": dbOK,
			"redis":    redisOK,
			"time":     time.Now().UTC(),
		})
	})

	admin := rg.Group("/health", authMW)
	admin.GET("/cron", func(c *gin.Context) {
		response.OK(c, sched.List())
	})
}
