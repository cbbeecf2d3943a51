package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mirrorhq/guild-service/internal/config"
	"github.com/mirrorhq/guild-service/internal/service"
	"go.uber.org/zap"
)

func NewRouter(svc *service.MemberService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, svc, log)
	return r
}
