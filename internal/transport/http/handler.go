package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mirrorhq/guild-service/internal/domain"
	"github.com/mirrorhq/guild-service/internal/service"
	"go.uber.org/zap"
)

func RegisterHandlers(r *gin.Engine, svc *service.MemberService, log *zap.SugaredLogger) {
	v1 := r.Group("/v1")
	{
		v1.POST("/guilds/:guildId/members", createHandler(svc, log))
		v1.PUT("/guilds/:guildId/members", syncHandler(svc, log))
		v1.GET("/guilds/:guildId/members", listHandler(svc, log))
		v1.GET("/guilds/:guildId/members/search", searchHandler(svc, log))
		v1.GET("/guilds/:guildId/members/stats", statsHandler(svc, log))
		v1.GET("/guilds/:guildId/members/:userId", findOneHandler(svc, log))
		v1.PATCH("/guilds/:guildId/members/:userId", updateHandler(svc, log))
		v1.DELETE("/guilds/:guildId/members/:userId", removeHandler(svc, log))
	}
}

type createReq struct {
	UserID   string   `json:"user_id" binding:"required"`
	Username string   `json:"username" binding:"required"`
	Nickname *string  `json:"nickname"`
	Roles    []string `json:"roles"`
}

func createHandler(svc *service.MemberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		m, err := svc.Create(c, service.CreateMemberInput{
			UserID:   req.UserID,
			GuildID:  c.Param("guildId"),
			Username: req.Username,
			Nickname: req.Nickname,
			Roles:    req.Roles,
			EventKey: c.GetHeader("Idempotency-Key"),
		})
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, m)
	}
}

type syncMemberReq struct {
	UserID   string     `json:"user_id" binding:"required"`
	Username string     `json:"username" binding:"required"`
	Nickname *string    `json:"nickname"`
	Roles    []string   `json:"roles"`
	JoinedAt *time.Time `json:"joined_at"`
}

type syncReq struct {
	Members  []syncMemberReq `json:"members" binding:"required"`
	EventKey string          `json:"event_key"`
}

func syncHandler(svc *service.MemberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syncReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		key := req.EventKey
		if key == "" {
			key = c.GetHeader("Idempotency-Key")
		}
		members := make([]service.SyncMemberInput, 0, len(req.Members))
		for _, m := range req.Members {
			members = append(members, service.SyncMemberInput{
				UserID:   m.UserID,
				Username: m.Username,
				Nickname: m.Nickname,
				Roles:    m.Roles,
				JoinedAt: m.JoinedAt,
			})
		}
		count, err := svc.SyncGuildMembers(c, c.Param("guildId"), members, key)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"synced": count})
	}
}

func listHandler(svc *service.MemberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit := pageParams(c)
		result, err := svc.FindAll(c, c.Param("guildId"), page, limit)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func searchHandler(svc *service.MemberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit := pageParams(c)
		result, err := svc.SearchMembers(c, c.Param("guildId"), c.Query("q"), page, limit)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func statsHandler(svc *service.MemberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.GetMemberStats(c, c.Param("guildId"))
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func findOneHandler(svc *service.MemberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := svc.FindOne(c, c.Param("userId"), c.Param("guildId"))
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

type updateReq struct {
	Username *string                `json:"username"`
	Nickname service.OptionalString `json:"nickname"`
	Roles    *[]string              `json:"roles"`
}

func updateHandler(svc *service.MemberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		m, err := svc.Update(c, c.Param("userId"), c.Param("guildId"), service.UpdateMemberInput{
			Username: req.Username,
			Nickname: req.Nickname,
			Roles:    req.Roles,
		})
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

func removeHandler(svc *service.MemberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Remove(c, c.Param("userId"), c.Param("guildId")); err != nil {
			respondErr(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// pageParams parses page/limit query values; anything non-numeric falls back
// to zero and the store clamps to its defaults.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return page, limit
}

// respondErr maps domain errors onto statuses. Unexpected errors surface a
// generic message; details stay in the log.
func respondErr(c *gin.Context, log *zap.SugaredLogger, err error) {
	if domain.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	log.Errorw("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
