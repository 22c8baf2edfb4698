package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/quill/internal/auth"
	"github.com/xxxsen/quill/internal/middleware"
	"github.com/xxxsen/quill/internal/repo"
)

// RouterDeps wires every handler group plus the shared cross-cutting
// middleware into the route table below.
type RouterDeps struct {
	AuthResolver *auth.Resolver
	Profiles     *repo.ProfileRepo
	Limiter      *middleware.BucketLimiter

	Insight  *InsightHandler
	Metadata *MetadataHandler
	Chat     *ChatHandler
	Memory   *MemoryHandler
	Email    *EmailHandler
}

// RegisterRoutes lays out spec §6's route table under the engine's base path
// (mounted at /api/v1 by the caller). Unauthenticated endpoints (cron,
// provider webhook, unsubscribe link, chat health) are grouped separately so
// middleware.Auth never guards them.
func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/email/cron/digest", deps.Email.CronDigest)
	api.POST("/email/webhooks/brevo", deps.Email.Webhook)
	api.GET("/email/unsubscribe/:token", deps.Email.Unsubscribe)
	api.GET("/chat/health", deps.Chat.Health)

	authed := api.Group("")
	authed.Use(middleware.Auth(deps.AuthResolver, deps.Profiles))
	if deps.Limiter != nil {
		authed.Use(middleware.RateLimit(deps.Limiter))
	}
	{
		insights := authed.Group("/insights")
		insights.POST("", deps.Insight.Create)
		insights.GET("", deps.Insight.List)
		insights.GET("/all", deps.Insight.ListAll)
		insights.GET("/sync/incremental", deps.Insight.SyncIncremental)
		insights.GET("/:id", deps.Insight.Get)
		insights.PUT("/:id", deps.Insight.Update)
		insights.DELETE("/:id", deps.Insight.Delete)

		metadata := authed.Group("/metadata")
		metadata.POST("/extract", deps.Metadata.Extract)
		metadata.GET("/summary/*url", deps.Metadata.Summary)

		chatGroup := authed.Group("/chat")
		chatGroup.POST("", deps.Chat.Turn)
		chatGroup.POST("/sessions", deps.Chat.CreateSession)
		chatGroup.GET("/sessions", deps.Chat.ListSessions)
		chatGroup.GET("/sessions/:id", deps.Chat.GetSession)
		chatGroup.PUT("/sessions/:id", deps.Chat.UpdateSession)
		chatGroup.DELETE("/sessions/:id", deps.Chat.DeleteSession)
		chatGroup.GET("/sessions/:id/messages", deps.Chat.ListMessages)
		chatGroup.GET("/sessions/:id/context", deps.Chat.GetContext)

		user := authed.Group("/user")
		user.POST("/memory/consolidate", deps.Memory.Consolidate)
		user.GET("/memory/profile", deps.Memory.Profile)
		user.GET("/memory/summary", deps.Memory.Summary)
		user.PUT("/memory/settings", deps.Memory.UpdateSettings)
		user.POST("/memory/auto-consolidate", deps.Memory.AutoConsolidate)

		emailGroup := authed.Group("/email")
		emailGroup.POST("/digest/test-send", deps.Email.TestSend)
		emailGroup.GET("/preferences", deps.Email.GetPreferences)
		emailGroup.PUT("/preferences", deps.Email.UpdatePreferences)
	}
}
