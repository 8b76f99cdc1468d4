package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/account"
	"github.com/kasuganosora/neighborly/api/sse"
	"github.com/kasuganosora/neighborly/cache"
	"github.com/kasuganosora/neighborly/message"
	mw "github.com/kasuganosora/neighborly/middleware"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/relation"
	"github.com/kasuganosora/neighborly/scheduler"
	"github.com/kasuganosora/neighborly/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FrozenAllowList is the set of routes a frozen account may still call.
var FrozenAllowList = []string{
	mw.RouteKey(http.MethodDelete, "/api/session"),
	mw.RouteKey(http.MethodGet, "/api/me"),
	mw.RouteKey(http.MethodPost, "/api/me/reactivate"),
}

// Deps is everything the HTTP surface needs.
type Deps struct {
	DB              *gorm.DB
	Accounts        *account.Service
	Sessions        *session.Service
	Friends         *relation.FriendService
	Blocks          *relation.BlockService
	Contacts        *relation.ContactService
	Facade          *relation.Facade
	Messages        *message.Service
	PubSub          cache.PubSub
	StreamKeepalive time.Duration
	Scheduler       *scheduler.Scheduler
	Gate            *mw.Gate
	Metrics         *mw.Metrics
	MetricsAllowIPs []string
	Logger          *zap.Logger
}

// Mount registers /health, /metrics and every /api route on r. The gate runs
// on the /api group only.
func Mount(r *gin.Engine, d Deps) {
	r.GET("/health", health(d.DB))
	if d.Metrics != nil {
		r.GET("/metrics", mw.IPWhitelist(d.MetricsAllowIPs), d.Metrics.Handler())
	}

	accountH := NewAccountHandler(d.Accounts, d.Facade)
	authH := NewAuthHandler(d.Sessions)
	socialH := NewSocialHandler(d.Friends, d.Blocks, d.Facade, d.Accounts)
	contactH := NewContactHandler(d.Contacts)
	messageH := NewMessageHandler(d.Messages)
	adminH := NewAdminHandler(d.Accounts, d.Sessions, d.Scheduler, d.Logger)
	streamH := sse.NewHandler(d.PubSub, d.Sessions.Store(), d.StreamKeepalive, d.Logger)

	api := r.Group("/api", d.Gate.Handler())
	api.POST("/users", accountH.Register)
	api.POST("/session", authH.Login)

	authed := api.Group("", mw.RequireAuth())
	{
		authed.DELETE("/session", authH.Logout)
		authed.DELETE("/session/:id", authH.Revoke)
		authed.DELETE("/sessions", authH.RevokeOthers)
		authed.GET("/sessions", authH.List)

		authed.GET("/me", accountH.Me)
		authed.POST("/me/freeze", accountH.Freeze)
		authed.POST("/me/reactivate", accountH.Reactivate)
		authed.GET("/users/:id", accountH.Profile)

		authed.POST("/friend-requests", socialH.SendFriendRequest)
		authed.POST("/friend-requests/:id/respond", socialH.RespondFriendRequest)
		authed.DELETE("/friend-requests/:id", socialH.CancelFriendRequest)
		authed.GET("/friend-requests", socialH.ListFriendRequests)
		authed.GET("/friends", socialH.ListFriends)
		authed.DELETE("/friends/:userId", socialH.DeleteFriend)

		authed.POST("/blocks/:targetId", socialH.Block)
		authed.DELETE("/blocks/:id", socialH.Unblock)
		authed.GET("/blocks", socialH.ListBlocks)

		authed.POST("/contact-requests", contactH.Create)
		authed.POST("/contact-requests/:id/respond", contactH.Respond)
		authed.GET("/contact-requests", contactH.List)

		authed.GET("/messages", messageH.Inbox)
		authed.GET("/messages/stream", streamH.ServeInbox)
		authed.GET("/relationship-status/:targetId", socialH.RelationshipStatus)
	}

	admin := api.Group("/admin", mw.RequireRole(model.RoleModerator, model.RoleAdmin))
	{
		admin.GET("/users/:id/sessions", adminH.ListUserSessions)
		admin.DELETE("/users/:id/sessions", adminH.RevokeUserSessions)
		admin.GET("/scheduler", adminH.ListSchedulerTasks)
	}
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
