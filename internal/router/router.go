package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stackit/internal/handlers"
	"stackit/internal/middleware"
	"stackit/internal/services"
	"stackit/internal/ws"
)

// Deps bundles everything the routes need; constructed once in main
// and threaded through explicitly.
type Deps struct {
	DB        *gorm.DB
	Hub       *ws.Hub
	Events    *services.EventService
	Notifier  *services.NotificationService
	JWTSecret string
	Log       *zap.Logger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	postHandler := handlers.NewPostHandler(d.DB, d.Events)
	commentHandler := handlers.NewCommentHandler(d.DB, d.Events)
	notificationHandler := handlers.NewNotificationHandler(d.DB, d.Notifier, d.Hub, d.JWTSecret, d.Log)

	r.Use(middleware.LoadUser(d.DB, d.JWTSecret))

	// Public routes
	r.GET("/posts", postHandler.List)
	r.GET("/posts/:id", postHandler.Get)
	r.GET("/posts/:id/comments", commentHandler.List)

	// The websocket endpoint authenticates itself via its token query
	// parameter rather than the Authorization header.
	r.GET("/notifications/ws", notificationHandler.Websocket)

	// Protected routes
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/posts", postHandler.Create)
		authorized.PUT("/posts/:id", postHandler.Update)
		authorized.POST("/posts/:id/comments", commentHandler.Create)
		authorized.POST("/comments/:id/accept", commentHandler.Accept)
		authorized.POST("/comments/:id/vote", commentHandler.Vote)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.POST("/notifications/read_all", notificationHandler.ReadAll)
	}
}
