package api

import (
	"context"
	"net/http"
	"strconv"

	"video_uniquifier_bot/internal/auth"
	apperrors "video_uniquifier_bot/internal/errors"
	"video_uniquifier_bot/internal/models"
	"video_uniquifier_bot/internal/wsocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// AdminService is the admin surface of the session controller.
type AdminService interface {
	Users(ctx context.Context) ([]models.UserSummary, error)
	User(ctx context.Context, chatID int64) (models.UserSummary, error)
	ApproveChat(ctx context.Context, chatID int64) error
	RevokeChat(ctx context.Context, chatID int64) error
}

// SetupRoutes mounts health, metrics, the admin API (only with a non-empty
// jwtSecret) and, when wsHandler is set, the websocket transport.
func SetupRoutes(r *gin.Engine, admin AdminService, jwtSecret []byte, wsHandler *wsocket.Handler) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if len(jwtSecret) > 0 {
		api := r.Group("/api/admin", auth.AuthMiddleware(jwtSecret))
		{
			api.GET("/users", listUsersHandler(admin))
			api.GET("/users/:id", getUserHandler(admin))
			api.POST("/users/:id/approve", approveUserHandler(admin))
			api.POST("/users/:id/revoke", revokeUserHandler(admin))
		}
	}

	if wsHandler != nil {
		r.GET("/ws", func(c *gin.Context) {
			wsHandler.HandleWebSocket(c.Writer, c.Request)
		})
	}
}

func chatIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.New400Error("invalid chat id")
	}
	return id, nil
}

func listUsersHandler(admin AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := admin.Users(c.Request.Context())
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

func getUserHandler(admin AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := chatIDParam(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		user, err := admin.User(c.Request.Context(), id)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func approveUserHandler(admin AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := chatIDParam(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		if err := admin.ApproveChat(c.Request.Context(), id); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		log.Info().Str("admin", auth.Subject(c)).Int64("target", id).Msg("chat approved via API")
		c.JSON(http.StatusOK, gin.H{"chat_id": id, "approved": true})
	}
}

func revokeUserHandler(admin AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := chatIDParam(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		if err := admin.RevokeChat(c.Request.Context(), id); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		log.Info().Str("admin", auth.Subject(c)).Int64("target", id).Msg("chat revoked via API")
		c.JSON(http.StatusOK, gin.H{"chat_id": id, "approved": false})
	}
}
