package notifications

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/internal/notifications/websocket"
)

type Handler struct {
	service *Service
	ws      *websocket.Manager
	logger  *zap.Logger
}

func NewHandler(service *Service, ws *websocket.Manager, logger *zap.Logger) *Handler {
	return &Handler{service: service, ws: ws, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.List)
	rg.POST("/notifications/:id/read", h.MarkRead)
	rg.GET("/notifications/:id/deliveries", identity.RequireRole(identity.RoleAdmin, h.logger), h.Deliveries)
	if h.ws != nil {
		rg.GET("/ws", h.Connect)
	}
}

// List handles GET /notifications?unread=true&limit=&offset=
func (h *Handler) List(c *gin.Context) {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		apierrors.RespondCode(c, apierrors.CodeUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	unread := c.Query("unread") == "true"

	items, err := h.service.GetUserNotifications(c.Request.Context(), actor.ID, unread, limit, offset)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// MarkRead handles POST /notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		apierrors.RespondCode(c, apierrors.CodeUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.RespondCode(c, apierrors.CodeInvalidID)
		return
	}
	if err := h.service.MarkNotificationAsRead(c.Request.Context(), actor.ID, id); err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Deliveries handles GET /notifications/:id/deliveries
func (h *Handler) Deliveries(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.RespondCode(c, apierrors.CodeInvalidID)
		return
	}
	logs, err := h.service.GetNotificationStatus(c.Request.Context(), id)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": logs})
}

// Connect handles GET /ws
func (h *Handler) Connect(c *gin.Context) {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		apierrors.RespondCode(c, apierrors.CodeUnauthorized)
		return
	}
	if _, err := h.ws.HandleConnection(c.Writer, c.Request, actor.ID); err != nil {
		h.logger.Warn("Failed to open websocket", zap.String("user_id", actor.ID.String()), zap.Error(err))
	}
}
