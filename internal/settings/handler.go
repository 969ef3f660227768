package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/identity"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/settings")
	{
		group.GET("/notifications", h.GetNotifications)
		group.PUT("/notifications", h.UpdateNotifications)

		admin := group.Group("", identity.RequireRole(identity.RoleAdmin, h.logger))
		admin.GET("/capacity", h.GetCapacity)
		admin.PUT("/capacity", h.UpdateCapacity)
		admin.GET("/default-designer", h.GetDefaultDesigner)
		admin.PUT("/default-designer", h.UpdateDefaultDesigner)
	}
}

func (h *Handler) GetCapacity(c *gin.Context) {
	limits, err := h.service.CapacityLimits(c.Request.Context())
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

func (h *Handler) UpdateCapacity(c *gin.Context) {
	actor, _ := identity.ActorFrom(c)
	var payload CapacitySettings
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierrors.RespondMessage(c, apierrors.CodeInvalidRequest, err.Error())
		return
	}
	limits, err := h.service.UpdateCapacity(c.Request.Context(), actor, payload)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

func (h *Handler) GetDefaultDesigner(c *gin.Context) {
	id, err := h.service.DefaultDesignerID(c.Request.Context())
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, DefaultDesigner{DesignerID: id})
}

func (h *Handler) UpdateDefaultDesigner(c *gin.Context) {
	actor, _ := identity.ActorFrom(c)
	var payload DefaultDesigner
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierrors.RespondMessage(c, apierrors.CodeInvalidRequest, err.Error())
		return
	}
	if err := h.service.SetDefaultDesigner(c.Request.Context(), actor, payload.DesignerID); err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *Handler) GetNotifications(c *gin.Context) {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		apierrors.RespondCode(c, apierrors.CodeUnauthorized)
		return
	}
	prefs, err := h.service.Preferences(c.Request.Context(), actor.ID)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) UpdateNotifications(c *gin.Context) {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		apierrors.RespondCode(c, apierrors.CodeUnauthorized)
		return
	}
	var payload struct {
		Email bool `json:"email"`
		Push  bool `json:"push"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierrors.RespondMessage(c, apierrors.CodeInvalidRequest, err.Error())
		return
	}
	prefs, err := h.service.SavePreferences(c.Request.Context(), actor, payload.Email, payload.Push)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}
