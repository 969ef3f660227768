package inbox

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/inbox")
	{
		group.GET("", h.Get)
		group.POST("/requests/:id/view", h.MarkViewed)
	}
}

// Get handles GET /inbox?role=&category=
func (h *Handler) Get(c *gin.Context) {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		apierrors.RespondCode(c, apierrors.CodeUnauthorized)
		return
	}
	var role identity.Role
	if raw := c.Query("role"); raw != "" {
		parsed, ok := identity.ParseRole(raw)
		if !ok {
			apierrors.RespondMessage(c, apierrors.CodeInvalidRequest, "unknown role "+raw)
			return
		}
		role = parsed
	}

	inbox, err := h.service.Project(c.Request.Context(), actor, role, Category(c.Query("category")))
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inbox)
}

// MarkViewed handles POST /inbox/requests/:id/view
func (h *Handler) MarkViewed(c *gin.Context) {
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
	if err := h.service.MarkViewed(c.Request.Context(), actor, id); err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
