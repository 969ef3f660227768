package identity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
)

type Handler struct {
	directory *Directory
	logger    *zap.Logger
}

func NewHandler(directory *Directory, logger *zap.Logger) *Handler {
	return &Handler{directory: directory, logger: logger}
}

// RegisterRoutes mounts /me for everyone and role management for admins.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)

	users := rg.Group("/users", RequireRole(RoleAdmin, h.logger))
	{
		users.GET("/:id/roles", h.ListRoles)
		users.PUT("/:id/roles/:role", h.GrantRole)
		users.DELETE("/:id/roles/:role", h.RevokeRole)
		users.PUT("/:id/contact", h.SaveContact)
	}
}

func (h *Handler) Me(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		apierrors.Respond(c, h.logger, apierrors.Unauthorized("authentication required"))
		return
	}
	c.JSON(http.StatusOK, actor)
}

func (h *Handler) ListRoles(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.RespondCode(c, apierrors.CodeInvalidID)
		return
	}
	roles, err := h.directory.ResolveRoles(c.Request.Context(), userID)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "roles": roles})
}

func (h *Handler) GrantRole(c *gin.Context) {
	userID, role, ok := h.parseRoleParams(c)
	if !ok {
		return
	}
	if err := h.directory.Grant(c.Request.Context(), userID, role); err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	h.logger.Info("Granted role", zap.String("user_id", userID.String()), zap.String("role", string(role)))
	c.Status(http.StatusNoContent)
}

func (h *Handler) RevokeRole(c *gin.Context) {
	userID, role, ok := h.parseRoleParams(c)
	if !ok {
		return
	}
	if err := h.directory.Revoke(c.Request.Context(), userID, role); err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	h.logger.Info("Revoked role", zap.String("user_id", userID.String()), zap.String("role", string(role)))
	c.Status(http.StatusNoContent)
}

func (h *Handler) SaveContact(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.RespondCode(c, apierrors.CodeInvalidID)
		return
	}
	var contact Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		apierrors.RespondMessage(c, apierrors.CodeInvalidRequest, err.Error())
		return
	}
	contact.UserID = userID
	if err := h.directory.SaveContact(c.Request.Context(), &contact); err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) parseRoleParams(c *gin.Context) (uuid.UUID, Role, bool) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.RespondCode(c, apierrors.CodeInvalidID)
		return uuid.Nil, "", false
	}
	role, ok := ParseRole(c.Param("role"))
	if !ok {
		apierrors.Respond(c, h.logger, apierrors.Validation("role", "unknown role "+c.Param("role")))
		return uuid.Nil, "", false
	}
	return userID, role, true
}
