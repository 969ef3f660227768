package jobs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/identity"
)

type Handler struct {
	scheduler *Scheduler
	logger    *zap.Logger
}

func NewHandler(scheduler *Scheduler, logger *zap.Logger) *Handler {
	return &Handler{scheduler: scheduler, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/jobs", identity.RequireRole(identity.RoleAdmin, h.logger))
	{
		group.GET("", h.List)
		group.POST("/:name/run", h.Run)
	}
}

// List handles GET /jobs
func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.scheduler.List()})
}

// Run handles POST /jobs/:name/run. The job runs before the response is sent.
func (h *Handler) Run(c *gin.Context) {
	job, ok := h.scheduler.Job(c.Param("name"))
	if !ok {
		apierrors.Respond(c, h.logger, apierrors.NotFound("job", c.Param("name")))
		return
	}
	if err := h.scheduler.RunNow(job); err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	resp := gin.H{"job": job.Name(), "status": "ok"}
	if audit, ok := job.(*LedgerAudit); ok {
		resp["checked"] = audit.Last().Checked
		resp["mismatched"] = audit.Last().Mismatched
	}
	c.JSON(http.StatusOK, resp)
}
