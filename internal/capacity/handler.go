package capacity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/pkg/dates"
)

// Exporter renders an availability calendar as a spreadsheet.
type Exporter interface {
	AvailabilityWorkbook(days []DayAvailability) ([]byte, error)
}

type Handler struct {
	service  *Service
	exporter Exporter
	logger   *zap.Logger
}

func NewHandler(service *Service, exporter Exporter, logger *zap.Logger) *Handler {
	return &Handler{service: service, exporter: exporter, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/capacity")
	{
		group.GET("/availability", h.Availability)
		group.GET("/availability.xlsx", h.AvailabilityWorkbook)
	}
}

func (h *Handler) parseRange(c *gin.Context) (dates.Date, dates.Date, error) {
	start, err := dates.Parse(c.Query("start"))
	if err != nil {
		return dates.Date{}, dates.Date{}, apierrors.Validation("start", "start must be a YYYY-MM-DD date")
	}
	end, err := dates.Parse(c.Query("end"))
	if err != nil {
		return dates.Date{}, dates.Date{}, apierrors.Validation("end", "end must be a YYYY-MM-DD date")
	}
	return start, end, nil
}

// Availability handles GET /capacity/availability?start=&end=
func (h *Handler) Availability(c *gin.Context) {
	start, end, err := h.parseRange(c)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	days, err := h.service.Availability(c.Request.Context(), start, end)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

// AvailabilityWorkbook handles GET /capacity/availability.xlsx
func (h *Handler) AvailabilityWorkbook(c *gin.Context) {
	start, end, err := h.parseRange(c)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	days, err := h.service.Availability(c.Request.Context(), start, end)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	data, err := h.exporter.AvailabilityWorkbook(days)
	if err != nil {
		h.logger.Error("Failed to render availability workbook", zap.Error(err))
		apierrors.Respond(c, h.logger, err)
		return
	}
	filename := "availability_" + start.String() + "_" + end.String() + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
