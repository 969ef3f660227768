package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/attachments"
	"design-desk/request-portal/request-portal-backend/internal/capacity"
	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/pkg/dates"
)

const (
	multipartMemory = 32 << 20
	maxFilesPerCall = 10
	defaultPageSize = 50
	maxPageSize     = 200

	attachmentURLTTL = 15 * time.Minute
)

// TimelineRenderer renders a request and its history as a printable document.
type TimelineRenderer interface {
	RequestTimeline(view *RequestView) ([]byte, error)
}

type Handler struct {
	service  *Service
	timeline TimelineRenderer
	logger   *zap.Logger
}

func NewHandler(service *Service, timeline TimelineRenderer, logger *zap.Logger) *Handler {
	return &Handler{service: service, timeline: timeline, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	reqs := rg.Group("/requests")
	{
		reqs.POST("", h.Create)
		reqs.GET("", h.List)
		reqs.GET("/:id", h.Get)
		reqs.GET("/:id/history", h.History)
		reqs.GET("/:id/actions", h.AllowedActions)
		reqs.GET("/:id/timeline.pdf", h.Timeline)
		reqs.GET("/:id/attachments/:attachmentId", h.DownloadAttachment)
		reqs.GET("/:id/attachments/:attachmentId/url", h.AttachmentURL)

		reqs.POST("/:id/start-design", h.StartDesign)
		reqs.POST("/:id/return-for-correction", h.ReturnForCorrection)
		reqs.POST("/:id/complete-design", h.CompleteDesign)
		reqs.POST("/:id/process-approval", h.ProcessApproval)
		reqs.POST("/:id/resubmit", h.Resubmit)
		reqs.POST("/:id/resubmit-for-approval", h.ResubmitForApproval)
	}
}

type createBody struct {
	Title      string            `json:"title"`
	TypeID     string            `json:"type_id"`
	Priority   capacity.Priority `json:"priority"`
	DueDate    *dates.Date       `json:"due_date"`
	DetailKind DetailKind        `json:"detail_kind"`
	Details    json.RawMessage   `json:"details"`
	Comment    string            `json:"comment"`
}

type commentBody struct {
	Comment string `json:"comment"`
}

type completeDesignBody struct {
	Comment       string     `json:"comment"`
	NeedsApproval bool       `json:"needs_approval"`
	ApproverID    *uuid.UUID `json:"approver_id"`
}

type processApprovalBody struct {
	Comment  string `json:"comment"`
	Approved *bool  `json:"approved"`
}

type resubmitBody struct {
	Comment string        `json:"comment"`
	Edits   *RequestEdits `json:"edits"`
}

// Create handles POST /requests
func (h *Handler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var body createBody
	files, closeFiles, err := h.bind(c, &body)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	defer closeFiles()

	res, err := h.service.Create(c.Request.Context(), actor, CreateInput{
		ActionInput: ActionInput{Comment: body.Comment, Files: files},
		Title:       body.Title,
		TypeID:      body.TypeID,
		Priority:    body.Priority,
		DueDate:     body.DueDate,
		DetailKind:  body.DetailKind,
		Details:     body.Details,
	})
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// StartDesign handles POST /requests/:id/start-design
func (h *Handler) StartDesign(c *gin.Context) {
	h.simpleAction(c, h.service.StartDesign)
}

// ReturnForCorrection handles POST /requests/:id/return-for-correction
func (h *Handler) ReturnForCorrection(c *gin.Context) {
	h.simpleAction(c, h.service.ReturnForCorrection)
}

// ResubmitForApproval handles POST /requests/:id/resubmit-for-approval
func (h *Handler) ResubmitForApproval(c *gin.Context) {
	h.simpleAction(c, h.service.ResubmitForApproval)
}

// CompleteDesign handles POST /requests/:id/complete-design
func (h *Handler) CompleteDesign(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	var body completeDesignBody
	files, closeFiles, err := h.bind(c, &body)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	defer closeFiles()

	res, err := h.service.CompleteDesign(c.Request.Context(), actor, id, CompleteDesignInput{
		ActionInput:   ActionInput{Comment: body.Comment, Files: files},
		NeedsApproval: body.NeedsApproval,
		ApproverID:    body.ApproverID,
	})
	h.respondTransition(c, res, err)
}

// ProcessApproval handles POST /requests/:id/process-approval
func (h *Handler) ProcessApproval(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	var body processApprovalBody
	files, closeFiles, err := h.bind(c, &body)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	defer closeFiles()
	if body.Approved == nil {
		apierrors.Respond(c, h.logger, apierrors.Validation("approved", "approved is required"))
		return
	}

	res, err := h.service.ProcessApproval(c.Request.Context(), actor, id, ProcessApprovalInput{
		ActionInput: ActionInput{Comment: body.Comment, Files: files},
		Approved:    *body.Approved,
	})
	h.respondTransition(c, res, err)
}

// Resubmit handles POST /requests/:id/resubmit
func (h *Handler) Resubmit(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	var body resubmitBody
	files, closeFiles, err := h.bind(c, &body)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	defer closeFiles()

	res, err := h.service.Resubmit(c.Request.Context(), actor, id, ResubmitInput{
		ActionInput: ActionInput{Comment: body.Comment, Files: files},
		Edits:       body.Edits,
	})
	h.respondTransition(c, res, err)
}

// List handles GET /requests?status=&limit=&offset=
func (h *Handler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	filter := ListFilter{Limit: defaultPageSize}
	for _, raw := range c.QueryArray("status") {
		status, err := ParseStatus(raw)
		if err != nil {
			apierrors.Respond(c, h.logger, apierrors.Validation("status", err.Error()))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxPageSize {
			apierrors.Respond(c, h.logger, apierrors.Validation("limit", fmt.Sprintf("limit must be between 1 and %d", maxPageSize)))
			return
		}
		filter.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			apierrors.Respond(c, h.logger, apierrors.Validation("offset", "offset must be a non-negative integer"))
			return
		}
		filter.Offset = offset
	}

	items, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": items, "limit": filter.Limit, "offset": filter.Offset})
}

// Get handles GET /requests/:id
func (h *Handler) Get(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// History handles GET /requests/:id/history?order=asc|desc
func (h *Handler) History(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	order := OrderNewestFirst
	switch c.DefaultQuery("order", "desc") {
	case "desc":
	case "asc":
		order = OrderChronological
	default:
		apierrors.Respond(c, h.logger, apierrors.Validation("order", "order must be asc or desc"))
		return
	}
	entries, err := h.service.History(c.Request.Context(), actor, id, order)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// AllowedActions handles GET /requests/:id/actions
func (h *Handler) AllowedActions(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	actions, err := h.service.AllowedActions(c.Request.Context(), actor, id)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	if actions == nil {
		actions = []Action{}
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

// Timeline handles GET /requests/:id/timeline.pdf
func (h *Handler) Timeline(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	data, err := h.timeline.RequestTimeline(view)
	if err != nil {
		h.logger.Error("Failed to render request timeline", zap.String("request_id", id.String()), zap.Error(err))
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="request_%s_timeline.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", data)
}

// DownloadAttachment handles GET /requests/:id/attachments/:attachmentId
func (h *Handler) DownloadAttachment(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	attachmentID, err := uuid.Parse(c.Param("attachmentId"))
	if err != nil {
		apierrors.RespondCode(c, apierrors.CodeInvalidID)
		return
	}
	meta, body, err := h.service.OpenAttachment(c.Request.Context(), actor, id, attachmentID)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	defer body.Close()

	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, meta.Size, contentType, body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename=%q`, meta.OriginalName),
	})
}

// AttachmentURL handles GET /requests/:id/attachments/:attachmentId/url
func (h *Handler) AttachmentURL(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	attachmentID, err := uuid.Parse(c.Param("attachmentId"))
	if err != nil {
		apierrors.RespondCode(c, apierrors.CodeInvalidID)
		return
	}
	url, err := h.service.AttachmentURL(c.Request.Context(), actor, id, attachmentID, attachmentURLTTL)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_at": time.Now().Add(attachmentURLTTL)})
}

type actionFunc func(ctx context.Context, actor identity.Actor, id uuid.UUID, in ActionInput) (*TransitionResult, error)

func (h *Handler) simpleAction(c *gin.Context, run actionFunc) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	var body commentBody
	files, closeFiles, err := h.bind(c, &body)
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	defer closeFiles()

	res, err := run(c.Request.Context(), actor, id, ActionInput{Comment: body.Comment, Files: files})
	h.respondTransition(c, res, err)
}

func (h *Handler) respondTransition(c *gin.Context, res *TransitionResult, err error) {
	if err != nil {
		apierrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) actor(c *gin.Context) (identity.Actor, bool) {
	actor, ok := identity.ActorFrom(c)
	if !ok {
		apierrors.Respond(c, h.logger, apierrors.Unauthorized("authentication required"))
		return identity.Actor{}, false
	}
	return actor, true
}

func (h *Handler) actorAndID(c *gin.Context) (identity.Actor, uuid.UUID, bool) {
	actor, ok := h.actor(c)
	if !ok {
		return identity.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.RespondCode(c, apierrors.CodeInvalidID)
		return identity.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// bind decodes a JSON body, or a multipart form whose "payload" field holds
// the JSON and whose "files" parts are attachments. The returned func closes
// the opened parts.
func (h *Handler) bind(c *gin.Context, dst interface{}) ([]attachments.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if c.Request.Body == nil || c.Request.ContentLength == 0 {
			return nil, noop, nil
		}
		if err := json.NewDecoder(c.Request.Body).Decode(dst); err != nil && err != io.EOF {
			return nil, noop, apierrors.Validation("body", "malformed JSON body: "+err.Error())
		}
		return nil, noop, nil
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		return nil, noop, apierrors.Validation("body", "malformed multipart form: "+err.Error())
	}
	if payload := c.Request.FormValue("payload"); payload != "" {
		if err := json.Unmarshal([]byte(payload), dst); err != nil {
			return nil, noop, apierrors.Validation("payload", "malformed JSON payload: "+err.Error())
		}
	}

	headers := c.Request.MultipartForm.File["files"]
	if len(headers) > maxFilesPerCall {
		return nil, noop, apierrors.Validation("files", fmt.Sprintf("at most %d files per action", maxFilesPerCall))
	}
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	uploads := make([]attachments.Upload, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > attachments.MaxFileSize {
			closeAll()
			return nil, noop, apierrors.Validation("files", fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, attachments.MaxFileSize))
		}
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, apierrors.Validation("files", "unreadable file "+fh.Filename)
		}
		opened = append(opened, f)
		uploads = append(uploads, attachments.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		})
	}
	return uploads, closeAll, nil
}
