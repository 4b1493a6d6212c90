package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub/internal/dto"
	"learnhub/internal/service"
	"learnhub/pkg/response"
)

// EventHandler 校园活动 HTTP 处理器
type EventHandler struct {
	eventSvc  service.EventService
	maxUpload int64
}

// NewEventHandler 创建 EventHandler
func NewEventHandler(eventSvc service.EventService, maxUpload int64) *EventHandler {
	return &EventHandler{eventSvc: eventSvc, maxUpload: maxUpload}
}

// ListEvents 活动列表
// GET /api/v1/events?upcoming=true
func (h *EventHandler) ListEvents(c *gin.Context) {
	var req dto.EventListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	events, err := h.eventSvc.List(c.Request.Context(), req.Upcoming)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, gin.H{"list": events})
}

// GetEvent 活动详情
// GET /api/v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.eventSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// CreateEvent 创建活动（管理员）
// POST /api/v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	event, err := h.eventSvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.Created(c, event)
}

// Register 报名
// POST /api/v1/events/:id/register
func (h *EventHandler) Register(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	reg, err := h.eventSvc.Register(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.Created(c, reg)
}

// CancelRegistration 取消报名
// DELETE /api/v1/events/:id/register
func (h *EventHandler) CancelRegistration(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.eventSvc.CancelRegistration(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, nil)
}

// MyRegistrations 我的报名
// GET /api/v1/me/events
func (h *EventHandler) MyRegistrations(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	regs, err := h.eventSvc.MyRegistrations(c.Request.Context(), userID)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, gin.H{"list": regs})
}

// Ticket 报名凭证二维码
// GET /api/v1/events/:id/ticket
func (h *EventHandler) Ticket(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	png, err := h.eventSvc.Ticket(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

// Calendar 未结束活动的 iCalendar 订阅
// GET /api/v1/events/calendar.ics
func (h *EventHandler) Calendar(c *gin.Context) {
	data, err := h.eventSvc.Calendar(c.Request.Context())
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="learnhub-events.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

// ImportCalendar 从 .ics 批量导入活动（管理员）
// POST /api/v1/events/import (multipart: file)
func (h *EventHandler) ImportCalendar(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	up, ok := mustGetUpload(c, h.maxUpload)
	if !ok {
		return
	}
	defer up.Close()

	created, err := h.eventSvc.ImportCalendar(c.Request.Context(), userID, up.Reader())
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, gin.H{"created": created})
}

// UploadPoster 上传活动海报（管理员）
// POST /api/v1/events/:id/poster (multipart: file)
func (h *EventHandler) UploadPoster(c *gin.Context) {
	up, ok := mustGetUpload(c, h.maxUpload)
	if !ok {
		return
	}
	defer up.Close()

	result, err := h.eventSvc.UploadPoster(c.Request.Context(), c.Param("id"), up.Reader(), up.contentType)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, result)
}

// handleEventError 统一处理活动模块业务错误
func (h *EventHandler) handleEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 16001, "活动不存在")
	case errors.Is(err, service.ErrRegistrationNotFound):
		response.NotFound(c, 16002, "尚未报名该活动")
	case errors.Is(err, service.ErrEventFull):
		response.Conflict(c, 16003, "活动名额已满")
	case errors.Is(err, service.ErrAlreadyRegistered):
		response.Conflict(c, 16004, "已报名该活动")
	case errors.Is(err, service.ErrEventEnded):
		response.BadRequest(c, 16005, "活动已结束")
	case errors.Is(err, service.ErrEventTime):
		response.BadRequest(c, 16006, "结束时间必须晚于开始时间")
	case errors.Is(err, service.ErrICSInvalid):
		response.BadRequest(c, 16007, "ICS 文件格式无效")
	case errors.Is(err, service.ErrEmptyContent):
		response.BadRequest(c, 16008, "活动标题不能为空")
	case errors.Is(err, service.ErrUnsupportedImage):
		response.BadRequest(c, 12002, "仅支持 png / jpeg / gif / webp 图片")
	default:
		response.FromError(c, err)
	}
}
