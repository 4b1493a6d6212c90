package handler

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"learnhub/internal/dto"
	"learnhub/internal/service"
	"learnhub/pkg/response"
)

// SSE 心跳间隔，防止移动网络代理断开空闲连接
const streamHeartbeat = 25 * time.Second

// EnrollmentHandler 选课与学习进度 HTTP 处理器
type EnrollmentHandler struct {
	enrollmentSvc service.EnrollmentService
}

// NewEnrollmentHandler 创建 EnrollmentHandler
func NewEnrollmentHandler(enrollmentSvc service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentSvc: enrollmentSvc}
}

// Enroll 选课（重复选课返回原记录）
// POST /api/v1/courses/:id/enroll
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	enrollment, created, err := h.enrollmentSvc.Enroll(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	if created {
		response.Created(c, enrollment)
		return
	}
	response.OK(c, enrollment)
}

// Unenroll 退课
// DELETE /api/v1/courses/:id/enroll
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.enrollmentSvc.Unenroll(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetEnrollment 获取本人某门课的学习进度
// GET /api/v1/courses/:id/progress
func (h *EnrollmentHandler) GetEnrollment(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	enrollment, err := h.enrollmentSvc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, enrollment)
}

// UpdateProgress 更新学习进度
// PUT /api/v1/courses/:id/progress
func (h *EnrollmentHandler) UpdateProgress(c *gin.Context) {
	var req dto.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	enrollment, err := h.enrollmentSvc.UpdateProgress(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, enrollment)
}

// WatchLesson 标记课时已观看
// POST /api/v1/courses/:id/lessons/watch
func (h *EnrollmentHandler) WatchLesson(c *gin.Context) {
	var req dto.WatchLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	enrollment, err := h.enrollmentSvc.WatchLesson(c.Request.Context(), userID, c.Param("id"), req.LessonID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, enrollment)
}

// MyCourses 我的课程
// GET /api/v1/me/courses
func (h *EnrollmentHandler) MyCourses(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.enrollmentSvc.ListMine(c.Request.Context(), userID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Statistics 学习统计
// GET /api/v1/me/statistics
func (h *EnrollmentHandler) Statistics(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	stats, err := h.enrollmentSvc.Statistics(c.Request.Context(), userID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, stats)
}

// Dashboard 学习看板：统计 + 本周学习 + 最近学习
// GET /api/v1/me/dashboard
func (h *EnrollmentHandler) Dashboard(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	dash, err := h.enrollmentSvc.Dashboard(c.Request.Context(), userID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, dash)
}

// Stream 以 SSE 推送选课记录的实时变化
// GET /api/v1/me/courses/stream
func (h *EnrollmentHandler) Stream(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	updates, err := h.enrollmentSvc.Stream(ctx, userID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case list, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("enrollments", list)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// handleEnrollmentError 统一处理选课模块业务错误
func (h *EnrollmentHandler) handleEnrollmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 14001, "课程不存在")
	case errors.Is(err, service.ErrEnrollmentNotFound):
		response.NotFound(c, 14002, "尚未选修该课程")
	case errors.Is(err, service.ErrLessonNotFound):
		response.NotFound(c, 14003, "课时不存在")
	default:
		response.FromError(c, err)
	}
}
