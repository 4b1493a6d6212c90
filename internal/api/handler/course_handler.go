package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub/internal/dto"
	"learnhub/internal/service"
	"learnhub/pkg/response"
)

// CourseHandler 课程模块 HTTP 处理器
type CourseHandler struct {
	courseSvc service.CourseService
	maxUpload int64
}

// NewCourseHandler 创建 CourseHandler
func NewCourseHandler(courseSvc service.CourseService, maxUpload int64) *CourseHandler {
	return &CourseHandler{courseSvc: courseSvc, maxUpload: maxUpload}
}

// ListCourses 课程列表
// GET /api/v1/courses?category=xxx
func (h *CourseHandler) ListCourses(c *gin.Context) {
	var req dto.CourseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	courses, err := h.courseSvc.List(c.Request.Context(), req.Category)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, gin.H{"list": courses})
}

// GetCourse 课程详情
// GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	course, err := h.courseSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, course)
}

// CreateCourse 创建课程（管理员）
// POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	course, err := h.courseSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.Created(c, course)
}

// UpdateCourse 更新课程（管理员）
// PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	var req dto.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	course, err := h.courseSvc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, course)
}

// UploadThumbnail 上传课程封面（管理员）
// POST /api/v1/courses/:id/thumbnail (multipart: file)
func (h *CourseHandler) UploadThumbnail(c *gin.Context) {
	up, ok := mustGetUpload(c, h.maxUpload)
	if !ok {
		return
	}
	defer up.Close()

	result, err := h.courseSvc.UploadThumbnail(c.Request.Context(), c.Param("id"), up.Reader(), up.contentType)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, result)
}

// ImportLessons 从 Excel 导入课时（管理员）
// POST /api/v1/courses/:id/lessons/import (multipart: file)
func (h *CourseHandler) ImportLessons(c *gin.Context) {
	up, ok := mustGetUpload(c, h.maxUpload)
	if !ok {
		return
	}
	defer up.Close()

	course, err := h.courseSvc.ImportLessons(c.Request.Context(), c.Param("id"), up.Reader())
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, course)
}

// handleCourseError 统一处理课程模块业务错误
func (h *CourseHandler) handleCourseError(c *gin.Context, err error) {
	var rowErr *service.ImportRowError
	switch {
	case errors.Is(err, service.ErrCourseTitle):
		response.BadRequest(c, 13001, "课程标题不能为空")
	case errors.Is(err, service.ErrDuplicateLesson):
		response.BadRequest(c, 13002, "课时 ID 重复")
	case errors.Is(err, service.ErrUnsupportedImage):
		response.BadRequest(c, 12002, "仅支持 png / jpeg / gif / webp 图片")
	case errors.As(err, &rowErr):
		response.ErrorWithDetails(c, http.StatusBadRequest, 13003, "导入数据有误", rowErr.Error())
	case errors.Is(err, service.ErrImportNoData),
		errors.Is(err, service.ErrImportTooManyRows),
		errors.Is(err, service.ErrImportBadHeader),
		errors.Is(err, service.ErrImportBadFile):
		response.BadRequest(c, 13004, err.Error())
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 13005, "课程不存在")
	default:
		response.FromError(c, err)
	}
}
