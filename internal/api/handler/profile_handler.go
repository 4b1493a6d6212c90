package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"learnhub/internal/dto"
	"learnhub/internal/service"
	"learnhub/pkg/response"
)

// ProfileHandler 个人资料 HTTP 处理器
type ProfileHandler struct {
	profileSvc service.ProfileService
	maxUpload  int64
}

// NewProfileHandler 创建 ProfileHandler
func NewProfileHandler(profileSvc service.ProfileService, maxUpload int64) *ProfileHandler {
	return &ProfileHandler{profileSvc: profileSvc, maxUpload: maxUpload}
}

// GetProfile 获取个人资料
// GET /api/v1/profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.profileSvc.Get(c.Request.Context(), userID)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OK(c, user)
}

// UpdateProfile 更新昵称 / 简介
// PUT /api/v1/profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.profileSvc.Update(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OK(c, user)
}

// UploadAvatar 上传头像
// POST /api/v1/profile/avatar (multipart: file)
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	up, ok := mustGetUpload(c, h.maxUpload)
	if !ok {
		return
	}
	defer up.Close()

	result, err := h.profileSvc.UploadAvatar(c.Request.Context(), userID, up.Reader(), up.contentType)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OK(c, result)
}

// handleProfileError 统一处理个人资料业务错误
func (h *ProfileHandler) handleProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDisplayNameEmpty):
		response.BadRequest(c, 12001, "昵称不能为空")
	case errors.Is(err, service.ErrUnsupportedImage):
		response.BadRequest(c, 12002, "仅支持 png / jpeg / gif / webp 图片")
	default:
		response.FromError(c, err)
	}
}
