package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "learnhub/pkg/errors"
)

// Response 统一响应结构：移动端据 code 判断成功 / 失败
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Details string      `json:"details,omitempty"`
}

// 通用错误码
const (
	CodeOK           = 0
	CodeInvalidParam = 10001
	CodeNotLoggedIn  = 10002
	CodeForbidden    = 10003
	CodeRateLimited  = 10004
	CodeBodyTooLarge = 10005
	CodeNotFound     = 10006
	CodeConflict     = 10007
	CodeInternal     = 50000
	CodeBackend      = 50001
)

// ── 成功响应 ──

// OK 200 成功响应
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeOK,
		Message: "success",
		Data:    data,
	})
}

// Created 201 创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeOK,
		Message: "success",
		Data:    data,
	})
}

// ── 错误响应 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithDetails 带详情的错误响应
func ErrorWithDetails(c *gin.Context, httpStatus int, code int, message, details string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// BadRequest 400
func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

// Forbidden 403
func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

// NotFound 404
func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// Conflict 409
func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// InternalError 500
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, CodeInternal, "服务器内部错误")
}

// FromError 按通用错误分类输出响应，供各模块 handleXError 的默认分支使用
func FromError(c *gin.Context, err error) {
	switch apperrors.Kind(err) {
	case apperrors.ErrNotLoggedIn:
		Unauthorized(c, CodeNotLoggedIn, apperrors.ErrNotLoggedIn.Error())
	case apperrors.ErrNotFound:
		NotFound(c, CodeNotFound, err.Error())
	case apperrors.ErrConflict:
		Conflict(c, CodeConflict, apperrors.ErrConflict.Error())
	default:
		Error(c, http.StatusBadGateway, CodeBackend, apperrors.ErrBackend.Error())
	}
}
