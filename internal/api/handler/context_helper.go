package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub/pkg/jwt"
	"learnhub/pkg/response"
)

// 上下文键，由 middleware.JWTAuth 注入
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxClaims = "claims"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, ctxUserID)
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, ctxRole)
}

// MustGetClaims 提取当前 Access Token 的 Claims，注销时需要其 JTI 与过期时间
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(ctxClaims)
	if !exists {
		response.Unauthorized(c, response.CodeNotLoggedIn, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, response.CodeNotLoggedIn, "未认证")
		return nil, false
	}
	return claims, true
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, response.CodeNotLoggedIn, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, response.CodeNotLoggedIn, "未认证")
		return "", false
	}
	return s, true
}

// upload 表单中的单个文件
type upload struct {
	file        multipart.File
	contentType string
}

func (u *upload) Reader() io.Reader { return u.file }
func (u *upload) Close() error      { return u.file.Close() }

// mustGetUpload 读取 multipart 字段 file；maxBytes>0 时限制文件大小。
// 失败时写入 400 响应并返回 false。
func mustGetUpload(c *gin.Context, maxBytes int64) (*upload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "请上传文件（字段名 file）")
		return nil, false
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, "文件过大")
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "无法读取上传文件")
		return nil, false
	}
	return &upload{file: f, contentType: fh.Header.Get("Content-Type")}, true
}
