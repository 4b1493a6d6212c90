package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"learnhub/pkg/objectstore"
	"learnhub/pkg/response"
)

// ObjectReader 可按 key 读取对象的存储（内存对象存储）
type ObjectReader interface {
	Get(key string) (objectstore.Object, error)
}

// FileHandler 本地开发时提供上传文件的访问；生产环境由 GCS / CDN 直接提供
type FileHandler struct {
	objects ObjectReader
}

// NewFileHandler 创建 FileHandler
func NewFileHandler(objects ObjectReader) *FileHandler {
	return &FileHandler{objects: objects}
}

// Enabled 是否提供本地文件访问
func (h *FileHandler) Enabled() bool { return h.objects != nil }

// Serve 读取上传的文件
// GET /files/*key
func (h *FileHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || !h.Enabled() {
		response.NotFound(c, response.CodeNotFound, "文件不存在")
		return
	}

	obj, err := h.objects.Get(key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			response.NotFound(c, response.CodeNotFound, "文件不存在")
			return
		}
		response.FromError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}
