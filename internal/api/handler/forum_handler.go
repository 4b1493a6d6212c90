package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"learnhub/internal/dto"
	"learnhub/internal/service"
	"learnhub/pkg/response"
)

// ForumHandler 论坛 HTTP 处理器
type ForumHandler struct {
	forumSvc service.ForumService
}

// NewForumHandler 创建 ForumHandler
func NewForumHandler(forumSvc service.ForumService) *ForumHandler {
	return &ForumHandler{forumSvc: forumSvc}
}

// ListPosts 帖子列表
// GET /api/v1/forum/posts?tag=xxx
func (h *ForumHandler) ListPosts(c *gin.Context) {
	var req dto.PostListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	posts, err := h.forumSvc.ListPosts(c.Request.Context(), userID, req.Tag)
	if err != nil {
		h.handleForumError(c, err)
		return
	}

	response.OK(c, gin.H{"list": posts})
}

// GetPost 帖子详情
// GET /api/v1/forum/posts/:id
func (h *ForumHandler) GetPost(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	post, err := h.forumSvc.GetPost(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleForumError(c, err)
		return
	}

	response.OK(c, post)
}

// CreatePost 发帖
// POST /api/v1/forum/posts
func (h *ForumHandler) CreatePost(c *gin.Context) {
	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	post, err := h.forumSvc.CreatePost(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleForumError(c, err)
		return
	}

	response.Created(c, post)
}

// DeletePost 删除帖子（作者或管理员）
// DELETE /api/v1/forum/posts/:id
func (h *ForumHandler) DeletePost(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	if err := h.forumSvc.DeletePost(c.Request.Context(), userID, role, c.Param("id")); err != nil {
		h.handleForumError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListReplies 回复列表
// GET /api/v1/forum/posts/:id/replies
func (h *ForumHandler) ListReplies(c *gin.Context) {
	replies, err := h.forumSvc.ListReplies(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleForumError(c, err)
		return
	}

	response.OK(c, gin.H{"list": replies})
}

// AddReply 回复帖子
// POST /api/v1/forum/posts/:id/replies
func (h *ForumHandler) AddReply(c *gin.Context) {
	var req dto.CreateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	reply, err := h.forumSvc.AddReply(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.handleForumError(c, err)
		return
	}

	response.Created(c, reply)
}

// ToggleLike 点赞 / 取消点赞
// POST /api/v1/forum/posts/:id/like
func (h *ForumHandler) ToggleLike(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.forumSvc.ToggleLike(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleForumError(c, err)
		return
	}

	response.OK(c, result)
}

// handleForumError 统一处理论坛模块业务错误
func (h *ForumHandler) handleForumError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		response.NotFound(c, 15001, "帖子不存在")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 15002, "只有作者或管理员可以删除帖子")
	case errors.Is(err, service.ErrEmptyContent):
		response.BadRequest(c, 15003, "内容不能为空")
	default:
		response.FromError(c, err)
	}
}
