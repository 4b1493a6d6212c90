package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"learnhub/internal/dto"
	"learnhub/internal/service"
	"learnhub/pkg/response"
)

// ChatHandler 学习助手 HTTP 处理器
type ChatHandler struct {
	chatSvc service.ChatService
}

// NewChatHandler 创建 ChatHandler
func NewChatHandler(chatSvc service.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// SendMessage 向助手提问
// POST /api/v1/chat/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.chatSvc.SendMessage(c.Request.Context(), userID, req.Content)
	if err != nil {
		h.handleChatError(c, err)
		return
	}

	response.Created(c, result)
}

// History 聊天记录
// GET /api/v1/chat/messages
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	msgs, err := h.chatSvc.History(c.Request.Context(), userID)
	if err != nil {
		h.handleChatError(c, err)
		return
	}

	response.OK(c, gin.H{"list": msgs})
}

// ClearHistory 清空聊天记录
// DELETE /api/v1/chat/messages
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	n, err := h.chatSvc.ClearHistory(c.Request.Context(), userID)
	if err != nil {
		h.handleChatError(c, err)
		return
	}

	response.OK(c, gin.H{"deleted": n})
}

func (h *ChatHandler) handleChatError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrEmptyContent) {
		response.BadRequest(c, 17001, "消息不能为空")
		return
	}
	response.FromError(c, err)
}
