package dto

import "learnhub/internal/model"

// ── 聊天助手 DTO ──

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=2000"`
}

// ChatMessageResponse 消息响应
type ChatMessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// NewChatMessageResponse model.ChatMessage → ChatMessageResponse
func NewChatMessageResponse(m *model.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: formatTime(m.CreatedAt),
	}
}

// ChatExchangeResponse 一问一答
type ChatExchangeResponse struct {
	Question ChatMessageResponse `json:"question"`
	Answer   ChatMessageResponse `json:"answer"`
}
