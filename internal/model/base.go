package model

import "time"

// ── 文档集合名称 ──

const (
	CollectionUsers              = "users"
	CollectionCourses            = "courses"
	CollectionEnrollments        = "enrollments"
	CollectionForumPosts         = "forum_posts"
	CollectionForumReplies       = "forum_replies"
	CollectionEvents             = "events"
	CollectionEventRegistrations = "event_registrations"
	CollectionChatMessages       = "chat_messages"
)

// Timestamps 通用时间字段（所有文档嵌入）
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Touch 刷新时间戳，首次写入时同时设置 CreatedAt
func (t *Timestamps) Touch(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}
