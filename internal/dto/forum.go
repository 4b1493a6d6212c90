package dto

import "learnhub/internal/model"

// ── 论坛模块 DTO ──

// CreatePostRequest 发帖请求
type CreatePostRequest struct {
	Title   string   `json:"title"   binding:"required,max=120"`
	Content string   `json:"content" binding:"required,max=10000"`
	Tags    []string `json:"tags"    binding:"omitempty,max=5,dive,max=20"`
}

// PostListRequest 帖子列表查询参数
type PostListRequest struct {
	Tag string `form:"tag" binding:"omitempty,max=20"`
}

// CreateReplyRequest 回复请求
type CreateReplyRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

// PostResponse 帖子响应
type PostResponse struct {
	ID         string   `json:"id"`
	AuthorID   string   `json:"author_id"`
	AuthorName string   `json:"author_name"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	LikeCount  int      `json:"like_count"`
	LikedByMe  bool     `json:"liked_by_me"`
	ReplyCount int      `json:"reply_count"`
	CreatedAt  string   `json:"created_at"`
}

// NewPostResponse model.ForumPost → PostResponse；viewerID 用于判断是否已点赞
func NewPostResponse(p *model.ForumPost, viewerID string) PostResponse {
	liked := false
	for _, id := range p.LikedBy {
		if id == viewerID {
			liked = true
			break
		}
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostResponse{
		ID:         p.ID,
		AuthorID:   p.AuthorID,
		AuthorName: p.AuthorName,
		Title:      p.Title,
		Content:    p.Content,
		Tags:       tags,
		LikeCount:  p.LikeCount,
		LikedByMe:  liked,
		ReplyCount: p.ReplyCount,
		CreatedAt:  formatTime(p.CreatedAt),
	}
}

// ReplyResponse 回复响应
type ReplyResponse struct {
	ID         string `json:"id"`
	PostID     string `json:"post_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

// NewReplyResponse model.ForumReply → ReplyResponse
func NewReplyResponse(r *model.ForumReply) ReplyResponse {
	return ReplyResponse{
		ID:         r.ID,
		PostID:     r.PostID,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		Content:    r.Content,
		CreatedAt:  formatTime(r.CreatedAt),
	}
}

// LikeResponse 点赞切换结果
type LikeResponse struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}
