package model

// ForumPost 论坛帖子，对应 forum_posts
type ForumPost struct {
	ID         string   `json:"id"`
	AuthorID   string   `json:"authorId"`
	AuthorName string   `json:"authorName"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	LikeCount  int      `json:"likeCount"`
	LikedBy    []string `json:"likedBy"`
	ReplyCount int      `json:"replyCount"`
	Timestamps
}

// ForumReply 帖子回复，对应 forum_replies
type ForumReply struct {
	ID         string `json:"id"`
	PostID     string `json:"postId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
	Timestamps
}
