package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"learnhub/internal/dto"
	"learnhub/internal/model"
	"learnhub/internal/repository"
	apperrors "learnhub/pkg/errors"
)

// ── 论坛模块业务错误 ──

var (
	ErrPostNotFound = fmt.Errorf("%w: 帖子不存在", apperrors.ErrNotFound)
	ErrNoPermission = errors.New("无权操作")
	ErrEmptyContent = errors.New("内容不能为空")
)

// ForumService 论坛业务接口
type ForumService interface {
	CreatePost(ctx context.Context, userID string, req *dto.CreatePostRequest) (*dto.PostResponse, error)
	// ListPosts tag 为空时返回全部帖子
	ListPosts(ctx context.Context, viewerID, tag string) ([]dto.PostResponse, error)
	GetPost(ctx context.Context, viewerID, postID string) (*dto.PostResponse, error)
	// DeletePost 作者或管理员可删除，回复一并删除
	DeletePost(ctx context.Context, userID, role, postID string) error
	AddReply(ctx context.Context, userID, postID string, req *dto.CreateReplyRequest) (*dto.ReplyResponse, error)
	ListReplies(ctx context.Context, postID string) ([]dto.ReplyResponse, error)
	ToggleLike(ctx context.Context, userID, postID string) (*dto.LikeResponse, error)
}

type forumService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewForumService 创建 ForumService 实例
func NewForumService(repo *repository.Repository, logger *zap.Logger) ForumService {
	return &forumService{repo: repo, logger: logger, now: time.Now}
}

func (s *forumService) CreatePost(ctx context.Context, userID string, req *dto.CreatePostRequest) (*dto.PostResponse, error) {
	title := collapseSpaces(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		return nil, ErrEmptyContent
	}

	author, err := s.authorName(ctx, userID)
	if err != nil {
		return nil, err
	}

	post := &model.ForumPost{
		ID:         uuid.NewString(),
		AuthorID:   userID,
		AuthorName: author,
		Title:      title,
		Content:    content,
		Tags:       normalizeTags(req.Tags),
		LikedBy:    []string{},
	}
	post.Touch(s.now())

	if err := s.repo.Forum.SavePost(ctx, post); err != nil {
		s.logger.Error("发帖失败", zap.Error(err))
		return nil, err
	}
	resp := dto.NewPostResponse(post, userID)
	return &resp, nil
}

func (s *forumService) ListPosts(ctx context.Context, viewerID, tag string) ([]dto.PostResponse, error) {
	posts, err := s.repo.Forum.ListPosts(ctx)
	if err != nil {
		s.logger.Error("查询帖子列表失败", zap.Error(err))
		return nil, err
	}

	tag = strings.ToLower(strings.TrimSpace(tag))
	out := make([]dto.PostResponse, 0, len(posts))
	for i := range posts {
		if tag != "" && !hasTag(posts[i].Tags, tag) {
			continue
		}
		out = append(out, dto.NewPostResponse(&posts[i], viewerID))
	}
	return out, nil
}

func (s *forumService) GetPost(ctx context.Context, viewerID, postID string) (*dto.PostResponse, error) {
	post, err := s.repo.Forum.GetPost(ctx, postID)
	if err != nil {
		return nil, s.mapError(err, "查询帖子失败")
	}
	resp := dto.NewPostResponse(post, viewerID)
	return &resp, nil
}

func (s *forumService) DeletePost(ctx context.Context, userID, role, postID string) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		post, err := tx.Forum.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		if post.AuthorID != userID && role != model.RoleAdmin {
			return ErrNoPermission
		}
		if err := tx.Forum.DeleteReplies(ctx, postID); err != nil {
			return err
		}
		return tx.Forum.DeletePost(ctx, postID)
	})
	if err != nil {
		return s.mapError(err, "删除帖子失败")
	}
	s.logger.Info("删除帖子", zap.String("post_id", postID), zap.String("operator", userID))
	return nil
}

func (s *forumService) AddReply(ctx context.Context, userID, postID string, req *dto.CreateReplyRequest) (*dto.ReplyResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	author, err := s.authorName(ctx, userID)
	if err != nil {
		return nil, err
	}

	reply := &model.ForumReply{
		ID:         uuid.NewString(),
		PostID:     postID,
		AuthorID:   userID,
		AuthorName: author,
		Content:    content,
	}
	reply.Touch(s.now())

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		post, err := tx.Forum.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		post.ReplyCount++
		post.UpdatedAt = reply.CreatedAt
		if err := tx.Forum.SavePost(ctx, post); err != nil {
			return err
		}
		return tx.Forum.SaveReply(ctx, reply)
	})
	if err != nil {
		return nil, s.mapError(err, "回复失败")
	}
	resp := dto.NewReplyResponse(reply)
	return &resp, nil
}

func (s *forumService) ListReplies(ctx context.Context, postID string) ([]dto.ReplyResponse, error) {
	if _, err := s.repo.Forum.GetPost(ctx, postID); err != nil {
		return nil, s.mapError(err, "查询帖子失败")
	}
	replies, err := s.repo.Forum.ListReplies(ctx, postID)
	if err != nil {
		s.logger.Error("查询回复失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.ReplyResponse, 0, len(replies))
	for i := range replies {
		out = append(out, dto.NewReplyResponse(&replies[i]))
	}
	return out, nil
}

func (s *forumService) ToggleLike(ctx context.Context, userID, postID string) (*dto.LikeResponse, error) {
	var resp dto.LikeResponse
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		post, err := tx.Forum.GetPost(ctx, postID)
		if err != nil {
			return err
		}

		liked := false
		kept := make([]string, 0, len(post.LikedBy)+1)
		for _, id := range post.LikedBy {
			if id == userID {
				liked = true
				continue
			}
			kept = append(kept, id)
		}
		if !liked {
			kept = append(kept, userID)
		}
		post.LikedBy = kept
		post.LikeCount = len(kept)

		resp = dto.LikeResponse{Liked: !liked, LikeCount: post.LikeCount}
		return tx.Forum.SavePost(ctx, post)
	})
	if err != nil {
		return nil, s.mapError(err, "点赞失败")
	}
	return &resp, nil
}

// ── 辅助函数 ──

func (s *forumService) authorName(ctx context.Context, userID string) (string, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return "", err
	}
	return user.DisplayName, nil
}

func (s *forumService) mapError(err error, msg string) error {
	switch {
	case repository.IsNotFound(err):
		return ErrPostNotFound
	case errors.Is(err, ErrNoPermission):
		return err
	}
	s.logger.Error(msg, zap.Error(err))
	return err
}

// normalizeTags 小写、去空白、去重
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
