package repository

import (
	"context"
	"sort"

	"learnhub/internal/model"
	"learnhub/pkg/docstore"
)

// ForumRepository 论坛数据访问接口
type ForumRepository interface {
	SavePost(ctx context.Context, post *model.ForumPost) error
	GetPost(ctx context.Context, id string) (*model.ForumPost, error)
	DeletePost(ctx context.Context, id string) error
	// ListPosts 按创建时间倒序
	ListPosts(ctx context.Context) ([]model.ForumPost, error)

	SaveReply(ctx context.Context, reply *model.ForumReply) error
	// ListReplies 按创建时间正序
	ListReplies(ctx context.Context, postID string) ([]model.ForumReply, error)
	DeleteReplies(ctx context.Context, postID string) error
}

type forumRepo struct {
	store docstore.Store
	tx    docstore.Tx
}

func (r *forumRepo) SavePost(ctx context.Context, post *model.ForumPost) error {
	if post.LikedBy == nil {
		post.LikedBy = []string{}
	}
	return r.tx.Set(ctx, model.CollectionForumPosts, post.ID, post)
}

func (r *forumRepo) GetPost(ctx context.Context, id string) (*model.ForumPost, error) {
	var post model.ForumPost
	if err := getDoc(ctx, r.tx, model.CollectionForumPosts, id, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *forumRepo) DeletePost(ctx context.Context, id string) error {
	return r.tx.Delete(ctx, model.CollectionForumPosts, id)
}

func (r *forumRepo) ListPosts(ctx context.Context) ([]model.ForumPost, error) {
	posts, err := queryDocs[model.ForumPost](ctx, r.store, model.CollectionForumPosts)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

func (r *forumRepo) SaveReply(ctx context.Context, reply *model.ForumReply) error {
	return r.tx.Set(ctx, model.CollectionForumReplies, reply.ID, reply)
}

func (r *forumRepo) ListReplies(ctx context.Context, postID string) ([]model.ForumReply, error) {
	replies, err := queryDocs[model.ForumReply](ctx, r.store, model.CollectionForumReplies,
		docstore.Eq("postId", postID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(replies, func(i, j int) bool {
		return replies[i].CreatedAt.Before(replies[j].CreatedAt)
	})
	return replies, nil
}

func (r *forumRepo) DeleteReplies(ctx context.Context, postID string) error {
	snaps, err := r.store.Query(ctx, model.CollectionForumReplies, docstore.Eq("postId", postID))
	if err != nil {
		return err
	}
	for _, s := range snaps {
		if err := r.tx.Delete(ctx, model.CollectionForumReplies, s.ID); err != nil {
			return err
		}
	}
	return nil
}
