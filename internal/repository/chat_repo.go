package repository

import (
	"context"
	"sort"

	"learnhub/internal/model"
	"learnhub/pkg/docstore"
)

// ChatRepository 聊天记录数据访问接口
type ChatRepository interface {
	Save(ctx context.Context, msg *model.ChatMessage) error
	// ListByUser 按时间正序
	ListByUser(ctx context.Context, userID string) ([]model.ChatMessage, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

type chatRepo struct {
	store docstore.Store
	tx    docstore.Tx
}

func (r *chatRepo) Save(ctx context.Context, msg *model.ChatMessage) error {
	return r.tx.Set(ctx, model.CollectionChatMessages, msg.ID, msg)
}

func (r *chatRepo) ListByUser(ctx context.Context, userID string) ([]model.ChatMessage, error) {
	msgs, err := queryDocs[model.ChatMessage](ctx, r.store, model.CollectionChatMessages,
		docstore.Eq("userId", userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (r *chatRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	snaps, err := r.store.Query(ctx, model.CollectionChatMessages, docstore.Eq("userId", userID))
	if err != nil {
		return 0, err
	}
	for _, s := range snaps {
		if err := r.tx.Delete(ctx, model.CollectionChatMessages, s.ID); err != nil {
			return 0, err
		}
	}
	return len(snaps), nil
}
