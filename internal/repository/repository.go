package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"learnhub/pkg/docstore"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	store  docstore.Store
	logger *zap.Logger

	User       UserRepository
	Course     CourseRepository
	Enrollment EnrollmentRepository
	Forum      ForumRepository
	Event      EventRepository
	Chat       ChatRepository
}

// NewRepository 创建 Repository 聚合；logger 为 nil 时不输出日志
func NewRepository(store docstore.Store, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newRepository(store, store, logger)
}

func newRepository(store docstore.Store, tx docstore.Tx, logger *zap.Logger) *Repository {
	return &Repository{
		store:      store,
		logger:     logger,
		User:       &userRepo{store: store, tx: tx},
		Course:     &courseRepo{store: store, tx: tx},
		Enrollment: &enrollmentRepo{store: store, tx: tx, logger: logger},
		Forum:      &forumRepo{store: store, tx: tx},
		Event:      &eventRepo{store: store, tx: tx},
		Chat:       &chatRepo{store: store, tx: tx},
	}
}

// Transaction 在文档存储事务中执行 fn。
// fn 收到的 Repository 按 id 的读写都在事务内；列表查询仍走事务外的存储。
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		return fn(newRepository(r.store, tx, r.logger))
	})
}

// IsNotFound 判断是否为文档不存在
func IsNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}

// ── 通用读写 ──

func getDoc(ctx context.Context, r docstore.Reader, collection, id string, out interface{}) error {
	snap, err := r.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return snap.DataTo(out)
}

func queryDocs[T any](ctx context.Context, store docstore.Store, collection string, filters ...docstore.Filter) ([]T, error) {
	snaps, err := store.Query(ctx, collection, filters...)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](snaps)
}

func decodeAll[T any](snaps []*docstore.Snapshot) ([]T, error) {
	out := make([]T, 0, len(snaps))
	for _, s := range snaps {
		var v T
		if err := s.DataTo(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
