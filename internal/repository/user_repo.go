package repository

import (
	"context"
	"strings"

	"learnhub/internal/model"
	"learnhub/pkg/docstore"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	// UpdateFields 合并更新部分字段
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
}

// userRepo UserRepository 的文档存储实现
type userRepo struct {
	store docstore.Store
	tx    docstore.Tx
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	user.Email = NormalizeEmail(user.Email)
	return r.tx.Set(ctx, model.CollectionUsers, user.ID, user)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := getDoc(ctx, r.tx, model.CollectionUsers, id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	users, err := queryDocs[model.User](ctx, r.store, model.CollectionUsers,
		docstore.Eq("email", NormalizeEmail(email)))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, docstore.ErrNotFound
	}
	return &users[0], nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.tx.Set(ctx, model.CollectionUsers, user.ID, user)
}

func (r *userRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.tx.Update(ctx, model.CollectionUsers, id, fields)
}

// NormalizeEmail 邮箱统一小写去空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
