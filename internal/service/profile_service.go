package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"learnhub/internal/dto"
	"learnhub/internal/repository"
	"learnhub/pkg/objectstore"
)

var (
	ErrDisplayNameEmpty = errors.New("昵称不能为空")
	ErrUnsupportedImage = errors.New("仅支持 png / jpeg / gif / webp 图片")
)

// ProfileService 个人资料业务接口
type ProfileService interface {
	Get(ctx context.Context, userID string) (*dto.UserResponse, error)
	Update(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	UploadAvatar(ctx context.Context, userID string, r io.Reader, contentType string) (*dto.UploadResponse, error)
}

type profileService struct {
	repo    *repository.Repository
	objects objectstore.Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewProfileService 创建 ProfileService 实例
func NewProfileService(repo *repository.Repository, objects objectstore.Store, logger *zap.Logger) ProfileService {
	return &profileService{repo: repo, objects: objects, logger: logger, now: time.Now}
}

func (s *profileService) Get(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (s *profileService) Update(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	fields := map[string]interface{}{"updatedAt": s.now()}
	if req.DisplayName != nil {
		name := collapseSpaces(*req.DisplayName)
		if name == "" {
			return nil, ErrDisplayNameEmpty
		}
		fields["displayName"] = name
	}
	if req.Bio != nil {
		fields["bio"] = strings.TrimSpace(*req.Bio)
	}

	if err := s.repo.User.UpdateFields(ctx, userID, fields); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("更新个人资料失败", zap.Error(err))
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *profileService) UploadAvatar(ctx context.Context, userID string, r io.Reader, contentType string) (*dto.UploadResponse, error) {
	ext, ok := objectstore.ImageExtension(contentType)
	if !ok {
		return nil, ErrUnsupportedImage
	}
	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	key := objectstore.Key("avatars", userID, uuid.NewString()+ext)
	url, err := s.objects.Upload(ctx, key, r, contentType)
	if err != nil {
		s.logger.Error("上传头像失败", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	if err := s.repo.User.UpdateFields(ctx, userID, map[string]interface{}{
		"avatarUrl": url,
		"updatedAt": s.now(),
	}); err != nil {
		s.logger.Error("保存头像地址失败", zap.Error(err))
		return nil, err
	}
	return &dto.UploadResponse{URL: url}, nil
}

// collapseSpaces 去掉首尾空白并把连续空白折叠为一个空格
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
