package service

import (
	"go.uber.org/zap"

	"learnhub/config"
	"learnhub/internal/repository"
	"learnhub/pkg/jwt"
	"learnhub/pkg/objectstore"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	Profile    ProfileService
	Course     CourseService
	Enrollment EnrollmentService
	Forum      ForumService
	Event      EventService
	Chat       ChatService
	Export     ExportService
}

// Deps Service 层的外部依赖
type Deps struct {
	Objects   objectstore.Store
	JWT       *jwt.Manager
	Blacklist TokenBlacklist // 可为 nil
	Assistant Assistant      // 可为 nil
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	loc := cfg.App.Location()
	return &Service{
		Auth:       NewAuthService(cfg, repo, deps.JWT, deps.Blacklist, logger),
		Profile:    NewProfileService(repo, deps.Objects, logger),
		Course:     NewCourseService(repo, deps.Objects, logger),
		Enrollment: NewEnrollmentService(repo, loc, logger),
		Forum:      NewForumService(repo, logger),
		Event:      NewEventService(repo, deps.Objects, loc, logger),
		Chat:       NewChatService(repo, deps.Assistant, loc, logger),
		Export:     NewExportService(repo, loc, logger),
	}
}
