package handler

import (
	"learnhub/config"
	"learnhub/internal/service"
	"learnhub/pkg/objectstore"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Profile    *ProfileHandler
	Course     *CourseHandler
	Enrollment *EnrollmentHandler
	Forum      *ForumHandler
	Event      *EventHandler
	Chat       *ChatHandler
	Export     *ExportHandler
	Files      *FileHandler
}

// NewHandler 创建 Handler 聚合；files 为 nil 时不提供本地文件访问
func NewHandler(cfg *config.Config, svc *service.Service, files ObjectReader) *Handler {
	maxUpload := cfg.Storage.MaxUploadBytes
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		Profile:    NewProfileHandler(svc.Profile, maxUpload),
		Course:     NewCourseHandler(svc.Course, maxUpload),
		Enrollment: NewEnrollmentHandler(svc.Enrollment),
		Forum:      NewForumHandler(svc.Forum),
		Event:      NewEventHandler(svc.Event, maxUpload),
		Chat:       NewChatHandler(svc.Chat),
		Export:     NewExportHandler(svc.Export),
		Files:      NewFileHandler(files),
	}
}

// 确保内存对象存储可作为本地文件源
var _ ObjectReader = (*objectstore.MemoryStore)(nil)
