package dto

import (
	"learnhub/internal/model"
	"learnhub/internal/progress"
)

// ── 选课模块 DTO ──

// UpdateProgressRequest 更新学习进度请求；越界值会被截断到 [0,100]
type UpdateProgressRequest struct {
	Progress         *int  `json:"progress"           binding:"required"`
	WatchedLessonIDs []int `json:"watched_lesson_ids"`
}

// WatchLessonRequest 标记课时已观看
type WatchLessonRequest struct {
	LessonID int `json:"lesson_id" binding:"required,min=1"`
}

// EnrollmentResponse 选课记录响应
type EnrollmentResponse struct {
	UserID           string `json:"user_id"`
	CourseID         string `json:"course_id"`
	Progress         int    `json:"progress"`
	IsCompleted      bool   `json:"is_completed"`
	WatchedLessonIDs []int  `json:"watched_lesson_ids"`
	EnrolledAt       string `json:"enrolled_at"`
	LastAccessedAt   string `json:"last_accessed_at"`
	CompletedAt      string `json:"completed_at,omitempty"`
}

// NewEnrollmentResponse model.Enrollment → EnrollmentResponse
func NewEnrollmentResponse(e *model.Enrollment) EnrollmentResponse {
	watched := e.WatchedLessonIDs
	if watched == nil {
		watched = []int{}
	}
	return EnrollmentResponse{
		UserID:           e.UserID,
		CourseID:         e.CourseID,
		Progress:         e.Progress,
		IsCompleted:      e.IsCompleted,
		WatchedLessonIDs: watched,
		EnrolledAt:       formatTime(e.EnrolledAt),
		LastAccessedAt:   formatTime(e.LastAccessedAt),
		CompletedAt:      formatTimePtr(e.CompletedAt),
	}
}

// NewEnrollmentList 批量转换
func NewEnrollmentList(list []model.Enrollment) []EnrollmentResponse {
	out := make([]EnrollmentResponse, 0, len(list))
	for i := range list {
		out = append(out, NewEnrollmentResponse(&list[i]))
	}
	return out
}

// MyCourseResponse 我的课程：选课记录附带课程信息
type MyCourseResponse struct {
	EnrollmentResponse
	Course *CourseResponse `json:"course,omitempty"`
}

// DashboardResponse 学习看板
type DashboardResponse struct {
	Statistics progress.Statistics        `json:"statistics"`
	Weekly     []progress.WeeklyStudyData `json:"weekly"`
	Recent     []EnrollmentResponse       `json:"recent"`
}
