package dto

import "learnhub/internal/model"

// ── 课程模块 DTO ──

// CourseListRequest 课程列表查询参数
type CourseListRequest struct {
	Category string `form:"category" binding:"omitempty,max=40"`
}

// LessonRequest 课时
type LessonRequest struct {
	ID              int    `json:"id"               binding:"required,min=1"`
	Title           string `json:"title"            binding:"required,max=100"`
	VideoURL        string `json:"video_url"        binding:"omitempty,url"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,min=0"`
}

// CreateCourseRequest 创建课程请求
type CreateCourseRequest struct {
	Title       string          `json:"title"       binding:"required,max=100"`
	Description string          `json:"description" binding:"omitempty,max=2000"`
	Category    string          `json:"category"    binding:"omitempty,max=40"`
	Instructor  string          `json:"instructor"  binding:"omitempty,max=60"`
	Lessons     []LessonRequest `json:"lessons"     binding:"omitempty,dive"`
}

// UpdateCourseRequest 更新课程请求
type UpdateCourseRequest struct {
	Title       *string          `json:"title"       binding:"omitempty,max=100"`
	Description *string          `json:"description" binding:"omitempty,max=2000"`
	Category    *string          `json:"category"    binding:"omitempty,max=40"`
	Instructor  *string          `json:"instructor"  binding:"omitempty,max=60"`
	Lessons     *[]LessonRequest `json:"lessons"     binding:"omitempty,dive"`
}

// ToLessons 转为模型课时
func ToLessons(reqs []LessonRequest) []model.Lesson {
	lessons := make([]model.Lesson, 0, len(reqs))
	for _, l := range reqs {
		lessons = append(lessons, model.Lesson{
			ID:              l.ID,
			Title:           l.Title,
			VideoURL:        l.VideoURL,
			DurationMinutes: l.DurationMinutes,
		})
	}
	return lessons
}

// LessonResponse 课时响应
type LessonResponse struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	VideoURL        string `json:"video_url,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// CourseResponse 课程响应
type CourseResponse struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description,omitempty"`
	Category      string           `json:"category,omitempty"`
	Instructor    string           `json:"instructor,omitempty"`
	ThumbnailURL  string           `json:"thumbnail_url,omitempty"`
	Lessons       []LessonResponse `json:"lessons"`
	LessonCount   int              `json:"lesson_count"`
	EnrolledCount int              `json:"enrolled_count"`
}

// NewCourseResponse model.Course → CourseResponse
func NewCourseResponse(c *model.Course) CourseResponse {
	lessons := make([]LessonResponse, 0, len(c.Lessons))
	for _, l := range c.Lessons {
		lessons = append(lessons, LessonResponse{
			ID:              l.ID,
			Title:           l.Title,
			VideoURL:        l.VideoURL,
			DurationMinutes: l.DurationMinutes,
		})
	}
	return CourseResponse{
		ID:            c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Category:      c.Category,
		Instructor:    c.Instructor,
		ThumbnailURL:  c.ThumbnailURL,
		Lessons:       lessons,
		LessonCount:   len(c.Lessons),
		EnrolledCount: c.EnrolledCount,
	}
}
