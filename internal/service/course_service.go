package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"learnhub/internal/dto"
	"learnhub/internal/model"
	"learnhub/internal/repository"
	apperrors "learnhub/pkg/errors"
	"learnhub/pkg/objectstore"
)

// ── 课程模块业务错误 ──

var (
	ErrCourseNotFound  = fmt.Errorf("%w: 课程不存在", apperrors.ErrNotFound)
	ErrDuplicateLesson = errors.New("课时 ID 重复")
	ErrCourseTitle     = errors.New("课程标题不能为空")
)

// CourseService 课程业务接口
type CourseService interface {
	List(ctx context.Context, category string) ([]dto.CourseResponse, error)
	Get(ctx context.Context, id string) (*dto.CourseResponse, error)
	Create(ctx context.Context, req *dto.CreateCourseRequest) (*dto.CourseResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateCourseRequest) (*dto.CourseResponse, error)
	UploadThumbnail(ctx context.Context, id string, r io.Reader, contentType string) (*dto.UploadResponse, error)
	// ImportLessons 从 Excel 导入课时（按课时 ID 覆盖同名课时）
	ImportLessons(ctx context.Context, id string, r io.Reader) (*dto.CourseResponse, error)
}

type courseService struct {
	repo    *repository.Repository
	objects objectstore.Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewCourseService 创建 CourseService 实例
func NewCourseService(repo *repository.Repository, objects objectstore.Store, logger *zap.Logger) CourseService {
	return &courseService{repo: repo, objects: objects, logger: logger, now: time.Now}
}

func (s *courseService) List(ctx context.Context, category string) ([]dto.CourseResponse, error) {
	courses, err := s.repo.Course.List(ctx, strings.TrimSpace(category))
	if err != nil {
		s.logger.Error("查询课程列表失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.CourseResponse, 0, len(courses))
	for i := range courses {
		out = append(out, dto.NewCourseResponse(&courses[i]))
	}
	return out, nil
}

func (s *courseService) Get(ctx context.Context, id string) (*dto.CourseResponse, error) {
	course, err := s.getCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewCourseResponse(course)
	return &resp, nil
}

func (s *courseService) Create(ctx context.Context, req *dto.CreateCourseRequest) (*dto.CourseResponse, error) {
	title := collapseSpaces(req.Title)
	if title == "" {
		return nil, ErrCourseTitle
	}
	lessons := dto.ToLessons(req.Lessons)
	if err := checkLessons(lessons); err != nil {
		return nil, err
	}

	course := &model.Course{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Instructor:  strings.TrimSpace(req.Instructor),
		Lessons:     lessons,
	}
	course.Touch(s.now())

	if err := s.repo.Course.Save(ctx, course); err != nil {
		s.logger.Error("创建课程失败", zap.Error(err))
		return nil, err
	}
	resp := dto.NewCourseResponse(course)
	return &resp, nil
}

func (s *courseService) Update(ctx context.Context, id string, req *dto.UpdateCourseRequest) (*dto.CourseResponse, error) {
	var updated *model.Course
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		course, err := tx.Course.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.Title != nil {
			title := collapseSpaces(*req.Title)
			if title == "" {
				return ErrCourseTitle
			}
			course.Title = title
		}
		if req.Description != nil {
			course.Description = strings.TrimSpace(*req.Description)
		}
		if req.Category != nil {
			course.Category = strings.TrimSpace(*req.Category)
		}
		if req.Instructor != nil {
			course.Instructor = strings.TrimSpace(*req.Instructor)
		}
		if req.Lessons != nil {
			lessons := dto.ToLessons(*req.Lessons)
			if err := checkLessons(lessons); err != nil {
				return err
			}
			course.Lessons = lessons
		}
		course.Touch(s.now())
		updated = course
		return tx.Course.Save(ctx, course)
	})
	if err != nil {
		return nil, s.mapCourseError(err, "更新课程失败")
	}
	resp := dto.NewCourseResponse(updated)
	return &resp, nil
}

func (s *courseService) UploadThumbnail(ctx context.Context, id string, r io.Reader, contentType string) (*dto.UploadResponse, error) {
	ext, ok := objectstore.ImageExtension(contentType)
	if !ok {
		return nil, ErrUnsupportedImage
	}
	if _, err := s.getCourse(ctx, id); err != nil {
		return nil, err
	}

	key := objectstore.Key("courses", id, "thumbnail-"+uuid.NewString()[:8]+ext)
	url, err := s.objects.Upload(ctx, key, r, contentType)
	if err != nil {
		s.logger.Error("上传课程封面失败", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	if err := s.repo.Course.UpdateFields(ctx, id, map[string]interface{}{
		"thumbnailUrl": url,
		"updatedAt":    s.now(),
	}); err != nil {
		return nil, s.mapCourseError(err, "保存课程封面失败")
	}
	return &dto.UploadResponse{URL: url}, nil
}

// ────────────────────── ImportLessons ──────────────────────

const maxImportLessons = 500

var (
	ErrImportNoData      = errors.New("Excel文件无数据行（第一行为表头）")
	ErrImportTooManyRows = fmt.Errorf("数据行数超过上限 %d 行", maxImportLessons)
	ErrImportBadHeader   = errors.New("Excel表头缺少必要列（课时ID/标题）")
	ErrImportBadFile     = errors.New("无法解析Excel文件")
)

// ImportRowError 导入时某一行的错误
type ImportRowError struct {
	Row    int
	Reason string
}

func (e *ImportRowError) Error() string {
	return fmt.Sprintf("第 %d 行: %s", e.Row, e.Reason)
}

func (s *courseService) ImportLessons(ctx context.Context, id string, r io.Reader) (*dto.CourseResponse, error) {
	imported, err := parseLessonSheet(r)
	if err != nil {
		return nil, err
	}

	var updated *model.Course
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		course, err := tx.Course.GetByID(ctx, id)
		if err != nil {
			return err
		}
		course.Lessons = mergeLessons(course.Lessons, imported)
		course.Touch(s.now())
		updated = course
		return tx.Course.Save(ctx, course)
	})
	if err != nil {
		return nil, s.mapCourseError(err, "导入课时失败")
	}

	s.logger.Info("导入课时", zap.String("course_id", id), zap.Int("rows", len(imported)))
	resp := dto.NewCourseResponse(updated)
	return &resp, nil
}

// parseLessonSheet 解析第一个工作表：课时ID | 标题 | 视频地址 | 时长(分钟)
func parseLessonSheet(r io.Reader) ([]model.Lesson, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportBadFile, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportBadFile, err)
	}
	if len(rows) < 2 {
		return nil, ErrImportNoData
	}

	col := lessonHeaderIndex(rows[0])
	if col["id"] < 0 || col["title"] < 0 {
		return nil, ErrImportBadHeader
	}

	cellAt := func(row []string, key string) string {
		if idx := col[key]; idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var lessons []model.Lesson
	seen := make(map[int]bool)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		rawID, title := cellAt(row, "id"), cellAt(row, "title")
		if rawID == "" && title == "" {
			continue
		}

		lessonID, err := strconv.Atoi(rawID)
		if err != nil || lessonID <= 0 {
			return nil, &ImportRowError{Row: i + 1, Reason: "课时ID必须为正整数"}
		}
		if title == "" {
			return nil, &ImportRowError{Row: i + 1, Reason: "标题不能为空"}
		}
		if seen[lessonID] {
			return nil, &ImportRowError{Row: i + 1, Reason: ErrDuplicateLesson.Error()}
		}
		seen[lessonID] = true

		minutes := 0
		if raw := cellAt(row, "duration"); raw != "" {
			if minutes, err = strconv.Atoi(raw); err != nil || minutes < 0 {
				return nil, &ImportRowError{Row: i + 1, Reason: "时长必须为非负整数"}
			}
		}

		lessons = append(lessons, model.Lesson{
			ID:              lessonID,
			Title:           title,
			VideoURL:        cellAt(row, "video"),
			DurationMinutes: minutes,
		})
	}

	if len(lessons) == 0 {
		return nil, ErrImportNoData
	}
	if len(lessons) > maxImportLessons {
		return nil, ErrImportTooManyRows
	}
	return lessons, nil
}

// lessonHeaderIndex 解析表头，支持中英文列名与任意列序
func lessonHeaderIndex(header []string) map[string]int {
	aliases := map[string][]string{
		"id":       {"课时id", "id", "lesson id"},
		"title":    {"标题", "title"},
		"video":    {"视频地址", "video", "video url"},
		"duration": {"时长", "时长(分钟)", "duration", "minutes"},
	}
	index := map[string]int{"id": -1, "title": -1, "video": -1, "duration": -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for key, names := range aliases {
			for _, alias := range names {
				if name == alias && index[key] < 0 {
					index[key] = i
				}
			}
		}
	}
	return index
}

// mergeLessons 按 ID 覆盖已有课时，新课时追加在末尾
func mergeLessons(existing, imported []model.Lesson) []model.Lesson {
	pos := make(map[int]int, len(existing))
	out := append([]model.Lesson(nil), existing...)
	for i, l := range out {
		pos[l.ID] = i
	}
	for _, l := range imported {
		if i, ok := pos[l.ID]; ok {
			out[i] = l
			continue
		}
		pos[l.ID] = len(out)
		out = append(out, l)
	}
	return out
}

// ── 辅助函数 ──

func (s *courseService) getCourse(ctx context.Context, id string) (*model.Course, error) {
	course, err := s.repo.Course.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapCourseError(err, "查询课程失败")
	}
	return course, nil
}

func (s *courseService) mapCourseError(err error, msg string) error {
	if repository.IsNotFound(err) {
		return ErrCourseNotFound
	}
	if errors.Is(err, ErrCourseTitle) || errors.Is(err, ErrDuplicateLesson) {
		return err
	}
	s.logger.Error(msg, zap.Error(err))
	return err
}

func checkLessons(lessons []model.Lesson) error {
	seen := make(map[int]bool, len(lessons))
	for _, l := range lessons {
		if seen[l.ID] {
			return ErrDuplicateLesson
		}
		seen[l.ID] = true
	}
	return nil
}
