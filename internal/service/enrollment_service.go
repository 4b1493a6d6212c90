package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"learnhub/internal/dto"
	"learnhub/internal/model"
	"learnhub/internal/progress"
	"learnhub/internal/repository"
	apperrors "learnhub/pkg/errors"
)

// ── 选课模块业务错误 ──

var (
	ErrEnrollmentNotFound = fmt.Errorf("%w: 尚未选修该课程", apperrors.ErrNotFound)
	ErrLessonNotFound     = fmt.Errorf("%w: 课时不存在", apperrors.ErrNotFound)
)

// 看板最近学习列表长度
const dashboardRecentLimit = 5

// EnrollmentService 选课与学习进度业务接口
type EnrollmentService interface {
	// Enroll 选课；已选过时直接返回原记录，created=false
	Enroll(ctx context.Context, userID, courseID string) (resp *dto.EnrollmentResponse, created bool, err error)
	Unenroll(ctx context.Context, userID, courseID string) error
	Get(ctx context.Context, userID, courseID string) (*dto.EnrollmentResponse, error)
	ListMine(ctx context.Context, userID string) ([]dto.MyCourseResponse, error)
	// UpdateProgress 写入进度与已看课时（进度截断到 [0,100]）
	UpdateProgress(ctx context.Context, userID, courseID string, req *dto.UpdateProgressRequest) (*dto.EnrollmentResponse, error)
	// WatchLesson 标记课时已看，并按已看课时占比重算进度
	WatchLesson(ctx context.Context, userID, courseID string, lessonID int) (*dto.EnrollmentResponse, error)
	Statistics(ctx context.Context, userID string) (*progress.Statistics, error)
	Dashboard(ctx context.Context, userID string) (*dto.DashboardResponse, error)
	// Stream 订阅用户选课记录变化，ctx 取消后 channel 关闭
	Stream(ctx context.Context, userID string) (<-chan []dto.EnrollmentResponse, error)
}

type enrollmentService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewEnrollmentService 创建 EnrollmentService 实例；loc 决定周统计的自然周边界
func NewEnrollmentService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) EnrollmentService {
	if loc == nil {
		loc = time.UTC
	}
	return &enrollmentService{repo: repo, loc: loc, logger: logger, now: time.Now}
}

func (s *enrollmentService) Enroll(ctx context.Context, userID, courseID string) (*dto.EnrollmentResponse, bool, error) {
	var (
		result  *model.Enrollment
		created bool
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Course.GetByID(ctx, courseID); err != nil {
			if repository.IsNotFound(err) {
				return ErrCourseNotFound
			}
			return err
		}

		existing, err := tx.Enrollment.Get(ctx, userID, courseID)
		if err == nil {
			result = existing
			return nil
		}
		if !repository.IsNotFound(err) {
			return err
		}

		now := s.now()
		e := &model.Enrollment{
			UserID:           userID,
			CourseID:         courseID,
			WatchedLessonIDs: []int{},
			EnrolledAt:       now,
			LastAccessedAt:   now,
		}
		if err := tx.Enrollment.Save(ctx, e); err != nil {
			return err
		}
		if err := tx.Course.AddEnrolledCount(ctx, courseID, 1); err != nil {
			return err
		}
		result, created = e, true
		return nil
	})
	if err != nil {
		return nil, false, s.mapError(err, "选课失败")
	}

	if created {
		s.logger.Info("选课", zap.String("user_id", userID), zap.String("course_id", courseID))
	}
	resp := dto.NewEnrollmentResponse(result)
	return &resp, created, nil
}

func (s *enrollmentService) Unenroll(ctx context.Context, userID, courseID string) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Enrollment.Get(ctx, userID, courseID); err != nil {
			if repository.IsNotFound(err) {
				return ErrEnrollmentNotFound
			}
			return err
		}
		if err := tx.Enrollment.Delete(ctx, userID, courseID); err != nil {
			return err
		}
		err := tx.Course.AddEnrolledCount(ctx, courseID, -1)
		if repository.IsNotFound(err) {
			return nil // 课程已下架，只删除选课记录
		}
		return err
	})
	if err != nil {
		return s.mapError(err, "退课失败")
	}
	return nil
}

func (s *enrollmentService) Get(ctx context.Context, userID, courseID string) (*dto.EnrollmentResponse, error) {
	e, err := s.repo.Enrollment.Get(ctx, userID, courseID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrEnrollmentNotFound
		}
		s.logger.Error("查询选课记录失败", zap.Error(err))
		return nil, err
	}
	resp := dto.NewEnrollmentResponse(e)
	return &resp, nil
}

func (s *enrollmentService) ListMine(ctx context.Context, userID string) ([]dto.MyCourseResponse, error) {
	list, err := s.repo.Enrollment.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询选课列表失败", zap.Error(err))
		return nil, err
	}
	sortByLastAccess(list)

	out := make([]dto.MyCourseResponse, 0, len(list))
	for i := range list {
		item := dto.MyCourseResponse{EnrollmentResponse: dto.NewEnrollmentResponse(&list[i])}
		course, err := s.repo.Course.GetByID(ctx, list[i].CourseID)
		switch {
		case err == nil:
			c := dto.NewCourseResponse(course)
			item.Course = &c
		case !repository.IsNotFound(err):
			s.logger.Error("查询课程失败", zap.String("course_id", list[i].CourseID), zap.Error(err))
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *enrollmentService) UpdateProgress(ctx context.Context, userID, courseID string, req *dto.UpdateProgressRequest) (*dto.EnrollmentResponse, error) {
	var updated *model.Enrollment
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		e, err := tx.Enrollment.Get(ctx, userID, courseID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrEnrollmentNotFound
			}
			return err
		}

		watched := req.WatchedLessonIDs
		if watched == nil {
			watched = e.WatchedLessonIDs
		}
		progress.Apply(e, *req.Progress, watched, s.now())
		updated = e
		return tx.Enrollment.Save(ctx, e)
	})
	if err != nil {
		return nil, s.mapError(err, "更新学习进度失败")
	}
	resp := dto.NewEnrollmentResponse(updated)
	return &resp, nil
}

func (s *enrollmentService) WatchLesson(ctx context.Context, userID, courseID string, lessonID int) (*dto.EnrollmentResponse, error) {
	var updated *model.Enrollment
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		course, err := tx.Course.GetByID(ctx, courseID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrCourseNotFound
			}
			return err
		}
		if !course.HasLesson(lessonID) {
			return ErrLessonNotFound
		}

		e, err := tx.Enrollment.Get(ctx, userID, courseID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrEnrollmentNotFound
			}
			return err
		}

		watched := progress.NormalizeLessonIDs(append(e.WatchedLessonIDs, lessonID))
		p := progress.FromLessons(countCourseLessons(course, watched), len(course.Lessons))
		progress.Apply(e, p, watched, s.now())
		updated = e
		return tx.Enrollment.Save(ctx, e)
	})
	if err != nil {
		return nil, s.mapError(err, "标记课时失败")
	}
	resp := dto.NewEnrollmentResponse(updated)
	return &resp, nil
}

func (s *enrollmentService) Statistics(ctx context.Context, userID string) (*progress.Statistics, error) {
	list, err := s.repo.Enrollment.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询选课列表失败", zap.Error(err))
		return nil, err
	}
	stats := progress.ComputeStatistics(list, s.now())
	return &stats, nil
}

func (s *enrollmentService) Dashboard(ctx context.Context, userID string) (*dto.DashboardResponse, error) {
	list, err := s.repo.Enrollment.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询选课列表失败", zap.Error(err))
		return nil, err
	}
	now := s.now()

	sortByLastAccess(list)
	recent := list
	if len(recent) > dashboardRecentLimit {
		recent = recent[:dashboardRecentLimit]
	}

	return &dto.DashboardResponse{
		Statistics: progress.ComputeStatistics(list, now),
		Weekly:     progress.Weekly(list, now, s.loc),
		Recent:     dto.NewEnrollmentList(recent),
	}, nil
}

func (s *enrollmentService) Stream(ctx context.Context, userID string) (<-chan []dto.EnrollmentResponse, error) {
	updates, err := s.repo.Enrollment.Watch(ctx, userID)
	if err != nil {
		s.logger.Error("订阅选课记录失败", zap.Error(err))
		return nil, err
	}

	out := make(chan []dto.EnrollmentResponse)
	go func() {
		defer close(out)
		for list := range updates {
			sortByLastAccess(list)
			select {
			case out <- dto.NewEnrollmentList(list):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ── 辅助函数 ──

func (s *enrollmentService) mapError(err error, msg string) error {
	switch {
	case errors.Is(err, ErrCourseNotFound),
		errors.Is(err, ErrEnrollmentNotFound),
		errors.Is(err, ErrLessonNotFound):
		return err
	}
	s.logger.Error(msg, zap.Error(err))
	return err
}

// countCourseLessons 统计已看课时中仍属于课程的数量（课程可能删过课时）
func countCourseLessons(course *model.Course, watched []int) int {
	n := 0
	for _, id := range watched {
		if course.HasLesson(id) {
			n++
		}
	}
	return n
}

func sortByLastAccess(list []model.Enrollment) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].LastAccessedAt.After(list[j].LastAccessedAt)
	})
}
