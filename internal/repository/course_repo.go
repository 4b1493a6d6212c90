package repository

import (
	"context"

	"learnhub/internal/model"
	"learnhub/pkg/docstore"
)

// CourseRepository 课程数据访问接口
type CourseRepository interface {
	Save(ctx context.Context, course *model.Course) error
	GetByID(ctx context.Context, id string) (*model.Course, error)
	// List category 为空时返回全部课程
	List(ctx context.Context, category string) ([]model.Course, error)
	// AddEnrolledCount 选课人数增减（需在事务内调用）
	AddEnrolledCount(ctx context.Context, id string, delta int) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
}

type courseRepo struct {
	store docstore.Store
	tx    docstore.Tx
}

func (r *courseRepo) Save(ctx context.Context, course *model.Course) error {
	return r.tx.Set(ctx, model.CollectionCourses, course.ID, course)
}

func (r *courseRepo) GetByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	if err := getDoc(ctx, r.tx, model.CollectionCourses, id, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) List(ctx context.Context, category string) ([]model.Course, error) {
	var filters []docstore.Filter
	if category != "" {
		filters = append(filters, docstore.Eq("category", category))
	}
	return queryDocs[model.Course](ctx, r.store, model.CollectionCourses, filters...)
}

func (r *courseRepo) AddEnrolledCount(ctx context.Context, id string, delta int) error {
	course, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	count := course.EnrolledCount + delta
	if count < 0 {
		count = 0
	}
	return r.tx.Update(ctx, model.CollectionCourses, id, map[string]interface{}{
		"enrolledCount": count,
	})
}

func (r *courseRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.tx.Update(ctx, model.CollectionCourses, id, fields)
}
