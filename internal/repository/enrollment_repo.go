package repository

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"learnhub/internal/model"
	"learnhub/internal/progress"
	"learnhub/pkg/docstore"
)

// EnrollmentRepository 选课记录数据访问接口
type EnrollmentRepository interface {
	Save(ctx context.Context, e *model.Enrollment) error
	Get(ctx context.Context, userID, courseID string) (*model.Enrollment, error)
	Delete(ctx context.Context, userID, courseID string) error
	ListByUser(ctx context.Context, userID string) ([]model.Enrollment, error)
	ListByCourse(ctx context.Context, courseID string) ([]model.Enrollment, error)
	// Watch 订阅用户选课记录，每次变化推送完整列表
	Watch(ctx context.Context, userID string) (<-chan []model.Enrollment, error)
}

type enrollmentRepo struct {
	store  docstore.Store
	tx     docstore.Tx
	logger *zap.Logger
}

func (r *enrollmentRepo) Save(ctx context.Context, e *model.Enrollment) error {
	if e.WatchedLessonIDs == nil {
		e.WatchedLessonIDs = []int{}
	}
	return r.tx.Set(ctx, model.CollectionEnrollments, e.ID(), e)
}

func (r *enrollmentRepo) Get(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	id := model.EnrollmentID(userID, courseID)
	snap, err := r.tx.Get(ctx, model.CollectionEnrollments, id)
	if err != nil {
		return nil, err
	}
	e, cleanup, err := decodeEnrollment(snap)
	if err != nil {
		return nil, err
	}
	if len(cleanup) > 0 {
		if err := r.tx.Update(ctx, model.CollectionEnrollments, id, cleanup); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (r *enrollmentRepo) Delete(ctx context.Context, userID, courseID string) error {
	return r.tx.Delete(ctx, model.CollectionEnrollments, model.EnrollmentID(userID, courseID))
}

func (r *enrollmentRepo) ListByUser(ctx context.Context, userID string) ([]model.Enrollment, error) {
	snaps, err := r.store.Query(ctx, model.CollectionEnrollments, docstore.Eq("userId", userID))
	if err != nil {
		return nil, err
	}
	return r.decodeAndCleanup(ctx, snaps)
}

func (r *enrollmentRepo) ListByCourse(ctx context.Context, courseID string) ([]model.Enrollment, error) {
	snaps, err := r.store.Query(ctx, model.CollectionEnrollments, docstore.Eq("courseId", courseID))
	if err != nil {
		return nil, err
	}
	return r.decodeAndCleanup(ctx, snaps)
}

func (r *enrollmentRepo) decodeAndCleanup(ctx context.Context, snaps []*docstore.Snapshot) ([]model.Enrollment, error) {
	out := make([]model.Enrollment, 0, len(snaps))
	for _, snap := range snaps {
		e, cleanup, err := decodeEnrollment(snap)
		if err != nil {
			return nil, err
		}
		if len(cleanup) > 0 {
			if err := r.store.Update(ctx, model.CollectionEnrollments, snap.ID, cleanup); err != nil && !IsNotFound(err) {
				return nil, err
			}
		}
		out = append(out, *e)
	}
	return out, nil
}

func (r *enrollmentRepo) Watch(ctx context.Context, userID string) (<-chan []model.Enrollment, error) {
	snaps, err := r.store.Subscribe(ctx, model.CollectionEnrollments, docstore.Eq("userId", userID))
	if err != nil {
		return nil, err
	}

	out := make(chan []model.Enrollment)
	go func() {
		defer close(out)
		for batch := range snaps {
			list := make([]model.Enrollment, 0, len(batch))
			for _, snap := range batch {
				e, _, err := decodeEnrollment(snap)
				if err != nil {
					r.logger.Error("解码选课记录失败，已从推送中跳过",
						zap.String("id", snap.ID), zap.Error(err))
					continue
				}
				list = append(list, *e)
			}
			select {
			case out <- list:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ── 旧字段清理 ──

// 早期客户端写入的字段名 → 当前字段名
var legacyEnrollmentFields = map[string]string{
	"lastAccessed":   "lastAccessedAt",
	"completed":      "isCompleted",
	"watchedLessons": "watchedLessonIds",
}

// decodeEnrollment 解码选课记录，并把旧字段迁移为当前字段。
// 返回的 cleanup 非空时需写回存储：新字段赋值、旧字段删除。
func decodeEnrollment(snap *docstore.Snapshot) (*model.Enrollment, map[string]interface{}, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(snap.Data, &raw); err != nil {
		return nil, nil, err
	}

	var cleanup map[string]interface{}
	for old, current := range legacyEnrollmentFields {
		v, ok := raw[old]
		if !ok {
			continue
		}
		if cleanup == nil {
			cleanup = make(map[string]interface{})
		}
		cleanup[old] = docstore.DeleteField
		delete(raw, old)

		if _, exists := raw[current]; exists {
			continue
		}
		if old == "lastAccessed" {
			v = legacyTimestamp(v)
		}
		raw[current] = v
		cleanup[current] = v
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, err
	}
	var e model.Enrollment
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, nil, err
	}
	if e.WatchedLessonIDs == nil {
		e.WatchedLessonIDs = []int{}
	}
	if fix := normalizeCompletion(&e); len(fix) > 0 {
		if cleanup == nil {
			cleanup = make(map[string]interface{})
		}
		for k, v := range fix {
			cleanup[k] = v
		}
	}
	return &e, cleanup, nil
}

// normalizeCompletion 进度截断到 [0,100]，完成状态以进度为准；返回需写回的字段
func normalizeCompletion(e *model.Enrollment) map[string]interface{} {
	fix := make(map[string]interface{})
	if p := progress.Clamp(e.Progress); p != e.Progress {
		e.Progress = p
		fix["progress"] = p
	}
	if completed := e.Progress == progress.MaxProgress; completed != e.IsCompleted {
		e.IsCompleted = completed
		fix["isCompleted"] = completed
	}
	if !e.IsCompleted && e.CompletedAt != nil {
		e.CompletedAt = nil
		fix["completedAt"] = docstore.DeleteField
	}
	return fix
}

// legacyTimestamp 旧字段可能是毫秒时间戳，统一转为 RFC3339
func legacyTimestamp(v json.RawMessage) json.RawMessage {
	var ms int64
	if err := json.Unmarshal(v, &ms); err != nil {
		return v
	}
	out, err := json.Marshal(time.UnixMilli(ms).UTC())
	if err != nil {
		return v
	}
	return out
}
