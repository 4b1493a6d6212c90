package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"learnhub/internal/model"
	"learnhub/pkg/docstore"
)

func newTestRepo() (*Repository, *docstore.MemoryStore) {
	store := docstore.NewMemoryStore(nil, nil)
	return NewRepository(store, nil), store
}

// ── User ──

func TestUserRepo_GetByEmail_Normalized(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	if err := repo.User.Create(ctx, &model.User{ID: "u1", Email: "  Alice@Example.COM ", DisplayName: "Alice"}); err != nil {
		t.Fatalf("Create 失败: %v", err)
	}

	u, err := repo.User.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail 失败: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("期望 u1，实际 %s", u.ID)
	}

	if _, err := repo.User.GetByEmail(ctx, "bob@example.com"); !IsNotFound(err) {
		t.Errorf("期望 not found，实际: %v", err)
	}
}

// ── Enrollment ──

func TestEnrollmentRepo_SaveGetList(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for _, c := range []string{"c1", "c2"} {
		e := &model.Enrollment{UserID: "u1", CourseID: c, EnrolledAt: now, LastAccessedAt: now}
		if err := repo.Enrollment.Save(ctx, e); err != nil {
			t.Fatalf("Save 失败: %v", err)
		}
	}
	_ = repo.Enrollment.Save(ctx, &model.Enrollment{UserID: "u2", CourseID: "c1"})

	got, err := repo.Enrollment.Get(ctx, "u1", "c2")
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if got.CourseID != "c2" || got.WatchedLessonIDs == nil {
		t.Errorf("记录不符: %+v", got)
	}

	list, err := repo.Enrollment.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser 失败: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("期望 2 条，实际 %d", len(list))
	}

	byCourse, _ := repo.Enrollment.ListByCourse(ctx, "c1")
	if len(byCourse) != 2 {
		t.Errorf("c1 期望 2 条，实际 %d", len(byCourse))
	}

	if _, err := repo.Enrollment.Get(ctx, "u1", "missing"); !IsNotFound(err) {
		t.Errorf("期望 not found，实际: %v", err)
	}
}

func TestEnrollmentRepo_LegacyFieldsCleanedUp(t *testing.T) {
	repo, store := newTestRepo()
	ctx := context.Background()

	accessed := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	legacy := json.RawMessage(`{
		"userId": "u1",
		"courseId": "c1",
		"progress": 100,
		"completed": true,
		"watchedLessons": [1, 2],
		"lastAccessed": ` + jsonNumber(accessed.UnixMilli()) + `
	}`)
	if err := store.Set(ctx, model.CollectionEnrollments, "u1_c1", legacy); err != nil {
		t.Fatalf("写入旧文档失败: %v", err)
	}

	e, err := repo.Enrollment.Get(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if !e.IsCompleted || len(e.WatchedLessonIDs) != 2 || !e.LastAccessedAt.Equal(accessed) {
		t.Errorf("旧字段未正确迁移: %+v", e)
	}

	snap, _ := store.Get(ctx, model.CollectionEnrollments, "u1_c1")
	fields, _ := snap.Fields()
	for _, old := range []string{"completed", "watchedLessons", "lastAccessed"} {
		if _, ok := fields[old]; ok {
			t.Errorf("旧字段 %s 应已删除", old)
		}
	}
	for _, cur := range []string{"isCompleted", "watchedLessonIds", "lastAccessedAt"} {
		if _, ok := fields[cur]; !ok {
			t.Errorf("新字段 %s 应已写回", cur)
		}
	}
}

func TestEnrollmentRepo_LegacyFieldDoesNotOverrideCurrent(t *testing.T) {
	repo, store := newTestRepo()
	ctx := context.Background()

	doc := json.RawMessage(`{"userId":"u1","courseId":"c1","progress":40,"isCompleted":false,"completed":true}`)
	_ = store.Set(ctx, model.CollectionEnrollments, "u1_c1", doc)

	list, err := repo.Enrollment.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser 失败: %v", err)
	}
	if len(list) != 1 || list[0].IsCompleted {
		t.Errorf("已有新字段时应以新字段为准: %+v", list)
	}
}

func TestEnrollmentRepo_CompletionFollowsProgress(t *testing.T) {
	repo, store := newTestRepo()
	ctx := context.Background()

	docs := map[string]string{
		// 旧字段标记完成但进度未满
		"u1_c1": `{"userId":"u1","courseId":"c1","progress":80,"completed":true}`,
		// 进度越界
		"u1_c2": `{"userId":"u1","courseId":"c2","progress":250,"isCompleted":false}`,
		// 未完成却带完成时间
		"u1_c3": `{"userId":"u1","courseId":"c3","progress":-10,"isCompleted":true,"completedAt":"2026-10-01T08:00:00Z"}`,
	}
	for id, doc := range docs {
		if err := store.Set(ctx, model.CollectionEnrollments, id, json.RawMessage(doc)); err != nil {
			t.Fatalf("写入文档失败: %v", err)
		}
	}

	cases := []struct {
		courseID      string
		wantProgress  int
		wantCompleted bool
	}{
		{"c1", 80, false},
		{"c2", 100, true},
		{"c3", 0, false},
	}
	for _, tc := range cases {
		e, err := repo.Enrollment.Get(ctx, "u1", tc.courseID)
		if err != nil {
			t.Fatalf("Get %s 失败: %v", tc.courseID, err)
		}
		if e.Progress != tc.wantProgress || e.IsCompleted != tc.wantCompleted {
			t.Errorf("%s: 期望 progress=%d completed=%v，实际 %+v", tc.courseID, tc.wantProgress, tc.wantCompleted, e)
		}
		if !e.IsCompleted && e.CompletedAt != nil {
			t.Errorf("%s: 未完成时不应有 completedAt", tc.courseID)
		}

		// 修正后的值已写回存储
		snap, _ := store.Get(ctx, model.CollectionEnrollments, "u1_"+tc.courseID)
		var stored model.Enrollment
		_ = snap.DataTo(&stored)
		if stored.Progress != tc.wantProgress || stored.IsCompleted != tc.wantCompleted || (!stored.IsCompleted && stored.CompletedAt != nil) {
			t.Errorf("%s: 存储未写回修正值: %+v", tc.courseID, stored)
		}
	}

	list, err := repo.Enrollment.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser 失败: %v", err)
	}
	completed := 0
	for _, e := range list {
		if e.Progress < 0 || e.Progress > 100 {
			t.Errorf("进度越界: %+v", e)
		}
		if e.IsCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Errorf("期望 1 门已完成，实际 %d", completed)
	}
}

func TestEnrollmentRepo_WatchLogsUndecodable(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	store := docstore.NewMemoryStore(nil, nil)
	repo := NewRepository(store, zap.New(core))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = store.Set(ctx, model.CollectionEnrollments, "u1_ok", json.RawMessage(`{"userId":"u1","courseId":"ok","progress":20}`))
	_ = store.Set(ctx, model.CollectionEnrollments, "u1_bad", json.RawMessage(`{"userId":"u1","courseId":"bad","progress":"abc"}`))

	ch, err := repo.Enrollment.Watch(ctx, "u1")
	if err != nil {
		t.Fatalf("Watch 失败: %v", err)
	}

	list := recv(t, ch)
	if len(list) != 1 || list[0].CourseID != "ok" {
		t.Errorf("应只推送可解码的记录: %+v", list)
	}

	entries := logs.FilterField(zap.String("id", "u1_bad")).All()
	if len(entries) != 1 {
		t.Errorf("解码失败应记录 1 条错误日志，实际 %d", len(entries))
	}
}

func TestEnrollmentRepo_Watch(t *testing.T) {
	repo, _ := newTestRepo()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := repo.Enrollment.Watch(ctx, "u1")
	if err != nil {
		t.Fatalf("Watch 失败: %v", err)
	}

	first := recv(t, ch)
	if len(first) != 0 {
		t.Fatalf("初始应为空，实际 %d", len(first))
	}

	_ = repo.Enrollment.Save(context.Background(), &model.Enrollment{UserID: "u1", CourseID: "c1", Progress: 10})
	_ = repo.Enrollment.Save(context.Background(), &model.Enrollment{UserID: "u2", CourseID: "c1"})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case list := <-ch:
			if len(list) == 1 && list[0].Progress == 10 {
				return
			}
		case <-deadline:
			t.Fatal("未收到变更推送")
		}
	}
}

// ── Transaction ──

func TestRepository_TransactionRollback(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()
	_ = repo.Course.Save(ctx, &model.Course{ID: "c1", Title: "Go"})

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx *Repository) error {
		if err := tx.Course.AddEnrolledCount(ctx, "c1", 1); err != nil {
			return err
		}
		if err := tx.Enrollment.Save(ctx, &model.Enrollment{UserID: "u1", CourseID: "c1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("期望返回 fn 的错误，实际: %v", err)
	}

	c, _ := repo.Course.GetByID(ctx, "c1")
	if c.EnrolledCount != 0 {
		t.Errorf("回滚后 enrolledCount 应为 0，实际 %d", c.EnrolledCount)
	}
	if _, err := repo.Enrollment.Get(ctx, "u1", "c1"); !IsNotFound(err) {
		t.Errorf("回滚后选课记录不应存在，实际: %v", err)
	}
}

func TestCourseRepo_AddEnrolledCountNeverNegative(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()
	_ = repo.Course.Save(ctx, &model.Course{ID: "c1"})

	if err := repo.Course.AddEnrolledCount(ctx, "c1", -1); err != nil {
		t.Fatalf("AddEnrolledCount 失败: %v", err)
	}
	c, _ := repo.Course.GetByID(ctx, "c1")
	if c.EnrolledCount != 0 {
		t.Errorf("计数不应为负，实际 %d", c.EnrolledCount)
	}
}

func TestCourseRepo_ListByCategory(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()
	_ = repo.Course.Save(ctx, &model.Course{ID: "c1", Category: "cs"})
	_ = repo.Course.Save(ctx, &model.Course{ID: "c2", Category: "math"})

	all, _ := repo.Course.List(ctx, "")
	cs, _ := repo.Course.List(ctx, "cs")
	if len(all) != 2 || len(cs) != 1 || cs[0].ID != "c1" {
		t.Errorf("分类过滤不符: all=%d cs=%v", len(all), cs)
	}
}

// ── Forum / Chat ──

func TestForumRepo_Ordering(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	_ = repo.Forum.SavePost(ctx, &model.ForumPost{ID: "a", Timestamps: model.Timestamps{CreatedAt: base}})
	_ = repo.Forum.SavePost(ctx, &model.ForumPost{ID: "b", Timestamps: model.Timestamps{CreatedAt: base.Add(time.Hour)}})

	posts, _ := repo.Forum.ListPosts(ctx)
	if len(posts) != 2 || posts[0].ID != "b" {
		t.Errorf("帖子应按创建时间倒序: %v", posts)
	}

	_ = repo.Forum.SaveReply(ctx, &model.ForumReply{ID: "r2", PostID: "a", Timestamps: model.Timestamps{CreatedAt: base.Add(time.Minute)}})
	_ = repo.Forum.SaveReply(ctx, &model.ForumReply{ID: "r1", PostID: "a", Timestamps: model.Timestamps{CreatedAt: base}})
	_ = repo.Forum.SaveReply(ctx, &model.ForumReply{ID: "r3", PostID: "b", Timestamps: model.Timestamps{CreatedAt: base}})

	replies, _ := repo.Forum.ListReplies(ctx, "a")
	if len(replies) != 2 || replies[0].ID != "r1" {
		t.Errorf("回复应按创建时间正序: %v", replies)
	}

	if err := repo.Forum.DeleteReplies(ctx, "a"); err != nil {
		t.Fatalf("DeleteReplies 失败: %v", err)
	}
	replies, _ = repo.Forum.ListReplies(ctx, "a")
	if len(replies) != 0 {
		t.Errorf("回复应已删除，剩余 %d", len(replies))
	}
}

func TestChatRepo_DeleteByUser(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()
	_ = repo.Chat.Save(ctx, &model.ChatMessage{ID: "m1", UserID: "u1"})
	_ = repo.Chat.Save(ctx, &model.ChatMessage{ID: "m2", UserID: "u1"})
	_ = repo.Chat.Save(ctx, &model.ChatMessage{ID: "m3", UserID: "u2"})

	n, err := repo.Chat.DeleteByUser(ctx, "u1")
	if err != nil || n != 2 {
		t.Fatalf("期望删除 2 条，实际 n=%d err=%v", n, err)
	}
	left, _ := repo.Chat.ListByUser(ctx, "u2")
	if len(left) != 1 {
		t.Errorf("其他用户消息不应受影响")
	}
}

func recv(t *testing.T, ch <-chan []model.Enrollment) []model.Enrollment {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("等待推送超时")
		return nil
	}
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
