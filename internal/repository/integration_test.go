//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"learnhub/internal/model"
	"learnhub/internal/repository"
	"learnhub/pkg/database"
	"learnhub/pkg/docstore"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=learnhub password=learnhub_password dbname=learnhub_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

// setupRepo 创建仓储并返回清理函数（按 id 前缀删除本测试写入的文档）
func setupRepo(t *testing.T) (*repository.Repository, string, func()) {
	t.Helper()
	prefix := fmt.Sprintf("t%d", time.Now().UnixNano())
	store := docstore.NewPostgresStore(testDB, nil, zap.NewNop())

	cleanup := func() {
		testDB.Where("id LIKE ?", prefix+"%").Delete(&docstore.DocumentRow{})
	}
	return repository.NewRepository(store, nil), prefix, cleanup
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_Rollback(t *testing.T) {
	repo, prefix, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := prefix + "-u"
	courseID := prefix + "-c"
	if err := repo.Course.Save(ctx, &model.Course{ID: courseID, Title: "Go"}); err != nil {
		t.Fatalf("创建课程失败: %v", err)
	}

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Course.AddEnrolledCount(ctx, courseID, 1); err != nil {
			return err
		}
		if err := tx.Enrollment.Save(ctx, &model.Enrollment{UserID: userID, CourseID: courseID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("期望返回 boom，实际: %v", err)
	}

	if _, err := repo.Enrollment.Get(ctx, userID, courseID); !repository.IsNotFound(err) {
		t.Fatal("期望回滚后查不到选课记录，但实际查到了")
	}
	c, _ := repo.Course.GetByID(ctx, courseID)
	if c.EnrolledCount != 0 {
		t.Errorf("回滚后 enrolledCount 应为 0，得到: %d", c.EnrolledCount)
	}
}

func TestTransaction_Commit(t *testing.T) {
	repo, prefix, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := prefix + "-u"
	courseID := prefix + "-c"
	_ = repo.Course.Save(ctx, &model.Course{ID: courseID})

	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Course.AddEnrolledCount(ctx, courseID, 1); err != nil {
			return err
		}
		return tx.Enrollment.Save(ctx, &model.Enrollment{UserID: userID, CourseID: courseID, EnrolledAt: time.Now()})
	})
	if err != nil {
		t.Fatalf("事务失败: %v", err)
	}

	found, err := repo.Enrollment.Get(ctx, userID, courseID)
	if err != nil {
		t.Fatalf("提交后查询选课记录失败: %v", err)
	}
	if found.CourseID != courseID {
		t.Errorf("ID 不匹配: expected %s, got %s", courseID, found.CourseID)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Row Lock (SELECT ... FOR UPDATE)
// ═══════════════════════════════════════════════════════════

func TestTransaction_ConcurrentCounterIncrements(t *testing.T) {
	repo, prefix, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	courseID := prefix + "-c"
	_ = repo.Course.Save(ctx, &model.Course{ID: courseID})

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Transaction(ctx, func(tx *repository.Repository) error {
				return tx.Course.AddEnrolledCount(ctx, courseID, 1)
			})
		}()
	}
	wg.Wait()

	c, err := repo.Course.GetByID(ctx, courseID)
	if err != nil {
		t.Fatalf("查询课程失败: %v", err)
	}
	if c.EnrolledCount != workers {
		t.Errorf("期望 enrolledCount=%d，得到: %d", workers, c.EnrolledCount)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: JSONB Query
// ═══════════════════════════════════════════════════════════

func TestEnrollment_ListByUser(t *testing.T) {
	repo, prefix, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := prefix + "-u"
	for i := 0; i < 3; i++ {
		e := &model.Enrollment{UserID: userID, CourseID: fmt.Sprintf("%s-c%d", prefix, i), Progress: i * 10}
		if err := repo.Enrollment.Save(ctx, e); err != nil {
			t.Fatalf("Save 失败: %v", err)
		}
	}

	list, err := repo.Enrollment.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUser 失败: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("期望 3 条，得到: %d", len(list))
	}
}
