package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"learnhub/config"
	"learnhub/internal/model"
	"learnhub/internal/repository"
	"learnhub/pkg/docstore"
	"learnhub/pkg/jwt"
	"learnhub/pkg/objectstore"
)

// ── 测试辅助 ──

var testNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC) // 周三

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-key-0123456789",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
			BcryptCost:      4,
		},
	}
}

func newTestRepo() *repository.Repository {
	return repository.NewRepository(docstore.NewMemoryStore(nil, zap.NewNop()), zap.NewNop())
}

func seedUser(repo *repository.Repository, id, name string) *model.User {
	u := &model.User{ID: id, Email: id + "@example.com", DisplayName: name, Role: model.RoleStudent}
	u.Touch(testNow)
	_ = repo.User.Create(context.Background(), u)
	return u
}

func seedCourse(repo *repository.Repository, id string, lessons int) *model.Course {
	c := &model.Course{ID: id, Title: "课程 " + id}
	for i := 1; i <= lessons; i++ {
		c.Lessons = append(c.Lessons, model.Lesson{ID: i, Title: fmt.Sprintf("第%d课", i)})
	}
	c.Touch(testNow)
	_ = repo.Course.Save(context.Background(), c)
	return c
}

func newTestJWT() *jwt.Manager {
	cfg := testConfig()
	return jwt.NewManager(&cfg.Auth)
}

// ── Mock Blacklist ──

type mockBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{revoked: make(map[string]time.Duration)}
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = ttl
	return nil
}

func (m *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

// ── Failing Store ──

var errStoreDown = errors.New("store unavailable")

// failingStore 所有操作都返回 errStoreDown，用于验证后端错误透传
type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (*docstore.Snapshot, error) {
	return nil, errStoreDown
}
func (failingStore) Set(context.Context, string, string, interface{}) error { return errStoreDown }
func (failingStore) Update(context.Context, string, string, map[string]interface{}) error {
	return errStoreDown
}
func (failingStore) Delete(context.Context, string, string) error { return errStoreDown }
func (failingStore) Query(context.Context, string, ...docstore.Filter) ([]*docstore.Snapshot, error) {
	return nil, errStoreDown
}
func (failingStore) Subscribe(context.Context, string, ...docstore.Filter) (<-chan []*docstore.Snapshot, error) {
	return nil, errStoreDown
}
func (failingStore) RunTransaction(context.Context, func(docstore.Tx) error) error {
	return errStoreDown
}
func (failingStore) Close() error { return nil }

// ── Failing Object Store ──

type failingObjects struct{ objectstore.Store }

func (failingObjects) Upload(context.Context, string, io.Reader, string) (string, error) {
	return "", errStoreDown
}
