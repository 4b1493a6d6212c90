package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnhub/config"
	"learnhub/internal/api/handler"
	"learnhub/internal/model"
	"learnhub/internal/repository"
	"learnhub/internal/service"
	"learnhub/pkg/docstore"
	"learnhub/pkg/jwt"
	"learnhub/pkg/objectstore"
)

type testApp struct {
	engine *gin.Engine
	repo   *repository.Repository
	jwt    *jwt.Manager
}

// setupTestApp 使用内存文档存储与内存对象存储组装完整路由
func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			BaseURL:      "http://localhost:8080",
			MaxBodyBytes: 1 << 20,
			CORS:         config.CORSConfig{AllowOrigins: []string{"*"}},
		},
		Auth: config.AuthConfig{
			JWTSecret:       "router-test-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: time.Hour,
			BcryptCost:      4,
		},
		Storage: config.StorageConfig{MaxUploadBytes: 1 << 20},
		App:     config.AppConfig{Timezone: "UTC"},
	}

	logger := zap.NewNop()
	store := docstore.NewMemoryStore(nil, logger)
	t.Cleanup(func() { store.Close() })
	objects := objectstore.NewMemoryStore(cfg.Server.BaseURL + "/files")

	jwtMgr := jwt.NewManager(&cfg.Auth)
	blacklist := service.NewMemoryBlacklist()
	repo := repository.NewRepository(store, logger)
	svc := service.NewService(cfg, repo, service.Deps{Objects: objects, JWT: jwtMgr, Blacklist: blacklist}, logger)
	h := handler.NewHandler(cfg, svc, objects)

	engine := Setup(cfg, h, Deps{JWT: jwtMgr, Blacklist: blacklist}, logger)
	gin.SetMode(gin.TestMode)
	return &testApp{engine: engine, repo: repo, jwt: jwtMgr}
}

func (a *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("响应解析失败: %v\n%s", err, w.Body.String())
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("data 解析失败: %v\n%s", err, env.Data)
	}
}

func TestRouter_Health(t *testing.T) {
	app := setupTestApp(t)

	w := app.do("GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("响应应带 X-Request-ID")
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	app := setupTestApp(t)

	for _, path := range []string{"/api/v1/me/dashboard", "/api/v1/courses", "/api/v1/profile"} {
		if w := app.do("GET", path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s 未登录期望 401，实际 %d", path, w.Code)
		}
	}

	// 日历订阅无需登录
	if w := app.do("GET", "/api/v1/events/calendar.ics", "", nil); w.Code != http.StatusOK {
		t.Errorf("日历订阅期望 200，实际 %d", w.Code)
	}
}

func TestRouter_AdminOnly(t *testing.T) {
	app := setupTestApp(t)
	student, _ := app.jwt.GenerateAccessToken("u1", model.RoleStudent)
	admin, _ := app.jwt.GenerateAccessToken("a1", model.RoleAdmin)

	body := map[string]interface{}{"title": "Go 入门"}
	if w := app.do("POST", "/api/v1/courses", student, body); w.Code != http.StatusForbidden {
		t.Errorf("学生创建课程期望 403，实际 %d", w.Code)
	}
	if w := app.do("POST", "/api/v1/courses", admin, body); w.Code != http.StatusCreated {
		t.Errorf("管理员创建课程期望 201，实际 %d: %s", w.Code, w.Body.String())
	}
	if w := app.do("GET", "/api/v1/export/progress", student, nil); w.Code != http.StatusForbidden {
		t.Errorf("学生导出期望 403，实际 %d", w.Code)
	}
}

// TestRouter_LearningFlow 注册 → 选课 → 观看课时 → 学习面板 → 注销
func TestRouter_LearningFlow(t *testing.T) {
	app := setupTestApp(t)

	course := &model.Course{ID: "go101", Title: "Go 入门", Lessons: []model.Lesson{{ID: 1, Title: "安装"}, {ID: 2, Title: "语法"}}}
	course.Touch(time.Now())
	if err := app.repo.Course.Save(context.Background(), course); err != nil {
		t.Fatalf("准备课程失败: %v", err)
	}

	w := app.do("POST", "/api/v1/auth/signup", "", map[string]string{
		"email": "xiaoming@example.com", "password": "password123", "display_name": "小明",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("注册期望 201，实际 %d: %s", w.Code, w.Body.String())
	}
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	decodeData(t, w, &tokens)
	token := tokens.AccessToken

	if w := app.do("POST", "/api/v1/courses/go101/enroll", token, nil); w.Code != http.StatusCreated {
		t.Fatalf("选课期望 201，实际 %d: %s", w.Code, w.Body.String())
	}

	w = app.do("POST", "/api/v1/courses/go101/lessons/watch", token, map[string]int{"lesson_id": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("观看课时期望 200，实际 %d: %s", w.Code, w.Body.String())
	}
	var enrollment struct {
		Progress int `json:"progress"`
	}
	decodeData(t, w, &enrollment)
	if enrollment.Progress != 50 {
		t.Errorf("1/2 课时期望进度 50，实际 %d", enrollment.Progress)
	}

	w = app.do("GET", "/api/v1/me/dashboard", token, nil)
	var dash struct {
		Statistics struct {
			ActiveCourses   int `json:"active_courses"`
			AverageProgress int `json:"average_progress"`
			StudyStreak     int `json:"study_streak"`
		} `json:"statistics"`
		Weekly []json.RawMessage `json:"weekly"`
	}
	decodeData(t, w, &dash)
	if dash.Statistics.ActiveCourses != 1 || dash.Statistics.AverageProgress != 50 || dash.Statistics.StudyStreak != 1 {
		t.Errorf("学习面板统计不符: %+v", dash.Statistics)
	}
	if len(dash.Weekly) != 7 {
		t.Errorf("周数据应有 7 天，实际 %d", len(dash.Weekly))
	}

	if w := app.do("POST", "/api/v1/auth/signout", token, nil); w.Code != http.StatusOK {
		t.Fatalf("注销期望 200，实际 %d", w.Code)
	}
	if w := app.do("GET", "/api/v1/me/dashboard", token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("注销后期望 401，实际 %d", w.Code)
	}
}
