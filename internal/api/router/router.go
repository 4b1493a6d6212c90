package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnhub/config"
	"learnhub/internal/api/handler"
	"learnhub/internal/api/middleware"
	"learnhub/internal/model"
	"learnhub/pkg/jwt"
)

// Deps 路由层的可选依赖；为 nil 时对应功能降级
type Deps struct {
	JWT       *jwt.Manager
	Blacklist middleware.TokenChecker
	Limiter   middleware.RateLimiter
}

// 认证接口限流：每个 IP 每分钟 20 次
const (
	authRateLimit  = 20
	authRateWindow = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, deps Deps, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── 本地对象存储 ──
	if h.Files.Enabled() {
		r.GET("/files/*key", h.Files.Serve)
	}

	adminOnly := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		auth.Use(middleware.RateLimit(deps.Limiter, authRateLimit, authRateWindow))
		{
			auth.POST("/signup", h.Auth.SignUp)
			auth.POST("/signin", h.Auth.SignIn)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// 公开的活动日历订阅（日历客户端无法携带 Token）
		v1.GET("/events/calendar.ics", h.Event.Calendar)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(deps.JWT, deps.Blacklist))
		{
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/signout", h.Auth.SignOut)

			// 个人资料
			profile := authorized.Group("/profile")
			{
				profile.GET("", h.Profile.GetProfile)
				profile.PUT("", h.Profile.UpdateProfile)
				profile.POST("/avatar", h.Profile.UploadAvatar)
			}

			// 我的学习
			me := authorized.Group("/me")
			{
				me.GET("/courses", h.Enrollment.MyCourses)
				me.GET("/courses/stream", h.Enrollment.Stream)
				me.GET("/statistics", h.Enrollment.Statistics)
				me.GET("/dashboard", h.Enrollment.Dashboard)
				me.GET("/events", h.Event.MyRegistrations)
			}

			// 课程与学习进度
			courses := authorized.Group("/courses")
			{
				courses.GET("", h.Course.ListCourses)
				courses.GET("/:id", h.Course.GetCourse)
				courses.POST("", adminOnly, h.Course.CreateCourse)
				courses.PUT("/:id", adminOnly, h.Course.UpdateCourse)
				courses.POST("/:id/thumbnail", adminOnly, h.Course.UploadThumbnail)
				courses.POST("/:id/lessons/import", adminOnly, h.Course.ImportLessons)

				courses.POST("/:id/enroll", h.Enrollment.Enroll)
				courses.DELETE("/:id/enroll", h.Enrollment.Unenroll)
				courses.GET("/:id/progress", h.Enrollment.GetEnrollment)
				courses.PUT("/:id/progress", h.Enrollment.UpdateProgress)
				courses.POST("/:id/lessons/watch", h.Enrollment.WatchLesson)
			}

			// 论坛
			forum := authorized.Group("/forum/posts")
			{
				forum.GET("", h.Forum.ListPosts)
				forum.POST("", h.Forum.CreatePost)
				forum.GET("/:id", h.Forum.GetPost)
				forum.DELETE("/:id", h.Forum.DeletePost) // 作者或管理员（Service 层鉴权）
				forum.GET("/:id/replies", h.Forum.ListReplies)
				forum.POST("/:id/replies", h.Forum.AddReply)
				forum.POST("/:id/like", h.Forum.ToggleLike)
			}

			// 校园活动
			events := authorized.Group("/events")
			{
				events.GET("", h.Event.ListEvents)
				events.GET("/:id", h.Event.GetEvent)
				events.POST("", adminOnly, h.Event.CreateEvent)
				events.POST("/import", adminOnly, h.Event.ImportCalendar)
				events.POST("/:id/poster", adminOnly, h.Event.UploadPoster)
				events.POST("/:id/register", h.Event.Register)
				events.DELETE("/:id/register", h.Event.CancelRegistration)
				events.GET("/:id/ticket", h.Event.Ticket)
			}

			// 学习助手
			chat := authorized.Group("/chat/messages")
			{
				chat.GET("", h.Chat.History)
				chat.POST("", h.Chat.SendMessage)
				chat.DELETE("", h.Chat.ClearHistory)
			}

			// 导出
			export := authorized.Group("/export")
			{
				export.GET("/progress", adminOnly, h.Export.ExportProgress)
			}
		}
	}

	return r
}
