package app

import (
	"edu_platform_backend/internal/config"
	"edu_platform_backend/internal/middleware"
	"edu_platform_backend/internal/util"
	"edu_platform_backend/pkg/monitoring"
	"edu_platform_backend/pkg/security"
	"time"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c)

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	authGroup := router.Group("/api")
	authGroup.Use(
		middleware.AuthMiddleware(cfg.JWT.Secret),
		security.RateLimiter(cfg.RateLimit.MaxRequests, window, middleware.UserKey),
	)
	{
		a.registerLearnerRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}
}

func (a *App) registerLearnerRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/tracks/:id/progress", c.lesson.TrackProgress)
	group.GET("/lessons/orphans", c.lesson.OrphanLessons)

	group.POST("/lectures/:id/view", c.verification.ViewLecture)
	group.POST("/lectures/:id/questions/:subId/check", c.verification.CheckLectureQuestion)
	group.POST("/tasks/:id/run", c.verification.RunTask)
	group.POST("/tasks/:id/submit", c.verification.SubmitTask)
	group.POST("/puzzles/:id/check", c.verification.CheckPuzzle)
	group.POST("/questions/:id/check", c.verification.CheckQuestion)
	group.POST("/surveys/:id/respond", c.verification.SubmitSurvey)

	group.GET("/achievements", c.achievement.GetUserAchievements)
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("/admin")
	admin.Use(middleware.RoleMiddleware(util.RoleTeacher, util.RoleAdmin))
	{
		admin.POST("/users/:userId/achievements/rescan", c.achievement.Rescan)
	}
}
