package app

import (
	"context"
	"edu_platform_backend/internal/achievement"
	"edu_platform_backend/internal/config"
	"edu_platform_backend/internal/controller"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/runner"
	"edu_platform_backend/internal/service"
	"edu_platform_backend/pkg/configwatcher"
	"edu_platform_backend/pkg/database"
	"edu_platform_backend/pkg/logger"
	"edu_platform_backend/pkg/monitoring"
	"edu_platform_backend/pkg/security"
	"edu_platform_backend/pkg/tracing"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	content     *repository.ContentRepository
	track       *repository.TrackRepository
	progress    *repository.ProgressRepository
	attempt     *repository.AttemptRepository
	submission  *repository.SubmissionRepository
	survey      *repository.SurveyResponseRepository
	achievement *repository.AchievementRepository
}

type services struct {
	runner       *runner.Service
	resolver     *service.StatusResolver
	achievement  *service.AchievementService
	progress     *service.ProgressService
	verification *service.VerificationService
	lesson       *service.LessonService
}

type controllers struct {
	achievement  *controller.AchievementController
	lesson       *controller.LessonController
	verification *controller.VerificationController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	var cache *repository.DisplayIDCache
	if rdb != nil {
		cache = repository.NewDisplayIDCache(rdb, cfg.Redis.CacheTTL())
	}
	return &repositories{
		content:     repository.NewContentRepository(db, cache),
		track:       repository.NewTrackRepository(db),
		progress:    repository.NewProgressRepository(db),
		attempt:     repository.NewAttemptRepository(db),
		submission:  repository.NewSubmissionRepository(db),
		survey:      repository.NewSurveyResponseRepository(db),
		achievement: repository.NewAchievementRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, executor runner.Executor) *services {
	s := &services{}

	s.runner = runner.NewService(cfg.Runner.RunnerSettings(), executor, logger.Log.Named("runner"))
	s.resolver = service.NewStatusResolver(repos.content, repos.progress, repos.submission, logger.Log.Named("resolver"))
	s.achievement = service.NewAchievementService(
		achievement.DefaultRegistry(),
		repos.progress,
		repos.achievement,
		repos.track,
		repos.content,
		s.resolver,
		logger.Log.Named("achievements"),
	)
	s.progress = service.NewProgressService(repos.progress, s.achievement, logger.Log.Named("progress"))
	s.verification = service.NewVerificationService(
		repos.content,
		repos.track,
		repos.attempt,
		repos.submission,
		repos.survey,
		s.progress,
		s.resolver,
		s.runner,
		logger.Log.Named("verification"),
	)
	s.lesson = service.NewLessonService(repos.content, repos.track, s.resolver, logger.Log.Named("lessons"))

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.runner.UpdateConfig(newCfg.Runner.RunnerSettings())
	})
	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		achievement:  controller.NewAchievementController(s.achievement),
		lesson:       controller.NewLessonController(s.lesson),
		verification: controller.NewVerificationController(s.verification),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// NewApp connects the database and cache and wires the application.
// Infrastructure failures are fatal.
func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			// display ids are then always read from the database
			logger.Log.Warn("Redis unavailable, running without cache", zap.Error(err))
			rdb = nil
		}
	}

	app := newApp(cfg, db, rdb, nil)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("edu-platform", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}
	return app
}

// newApp wires repositories, services and routes over existing connections.
// A nil executor runs code with the local interpreter.
func newApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client, executor runner.Executor) *App {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb, cfg)
	app.services = app.initServices(repos, cfg, executor)
	controllers := app.initControllers(app.services, db, rdb)

	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.Config.Path != "" {
		go func() {
			reloaders := make([]configwatcher.ConfigReloader, 0, len(a.configCallbacks))
			for _, cb := range a.configCallbacks {
				reloaders = append(reloaders, cb)
			}
			if err := configwatcher.WatchConfig(ctx, a.Config.Path, reloaders...); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	// Runs already started finish within their own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Println("Server exiting")
}
