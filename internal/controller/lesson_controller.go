package controller

import (
	"edu_platform_backend/internal/middleware"
	"edu_platform_backend/internal/service"
	"edu_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LessonController struct {
	LessonService *service.LessonService
}

func NewLessonController(lessonService *service.LessonService) *LessonController {
	return &LessonController{LessonService: lessonService}
}

// @Summary Track progress
// @Description Lessons of a track in order with the caller's status
// @Tags lessons
// @Produce json
// @Security BearerAuth
// @Param id path string true "track id"
// @Success 200 {object} util.Response{data=service.TrackProgressView}
// @Failure 404 {object} util.Response
// @Router /api/tracks/{id}/progress [get]
func (c *LessonController) TrackProgress(ctx *gin.Context) {
	learner, ok := middleware.CurrentLearner(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.LessonService.TrackProgress(ctx.Request.Context(), learner, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary Standalone lessons
// @Description Content no track references, with the caller's status
// @Tags lessons
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.OrphanLessonsView}
// @Router /api/lessons/orphans [get]
func (c *LessonController) OrphanLessons(ctx *gin.Context) {
	learner, ok := middleware.CurrentLearner(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.LessonService.OrphanLessons(ctx.Request.Context(), learner)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
