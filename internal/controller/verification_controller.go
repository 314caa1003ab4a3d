package controller

import (
	"edu_platform_backend/internal/middleware"
	"edu_platform_backend/internal/service"
	"edu_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// VerificationController handles every learner action that is graded.
type VerificationController struct {
	VerificationService *service.VerificationService
}

func NewVerificationController(verificationService *service.VerificationService) *VerificationController {
	return &VerificationController{VerificationService: verificationService}
}

type ChoiceRequest struct {
	Selected []string `json:"selected" binding:"required"`
}

type CodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type PuzzleRequest struct {
	Blocks []service.PuzzleAnswerBlock `json:"blocks" binding:"required"`
}

type SurveyRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// @Summary Open a lecture
// @Tags verification
// @Produce json
// @Security BearerAuth
// @Param id path string true "lecture id"
// @Success 200 {object} util.Response{data=service.CheckResult}
// @Router /api/lectures/{id}/view [post]
func (c *VerificationController) ViewLecture(ctx *gin.Context) {
	learner, ok := middleware.CurrentLearner(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.VerificationService.ViewLecture(ctx.Request.Context(), learner, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Answer a question embedded in a lecture
// @Tags verification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "lecture id"
// @Param subId path string true "question block id"
// @Param request body ChoiceRequest true "selected choice ids"
// @Success 200 {object} util.Response{data=service.CheckResult}
// @Router /api/lectures/{id}/questions/{subId}/check [post]
func (c *VerificationController) CheckLectureQuestion(ctx *gin.Context) {
	learner, ok := middleware.CurrentLearner(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var request ChoiceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.VerificationService.CheckLectureQuestion(ctx.Request.Context(), learner, ctx.Param("id"), ctx.Param("subId"), request.Selected)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Run code against a task without submitting
// @Tags verification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "task id"
// @Param request body CodeRequest true "source code"
// @Success 200 {object} util.Response
// @Router /api/tasks/{id}/run [post]
func (c *VerificationController) RunTask(ctx *gin.Context) {
	learner, ok := middleware.CurrentLearner(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var request CodeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	results, err := c.VerificationService.RunTask(ctx.Request.Context(), learner, ctx.Param("id"), request.Code)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"results": results})
}

// @Summary Submit a task solution
// @Tags verification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "task id"
// @Param request body CodeRequest true "source code"
// @Success 200 {object} util.Response{data=service.TaskSubmitResult}
// @Failure 429 {object} util.Response "attempt limit reached"
// @Router /api/tasks/{id}/submit [post]
func (c *VerificationController) SubmitTask(ctx *gin.Context) {
	learner, ok := middleware.CurrentLearner(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var request CodeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.VerificationService.SubmitTask(ctx.Request.Context(), learner, ctx.Param("id"), request.Code)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Check a puzzle arrangement
// @Tags verification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "puzzle id"
// @Param request body PuzzleRequest true "arranged blocks"
// @Success 200 {object} util.Response{data=service.CheckResult}
// @Failure 429 {object} util.Response "attempt limit reached"
// @Router /api/puzzles/{id}/check [post]
func (c *VerificationController) CheckPuzzle(ctx *gin.Context) {
	learner, ok := middleware.CurrentLearner(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var request PuzzleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.VerificationService.CheckPuzzle(ctx.Request.Context(), learner, ctx.Param("id"), request.Blocks)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Answer a standalone question
// @Tags verification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "question id"
// @Param request body ChoiceRequest true "selected choice ids"
// @Success 200 {object} util.Response{data=service.CheckResult}
// @Router /api/questions/{id}/check [post]
func (c *VerificationController) CheckQuestion(ctx *gin.Context) {
	learner, ok := middleware.CurrentLearner(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var request ChoiceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.VerificationService.CheckQuestion(ctx.Request.Context(), learner, ctx.Param("id"), request.Selected)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Respond to a survey
// @Tags verification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "survey id"
// @Param request body SurveyRequest true "free text answer"
// @Success 200 {object} util.Response{data=service.CheckResult}
// @Router /api/surveys/{id}/respond [post]
func (c *VerificationController) SubmitSurvey(ctx *gin.Context) {
	learner, ok := middleware.CurrentLearner(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var request SurveyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.VerificationService.SubmitSurvey(ctx.Request.Context(), learner, ctx.Param("id"), request.Answer)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
