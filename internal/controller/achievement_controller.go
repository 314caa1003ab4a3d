package controller

import (
	"edu_platform_backend/internal/middleware"
	"edu_platform_backend/internal/service"
	"edu_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AchievementController struct {
	AchievementService *service.AchievementService
}

func NewAchievementController(achievementService *service.AchievementService) *AchievementController {
	return &AchievementController{AchievementService: achievementService}
}

// @Summary List achievements
// @Description Every registered achievement with the caller's unlock state
// @Tags achievements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/achievements [get]
func (c *AchievementController) GetUserAchievements(ctx *gin.Context) {
	learner, ok := middleware.CurrentLearner(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	achievements, err := c.AchievementService.UserAchievements(ctx.Request.Context(), learner.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, achievements)
}

// @Summary Re-evaluate a learner's achievements
// @Tags achievements
// @Produce json
// @Security BearerAuth
// @Param userId path string true "learner id"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{userId}/achievements/rescan [post]
func (c *AchievementController) Rescan(ctx *gin.Context) {
	userID := ctx.Param("userId")
	if userID == "" {
		util.BadRequest(ctx, "userId is required")
		return
	}

	unlocked, err := c.AchievementService.Rescan(ctx.Request.Context(), userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if unlocked == nil {
		unlocked = []string{}
	}

	util.Success(ctx, gin.H{"unlocked": unlocked})
}
