package util

import (
	"edu_platform_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	InternalServerError(c)
}

// HandleError maps domain errors onto the response envelope.
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrContentNotFound),
		errors.Is(err, ErrTrackNotFound),
		errors.Is(err, ErrSubQuestionNotFound),
		errors.Is(err, ErrContentHidden):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAttemptsExceeded):
		Error(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrNotYetAvailable):
		Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidLessonKind),
		errors.Is(err, ErrEmptyAnswer):
		BadRequest(c, err.Error())
	default:
		LogInternalError(c, err)
	}
}
