package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"github.com/weiwangfds/datashare/internal/i18n"
	"github.com/weiwangfds/datashare/internal/logger"
)

// ErrorBody is the body of every failed request
type ErrorBody struct {
	// Error human readable reason
	Error string `json:"error"`
	// Code application error code
	Code int `json:"code,omitempty"`
}

// Success writes a 200 JSON body
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created writes a 201 JSON body
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Message writes a 200 {message} body
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// Error renders err as {error, code} with the status its code maps to.
// Errors that are not AppErrors are treated as internal failures.
func Error(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		appErr = apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	status := appErr.Status()
	if status >= http.StatusInternalServerError {
		logger.WithFields(map[string]interface{}{
			"code":     appErr.Code,
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"trace_id": getTraceID(c),
		}).WithError(err).Error("request failed")
	}

	c.AbortWithStatusJSON(status, ErrorBody{
		Error: localize(c, appErr),
		Code:  int(appErr.Code),
	})
}

// Abort renders a bare error code, used by middleware that short-circuits a request
func Abort(c *gin.Context, code apperrors.ErrorCode) {
	Error(c, apperrors.New(code))
}

// localize renders the client message in the caller's Accept-Language
func localize(c *gin.Context, appErr *apperrors.AppError) string {
	lang := i18n.GetInstance().FromAcceptLanguage(c.GetHeader("Accept-Language"))
	localized := *appErr
	localized.Message = apperrors.GetErrorMessageWithLang(appErr.Code, lang)
	return localized.ClientMessage()
}

// getTraceID returns the id assigned by the request logger
func getTraceID(c *gin.Context) string {
	if traceID, exists := c.Get("trace_id"); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}
