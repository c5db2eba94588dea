package utils

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"supamon-backend/internal/errors"
)

// SendErrorResponse sends a standardized error response
func SendErrorResponse(c *gin.Context, statusCode int, appErr *errors.AppError) {
	if appErr == nil {
		appErr = &errors.AppError{Code: "UNKNOWN_ERROR", Message: "An unexpected error occurred"}
	}

	c.JSON(statusCode, gin.H{
		"error":   appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	})

	if statusCode >= http.StatusInternalServerError {
		extras := map[string]interface{}{
			"status_code": statusCode,
			"error_code":  appErr.Code,
			"details":     appErr.Details,
		}
		if c != nil && c.FullPath() != "" {
			extras["route"] = c.FullPath()
		}
		CaptureSentryError(c, appErr.Err, fmt.Sprintf("SendErrorResponse:%s", appErr.Code), extras)
	}
}

// StatusFor maps an application error code to an HTTP status.
func StatusFor(appErr *errors.AppError) int {
	if appErr == nil {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case errors.CodeValidationFailed, errors.CodeInvalidURLFormat:
		return http.StatusBadRequest
	case errors.CodeCredentialRejected:
		return http.StatusUnprocessableEntity
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeUpstreamUnavailable:
		return http.StatusBadGateway
	case errors.CodeStorageUnavailable, errors.CodeStorageCorrupt:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// RespondError unwraps err to an AppError, if it carries one, and sends it
// with the matching status. Anything else is an opaque 500.
func RespondError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(err, "INTERNAL_ERROR", "Internal server error")
	}
	status := StatusFor(appErr)
	if status >= http.StatusInternalServerError {
		logrus.WithField("path", c.FullPath()).Errorf("Request failed: %v", err)
	}
	SendErrorResponse(c, status, appErr)
}

// HandleError logs an error with context
func HandleError(err error, context string) {
	if err != nil {
		logrus.Errorf("Error in %s: %v", context, err)
		CaptureSentryError(nil, err, context, nil)
	}
}
