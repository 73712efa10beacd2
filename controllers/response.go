package controllers

import (
	"net/http"
	"strconv"

	"github.com/cmsp-lab/lab-orders-api/apperrors"
	"github.com/gin-gonic/gin"
)

// MsgTryAgainLater is shown when an order cannot move to the requested status.
const MsgTryAgainLater = "an error occurred, try again later"

var statusByCode = map[apperrors.Code]int{
	apperrors.CodeValidation:   http.StatusBadRequest,
	apperrors.CodeUnauthorized: http.StatusUnauthorized,
	apperrors.CodeForbidden:    http.StatusForbidden,
	apperrors.CodeNotFound:     http.StatusNotFound,
	apperrors.CodeInvalidState: http.StatusConflict,
	apperrors.CodeConflict:     http.StatusConflict,
	apperrors.CodeStorage:      http.StatusInternalServerError,
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondAppError maps an error from the services to the JSON envelope.
// Anything that is not an apperrors.Error is attached to the context so the
// error reporting middleware can forward it.
func respondAppError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, string(apperrors.CodeInternal), "An unexpected error occurred", nil)
		return
	}

	status := statusByCode[appErr.Code]
	switch appErr.Code {
	case apperrors.CodeValidation:
		var details interface{}
		if len(appErr.Fields) > 0 {
			details = appErr.Fields
		}
		respondError(c, status, string(appErr.Code), appErr.Message, details)
	case apperrors.CodeInvalidState:
		respondError(c, status, string(appErr.Code), MsgTryAgainLater, appErr.Message)
	case apperrors.CodeStorage:
		_ = c.Error(err)
		respondError(c, status, string(appErr.Code), "The file could not be processed, try again later", nil)
	default:
		respondError(c, status, string(appErr.Code), appErr.Message, nil)
	}
}

func respondValidation(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, string(apperrors.CodeValidation), "Invalid request data", err.Error())
}

func respondSuccess(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// parseID reads a positive numeric path parameter.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}
