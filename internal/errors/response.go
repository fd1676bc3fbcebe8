package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 모든 API 에러 응답 형태
type ErrorResponse struct {
	Error   string `json:"error"`   // 에러 코드 (codes.go)
	Message string `json:"message"` // 사용자용 한글 메시지
	Details any    `json:"details,omitempty"`
}

func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	RespondWithDetails(c, statusCode, errorCode, message, nil)
}

// RespondWithDetails 실패한 매장 목록 등 부가 정보를 함께 응답
func RespondWithDetails(c *gin.Context, statusCode int, errorCode, message string, details any) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

func Unauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, orDefault(message, "로그인이 필요합니다"))
}

func Forbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, AuthzForbidden, orDefault(message, "접근 권한이 없습니다"))
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func Conflict(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusConflict, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	RespondWithError(c, http.StatusInternalServerError, InternalServerError,
		orDefault(message, "서버 오류가 발생했습니다. 잠시 후 다시 시도해주세요"))
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
