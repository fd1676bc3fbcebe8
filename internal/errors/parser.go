package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo 에러 정보 구조
type ErrorInfo struct {
	Code    string // 에러 코드 (codes.go 참조)
	Message string // 사용자 친화적 메시지
}

// ParseError 저장소/외부 호출 에러를 사용자 친화적인 메시지와 코드로 변환
// 보안상 민감한 정보(쿼리, 호스트 등)는 숨김
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "서버 오류가 발생했습니다",
		}
	}

	errStrLower := strings.ToLower(err.Error())

	// 1. GORM 기본 에러
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundInfo(context)
	}

	// 2. PostgreSQL 제약 조건 에러

	// 2-1. Unique constraint violation (23505)
	if strings.Contains(errStrLower, "duplicate key") || strings.Contains(errStrLower, "unique constraint") {
		return parseDuplicateKeyError(errStrLower)
	}

	// 2-2. Foreign key constraint violation (23503)
	if strings.Contains(errStrLower, "foreign key constraint") {
		return parseForeignKeyError(errStrLower)
	}

	// 2-3. Not null constraint violation (23502)
	if strings.Contains(errStrLower, "null value") && strings.Contains(errStrLower, "violates not-null constraint") {
		return ErrorInfo{Code: ValidationRequired, Message: "필수 항목이 누락되었습니다"}
	}

	// 3. 네트워크/연결 에러
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "timeout") {
		return ErrorInfo{
			Code:    InternalExternalAPI,
			Message: "외부 서비스 연결에 실패했습니다. 잠시 후 다시 시도해주세요",
		}
	}

	// 4. 기본 내부 서버 오류
	return ErrorInfo{
		Code:    InternalServerError,
		Message: getDefaultErrorMessage(context),
	}
}

// parseDuplicateKeyError Unique constraint 위반 에러 파싱
func parseDuplicateKeyError(errLower string) ErrorInfo {
	// 주문 번호 중복 (분할 주문 재시도 중 경합)
	if strings.Contains(errLower, "code") || strings.Contains(errLower, "idx_orders_code") {
		return ErrorInfo{
			Code:    ResourceConflict,
			Message: "이미 생성된 분할 주문이 있습니다. 다시 조회해주세요",
		}
	}

	if strings.Contains(errLower, "pkey") || strings.Contains(errLower, "primary key") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: "이미 존재하는 데이터입니다. 다시 시도해주세요",
		}
	}

	return ErrorInfo{
		Code:    ResourceAlreadyExists,
		Message: "이미 존재하는 데이터입니다",
	}
}

// parseForeignKeyError Foreign key constraint 위반 에러 파싱
func parseForeignKeyError(errLower string) ErrorInfo {
	// 분할 주문이 남아 있는 원 주문 삭제
	if strings.Contains(errLower, "still referenced") {
		return ErrorInfo{
			Code:    ResourceConflict,
			Message: "분할 주문이 연결되어 있어 삭제할 수 없습니다",
		}
	}

	if strings.Contains(errLower, "parent_order_id") {
		return ErrorInfo{
			Code:    OrderNotFound,
			Message: "존재하지 않는 원 주문입니다",
		}
	}
	if strings.Contains(errLower, "store_id") || strings.Contains(errLower, "fk_stores") {
		return ErrorInfo{
			Code:    StoreNotFound,
			Message: "존재하지 않는 매장입니다",
		}
	}

	return ErrorInfo{
		Code:    ResourceNotFound,
		Message: "참조하는 데이터를 찾을 수 없습니다",
	}
}

// notFoundInfo context에 따른 Not Found 코드와 메시지
func notFoundInfo(context string) ErrorInfo {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "division") || strings.Contains(contextLower, "분할"):
		return ErrorInfo{Code: DivisionNotFound, Message: "분할 주문을 찾을 수 없습니다"}
	case strings.Contains(contextLower, "order") || strings.Contains(contextLower, "주문"):
		return ErrorInfo{Code: OrderNotFound, Message: "주문을 찾을 수 없습니다"}
	case strings.Contains(contextLower, "store") || strings.Contains(contextLower, "매장"):
		return ErrorInfo{Code: StoreNotFound, Message: "매장을 찾을 수 없습니다"}
	case strings.Contains(contextLower, "notification") || strings.Contains(contextLower, "알림"):
		return ErrorInfo{Code: NotificationNotFound, Message: "알림을 찾을 수 없습니다"}
	}

	return ErrorInfo{Code: ResourceNotFound, Message: "요청한 데이터를 찾을 수 없습니다"}
}

// getDefaultErrorMessage context에 따른 기본 에러 메시지
func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "route") || strings.Contains(contextLower, "split") || strings.Contains(contextLower, "분배") {
		return "주문 분배 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	}
	if strings.Contains(contextLower, "update") || strings.Contains(contextLower, "수정") {
		return "수정 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	}
	if strings.Contains(contextLower, "report") || strings.Contains(contextLower, "보고서") {
		return "보고서 생성 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	}

	return "서버 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
}

// ParseAndRespond 에러를 파싱하여 응답 반환 (controller용 헬퍼)
func ParseAndRespond(c interface{ JSON(int, interface{}) }, statusCode int, err error, context string) {
	errorInfo := ParseError(err, context)
	c.JSON(statusCode, ErrorResponse{
		Error:   errorInfo.Code,
		Message: errorInfo.Message,
	})
}
