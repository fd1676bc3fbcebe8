package errors

// 에러 코드 상수 정의
// 형식: CATEGORY_SPECIFIC_DETAIL
// 클라이언트는 이 코드를 기반으로 메시지를 매핑함

const (
	// ==================== 인증 (AUTH_) ====================
	AuthUnauthorized  = "AUTH_UNAUTHORIZED"    // 로그인 필요
	AuthTokenExpired  = "AUTH_TOKEN_EXPIRED"   // 토큰 만료
	AuthTokenInvalid  = "AUTH_TOKEN_INVALID"   // 잘못된 토큰
	AuthAPIKeyInvalid = "AUTH_API_KEY_INVALID" // 내부 호출 키 불일치

	// ==================== 인가/권한 (AUTHZ_) ====================
	AuthzForbidden    = "AUTHZ_FORBIDDEN"      // 접근 권한 없음
	AuthzRoleNotFound = "AUTHZ_ROLE_NOT_FOUND" // 권한 정보 없음
	AuthzAdminOnly    = "AUTHZ_ADMIN_ONLY"     // 관리자만 가능

	// ==================== 검증 (VALIDATION_) ====================
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"  // 잘못된 입력
	ValidationInvalidID     = "VALIDATION_INVALID_ID"     // 잘못된 ID
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT" // 잘못된 형식
	ValidationRequired      = "VALIDATION_REQUIRED"       // 필수 항목

	// ==================== 리소스 (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"      // 리소스 없음
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS" // 이미 존재
	ResourceConflict      = "RESOURCE_CONFLICT"       // 충돌

	// ==================== 매장 (STORE_) ====================
	StoreNotFound = "STORE_NOT_FOUND" // 매장 없음

	// ==================== 주문 분배 (ORDER_) ====================
	OrderNotFound       = "ORDER_NOT_FOUND"        // 주문 없음
	OrderNoItems        = "ORDER_NO_ITEMS"         // 분배할 상품 없음
	OrderVendorNotFound = "ORDER_VENDOR_NOT_FOUND" // 상품의 매장을 찾을 수 없음
	OrderPartialSplit   = "ORDER_PARTIAL_SPLIT"    // 일부 매장 분할 실패
	OrderIsDivision     = "ORDER_IS_DIVISION"      // 이미 분할된 주문
	OrderNotRoutable    = "ORDER_NOT_ROUTABLE"     // 분배할 수 없는 상태
	OrderNotSplit       = "ORDER_NOT_SPLIT"        // 분할되지 않은 주문

	// ==================== 분할 주문 (DIVISION_) ====================
	DivisionNotFound      = "DIVISION_NOT_FOUND"      // 분할 주문 없음
	DivisionNotOwner      = "DIVISION_NOT_OWNER"      // 배정 매장이 아님
	DivisionInvalidStatus = "DIVISION_INVALID_STATUS" // 허용되지 않는 상태 변경
	DivisionStaleResponse = "DIVISION_STALE_RESPONSE" // 이미 더 최근 응답이 기록됨

	// ==================== 집계 (AGGREGATE_) ====================
	AggregateInputMissing = "AGGREGATE_INPUT_MISSING" // 분할 주문 행 없음

	// ==================== 알림 (NOTIFICATION_) ====================
	NotificationNotFound = "NOTIFICATION_NOT_FOUND" // 알림 없음

	// ==================== 내부 오류 (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"   // 서버 오류
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR" // DB 오류
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"   // 외부 API 오류
	InternalConfigError   = "INTERNAL_CONFIG_ERROR"   // 설정 오류
)
