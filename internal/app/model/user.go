package model

type UserRole string // 사용자 권한 타입

const (
	RoleUser   UserRole = "user"   // 일반 사용자 권한
	RoleSeller UserRole = "seller" // 매장 운영자 권한
	RoleAdmin  UserRole = "admin"  // 관리자 권한
)

// Actor 요청 주체 (인증 미들웨어에서 추출)
type Actor struct {
	UserID uint
	Role   UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
