package model

import "gorm.io/gorm"

// 用户角色
const (
	RoleUser  = "user"  // 自行注册的用户, 只能查询
	RoleAdmin = "admin" // 管理员, 可以加载、导入和清空地图
)

// User 用户结构体 (用于登录认证, 仅管理员可以修改地图)
type User struct {
	gorm.Model
	Username string `json:"username" gorm:"uniqueIndex;not null"` // 用户名唯一且不为空
	Password string `json:"-" gorm:"not null"`                    // 加密后的密码
	Email    string `json:"email"`
	Role     string `json:"role" gorm:"type:varchar(16);not null;default:user"`
}

// IsAdmin 是否为管理员
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
