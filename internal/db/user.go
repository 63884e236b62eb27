package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 用户角色
const (
	RoleManager = "manager"
	RoleDeputy  = "deputy"
	RoleAdmin   = "admin"
)

// User 定义了用户模型
// Role 决定日历可见范围：manager 仅见自己的对象，deputy 见被指派经理的对象，admin 见全部
type User struct {
	gorm.Model
	Username       string `gorm:"unique;not null"`
	Password       string `gorm:"not null"`
	DisplayName    string
	Role           string `gorm:"not null;default:manager"`
	TelegramChatID string
}

// Elevated 报告用户是否为提升角色
func (u User) Elevated() bool {
	return u.Role == RoleAdmin || u.Role == RoleDeputy
}

// DeputyAssignment 记录副手被指派查看的经理
type DeputyAssignment struct {
	ID        uint `gorm:"primaryKey"`
	DeputyID  uint `gorm:"uniqueIndex:idx_deputy_manager"`
	ManagerID uint `gorm:"uniqueIndex:idx_deputy_manager"`
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的管理员。
func EnsureUser(username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := HashPassword(trimmedPassword)
		if err != nil {
			return err
		}

		return DB.Create(&User{Username: trimmedUser, Password: hashed, Role: RoleAdmin}).Error
	}

	return nil
}

// HashPassword 生成 bcrypt 哈希
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
