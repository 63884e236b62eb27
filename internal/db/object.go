package db

import "time"

// Object 是被服务的设施（办公楼、商场等）
// WorkingDays 为 ISO 星期列表 "1,2,3,4,5,6,7"，Timezone 为 IANA 名称
type Object struct {
	ID                          string `gorm:"primaryKey;size:64"`
	Name                        string `gorm:"not null"`
	Address                     string
	ManagerID                   uint   `gorm:"index"`
	WorkingHoursStart           string `gorm:"not null;default:'08:00'"`
	WorkingHoursEnd             string `gorm:"not null;default:'20:00'"`
	WorkingDays                 string `gorm:"not null;default:'1,2,3,4,5,6,7'"`
	Timezone                    string `gorm:"not null;default:'Europe/Moscow'"`
	RequirePhotoForCompletion   bool
	RequireCommentForCompletion bool
	TelegramChatID              string
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}
