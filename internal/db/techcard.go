package db

import "time"

// TechCard 是周期性保洁工作的定义（做什么、在哪、多久一次）
// FrequencyDays/PreferredTime/MaxDelayHours 由频率解析器缓存，0 或空值表示缺失
// FrequencyParsed=false 表示文本未被识别，按每日一次回退，供数据质量审计
type TechCard struct {
	ID              string `gorm:"primaryKey;size:64"`
	ObjectID        string `gorm:"index;not null"`
	RoomID          *string
	RoomName        string
	WorkType        string `gorm:"not null"`
	Description     string
	FrequencyText   string
	FrequencyDays   float64
	FrequencyParsed bool
	PreferredTime   string
	MaxDelayHours   int
	StartDate       *time.Time
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
