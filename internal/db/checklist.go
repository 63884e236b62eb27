package db

import "time"

// 清单状态
const (
	ChecklistOpen      = "OPEN"
	ChecklistCompleted = "COMPLETED"
)

// Checklist 按对象+日期聚合当日物化的任务，ID 为 checklist-{objectId}-{date}
type Checklist struct {
	ID            string `gorm:"primaryKey;size:128"`
	ObjectID      string `gorm:"index;not null"`
	Date          string `gorm:"size:10;not null"`
	Status        string `gorm:"not null;default:OPEN"`
	CompletedAt   *time.Time
	CompletedByID *uint
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
