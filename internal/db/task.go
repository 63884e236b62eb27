package db

import (
	"time"

	"github.com/cleanops/internal/schedule"
)

// Task 是被物化的任务行，ID 与产生它的虚拟任务 ID 相同
// 一旦存在即为该次执行的唯一事实来源，主键冲突保证幂等插入
type Task struct {
	ID                string          `gorm:"primaryKey;size:128"`
	TechCardID        string          `gorm:"index;not null"`
	ObjectID          string          `gorm:"index;not null"`
	ObjectName        string
	RoomName          string
	WorkType          string
	Status            schedule.Status `gorm:"index;not null"`
	ScheduledDate     string          `gorm:"index;size:10"`
	ScheduledStart    *time.Time
	ScheduledEnd      *time.Time
	MaxDelayHours     int
	CompletedAt       *time.Time
	CompletedByID     *uint
	CompletionComment string
	CompletionPhotos  []string `gorm:"serializer:json"`
	ChecklistID       string   `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
