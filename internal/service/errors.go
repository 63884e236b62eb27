package service

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput 表示请求格式错误，未访问存储即被拒绝
	ErrMalformedInput = errors.New("malformed input")
	// ErrNotFound 表示引用的技术卡、对象或任务不存在
	ErrNotFound = errors.New("not found")
	// ErrConflict 表示试图改写已处于终态的任务
	ErrConflict = errors.New("conflict")
	// ErrValidation 表示对象级完成要求未满足
	ErrValidation = errors.New("validation failed")
	// ErrForbidden 表示请求超出调用者的可见范围
	ErrForbidden = errors.New("forbidden")
)

// 完成要求
const (
	RequirementPhoto   = "photo_required"
	RequirementComment = "comment_required"
)

// ValidationError 携带未满足的具体要求，便于前端引导用户补充
type ValidationError struct {
	Requirement string
	Message     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Requirement, e.Message)
}

// Unwrap 使 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
