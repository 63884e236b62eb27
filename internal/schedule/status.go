package schedule

import "time"

// Status 是任务生命周期状态
type Status string

const (
	StatusNew             Status = "NEW"
	StatusAvailable       Status = "AVAILABLE"
	StatusOverdue         Status = "OVERDUE"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusCompleted       Status = "COMPLETED"
	StatusClosedWithPhoto Status = "CLOSED_WITH_PHOTO"
)

// AllStatuses 按展示顺序列出全部状态
var AllStatuses = []Status{
	StatusNew,
	StatusAvailable,
	StatusInProgress,
	StatusOverdue,
	StatusCompleted,
	StatusClosedWithPhoto,
}

// Terminal 报告状态是否为终态
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusClosedWithPhoto
}

// Valid 报告是否为已知状态
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// UserSettable 报告用户能否通过操作将任务置为该状态
func (s Status) UserSettable() bool {
	return s == StatusInProgress || s.Terminal()
}

// ComputeStatus 仅依据时间推导 NEW → AVAILABLE → OVERDUE。
// 超过 end 但仍在 maxDelay 宽限内视为 AVAILABLE。
func ComputeStatus(now, start, end time.Time, maxDelay time.Duration) Status {
	switch {
	case now.Before(start):
		return StatusNew
	case !now.After(end):
		return StatusAvailable
	case now.Sub(end) <= maxDelay:
		return StatusAvailable
	default:
		return StatusOverdue
	}
}

func timeRank(s Status) int {
	switch s {
	case StatusNew:
		return 0
	case StatusAvailable:
		return 1
	case StatusOverdue:
		return 2
	default:
		return -1
	}
}

// Advance 将已持久化状态与时间推导状态合并，只允许向前推进。
// 终态不变；IN_PROGRESS 只会进入 OVERDUE。
func Advance(current, computed Status) (Status, bool) {
	if current.Terminal() {
		return current, false
	}
	if current == StatusInProgress {
		if computed == StatusOverdue {
			return StatusOverdue, true
		}
		return current, false
	}
	cr, nr := timeRank(current), timeRank(computed)
	if cr < 0 || nr <= cr {
		return current, false
	}
	return computed, true
}
