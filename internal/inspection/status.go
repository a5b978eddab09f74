package inspection

import (
	"fmt"
	"strings"
	"time"
)

// Status 报告状态枚举（持久化为字符串）。
// 周边应用只认这两个值；没有只进不退的终态，关了还能重开。
type Status string

const (
	StatusOpen   Status = "OPEN"   // 默认/初始状态
	StatusClosed Status = "CLOSED" // 已关闭（可重开）
)

// ParseStatus 解析状态字符串；非法值返回 false。
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusOpen:
		return StatusOpen, true
	case StatusClosed:
		return StatusClosed, true
	}
	return "", false
}

// AllowTransition 定义报告状态机的允许流转关系。
var AllowTransition = map[Status][]Status{
	StatusOpen:   {StatusClosed},
	StatusClosed: {StatusOpen},
}

// CanTransition 判断 from -> to 是否是一个允许的状态流转。
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := AllowTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ApplyTransition 对报告应用状态变更，并维护关闭时间。
// 仅在 CanTransition 返回 true 时调用。
func ApplyTransition(r *Report, to Status, now time.Time) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	from := r.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid report status transition: %s -> %s", from, to)
	}

	r.Status = to

	switch to {
	case StatusClosed:
		if r.ClosedAt == nil {
			t := now
			r.ClosedAt = &t
		}
	case StatusOpen:
		r.ClosedAt = nil
	}
	return nil
}
