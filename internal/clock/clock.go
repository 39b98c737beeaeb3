// Package clock 提供可注入的时钟，月份边界与游客窗口的判定
// 都通过它取当前时间，测试里用 FakeClock 模拟跨月/跨天。
package clock

import "time"

// Clock 时钟接口
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// New 返回系统时钟
func New() Clock {
	return systemClock{}
}
