package service

import (
	"fmt"
	"strconv"
	"time"
)

// 将 time.Duration 格式化为简短的周期字符串，如 "500ms", "1s", "1m", "1h"
func FormatInterval(d time.Duration) string {
	// 优先处理小时 (h)
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", d/time.Hour)
	}

	// 接着处理分钟 (m)
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%dm", d/time.Minute)
	}

	// 接着处理秒 (s)
	if d >= time.Second && d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}

	if d >= time.Millisecond && d%time.Millisecond == 0 {
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}

	return d.String()
}

// 将周期字符串解析为 time.Duration
// 例如 "500ms" -> 500*time.Millisecond, "1s" -> time.Second
func ParseIntervalDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid interval format: %q", s)
	}

	unit := s[len(s)-1:]
	valueStr := s[:len(s)-1]
	if len(s) > 2 && s[len(s)-2:] == "ms" {
		unit = "ms"
		valueStr = s[:len(s)-2]
	}

	var unitDuration time.Duration
	switch unit {
	case "ms":
		unitDuration = time.Millisecond
	case "s":
		unitDuration = time.Second
	case "m":
		unitDuration = time.Minute
	case "h":
		unitDuration = time.Hour
	case "d":
		unitDuration = 24 * time.Hour
	default:
		return 0, fmt.Errorf("unsupported interval unit: %q", unit)
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid interval value: %q", valueStr)
	}

	return time.Duration(value) * unitDuration, nil
}
