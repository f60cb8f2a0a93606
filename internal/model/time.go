package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// LocalTime 以 "YYYY-MM-DD HH:MM:SS" 格式输出时间，解析时兼容后端 Python isoformat 的多种写法。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	timeFormat,
}

// Time 返回底层的 time.Time。
func (t LocalTime) Time() time.Time { return time.Time(t) }

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte(`""`), nil
	}
	formatted := fmt.Sprintf("\"%s\"", time.Time(t).Format(timeFormat))
	return []byte(formatted), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = LocalTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("model: time must be a string: %w", err)
	}
	// 无法识别的时间不影响整条记录的解析，按零值处理。
	parsed, _ := ParseLocalTime(s)
	*t = parsed
	return nil
}

// ParseLocalTime 解析后端返回的时间字符串，空串得到零值。
func ParseLocalTime(s string) (LocalTime, error) {
	if s == "" {
		return LocalTime{}, nil
	}
	for _, layout := range parseLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return LocalTime(parsed), nil
		}
	}
	return LocalTime{}, fmt.Errorf("model: unrecognised time %q", s)
}
