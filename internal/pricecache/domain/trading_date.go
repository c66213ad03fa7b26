// Package domain 包含价格缓存服务的领域模型：交易日、报价记录、双向索引与按交易日滚动的价格缓存
package domain

import (
	"fmt"
	"time"
)

// TradingDateLayout 交易日的文本格式
const TradingDateLayout = "2006-01-02"

// TradingDate 交易日
// 只有日历日期，没有时间部分；零值表示"缺失日期"
type TradingDate struct {
	year  int
	month time.Month
	day   int
}

// NewTradingDate 创建交易日，超出范围的日期会按 time.Date 的规则归一化
func NewTradingDate(year int, month time.Month, day int) TradingDate {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return TradingDate{year: y, month: m, day: d}
}

// TradingDateOf 取时间在其自身时区下的日历日期
func TradingDateOf(t time.Time) TradingDate {
	if t.IsZero() {
		return TradingDate{}
	}
	y, m, d := t.Date()
	return TradingDate{year: y, month: m, day: d}
}

// ParseTradingDate 解析 YYYY-MM-DD 格式的交易日
func ParseTradingDate(s string) (TradingDate, error) {
	t, err := time.Parse(TradingDateLayout, s)
	if err != nil {
		return TradingDate{}, fmt.Errorf("invalid trading date %q: %w", s, err)
	}
	return TradingDateOf(t), nil
}

func (d TradingDate) Year() int { return d.year }

func (d TradingDate) Month() time.Month { return d.month }

func (d TradingDate) Day() int { return d.day }

// IsZero 判断是否为缺失日期
func (d TradingDate) IsZero() bool { return d == TradingDate{} }

func (d TradingDate) Equal(o TradingDate) bool { return d == o }

// Time 返回该交易日 UTC 零点
func (d TradingDate) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// Compare 比较两个交易日，返回 -1、0 或 1
func (d TradingDate) Compare(o TradingDate) int {
	switch {
	case d.year != o.year:
		return cmpInt(d.year, o.year)
	case d.month != o.month:
		return cmpInt(int(d.month), int(o.month))
	default:
		return cmpInt(d.day, o.day)
	}
}

// Before 判断 d 是否严格早于 o
func (d TradingDate) Before(o TradingDate) bool { return d.Compare(o) < 0 }

// After 判断 d 是否严格晚于 o
func (d TradingDate) After(o TradingDate) bool { return d.Compare(o) > 0 }

// AddDays 返回偏移 n 天后的交易日
func (d TradingDate) AddDays(n int) TradingDate {
	return NewTradingDate(d.year, d.month, d.day+n)
}

func (d TradingDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(TradingDateLayout)
}

// MarshalText 实现 encoding.TextMarshaler
func (d TradingDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，空串解析为零值
func (d *TradingDate) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = TradingDate{}
		return nil
	}
	parsed, err := ParseTradingDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
