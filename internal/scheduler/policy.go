// Package scheduler 决定实盘模式下何时运行下一轮 tick，并驱动协作式循环。
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// MarketHours 描述周一至周五的交易时段，不含节假日。
type MarketHours struct {
	Location *time.Location
	Open     time.Duration
	Close    time.Duration
}

// DefaultMarketHours 是美东 09:30-16:00。
func DefaultMarketHours() MarketHours {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return MarketHours{Location: loc, Open: 9*time.Hour + 30*time.Minute, Close: 16 * time.Hour}
}

func NewMarketHours(timezone, openAt, closeAt string) (MarketHours, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(timezone))
	if err != nil {
		return MarketHours{}, fmt.Errorf("timezone %q: %w", timezone, err)
	}
	o, err := ParseClock(openAt)
	if err != nil {
		return MarketHours{}, err
	}
	c, err := ParseClock(closeAt)
	if err != nil {
		return MarketHours{}, err
	}
	if o >= c {
		return MarketHours{}, fmt.Errorf("market open %s must be before close %s", openAt, closeAt)
	}
	return MarketHours{Location: loc, Open: o, Close: c}, nil
}

// ParseClock 解析 "HH:MM" 为距零点的时长。
func ParseClock(raw string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

func (h MarketHours) loc() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

func tradingDay(d time.Weekday) bool {
	return d != time.Saturday && d != time.Sunday
}

// Contains 判断 t 是否处于交易时段 [Open, Close)。
func (h MarketHours) Contains(t time.Time) bool {
	lt := t.In(h.loc())
	if !tradingDay(lt.Weekday()) {
		return false
	}
	off := time.Duration(lt.Hour())*time.Hour + time.Duration(lt.Minute())*time.Minute +
		time.Duration(lt.Second())*time.Second + time.Duration(lt.Nanosecond())
	return off >= h.Open && off < h.Close
}

// NextOpen 返回不早于 t 的第一个交易时刻。
func (h MarketHours) NextOpen(t time.Time) time.Time {
	if h.Contains(t) {
		return t
	}
	loc := h.loc()
	lt := t.In(loc)
	hh, mm := int(h.Open/time.Hour), int((h.Open%time.Hour)/time.Minute)
	for i := 0; i <= 7; i++ {
		open := time.Date(lt.Year(), lt.Month(), lt.Day()+i, hh, mm, 0, 0, loc)
		if tradingDay(open.Weekday()) && open.After(t) {
			return open
		}
	}
	return t
}

// Policy 是实盘 tick 的节奏约束。
type Policy struct {
	MarketHoursOnly     bool
	PollInterval        time.Duration
	MinDecisionInterval time.Duration
	Hours               MarketHours
}

// MinSpacing 是两轮 tick 之间的下限，两个间隔都为零时生效。
const MinSpacing = time.Minute

// spacing 为两轮 tick 的最小间隔；轮询间隔为零时退回最小决策间隔。
func (p Policy) spacing() time.Duration {
	d := p.PollInterval
	if d <= 0 {
		d = p.MinDecisionInterval
	}
	return max(d, MinSpacing)
}

func (p Policy) ShouldTick(now, lastTick time.Time) bool {
	if p.MarketHoursOnly && !p.Hours.Contains(now) {
		return false
	}
	if lastTick.IsZero() {
		return true
	}
	return now.Sub(lastTick) >= p.spacing()
}

// NextTickAt 返回不早于 now 的下一次允许 tick 的时间。
func (p Policy) NextTickAt(now, lastTick time.Time) time.Time {
	next := now
	if !lastTick.IsZero() {
		if due := lastTick.Add(p.spacing()); due.After(next) {
			next = due
		}
	}
	if p.MarketHoursOnly {
		next = p.Hours.NextOpen(next)
	}
	return next
}

// ShouldTick 使用默认美股交易时段判断当前是否应运行 tick。
func ShouldTick(now, lastTick time.Time, marketHoursOnly bool, pollInterval, minDecisionInterval time.Duration) bool {
	p := Policy{
		MarketHoursOnly:     marketHoursOnly,
		PollInterval:        pollInterval,
		MinDecisionInterval: minDecisionInterval,
		Hours:               DefaultMarketHours(),
	}
	return p.ShouldTick(now, lastTick)
}
