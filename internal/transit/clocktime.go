package transit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day with minute resolution. Journeys that
// cross midnight carry a next-day marker so that 00:15 "tomorrow" sorts after
// 23:50 "today". The zero value is 00:00 on the query day.
type ClockTime struct {
	minutes int
	nextDay bool
}

// NewClockTime returns the clock time for hour/minute on the query day.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime{minutes: hour*60 + minute}
}

// NextDayClockTime returns the clock time for hour/minute on the following day.
func NextDayClockTime(hour, minute int) ClockTime {
	return ClockTime{minutes: hour*60 + minute, nextDay: true}
}

// ClockTimeFromMinutes rebuilds a ClockTime from its stored representation.
func ClockTimeFromMinutes(minutes int, nextDay bool) ClockTime {
	return ClockTime{minutes: minutes, nextDay: nextDay}
}

func (c ClockTime) Hour() int     { return c.minutes / 60 }
func (c ClockTime) Minute() int   { return c.minutes % 60 }
func (c ClockTime) Minutes() int  { return c.minutes }
func (c ClockTime) IsNextDay() bool { return c.nextDay }

// absolute returns minutes since 00:00 of the query day, next-day aware.
func (c ClockTime) absolute() int {
	if c.nextDay {
		return c.minutes + 24*60
	}
	return c.minutes
}

func (c ClockTime) IsAfter(other ClockTime) bool {
	return c.absolute() > other.absolute()
}

func (c ClockTime) IsBefore(other ClockTime) bool {
	return c.absolute() < other.absolute()
}

// Plus advances the clock, rolling over midnight into the next-day range.
func (c ClockTime) Plus(d time.Duration) ClockTime {
	total := c.absolute() + int(d.Minutes())
	if total >= 24*60 {
		return ClockTime{minutes: total - 24*60, nextDay: true}
	}
	return ClockTime{minutes: total, nextDay: c.nextDay}
}

// Minus moves the clock back, clamping at 00:00 of the query day.
func (c ClockTime) Minus(d time.Duration) ClockTime {
	total := c.absolute() - int(d.Minutes())
	if total < 0 {
		total = 0
	}
	if total >= 24*60 {
		return ClockTime{minutes: total - 24*60, nextDay: true}
	}
	return ClockTime{minutes: total}
}

// DurationSince returns the elapsed time from earlier to c; negative when
// earlier is actually later.
func (c ClockTime) DurationSince(earlier ClockTime) time.Duration {
	return time.Duration(c.absolute()-earlier.absolute()) * time.Minute
}

func (c ClockTime) String() string {
	if c.nextDay {
		return fmt.Sprintf("%02d:%02d+24", c.Hour(), c.Minute())
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// ParseClockTime is the inverse of String, accepting "HH:MM" and "HH:MM+24".
func ParseClockTime(s string) (ClockTime, error) {
	nextDay := strings.HasSuffix(s, "+24")
	base := strings.TrimSuffix(s, "+24")
	var hour, minute int
	if _, err := fmt.Sscanf(base, "%d:%d", &hour, &minute); err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q out of range", s)
	}
	return ClockTime{minutes: hour*60 + minute, nextDay: nextDay}, nil
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeRange is an inclusive range of clock times.
type TimeRange struct {
	Start ClockTime
	End   ClockTime
}

func NewTimeRange(start, end ClockTime) TimeRange {
	return TimeRange{Start: start, End: end}
}

func (r TimeRange) Contains(t ClockTime) bool {
	return !t.IsBefore(r.Start) && !t.IsAfter(r.End)
}

func (r TimeRange) AnyOverlap(other TimeRange) bool {
	return !r.End.IsBefore(other.Start) && !other.End.IsBefore(r.Start)
}

// HourRange returns the range covering a whole hour on the query day.
func HourRange(hour int) TimeRange {
	return TimeRange{Start: NewClockTime(hour, 0), End: NewClockTime(hour, 59)}
}

// NextDayHourRange returns the range covering a whole hour on the next day.
func NextDayHourRange(hour int) TimeRange {
	return TimeRange{Start: NextDayClockTime(hour, 0), End: NextDayClockTime(hour, 59)}
}
