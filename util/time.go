package util

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// A Scheduler is a ticker aligned to an offset into the day, rather than to
// the moment it was created.
type Scheduler struct {
	C <-chan time.Time
}

// NextSchedule returns the next time after now at offset into a period d.
func NextSchedule(now time.Time, offset time.Duration, d time.Duration) time.Time {
	t := now.Truncate(d).Add(offset)
	if t.After(now) {
		return t
	}
	return t.Add(d)
}

// NewScheduler returns a Scheduler containing a channel that will send the
// time with a period specified by the duration argument, at the specified
// offset into the day.
func NewScheduler(offset time.Duration, d time.Duration) *Scheduler {
	if d <= 0 {
		panic(errors.New("non-positive interval for NewScheduler"))
	}

	now := time.Now()
	next := NextSchedule(now, offset, d)

	// 1-element buffer - if the client falls behind reading, ticks are
	// dropped until it catches up.
	c := make(chan time.Time, 1)
	t := &Scheduler{C: c}

	time.AfterFunc(next.Sub(now), func() {
		for {
			select {
			case c <- time.Now():
			default:
			}
			next = next.Add(d)
			time.Sleep(next.Sub(time.Now()))
		}
	})

	return t
}

func plural(n int, suffix string) string {
	switch n {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%d %s", n, suffix)
	default:
		return fmt.Sprintf("%d %ss", n, suffix)
	}
}

func compact(n int, suffix string) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

func joinpair(a, b string) string {
	if a != "" && b != "" {
		return a + " " + b
	}
	return a + b
}

// FriendlyDuration formats a duration in full words, to the two most
// significant units.
func FriendlyDuration(d time.Duration) string {
	switch {
	case d.Hours() >= 24:
		days := int(d.Hours() / 24)
		hours := int(d.Hours()) - days*24
		return joinpair(plural(days, "day"), plural(hours, "hour"))
	case d.Hours() >= 1:
		hours := int(d.Hours())
		mins := int(d.Minutes()) - 60*hours
		return joinpair(plural(hours, "hour"), plural(mins, "minute"))
	case d.Minutes() >= 1:
		mins := int(d.Minutes())
		secs := int(d.Seconds()) - 60*mins
		return joinpair(plural(mins, "minute"), plural(secs, "second"))
	case d.Seconds() >= 1:
		return plural(int(d.Seconds()), "second")
	case d.Nanoseconds() >= 1000:
		return plural(int(d.Seconds()*1000), "millisecond")
	case d.Nanoseconds() > 0:
		return plural(int(d.Nanoseconds()), "nanosecond")
	}
	return "0 seconds"
}

// ShortDuration formats a duration compactly (eg "1d 2h").
func ShortDuration(d time.Duration) string {
	switch {
	case d.Hours() >= 24:
		days := int(d.Hours() / 24)
		hours := int(d.Hours()) - days*24
		return joinpair(compact(days, "d"), compact(hours, "h"))
	case d.Hours() >= 1:
		hours := int(d.Hours())
		mins := int(d.Minutes()) - 60*hours
		return joinpair(compact(hours, "h"), compact(mins, "m"))
	case d.Minutes() >= 1:
		mins := int(d.Minutes())
		secs := int(d.Seconds()) - 60*mins
		return joinpair(compact(mins, "m"), compact(secs, "s"))
	case d.Seconds() >= 1:
		return compact(int(d.Seconds()), "s")
	case d.Nanoseconds() >= 1000:
		return compact(int(d.Seconds()*1000), "ms")
	}
	return "0s"
}

// DOW maps weekday names (long and short form) to time.Weekday.
var DOW = map[string]time.Weekday{
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
	"Sunday":    time.Sunday,
	"Mon":       time.Monday,
	"Tue":       time.Tuesday,
	"Wed":       time.Wednesday,
	"Thu":       time.Thursday,
	"Fri":       time.Friday,
	"Sat":       time.Saturday,
	"Sun":       time.Sunday,
}

var durationUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour,
}

var reDur1 = regexp.MustCompile(`^(\d+)([smhdwy])$`)
var reDur2 = regexp.MustCompile(`^(\d+)([smhdwy])\s*(\d+)([smhdwy])$`)

func duration(m []string) time.Duration {
	i, _ := strconv.Atoi(m[0])
	return time.Duration(i) * durationUnits[m[1]]
}

// ParseDuration does the same as time.ParseDuration but understands more
// units (d for day, w for week, y for year).
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if m := reDur1.FindStringSubmatch(s); m != nil {
		return duration(m[1:3]), nil
	}
	if m := reDur2.FindStringSubmatch(s); m != nil {
		return duration(m[1:3]) + duration(m[3:5]), nil
	}
	return 0, errors.New("invalid duration")
}

const weekday = "(?i)(Sun|Mon|Tue|Wed|Thu|Fri|Sat|Sunday|Monday|Tuesday|Wednesday|Thursday|Friday|Saturday)"

var reWeekday = regexp.MustCompile("^" + weekday + "$")
var reWeekdayTime = regexp.MustCompile("^" + weekday + ` (\d+(?:am|pm))$`)

// ParseDay returns the next occurrence of the named weekday after now.
func ParseDay(now time.Time, s string) time.Time {
	s = strings.Title(s)
	n := int(DOW[s] - now.Weekday())
	if n <= 0 {
		n += 7
	}
	return now.Truncate(time.Hour * 24).Add(24 * time.Hour * time.Duration(n))
}

// ParseTime parses a "7pm" style time of day into an offset from midnight.
func ParseTime(s string) time.Duration {
	t, _ := time.Parse("3pm", s)
	return time.Hour * time.Duration(t.Hour())
}

// ParseRelative understands durations and relative time points (eg Sunday 7pm).
func ParseRelative(now time.Time, s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if d, err := ParseDuration(s); err == nil {
		return now.Add(d), nil
	}
	if m := reWeekday.FindStringSubmatch(s); m != nil {
		return ParseDay(now, m[1]), nil
	}
	if m := reWeekdayTime.FindStringSubmatch(s); m != nil {
		return ParseDay(now, m[1]).Add(ParseTime(m[2])), nil
	}
	return time.Time{}, errors.New("invalid relative time")
}
