// Package broadcastclock implements broadcast-day time arithmetic: a JST
// wall clock, the 05:00 day boundary, and the "hour >= 24" convention used to
// address the small hours of the next calendar day as still belonging to
// yesterday's broadcast day.
//
// All durations are integer seconds. There is no floating point anywhere in
// this package.
package broadcastclock

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/relayerr"
)

// DayBoundaryHour is the wall-clock hour at which a broadcast day begins.
const DayBoundaryHour = 5

// MaxBroadcastHour is the largest hour value accepted by the "24-29"
// convention (29:00 == 05:00 the following calendar day).
const MaxBroadcastHour = 29

var jst *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		// Fixed +9:00 offset fallback if the tzdata database is unavailable.
		loc = time.FixedZone("JST", 9*60*60)
	}
	jst = loc
}

// Location returns the fixed JST location used throughout the relay.
func Location() *time.Location {
	return jst
}

// Now returns the current JST wall-clock instant.
func Now() time.Time {
	return time.Now().In(jst)
}

// BroadcastNow returns the current "live pointer": wall-clock now minus the
// configured network-delay offset. This is the reference instant used to
// decide which program is currently on air.
func BroadcastNow(delaySec int) time.Time {
	return Now().Add(-time.Duration(delaySec) * time.Second)
}

// BroadcastDate returns the calendar date (at 00:00 JST) of the broadcast
// day that encloses t. A broadcast day runs from 05:00 on its calendar date
// to 05:00 the following calendar date, so instants before 05:00 belong to
// the previous calendar date's broadcast day.
func BroadcastDate(t time.Time) time.Time {
	t = t.In(jst)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, jst)
	if t.Hour() < DayBoundaryHour {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// BroadcastDayBounds returns the [start, end) wall-clock window for the
// broadcast day whose calendar date is date (the value returned by
// BroadcastDate, or any instant within 00:00-23:59 of that date).
func BroadcastDayBounds(date time.Time) (start, end time.Time) {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, jst)
	start = d.Add(DayBoundaryHour * time.Hour)
	end = start.AddDate(0, 0, 1)
	return
}

// Parse accepts digit strings of length up to 14 ("yyyymmddHHMMSS"),
// zero-padding on the right out to 14 digits — so "yyyymmdd" (length 8) and
// "yyyymmddHH" (length 10) are as valid as the full form. Hour values in
// [24,29] are normalized to the following calendar day per the
// broadcast-day convention. The result is a wall-clock JST instant.
func Parse(s string) (time.Time, error) {
	if len(s) == 0 || len(s) > 14 {
		return time.Time{}, fmt.Errorf("%w: time string %q must be 1-14 digits", relayerr.ErrInvalidRequest, s)
	}
	s = s + strings.Repeat("0", 14-len(s))

	for _, c := range s {
		if c < '0' || c > '9' {
			return time.Time{}, fmt.Errorf("%w: time string %q is not numeric", relayerr.ErrInvalidRequest, s)
		}
	}

	year, _ := strconv.Atoi(s[0:4])
	month, _ := strconv.Atoi(s[4:6])
	day, _ := strconv.Atoi(s[6:8])
	hour, _ := strconv.Atoi(s[8:10])
	minute, _ := strconv.Atoi(s[10:12])
	second, _ := strconv.Atoi(s[12:14])

	extraDays := 0
	if hour >= 24 {
		extraDays = hour / 24
		hour = hour % 24
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, jst)
	if extraDays > 0 {
		t = t.AddDate(0, 0, extraDays)
	}
	return t, nil
}

var formatGroupRe = regexp.MustCompile(`\$(\d)`)

// Format renders t as its zero-padded 14-digit components (year, month, day,
// hour, minute, second, in that order) substituted into pattern wherever
// pattern contains a "$1".."$6" token. For example
// Format(t, "$1/$2/$3 $4:$5:$6") yields "2025/01/10 14:30:00".
func Format(t time.Time, pattern string) string {
	t = t.In(jst)
	groups := [6]string{
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
		fmt.Sprintf("%02d", t.Hour()),
		fmt.Sprintf("%02d", t.Minute()),
		fmt.Sprintf("%02d", t.Second()),
	}
	return formatGroupRe.ReplaceAllStringFunc(pattern, func(tok string) string {
		n, _ := strconv.Atoi(tok[1:])
		if n < 1 || n > len(groups) {
			return tok
		}
		return groups[n-1]
	})
}

// Format14 renders t as a plain 14-digit yyyymmddHHMMSS string.
func Format14(t time.Time) string {
	return Format(t, "$1$2$3$4$5$6")
}

// FormatBroadcastDay renders t as a 14-digit string using the "24-29" hour
// convention relative to the broadcast day that started at dayBoundaryStart
// (the start instant returned by BroadcastDayBounds). Instants that fall in
// the small hours of the following calendar date are rendered with hour+24
// so that, e.g., 00:00 the next day becomes "...240000" of the original
// date.
func FormatBroadcastDay(t, dayBoundaryStart time.Time) string {
	t = t.In(jst)
	dayBoundaryStart = dayBoundaryStart.In(jst)
	originDate := time.Date(dayBoundaryStart.Year(), dayBoundaryStart.Month(), dayBoundaryStart.Day(), 0, 0, 0, 0, jst)
	if dayBoundaryStart.Hour() >= DayBoundaryHour {
		// dayBoundaryStart is already the 05:00 instant; originDate is correct.
	} else {
		originDate = originDate.AddDate(0, 0, -1)
	}

	tDate := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, jst)
	extraDays := int(tDate.Sub(originDate).Hours() / 24)

	hour := t.Hour() + extraDays*24
	return fmt.Sprintf("%04d%02d%02d%02d%02d%02d",
		originDate.Year(), int(originDate.Month()), originDate.Day(),
		hour, t.Minute(), t.Second())
}

// SpanSec returns the integer number of seconds between a and b (b-a). The
// result may be negative if b precedes a.
func SpanSec(a, b time.Time) int64 {
	return int64(b.Sub(a) / time.Second)
}

// ValidateInterval checks that ft < to and that the span does not exceed 24
// hours, per the Program invariants in the data model.
func ValidateInterval(ft, to time.Time) error {
	if !ft.Before(to) {
		return fmt.Errorf("%w: ft %s is not before to %s", relayerr.ErrInvalidInterval, ft, to)
	}
	if SpanSec(ft, to) > 24*60*60 {
		return fmt.Errorf("%w: span %s exceeds 24h", relayerr.ErrInvalidInterval, to.Sub(ft))
	}
	return nil
}

// CompareProgramToNow reports how now relates to the program interval
// [ft, to): 0 if now falls within the interval (on-air), a negative number
// of seconds if the program has ended (now-to, negated), or a positive
// number of seconds if the program is upcoming (ft-now).
func CompareProgramToNow(ft, to, now time.Time) int64 {
	if now.Before(ft) {
		return SpanSec(now, ft)
	}
	if !now.Before(to) {
		return -SpanSec(to, now)
	}
	return 0
}
