package reminder

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTime = errors.New("invalid time, expected HH:MM")

const (
	minutesPerDay = 24 * 60

	minOffset = -12 * 60
	maxOffset = 14 * 60

	// MaxDelay bounds relative reminders.
	MaxDelay = 366 * 24 * time.Hour
)

var (
	reRelative = regexp.MustCompile(`(?i)через\s+(?:(\d+)\s*)?(минут[уы]?|мин\.?|час(?:а|ов)?)`)
	reAbsolute = regexp.MustCompile(`(?i)(?:^|[^\p{L}\d])в\s*(\d{1,2})[:.](\d{2})(?:\D|$)`)
	reRemind   = regexp.MustCompile(`(?i)напомни(?:те)?(?:\s+мне)?`)
	reClock    = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)
)

// ParseRelative understands "через N минут/часов". A missing number means one
// unit ("через час").
func ParseRelative(text string) (time.Duration, bool) {
	m := reRelative.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n := 1
	if m[1] != "" {
		var err error
		if n, err = strconv.Atoi(m[1]); err != nil || n <= 0 {
			return 0, false
		}
	}
	unit := time.Minute
	if strings.HasPrefix(strings.ToLower(m[2]), "час") {
		unit = time.Hour
	}
	if n > int(MaxDelay/unit) {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// ParseAbsolute understands "в HH:MM" (also "в HH.MM").
func ParseAbsolute(text string) (hour, minute int, ok bool) {
	m := reAbsolute.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// ResolveAbsolute returns the UTC instant of the next HH:MM on the user's
// wall clock. offset is local−UTC in minutes.
func ResolveAbsolute(now time.Time, hour, minute, offset int) time.Time {
	shift := time.Duration(offset) * time.Minute
	local := now.UTC().Add(shift)
	target := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, time.UTC)
	if target.Before(local) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Add(-shift)
}

// ExtractMessage pulls the reminder text out of a phrase such as
// "напомни через 5 минут выпить воды" or "напомни выпить воды в 18:30".
func ExtractMessage(text string) string {
	loc := reRelative.FindStringIndex(text)
	if loc == nil {
		if m := reAbsolute.FindStringSubmatchIndex(text); m != nil {
			loc = []int{m[0], m[5]}
		}
	}
	if loc == nil {
		return ""
	}

	after := cleanMessage(text[loc[1]:])
	if after != "" {
		return after
	}
	before := text[:loc[0]]
	if r := reRemind.FindStringIndex(before); r != nil {
		before = before[r[1]:]
	}
	return cleanMessage(before)
}

func cleanMessage(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, " -—–:,.")
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"что ", "чтобы ", "про ", "о "} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	return strings.TrimRight(s, " -—–:,")
}

func ParseClock(s string) (hour, minute int, err error) {
	m := reClock.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return hour, minute, nil
}

// DelayUntilClock is the wait between two wall-clock readings, wrapping past
// midnight.
func DelayUntilClock(userNow, target string) (time.Duration, error) {
	nh, nm, err := ParseClock(userNow)
	if err != nil {
		return 0, err
	}
	th, tm, err := ParseClock(target)
	if err != nil {
		return 0, err
	}
	delta := (th*60 + tm) - (nh*60 + nm)
	if delta < 0 {
		delta += minutesPerDay
	}
	return time.Duration(delta) * time.Minute, nil
}

// OffsetFromLocal derives local−UTC in minutes from the user's wall clock,
// rounded to 15 minutes and kept within real timezone bounds.
func OffsetFromLocal(nowUTC time.Time, local string) (int, error) {
	h, m, err := ParseClock(local)
	if err != nil {
		return 0, err
	}
	nowUTC = nowUTC.UTC()
	diff := (h*60 + m) - (nowUTC.Hour()*60 + nowUTC.Minute())
	for diff > maxOffset {
		diff -= minutesPerDay
	}
	for diff < minOffset {
		diff += minutesPerDay
	}
	return int(math.Round(float64(diff)/15)) * 15, nil
}

// FormatClock renders t as HH:MM on the user's wall clock.
func FormatClock(t time.Time, offset int) string {
	return t.UTC().Add(time.Duration(offset) * time.Minute).Format("15:04")
}

// FormatList renders one "dd.mm HH:MM — text" line per reminder on the
// user's wall clock.
func FormatList(list []Reminder, offset int) string {
	lines := make([]string, 0, len(list))
	for i, r := range list {
		local := r.FireAt.UTC().Add(time.Duration(offset) * time.Minute)
		lines = append(lines, fmt.Sprintf("%d. %s — %s", i+1, local.Format("02.01 15:04"), r.Text))
	}
	return strings.Join(lines, "\n")
}

func FormatOffset(offset int) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, offset/60, offset%60)
}
