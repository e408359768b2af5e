package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelative(t *testing.T) {
	cases := []struct {
		text string
		want time.Duration
		ok   bool
	}{
		{"напомни через 5 минут выпить воды", 5 * time.Minute, true},
		{"Через 10 мин позвонить", 10 * time.Minute, true},
		{"через 1 минуту", time.Minute, true},
		{"через 2 часа тренировка", 2 * time.Hour, true},
		{"через 3 часов", 3 * time.Hour, true},
		{"через час", time.Hour, true},
		{"через минуту", time.Minute, true},
		{"через 0 минут", 0, false},
		{"через неделю", 0, false},
		{"напомни через 200000000 минут выпить воды", 0, false},
		{"через 3000000 часов", 0, false},
		{"через 99999999999999999999 минут", 0, false},
		{"через 8784 часа", MaxDelay, true},
		{"через 8785 часов", 0, false},
		{"просто текст", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, ok := ParseRelative(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRelative_FirstMatchWins(t *testing.T) {
	got, ok := ParseRelative("через 5 минут и через 2 часа")
	require.True(t, ok)
	assert.Equal(t, 5*time.Minute, got)
}

func TestParseAbsolute(t *testing.T) {
	cases := []struct {
		text   string
		h, m   int
		wantOK bool
	}{
		{"напомни в 18:30 позвонить маме", 18, 30, true},
		{"В 7:05 зарядка", 7, 5, true},
		{"в9:00", 9, 0, true},
		{"в 21.15 лекарство", 21, 15, true},
		{"в 25:00", 0, 0, false},
		{"в 12:75", 0, 0, false},
		{"встреча 18:30", 0, 0, false},
		{"в обед", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			h, m, ok := ParseAbsolute(tc.text)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.h, h)
			assert.Equal(t, tc.m, m)
		})
	}
}

func TestResolveAbsolute(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("later today", func(t *testing.T) {
		assert.Equal(t, time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC), ResolveAbsolute(now, 18, 30, 0))
	})
	t.Run("already passed rolls to tomorrow", func(t *testing.T) {
		assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), ResolveAbsolute(now, 9, 0, 0))
	})
	t.Run("user offset", func(t *testing.T) {
		// 12:00 UTC is 15:00 in UTC+3, so 18:30 local is 15:30 UTC.
		assert.Equal(t, time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC), ResolveAbsolute(now, 18, 30, 180))
	})
	t.Run("offset crossing midnight", func(t *testing.T) {
		late := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)
		// 22:00 UTC is 01:00 next day in UTC+3; 08:00 local is 05:00 UTC on the 11th.
		assert.Equal(t, time.Date(2024, 3, 11, 5, 0, 0, 0, time.UTC), ResolveAbsolute(late, 8, 0, 180))
	})
}

func TestExtractMessage(t *testing.T) {
	cases := map[string]string{
		"напомни через 5 минут выпить воды":       "выпить воды",
		"напомни через 2 часа - тренировка":       "тренировка",
		"напомни мне выпить таблетку через 1 час": "выпить таблетку",
		"напомни в 18:30 позвонить маме":          "позвонить маме",
		"напомни мне про встречу в 10:00":         "встречу",
		"через 5 минут":                           "",
		"без времени":                             "",
	}
	for text, want := range cases {
		t.Run(text, func(t *testing.T) {
			assert.Equal(t, want, ExtractMessage(text))
		})
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock(" 07:45 ")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 45, m)

	for _, bad := range []string{"", "7", "24:00", "10:60", "ab:cd", "10:5"} {
		_, _, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidTime, bad)
	}
}

func TestDelayUntilClock(t *testing.T) {
	d, err := DelayUntilClock("10:00", "10:30")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)

	d, err = DelayUntilClock("23:30", "00:15")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, d)

	_, err = DelayUntilClock("bad", "10:00")
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestOffsetFromLocal(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 2, 0, 0, time.UTC)
	cases := map[string]int{
		"15:00": 180,
		"12:00": 0,
		"07:00": -300,
		"01:00": -660,
		"17:30": 330,
	}
	for local, want := range cases {
		got, err := OffsetFromLocal(now, local)
		require.NoError(t, err)
		assert.Equal(t, want, got, local)
	}

	late := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	got, err := OffsetFromLocal(late, "02:00")
	require.NoError(t, err)
	assert.Equal(t, 180, got)

	_, err = OffsetFromLocal(now, "noon")
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestFormat(t *testing.T) {
	at := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "18:30", FormatClock(at, 180))
	assert.Equal(t, "UTC+03:00", FormatOffset(180))
	assert.Equal(t, "UTC-05:30", FormatOffset(-330))
}

func TestFormatList(t *testing.T) {
	list := []Reminder{
		{Text: "вода", FireAt: time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)},
		{Text: "сон", FireAt: time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)},
	}
	assert.Equal(t, "1. 10.03 18:30 — вода\n2. 11.03 01:00 — сон", FormatList(list, 180))
	assert.Empty(t, FormatList(nil, 0))
}
