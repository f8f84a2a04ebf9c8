package partybus

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextLength(t *testing.T) {
	assert.InDelta(t, 2.5, textLength("M@"), 0.001)
	assert.InDelta(t, 1.5, textLength("ab"), 0.001)
	// unknown glyphs don't count
	assert.InDelta(t, 0, textLength("日本"), 0.001)
}

func TestDrawLine(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		numEmoji int
		extra    float64
		want     int
	}{
		{name: "empty", want: 0},
		{name: "rounds up", text: "ab", want: 2},
		{name: "emoji", numEmoji: 1, want: 2},
		{name: "extra", text: "ab", extra: 3, want: 5},
		{name: "negative", text: "a", extra: -5, want: 0},
	}
	for _, tc := range tests {
		t.Run(
			tc.name, func(t *testing.T) {
				assert.Equal(t, strings.Repeat(drawLineChar, tc.want), drawLine(tc.text, tc.numEmoji, tc.extra))
			},
		)
	}
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "the quick\nbrown fox", wrapText("the quick brown fox", 9))
	assert.Equal(t, "a\nextraordinarily\nb", wrapText("a extraordinarily b", 5))
	assert.Equal(t, "", wrapText("   ", 10))
	assert.Equal(t, "short", wrapText("  short  ", 10))
}

func TestTitleize(t *testing.T) {
	tests := map[string]string{
		"bartender's helper": "Bartender's Helper",
		"HEAD DJ":            "Head Dj",
		"rock-n-roll":        "Rock-N-Roll",
		"  door  staff ":     "  Door  Staff ",
		"2nd shift":          "2Nd Shift",
	}
	for input, want := range tests {
		assert.Equal(t, want, titleize(input), input)
	}
}

func TestTryParseInt(t *testing.T) {
	tests := []struct {
		input string
		want  int64
		ok    bool
	}{
		{input: "42", want: 42, ok: true},
		{input: " 7 ", want: 7, ok: true},
		{input: "12/15", want: 12, ok: true},
		{input: "-3", want: -3, ok: true},
		{input: "abc"},
		{input: "x/2"},
		{input: ""},
	}
	for _, tc := range tests {
		got, ok := tryParseInt(tc.input)
		assert.Equal(t, tc.ok, ok, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}
}

func TestEllipsize(t *testing.T) {
	assert.Equal(t, "abc", ellipsize("abc", 5))
	assert.Equal(t, "ab...", ellipsize("abcdef", 5))
	assert.Equal(t, "ab", ellipsize("abcdef", 2))

	label := selectLabel(strings.Repeat("a", 60))
	assert.Equal(t, selectLabelMaxRunes, len([]rune(label)))
	assert.True(t, strings.HasSuffix(label, ellipsis))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "hi", truncate("hi", 4))
}

func TestDiscordTimestamp(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	assert.Equal(t, "<t:1700000000:R>", discordTimestamp(ts, "R"))
	assert.Equal(t, "<t:1700000000>", discordTimestamp(ts, ""))
}

func TestShiftHour(t *testing.T) {
	est, ok := TimezoneByName("EST")
	require.True(t, ok)
	gmt, ok := TimezoneByName("GMT")
	require.True(t, ok)
	pst, ok := TimezoneByName("PST")
	require.True(t, ok)

	eightPM := HourOf(20)
	assert.Equal(t, "1:00 AM", shiftHour(eightPM, est, gmt).Label())
	assert.Equal(t, "11:00 PM", shiftHour(eightPM, pst, est).Label())
	assert.Equal(t, eightPM, shiftHour(eightPM, est, est))
	assert.Equal(t, HourUnavailable, shiftHour(HourUnavailable, est, gmt))
}

func TestZoneLocation(t *testing.T) {
	est, _ := TimezoneByName("EST")
	loc := zoneLocation(est)
	name, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, "EST", name)
	assert.Equal(t, -5*3600, offset)
}

func TestMentions(t *testing.T) {
	assert.Equal(t, "<@123>", mention("123"))
	assert.Equal(t, "<@&123>", roleMention("123"))
	assert.Equal(t, "<#123>", channelMention("123"))
	assert.Equal(t, "`None`", noneIfEmpty("  "))
	assert.Equal(t, "x", noneIfEmpty("x"))
}
