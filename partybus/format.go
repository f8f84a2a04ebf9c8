package partybus

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	drawLineChar        = "═"
	drawLineEmojiWidth  = 1.95
	selectLabelMaxRunes = 50
	ellipsis            = "..."
)

// glyphWidths approximates discord's proportional font, relative to
// the width of drawLineChar.
var glyphWidths = func() map[rune]float64 {
	groups := []struct {
		chars string
		width float64
	}{
		{"'", 0.25},
		{"ij. ", 0.30},
		{"I!;|,", 0.35},
		{"fl`[]", 0.40},
		{"()t", 0.45},
		{"r1{}\"\\/", 0.50},
		{"sz*-", 0.60},
		{"x^", 0.65},
		{"acegkvyJ7_=+~<>?", 0.70},
		{"nou25689", 0.75},
		{"bdhpqEFLSTZ34$", 0.80},
		{"PVXY0", 0.85},
		{"ABCDKR#&", 0.90},
		{"GHU", 0.95},
		{"wNOQ%", 1.0},
		{"mW", 1.15},
		{"M", 1.2},
		{"@", 1.3},
	}
	m := map[rune]float64{}
	for _, g := range groups {
		for _, r := range g.chars {
			m[r] = g.width
		}
	}
	return m
}()

// textLength returns the approximate rendered width of s. Characters
// without a known width count as zero.
func textLength(s string) float64 {
	var total float64
	for _, r := range s {
		total += glyphWidths[r]
	}
	return total
}

// drawLine returns a horizontal rule wide enough to underline text.
// extra pads the line, and each emoji counts as a fixed width.
func drawLine(text string, numEmoji int, extra float64) string {
	n := math.Ceil(extra + textLength(text) + drawLineEmojiWidth*float64(numEmoji))
	if n < 0 {
		n = 0
	}
	return strings.Repeat(drawLineChar, int(n))
}

// wrapText breaks s into lines of at most maxChars, splitting on
// whitespace. Words longer than maxChars get a line of their own.
func wrapText(s string, maxChars int) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(w) > maxChars {
			lines = append(lines, current)
			current = w
			continue
		}
		current += " " + w
	}
	lines = append(lines, current)
	return strings.Join(lines, "\n")
}

var titleWordPattern = regexp.MustCompile(`[A-Za-z]+('[A-Za-z]+)?`)

// titleize capitalizes the first letter of each word and lower-cases
// the rest. Apostrophes stay inside words, so "bartender's" becomes
// "Bartender's".
func titleize(s string) string {
	return titleWordPattern.ReplaceAllStringFunc(
		s, func(word string) string {
			runes := []rune(strings.ToLower(word))
			runes[0] = unicode.ToUpper(runes[0])
			return string(runes)
		},
	)
}

// tryParseInt parses s as an integer. A fraction-like "a/b" yields a.
func tryParseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if before, _, found := strings.Cut(s, "/"); found {
		if n, err := strconv.ParseInt(strings.TrimSpace(before), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// ellipsize shortens s to at most n runes, ending in an ellipsis when
// anything was cut.
func ellipsize(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= len(ellipsis) {
		return truncate(s, n)
	}
	return truncate(s, n-len(ellipsis)) + ellipsis
}

// selectLabel bounds s to the select option label limit
func selectLabel(s string) string {
	return ellipsize(s, selectLabelMaxRunes)
}

// truncate shortens the input string to n characters
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// discordTimestamp formats t as a discord timestamp, rendered in
// each viewer's local time. style is one of t, T, d, D, f, F, R, or
// empty for the default.
func discordTimestamp(t time.Time, style string) string {
	if style == "" {
		return fmt.Sprintf("<t:%d>", t.Unix())
	}
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

// shiftHour converts an hour slot from one timezone to another.
// HourUnavailable is returned unchanged.
func shiftHour(h Hour, from, to Timezone) Hour {
	if h == HourUnavailable {
		return h
	}
	return HourOf(h.Clock() - from.UTCOffset() + to.UTCOffset())
}

// zoneLocation returns a fixed-offset location for tz
func zoneLocation(tz Timezone) *time.Location {
	return time.FixedZone(tz.Abbrev(), tz.UTCOffset()*3600)
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func roleMention(roleID string) string {
	return "<@&" + roleID + ">"
}

func channelMention(channelID string) string {
	return "<#" + channelID + ">"
}

// noneIfEmpty returns the code-formatted "None" placeholder for empty s
func noneIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "`None`"
	}
	return s
}
