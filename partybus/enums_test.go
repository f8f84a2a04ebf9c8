package partybus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectOptions(t *testing.T) {
	opts := selectOptions(AllTrainingLevels(), TrainingLevelOnHold)
	require.Len(t, opts, 4)
	assert.Equal(t, "Active", opts[0].Label)
	assert.Equal(t, "1", opts[0].Value)
	require.NotNil(t, opts[0].Emoji)
	assert.Equal(t, emojiCheck, opts[0].Emoji.Name)
	assert.False(t, opts[0].Default)
	assert.True(t, opts[1].Default)

	payOpts := selectOptions(AllCompensationTypes())
	assert.Equal(t, "Paid per hour worked", payOpts[0].Description)
	assert.Nil(t, payOpts[0].Emoji)
}

func TestParseEnum(t *testing.T) {
	level, ok := parseEnum[RequirementLevel]("4")
	assert.True(t, ok)
	assert.Equal(t, RequirementLevelWaived, level)

	_, ok = parseEnum[RequirementLevel]("5")
	assert.False(t, ok)
	_, ok = parseEnum[Weekday]("monday")
	assert.False(t, ok)

	hour, ok := parseEnum[Hour]("0")
	assert.True(t, ok)
	assert.Equal(t, HourUnavailable, hour)
}

func TestEnumLabels(t *testing.T) {
	assert.Equal(t, "On Hold", TrainingLevelOnHold.Label())
	assert.Equal(t, "In Progress", RequirementLevelInProgress.String())
	assert.Equal(t, "Sunday", Sunday.Label())
	assert.Equal(t, "Unknown(9)", Weekday(9).Label())
	assert.Equal(t, ":45", MinuteFortyFive.Label())
	assert.Equal(t, "December", Month(12).Label())
	assert.Equal(t, "Commission", CompensationCommission.Label())
}

func TestHour(t *testing.T) {
	tests := []struct {
		hour  Hour
		label string
	}{
		{HourUnavailable, "Unavailable"},
		{HourMidnight, "12:00 AM"},
		{Hour(2), "1:00 AM"},
		{HourNoon, "12:00 PM"},
		{Hour(14), "1:00 PM"},
		{HourLast, "11:00 PM"},
		{Hour(25), "Unknown(25)"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.label, tc.hour.Label())
	}

	assert.Equal(t, HourMidnight, HourOf(0))
	assert.Equal(t, HourMidnight, HourOf(24))
	assert.Equal(t, HourLast, HourOf(-1))
	assert.Equal(t, 13, Hour(14).Clock())
	assert.Len(t, AllHours(), 25)

	assert.Equal(t, "<t:-22089600:t>", HourMidnight.Timestamp())
	assert.Equal(t, "<t:-22042800:t>", Hour(14).Timestamp())
}

func TestEndHourOptions(t *testing.T) {
	opts := EndHourOptions(Hour(22))
	assert.Equal(t, []Hour{Hour(23), HourLast, HourMidnight}, opts)

	// a shift starting at midnight can't end at midnight
	opts = EndHourOptions(HourMidnight)
	assert.Len(t, opts, 23)
	assert.NotContains(t, opts, HourMidnight)

	assert.Equal(t, []Hour{HourMidnight}, EndHourOptions(HourLast))
}

func TestMinute(t *testing.T) {
	assert.Equal(t, 0, MinuteZero.Minutes())
	assert.Equal(t, 45, MinuteFortyFive.Minutes())
	assert.Equal(t, 0, MinuteUnavailable.Minutes())
	assert.False(t, MinuteUnavailable.Valid())
}

func TestMonthDays(t *testing.T) {
	assert.Len(t, Month(2).Days(), 29)
	assert.Len(t, Month(4).Days(), 30)
	assert.Len(t, Month(11).Days(), 30)
	assert.Len(t, Month(12).Days(), 31)
	assert.Len(t, AllMonths(), 12)
}

func TestDayLabel(t *testing.T) {
	tests := map[Day]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th",
		11: "11th", 12: "12th", 13: "13th",
		21: "21st", 22: "22nd", 23: "23rd", 31: "31st",
	}
	for day, want := range tests {
		assert.Equal(t, want, day.Label())
	}
}

func TestTimezone(t *testing.T) {
	tz, ok := TimezoneByName("est")
	require.True(t, ok)
	assert.Equal(t, "EST", tz.Abbrev())
	assert.Equal(t, "Eastern Standard Time", tz.Label())
	assert.Equal(t, -5, tz.UTCOffset())
	assert.Equal(t, "(UTC-5:00)", tz.Description())

	jst, ok := TimezoneByName("JST")
	require.True(t, ok)
	assert.Equal(t, "(UTC+9:00)", jst.Description())

	gmt, _ := TimezoneByName("GMT")
	assert.Equal(t, "(UTC+0:00)", gmt.Description())

	_, ok = TimezoneByName("XYZ")
	assert.False(t, ok)
	assert.Len(t, AllTimezones(), 23)
	for _, tz := range AllTimezones() {
		assert.True(t, tz.Valid(), tz)
	}
}
