package partybus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	emojiCheck        = "✅"
	emojiCross        = "❌"
	emojiPause        = "⏸️"
	emojiSleep        = "💤"
	emojiConstruction = "🚧"
	emojiStopwatch    = "⏱️"
	emojiGoose        = "🪿"
)

// hourAnchorUnix is 1969-04-20 00:00 UTC. Hour timestamps are offsets
// from it, so discord renders them in each viewer's local time.
const hourAnchorUnix int64 = -22089600

type enumInfo struct {
	label       string
	emoji       string
	description string
}

// enumeration is implemented by the closed int enums below, each backed
// by a static enumInfo table.
type enumeration interface {
	~int
	Label() string
	Emoji() string
	Description() string
	Valid() bool
}

// selectOptions builds select menu options for values, marking any
// value found in selected as the default.
func selectOptions[E enumeration](values []E, selected ...E) []discordgo.SelectMenuOption {
	opts := make([]discordgo.SelectMenuOption, 0, len(values))
	for _, v := range values {
		opt := discordgo.SelectMenuOption{
			Label:       v.Label(),
			Value:       strconv.Itoa(int(v)),
			Description: v.Description(),
		}
		if e := v.Emoji(); e != "" {
			opt.Emoji = &discordgo.ComponentEmoji{Name: e}
		}
		for _, s := range selected {
			if s == v {
				opt.Default = true
			}
		}
		opts = append(opts, opt)
	}
	return opts
}

// parseEnum parses a select option value back into E
func parseEnum[E enumeration](s string) (E, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	v := E(n)
	return v, v.Valid()
}

func lookup[E ~int](table map[E]enumInfo, v E) enumInfo {
	if info, ok := table[v]; ok {
		return info
	}
	return enumInfo{label: fmt.Sprintf("Unknown(%d)", int(v))}
}

// TrainingLevel is the level of a trainer's qualification for a position
type TrainingLevel int

const (
	TrainingLevelActive TrainingLevel = iota + 1
	TrainingLevelOnHold
	TrainingLevelInactive
	TrainingLevelPending
)

var trainingLevels = map[TrainingLevel]enumInfo{
	TrainingLevelActive:   {label: "Active", emoji: emojiCheck},
	TrainingLevelOnHold:   {label: "On Hold", emoji: emojiPause},
	TrainingLevelInactive: {label: "Inactive", emoji: emojiSleep},
	TrainingLevelPending:  {label: "Pending", emoji: emojiConstruction},
}

func AllTrainingLevels() []TrainingLevel {
	return []TrainingLevel{
		TrainingLevelActive,
		TrainingLevelOnHold,
		TrainingLevelInactive,
		TrainingLevelPending,
	}
}

func (l TrainingLevel) Label() string       { return lookup(trainingLevels, l).label }
func (l TrainingLevel) Emoji() string       { return lookup(trainingLevels, l).emoji }
func (l TrainingLevel) Description() string { return "" }
func (l TrainingLevel) String() string      { return l.Label() }
func (l TrainingLevel) Valid() bool {
	_, ok := trainingLevels[l]
	return ok
}

// RequirementLevel is a trainee's progress on a single requirement.
// A requirement with no override has not been started.
type RequirementLevel int

const (
	RequirementLevelComplete RequirementLevel = iota + 1
	RequirementLevelInProgress
	RequirementLevelIncomplete
	RequirementLevelWaived
)

var requirementLevels = map[RequirementLevel]enumInfo{
	RequirementLevelComplete:   {label: "Complete", emoji: emojiCheck},
	RequirementLevelInProgress: {label: "In Progress", emoji: emojiStopwatch},
	RequirementLevelIncomplete: {label: "Incomplete", emoji: emojiCross},
	RequirementLevelWaived:     {label: "Waived", emoji: emojiGoose},
}

func AllRequirementLevels() []RequirementLevel {
	return []RequirementLevel{
		RequirementLevelComplete,
		RequirementLevelInProgress,
		RequirementLevelIncomplete,
		RequirementLevelWaived,
	}
}

func (l RequirementLevel) Label() string       { return lookup(requirementLevels, l).label }
func (l RequirementLevel) Emoji() string       { return lookup(requirementLevels, l).emoji }
func (l RequirementLevel) Description() string { return "" }
func (l RequirementLevel) String() string      { return l.Label() }
func (l RequirementLevel) Valid() bool {
	_, ok := requirementLevels[l]
	return ok
}

type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdays = map[Weekday]enumInfo{
	Monday:    {label: "Monday"},
	Tuesday:   {label: "Tuesday"},
	Wednesday: {label: "Wednesday"},
	Thursday:  {label: "Thursday"},
	Friday:    {label: "Friday"},
	Saturday:  {label: "Saturday"},
	Sunday:    {label: "Sunday"},
}

func AllWeekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

func (d Weekday) Label() string       { return lookup(weekdays, d).label }
func (d Weekday) Emoji() string       { return "" }
func (d Weekday) Description() string { return "" }
func (d Weekday) String() string      { return d.Label() }
func (d Weekday) Valid() bool {
	_, ok := weekdays[d]
	return ok
}

// Hour is an hour-of-day slot. HourUnavailable (0) means no time is
// set; 1 through 24 are 12:00 AM through 11:00 PM.
type Hour int

const (
	HourUnavailable Hour = 0
	HourMidnight    Hour = 1
	HourNoon        Hour = 13
	HourLast        Hour = 24
)

func AllHours() []Hour {
	hours := make([]Hour, 0, 25)
	for h := HourUnavailable; h <= HourLast; h++ {
		hours = append(hours, h)
	}
	return hours
}

// HourOf returns the Hour slot for a 0-23 clock hour
func HourOf(clock int) Hour {
	return Hour(((clock%24)+24)%24 + 1)
}

// Clock returns the 0-23 clock hour
func (h Hour) Clock() int {
	return int(h) - 1
}

func (h Hour) Label() string {
	if h == HourUnavailable {
		return "Unavailable"
	}
	if !h.Valid() {
		return fmt.Sprintf("Unknown(%d)", int(h))
	}
	clock := h.Clock()
	period := "AM"
	if clock >= 12 {
		period = "PM"
	}
	display := clock % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:00 %s", display, period)
}

func (h Hour) Emoji() string       { return "" }
func (h Hour) Description() string { return "" }
func (h Hour) String() string      { return h.Label() }
func (h Hour) Valid() bool         { return h >= HourUnavailable && h <= HourLast }

// Timestamp renders the hour as a discord short-time timestamp
func (h Hour) Timestamp() string {
	return fmt.Sprintf("<t:%d:t>", hourAnchorUnix+int64(h.Clock())*3600)
}

// EndHourOptions lists the hours after start, plus 12:00 AM for
// shifts ending at midnight.
func EndHourOptions(start Hour) []Hour {
	var hours []Hour
	for h := start + 1; h <= HourLast; h++ {
		hours = append(hours, h)
	}
	if start != HourMidnight {
		hours = append(hours, HourMidnight)
	}
	return hours
}

// Minute is a quarter-hour offset. MinuteUnavailable (0) is unset.
type Minute int

const (
	MinuteUnavailable Minute = iota
	MinuteZero
	MinuteFifteen
	MinuteThirty
	MinuteFortyFive
)

var minutes = map[Minute]enumInfo{
	MinuteZero:      {label: ":00"},
	MinuteFifteen:   {label: ":15"},
	MinuteThirty:    {label: ":30"},
	MinuteFortyFive: {label: ":45"},
}

func AllMinutes() []Minute {
	return []Minute{MinuteZero, MinuteFifteen, MinuteThirty, MinuteFortyFive}
}

func (m Minute) Label() string       { return lookup(minutes, m).label }
func (m Minute) Emoji() string       { return "" }
func (m Minute) Description() string { return "" }
func (m Minute) String() string      { return m.Label() }
func (m Minute) Valid() bool {
	_, ok := minutes[m]
	return ok
}

// Minutes returns the minute value (0, 15, 30 or 45)
func (m Minute) Minutes() int {
	if !m.Valid() {
		return 0
	}
	return (int(m) - 1) * 15
}

type Month int

var months = map[Month]enumInfo{
	1: {label: "January"}, 2: {label: "February"}, 3: {label: "March"},
	4: {label: "April"}, 5: {label: "May"}, 6: {label: "June"},
	7: {label: "July"}, 8: {label: "August"}, 9: {label: "September"},
	10: {label: "October"}, 11: {label: "November"}, 12: {label: "December"},
}

func AllMonths() []Month {
	m := make([]Month, 12)
	for i := range m {
		m[i] = Month(i + 1)
	}
	return m
}

func (m Month) Label() string       { return lookup(months, m).label }
func (m Month) Emoji() string       { return "" }
func (m Month) Description() string { return "" }
func (m Month) String() string      { return m.Label() }
func (m Month) Valid() bool {
	_, ok := months[m]
	return ok
}

// Days returns the selectable days of the month. February always
// offers the 29th; the year is resolved later.
func (m Month) Days() []Day {
	last := 31
	switch m {
	case 2:
		last = 29
	case 4, 6, 9, 11:
		last = 30
	}
	days := make([]Day, last)
	for i := range days {
		days[i] = Day(i + 1)
	}
	return days
}

// Day is a day of the month, 1-31
type Day int

func (d Day) Label() string {
	suffix := "th"
	switch int(d) {
	case 1, 21, 31:
		suffix = "st"
	case 2, 22:
		suffix = "nd"
	case 3, 23:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", int(d), suffix)
}

func (d Day) Emoji() string       { return "" }
func (d Day) Description() string { return "" }
func (d Day) String() string      { return d.Label() }
func (d Day) Valid() bool         { return d >= 1 && d <= 31 }

type Timezone int

type timezoneInfo struct {
	abbrev string
	name   string
	offset int
}

var timezones = map[Timezone]timezoneInfo{
	1:  {"MIT", "Midway Island Time", -11},
	2:  {"HST", "Hawaii Standard Time", -10},
	3:  {"AST", "Alaska Standard Time", -9},
	4:  {"PST", "Pacific Standard Time", -8},
	5:  {"MST", "Mountain Standard Time", -7},
	6:  {"CST", "Central Standard Time", -6},
	7:  {"EST", "Eastern Standard Time", -5},
	8:  {"PRT", "Puerto Rico and US Virgin Islands Time", -4},
	9:  {"AGT", "Argentina Standard Time", -3},
	10: {"CAT", "Central African Time", -2},
	11: {"GMT", "UTC/Greenwich Mean Time", 0},
	12: {"ECT", "European Central Time", 1},
	13: {"EET", "Eastern European Time", 2},
	14: {"EAT", "Eastern African Time", 3},
	15: {"NET", "Near East Time", 4},
	16: {"PLT", "Pakistan Lahore Time", 5},
	17: {"BST", "Bangladesh Standard Time", 6},
	18: {"VST", "Vietnam Standard Time", 7},
	19: {"CTT", "China Taiwan Time", 8},
	20: {"JST", "Japan Standard Time", 9},
	21: {"AET", "Australia Eastern Time", 10},
	22: {"SST", "Solomon Standard Time", 11},
	23: {"NST", "New Zealand Standard Time", 12},
}

func AllTimezones() []Timezone {
	tz := make([]Timezone, len(timezones))
	for i := range tz {
		tz[i] = Timezone(i + 1)
	}
	return tz
}

// TimezoneByName finds a Timezone by its abbreviation, case-insensitive
func TimezoneByName(abbrev string) (Timezone, bool) {
	for tz, info := range timezones {
		if strings.EqualFold(info.abbrev, abbrev) {
			return tz, true
		}
	}
	return 0, false
}

func (t Timezone) Label() string { return timezones[t].name }
func (t Timezone) Emoji() string { return "" }
func (t Timezone) Abbrev() string {
	return timezones[t].abbrev
}
func (t Timezone) String() string { return t.Abbrev() }
func (t Timezone) Valid() bool {
	_, ok := timezones[t]
	return ok
}

// UTCOffset is the zone's offset from UTC, in hours
func (t Timezone) UTCOffset() int {
	return timezones[t].offset
}

func (t Timezone) Description() string {
	if !t.Valid() {
		return ""
	}
	sign := "+"
	if t.UTCOffset() < 0 {
		sign = ""
	}
	return fmt.Sprintf("(UTC%s%d:00)", sign, t.UTCOffset())
}

type CompensationType int

const (
	CompensationHourly CompensationType = iota + 1
	CompensationFlat
	CompensationCommission
	CompensationOther
)

var compensationTypes = map[CompensationType]enumInfo{
	CompensationHourly:     {label: "Hourly", description: "Paid per hour worked"},
	CompensationFlat:       {label: "Flat", description: "A single payment for the job"},
	CompensationCommission: {label: "Commission", description: "A share of sales or tips"},
	CompensationOther:      {label: "Other", description: "Described in the job details"},
}

func AllCompensationTypes() []CompensationType {
	return []CompensationType{
		CompensationHourly,
		CompensationFlat,
		CompensationCommission,
		CompensationOther,
	}
}

func (c CompensationType) Label() string       { return lookup(compensationTypes, c).label }
func (c CompensationType) Emoji() string       { return "" }
func (c CompensationType) Description() string { return lookup(compensationTypes, c).description }
func (c CompensationType) String() string      { return c.Label() }
func (c CompensationType) Valid() bool {
	_, ok := compensationTypes[c]
	return ok
}
