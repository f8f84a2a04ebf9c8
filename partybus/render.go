package partybus

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	embedColorDefault = 0x9B59B6
	embedColorSuccess = 0x2ECC71

	embedFieldValueMaxLength = 1024
	embedDescriptionWidth    = 25
)

func newEmbed(title string, description string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       embedColorDefault,
		Fields:      fields,
	}
}

// promptEmbed is a wizard step's instructions, underlined to the width
// of the title
func promptEmbed(title string, lines ...string) *discordgo.MessageEmbed {
	description := strings.Join(lines, "\n") + "\n" + drawLine("", 0, embedDescriptionWidth)
	return newEmbed(title, description)
}

func embedField(name string, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{
		Name:   name,
		Value:  ellipsize(noneIfEmpty(value), embedFieldValueMaxLength),
		Inline: inline,
	}
}

// bulletList renders items as a markdown list
func bulletList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "* " + strings.Join(items, "\n* ")
}

// availabilityTimestamp renders an hour stored in the canonical
// timezone as a discord timestamp, so each viewer sees their local time
func availabilityTimestamp(h Hour, canonical Timezone) string {
	utc, _ := TimezoneByName("GMT")
	return shiftHour(h, canonical, utc).Timestamp()
}

// availabilityLines lists every weekday, with its hours or "Not Available"
func availabilityLines(avail []Availability, canonical Timezone) []string {
	lines := make([]string, 0, len(AllWeekdays()))
	for _, d := range AllWeekdays() {
		idx := slices.IndexFunc(avail, func(a Availability) bool { return a.Weekday == d })
		if idx < 0 || avail[idx].StartSlot == HourUnavailable {
			lines = append(lines, fmt.Sprintf("%s: Not Available", d.Label()))
			continue
		}
		lines = append(
			lines,
			fmt.Sprintf(
				"%s: %s - %s",
				d.Label(),
				availabilityTimestamp(avail[idx].StartSlot, canonical),
				availabilityTimestamp(avail[idx].EndSlot, canonical),
			),
		)
	}
	return lines
}

// tuserStatusEmbed summarizes a user's qualifications, requested
// trainings and availability. Notes are only included for admins.
func tuserStatusEmbed(
	u TUser,
	trainings []Training,
	positionName func(string) string,
	canonical Timezone,
	admin bool,
) *discordgo.MessageEmbed {
	title := "User Status for: " + u.DisplayName()

	quals := make([]string, 0, len(u.Qualifications))
	for _, q := range u.Qualifications {
		quals = append(quals, fmt.Sprintf("%s\n-- *(%s)*", positionName(q.PositionID), q.Level.Label()))
	}
	slices.Sort(quals)

	requested := make([]string, 0, len(trainings))
	for _, t := range trainings {
		line := positionName(t.PositionID)
		if t.Matched() {
			line += " - " + mention(t.Trainer())
		}
		requested = append(requested, line)
	}

	embed := newEmbed(
		title,
		drawLine(title, 0, embedDescriptionWidth/2),
		embedField("__Trainer Qualifications__", bulletList(quals), true),
		embedField("__Trainings Requested__", bulletList(requested), true),
		embedField("__Availability__", strings.Join(availabilityLines(u.Availability, canonical), "\n"), false),
	)
	if admin {
		embed.Fields = append(embed.Fields, embedField("__Internal Notes__", u.Notes, false))
	}
	if u.Config.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: u.Config.ImageURL}
	}
	return embed
}

func requirementLines(reqs []Requirement) []string {
	lines := make([]string, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, r.Description)
	}
	return lines
}

func roleOrNone(roleID string) string {
	if roleID == "" {
		return ""
	}
	return roleMention(roleID)
}

// positionStatusEmbed shows a position's roles and requirements. The
// global requirements every position shares are listed last.
func positionStatusEmbed(p Position, global []Requirement) *discordgo.MessageEmbed {
	title := "Position Status for: " + p.Name
	reqs := requirementLines(p.Requirements)
	for _, r := range global {
		reqs = append(reqs, r.Description+" **(Global)**")
	}
	return newEmbed(
		title,
		drawLine(title, 0, embedDescriptionWidth/2),
		embedField("__Trainer Role__", roleOrNone(p.TrainerRoleID), true),
		embedField("__Trainee Role__", roleOrNone(p.TraineeRoleID), true),
		embedField("__Training Requirements__", bulletList(reqs), false),
	)
}

// positionsEmbed is the overview shown before a position is picked
func positionsEmbed(positions []Position) *discordgo.MessageEmbed {
	names := make([]string, 0, len(positions))
	for _, p := range positions {
		names = append(names, p.Name)
	}
	return newEmbed(
		"Position Status",
		"To view or edit info on specific position,\n"+
			"select that job from the dropdown below.\n"+
			drawLine("", 0, embedDescriptionWidth),
		embedField("__Current Registered Jobs__", bulletList(names), false),
	)
}

func globalRequirementsEmbed(reqs []Requirement) *discordgo.MessageEmbed {
	return newEmbed(
		"Global Job Training Requirements",
		"These requirements are applied to all jobs.\n"+drawLine("", 0, embedDescriptionWidth),
		embedField("__Current Global Requirements__", bulletList(requirementLines(reqs)), false),
	)
}

// trainingProgressEmbed lists each requirement that applies to a
// training with the trainee's progress on it
func trainingProgressEmbed(
	t Training,
	positionName string,
	traineeName string,
	reqs []Requirement,
) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(reqs))
	for _, r := range reqs {
		level, ok := t.Overrides[r.ID]
		if !ok {
			lines = append(lines, fmt.Sprintf("%s %s", emojiGoose, r.Description))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s *(%s)*", level.Emoji(), r.Description, level.Label()))
	}
	trainer := "Unassigned"
	if t.Matched() {
		trainer = mention(t.Trainer())
	}
	title := fmt.Sprintf("%s: %s", traineeName, positionName)
	return newEmbed(
		title,
		drawLine(title, 0, embedDescriptionWidth/2),
		embedField("__Trainer__", trainer, true),
		embedField("__Requirements__", strings.Join(lines, "\n"), false),
	)
}

// trainerAssignedEmbed is sent to a trainee when a trainer picks them up
func trainerAssignedEmbed(trainerID string, trainerName string, positionName string) *discordgo.MessageEmbed {
	embed := newEmbed(
		"__Trainer Assigned__",
		fmt.Sprintf(
			"Good news! `%s` (%s) will be training you for **%s**.\n"+
				"They'll reach out to you soon to get started.",
			trainerName,
			mention(trainerID),
			positionName,
		),
	)
	embed.Color = embedColorSuccess
	embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return embed
}

func userConfigEmbed(u TUser) *discordgo.MessageEmbed {
	pings := emojiCross
	if u.Config.JobPings {
		pings = emojiCheck
	}
	embed := newEmbed(
		"User Configuration for __"+u.DisplayName()+"__",
		drawLine("", 0, 35),
		embedField("__Job Pings__", pings, true),
		embedField("__Image URL__", u.Config.ImageURL, true),
	)
	if u.Config.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: u.Config.ImageURL}
	}
	return embed
}
