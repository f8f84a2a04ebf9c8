package partybus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/datatypes"
)

const (
	actionSetVenue       = "venue"
	actionSetDescription = "description"
	actionSetPayRate     = "pay_rate"

	// select custom ID suffixes, so each select on a step is distinguishable
	selectPosition  = "sel_position"
	selectMonth     = "sel_month"
	selectDayEarly  = "sel_day1"
	selectDayLate   = "sel_day2"
	selectTimezone  = "sel_tz"
	selectStartHour = "sel_start_h"
	selectStartMin  = "sel_start_m"
	selectEndHour   = "sel_end_h"
	selectEndMin    = "sel_end_m"
	selectPayType   = "sel_pay"

	inputVenue       = "venue"
	inputDescription = "description"
	inputPayRate     = "pay_rate"

	venueMaxLength          = 80
	jobDescriptionMaxLength = 1000

	// days past this go in the second day select
	daySelectSplit = 15
)

// resolveJobDate finds the next occurrence of month/day on or after
// today in loc
func resolveJobDate(now time.Time, month Month, day Day, loc *time.Location) (time.Time, error) {
	today := now.In(loc)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	year := today.Year()
	candidate := time.Date(year, time.Month(month), int(day), 0, 0, 0, 0, loc)
	if candidate.Before(todayDate) {
		year++
		candidate = time.Date(year, time.Month(month), int(day), 0, 0, 0, 0, loc)
	}
	// time.Date normalizes overflow, e.g. February 30th to March 2nd
	if candidate.Month() != time.Month(month) || candidate.Day() != int(day) {
		return time.Time{}, newInvalidDateError(month, day)
	}
	return candidate, nil
}

// jobSchedule is the schedule as the poster entered it
type jobSchedule struct {
	Month       Month
	Day         Day
	StartHour   Hour
	StartMinute Minute
	EndHour     Hour
	EndMinute   Minute
	Timezone    Timezone
}

func (s jobSchedule) complete() bool {
	return s.Month.Valid() && s.Day.Valid() && s.Timezone.Valid() &&
		s.StartHour != HourUnavailable && s.StartMinute.Valid() &&
		s.EndHour != HourUnavailable && s.EndMinute.Valid()
}

// normalize converts the schedule to the canonical timezone, returning
// the date and times to store
func (s jobSchedule) normalize(now time.Time, canonical Timezone) (
	date datatypes.Date,
	start datatypes.Time,
	end datatypes.Time,
	err error,
) {
	from := zoneLocation(s.Timezone)
	day, err := resolveJobDate(now, s.Month, s.Day, from)
	if err != nil {
		return date, start, end, err
	}

	startAt := day.Add(time.Duration(s.StartHour.Clock())*time.Hour + time.Duration(s.StartMinute.Minutes())*time.Minute)
	endAt := day.Add(time.Duration(s.EndHour.Clock())*time.Hour + time.Duration(s.EndMinute.Minutes())*time.Minute)
	if !endAt.After(startAt) {
		endAt = endAt.Add(24 * time.Hour)
	}

	to := zoneLocation(canonical)
	startAt = startAt.In(to)
	endAt = endAt.In(to)
	date = datatypes.Date(time.Date(startAt.Year(), startAt.Month(), startAt.Day(), 0, 0, 0, 0, time.UTC))
	start = datatypes.NewTime(startAt.Hour(), startAt.Minute(), 0, 0)
	end = datatypes.NewTime(endAt.Hour(), endAt.Minute(), 0, 0)
	return date, start, end, nil
}

func compensationText(rate int, payType CompensationType) string {
	return fmt.Sprintf("**%d** *(%s)*", rate, payType.Label())
}

// jobEmbed renders a job posting. Times are discord timestamps, so
// they display in each viewer's timezone.
func jobEmbed(j Job, positionName string) *discordgo.MessageEmbed {
	start, end := j.Window()
	title := "Job Posting: " + positionName
	applicant := "Open! Click below to accept."
	if j.Taken() {
		applicant = mention(*j.ApplicantID)
	}
	embed := newEmbed(
		title,
		drawLine(title, 0, embedDescriptionWidth/2),
		embedField("__Venue__", j.Venue, true),
		embedField("__Posted By__", mention(j.RequesterID), true),
		embedField(
			"__When__",
			fmt.Sprintf("%s - %s", discordTimestamp(start, "F"), discordTimestamp(end, "t")),
			false,
		),
		embedField("__Compensation__", compensationText(j.PayRate, j.PayType), true),
		embedField("__Accepted By__", applicant, true),
		embedField("__Description__", j.Description, false),
	)
	if j.Taken() {
		embed.Color = embedColorSuccess
	}
	return embed
}

func jobComponents(j Job) []discordgo.MessageComponent {
	label := "Accept Job"
	if j.Taken() {
		label = "Job Taken"
	}
	return buttonRows(button(joinCustomID(customIDJobAccept, j.ID), label, discordgo.SuccessButton, j.Taken()))
}

type jobStep int

const (
	jobIntro jobStep = iota
	jobDetails
	jobDate
	jobTime
	jobCompensation
	jobReview
	jobPosted
)

// jobWizard collects a job posting one step at a time. The job is
// only saved and posted on the final confirmation.
type jobWizard struct {
	p       *PartyBus
	ownerID string
	now     func() time.Time

	step      jobStep
	modalKind string

	positionID  string
	venue       string
	description string
	schedule    jobSchedule
	payRate     int
	payType     CompensationType
	payRateSet  bool

	posted Job
}

func newJobWizard(p *PartyBus, ownerID string) *jobWizard {
	return &jobWizard{p: p, ownerID: ownerID, now: time.Now}
}

func (w *jobWizard) owner() string {
	return w.ownerID
}

// canContinue reports whether the current step has everything it needs
func (w *jobWizard) canContinue() bool {
	switch w.step {
	case jobDetails:
		return w.positionID != "" && w.venue != ""
	case jobDate:
		return w.schedule.Month.Valid() && w.schedule.Day.Valid() && w.schedule.Timezone.Valid()
	case jobTime:
		return w.schedule.complete()
	case jobCompensation:
		return w.payType.Valid() && w.payRateSet
	default:
		return true
	}
}

// draft assembles the job from the collected fields
func (w *jobWizard) draft() (Job, error) {
	canonical := w.p.canonicalTimezone()
	date, start, end, err := w.schedule.normalize(w.now(), canonical)
	if err != nil {
		return Job{}, err
	}
	return Job{
		PositionID:  w.positionID,
		Venue:       w.venue,
		Description: w.description,
		Date:        date,
		StartTime:   start,
		EndTime:     end,
		Timezone:    canonical.Abbrev(),
		PayRate:     w.payRate,
		PayType:     w.payType,
		RequesterID: w.ownerID,
	}, nil
}

func (w *jobWizard) progressEmbed(title string, lines ...string) *discordgo.MessageEmbed {
	embed := promptEmbed(title, lines...)
	position := ""
	if w.positionID != "" {
		position = w.p.store.positionName(w.positionID)
	}
	embed.Fields = append(
		embed.Fields,
		embedField("__Position__", position, true),
		embedField("__Venue__", w.venue, true),
		embedField("__Description__", w.description, false),
	)
	if w.step >= jobDate && w.schedule.Month.Valid() {
		date := w.schedule.Month.Label()
		if w.schedule.Day.Valid() {
			date += " " + w.schedule.Day.Label()
		}
		if w.schedule.Timezone.Valid() {
			date += " (" + w.schedule.Timezone.Abbrev() + ")"
		}
		embed.Fields = append(embed.Fields, embedField("__Date__", date, true))
	}
	if w.step >= jobTime && w.schedule.StartHour != HourUnavailable {
		times := clockLabel(w.schedule.StartHour, w.schedule.StartMinute)
		if w.schedule.EndHour != HourUnavailable {
			times += " - " + clockLabel(w.schedule.EndHour, w.schedule.EndMinute)
		}
		embed.Fields = append(embed.Fields, embedField("__Hours__", times, true))
	}
	if w.step >= jobCompensation && w.payType.Valid() {
		pay := w.payType.Label()
		if w.payRateSet {
			pay = compensationText(w.payRate, w.payType)
		}
		embed.Fields = append(embed.Fields, embedField("__Compensation__", pay, true))
	}
	return embed
}

// clockLabel renders an hour and quarter-hour as e.g. "9:30 PM"
func clockLabel(h Hour, m Minute) string {
	label := h.Label()
	if !m.Valid() {
		return label
	}
	return strings.Replace(label, ":00", m.Label(), 1)
}

func (w *jobWizard) navigation(sid string) []discordgo.MessageComponent {
	return buttonRows(
		button(wizardCustomID(sid, actionBack), "Back", discordgo.SecondaryButton, w.step <= jobDetails),
		button(wizardCustomID(sid, actionContinue), "Continue", discordgo.PrimaryButton, !w.canContinue()),
		cancelButton(sid),
	)
}

func (w *jobWizard) render(sid string) *discordgo.InteractionResponseData {
	sel := func(kind string, placeholder string, opts []discordgo.SelectMenuOption) discordgo.MessageComponent {
		return selectRow(wizardCustomID(sid, kind), placeholder, opts, 1)
	}
	hours := AllHours()[1:]

	switch w.step {
	case jobDetails:
		var current []discordgo.SelectMenuOption
		for _, opt := range positionOptions(w.p.store.Positions(), nil) {
			opt.Default = opt.Value == w.positionID
			current = append(current, opt)
		}
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				w.progressEmbed("Job Details", "Select the job type, then set the venue and description."),
			},
			Components: append(
				[]discordgo.MessageComponent{
					sel(selectPosition, "Select the job type...", current),
				},
				append(
					buttonRows(
						button(wizardCustomID(sid, actionSetVenue), "Set Venue", discordgo.PrimaryButton, false),
						button(wizardCustomID(sid, actionSetDescription), "Set Description", discordgo.PrimaryButton, false),
					),
					w.navigation(sid)...,
				)...,
			),
		}
	case jobDate:
		days := w.schedule.Month.Days()
		if !w.schedule.Month.Valid() {
			days = nil
		}
		early := days[:min(daySelectSplit, len(days))]
		late := days[min(daySelectSplit, len(days)):]
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				w.progressEmbed("Job Date", "Select the month and day of the job, and your timezone."),
			},
			Components: append(
				[]discordgo.MessageComponent{
					sel(selectMonth, "Select the month of the job opening...", selectOptions(AllMonths(), w.schedule.Month)),
					sel(selectDayEarly, "Select the day of the open shift...", selectOptions(early, w.schedule.Day)),
					sel(selectDayLate, "...or a day later in the month", selectOptions(late, w.schedule.Day)),
					sel(selectTimezone, "Select your timezone...", selectOptions(AllTimezones(), w.schedule.Timezone)),
				},
				w.navigation(sid)...,
			),
		}
	case jobTime:
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				w.progressEmbed("Job Hours", "Select the start and end time of the job."),
			},
			Components: append(
				[]discordgo.MessageComponent{
					sel(selectStartHour, "Select the hour of the job's start time...", selectOptions(hours, w.schedule.StartHour)),
					sel(selectStartMin, "Select the minute of the job's start time...", selectOptions(AllMinutes(), w.schedule.StartMinute)),
					sel(selectEndHour, "Select the hour of the job's end time...", selectOptions(hours, w.schedule.EndHour)),
					sel(selectEndMin, "Select the minute of the job's end time...", selectOptions(AllMinutes(), w.schedule.EndMinute)),
				},
				w.navigation(sid)...,
			),
		}
	case jobCompensation:
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				w.progressEmbed("Job Compensation", "Select how the job pays, then set the rate."),
			},
			Components: append(
				[]discordgo.MessageComponent{
					sel(selectPayType, "Select the pay type...", selectOptions(AllCompensationTypes(), w.payType)),
				},
				append(
					buttonRows(button(wizardCustomID(sid, actionSetPayRate), "Set Pay Rate", discordgo.PrimaryButton, false)),
					w.navigation(sid)...,
				)...,
			),
		}
	case jobReview:
		job, err := w.draft()
		if err != nil {
			return &discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{errorEmbed(err)},
				Components: w.navigation(sid),
			}
		}
		preview := jobEmbed(job, w.p.store.positionName(job.PositionID))
		preview.Title = "Preview: " + preview.Title
		return &discordgo.InteractionResponseData{
			Content: "Review your job post. Click **Confirm** to post it.",
			Embeds:  []*discordgo.MessageEmbed{preview},
			Components: buttonRows(
				button(wizardCustomID(sid, actionBack), "Back", discordgo.SecondaryButton, false),
				button(wizardCustomID(sid, actionConfirm), "Confirm", discordgo.SuccessButton, false),
				cancelButton(sid),
			),
		}
	case jobPosted:
		embed := newEmbed("Job Posted!", fmt.Sprintf("Your job has been posted to %s.", channelMention(w.posted.ChannelID)))
		embed.Color = embedColorSuccess
		return &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	default:
	}

	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{
			newEmbed(
				"Create a New Job Post",
				"You must complete **all** of the following prompts to create "+
					"a new job post.\n\n"+
					"__Required Parameters__\n"+
					"*(You might want to have these handy during the process!)*\n\n"+
					"* `Job Type`\n"+
					"* `Venue Name`\n"+
					"* `Job Description`\n"+
					"* `Job Compensation`\n"+
					"* `Job Date & Hours`\n"+
					drawLine("", 0, 37)+"\n\n"+
					"**When you are ready to begin, click the **Continue** button below.**",
			),
		},
		Components: buttonRows(
			button(wizardCustomID(sid, actionContinue), "Continue", discordgo.PrimaryButton, false),
			cancelButton(sid),
		),
	}
}

func (w *jobWizard) modal(sid string) *discordgo.InteractionResponseData {
	customID := wizardCustomID(sid, actionModalSubmit)
	switch w.modalKind {
	case actionSetDescription:
		return textInputModal(
			customID,
			"Enter Job Description",
			discordgo.TextInput{
				CustomID:    inputDescription,
				Label:       "Description Text",
				Style:       discordgo.TextInputParagraph,
				Placeholder: "eg. 'Pants Optional'",
				Value:       w.description,
				MaxLength:   jobDescriptionMaxLength,
			},
		)
	case actionSetPayRate:
		value := ""
		if w.payRateSet {
			value = fmt.Sprint(w.payRate)
		}
		return textInputModal(
			customID,
			"Enter Pay Rate",
			discordgo.TextInput{
				CustomID:    inputPayRate,
				Label:       "Pay Rate",
				Style:       discordgo.TextInputShort,
				Placeholder: "eg. '100000'",
				Value:       value,
				Required:    true,
				MaxLength:   12,
			},
		)
	default:
	}
	return textInputModal(
		customID,
		"Enter Venue Name",
		discordgo.TextInput{
			CustomID:    inputVenue,
			Label:       "Venue Name",
			Style:       discordgo.TextInputShort,
			Placeholder: "eg. 'The Lilypad Lounge'",
			Value:       w.venue,
			Required:    true,
			MaxLength:   venueMaxLength,
		},
	)
}

func (w *jobWizard) handle(ctx context.Context, ev wizardEvent) (wizardResult, error) {
	switch ev.Action {
	case actionContinue:
		if !w.canContinue() {
			return resultRender, nil
		}
		if w.step == jobDate {
			if _, err := resolveJobDate(w.now(), w.schedule.Month, w.schedule.Day, zoneLocation(w.schedule.Timezone)); err != nil {
				return resultRender, err
			}
		}
		if w.step < jobReview {
			w.step++
		}
	case actionBack:
		if w.step > jobDetails {
			w.step--
		}
	case actionSetVenue, actionSetDescription, actionSetPayRate:
		w.modalKind = ev.Action
		return resultModal, nil
	case actionModalSubmit:
		return resultRender, w.submitModal(ev.Fields)
	case actionConfirm:
		if w.step != jobReview {
			return resultRender, nil
		}
		if err := w.commit(ctx); err != nil {
			return resultRender, err
		}
		w.step = jobPosted
		return resultDone, nil
	default:
		return resultRender, w.selected(ev.Action, ev.value())
	}
	return resultRender, nil
}

func (w *jobWizard) submitModal(fields map[string]string) error {
	switch w.modalKind {
	case actionSetDescription:
		w.description = strings.TrimSpace(fields[inputDescription])
	case actionSetPayRate:
		raw := strings.ReplaceAll(strings.TrimSpace(fields[inputPayRate]), ",", "")
		n, ok := tryParseInt(raw)
		if !ok || n < 0 {
			return newInvalidNumberError(fields[inputPayRate])
		}
		w.payRate = int(n)
		w.payRateSet = true
	default:
		w.venue = strings.TrimSpace(fields[inputVenue])
	}
	return nil
}

func (w *jobWizard) selected(kind string, value string) error {
	parse := func(set func(n int) bool) error {
		var n int
		if _, err := fmt.Sscan(value, &n); err != nil || !set(n) {
			return newInvalidNumberError(value)
		}
		return nil
	}
	switch kind {
	case selectPosition:
		if _, ok := w.p.store.Position(value); !ok {
			return newPositionNotFoundError(value)
		}
		w.positionID = value
	case selectMonth:
		return parse(
			func(n int) bool {
				w.schedule.Month = Month(n)
				if w.schedule.Day > 0 && !slices.Contains(w.schedule.Month.Days(), w.schedule.Day) {
					w.schedule.Day = 0
				}
				return w.schedule.Month.Valid()
			},
		)
	case selectDayEarly, selectDayLate:
		return parse(func(n int) bool { w.schedule.Day = Day(n); return w.schedule.Day.Valid() })
	case selectTimezone:
		return parse(func(n int) bool { w.schedule.Timezone = Timezone(n); return w.schedule.Timezone.Valid() })
	case selectStartHour:
		return parse(func(n int) bool { w.schedule.StartHour = Hour(n); return w.schedule.StartHour.Valid() })
	case selectStartMin:
		return parse(func(n int) bool { w.schedule.StartMinute = Minute(n); return w.schedule.StartMinute.Valid() })
	case selectEndHour:
		return parse(func(n int) bool { w.schedule.EndHour = Hour(n); return w.schedule.EndHour.Valid() })
	case selectEndMin:
		return parse(func(n int) bool { w.schedule.EndMinute = Minute(n); return w.schedule.EndMinute.Valid() })
	case selectPayType:
		return parse(func(n int) bool { w.payType = CompensationType(n); return w.payType.Valid() })
	}
	return nil
}

// commit posts the job to the job channel, then saves it with the
// posted message. A job is only saved once its message exists, and a
// message whose job can't be saved is deleted.
func (w *jobWizard) commit(ctx context.Context) error {
	channelID := w.p.RuntimeConfig().JobChannelID
	if channelID == "" {
		return newChannelNotSetError("job")
	}
	draft, err := w.draft()
	if err != nil {
		return err
	}
	if _, ok := w.p.store.Position(draft.PositionID); !ok {
		return newPositionNotFoundError(draft.PositionID)
	}
	draft.ID = newID()
	draft.ChannelID = channelID

	msg, err := w.p.discord.session.ChannelMessageSendComplex(
		channelID,
		&discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{jobEmbed(draft, w.p.store.positionName(draft.PositionID))},
			Components: jobComponents(draft),
		},
	)
	if err != nil {
		return fmt.Errorf("error posting job: %w", err)
	}
	draft.MessageID = msg.ID

	job, err := w.p.store.CreateJob(ctx, draft)
	if err != nil {
		if e := w.p.discord.session.ChannelMessageDelete(channelID, msg.ID); e != nil && !isDiscordNotFound(e) {
			w.p.logger.WarnContext(ctx, "unable to delete unsaved job post", "message_id", msg.ID, tint.Err(e))
		}
		return err
	}
	w.posted = job
	w.p.logger.InfoContext(ctx, "posted job", "job_id", job.ID, "requester", job.RequesterID)
	return nil
}

// handleJobAccept makes the clicking user the job's applicant, and
// lets the poster know
func (p *PartyBus) handleJobAccept(ctx context.Context, handler InteractionHandler, jobID string) {
	u := getDiscordUser(handler.GetInteraction())
	job, ok := p.store.Job(jobID)
	if !ok {
		_ = handler.Respond(ctx, errorResponse(newJobNotFoundError(jobID)))
		return
	}
	if job.RequesterID == u.ID {
		_ = handler.Respond(ctx, errorResponse(newOwnJobError()))
		return
	}

	job, err := p.store.AcceptJob(ctx, jobID, u.ID)
	if err != nil {
		var de *DisplayError
		if !errors.As(err, &de) {
			handler.Logger().ErrorContext(ctx, "unable to accept job", tint.Err(err))
		}
		_ = handler.Respond(ctx, errorResponse(err))
		return
	}

	_ = handler.Respond(
		ctx,
		updateMessage(
			&discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{jobEmbed(job, p.store.positionName(job.PositionID))},
				Components: jobComponents(job),
			},
		),
	)

	embed := newEmbed(
		"__Job Accepted__",
		fmt.Sprintf(
			"%s (`%s`) accepted your **%s** job at `%s`.",
			mention(u.ID),
			discordDisplayName(u),
			p.store.positionName(job.PositionID),
			job.Venue,
		),
	)
	embed.Color = embedColorSuccess
	if err = p.discord.sendDM(job.RequesterID, embed); err != nil {
		p.logger.WarnContext(ctx, "unable to notify job requester", "requester", job.RequesterID, tint.Err(err))
	}
}
