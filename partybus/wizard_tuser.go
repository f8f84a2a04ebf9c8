package partybus

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	actionSetName         = "name"
	actionEditNotes       = "notes"
	actionAvailability    = "avail"
	actionAddQual         = "add_qual"
	actionModifyQual      = "mod_qual"
	actionRemoveQual      = "rm_qual"
	actionAddTraining     = "add_training"
	actionRemoveTraining  = "rm_training"
	actionSelect          = "select"
	actionSelectSecondary = "select2"
	actionModalSubmit     = "modal"

	inputName  = "name"
	inputNotes = "notes"
	inputURL   = "url"

	nameMaxLength  = 80
	notesMaxLength = 1000
)

type tuserStep int

const (
	tuserMain tuserStep = iota
	tuserAddQualPosition
	tuserAddQualLevel
	tuserModifyQualSelect
	tuserModifyQualLevel
	tuserRemoveQual
	tuserAddTraining
	tuserRemoveTraining
	tuserAvailDays
	tuserAvailStart
	tuserAvailEnd
	tuserAvailTimezone
)

// tuserStatusWizard views and edits a user's training profile. The
// admin variant can also edit notes and qualifications.
type tuserStatusWizard struct {
	followUps

	p       *PartyBus
	ownerID string
	userID  string
	admin   bool

	step      tuserStep
	modalKind string

	positionID      string
	qualificationID string
	days            []Weekday
	start           Hour
	end             Hour
}

func newTUserStatusWizard(p *PartyBus, ownerID string, userID string, admin bool) *tuserStatusWizard {
	return &tuserStatusWizard{p: p, ownerID: ownerID, userID: userID, admin: admin}
}

func (w *tuserStatusWizard) owner() string {
	return w.ownerID
}

func (w *tuserStatusWizard) user() TUser {
	u, _ := w.p.store.TUser(w.userID)
	return u
}

func (w *tuserStatusWizard) reset() {
	w.step = tuserMain
	w.positionID = ""
	w.qualificationID = ""
	w.days = nil
	w.start = HourUnavailable
	w.end = HourUnavailable
}

func (w *tuserStatusWizard) statusEmbed() *discordgo.MessageEmbed {
	return tuserStatusEmbed(
		w.user(),
		w.p.store.TrainingsFor(w.userID),
		w.p.store.positionName,
		w.p.canonicalTimezone(),
		w.admin,
	)
}

func (w *tuserStatusWizard) render(sid string) *discordgo.InteractionResponseData {
	back := button(wizardCustomID(sid, actionBack), "Back", discordgo.SecondaryButton, false)
	selectStep := func(
		embed *discordgo.MessageEmbed,
		placeholder string,
		options []discordgo.SelectMenuOption,
		maxValues int,
	) *discordgo.InteractionResponseData {
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Components: append(
				[]discordgo.MessageComponent{
					selectRow(wizardCustomID(sid, actionSelect), placeholder, options, maxValues),
				},
				buttonRows(back, cancelButton(sid))...,
			),
		}
	}

	u := w.user()
	switch w.step {
	case tuserAddQualPosition:
		held := map[string]bool{}
		for _, q := range u.Qualifications {
			held[q.PositionID] = true
		}
		return selectStep(
			promptEmbed(
				"Add Qualification",
				"Select the position you would like to add a qualification",
				"for. Subsequently, a second selector will appear to",
				"allow you to select the new qualification level.",
			),
			"Select a position...",
			positionOptions(w.p.store.Positions(), held),
			1,
		)
	case tuserAddQualLevel, tuserModifyQualLevel:
		return selectStep(
			promptEmbed(
				"Qualification Level",
				fmt.Sprintf("Select the qualification level for **%s**.", w.p.store.positionName(w.positionID)),
			),
			"Select a level...",
			selectOptions(AllTrainingLevels()),
			1,
		)
	case tuserModifyQualSelect, tuserRemoveQual:
		title := "Modify Qualification"
		if w.step == tuserRemoveQual {
			title = "Remove Qualification"
		}
		opts := make([]discordgo.SelectMenuOption, 0, len(u.Qualifications))
		for _, q := range u.Qualifications {
			opts = append(
				opts,
				discordgo.SelectMenuOption{
					Label:       selectLabel(w.p.store.positionName(q.PositionID)),
					Description: q.Level.Label(),
					Value:       q.ID,
				},
			)
		}
		return selectStep(
			promptEmbed(title, "Select the qualification to "+strings.ToLower(strings.Fields(title)[0])+"."),
			"Select a qualification...",
			opts,
			1,
		)
	case tuserAddTraining:
		held := map[string]bool{}
		for _, t := range w.p.store.TrainingsFor(w.userID) {
			held[t.PositionID] = true
		}
		opts := positionOptions(w.p.store.Positions(), held)
		return selectStep(
			promptEmbed("Add Training", "Please select the training(s) to add."),
			"Select positions...",
			opts,
			len(opts),
		)
	case tuserRemoveTraining:
		trainings := w.p.store.TrainingsFor(w.userID)
		opts := make([]discordgo.SelectMenuOption, 0, len(trainings))
		for _, t := range trainings {
			opts = append(
				opts,
				discordgo.SelectMenuOption{Label: selectLabel(w.p.store.positionName(t.PositionID)), Value: t.ID},
			)
		}
		return selectStep(
			promptEmbed("Remove Training", "Please select a training to remove."),
			"Select a training...",
			opts,
			1,
		)
	case tuserAvailDays:
		return selectStep(
			promptEmbed(
				"Edit Availability",
				"Select the day(s) of the week to set availability for.",
				"The same hours will be applied to each day selected.",
			),
			"Select weekdays...",
			selectOptions(AllWeekdays()),
			len(AllWeekdays()),
		)
	case tuserAvailStart:
		return selectStep(
			promptEmbed(
				"Edit Availability",
				"Select the earliest time you're available.",
				"Select **Unavailable** to clear availability for the selected days.",
			),
			"Select a start time...",
			selectOptions(AllHours()),
			1,
		)
	case tuserAvailEnd:
		return selectStep(
			promptEmbed("Edit Availability", "Select the latest time you're available."),
			"Select an end time...",
			selectOptions(EndHourOptions(w.start)),
			1,
		)
	case tuserAvailTimezone:
		return selectStep(
			promptEmbed("Edit Availability", "Select the timezone the times above are in."),
			"Select a timezone...",
			selectOptions(AllTimezones()),
			1,
		)
	default:
	}

	noQuals := len(u.Qualifications) == 0
	noTrainings := len(w.p.store.TrainingsFor(w.userID)) == 0
	buttons := []discordgo.Button{
		button(wizardCustomID(sid, actionSetName), "Change Name", discordgo.PrimaryButton, false),
	}
	if w.admin {
		buttons = append(buttons, button(wizardCustomID(sid, actionEditNotes), "Notes", discordgo.PrimaryButton, false))
	}
	buttons = append(
		buttons,
		button(wizardCustomID(sid, actionAvailability), "Edit Availability", discordgo.PrimaryButton, false),
	)
	rows := buttonRows(buttons...)
	if w.admin {
		rows = append(
			rows,
			buttonRows(
				button(wizardCustomID(sid, actionAddQual), "Add Qualification", discordgo.SuccessButton, false),
				button(wizardCustomID(sid, actionModifyQual), "Modify Qualification", discordgo.PrimaryButton, noQuals),
				button(wizardCustomID(sid, actionRemoveQual), "Remove Qualification", discordgo.DangerButton, noQuals),
			)...,
		)
	}
	rows = append(
		rows,
		buttonRows(
			button(wizardCustomID(sid, actionAddTraining), "Request Training", discordgo.SuccessButton, false),
			button(wizardCustomID(sid, actionRemoveTraining), "Remove Training", discordgo.DangerButton, noTrainings),
			closeButton(sid),
		)...,
	)
	return &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{w.statusEmbed()},
		Components: rows,
	}
}

func (w *tuserStatusWizard) modal(sid string) *discordgo.InteractionResponseData {
	u := w.user()
	if w.modalKind == inputNotes {
		return textInputModal(
			wizardCustomID(sid, actionModalSubmit),
			"Internal Notes",
			discordgo.TextInput{
				CustomID:  inputNotes,
				Label:     "Notes",
				Style:     discordgo.TextInputParagraph,
				Value:     u.Notes,
				MaxLength: notesMaxLength,
			},
		)
	}
	return textInputModal(
		wizardCustomID(sid, actionModalSubmit),
		"Change Name",
		discordgo.TextInput{
			CustomID:  inputName,
			Label:     "Name",
			Style:     discordgo.TextInputShort,
			Value:     u.Name,
			Required:  true,
			MaxLength: nameMaxLength,
		},
	)
}

func (w *tuserStatusWizard) handle(ctx context.Context, ev wizardEvent) (wizardResult, error) {
	switch ev.Action {
	case actionBack:
		w.reset()
		return resultRender, nil
	case actionSetName:
		w.modalKind = inputName
		return resultModal, nil
	case actionEditNotes:
		if !w.admin {
			return resultRender, nil
		}
		w.modalKind = inputNotes
		return resultModal, nil
	case actionModalSubmit:
		return resultRender, w.submitModal(ctx, ev.Fields)
	case actionAvailability:
		w.step = tuserAvailDays
	case actionAddQual, actionModifyQual, actionRemoveQual:
		if !w.admin {
			return resultRender, nil
		}
		w.step = map[string]tuserStep{
			actionAddQual:    tuserAddQualPosition,
			actionModifyQual: tuserModifyQualSelect,
			actionRemoveQual: tuserRemoveQual,
		}[ev.Action]
	case actionAddTraining:
		w.step = tuserAddTraining
	case actionRemoveTraining:
		w.step = tuserRemoveTraining
	case actionSelect:
		return resultRender, w.selected(ctx, ev)
	}
	return resultRender, nil
}

func (w *tuserStatusWizard) submitModal(ctx context.Context, fields map[string]string) error {
	if notes, ok := fields[inputNotes]; ok && w.modalKind == inputNotes {
		_, err := w.p.store.SetTUserNotes(ctx, w.userID, strings.TrimSpace(notes))
		return err
	}
	name := strings.TrimSpace(fields[inputName])
	if name == "" {
		return nil
	}
	_, err := w.p.store.SetTUserName(ctx, w.userID, name)
	return err
}

// selected advances the current sub-flow with a select menu choice,
// committing when the flow's last value is collected
func (w *tuserStatusWizard) selected(ctx context.Context, ev wizardEvent) error {
	value := ev.value()
	switch w.step {
	case tuserAddQualPosition:
		if _, ok := w.p.store.Position(value); !ok {
			return newPositionNotFoundError(value)
		}
		w.positionID = value
		w.step = tuserAddQualLevel
	case tuserModifyQualSelect:
		q, ok := w.qualification(value)
		if !ok {
			return newQualificationNotFoundError(value)
		}
		w.qualificationID = q.ID
		w.positionID = q.PositionID
		w.step = tuserModifyQualLevel
	case tuserAddQualLevel, tuserModifyQualLevel:
		level, ok := parseEnum[TrainingLevel](value)
		if !ok {
			return newInvalidNumberError(value)
		}
		var err error
		if w.step == tuserAddQualLevel {
			_, err = w.p.store.AddQualification(ctx, w.userID, w.positionID, level)
		} else {
			err = w.p.store.ModifyQualification(ctx, w.userID, w.qualificationID, level)
		}
		if err != nil {
			return err
		}
		w.reset()
	case tuserRemoveQual:
		if err := w.p.store.RemoveQualification(ctx, w.userID, value); err != nil {
			return err
		}
		w.reset()
	case tuserAddTraining:
		if _, err := w.p.store.AddTrainings(ctx, w.userID, ev.Values); err != nil {
			return err
		}
		w.reset()
		w.after(w.p.refreshSignupMessage)
	case tuserRemoveTraining:
		if err := w.p.store.RemoveTraining(ctx, value); err != nil {
			return err
		}
		w.reset()
		w.after(w.p.refreshSignupMessage)
	case tuserAvailDays:
		w.days = w.days[:0]
		for _, v := range ev.Values {
			if d, ok := parseEnum[Weekday](v); ok {
				w.days = append(w.days, d)
			}
		}
		w.step = tuserAvailStart
	case tuserAvailStart:
		h, ok := parseEnum[Hour](value)
		if !ok {
			return newInvalidNumberError(value)
		}
		w.start = h
		if h == HourUnavailable {
			if err := w.p.store.SetAvailability(ctx, w.userID, w.days, HourUnavailable, HourUnavailable); err != nil {
				return err
			}
			w.reset()
			return nil
		}
		w.step = tuserAvailEnd
	case tuserAvailEnd:
		h, ok := parseEnum[Hour](value)
		if !ok {
			return newInvalidNumberError(value)
		}
		w.end = h
		w.step = tuserAvailTimezone
	case tuserAvailTimezone:
		tz, ok := parseEnum[Timezone](value)
		if !ok {
			return newInvalidNumberError(value)
		}
		canonical := w.p.canonicalTimezone()
		if err := w.p.store.SetAvailability(
			ctx,
			w.userID,
			w.days,
			shiftHour(w.start, tz, canonical),
			shiftHour(w.end, tz, canonical),
		); err != nil {
			return err
		}
		w.reset()
	default:
	}
	return nil
}

func (w *tuserStatusWizard) qualification(id string) (Qualification, bool) {
	for _, q := range w.user().Qualifications {
		if q.ID == id {
			return q, true
		}
	}
	return Qualification{}, false
}

const (
	actionToggleJobPings = "job_pings"
	actionSetImageURL    = "image_url"

	imageURLMaxLength = 500
)

// userConfigWizard edits a user's notification settings and image
type userConfigWizard struct {
	p      *PartyBus
	userID string
}

func newUserConfigWizard(p *PartyBus, userID string) *userConfigWizard {
	return &userConfigWizard{p: p, userID: userID}
}

func (w *userConfigWizard) owner() string {
	return w.userID
}

func (w *userConfigWizard) render(sid string) *discordgo.InteractionResponseData {
	u, _ := w.p.store.TUser(w.userID)
	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{userConfigEmbed(u)},
		Components: buttonRows(
			button(wizardCustomID(sid, actionToggleJobPings), "Toggle Job Pings", discordgo.PrimaryButton, false),
			button(wizardCustomID(sid, actionSetImageURL), "Set Image URL", discordgo.PrimaryButton, false),
			closeButton(sid),
		),
	}
}

func (w *userConfigWizard) modal(sid string) *discordgo.InteractionResponseData {
	u, _ := w.p.store.TUser(w.userID)
	return textInputModal(
		wizardCustomID(sid, actionModalSubmit),
		"Set Image URL",
		discordgo.TextInput{
			CustomID:    inputURL,
			Label:       "Image URL (leave empty to remove)",
			Style:       discordgo.TextInputShort,
			Placeholder: "https://...",
			Value:       u.Config.ImageURL,
			MaxLength:   imageURLMaxLength,
		},
	)
}

func (w *userConfigWizard) handle(ctx context.Context, ev wizardEvent) (wizardResult, error) {
	switch ev.Action {
	case actionToggleJobPings:
		_, err := w.p.store.ToggleJobPings(ctx, w.userID)
		return resultRender, err
	case actionSetImageURL:
		return resultModal, nil
	case actionModalSubmit:
		url := strings.TrimSpace(ev.Fields[inputURL])
		if url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return resultRender, newInvalidImageURLError(url)
		}
		return resultRender, w.p.store.SetImageURL(ctx, w.userID, url)
	}
	return resultRender, nil
}
