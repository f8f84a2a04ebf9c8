package partybus

import (
	"context"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
)

const (
	actionAddTrainer    = "add_trainer"
	actionRemoveTrainer = "rm_trainer"
	actionPrevPage      = "prev"
	actionNextPage      = "next"

	// one option slot is kept free, matching the original menu layout
	managementPageSize = discordMaxSelectOptions - 1
)

// pageOptions returns page of opts, clamping page to the available range
func pageOptions(opts []discordgo.SelectMenuOption, page int) (
	rv []discordgo.SelectMenuOption,
	clamped int,
	hasPrev bool,
	hasNext bool,
) {
	pages := chunkItems(managementPageSize, opts...)
	if len(pages) == 0 {
		return nil, 0, false, false
	}
	clamped = min(max(page, 0), len(pages)-1)
	return pages[clamped], clamped, clamped > 0, clamped < len(pages)-1
}

type managementStep int

const (
	managementAction managementStep = iota
	managementTrainee
	managementTraining
	managementTrainer
	managementConfirm
	managementDone
)

// trainerManagementWizard lets management assign a trainer to a
// training, replacing any current trainer, or remove one
type trainerManagementWizard struct {
	followUps

	p       *PartyBus
	ownerID string

	step   managementStep
	remove bool
	page   int

	traineeID  string
	trainingID string
	trainerID  string
}

func newTrainerManagementWizard(p *PartyBus, ownerID string) *trainerManagementWizard {
	return &trainerManagementWizard{p: p, ownerID: ownerID}
}

func (w *trainerManagementWizard) owner() string {
	return w.ownerID
}

// trainingsFor lists the trainings the current action can apply to
func (w *trainerManagementWizard) trainingsFor(traineeID string) []Training {
	return w.p.store.Trainings(
		func(t Training) bool {
			return t.TraineeID == traineeID && (!w.remove || t.Matched())
		},
	)
}

func (w *trainerManagementWizard) traineeOptions() []discordgo.SelectMenuOption {
	var opts []discordgo.SelectMenuOption
	for _, u := range w.p.store.TUsers() {
		if len(w.trainingsFor(u.UserID)) == 0 {
			continue
		}
		opts = append(opts, discordgo.SelectMenuOption{Label: selectLabel(u.DisplayName()), Value: u.UserID})
	}
	return opts
}

func (w *trainerManagementWizard) trainingOptions() []discordgo.SelectMenuOption {
	var opts []discordgo.SelectMenuOption
	for _, t := range w.trainingsFor(w.traineeID) {
		opt := discordgo.SelectMenuOption{Label: selectLabel(w.p.store.positionName(t.PositionID)), Value: t.ID}
		if t.Matched() {
			opt.Description = "Trainer: " + w.p.userName(t.Trainer())
		}
		opts = append(opts, opt)
	}
	return opts
}

func (w *trainerManagementWizard) trainerOptions() []discordgo.SelectMenuOption {
	t, _ := w.p.store.Training(w.trainingID)
	var opts []discordgo.SelectMenuOption
	for _, u := range w.p.store.QualifiedTrainers(t.PositionID) {
		if u.UserID == t.TraineeID || u.UserID == t.Trainer() {
			continue
		}
		q, _ := u.Qualification(t.PositionID)
		opts = append(
			opts,
			discordgo.SelectMenuOption{
				Label:       selectLabel(u.DisplayName()),
				Description: q.Level.Label(),
				Value:       u.UserID,
			},
		)
	}
	return opts
}

func (w *trainerManagementWizard) summary() string {
	t, _ := w.p.store.Training(w.trainingID)
	position := w.p.store.positionName(t.PositionID)
	if w.remove {
		return fmt.Sprintf(
			"%s will no longer train %s for **%s**.",
			mention(t.Trainer()),
			mention(t.TraineeID),
			position,
		)
	}
	return fmt.Sprintf("%s will train %s for **%s**.", mention(w.trainerID), mention(t.TraineeID), position)
}

func (w *trainerManagementWizard) render(sid string) *discordgo.InteractionResponseData {
	back := button(wizardCustomID(sid, actionBack), "Back", discordgo.SecondaryButton, false)
	selectStep := func(embed *discordgo.MessageEmbed, placeholder string, all []discordgo.SelectMenuOption) *discordgo.InteractionResponseData {
		opts, page, hasPrev, hasNext := pageOptions(all, w.page)
		w.page = page
		buttons := []discordgo.Button{back}
		if hasPrev || hasNext {
			buttons = append(
				buttons,
				button(wizardCustomID(sid, actionPrevPage), "Previous", discordgo.SecondaryButton, !hasPrev),
				button(wizardCustomID(sid, actionNextPage), "Next", discordgo.SecondaryButton, !hasNext),
			)
		}
		buttons = append(buttons, cancelButton(sid))
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Components: append(
				[]discordgo.MessageComponent{selectRow(wizardCustomID(sid, actionSelect), placeholder, opts, 1)},
				buttonRows(buttons...)...,
			),
		}
	}

	verb := "apply a trainer to"
	if w.remove {
		verb = "remove a trainer from"
	}
	switch w.step {
	case managementTrainee:
		return selectStep(
			promptEmbed("Trainer Management", "Select a trainee to "+verb+"."),
			"Select a trainee to "+verb+"...",
			w.traineeOptions(),
		)
	case managementTraining:
		return selectStep(
			promptEmbed("Trainer Management", "Select a training to "+verb+"."),
			"Select a training to "+verb+"...",
			w.trainingOptions(),
		)
	case managementTrainer:
		return selectStep(
			promptEmbed("Trainer Management", "Select a trainer to apply to the chosen training."),
			"Select a trainer to apply to the chosen training...",
			w.trainerOptions(),
		)
	case managementConfirm:
		t, _ := w.p.store.Training(w.trainingID)
		lines := []string{w.summary()}
		if !w.remove && t.Matched() {
			lines = append(
				[]string{
					"This training already has a trainer assigned to it.",
					"Assigning a new trainer will replace the old one.",
					"Are you sure you want to continue?\n",
				},
				lines...,
			)
		}
		title := "__CONFIRM TRAINER CHANGE__"
		if !w.remove && t.Matched() {
			title = "Warning!"
		}
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{promptEmbed(title, lines...)},
			Components: buttonRows(
				back,
				button(wizardCustomID(sid, actionConfirm), "Confirm", discordgo.SuccessButton, false),
				cancelButton(sid),
			),
		}
	case managementDone:
		embed := promptEmbed("Trainer Management", w.summary(), "The sign up message has been updated.")
		embed.Color = embedColorSuccess
		return &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	default:
	}

	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{
			promptEmbed(
				"Trainer Management",
				"Would you like to add a trainer to a training,",
				"or remove a trainer from one?",
			),
		},
		Components: buttonRows(
			button(wizardCustomID(sid, actionAddTrainer), "Add Trainer to Trainee", discordgo.SuccessButton, false),
			button(wizardCustomID(sid, actionRemoveTrainer), "Remove Trainer from Trainee", discordgo.DangerButton, false),
			cancelButton(sid),
		),
	}
}

func (*trainerManagementWizard) modal(string) *discordgo.InteractionResponseData {
	return nil
}

func (w *trainerManagementWizard) handle(ctx context.Context, ev wizardEvent) (wizardResult, error) {
	switch ev.Action {
	case actionAddTrainer, actionRemoveTrainer:
		w.remove = ev.Action == actionRemoveTrainer
		w.step = managementTrainee
		w.page = 0
	case actionPrevPage:
		w.page--
	case actionNextPage:
		w.page++
	case actionBack:
		w.page = 0
		switch w.step {
		case managementConfirm:
			w.step = managementTrainer
			if w.remove {
				w.step = managementTraining
			}
		case managementTrainer:
			w.step = managementTraining
		case managementTraining:
			w.step = managementTrainee
		default:
			w.step = managementAction
		}
	case actionSelect:
		return resultRender, w.selected(ev.value())
	case actionConfirm:
		if w.step != managementConfirm {
			return resultRender, nil
		}
		if err := w.commit(ctx); err != nil {
			return resultRender, err
		}
		w.step = managementDone
		return resultDone, nil
	}
	return resultRender, nil
}

func (w *trainerManagementWizard) selected(value string) error {
	w.page = 0
	switch w.step {
	case managementTrainee:
		if len(w.trainingsFor(value)) == 0 {
			return newTraineeNotFoundError(value)
		}
		w.traineeID = value
		w.step = managementTraining
	case managementTraining:
		idx := slices.IndexFunc(w.trainingsFor(w.traineeID), func(t Training) bool { return t.ID == value })
		if idx < 0 {
			return newTrainingNotFoundError(value)
		}
		w.trainingID = value
		if w.remove {
			w.step = managementConfirm
		} else {
			w.step = managementTrainer
		}
	case managementTrainer:
		t, _ := w.p.store.Training(w.trainingID)
		u, ok := w.p.store.TUser(value)
		if !ok {
			return newTrainerNotFoundError(value)
		}
		if _, qualified := u.Qualification(t.PositionID); !qualified {
			return newUnqualifiedError(value)
		}
		w.trainerID = value
		w.step = managementConfirm
	default:
	}
	return nil
}

func (w *trainerManagementWizard) commit(ctx context.Context) error {
	if w.remove {
		if _, err := w.p.store.ClearTrainer(ctx, w.trainingID); err != nil {
			return err
		}
	} else {
		t, err := w.p.store.AssignTrainer(ctx, w.trainingID, w.trainerID, false)
		if err != nil {
			return err
		}
		w.after(func(ctx context.Context) { w.p.notifyTrainerAssigned(ctx, t) })
	}
	w.after(w.p.repostSignupMessage)
	return nil
}

type updateTrainingStep int

const (
	updateTrainingSelect updateTrainingStep = iota
	updateRequirementSelect
	updateLevelSelect
)

// updateTrainingWizard records a trainee's progress on requirements.
// It loops back to the requirement list after each update, so several
// requirements can be updated in one session.
type updateTrainingWizard struct {
	p         *PartyBus
	ownerID   string
	traineeID string

	// positions limits which trainings may be updated. nil allows all.
	positions []string

	step          updateTrainingStep
	trainingID    string
	requirementID string
}

func newUpdateTrainingWizard(
	p *PartyBus,
	ownerID string,
	traineeID string,
	positions []string,
) *updateTrainingWizard {
	return &updateTrainingWizard{p: p, ownerID: ownerID, traineeID: traineeID, positions: positions}
}

func (w *updateTrainingWizard) owner() string {
	return w.ownerID
}

func (w *updateTrainingWizard) trainings() []Training {
	return w.p.store.Trainings(
		func(t Training) bool {
			return t.TraineeID == w.traineeID && (w.positions == nil || slices.Contains(w.positions, t.PositionID))
		},
	)
}

func (w *updateTrainingWizard) render(sid string) *discordgo.InteractionResponseData {
	controls := buttonRows(
		button(
			wizardCustomID(sid, actionBack),
			"Back",
			discordgo.SecondaryButton,
			w.step == updateTrainingSelect,
		),
		closeButton(sid),
	)
	step := func(embed *discordgo.MessageEmbed, placeholder string, opts []discordgo.SelectMenuOption) *discordgo.InteractionResponseData {
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Components: append(
				[]discordgo.MessageComponent{selectRow(wizardCustomID(sid, actionSelect), placeholder, opts, 1)},
				controls...,
			),
		}
	}

	switch w.step {
	case updateRequirementSelect, updateLevelSelect:
		t, _ := w.p.store.Training(w.trainingID)
		reqs := w.p.store.RequirementsFor(t.PositionID)
		embed := trainingProgressEmbed(t, w.p.store.positionName(t.PositionID), w.p.userName(w.traineeID), reqs)
		if w.step == updateLevelSelect {
			var current []RequirementLevel
			if level, ok := t.Overrides[w.requirementID]; ok {
				current = append(current, level)
			}
			return step(
				embed,
				"Select the level of completion for that requirement...",
				selectOptions(AllRequirementLevels(), current...),
			)
		}
		opts := make([]discordgo.SelectMenuOption, 0, len(reqs))
		for _, r := range reqs {
			opt := discordgo.SelectMenuOption{Label: selectLabel(r.Description), Value: r.ID}
			if level, ok := t.Overrides[r.ID]; ok {
				opt.Description = level.Label()
				opt.Emoji = &discordgo.ComponentEmoji{Name: level.Emoji()}
			}
			opts = append(opts, opt)
		}
		return step(embed, "Select job training requirement to edit...", opts)
	default:
	}

	opts := []discordgo.SelectMenuOption{}
	for _, t := range w.trainings() {
		opts = append(
			opts,
			discordgo.SelectMenuOption{Label: selectLabel(w.p.store.positionName(t.PositionID)), Value: t.ID},
		)
	}
	return step(
		promptEmbed(
			"Update Training for "+w.p.userName(w.traineeID),
			"Select the position you want to update requirements for.",
		),
		"Select the position you want to update requirements for...",
		opts,
	)
}

func (*updateTrainingWizard) modal(string) *discordgo.InteractionResponseData {
	return nil
}

func (w *updateTrainingWizard) handle(ctx context.Context, ev wizardEvent) (wizardResult, error) {
	switch ev.Action {
	case actionBack:
		if w.step > updateTrainingSelect {
			w.step--
		}
	case actionSelect:
		value := ev.value()
		switch w.step {
		case updateTrainingSelect:
			idx := slices.IndexFunc(w.trainings(), func(t Training) bool { return t.ID == value })
			if idx < 0 {
				return resultRender, newTrainingNotFoundError(value)
			}
			w.trainingID = value
			w.step = updateRequirementSelect
		case updateRequirementSelect:
			t, _ := w.p.store.Training(w.trainingID)
			reqs := w.p.store.RequirementsFor(t.PositionID)
			if !slices.ContainsFunc(reqs, func(r Requirement) bool { return r.ID == value }) {
				return resultRender, newRequirementNotFoundError(value)
			}
			w.requirementID = value
			w.step = updateLevelSelect
		case updateLevelSelect:
			level, ok := parseEnum[RequirementLevel](value)
			if !ok {
				return resultRender, newInvalidNumberError(value)
			}
			if err := w.p.store.SetRequirementOverride(ctx, w.trainingID, w.requirementID, level); err != nil {
				return resultRender, err
			}
			w.step = updateRequirementSelect
		}
	}
	return resultRender, nil
}
