package partybus

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	actionEditTrainerRole = "trainer_role"
	actionEditTraineeRole = "trainee_role"
	actionAddRequirement  = "add_req"
	actionRemoveReq       = "rm_req"

	inputRoleID      = "role_id"
	inputRequirement = "requirement"

	requirementMaxLength = 200
	roleIDMaxLength      = 32
)

type positionStep int

const (
	positionOverview positionStep = iota
	positionMain
	positionRemoveRequirement
)

// positionStatusWizard shows a position and edits its name, roles and
// requirements. Without a position it starts at the overview select.
type positionStatusWizard struct {
	p          *PartyBus
	ownerID    string
	positionID string
	step       positionStep
	modalKind  string
}

func newPositionStatusWizard(p *PartyBus, ownerID string, positionID string) *positionStatusWizard {
	w := &positionStatusWizard{p: p, ownerID: ownerID, positionID: positionID}
	if positionID != "" {
		w.step = positionMain
	}
	return w
}

func (w *positionStatusWizard) owner() string {
	return w.ownerID
}

func (w *positionStatusWizard) render(sid string) *discordgo.InteractionResponseData {
	switch w.step {
	case positionOverview:
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{positionsEmbed(w.p.store.Positions())},
			Components: append(
				[]discordgo.MessageComponent{
					selectRow(
						wizardCustomID(sid, actionSelect),
						"Select a position...",
						positionOptions(w.p.store.Positions(), nil),
						1,
					),
				},
				buttonRows(cancelButton(sid))...,
			),
		}
	case positionRemoveRequirement:
		pos, _ := w.p.store.Position(w.positionID)
		return requirementRemovalStep(
			sid,
			promptEmbed("Remove Requirement", "Select the requirement you'd like to remove."),
			pos.Requirements,
		)
	default:
	}

	pos, ok := w.p.store.Position(w.positionID)
	if !ok {
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{errorEmbed(newPositionNotFoundError(w.positionID))},
		}
	}
	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{positionStatusEmbed(pos, w.p.store.GlobalRequirements())},
		Components: append(
			buttonRows(
				button(wizardCustomID(sid, actionSetName), "Edit Name", discordgo.PrimaryButton, false),
				button(wizardCustomID(sid, actionEditTrainerRole), "Edit Trainer Role", discordgo.PrimaryButton, false),
				button(wizardCustomID(sid, actionEditTraineeRole), "Edit Trainee Role", discordgo.PrimaryButton, false),
			),
			buttonRows(
				button(wizardCustomID(sid, actionAddRequirement), "Add Requirement", discordgo.PrimaryButton, false),
				button(
					wizardCustomID(sid, actionRemoveReq),
					"Remove Requirement",
					discordgo.SecondaryButton,
					len(pos.Requirements) == 0,
				),
				closeButton(sid),
			)...,
		),
	}
}

func (w *positionStatusWizard) modal(sid string) *discordgo.InteractionResponseData {
	customID := wizardCustomID(sid, actionModalSubmit)
	switch w.modalKind {
	case actionEditTrainerRole, actionEditTraineeRole:
		return roleModal(customID)
	case actionAddRequirement:
		return requirementModal(customID, "Add Requirement")
	default:
	}
	pos, _ := w.p.store.Position(w.positionID)
	return textInputModal(
		customID,
		"Edit Position Name",
		discordgo.TextInput{
			CustomID:  inputName,
			Label:     "Position Name",
			Style:     discordgo.TextInputShort,
			Value:     pos.Name,
			Required:  true,
			MaxLength: selectLabelMaxRunes,
		},
	)
}

func (w *positionStatusWizard) handle(ctx context.Context, ev wizardEvent) (wizardResult, error) {
	switch ev.Action {
	case actionSelect:
		switch w.step {
		case positionOverview:
			if _, ok := w.p.store.Position(ev.value()); !ok {
				return resultRender, newPositionNotFoundError(ev.value())
			}
			w.positionID = ev.value()
			w.step = positionMain
		case positionRemoveRequirement:
			if err := w.p.store.RemoveRequirement(ctx, w.positionID, ev.value()); err != nil {
				return resultRender, err
			}
			w.step = positionMain
		default:
		}
	case actionBack:
		w.step = positionMain
	case actionSetName, actionEditTrainerRole, actionEditTraineeRole, actionAddRequirement:
		w.modalKind = ev.Action
		return resultModal, nil
	case actionRemoveReq:
		w.step = positionRemoveRequirement
	case actionModalSubmit:
		return resultRender, w.submitModal(ctx, ev.Fields)
	}
	return resultRender, nil
}

func (w *positionStatusWizard) submitModal(ctx context.Context, fields map[string]string) error {
	switch w.modalKind {
	case actionEditTrainerRole, actionEditTraineeRole:
		roleID, err := w.p.parseRoleID(fields[inputRoleID])
		if err != nil {
			return err
		}
		if w.modalKind == actionEditTrainerRole {
			_, err = w.p.store.SetPositionRoles(ctx, w.positionID, &roleID, nil)
		} else {
			_, err = w.p.store.SetPositionRoles(ctx, w.positionID, nil, &roleID)
		}
		return err
	case actionAddRequirement:
		_, err := w.p.store.AddRequirement(ctx, w.positionID, fields[inputRequirement])
		return err
	default:
		_, err := w.p.store.RenamePosition(ctx, w.positionID, fields[inputName])
		return err
	}
}

// parseRoleID validates a role ID entered in a modal. An empty value
// clears the role.
func (p *PartyBus) parseRoleID(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	n, ok := tryParseInt(value)
	if !ok || n <= 0 {
		return "", newInvalidNumberError(value)
	}
	roleID := strconv.FormatInt(n, 10)
	if !p.discord.roleExists(roleID) {
		return "", newInvalidRoleIDError(value)
	}
	return roleID, nil
}

// verifyPositionRoles clears position roles that no longer exist in the
// guild. Nothing is cleared if the guild's roles can't be fetched.
func (p *PartyBus) verifyPositionRoles(ctx context.Context) {
	guildID := p.discord.config.GuildID
	if guildID == "" {
		return
	}
	roles, err := p.discord.session.GuildRoles(guildID)
	if err != nil {
		p.logger.WarnContext(ctx, "unable to fetch guild roles", tint.Err(err))
		return
	}
	known := make(map[string]bool, len(roles))
	for _, r := range roles {
		known[r.ID] = true
	}

	unset := ""
	for _, pos := range p.store.Positions() {
		var trainerRoleID, traineeRoleID *string
		if pos.TrainerRoleID != "" && !known[pos.TrainerRoleID] {
			trainerRoleID = &unset
		}
		if pos.TraineeRoleID != "" && !known[pos.TraineeRoleID] {
			traineeRoleID = &unset
		}
		if trainerRoleID == nil && traineeRoleID == nil {
			continue
		}
		p.logger.WarnContext(
			ctx,
			"clearing missing position roles",
			"position", pos.Name,
			"trainer_role_id", pos.TrainerRoleID,
			"trainee_role_id", pos.TraineeRoleID,
		)
		if _, err = p.store.SetPositionRoles(ctx, pos.ID, trainerRoleID, traineeRoleID); err != nil {
			p.logger.ErrorContext(ctx, "unable to clear position roles", tint.Err(err))
		}
	}
}

// globalRequirementsWizard adds and removes the requirements shared by
// every position
type globalRequirementsWizard struct {
	p        *PartyBus
	ownerID  string
	removing bool
}

func newGlobalRequirementsWizard(p *PartyBus, ownerID string) *globalRequirementsWizard {
	return &globalRequirementsWizard{p: p, ownerID: ownerID}
}

func (w *globalRequirementsWizard) owner() string {
	return w.ownerID
}

func (w *globalRequirementsWizard) render(sid string) *discordgo.InteractionResponseData {
	reqs := w.p.store.GlobalRequirements()
	if w.removing {
		return requirementRemovalStep(
			sid,
			promptEmbed("Remove Requirement", "Select the global job requirement you'd like to remove."),
			reqs,
		)
	}
	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{globalRequirementsEmbed(reqs)},
		Components: buttonRows(
			button(wizardCustomID(sid, actionAddRequirement), "Add Requirement", discordgo.PrimaryButton, false),
			button(wizardCustomID(sid, actionRemoveReq), "Remove Requirement", discordgo.SecondaryButton, len(reqs) == 0),
			closeButton(sid),
		),
	}
}

func (w *globalRequirementsWizard) modal(sid string) *discordgo.InteractionResponseData {
	return requirementModal(wizardCustomID(sid, actionModalSubmit), "Add Global Requirement")
}

func (w *globalRequirementsWizard) handle(ctx context.Context, ev wizardEvent) (wizardResult, error) {
	switch ev.Action {
	case actionAddRequirement:
		return resultModal, nil
	case actionModalSubmit:
		_, err := w.p.store.AddRequirement(ctx, GlobalPositionID, ev.Fields[inputRequirement])
		return resultRender, err
	case actionRemoveReq:
		w.removing = true
	case actionBack:
		w.removing = false
	case actionSelect:
		if err := w.p.store.RemoveRequirement(ctx, GlobalPositionID, ev.value()); err != nil {
			return resultRender, err
		}
		w.removing = false
	}
	return resultRender, nil
}

func requirementRemovalStep(
	sid string,
	embed *discordgo.MessageEmbed,
	reqs []Requirement,
) *discordgo.InteractionResponseData {
	opts := make([]discordgo.SelectMenuOption, 0, len(reqs))
	for _, r := range reqs {
		opts = append(opts, discordgo.SelectMenuOption{Label: selectLabel(r.Description), Value: r.ID})
	}
	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: append(
			[]discordgo.MessageComponent{
				selectRow(wizardCustomID(sid, actionSelect), "Select a requirement...", opts, 1),
			},
			buttonRows(
				button(wizardCustomID(sid, actionBack), "Back", discordgo.SecondaryButton, false),
				cancelButton(sid),
			)...,
		),
	}
}

func requirementModal(customID string, title string) *discordgo.InteractionResponseData {
	return textInputModal(
		customID,
		title,
		discordgo.TextInput{
			CustomID:    inputRequirement,
			Label:       "Requirement",
			Style:       discordgo.TextInputParagraph,
			Placeholder: "eg. 'Knows how to make a Mai Tai'",
			Required:    true,
			MaxLength:   requirementMaxLength,
		},
	)
}

func roleModal(customID string) *discordgo.InteractionResponseData {
	return textInputModal(
		customID,
		"Edit Role Assignment",
		discordgo.TextInput{
			CustomID:    inputRoleID,
			Label:       "Role ID (leave empty to unlink)",
			Style:       discordgo.TextInputShort,
			Placeholder: "eg. '123456789012345678'",
			MaxLength:   roleIDMaxLength,
		},
	)
}
