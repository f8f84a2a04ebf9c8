package partybus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	signupSelectPlaceholder = "Select a trainee to pick up..."

	// signupMaxOptions is how many trainees fit in the signup selects
	signupMaxOptions = discordMaxSelectOptions * discordMaxActionRows
)

// signupEmbed lists unmatched trainees, one field per position
func signupEmbed(positions []Position, unmatched []Training, userName func(string) string) *discordgo.MessageEmbed {
	byPosition := map[string][]Training{}
	for _, t := range unmatched {
		byPosition[t.PositionID] = append(byPosition[t.PositionID], t)
	}

	var fields []*discordgo.MessageEmbedField
	for _, pos := range positions {
		trainings := byPosition[pos.ID]
		if len(trainings) == 0 {
			continue
		}
		lines := make([]string, 0, len(trainings))
		for _, t := range trainings {
			lines = append(lines, fmt.Sprintf("`%s` - %s", userName(t.TraineeID), mention(t.TraineeID)))
		}
		fields = append(fields, embedField(pos.Name, strings.Join(lines, "\n"), false))
	}

	return newEmbed(
		"__TRAINER/TRAINEE MATCHING__",
		"This is the sign up message for the trainer/trainee matching system. "+
			"If you are a trainer and wish to pick up a trainee, please select the "+
			"trainee's name from the selector below.\n\n"+
			"Please consider your selection carefully. Once you have selected a "+
			"trainee, you will be unable to change your selection without consulting "+
			"a member of management.\n"+
			drawLine("", 0, 35),
		fields...,
	)
}

// signupOptions builds one option per trainee with an unmatched
// training, in the order trainees first appear in unmatched
func signupOptions(
	unmatched []Training,
	userName func(string) string,
	positionName func(string) string,
) []discordgo.SelectMenuOption {
	var order []string
	positions := map[string][]string{}
	for _, t := range unmatched {
		if _, seen := positions[t.TraineeID]; !seen {
			order = append(order, t.TraineeID)
		}
		positions[t.TraineeID] = append(positions[t.TraineeID], positionName(t.PositionID))
	}

	opts := make([]discordgo.SelectMenuOption, 0, len(order))
	for _, id := range order {
		opts = append(
			opts,
			discordgo.SelectMenuOption{
				Label:       selectLabel(userName(id)),
				Description: selectLabel("(" + strings.Join(positions[id], ", ") + ")"),
				Value:       id,
			},
		)
	}
	return opts
}

// signupComponents spreads options over as many selects as needed, up
// to the action row limit
func signupComponents(opts []discordgo.SelectMenuOption) []discordgo.MessageComponent {
	chunks := chunkItems(discordMaxSelectOptions, opts...)
	if len(chunks) == 0 {
		chunks = [][]discordgo.SelectMenuOption{nil}
	}
	if len(chunks) > discordMaxActionRows {
		chunks = chunks[:discordMaxActionRows]
	}
	rows := make([]discordgo.MessageComponent, 0, len(chunks))
	for i, chunk := range chunks {
		rows = append(
			rows,
			selectRow(joinCustomID(customIDSignupSelect, fmt.Sprint(i)), signupSelectPlaceholder, chunk, 1),
		)
	}
	return rows
}

func (p *PartyBus) signupMessage() (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	unmatched := p.store.UnmatchedTrainings()
	embed := signupEmbed(p.store.Positions(), unmatched, p.userName)
	opts := signupOptions(unmatched, p.userName, p.store.positionName)
	if hidden := len(opts) - signupMaxOptions; hidden > 0 {
		p.logger.Warn("too many trainees for the signup selector", "listed", signupMaxOptions, "hidden", hidden)
		embed.Footer = &discordgo.MessageEmbedFooter{Text: signupHiddenNote(hidden)}
	}
	return embed, signupComponents(opts)
}

func signupHiddenNote(hidden int) string {
	return fmt.Sprintf(
		"%d more trainee(s) can't fit in the selector. Ask management to assign them a trainer.",
		hidden,
	)
}

// postSignupMessage deletes the current signup message, if any, and
// posts a fresh one. An empty channelID reuses the current channel.
func (p *PartyBus) postSignupMessage(ctx context.Context, channelID string) error {
	p.signupMu.Lock()
	defer p.signupMu.Unlock()

	loc := p.store.SignupLocation()
	if channelID == "" {
		channelID = loc.ChannelID
	}
	if channelID == "" {
		return newChannelNotSetError("sign up")
	}

	if loc.MessageID != "" {
		if err := p.discord.session.ChannelMessageDelete(loc.ChannelID, loc.MessageID); err != nil &&
			!isDiscordNotFound(err) {
			p.logger.WarnContext(ctx, "unable to delete old signup message", tint.Err(err))
		}
	}

	embed, components := p.signupMessage()
	msg, err := p.discord.session.ChannelMessageSendComplex(
		channelID,
		&discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	)
	if err != nil {
		_ = p.store.SetSignupLocation(ctx, channelID, "")
		return fmt.Errorf("error posting signup message: %w", err)
	}
	if err = p.store.SetSignupLocation(ctx, channelID, msg.ID); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "posted signup message", "channel_id", channelID, "message_id", msg.ID)
	return nil
}

// repostSignupMessage re-posts the signup message after a match, so
// it moves to the bottom of the channel. Reposts are rate limited.
func (p *PartyBus) repostSignupMessage(ctx context.Context) {
	if p.store.SignupLocation().ChannelID == "" {
		return
	}
	if err := p.signupLimiter.Wait(ctx); err != nil {
		p.logger.WarnContext(ctx, "signup repost cancelled", tint.Err(err))
		return
	}
	if err := p.postSignupMessage(ctx, ""); err != nil {
		p.logger.ErrorContext(ctx, "unable to repost signup message", tint.Err(err))
	}
}

// refreshSignupMessage edits the signup message in place. A message
// that no longer exists is forgotten.
func (p *PartyBus) refreshSignupMessage(ctx context.Context) {
	p.signupMu.Lock()
	defer p.signupMu.Unlock()

	loc := p.store.SignupLocation()
	if loc.ChannelID == "" || loc.MessageID == "" {
		return
	}
	embed, components := p.signupMessage()
	embeds := []*discordgo.MessageEmbed{embed}
	_, err := p.discord.session.ChannelMessageEditComplex(
		&discordgo.MessageEdit{
			Channel:    loc.ChannelID,
			ID:         loc.MessageID,
			Embeds:     &embeds,
			Components: &components,
		},
	)
	switch {
	case err == nil:
	case isDiscordNotFound(err):
		p.logger.WarnContext(ctx, "signup message not found, forgetting it", "message_id", loc.MessageID)
		if e := p.store.SetSignupLocation(ctx, loc.ChannelID, ""); e != nil {
			p.logger.ErrorContext(ctx, "unable to clear signup message", tint.Err(e))
		}
	default:
		p.logger.ErrorContext(ctx, "unable to refresh signup message", tint.Err(err))
	}
}

// verifySignupMessage checks the stored signup location still exists
// in discord, clearing whatever doesn't, then refreshes the message.
func (p *PartyBus) verifySignupMessage(ctx context.Context) {
	loc := p.store.SignupLocation()
	if loc.ChannelID == "" {
		return
	}
	if _, err := p.discord.session.Channel(loc.ChannelID); err != nil {
		p.logger.WarnContext(ctx, "signup channel not found", "channel_id", loc.ChannelID, tint.Err(err))
		if e := p.store.SetSignupLocation(ctx, "", ""); e != nil {
			p.logger.ErrorContext(ctx, "unable to clear signup channel", tint.Err(e))
		}
		return
	}
	if loc.MessageID == "" {
		return
	}
	if _, err := p.discord.session.ChannelMessage(loc.ChannelID, loc.MessageID); err != nil {
		p.logger.WarnContext(ctx, "signup message not found", "message_id", loc.MessageID, tint.Err(err))
		if e := p.store.SetSignupLocation(ctx, loc.ChannelID, ""); e != nil {
			p.logger.ErrorContext(ctx, "unable to clear signup message", tint.Err(e))
		}
		return
	}
	p.refreshSignupMessage(ctx)
}

// postNotice sends a public error to the signup channel, deleting it
// after the configured delay
func (p *PartyBus) postNotice(ctx context.Context, err *DisplayError) {
	channelID := p.store.SignupLocation().ChannelID
	if channelID == "" {
		return
	}
	msg, sendErr := p.discord.session.ChannelMessageSendComplex(
		channelID,
		&discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{err.Embed()}},
	)
	if sendErr != nil {
		p.logger.ErrorContext(ctx, "unable to post notice", tint.Err(sendErr))
		return
	}
	delay := p.config.Workflow.NoticeDeleteAfter
	if delay <= 0 {
		return
	}
	time.AfterFunc(
		delay, func() {
			if e := p.discord.session.ChannelMessageDelete(channelID, msg.ID); e != nil && !isDiscordNotFound(e) {
				p.logger.Warn("unable to delete notice", tint.Err(e))
			}
		},
	)
}

// handleSignupSelect starts a claim when a trainer picks a trainee
// from the signup message
func (p *PartyBus) handleSignupSelect(ctx context.Context, handler InteractionHandler, traineeID string) {
	i := handler.GetInteraction()
	u := getDiscordUser(i)

	claim, err := p.newSignupClaim(u.ID, traineeID)
	if err != nil {
		var de *DisplayError
		if !errors.As(err, &de) {
			_ = handler.Respond(ctx, errorResponse(err))
			return
		}
		// the select keeps showing the trainer's choice until the
		// message is re-rendered
		embed, components := p.signupMessage()
		_ = handler.Respond(
			ctx,
			updateMessage(
				&discordgo.InteractionResponseData{
					Embeds:     []*discordgo.MessageEmbed{embed},
					Components: components,
				},
			),
		)
		p.postNotice(ctx, de)
		return
	}
	if err = p.startWizard(ctx, handler, claim); err != nil {
		handler.Logger().ErrorContext(ctx, "unable to start claim", tint.Err(err))
	}
}

// newSignupClaim intersects the trainee's unmatched trainings with the
// positions the trainer is qualified for
func (p *PartyBus) newSignupClaim(trainerID string, traineeID string) (*signupClaimWizard, error) {
	trainee, ok := p.store.TUser(traineeID)
	if !ok {
		return nil, newTraineeMissingError(traineeID)
	}
	unmatched := p.store.Trainings(
		func(t Training) bool { return t.TraineeID == traineeID && !t.Matched() },
	)
	if len(unmatched) == 0 {
		return nil, newTraineeMissingError(traineeID)
	}

	qualified := p.store.QualifiedPositionIDs(trainerID)
	var common []Training
	for _, t := range unmatched {
		if slices.Contains(qualified, t.PositionID) && t.TraineeID != trainerID {
			common = append(common, t)
		}
	}
	if len(common) == 0 {
		return nil, newUnqualifiedError(trainerID)
	}

	w := &signupClaimWizard{
		p:         p,
		trainerID: trainerID,
		trainee:   trainee,
		options:   common,
	}
	if len(common) == 1 {
		w.trainingID = common[0].ID
		w.step = claimConfirm
	}
	return w, nil
}

type claimStep int

const (
	claimPosition claimStep = iota
	claimConfirm
	claimDone
)

// signupClaimWizard is the trainer's side of a match: pick the
// position when more than one applies, confirm, then commit.
type signupClaimWizard struct {
	followUps

	p         *PartyBus
	trainerID string
	trainee   TUser
	options   []Training

	step       claimStep
	trainingID string
	err        error
}

func (w *signupClaimWizard) owner() string {
	return w.trainerID
}

func (w *signupClaimWizard) render(sid string) *discordgo.InteractionResponseData {
	switch w.step {
	case claimPosition:
		opts := make([]discordgo.SelectMenuOption, 0, len(w.options))
		for _, t := range w.options {
			opts = append(
				opts,
				discordgo.SelectMenuOption{Label: selectLabel(w.p.store.positionName(t.PositionID)), Value: t.ID},
			)
		}
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				newEmbed(
					"__SELECT POSITION__",
					"You are qualified to train this trainee in multiple positions. "+
						"Please select the position you wish to train them in.",
				),
			},
			Components: append(
				[]discordgo.MessageComponent{
					selectRow(wizardCustomID(sid, actionSelect), "Select a position...", opts, 1),
				},
				buttonRows(cancelButton(sid))...,
			),
		}
	case claimDone:
		if w.err != nil {
			return &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{errorEmbed(w.err)}}
		}
		t, _ := w.p.store.Training(w.trainingID)
		embed := newEmbed(
			"__TRAINEE ASSIGNED__",
			fmt.Sprintf(
				"You are now training `%s` (%s) for **%s**.\nThey have been notified.",
				w.trainee.DisplayName(),
				mention(w.trainee.UserID),
				w.p.store.positionName(t.PositionID),
			),
		)
		embed.Color = embedColorSuccess
		return &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	default:
	}

	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{
			newEmbed(
				"__CONFIRM TRAINEE ASSIGNMENT__",
				fmt.Sprintf(
					"Are you sure you want to assign `%s`\n(%s)\nto the trainer `%s`?",
					w.trainee.DisplayName(),
					mention(w.trainee.UserID),
					w.p.userName(w.trainerID),
				),
			),
		},
		Components: confirmButtons(sid),
	}
}

func (*signupClaimWizard) modal(string) *discordgo.InteractionResponseData {
	return nil
}

func (w *signupClaimWizard) handle(ctx context.Context, ev wizardEvent) (wizardResult, error) {
	switch ev.Action {
	case actionSelect:
		if w.step != claimPosition {
			return resultRender, nil
		}
		idx := slices.IndexFunc(w.options, func(t Training) bool { return t.ID == ev.value() })
		if idx < 0 {
			return resultRender, newTrainingNotFoundError(ev.value())
		}
		w.trainingID = w.options[idx].ID
		w.step = claimConfirm
	case actionConfirm:
		if w.step != claimConfirm {
			return resultRender, nil
		}
		t, err := w.p.store.AssignTrainer(ctx, w.trainingID, w.trainerID, true)
		if err != nil {
			var de *DisplayError
			if !errors.As(err, &de) {
				// nothing was assigned, so the trainer can try again
				return resultRender, err
			}
			w.step = claimDone
			w.err = err
			return resultDone, nil
		}
		w.step = claimDone
		w.after(
			func(ctx context.Context) {
				w.p.notifyTrainerAssigned(ctx, t)
				w.p.repostSignupMessage(ctx)
			},
		)
		return resultDone, nil
	}
	return resultRender, nil
}

// notifyTrainerAssigned DMs the trainee the name of their new trainer
func (p *PartyBus) notifyTrainerAssigned(ctx context.Context, t Training) {
	embed := trainerAssignedEmbed(t.Trainer(), p.userName(t.Trainer()), p.store.positionName(t.PositionID))
	if err := p.discord.sendDM(t.TraineeID, embed); err != nil {
		p.logger.WarnContext(ctx, "unable to notify trainee", "trainee", t.TraineeID, tint.Err(err))
	}
}

// userName returns the user's profile name, falling back to their
// discord name, then a mention
func (p *PartyBus) userName(userID string) string {
	if u, ok := p.store.TUser(userID); ok && u.Name != "" {
		return u.Name
	}
	if u, err := p.discord.session.User(userID); err == nil && u != nil {
		return discordDisplayName(u)
	}
	return mention(userID)
}

func isDiscordNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
