package partybus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// handleCommand routes a slash command to its subcommand handler
func (p *PartyBus) handleCommand(ctx context.Context, handler InteractionHandler, u *discordgo.User) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	commandName := i.ApplicationCommandData().Name
	options, sub := discordInteractionOptions(i)
	logger.InfoContext(ctx, "handling command", "command", commandName, "subcommand", sub)

	var err error
	switch commandName {
	case DiscordSlashCommandAdmin:
		err = p.handleAdminCommand(ctx, handler, sub, options)
	case DiscordSlashCommandPositions:
		err = p.handlePositionsCommand(ctx, handler, sub, options)
	case DiscordSlashCommandTraining:
		err = p.handleTrainingCommand(ctx, handler, u, sub, options)
	case DiscordSlashCommandJobs:
		err = p.startWizard(ctx, handler, newJobWizard(p, u.ID))
	default:
		logger.WarnContext(ctx, "unknown command", "command", commandName)
		err = handler.Respond(ctx, ephemeralResponse(p.RuntimeConfig().DiscordErrorMessage))
	}
	if err != nil {
		p.respondError(ctx, handler, err)
	}
}

// respondError shows err to the user. Errors that aren't a
// *DisplayError are logged, and shown as the configured error message.
func (p *PartyBus) respondError(ctx context.Context, handler InteractionHandler, err error) {
	var de *DisplayError
	if !errors.As(err, &de) {
		handler.Logger().ErrorContext(ctx, "error handling interaction", tint.Err(err))
		_ = handler.Respond(ctx, ephemeralResponse(p.RuntimeConfig().DiscordErrorMessage))
		return
	}
	_ = handler.Respond(ctx, errorResponse(err))
}

type commandOptions map[string]*discordgo.ApplicationCommandInteractionDataOption

func (p *PartyBus) handleAdminCommand(
	ctx context.Context,
	handler InteractionHandler,
	sub string,
	options commandOptions,
) error {
	i := handler.GetInteraction()
	caller := getDiscordUser(i)

	switch sub {
	case subcommandAddTrainer, subcommandUserStatus:
		target := optionUserValue(i, options[optionUser])
		if target == nil {
			return newUserNotFoundError("")
		}
		if _, created, err := p.store.EnsureTUser(ctx, target.ID, discordDisplayName(target)); err != nil {
			return err
		} else if created {
			handler.Logger().InfoContext(ctx, "registered user", "user_id", target.ID)
		}
		return p.startWizard(ctx, handler, newTUserStatusWizard(p, caller.ID, target.ID, true))
	case subcommandPostSignup:
		return p.deferred(
			ctx, handler, func() (string, error) {
				if err := p.postSignupMessage(ctx, optionString(options[optionChannel])); err != nil {
					return "", err
				}
				return "Sign up message posted to " + channelMention(p.store.SignupLocation().ChannelID) + ".", nil
			},
		)
	case subcommandTrainerManagement:
		return p.startWizard(ctx, handler, newTrainerManagementWizard(p, caller.ID))
	case subcommandSetJobChannel:
		channelID := optionString(options[optionChannel])
		if err := p.setJobChannel(ctx, channelID); err != nil {
			return err
		}
		return handler.Respond(ctx, ephemeralResponse("Job postings will be sent to "+channelMention(channelID)+"."))
	default:
		return fmt.Errorf("unknown subcommand %q", sub)
	}
}

func (p *PartyBus) handlePositionsCommand(
	ctx context.Context,
	handler InteractionHandler,
	sub string,
	options commandOptions,
) error {
	caller := getDiscordUser(handler.GetInteraction())

	switch sub {
	case subcommandAdd:
		pos, err := p.store.AddPosition(ctx, optionString(options[optionName]))
		if err != nil {
			return err
		}
		return p.startWizard(ctx, handler, newPositionStatusWizard(p, caller.ID, pos.ID))
	case subcommandStatus:
		name := strings.TrimSpace(optionString(options[optionPosition]))
		if name == "" {
			return p.startWizard(ctx, handler, newPositionStatusWizard(p, caller.ID, ""))
		}
		pos, ok := p.store.PositionByName(name)
		if !ok {
			return newPositionNotFoundError(name)
		}
		return p.startWizard(ctx, handler, newPositionStatusWizard(p, caller.ID, pos.ID))
	case subcommandGlobalReqs:
		return p.startWizard(ctx, handler, newGlobalRequirementsWizard(p, caller.ID))
	default:
		return fmt.Errorf("unknown subcommand %q", sub)
	}
}

func (p *PartyBus) handleTrainingCommand(
	ctx context.Context,
	handler InteractionHandler,
	u *discordgo.User,
	sub string,
	options commandOptions,
) error {
	i := handler.GetInteraction()

	switch sub {
	case subcommandProfile, subcommandConfig:
		if _, _, err := p.store.EnsureTUser(ctx, u.ID, discordDisplayName(u)); err != nil {
			return err
		}
		if sub == subcommandConfig {
			return p.startWizard(ctx, handler, newUserConfigWizard(p, u.ID))
		}
		return p.startWizard(ctx, handler, newTUserStatusWizard(p, u.ID, u.ID, false))
	case subcommandUpdate:
		target := optionUserValue(i, options[optionUser])
		if target == nil {
			return newUserNotFoundError("")
		}
		w, err := p.newTrainingUpdate(u.ID, target.ID, memberCanManage(i))
		if err != nil {
			return err
		}
		return p.startWizard(ctx, handler, w)
	default:
		return fmt.Errorf("unknown subcommand %q", sub)
	}
}

// newTrainingUpdate returns a wizard for callerID to update the
// trainee's requirement progress. Managers may update any training,
// everyone else only trainings for positions they're qualified in.
func (p *PartyBus) newTrainingUpdate(callerID string, traineeID string, manager bool) (*updateTrainingWizard, error) {
	var positions []string
	if !manager {
		positions = p.store.QualifiedPositionIDs(callerID)
		if len(positions) == 0 {
			return nil, newUnqualifiedError(callerID)
		}
	}
	w := newUpdateTrainingWizard(p, callerID, traineeID, positions)
	if len(w.trainings()) == 0 {
		return nil, newTraineeNotFoundError(traineeID)
	}
	return w, nil
}

// setJobChannel persists the channel job postings are sent to, and
// notifies other instances
func (p *PartyBus) setJobChannel(ctx context.Context, channelID string) error {
	p.cfgMu.Lock()
	if _, err := p.writeDB.Update(ctx, p.runtimeConfig, columnRuntimeConfigJobChannelID, channelID); err != nil {
		p.cfgMu.Unlock()
		return fmt.Errorf("error updating job channel: %w", err)
	}
	p.runtimeConfig.JobChannelID = channelID
	p.cfgMu.Unlock()

	if p.dbNotifier != nil && p.dbNotifier.RuntimeConfigChannelName() != "" {
		p.dbNotifier.ReloadRuntimeConfig(ctx)
	}
	return nil
}

// deferred acknowledges the interaction, then runs fn in the
// background and edits the acknowledgement with its result. Used for
// commands that make several discord API calls. Webhook interactions
// aren't acknowledged until the HTTP handler returns, so fn can't run
// inline.
func (p *PartyBus) deferred(ctx context.Context, handler InteractionHandler, fn func() (string, error)) error {
	if err := handler.Respond(
		ctx,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		},
	); err != nil {
		// the interaction can't be answered anymore
		return nil
	}

	p.deferredWG.Add(1)
	go func() {
		defer p.deferredWG.Done()
		content, err := fn()
		edit := &discordgo.WebhookEdit{Content: &content}
		if err != nil {
			var de *DisplayError
			if !errors.As(err, &de) {
				handler.Logger().ErrorContext(ctx, "error handling interaction", tint.Err(err))
				msg := p.RuntimeConfig().DiscordErrorMessage
				edit.Content = &msg
			} else {
				empty := ""
				edit.Content = &empty
				edit.Embeds = &[]*discordgo.MessageEmbed{de.Embed()}
			}
		}
		_, _ = handler.Edit(ctx, edit)
	}()
	return nil
}

// handleComponent routes button and select interactions by custom ID
func (p *PartyBus) handleComponent(ctx context.Context, handler InteractionHandler, u *discordgo.User) {
	data := handler.GetInteraction().MessageComponentData()
	customID := data.CustomID

	if sessionID, action, ok := parseWizardCustomID(customID); ok {
		p.continueWizard(
			ctx,
			handler,
			sessionID,
			wizardEvent{UserID: u.ID, Action: action, Values: data.Values},
		)
		return
	}

	switch {
	case strings.HasPrefix(customID, customIDSignupSelect+customIDSeparator):
		if len(data.Values) == 0 {
			return
		}
		p.handleSignupSelect(ctx, handler, data.Values[0])
	case strings.HasPrefix(customID, customIDJobAccept+customIDSeparator):
		p.handleJobAccept(ctx, handler, strings.TrimPrefix(customID, customIDJobAccept+customIDSeparator))
	default:
		handler.Logger().WarnContext(ctx, "unknown component", "custom_id", customID)
		_ = handler.Respond(ctx, ephemeralResponse(wizardExpiredMessage))
	}
}

// handleModalSubmit delivers submitted modal fields to their wizard
func (p *PartyBus) handleModalSubmit(ctx context.Context, handler InteractionHandler, u *discordgo.User) {
	data := handler.GetInteraction().ModalSubmitData()
	sessionID, action, ok := parseWizardCustomID(data.CustomID)
	if !ok {
		handler.Logger().WarnContext(ctx, "unknown modal", "custom_id", data.CustomID)
		_ = handler.Respond(ctx, ephemeralResponse(wizardExpiredMessage))
		return
	}
	p.continueWizard(
		ctx,
		handler,
		sessionID,
		wizardEvent{UserID: u.ID, Action: action, Fields: modalValues(data)},
	)
}

func optionString(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	if opt == nil {
		return ""
	}
	if s, ok := opt.Value.(string); ok {
		return s
	}
	return fmt.Sprint(opt.Value)
}

// optionUserValue resolves a user option, preferring the resolved user
// sent with the interaction
func optionUserValue(
	i *discordgo.InteractionCreate,
	opt *discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.User {
	userID := optionString(opt)
	if userID == "" {
		return nil
	}
	if resolved := i.ApplicationCommandData().Resolved; resolved != nil {
		if u, ok := resolved.Users[userID]; ok {
			return u
		}
	}
	return &discordgo.User{ID: userID}
}
