package partybus

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageOptions(t *testing.T) {
	opts := make([]discordgo.SelectMenuOption, 50)
	for i := range opts {
		opts[i].Value = fmt.Sprint(i)
	}

	page, clamped, hasPrev, hasNext := pageOptions(opts, 0)
	assert.Len(t, page, managementPageSize)
	assert.Zero(t, clamped)
	assert.False(t, hasPrev)
	assert.True(t, hasNext)

	page, clamped, hasPrev, hasNext = pageOptions(opts, 9)
	assert.Equal(t, 2, clamped)
	assert.Len(t, page, 50-2*managementPageSize)
	assert.True(t, hasPrev)
	assert.False(t, hasNext)

	_, clamped, _, _ = pageOptions(opts, -3)
	assert.Zero(t, clamped)

	page, _, hasPrev, hasNext = pageOptions(nil, 1)
	assert.Empty(t, page)
	assert.False(t, hasPrev || hasNext)
}

func TestTrainerManagement_Assign(t *testing.T) {
	bot, session := newTestPartyBus(t)
	ctx := context.Background()
	fx := newSignupFixture(t, bot)
	mustEnsureTUser(t, bot.store, testOtherID, "Other Trainer")
	_, err := bot.store.AddQualification(ctx, testOtherID, fx.position.ID, TrainingLevelActive)
	require.NoError(t, err)

	d, resp := startCommandWizard(t, bot, testMember(testAdminID, true), DiscordSlashCommandAdmin, subcommandTrainerManagement)
	assert.Equal(t, "Trainer Management", resp.Data.Embeds[0].Title)

	resp = d.click(actionAddTrainer)
	assert.Equal(t, []string{testTraineeID}, selectValues(t, resp.Data.Components, actionSelect))
	resp = d.click(actionSelect, testTraineeID)
	assert.Equal(t, []string{fx.training.ID}, selectValues(t, resp.Data.Components, actionSelect))
	resp = d.click(actionSelect, fx.training.ID)
	assert.ElementsMatch(t, []string{testTrainerID, testOtherID}, selectValues(t, resp.Data.Components, actionSelect))

	resp = d.click(actionSelect, testAdminID)
	require.Len(t, resp.Data.Embeds, 2)
	assert.Equal(t, "Trainer Not Found", resp.Data.Embeds[1].Title)

	resp = d.click(actionSelect, testOtherID)
	assert.Equal(t, "__CONFIRM TRAINER CHANGE__", resp.Data.Embeds[0].Title)
	resp = d.click(actionConfirm)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Empty(t, resp.Data.Components)
	assert.Contains(t, resp.Data.Embeds[0].Description, "The sign up message has been updated.")

	tr, _ := bot.store.Training(fx.training.ID)
	assert.Equal(t, testOtherID, tr.Trainer())
	bot.deferredWG.Wait()
	require.Len(t, session.dms(testTraineeID), 1)
	assert.Len(t, session.sentTo(testChannelID), 2)
}

func TestTrainerManagement_Replace(t *testing.T) {
	bot, session := newTestPartyBus(t)
	ctx := context.Background()
	fx := newSignupFixture(t, bot)
	mustEnsureTUser(t, bot.store, testOtherID, "Other Trainer")
	_, err := bot.store.AddQualification(ctx, testOtherID, fx.position.ID, TrainingLevelActive)
	require.NoError(t, err)
	_, err = bot.store.AssignTrainer(ctx, fx.training.ID, testTrainerID, true)
	require.NoError(t, err)

	d, _ := startCommandWizard(t, bot, testMember(testAdminID, true), DiscordSlashCommandAdmin, subcommandTrainerManagement)
	d.click(actionAddTrainer)
	d.click(actionSelect, testTraineeID)
	resp := d.click(actionSelect, fx.training.ID)
	// the current trainer isn't offered as a replacement
	assert.Equal(t, []string{testOtherID}, selectValues(t, resp.Data.Components, actionSelect))

	resp = d.click(actionSelect, testOtherID)
	assert.Equal(t, "Warning!", resp.Data.Embeds[0].Title)
	d.click(actionConfirm)

	tr, _ := bot.store.Training(fx.training.ID)
	assert.Equal(t, testOtherID, tr.Trainer())
	bot.deferredWG.Wait()
	assert.Len(t, session.dms(testTraineeID), 1)
}

func TestTrainerManagement_Remove(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	ctx := context.Background()
	fx := newSignupFixture(t, bot)

	d, _ := startCommandWizard(t, bot, testMember(testAdminID, true), DiscordSlashCommandAdmin, subcommandTrainerManagement)

	// nobody has a trainer yet
	resp := d.click(actionRemoveTrainer)
	assert.Empty(t, selectValues(t, resp.Data.Components, actionSelect))
	d.click(actionBack)

	_, err := bot.store.AssignTrainer(ctx, fx.training.ID, testTrainerID, true)
	require.NoError(t, err)

	resp = d.click(actionRemoveTrainer)
	assert.Equal(t, []string{testTraineeID}, selectValues(t, resp.Data.Components, actionSelect))
	d.click(actionSelect, testTraineeID)
	resp = d.click(actionSelect, fx.training.ID)
	assert.Equal(t, "__CONFIRM TRAINER CHANGE__", resp.Data.Embeds[0].Title)
	assert.Contains(t, resp.Data.Embeds[0].Description, "will no longer train")

	d.click(actionConfirm)
	tr, _ := bot.store.Training(fx.training.ID)
	assert.False(t, tr.Matched())
	assert.Zero(t, bot.wizards.len())
}

func TestTrainerManagement_BackFromConfirm(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	fx := newSignupFixture(t, bot)

	d, _ := startCommandWizard(t, bot, testMember(testAdminID, true), DiscordSlashCommandAdmin, subcommandTrainerManagement)
	d.click(actionAddTrainer)
	d.click(actionSelect, testTraineeID)
	d.click(actionSelect, fx.training.ID)
	resp := d.click(actionSelect, testTrainerID)
	assert.Equal(t, "__CONFIRM TRAINER CHANGE__", resp.Data.Embeds[0].Title)

	// back from the confirmation returns to the trainer list
	resp = d.click(actionBack)
	assert.Equal(t, []string{testTrainerID}, selectValues(t, resp.Data.Components, actionSelect))
	resp = d.click(actionSelect, testTrainerID)
	assert.Equal(t, "__CONFIRM TRAINER CHANGE__", resp.Data.Embeds[0].Title)
	d.click(actionConfirm)
	tr, _ := bot.store.Training(fx.training.ID)
	require.Equal(t, testTrainerID, tr.Trainer())

	// removals skip the trainer list, so back returns to the trainings
	d, _ = startCommandWizard(t, bot, testMember(testAdminID, true), DiscordSlashCommandAdmin, subcommandTrainerManagement)
	d.click(actionRemoveTrainer)
	d.click(actionSelect, testTraineeID)
	resp = d.click(actionSelect, fx.training.ID)
	assert.Contains(t, resp.Data.Embeds[0].Description, "will no longer train")
	resp = d.click(actionBack)
	assert.Equal(t, []string{fx.training.ID}, selectValues(t, resp.Data.Components, actionSelect))
}

func TestTrainerManagement_Paging(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	ctx := context.Background()
	pos := mustAddPosition(t, bot.store, "bartender")
	for i := range 30 {
		id := fmt.Sprintf("5000000000000000%02d", i)
		mustEnsureTUser(t, bot.store, id, fmt.Sprintf("Trainee %02d", i))
		_, err := bot.store.AddTrainings(ctx, id, []string{pos.ID})
		require.NoError(t, err)
	}

	d, _ := startCommandWizard(t, bot, testMember(testAdminID, true), DiscordSlashCommandAdmin, subcommandTrainerManagement)
	resp := d.click(actionAddTrainer)
	assert.Len(t, selectValues(t, resp.Data.Components, actionSelect), managementPageSize)

	resp = d.click(actionNextPage)
	assert.Len(t, selectValues(t, resp.Data.Components, actionSelect), 30-managementPageSize)

	// paging past the end stays on the last page
	resp = d.click(actionNextPage)
	assert.Len(t, selectValues(t, resp.Data.Components, actionSelect), 30-managementPageSize)
	resp = d.click(actionPrevPage)
	assert.Len(t, selectValues(t, resp.Data.Components, actionSelect), managementPageSize)
}

func TestTrainingUpdate(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	ctx := context.Background()
	fx := newSignupFixture(t, bot)
	req, err := bot.store.AddRequirement(ctx, fx.position.ID, "Knows the cocktail menu")
	require.NoError(t, err)
	global, err := bot.store.AddRequirement(ctx, GlobalPositionID, "Has read the handbook")
	require.NoError(t, err)

	d, resp := startCommandWizard(
		t, bot, testMember(testTrainerID, false),
		DiscordSlashCommandTraining, subcommandUpdate,
		userOptionValue(optionUser, testTraineeID),
	)
	assert.Equal(t, "Update Training for Trainee", resp.Data.Embeds[0].Title)
	assert.Equal(t, []string{fx.training.ID}, selectValues(t, resp.Data.Components, actionSelect))

	resp = d.click(actionSelect, fx.training.ID)
	assert.Equal(t, []string{req.ID, global.ID}, selectValues(t, resp.Data.Components, actionSelect))

	d.click(actionSelect, req.ID)
	resp = d.click(actionSelect, enumValue(RequirementLevelComplete))
	// back at the requirement list, so several can be updated
	assert.Equal(t, []string{req.ID, global.ID}, selectValues(t, resp.Data.Components, actionSelect))
	d.click(actionSelect, global.ID)
	d.click(actionSelect, enumValue(RequirementLevelWaived))

	tr, _ := bot.store.Training(fx.training.ID)
	assert.Equal(
		t,
		map[string]RequirementLevel{req.ID: RequirementLevelComplete, global.ID: RequirementLevelWaived},
		tr.Overrides,
	)

	resp = d.click(actionSelect, "missing")
	assert.Equal(t, "Requirement Not Found", resp.Data.Embeds[len(resp.Data.Embeds)-1].Title)

	d.click(actionBack)
	resp = d.click(actionBack)
	assert.Equal(t, "Update Training for Trainee", resp.Data.Embeds[0].Title)
}

func TestTrainingUpdate_Errors(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	fx := newSignupFixture(t, bot)
	mustEnsureTUser(t, bot.store, testOtherID, "Other")

	tests := []struct {
		name   string
		member *discordgo.Member
		target string
		title  string
	}{
		{name: "unqualified", member: testMember(testOtherID, false), target: testTraineeID, title: "Unqualified :("},
		{name: "no trainings", member: testMember(testTrainerID, false), target: testOtherID, title: "Trainee Not Found"},
		{name: "manager no trainings", member: testMember(testAdminID, true), target: testOtherID, title: "Trainee Not Found"},
	}
	for _, tc := range tests {
		t.Run(
			tc.name, func(t *testing.T) {
				h := newStubInteractionHandler(
					newCommandInteraction(
						tc.member, DiscordSlashCommandTraining, subcommandUpdate,
						userOptionValue(optionUser, tc.target),
					),
				)
				bot.handleInteraction(context.Background(), h)
				resp := h.lastResponse(t)
				assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
				require.Len(t, resp.Data.Embeds, 1)
				assert.Equal(t, tc.title, resp.Data.Embeds[0].Title)
			},
		)
	}

	// managers can update any training without a qualification
	w, err := bot.newTrainingUpdate(testAdminID, testTraineeID, true)
	require.NoError(t, err)
	require.Len(t, w.trainings(), 1)
	assert.Equal(t, fx.training.ID, w.trainings()[0].ID)
}
