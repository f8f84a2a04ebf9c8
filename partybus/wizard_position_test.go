package partybus

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRoleID      = "300000000000000001"
	testOtherRoleID = "300000000000000002"
)

func TestPositionStatusWizard(t *testing.T) {
	bot, session := newTestPartyBus(t)
	session.addRole(testRoleID)
	session.addRole(testOtherRoleID)
	admin := testMember(testAdminID, true)

	d, resp := startCommandWizard(
		t, bot, admin,
		DiscordSlashCommandPositions, subcommandAdd,
		stringOption(optionName, "head dj"),
	)
	assert.Equal(t, "Position Status for: Head Dj", resp.Data.Embeds[0].Title)
	pos, ok := bot.store.PositionByName("head dj")
	require.True(t, ok)

	resp = d.submit(actionSetName, map[string]string{inputName: "lead dj"})
	assert.Equal(t, "Position Status for: Lead Dj", resp.Data.Embeds[0].Title)
	pos, _ = bot.store.Position(pos.ID)
	assert.Equal(t, "Lead Dj", pos.Name)

	resp = d.submit(actionEditTrainerRole, map[string]string{inputRoleID: " " + testRoleID + " "})
	require.Len(t, resp.Data.Embeds, 1)
	assert.Equal(t, roleMention(testRoleID), embedFieldValue(resp.Data.Embeds[0], "__Trainer Role__"))
	resp = d.submit(actionEditTraineeRole, map[string]string{inputRoleID: testOtherRoleID})
	assert.Equal(t, roleMention(testOtherRoleID), embedFieldValue(resp.Data.Embeds[0], "__Trainee Role__"))
	pos, _ = bot.store.Position(pos.ID)
	assert.Equal(t, testRoleID, pos.TrainerRoleID)
	assert.Equal(t, testOtherRoleID, pos.TraineeRoleID)

	// an empty role unlinks it
	d.submit(actionEditTrainerRole, map[string]string{inputRoleID: ""})
	pos, _ = bot.store.Position(pos.ID)
	assert.Empty(t, pos.TrainerRoleID)
	assert.Equal(t, testOtherRoleID, pos.TraineeRoleID)

	resp = d.submit(actionAddRequirement, map[string]string{inputRequirement: "Knows how to make a Mai Tai"})
	assert.Contains(t, embedFieldValue(resp.Data.Embeds[0], "__Training Requirements__"), "Mai Tai")
	pos, _ = bot.store.Position(pos.ID)
	require.Len(t, pos.Requirements, 1)

	resp = d.click(actionRemoveReq)
	assert.Equal(t, []string{pos.Requirements[0].ID}, selectValues(t, resp.Data.Components, actionSelect))
	resp = d.click(actionSelect, pos.Requirements[0].ID)
	assert.Equal(t, "Position Status for: Lead Dj", resp.Data.Embeds[0].Title)
	pos, _ = bot.store.Position(pos.ID)
	assert.Empty(t, pos.Requirements)

	resp = d.click(actionClose)
	assert.Equal(t, wizardClosedMessage, resp.Data.Content)
}

func TestPositionStatusWizard_InvalidRole(t *testing.T) {
	bot, session := newTestPartyBus(t)
	session.addRole(testRoleID)
	admin := testMember(testAdminID, true)

	d, _ := startCommandWizard(
		t, bot, admin,
		DiscordSlashCommandPositions, subcommandAdd,
		stringOption(optionName, "bartender"),
	)

	tests := map[string]string{
		"abc":                "Invalid Number",
		"-5":                 "Invalid Number",
		"300000000000000009": "Invalid Role ID",
	}
	for value, title := range tests {
		resp := d.submit(actionEditTrainerRole, map[string]string{inputRoleID: value})
		require.Len(t, resp.Data.Embeds, 2, value)
		assert.Equal(t, title, resp.Data.Embeds[1].Title, value)
	}
	pos, _ := bot.store.PositionByName("bartender")
	assert.Empty(t, pos.TrainerRoleID)
}

func TestPositionsCommand_Status(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	admin := testMember(testAdminID, true)
	bartender := mustAddPosition(t, bot.store, "bartender")
	mustAddPosition(t, bot.store, "dancer")

	d, resp := startCommandWizard(t, bot, admin, DiscordSlashCommandPositions, subcommandStatus)
	assert.Equal(t, "Position Status", resp.Data.Embeds[0].Title)
	assert.Len(t, selectValues(t, resp.Data.Components, actionSelect), 2)

	resp = d.click(actionSelect, "missing")
	require.Len(t, resp.Data.Embeds, 2)
	assert.Equal(t, "Position Not Found", resp.Data.Embeds[1].Title)

	resp = d.click(actionSelect, bartender.ID)
	assert.Equal(t, "Position Status for: Bartender", resp.Data.Embeds[0].Title)

	_, resp = startCommandWizard(
		t, bot, admin,
		DiscordSlashCommandPositions, subcommandStatus,
		stringOption(optionPosition, "DANCER"),
	)
	assert.Equal(t, "Position Status for: Dancer", resp.Data.Embeds[0].Title)
}

func TestPositionsCommand_Errors(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	admin := testMember(testAdminID, true)
	mustAddPosition(t, bot.store, "bartender")

	tests := []struct {
		name   string
		sub    string
		option *discordgo.ApplicationCommandInteractionDataOption
		title  string
	}{
		{name: "duplicate", sub: subcommandAdd, option: stringOption(optionName, "Bartender"), title: "Position Exists"},
		{name: "unknown", sub: subcommandStatus, option: stringOption(optionPosition, "DJ"), title: "Position Not Found"},
	}
	for _, tc := range tests {
		t.Run(
			tc.name, func(t *testing.T) {
				h := newStubInteractionHandler(newCommandInteraction(admin, DiscordSlashCommandPositions, tc.sub, tc.option))
				bot.handleInteraction(context.Background(), h)
				resp := h.lastResponse(t)
				assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
				require.Len(t, resp.Data.Embeds, 1)
				assert.Equal(t, tc.title, resp.Data.Embeds[0].Title)
			},
		)
	}
	assert.Len(t, bot.store.Positions(), 1)
	assert.Zero(t, bot.wizards.len())
}

func TestGlobalRequirementsWizard(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	admin := testMember(testAdminID, true)
	pos := mustAddPosition(t, bot.store, "bartender")

	d, resp := startCommandWizard(t, bot, admin, DiscordSlashCommandPositions, subcommandGlobalReqs)
	assert.Equal(t, "Global Job Training Requirements", resp.Data.Embeds[0].Title)

	d.submit(actionAddRequirement, map[string]string{inputRequirement: "Has read the handbook"})
	reqs := bot.store.GlobalRequirements()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].IsGlobal())

	// global requirements apply to every position
	assert.Len(t, bot.store.RequirementsFor(pos.ID), 1)
	p, _ := bot.store.Position(pos.ID)
	embed := positionStatusEmbed(p, bot.store.GlobalRequirements())
	assert.Contains(t, embedFieldValue(embed, "__Training Requirements__"), "Has read the handbook **(Global)**")

	resp = d.click(actionRemoveReq)
	assert.Equal(t, []string{reqs[0].ID}, selectValues(t, resp.Data.Components, actionSelect))
	resp = d.click(actionBack)
	assert.Equal(t, "Global Job Training Requirements", resp.Data.Embeds[0].Title)

	d.click(actionRemoveReq)
	d.click(actionSelect, reqs[0].ID)
	assert.Empty(t, bot.store.GlobalRequirements())
}

func TestParseRoleID(t *testing.T) {
	bot, session := newTestPartyBus(t)
	session.addRole(testRoleID)

	id, err := bot.parseRoleID("  ")
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = bot.parseRoleID(testRoleID)
	require.NoError(t, err)
	assert.Equal(t, testRoleID, id)

	_, err = bot.parseRoleID("abc")
	assert.ErrorIs(t, err, ErrInvalidNumber)

	session.mu.Lock()
	session.rolesErr = errors.New("discord unavailable")
	session.mu.Unlock()
	_, err = bot.parseRoleID(testRoleID)
	assert.ErrorIs(t, err, ErrInvalidRoleID)
}

func TestVerifyPositionRoles(t *testing.T) {
	bot, session := newTestPartyBus(t)
	ctx := context.Background()
	session.addRole(testRoleID)

	bartender := mustAddPosition(t, bot.store, "bartender")
	missing := "300000000000000009"
	trainerRoleID, traineeRoleID := testRoleID, missing
	_, err := bot.store.SetPositionRoles(ctx, bartender.ID, &trainerRoleID, &traineeRoleID)
	require.NoError(t, err)

	// roles can't be checked, so they're left alone
	session.mu.Lock()
	session.rolesErr = errors.New("discord unavailable")
	session.mu.Unlock()
	bot.verifyPositionRoles(ctx)
	pos, _ := bot.store.Position(bartender.ID)
	assert.Equal(t, missing, pos.TraineeRoleID)

	session.mu.Lock()
	session.rolesErr = nil
	session.mu.Unlock()
	bot.verifyPositionRoles(ctx)
	pos, _ = bot.store.Position(bartender.ID)
	assert.Equal(t, testRoleID, pos.TrainerRoleID)
	assert.Empty(t, pos.TraineeRoleID)

	// the cleared role is persisted
	require.NoError(t, bot.store.Load(ctx))
	pos, _ = bot.store.Position(bartender.ID)
	assert.Empty(t, pos.TraineeRoleID)
}
