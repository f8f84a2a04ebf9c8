package partybus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// countingWizard counts "continue" events, and finishes on confirm
type countingWizard struct {
	userID string
	count  int
	events []wizardEvent
	err    error
}

func (w *countingWizard) owner() string {
	return w.userID
}

func (w *countingWizard) render(sid string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{newEmbed("Counter", "")},
		Components: buttonRows(
			button(wizardCustomID(sid, actionContinue), "+1", discordgo.PrimaryButton, false),
			button(wizardCustomID(sid, actionConfirm), "Done", discordgo.SuccessButton, false),
			button(wizardCustomID(sid, actionModalSubmit), "Edit", discordgo.SecondaryButton, false),
			cancelButton(sid),
			closeButton(sid),
		),
	}
}

func (w *countingWizard) modal(sid string) *discordgo.InteractionResponseData {
	return textInputModal(
		wizardCustomID(sid, actionModalSubmit),
		"Edit",
		discordgo.TextInput{CustomID: "count", Label: "Count", Style: discordgo.TextInputShort},
	)
}

func (w *countingWizard) handle(_ context.Context, ev wizardEvent) (wizardResult, error) {
	w.events = append(w.events, ev)
	if w.err != nil {
		return resultRender, w.err
	}
	switch ev.Action {
	case actionContinue:
		w.count++
	case actionConfirm:
		return resultDone, nil
	case actionModalSubmit:
		if len(ev.Fields) == 0 {
			return resultModal, nil
		}
	}
	return resultRender, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(ttl time.Duration) (*wizardRegistry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := newWizardRegistry(ttl, nil)
	r.now = clock.Now
	return r, clock
}

func TestWizardRegistry_Expiry(t *testing.T) {
	r, clock := newTestRegistry(time.Minute)

	s, err := r.start(&countingWizard{userID: testAdminID})
	require.NoError(t, err)
	assert.Len(t, s.id, wizardSessionIDBytes*2)
	assert.Equal(t, 1, r.len())

	// activity extends the session
	clock.Advance(50 * time.Second)
	_, ok := r.get(s.id)
	require.True(t, ok)
	clock.Advance(50 * time.Second)
	_, ok = r.get(s.id)
	require.True(t, ok)

	clock.Advance(61 * time.Second)
	_, ok = r.get(s.id)
	assert.False(t, ok)
	assert.Zero(t, r.len())
}

func TestWizardRegistry_Sweep(t *testing.T) {
	r, clock := newTestRegistry(time.Minute)

	first, err := r.start(&countingWizard{userID: testAdminID})
	require.NoError(t, err)
	clock.Advance(45 * time.Second)
	second, err := r.start(&countingWizard{userID: testAdminID})
	require.NoError(t, err)
	require.NotEqual(t, first.id, second.id)

	clock.Advance(30 * time.Second)
	assert.Equal(t, 1, r.sweep())
	_, ok := r.get(second.id)
	assert.True(t, ok)

	r.remove(second.id)
	assert.Zero(t, r.len())
	assert.Zero(t, r.sweep())
}

func TestWizardRegistry_Run(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := newWizardRegistry(time.Millisecond, nil)
	_, err := r.start(&countingWizard{userID: testAdminID})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.run(ctx, 5*time.Millisecond)
	}()

	assert.Eventually(
		t, func() bool { return r.len() == 0 },
		time.Second, 5*time.Millisecond,
	)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestParseWizardCustomID(t *testing.T) {
	id := wizardCustomID("abc123", actionConfirm)
	assert.Equal(t, "wz:abc123:confirm", id)

	sid, action, ok := parseWizardCustomID(id)
	require.True(t, ok)
	assert.Equal(t, "abc123", sid)
	assert.Equal(t, actionConfirm, action)

	for _, bad := range []string{"", "wz", "wz:abc", "wz::confirm", "wz:abc:", "signup:select:0"} {
		_, _, ok = parseWizardCustomID(bad)
		assert.False(t, ok, bad)
	}
}

func startTestWizard(t *testing.T, bot *PartyBus, w wizard) (*stubInteractionHandler, string) {
	t.Helper()
	h := newStubInteractionHandler(
		newCommandInteraction(testMember(testAdminID, true), DiscordSlashCommandAdmin, subcommandConfig),
	)
	require.NoError(t, bot.startWizard(context.Background(), h, w))
	resp := h.lastResponse(t)
	require.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	require.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	sid, _, ok := parseWizardCustomID(findCustomID(t, resp.Data.Components, actionConfirm))
	require.True(t, ok)
	return h, sid
}

func clickWizard(
	t *testing.T,
	bot *PartyBus,
	userID string,
	sid string,
	action string,
	values ...string,
) *discordgo.InteractionResponse {
	t.Helper()
	h := newStubInteractionHandler(
		newComponentInteraction(testMember(userID, true), wizardCustomID(sid, action), values...),
	)
	bot.handleInteraction(context.Background(), h)
	return h.lastResponse(t)
}

func TestContinueWizard(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	w := &countingWizard{userID: testAdminID}
	_, sid := startTestWizard(t, bot, w)

	resp := clickWizard(t, bot, testAdminID, sid, actionContinue)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.NotEmpty(t, resp.Data.Components)
	assert.Equal(t, 1, w.count)

	resp = clickWizard(t, bot, testAdminID, sid, actionModalSubmit)
	require.Equal(t, discordgo.InteractionResponseModal, resp.Type)
	assert.Equal(t, wizardCustomID(sid, actionModalSubmit), resp.Data.CustomID)

	modal := newStubInteractionHandler(
		newModalInteraction(
			testMember(testAdminID, true),
			wizardCustomID(sid, actionModalSubmit),
			map[string]string{"count": "5"},
		),
	)
	bot.handleInteraction(context.Background(), modal)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, modal.lastResponse(t).Type)
	last := w.events[len(w.events)-1]
	assert.Equal(t, testAdminID, last.UserID)
	assert.Equal(t, map[string]string{"count": "5"}, last.Fields)

	resp = clickWizard(t, bot, testAdminID, sid, actionConfirm)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Empty(t, resp.Data.Components)
	assert.Equal(t, "Counter", resp.Data.Embeds[0].Title)
	assert.Zero(t, bot.wizards.len())

	resp = clickWizard(t, bot, testAdminID, sid, actionContinue)
	assert.Equal(t, wizardExpiredMessage, resp.Data.Content)
	assert.Equal(t, 1, w.count)
}

func TestContinueWizard_Cancel(t *testing.T) {
	for action, message := range map[string]string{
		actionCancel: wizardCancelledMessage,
		actionClose:  wizardClosedMessage,
	} {
		t.Run(
			action, func(t *testing.T) {
				bot, _ := newTestPartyBus(t)
				w := &countingWizard{userID: testAdminID}
				_, sid := startTestWizard(t, bot, w)

				resp := clickWizard(t, bot, testAdminID, sid, action)
				assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
				assert.Equal(t, message, resp.Data.Content)
				assert.Empty(t, resp.Data.Components)
				assert.Empty(t, resp.Data.Embeds)
				assert.Zero(t, bot.wizards.len())
				assert.Empty(t, w.events)
			},
		)
	}
}

func TestContinueWizard_NotOwner(t *testing.T) {
	bot, _ := newTestPartyBus(t)
	w := &countingWizard{userID: testAdminID}
	_, sid := startTestWizard(t, bot, w)

	resp := clickWizard(t, bot, testOtherID, sid, actionCancel)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	assert.Equal(t, wizardNotOwnerMessage, resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	assert.Equal(t, 1, bot.wizards.len())
}

func TestContinueWizard_Error(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		title string
	}{
		{name: "display error", err: newInvalidNumberError("abc"), title: "Invalid Number"},
		{name: "internal error", err: errors.New("boom"), title: "Something Went Wrong"},
	}
	for _, tc := range tests {
		t.Run(
			tc.name, func(t *testing.T) {
				bot, _ := newTestPartyBus(t)
				w := &countingWizard{userID: testAdminID, err: tc.err}
				_, sid := startTestWizard(t, bot, w)

				resp := clickWizard(t, bot, testAdminID, sid, actionContinue)
				require.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
				require.Len(t, resp.Data.Embeds, 2)
				assert.Equal(t, "Counter", resp.Data.Embeds[0].Title)
				assert.Equal(t, tc.title, resp.Data.Embeds[1].Title)
				assert.NotEmpty(t, resp.Data.Components)
				assert.Equal(t, 1, bot.wizards.len())
			},
		)
	}
}

func TestSelectRow(t *testing.T) {
	row := selectRow("id", "pick", nil, 3)
	menu, ok := row.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)
	assert.True(t, menu.Disabled)
	assert.Equal(t, 1, menu.MaxValues)
	require.Len(t, menu.Options, 1)
	assert.Equal(t, "-1", menu.Options[0].Value)

	opts := make([]discordgo.SelectMenuOption, 30)
	row = selectRow("id", "pick", opts, 40)
	menu = row.Components[0].(discordgo.SelectMenu)
	assert.Len(t, menu.Options, discordMaxSelectOptions)
	assert.Equal(t, discordMaxSelectOptions, menu.MaxValues)
	assert.False(t, menu.Disabled)
}

func TestButtonRows(t *testing.T) {
	buttons := make([]discordgo.Button, 7)
	rows := buttonRows(buttons...)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0].(discordgo.ActionsRow).Components, 5)
	assert.Len(t, rows[1].(discordgo.ActionsRow).Components, 2)
}

// wizardDriver delivers clicks and modal submissions to one wizard
// session, the way discord would
type wizardDriver struct {
	t      *testing.T
	bot    *PartyBus
	member *discordgo.Member
	sid    string
}

// startCommandWizard runs a slash command that opens a wizard,
// returning a driver for the session and the first response
func startCommandWizard(
	t *testing.T,
	bot *PartyBus,
	member *discordgo.Member,
	command string,
	subcommand string,
	options ...*discordgo.ApplicationCommandInteractionDataOption,
) (*wizardDriver, *discordgo.InteractionResponse) {
	t.Helper()
	h := newStubInteractionHandler(newCommandInteraction(member, command, subcommand, options...))
	bot.handleInteraction(context.Background(), h)

	resp := h.lastResponse(t)
	require.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	require.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	sid := wizardSessionID(t, resp.Data.Components)
	return &wizardDriver{t: t, bot: bot, member: member, sid: sid}, resp
}

func wizardSessionID(t testing.TB, components []discordgo.MessageComponent) string {
	t.Helper()
	for _, action := range []string{actionCancel, actionClose, actionContinue, actionConfirm} {
		for _, c := range components {
			row, ok := c.(discordgo.ActionsRow)
			if !ok {
				continue
			}
			for _, rc := range row.Components {
				if b, isButton := rc.(discordgo.Button); isButton {
					if sid, a, found := parseWizardCustomID(b.CustomID); found && a == action {
						return sid
					}
				}
			}
		}
	}
	t.Fatal("response has no wizard components")
	return ""
}

func (d *wizardDriver) click(action string, values ...string) *discordgo.InteractionResponse {
	d.t.Helper()
	h := newStubInteractionHandler(newComponentInteraction(d.member, wizardCustomID(d.sid, action), values...))
	d.bot.handleInteraction(context.Background(), h)
	return h.lastResponse(d.t)
}

// submit clicks the button that opens a modal, then submits the modal
// with fields
func (d *wizardDriver) submit(action string, fields map[string]string) *discordgo.InteractionResponse {
	d.t.Helper()
	resp := d.click(action)
	require.Equal(d.t, discordgo.InteractionResponseModal, resp.Type)
	require.Equal(d.t, wizardCustomID(d.sid, actionModalSubmit), resp.Data.CustomID)

	h := newStubInteractionHandler(newModalInteraction(d.member, resp.Data.CustomID, fields))
	d.bot.handleInteraction(context.Background(), h)
	return h.lastResponse(d.t)
}

// session returns the wizard behind the driver
func (d *wizardDriver) session() wizard {
	d.t.Helper()
	s, ok := d.bot.wizards.get(d.sid)
	require.True(d.t, ok, "wizard session ended")
	return s.w
}

// selectValues returns the option values of the wizard select menu
// with the given action
func selectValues(t testing.TB, components []discordgo.MessageComponent, action string) []string {
	t.Helper()
	for _, menu := range selectMenus(t, components) {
		if _, a, ok := parseWizardCustomID(menu.CustomID); ok && a == action {
			if menu.Disabled {
				return nil
			}
			values := make([]string, 0, len(menu.Options))
			for _, o := range menu.Options {
				values = append(values, o.Value)
			}
			return values
		}
	}
	t.Fatalf("no select with action %q", action)
	return nil
}

// embedFieldValue returns the value of the embed's field named name
func embedFieldValue(embed *discordgo.MessageEmbed, name string) string {
	for _, f := range embed.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}
