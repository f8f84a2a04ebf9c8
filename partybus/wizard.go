package partybus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	actionCancel   = "cancel"
	actionClose    = "close"
	actionConfirm  = "confirm"
	actionContinue = "continue"
	actionBack     = "back"

	wizardSessionIDBytes = 8

	wizardExpiredMessage   = "This menu has expired. Run the command again to start over."
	wizardNotOwnerMessage  = "This menu belongs to someone else."
	wizardCancelledMessage = "Cancelled. Nothing was changed."
	wizardClosedMessage    = "Closed."
)

// wizardResult tells the dispatcher how to answer the interaction that
// drove a wizard step
type wizardResult int

const (
	// resultRender updates the wizard message with the current state
	resultRender wizardResult = iota

	// resultModal opens the wizard's pending modal
	resultModal

	// resultDone renders the final state without components and ends
	// the session
	resultDone
)

// wizardEvent is a single interaction delivered to a wizard
type wizardEvent struct {
	UserID string
	Action string

	// Values holds the selected values of a select menu
	Values []string

	// Fields holds submitted modal text inputs, keyed by input custom ID
	Fields map[string]string
}

func (e wizardEvent) value() string {
	if len(e.Values) == 0 {
		return ""
	}
	return e.Values[0]
}

// wizard is a multi-step interactive menu, modeled as a state machine.
// Each wizard keeps its collected fields in memory and only writes to
// the store when it commits.
type wizard interface {
	// owner is the ID of the user allowed to drive the wizard
	owner() string

	// render returns the message for the wizard's current state
	render(sessionID string) *discordgo.InteractionResponseData

	// modal returns the modal to show after handle returns resultModal
	modal(sessionID string) *discordgo.InteractionResponseData

	// handle applies an event, returning how to respond. A
	// *DisplayError leaves the wizard in its current state, and the
	// error is shown alongside it.
	handle(ctx context.Context, ev wizardEvent) (wizardResult, error)
}

// followUpWizard is implemented by wizards with work that waits until
// the interaction has been answered, like DMs and signup reposts
type followUpWizard interface {
	// takeFollowUps returns the queued work and clears the queue
	takeFollowUps() []func(ctx context.Context)
}

// followUps is embedded by wizards to queue follow-up work from handle
type followUps struct {
	pending []func(ctx context.Context)
}

func (f *followUps) after(fn func(ctx context.Context)) {
	f.pending = append(f.pending, fn)
}

func (f *followUps) takeFollowUps() []func(ctx context.Context) {
	fns := f.pending
	f.pending = nil
	return fns
}

type wizardSession struct {
	id      string
	w       wizard
	mu      sync.Mutex
	expires time.Time
}

// wizardRegistry tracks in-progress wizards by session ID. Sessions
// expire after ttl without activity, and run removes expired sessions
// periodically.
type wizardRegistry struct {
	mu       sync.Mutex
	sessions map[string]*wizardSession
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func newWizardRegistry(ttl time.Duration, logger *slog.Logger) *wizardRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &wizardRegistry{
		sessions: map[string]*wizardSession{},
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.With(loggerNameKey, "wizards"),
	}
}

func (r *wizardRegistry) start(w wizard) (*wizardSession, error) {
	id, err := generateRandomHexString(wizardSessionIDBytes)
	if err != nil {
		return nil, err
	}
	s := &wizardSession{id: id, w: w}

	r.mu.Lock()
	defer r.mu.Unlock()
	s.expires = r.now().Add(r.ttl)
	r.sessions[id] = s
	return s, nil
}

// get returns the session and extends its expiry. Expired sessions
// are removed and reported as missing.
func (r *wizardRegistry) get(id string) (*wizardSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.After(s.expires) {
		delete(r.sessions, id)
		return nil, false
	}
	s.expires = now.Add(r.ttl)
	return s, true
}

func (r *wizardRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *wizardRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// sweep removes expired sessions, returning the number removed
func (r *wizardRegistry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for id, s := range r.sessions {
		if now.After(s.expires) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// run sweeps expired sessions every interval until ctx is done
func (r *wizardRegistry) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.sweep(); n > 0 {
				r.logger.DebugContext(ctx, "removed expired wizards", "count", n)
			}
		}
	}
}

// startWizard registers w and answers the interaction with its first
// step, visible only to the invoking user
func (p *PartyBus) startWizard(ctx context.Context, handler InteractionHandler, w wizard) error {
	s, err := p.wizards.start(w)
	if err != nil {
		_ = handler.Respond(ctx, errorResponse(err))
		return err
	}
	data := w.render(s.id)
	data.Flags = discordgo.MessageFlagsEphemeral
	return handler.Respond(
		ctx,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		},
	)
}

// continueWizard delivers ev to the wizard session it belongs to
func (p *PartyBus) continueWizard(
	ctx context.Context,
	handler InteractionHandler,
	sessionID string,
	ev wizardEvent,
) {
	logger := handler.Logger()
	s, ok := p.wizards.get(sessionID)
	if !ok {
		_ = handler.Respond(ctx, updateMessage(&discordgo.InteractionResponseData{Content: wizardExpiredMessage}))
		return
	}
	if s.w.owner() != ev.UserID {
		_ = handler.Respond(ctx, ephemeralResponse(wizardNotOwnerMessage))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Action {
	case actionCancel:
		p.wizards.remove(sessionID)
		_ = handler.Respond(ctx, updateMessage(&discordgo.InteractionResponseData{Content: wizardCancelledMessage}))
		return
	case actionClose:
		p.wizards.remove(sessionID)
		_ = handler.Respond(ctx, updateMessage(&discordgo.InteractionResponseData{Content: wizardClosedMessage}))
		return
	}

	result, err := s.w.handle(ctx, ev)
	defer p.runFollowUps(ctx, s.w)
	if err != nil {
		var de *DisplayError
		if !errors.As(err, &de) {
			logger.ErrorContext(ctx, "wizard step failed", tint.Err(err), "action", ev.Action)
		}
		data := s.w.render(sessionID)
		data.Embeds = append(data.Embeds, errorEmbed(err))
		_ = handler.Respond(ctx, updateMessage(data))
		return
	}

	switch result {
	case resultModal:
		_ = handler.Respond(
			ctx,
			&discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseModal,
				Data: s.w.modal(sessionID),
			},
		)
	case resultDone:
		p.wizards.remove(sessionID)
		data := s.w.render(sessionID)
		data.Components = []discordgo.MessageComponent{}
		_ = handler.Respond(ctx, updateMessage(data))
	default:
		_ = handler.Respond(ctx, updateMessage(s.w.render(sessionID)))
	}
}

// runFollowUps runs the wizard's queued work in the background, once
// the interaction has been answered
func (p *PartyBus) runFollowUps(ctx context.Context, w wizard) {
	f, ok := w.(followUpWizard)
	if !ok {
		return
	}
	fns := f.takeFollowUps()
	if len(fns) == 0 {
		return
	}
	p.deferredWG.Add(1)
	go func() {
		defer p.deferredWG.Done()
		for _, fn := range fns {
			fn(ctx)
		}
	}()
}

func updateMessage(data *discordgo.InteractionResponseData) *discordgo.InteractionResponse {
	if data.Components == nil {
		data.Components = []discordgo.MessageComponent{}
	}
	if data.Embeds == nil {
		data.Embeds = []*discordgo.MessageEmbed{}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	}
}

// component builders shared by the wizards

func selectRow(
	customID string,
	placeholder string,
	options []discordgo.SelectMenuOption,
	maxValues int,
) discordgo.ActionsRow {
	disabled := false
	if len(options) == 0 {
		options = []discordgo.SelectMenuOption{{Label: "None", Value: "-1"}}
		disabled = true
	}
	if len(options) > discordMaxSelectOptions {
		options = options[:discordMaxSelectOptions]
	}
	minValues := 1
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    customID,
				Placeholder: placeholder,
				Options:     options,
				MinValues:   &minValues,
				MaxValues:   min(max(maxValues, 1), len(options)),
				Disabled:    disabled,
			},
		},
	}
}

func button(customID string, label string, style discordgo.ButtonStyle, disabled bool) discordgo.Button {
	return discordgo.Button{
		CustomID: customID,
		Label:    label,
		Style:    style,
		Disabled: disabled,
	}
}

// buttonRows lays buttons out in rows of at most five
func buttonRows(buttons ...discordgo.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for _, chunk := range chunkItems(discordMaxButtonsPerActionRow, buttons...) {
		row := discordgo.ActionsRow{}
		for _, b := range chunk {
			row.Components = append(row.Components, b)
		}
		rows = append(rows, row)
	}
	return rows
}

func cancelButton(sessionID string) discordgo.Button {
	return button(wizardCustomID(sessionID, actionCancel), "Cancel", discordgo.DangerButton, false)
}

func closeButton(sessionID string) discordgo.Button {
	return button(wizardCustomID(sessionID, actionClose), "Close", discordgo.SecondaryButton, false)
}

func confirmButtons(sessionID string) []discordgo.MessageComponent {
	return buttonRows(
		button(wizardCustomID(sessionID, actionConfirm), "Confirm", discordgo.SuccessButton, false),
		cancelButton(sessionID),
	)
}

// textInputModal builds a modal from text inputs, one per row
func textInputModal(
	customID string,
	title string,
	inputs ...discordgo.TextInput,
) *discordgo.InteractionResponseData {
	rows := make([]discordgo.MessageComponent, 0, len(inputs))
	for _, in := range inputs {
		in.Label = truncate(in.Label, discordModalInputLabelMaxLength)
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{in}})
	}
	return &discordgo.InteractionResponseData{
		CustomID:   customID,
		Title:      truncate(title, discordModalInputLabelMaxLength),
		Components: rows,
	}
}

// positionOptions builds select options for positions, excluding
// any whose ID is in exclude
func positionOptions(positions []Position, exclude map[string]bool) []discordgo.SelectMenuOption {
	opts := make([]discordgo.SelectMenuOption, 0, len(positions))
	for _, pos := range positions {
		if exclude[pos.ID] {
			continue
		}
		opts = append(opts, discordgo.SelectMenuOption{Label: selectLabel(pos.Name), Value: pos.ID})
	}
	return opts
}
