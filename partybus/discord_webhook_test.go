package partybus

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedRequest(t testing.TB, key ed25519.PrivateKey, body []byte) *http.Request {
	t.Helper()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig := ed25519.Sign(key, append([]byte(timestamp), body...))

	req, err := http.NewRequest(http.MethodPost, apiDiscordInteractions, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
	req.Header.Set("X-Signature-Timestamp", timestamp)
	return req
}

func TestVerifyRequest(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	body := []byte(`{"type":1}`)

	tests := []struct {
		name   string
		key    ed25519.PublicKey
		modify func(r *http.Request)
		valid  bool
	}{
		{name: "valid", key: pub, valid: true},
		{name: "wrong key", key: otherPub},
		{name: "short key", key: pub[:16]},
		{
			name:   "missing signature",
			key:    pub,
			modify: func(r *http.Request) { r.Header.Del("X-Signature-Ed25519") },
		},
		{
			name:   "signature not hex",
			key:    pub,
			modify: func(r *http.Request) { r.Header.Set("X-Signature-Ed25519", "not hex") },
		},
		{
			name:   "short signature",
			key:    pub,
			modify: func(r *http.Request) { r.Header.Set("X-Signature-Ed25519", "abcd") },
		},
		{
			name:   "missing timestamp",
			key:    pub,
			modify: func(r *http.Request) { r.Header.Del("X-Signature-Timestamp") },
		},
		{
			name:   "different timestamp",
			key:    pub,
			modify: func(r *http.Request) { r.Header.Set("X-Signature-Timestamp", "1") },
		},
		{
			name: "tampered body",
			key:  pub,
			modify: func(r *http.Request) {
				r.Body = io.NopCloser(bytes.NewReader([]byte(`{"type":2}`)))
			},
		},
	}
	for _, tc := range tests {
		t.Run(
			tc.name, func(t *testing.T) {
				req := signedRequest(t, priv, body)
				if tc.modify != nil {
					tc.modify(req)
				}
				assert.Equal(t, tc.valid, verifyRequest(req, tc.key))
			},
		)
	}

	// the body can still be read by the handler
	req := signedRequest(t, priv, body)
	require.True(t, verifyRequest(req, pub))
	restored, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, restored)
}

func TestRecentTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := map[string]bool{
		"1700000000": true,
		"1699999800": true,
		"1700000290": true,
		"1699999000": false,
		"1700001000": false,
		"":           false,
		"yesterday":  false,
	}
	for timestamp, want := range tests {
		assert.Equal(t, want, recentTimestamp(timestamp, now), timestamp)
	}
}

func TestVerifyRequest_StaleTimestamp(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	body := []byte(`{"type":1}`)

	// correctly signed, but replayed ten minutes later
	timestamp := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	sig := ed25519.Sign(priv, append([]byte(timestamp), body...))
	req, err := http.NewRequest(http.MethodPost, apiDiscordInteractions, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
	req.Header.Set("X-Signature-Timestamp", timestamp)
	assert.False(t, verifyRequest(req, pub))
}

// newTestWebhookBot returns a bot with the webhook server enabled, and
// the key webhook requests should be signed with
func newTestWebhookBot(t testing.TB) (*PartyBus, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cfg := DefaultTestConfig(t)
	cfg.Discord.WebhookServer.Enabled = true
	cfg.Discord.WebhookServer.Listen = "127.0.0.1:0"
	cfg.Discord.WebhookServer.PublicKey = hex.EncodeToString(pub)
	bot, _ := newTestPartyBusWithConfig(t, cfg)
	require.NotNil(t, bot.discordWebhookServer)

	bot.getInteractionHandlerFunc = func(_ context.Context, i *discordgo.InteractionCreate) InteractionHandler {
		return newStubInteractionHandler(i)
	}
	bot.webhookInteractionHandler = webhookReceiveHandler(context.Background(), bot)
	return bot, priv
}

func serveWebhook(bot *PartyBus, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	bot.discordWebhookServer.engine.ServeHTTP(w, req)
	return w
}

func TestDiscordWebhook_Ping(t *testing.T) {
	bot, priv := newTestWebhookBot(t)
	body := []byte(fmt.Sprintf(`{"id":"1","type":1,"user":{"id":%q,"username":"someone"}}`, testOtherID))

	w := serveWebhook(bot, signedRequest(t, priv, body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp discordgo.InteractionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, discordgo.InteractionResponsePong, resp.Type)

	// unsigned requests never reach the handler
	req := signedRequest(t, priv, body)
	req.Header.Del("X-Signature-Ed25519")
	w = serveWebhook(bot, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDiscordWebhook_Command(t *testing.T) {
	bot, priv := newTestWebhookBot(t)
	require.True(t, bot.Pause(context.Background()))

	body := []byte(
		fmt.Sprintf(
			`{"id":"2","type":2,"guild_id":%q,"member":{"user":{"id":%q,"username":"user03"}},`+
				`"data":{"id":"3","name":%q,"type":1,"options":[{"name":%q,"type":1}]}}`,
			testGuildID, testTraineeID, DiscordSlashCommandTraining, subcommandProfile,
		),
	)
	w := serveWebhook(bot, signedRequest(t, priv, body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp discordgo.InteractionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	require.NotNil(t, resp.Data)
	assert.Equal(t, pausedMessage, resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
}

func TestDiscordWebhook_BadBody(t *testing.T) {
	bot, priv := newTestWebhookBot(t)
	w := serveWebhook(bot, signedRequest(t, priv, []byte("not json")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
