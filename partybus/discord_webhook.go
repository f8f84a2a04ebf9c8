package partybus

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

const (
	headerSignature = "X-Signature-Ed25519"
	headerTimestamp = "X-Signature-Timestamp"

	// interaction payloads are small, anything bigger isn't from discord
	webhookMaxBodyBytes = 1 << 20

	// signed requests with a timestamp further than this from now are
	// rejected as replays
	webhookMaxClockSkew = 5 * time.Minute
)

// DiscordWebhookServer receives discord interactions as HTTP POSTs,
// for when the gateway isn't used
type DiscordWebhookServer struct {
	config     DiscordWebhookServerConfig
	httpServer *http.Server
	engine     *gin.Engine
	logger     *slog.Logger
}

func (d *DiscordWebhookServer) Serve(ctx context.Context) error {
	d.logger.InfoContext(
		ctx, "webhook server listening",
		"listen", d.config.Listen,
		"tls", d.httpServer.TLSConfig != nil,
	)
	if d.httpServer.TLSConfig == nil {
		d.logger.WarnContext(ctx, "starting server without TLS")
		return d.httpServer.ListenAndServe()
	}
	return d.httpServer.ListenAndServeTLS("", "")
}

// newWebhookServer creates the webhook server. Requests are verified
// against the application's public key before they're handled.
func newWebhookServer(
	p *PartyBus,
	config DiscordWebhookServerConfig,
) (*DiscordWebhookServer, error) {
	handler := tint.NewHandler(
		defaultLogWriter,
		&tint.Options{Level: config.LogLevel, AddSource: true},
	)
	server := &DiscordWebhookServer{
		config: config,
		engine: gin.New(),
		logger: slog.New(handler).With(loggerNameKey, "discord_webhook"),
		httpServer: &http.Server{
			Addr:              config.Listen,
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
	}
	server.httpServer.Handler = server.engine

	if config.SSL.Cert != "" {
		tlsCfg, err := tlsConfig(config.SSL)
		if err != nil {
			return nil, fmt.Errorf("error loading webhook SSL certs: %w", err)
		}
		server.httpServer.TLSConfig = tlsCfg
	}

	if p.config.API.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
		server.engine.Use(gin.Recovery())
	}
	server.engine.Use(requestIDMiddleware(), ginLoggingMiddleware())

	// the handler is looked up per request, as it's only set once the
	// bot is running
	server.engine.POST(
		apiDiscordInteractions,
		discordRequestAuthenticationMiddleware(p.discord.publicKey),
		func(c *gin.Context) { p.webhookInteractionHandler(c) },
	)
	return server, nil
}

// WebhookHandler answers interactions received by webhook in the HTTP
// response, and uses the embedded handler for everything else (edits,
// deletes and followups go through the REST API either way).
type WebhookHandler struct {
	ginContext *gin.Context
	InteractionHandler
}

func (WebhookHandler) InteractionReceiveMethod() DiscordInteractionReceiveMethod {
	return discordInteractionReceiveMethodWebhook
}

func (w WebhookHandler) Respond(
	_ context.Context,
	response *discordgo.InteractionResponse,
) error {
	w.ginContext.JSON(http.StatusOK, response)
	return nil
}

// webhookReceiveHandler returns a handler which decodes the
// interaction in the request body and handles it
func webhookReceiveHandler(ctx context.Context, p *PartyBus) func(c *gin.Context) {
	return func(c *gin.Context) {
		requestID, _ := c.Get(xRequestIDHeader)
		logger := ginContextLogger(c).With(
			slog.Group(
				"webhook_request",
				"remote_ip", c.RemoteIP(),
				xRequestIDHeader, requestID,
			),
		)
		runCtx := WithLogger(ctx, logger)

		var interaction discordgo.InteractionCreate
		if err := json.NewDecoder(c.Request.Body).Decode(&interaction); err != nil {
			logger.WarnContext(runCtx, "invalid interaction payload", tint.Err(err))
			c.JSON(http.StatusBadRequest, httpError{Error: "invalid interaction payload"})
			return
		}
		p.handleInteraction(
			runCtx,
			WebhookHandler{
				ginContext:         c,
				InteractionHandler: p.getInteractionHandlerFunc(ctx, &interaction),
			},
		)
	}
}

// discordRequestAuthenticationMiddleware rejects requests that aren't
// signed by discord.
// See: https://discord.com/developers/docs/interactions/overview#setting-up-an-endpoint-validating-security-request-headers
//
//nolint:lll // can't split link
func discordRequestAuthenticationMiddleware(publicKey ed25519.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookMaxBodyBytes)
		if !verifyRequest(c.Request, publicKey) {
			ginContextLogger(c).WarnContext(c, "invalid signature")
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpError{Error: "invalid signature"})
			return
		}
		c.Next()
	}
}

// verifyRequest checks the request's ed25519 signature over the
// timestamp header and body, and that the timestamp is recent. The
// body is restored for the next reader.
func verifyRequest(r *http.Request, key ed25519.PublicKey) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}
	sig, ok := requestSignature(r)
	if !ok {
		return false
	}
	timestamp := r.Header.Get(headerTimestamp)
	if !recentTimestamp(timestamp, time.Now()) {
		return false
	}

	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return false
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return ed25519.Verify(key, msg, sig)
}

func requestSignature(r *http.Request) ([]byte, bool) {
	sig, err := hex.DecodeString(r.Header.Get(headerSignature))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, false
	}
	// the top three bits of S must be clear
	if sig[63]&224 != 0 {
		return nil, false
	}
	return sig, true
}

func recentTimestamp(timestamp string, now time.Time) bool {
	sec, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := now.Sub(time.Unix(sec, 0))
	return skew <= webhookMaxClockSkew && skew >= -webhookMaxClockSkew
}
