package partybus

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/crypto/argon2"
)

const loggerContextKey contextKey = "logger"

type contextKey string

// argon2Params are the argon2id cost parameters, encoded into (and
// read back from) the PHC-style string stored for the admin password
type argon2Params struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
}

var (
	defaultArgon2Params = argon2Params{
		Memory:  64 * 1024,
		Time:    1,
		Threads: 4,
		KeyLen:  32,
	}
	argon2SaltLen = 16

	errInvalidPasswordHash = errors.New("invalid hash format")
)

func (a argon2Params) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, a.Time, a.Memory, a.Threads, a.KeyLen)
}

// encode formats the salt and key as
// $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
func (a argon2Params) encode(salt []byte, key []byte) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.Memory,
		a.Time,
		a.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// decodeArgon2Hash parses a hash produced by argon2Params.encode,
// returning the parameters used, the salt and the derived key
func decodeArgon2Hash(encoded string) (argon2Params, []byte, []byte, error) {
	var params argon2Params
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, errInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}
	if _, err := fmt.Sscanf(
		parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads,
	); err != nil {
		return params, nil, nil, errInvalidPasswordHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, errors.New("invalid salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, errors.New("invalid hash")
	}
	params.KeyLen = uint32(len(key))
	return params, salt, key, nil
}

// HashPassword hashes the admin password with argon2id and a random salt
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return defaultArgon2Params.encode(salt, defaultArgon2Params.key(password, salt)), nil
}

// VerifyPassword reports whether password matches storedHash. The
// parameters stored with the hash are used, so hashes made with older
// defaults still verify.
func VerifyPassword(storedHash, password string) (bool, error) {
	params, salt, key, err := decodeArgon2Hash(storedHash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(key, params.key(password, salt)) == 1, nil
}

// discordInteractionOptions returns the options of the interaction's
// command, descending into the invoked subcommand if there is one.
// The second return value is the subcommand name.
func discordInteractionOptions(
	i *discordgo.InteractionCreate,
) (map[string]*discordgo.ApplicationCommandInteractionDataOption, string) {
	options := i.ApplicationCommandData().Options
	var sub string
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub = options[0].Name
		options = options[0].Options
	}
	optionMap := make(
		map[string]*discordgo.ApplicationCommandInteractionDataOption,
		len(options),
	)
	for _, option := range options {
		optionMap[option.Name] = option
	}
	return optionMap, sub
}

func tlsConfig(ssl SSLConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(ssl.Cert, ssl.Key)
	if err != nil {
		return nil, fmt.Errorf("error loading key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   ssl.TLSMinVersion,
		ClientAuth:   tls.NoClientCert,
	}, nil
}

// structToSlogValue logs a struct as a group keyed by each field's JSON
// name. Empty fields are left out, and a `log` tag replaces the field's
// value, so `log:"[redacted]"` keeps secrets out of the logs.
func structToSlogValue(v any) slog.Value {
	val := reflect.ValueOf(v)
	if !val.IsValid() {
		return slog.AnyValue(nil)
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return slog.AnyValue(nil)
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return slog.AnyValue(v)
	}

	typ := val.Type()
	attrs := make([]slog.Attr, 0, typ.NumField())
	for i := range typ.NumField() {
		field := typ.Field(i)
		fv := val.Field(i)
		key, ok := slogFieldKey(field)
		if !ok || !fv.CanInterface() {
			continue
		}
		if replacement := field.Tag.Get("log"); replacement != "" {
			attrs = append(attrs, slog.String(key, replacement))
			continue
		}
		if isEmptyLogValue(fv) {
			continue
		}
		attrs = append(attrs, slog.Attr{Key: key, Value: structToSlogValue(fv.Interface())})
	}
	return slog.GroupValue(attrs...)
}

func slogFieldKey(field reflect.StructField) (string, bool) {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return "", false
	case "":
		return field.Name, true
	default:
		return name, true
	}
}

func isEmptyLogValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Map, reflect.Slice:
		return v.IsNil() || v.Len() == 0
	case reflect.String:
		return v.Len() == 0
	default:
		return false
	}
}

// WithLogger returns a new context with the given logger added.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = slog.Default()
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// ContextLogger returns a logger from the given context if one
// is present, and a boolean indicating whether a logger was found.
func ContextLogger(ctx context.Context) (*slog.Logger, bool) {
	logger, ok := ctx.Value(loggerContextKey).(*slog.Logger)
	return logger, ok
}

// interactionLogAttrs identifies an interaction in logs. Component and
// modal interactions also log their custom ID, which carries the
// wizard session they belong to.
func interactionLogAttrs(i discordgo.InteractionCreate) []any {
	attrs := []any{
		"id", i.ID,
		"type", i.Type.String(),
		"command_context", i.Context.String(),
	}
	for _, kv := range [][2]string{
		{"channel_id", i.ChannelID},
		{"guild_id", i.GuildID},
		{"app_id", i.AppID},
	} {
		if kv[1] != "" {
			attrs = append(attrs, kv[0], kv[1])
		}
	}
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		attrs = append(attrs, "custom_id", i.MessageComponentData().CustomID)
	case discordgo.InteractionModalSubmit:
		attrs = append(attrs, "custom_id", i.ModalSubmitData().CustomID)
	default:
	}
	return attrs
}

// derive64ByteKey stretches the API secret into the 64-byte hash key
// securecookie wants
func derive64ByteKey(input string) []byte {
	hash := sha512.Sum512([]byte(input))
	return hash[:]
}

func generateRandomHexString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// chunkItems splits items into rows of at most maxRowLength, for
// laying out buttons and select menus
func chunkItems[T any](maxRowLength int, items ...T) [][]T {
	var result [][]T
	for len(items) > 0 {
		end := min(maxRowLength, len(items))
		result = append(result, items[:end])
		items = items[end:]
	}
	return result
}

func stringPointerValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
