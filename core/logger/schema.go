package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

// Component names used across the bot.
const (
	CompApp      = "app"
	CompTG       = "tg"
	CompTGWire   = "tg.wire"
	CompTGSender = "tg.sender"
	CompDB       = "db"
	CompMigrate  = "db.migrate"
	CompSD       = "sd"
	CompMenu     = "menu"
	CompSessions = "sessions"
	CompHistory  = "history"
	CompHTTP     = "http"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// status values; anything else is logged verbatim.
var allowedStatus = map[string]struct{}{
	"ok":             {},
	"fail":           {},
	"skip":           {},
	"retry":          {},
	"busy":           {},
	"not_configured": {},
	"rate_limited":   {},
	"cancelled":      {},
}

// outcome values; unknown outcomes are dropped from the line.
var allowedOutcome = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"noop":         {},
	"cancelled":    {},
	"rate_limited": {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeEnum(allowed map[string]struct{}, v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", false
	}
	_, ok := allowed[v]
	return v, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"gen_id",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"from",
	"to",
	"prompt",
	"steps",
	"cfg_scale",
	"size",
	"sampler",
	"seed",
	"bytes",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"driver",
	"db",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"sessions",
	"generating",
}
