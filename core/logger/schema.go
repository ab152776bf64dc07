package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

var resultNames = map[string]string{
	"continue": "continue",
	"stop":     "stop",
	"error":    "error",
	"skipped":  "skipped",
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func normalizeResult(result string) (string, bool) {
	v, ok := resultNames[strings.ToLower(strings.TrimSpace(result))]
	return v, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"result",
	"rid",
	"rid_full",
	"trace_id",
	"ts_unix_nano",
	"update_id",
	"update_kind",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"command",
	"session_id",
	"dialogue",
	"state",
	"key",
	"duration_ms",
	"wait_ms",
	"jitter_ms",
	"count",
	"evicted",
	"failed",
	"payload",
	"username",
	"mode",
	"listen",
	"public_url",
	"backend",
	"driver",
	"db",
	"host",
	"port",
	"err",
	"cause",
	"attempts",
	"backoff_ms",
}
