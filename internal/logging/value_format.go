package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// maxConsoleValue truncates long detail values such as playback URIs and
// device error bodies in console output. The JSON file keeps them whole.
const maxConsoleValue = 160

// attrString returns the raw text of v for header fields.
func attrString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return formatValue("", v)
	}
}

// formatValue renders a detail line value. Keys ending in "_bytes" print as
// binary sizes.
func formatValue(key string, v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return quoteIfNeeded(truncate(v.String()))
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		if strings.HasSuffix(key, "_bytes") && v.Int64() >= 0 {
			return humanize.IBytes(uint64(v.Int64()))
		}
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		if strings.HasSuffix(key, "_bytes") {
			return humanize.IBytes(v.Uint64())
		}
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return formatDuration(v.Duration())
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quoteIfNeeded(truncate(err.Error()))
		}
		return quoteIfNeeded(truncate(fmt.Sprint(v.Any())))
	default:
		return quoteIfNeeded(truncate(v.String()))
	}
}

// formatDuration rounds anything over a second to whole milliseconds.
func formatDuration(d time.Duration) string {
	if d > time.Second || d < -time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.String()
}

func truncate(s string) string {
	if len(s) <= maxConsoleValue {
		return s
	}
	cut := maxConsoleValue
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	for _, r := range s {
		if r < ' ' || r == '"' {
			return strconv.Quote(s)
		}
	}
	return s
}
