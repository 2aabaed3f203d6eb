package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	// maxInfoFields caps the detail lines printed under an info record.
	maxInfoFields = 8
	// consoleTimeLayout is local wall-clock time, which is also how operators
	// enter job windows.
	consoleTimeLayout = "2006-01-02 15:04:05"
)

// Keys folded into the header or never worth a detail line at info level.
var infoHiddenKeys = map[string]bool{
	FieldJobID:         true,
	FieldDisplayCode:   true,
	FieldCorrelationID: true,
	"stack":            true,
}

var levelColors = map[string]string{
	"ERROR": "\x1b[31m",
	"WARN":  "\x1b[33m",
	"DEBUG": "\x1b[90m",
}

// consoleHandler prints a one-line header per record followed by indented
// detail lines. Handlers derived with WithAttrs share the writer lock.
type consoleHandler struct {
	out       *lockedWriter
	level     *slog.LevelVar
	addSource bool
	color     bool

	prefix []string
	bound  []field
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{
		out:       &lockedWriter{w: w},
		level:     lvl,
		addSource: addSource,
		color:     writesToTerminal(w),
	}
}

func writesToTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.bound...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.prefix, attr)
		return true
	})
	fields = lastValueWins(fields)

	var component, jobID, code string
	details := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = attrString(f.value)
			continue
		case FieldJobID:
			jobID = attrString(f.value)
		case FieldDisplayCode:
			code = attrString(f.value)
		}
		details = append(details, f)
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(formatTimestamp(ts))
	b.WriteByte(' ')
	b.WriteString(h.levelLabel(record.Level))
	if component != "" {
		b.WriteString(" [" + component + "]")
	}
	if subject := FormatSubject(code, jobID); subject != "" {
		b.WriteString(" " + subject)
	}
	b.WriteString(" – ")
	if msg := strings.TrimSpace(record.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}
	if src := record.Source(); h.addSource && src != nil {
		b.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
	}
	b.WriteByte('\n')

	if record.Level < slog.LevelInfo {
		for _, f := range details {
			b.WriteString("    " + f.key + ": " + formatValue(f.key, f.value) + "\n")
		}
	} else {
		writeInfoDetails(&b, details)
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := io.WriteString(h.out.w, b.String())
	return err
}

func writeInfoDetails(b *strings.Builder, details []field) {
	shown, hidden := 0, 0
	for _, f := range details {
		if infoHiddenKeys[f.key] {
			continue
		}
		if shown == maxInfoFields {
			hidden++
			continue
		}
		shown++
		b.WriteString("    - " + f.key + ": " + formatValue(f.key, f.value) + "\n")
	}
	switch {
	case hidden == 1:
		b.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		b.WriteString("    + " + strconv.Itoa(hidden) + " more fields hidden\n")
	}
}

func (h *consoleHandler) levelLabel(level slog.Level) string {
	label := levelLabel(level)
	if c, ok := levelColors[label]; ok && h.color {
		return c + label + "\x1b[0m"
	}
	return label
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = append([]field(nil), h.bound...)
	for _, attr := range attrs {
		next.bound = appendField(next.bound, h.prefix, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = append(append([]string(nil), h.prefix...), name)
	return &next
}

// appendField flattens groups into dotted keys.
func appendField(dst []field, prefix []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, child := range value.Group() {
			dst = appendField(dst, inner, child)
		}
		return dst
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	if key == "" {
		return dst
	}
	return append(dst, field{key: key, value: value})
}

// lastValueWins collapses repeated keys in place, keeping the position of the
// first occurrence and the value of the last.
func lastValueWins(fields []field) []field {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(consoleTimeLayout)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
