package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset   = "\x1b[0m"
	ansiDim     = "\x1b[2m"
	ansiBright  = "\x1b[1m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

// prettyHandler renders records as key=value lines for local development.
// The request-log fields written by WithRequestLogging get short keys and
// colors; everything else is printed as-is.
type prettyHandler struct {
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
	color  bool
	mu     *sync.Mutex
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{w: w, color: color, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(&b, "ts=%s lvl=%s msg=%s",
		h.paint(ts.Format("15:04:05.000"), ansiDim),
		h.levelTag(r.Level),
		h.paint(r.Message, ansiBright),
	)

	if h.opts.AddSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			b.WriteString(" src=")
			b.WriteString(h.paint(filepath.Base(frame.File)+":"+strconv.Itoa(frame.Line), ansiDim))
		}
	}

	for _, a := range h.attrs {
		h.appendAttr(&b, a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, a, "")
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string{}, h.groups...), name)
	return &cp
}

func (h *prettyHandler) appendAttr(b *strings.Builder, a slog.Attr, parent string) {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)
	if key == "" {
		return
	}

	switch {
	case parent != "":
		key = parent + "." + key
	case len(h.groups) > 0:
		key = strings.Join(h.groups, ".") + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, ga, key)
		}
		return
	}

	name, val := h.field(key, a.Value)
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(val)
}

// field renders the request-log keys specially and falls back to plain text.
func (h *prettyHandler) field(key string, v slog.Value) (string, string) {
	switch key {
	case "method":
		m := strings.ToUpper(v.String())
		return key, h.paint(m, methodColors[m])
	case "path":
		return key, h.paint(v.String(), ansiCyan)
	case "status":
		if n, ok := valueToInt64(v); ok {
			return key, h.paint(strconv.FormatInt(n, 10), statusColor(int(n)))
		}
	case "status_class":
		class := v.String()
		code := 0
		if class != "" && class[0] >= '1' && class[0] <= '5' {
			code = int(class[0]-'0') * 100
		}
		return "class", h.paint(quoteIfNeeded(class), statusColor(code))
	case "result":
		return key, h.paint(quoteIfNeeded(v.String()), resultColors[v.String()])
	case "duration_ms":
		if ms, ok := valueToInt64(v); ok {
			return "duration", h.paint(strconv.FormatInt(ms, 10)+"ms", durationColor(ms))
		}
	}

	if v.Kind() == slog.KindTime {
		return key, v.Time().Format(time.RFC3339)
	}
	return key, quoteIfNeeded(v.String())
}

var (
	methodColors = map[string]string{
		"GET": ansiBlue, "HEAD": ansiBlue, "OPTIONS": ansiBlue,
		"POST": ansiGreen, "PUT": ansiYellow, "PATCH": ansiYellow, "DELETE": ansiRed,
	}
	resultColors = map[string]string{
		"success": ansiGreen, "redirect": ansiCyan,
		"client_error": ansiYellow, "server_error": ansiRed,
	}
)

func (h *prettyHandler) levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.paint("[ERROR]", ansiRed)
	case level >= slog.LevelWarn:
		return h.paint("[WARN]", ansiYellow)
	case level < slog.LevelInfo:
		return h.paint("[DEBUG]", ansiMagenta)
	default:
		return h.paint("[INFO]", ansiBlue)
	}
}

func (h *prettyHandler) paint(s, code string) string {
	if !h.color || code == "" {
		return s
	}
	return code + s + ansiReset
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return ansiRed
	case code >= 400:
		return ansiYellow
	case code >= 300:
		return ansiCyan
	case code >= 200:
		return ansiGreen
	default:
		return ""
	}
}

func durationColor(ms int64) string {
	switch {
	case ms >= 1000:
		return ansiRed
	case ms >= 250:
		return ansiYellow
	default:
		return ansiDim
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return int64(u), true
		}
	}
	return 0, false
}
