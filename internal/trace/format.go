package trace

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Format is the encoding of streamed events.
type Format uint8

const (
	// FormatAuto picks a format from the output file extension.
	FormatAuto Format = iota
	FormatText
	FormatNDJSON
	// FormatChrome is the Trace Event format read by chrome://tracing
	// and Perfetto.
	FormatChrome
)

// ParseFormat converts a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson":
		return FormatNDJSON, nil
	case "chrome":
		return FormatChrome, nil
	}
	return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson|chrome)", s)
}

// FormatForPath chooses the format an output path implies.
func FormatForPath(path string) Format {
	switch {
	case strings.HasSuffix(path, ".ndjson"):
		return FormatNDJSON
	case strings.HasSuffix(path, ".json"):
		return FormatChrome
	}
	return FormatText
}

// FormatEvent encodes one event, newline terminated except for Chrome
// records, which the stream tracer separates itself.
func FormatEvent(ev *Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	case FormatChrome:
		return formatChrome(ev)
	default:
		return formatText(ev)
	}
}

type jsonEvent struct {
	Time     string            `json:"time"`
	Seq      uint64            `json:"seq"`
	Kind     string            `json:"kind"`
	Scope    string            `json:"scope"`
	SpanID   uint64            `json:"span_id"`
	ParentID uint64            `json:"parent_id,omitempty"`
	GID      uint64            `json:"gid,omitempty"`
	Name     string            `json:"name"`
	Detail   string            `json:"detail,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func formatNDJSON(ev *Event) []byte {
	data, err := json.Marshal(jsonEvent{
		Time:     ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		GID:      ev.GID,
		Name:     ev.Name,
		Detail:   ev.Detail,
		Extra:    ev.Extra,
	})
	if err != nil {
		return nil
	}
	return append(data, '\n')
}

type chromeEvent struct {
	Name  string            `json:"name"`
	Cat   string            `json:"cat"`
	Ph    string            `json:"ph"`
	Ts    int64             `json:"ts"`
	Pid   int               `json:"pid"`
	Tid   uint64            `json:"tid"`
	Scope string            `json:"s,omitempty"`
	Args  map[string]string `json:"args,omitempty"`
}

func formatChrome(ev *Event) []byte {
	ce := chromeEvent{
		Name: ev.Name,
		Cat:  ev.Scope.String(),
		Ts:   ev.Time.UnixMicro(),
		Pid:  1,
		Tid:  ev.GID,
		Args: ev.Extra,
	}
	switch ev.Kind {
	case KindSpanBegin:
		ce.Ph = "B"
	case KindSpanEnd:
		ce.Ph = "E"
		if ev.Detail != "" {
			ce.Args = withDetail(ev.Extra, ev.Detail)
		}
	default:
		ce.Ph = "i"
		ce.Scope = "t"
		if ev.Detail != "" {
			ce.Args = withDetail(ev.Extra, ev.Detail)
		}
	}
	data, err := json.Marshal(ce)
	if err != nil {
		return nil
	}
	return data
}

func withDetail(extra map[string]string, detail string) map[string]string {
	out := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		out[k] = v
	}
	out["detail"] = detail
	return out
}

// formatText renders "[seq] → name (detail) {k=v}" with sorted extras.
func formatText(ev *Event) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%6d] ", ev.Seq)
	if ev.ParentID > 0 {
		sb.WriteString("  ")
	}
	switch ev.Kind {
	case KindSpanBegin:
		sb.WriteString("→ ")
	case KindSpanEnd:
		sb.WriteString("← ")
	case KindPoint:
		sb.WriteString("• ")
	case KindHeartbeat:
		sb.WriteString("♡ ")
	}
	sb.WriteString(ev.Name)
	if ev.Detail != "" {
		sb.WriteString(" (")
		sb.WriteString(ev.Detail)
		sb.WriteString(")")
	}
	if len(ev.Extra) > 0 {
		keys := make([]string, 0, len(ev.Extra))
		for k := range ev.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(ev.Extra[k])
		}
		sb.WriteString("}")
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
