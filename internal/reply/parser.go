// Package reply recovers structured replies from the agent's free text.
//
// The agent marks interactive replies inline:
//
//	<prose> __BUTTONS__ <option>{,<option>}
//	<ignored> __LIST__ <button>|<header>|<body>|<section>|<option>{,<option>}
//
// Markers are case-sensitive and only the first occurrence counts. A list
// marker wins over a buttons marker anywhere in the text.
package reply

import (
	"strings"

	"laureate/internal/domain"
)

const (
	ListMarker    = "__LIST__"
	ButtonsMarker = "__BUTTONS__"

	// FallbackText replaces an empty agent turn.
	FallbackText = "How else can I assist you?"
	// ListErrorText replaces a list payload that does not have five parts.
	ListErrorText = "Sorry, I had trouble formatting the question. Let's try another one."
)

const listParts = 5

// Parse turns raw agent output into exactly one reply. It is total: malformed
// markup degrades to a TextReply instead of failing.
func Parse(raw string) domain.Reply {
	if _, payload, ok := strings.Cut(raw, ListMarker); ok {
		if list, ok := parseList(payload); ok {
			return list
		}
		return domain.TextReply{Body: ListErrorText}
	}

	if prose, line, ok := strings.Cut(raw, ButtonsMarker); ok {
		return domain.ButtonReply{
			Body:    strings.TrimSpace(prose),
			Options: splitOptions(line, true),
		}
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.TextReply{Body: FallbackText}
	}
	return domain.TextReply{Body: text}
}

// IsListFailure reports whether r is the substitute for a malformed list.
func IsListFailure(r domain.Reply) bool {
	t, ok := r.(domain.TextReply)
	return ok && t.Body == ListErrorText
}

// parseList reads "button|header|body|section|opt,opt,...". Text before the
// marker has already been dropped.
func parseList(payload string) (domain.ListReply, bool) {
	parts := strings.Split(payload, "|")
	if len(parts) != listParts {
		return domain.ListReply{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return domain.ListReply{
		ButtonLabel:  parts[0],
		Header:       parts[1],
		Body:         parts[2],
		SectionTitle: parts[3],
		Options:      splitOptions(parts[4], false),
	}, true
}

func splitOptions(line string, dropEmpty bool) []string {
	fields := strings.Split(line, ",")
	opts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" && dropEmpty {
			continue
		}
		opts = append(opts, f)
	}
	return opts
}
