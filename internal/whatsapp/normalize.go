package whatsapp

import (
	"strings"

	"laureate/internal/domain"
)

// DefaultSenderName is used when the contact has no profile name.
const DefaultSenderName = "there"

const (
	typeText        = "text"
	typeInteractive = "interactive"
	typeButtonReply = "button_reply"
	typeListReply   = "list_reply"
)

// Normalize extracts the user's utterance from the first message of p.
// ok is false when there is nothing for the agent to answer: status
// callbacks, unsupported message types, or empty text.
func Normalize(p Payload) (in domain.NormalizedInput, ok bool) {
	v := p.firstValue()
	if v == nil || len(v.Messages) == 0 {
		return domain.NormalizedInput{}, false
	}

	msg := v.Messages[0]
	text := messageText(msg)
	if text == "" {
		return domain.NormalizedInput{}, false
	}

	return domain.NormalizedInput{
		MessageID:  msg.ID,
		Recipient:  msg.From,
		ThreadID:   digitsOnly(msg.From),
		SenderName: senderName(v.Contacts),
		Text:       text,
	}, true
}

func messageText(msg Message) string {
	switch msg.Type {
	case typeText:
		if msg.Text != nil {
			return msg.Text.Body
		}
	case typeInteractive:
		if msg.Interactive == nil {
			return ""
		}
		switch msg.Interactive.Type {
		case typeButtonReply:
			if msg.Interactive.ButtonReply != nil {
				return msg.Interactive.ButtonReply.Title
			}
		case typeListReply:
			if msg.Interactive.ListReply != nil {
				return msg.Interactive.ListReply.Title
			}
		}
	}
	return ""
}

func senderName(contacts []Contact) string {
	if len(contacts) == 0 || contacts[0].Profile == nil || contacts[0].Profile.Name == "" {
		return DefaultSenderName
	}
	return contacts[0].Profile.Name
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
