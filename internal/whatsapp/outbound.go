package whatsapp

import (
	"fmt"
	"unicode/utf8"

	"laureate/internal/domain"
)

// Field limits enforced by the Cloud API for interactive messages.
const (
	MaxButtons          = 3
	MaxListHeader       = 60
	MaxListBody         = 1024
	MaxListButton       = 20
	MaxListSectionTitle = 24
	MaxListRowTitle     = 24
)

const messagingProduct = "whatsapp"

// OutboundMessage is the JSON body of POST /{phone-number-id}/messages.
type OutboundMessage struct {
	MessagingProduct string               `json:"messaging_product"`
	To               string               `json:"to"`
	Type             string               `json:"type"` // text | interactive
	Text             *OutboundText        `json:"text,omitempty"`
	Interactive      *OutboundInteractive `json:"interactive,omitempty"`
}

type OutboundText struct {
	Body string `json:"body"`
}

type OutboundInteractive struct {
	Type   string             `json:"type"` // button | list
	Header *InteractiveHeader `json:"header,omitempty"`
	Body   InteractiveBody    `json:"body"`
	Action InteractiveAction  `json:"action"`
}

type InteractiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type InteractiveBody struct {
	Text string `json:"text"`
}

type InteractiveAction struct {
	Button   string         `json:"button,omitempty"`
	Buttons  []ActionButton `json:"buttons,omitempty"`
	Sections []ListSection  `json:"sections,omitempty"`
}

type ActionButton struct {
	Type  string    `json:"type"`
	Reply ButtonRef `json:"reply"`
}

type ButtonRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Kind names the payload for logs: text, button or list.
func (m OutboundMessage) Kind() string {
	if m.Interactive != nil {
		return m.Interactive.Type
	}
	return m.Type
}

// TextMessage builds a plain text message. The body is sent in full.
func TextMessage(to, body string) OutboundMessage {
	return OutboundMessage{
		MessagingProduct: messagingProduct,
		To:               to,
		Type:             "text",
		Text:             &OutboundText{Body: body},
	}
}

// ButtonsMessage builds a reply-button message from the first MaxButtons
// options. Buttons get the ids btn_0, btn_1, ...
func ButtonsMessage(to, body string, options []string) OutboundMessage {
	if len(options) > MaxButtons {
		options = options[:MaxButtons]
	}
	buttons := make([]ActionButton, 0, len(options))
	for i, opt := range options {
		buttons = append(buttons, ActionButton{
			Type:  "reply",
			Reply: ButtonRef{ID: fmt.Sprintf("btn_%d", i), Title: opt},
		})
	}
	return OutboundMessage{
		MessagingProduct: messagingProduct,
		To:               to,
		Type:             "interactive",
		Interactive: &OutboundInteractive{
			Type:   "button",
			Body:   InteractiveBody{Text: body},
			Action: InteractiveAction{Buttons: buttons},
		},
	}
}

// ListMessage builds a single-section list message. Every text field is cut
// to its platform limit; the number of rows is left as is. Rows get the ids
// opt_0, opt_1, ... and an empty description.
func ListMessage(to string, l domain.ListReply) OutboundMessage {
	rows := make([]ListRow, 0, len(l.Options))
	for i, opt := range l.Options {
		rows = append(rows, ListRow{
			ID:    fmt.Sprintf("opt_%d", i),
			Title: truncate(opt, MaxListRowTitle),
		})
	}
	return OutboundMessage{
		MessagingProduct: messagingProduct,
		To:               to,
		Type:             "interactive",
		Interactive: &OutboundInteractive{
			Type:   "list",
			Header: &InteractiveHeader{Type: "text", Text: truncate(l.Header, MaxListHeader)},
			Body:   InteractiveBody{Text: truncate(l.Body, MaxListBody)},
			Action: InteractiveAction{
				Button: truncate(l.ButtonLabel, MaxListButton),
				Sections: []ListSection{{
					Title: truncate(l.SectionTitle, MaxListSectionTitle),
					Rows:  rows,
				}},
			},
		},
	}
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
