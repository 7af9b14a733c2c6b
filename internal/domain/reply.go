package domain

// ReplyKind names the shape of a structured reply.
type ReplyKind string

const (
	ReplyText    ReplyKind = "text"
	ReplyButtons ReplyKind = "buttons"
	ReplyList    ReplyKind = "list"
)

// Reply is one agent turn recovered from the reply DSL. Exactly one of
// TextReply, ButtonReply or ListReply.
type Reply interface {
	Kind() ReplyKind
	isReply()
}

// TextReply is a plain text message.
type TextReply struct {
	Body string `json:"body"`
}

// ButtonReply is a body with quick-reply buttons.
type ButtonReply struct {
	Body    string   `json:"body"`
	Options []string `json:"options"`
}

// ListReply is a single-section selectable list. It has no prose besides Body.
type ListReply struct {
	ButtonLabel  string   `json:"button_label"`
	Header       string   `json:"header"`
	Body         string   `json:"body"`
	SectionTitle string   `json:"section_title"`
	Options      []string `json:"options"`
}

func (TextReply) Kind() ReplyKind   { return ReplyText }
func (ButtonReply) Kind() ReplyKind { return ReplyButtons }
func (ListReply) Kind() ReplyKind   { return ReplyList }

func (TextReply) isReply()   {}
func (ButtonReply) isReply() {}
func (ListReply) isReply()   {}
