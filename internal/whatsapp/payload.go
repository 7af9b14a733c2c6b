package whatsapp

// Inbound webhook envelope of the WhatsApp Cloud API. Only the fields the
// gateway reads are mapped.

type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value *Value `json:"value"`
	Field string `json:"field"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
	Statuses         []Status  `json:"statuses"`
}

type Contact struct {
	WaID    string          `json:"wa_id"`
	Profile *ContactProfile `json:"profile,omitempty"`
}

type ContactProfile struct {
	Name string `json:"name"`
}

type Message struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *Text        `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

type Interactive struct {
	Type        string         `json:"type"` // button_reply | list_reply
	ButtonReply *ReplySelected `json:"button_reply,omitempty"`
	ListReply   *ReplySelected `json:"list_reply,omitempty"`
}

type ReplySelected struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Status is a delivery receipt. Receipts are acknowledged and ignored.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// firstValue returns entry[0].changes[0].value, or nil when the envelope does
// not have that shape.
func (p Payload) firstValue() *Value {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return nil
	}
	return p.Entry[0].Changes[0].Value
}

// FirstMessageID returns the id of the first message in the envelope. ok is
// false for envelopes without messages, such as delivery receipts.
func (p Payload) FirstMessageID() (id string, ok bool) {
	v := p.firstValue()
	if v == nil || len(v.Messages) == 0 || v.Messages[0].ID == "" {
		return "", false
	}
	return v.Messages[0].ID, true
}
