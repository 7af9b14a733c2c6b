package domain

// NormalizedInput is the actionable part of one inbound WhatsApp message.
type NormalizedInput struct {
	MessageID  string
	Recipient  string // raw sender number, used as the outbound "to"
	ThreadID   string // sender number reduced to its digits
	SenderName string
	Text       string
}

// AgentInput tags the utterance with the sender's name. The tutor prompt
// relies on the tag to personalize replies.
func (in NormalizedInput) AgentInput() string {
	return "[name:" + in.SenderName + "] " + in.Text
}
