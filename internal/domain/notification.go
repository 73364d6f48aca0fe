package domain

// NotificationTask is a unit of background delivery. Any combination of parts
// may be set; each part is delivered and retried independently.
type NotificationTask struct {
	ID      string        `json:"id"`
	Kind    string        `json:"kind"` // "otp" | "invoice" | "support" | "support_ack"
	Email   *EmailMessage `json:"email,omitempty"`
	SMS     *SMSMessage   `json:"sms,omitempty"`
	Archive *Archive      `json:"archive,omitempty"`
}

type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

type SMSMessage struct {
	To   string `json:"to"` // E.164
	Body string `json:"body"`
}

// Archive is a document written to object storage, e.g. a rendered invoice.
type Archive struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}
