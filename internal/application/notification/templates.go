package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/storefront-api/internal/domain"
)

var otpHTML = template.Must(template.New("otp").Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>{{.Store}}</h2>
<p>{{.Intro}}</p>
<p style="font-size:28px;letter-spacing:6px;font-weight:bold">{{.Code}}</p>
<p>This code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.</p>
</body></html>`))

var supportHTML = template.Must(template.New("support").Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h3>New support request</h3>
<p><strong>From:</strong> {{.Name}} &lt;{{.Email}}&gt;</p>
<p><strong>Subject:</strong> {{.Subject}}</p>
<p><strong>Received:</strong> {{.Received}}</p>
<pre style="white-space:pre-wrap">{{.Message}}</pre>
</body></html>`))

var supportAckHTML = template.Must(template.New("support_ack").Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<p>Hi {{.Name}},</p>
<p>Thanks for contacting {{.Store}}. We received your message about "{{.Subject}}" and will get back to you shortly.</p>
</body></html>`))

func otpIntro(purpose domain.OTPPurpose) string {
	if purpose == domain.PurposePasswordReset {
		return "Use this code to reset your password:"
	}
	return "Use this code to verify your email address:"
}

// OTPEmail renders the one-time password message for purpose.
func OTPEmail(store, to, code string, purpose domain.OTPPurpose, ttl time.Duration) (domain.EmailMessage, error) {
	data := struct {
		Store, Intro, Code string
		Minutes            int
	}{store, otpIntro(purpose), code, int(ttl.Minutes())}

	var buf bytes.Buffer
	if err := otpHTML.Execute(&buf, data); err != nil {
		return domain.EmailMessage{}, fmt.Errorf("render otp email: %w", err)
	}
	return domain.EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("%s verification code", store),
		HTML:    buf.String(),
		Text:    fmt.Sprintf("%s %s\nThis code expires in %d minutes.", data.Intro, code, data.Minutes),
	}, nil
}

// SupportEmails renders the message for the support inbox and the
// acknowledgement sent back to the customer.
func SupportEmails(store, inbox string, req domain.ContactRequest, received string) (toSupport, toCustomer domain.EmailMessage, err error) {
	var buf bytes.Buffer
	if err := supportHTML.Execute(&buf, struct {
		domain.ContactRequest
		Received string
	}{req, received}); err != nil {
		return toSupport, toCustomer, fmt.Errorf("render support email: %w", err)
	}
	toSupport = domain.EmailMessage{
		To:      inbox,
		Subject: "Support: " + req.Subject,
		HTML:    buf.String(),
		Text:    fmt.Sprintf("From: %s <%s>\nSubject: %s\nReceived: %s\n\n%s", req.Name, req.Email, req.Subject, received, req.Message),
	}

	buf.Reset()
	if err := supportAckHTML.Execute(&buf, struct {
		domain.ContactRequest
		Store string
	}{req, store}); err != nil {
		return toSupport, toCustomer, fmt.Errorf("render support ack: %w", err)
	}
	toCustomer = domain.EmailMessage{
		To:      req.Email,
		Subject: "We received your message",
		HTML:    buf.String(),
		Text:    fmt.Sprintf("Hi %s,\nThanks for contacting %s. We received your message about %q and will get back to you shortly.", req.Name, store, req.Subject),
	}
	return toSupport, toCustomer, nil
}
