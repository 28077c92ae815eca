package notify

import (
	"html"
	"strings"

	"checkin/internal/util"
)

// Templates holds message bodies with {var} placeholders: guest_name,
// property_name, booking_reference, checkin_date, portal_url.
type Templates struct {
	CompleteSubject string
	CompleteEmail   string
	CompleteSMS     string
	ReminderSubject string
	ReminderEmail   string
	ReminderSMS     string
}

func DefaultTemplates() Templates {
	return Templates{
		CompleteSubject: "Identity verified for your stay at {property_name}",
		CompleteEmail: "Hi {guest_name},\n\nThanks for verifying your identity for booking {booking_reference}. " +
			"You're all set for check-in on {checkin_date}.\n\nYour guest portal: {portal_url}",
		CompleteSMS:     "{property_name}: ID verified for {booking_reference}. See you on {checkin_date}! {portal_url}",
		ReminderSubject: "Action needed before your stay at {property_name}",
		ReminderEmail: "Hi {guest_name},\n\nYour check-in on {checkin_date} is coming up. " +
			"Please complete identity verification for booking {booking_reference} in your guest portal:\n\n{portal_url}",
		ReminderSMS: "{property_name}: please verify your ID before check-in on {checkin_date}: {portal_url}",
	}
}

// withDefaults fills empty fields from DefaultTemplates.
func (t Templates) withDefaults() Templates {
	d := DefaultTemplates()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&t.CompleteSubject, d.CompleteSubject)
	fill(&t.CompleteEmail, d.CompleteEmail)
	fill(&t.CompleteSMS, d.CompleteSMS)
	fill(&t.ReminderSubject, d.ReminderSubject)
	fill(&t.ReminderEmail, d.ReminderEmail)
	fill(&t.ReminderSMS, d.ReminderSMS)
	return t
}

const emailLayout = `<!DOCTYPE html>
<html><body style="font-family:Arial,Helvetica,sans-serif;color:#222;">
<div style="max-width:600px;margin:0 auto;padding:24px;">
<h2 style="margin-top:0;">{title}</h2>
{content}
<p style="color:#888;font-size:12px;margin-top:32px;">{property_name}</p>
</div></body></html>`

// wrapHTML escapes a plain-text body and places it in the email layout.
// Blank lines separate paragraphs.
func wrapHTML(title, body, propertyName string) string {
	var paras []string
	for _, p := range strings.Split(body, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = strings.ReplaceAll(html.EscapeString(p), "\n", "<br>")
		paras = append(paras, "<p>"+p+"</p>")
	}
	return util.RenderTemplate(emailLayout, map[string]string{
		"title":         html.EscapeString(title),
		"content":       strings.Join(paras, "\n"),
		"property_name": html.EscapeString(propertyName),
	})
}
