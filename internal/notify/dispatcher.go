package notify

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"checkin/internal/domain"
	"checkin/internal/observability"
	"checkin/internal/providers/smtp"
	"checkin/internal/providers/voipms"
	"checkin/internal/store"
	"checkin/internal/util"
)

var (
	ErrNoRecipient = errors.New("no recipient on file")
	ErrRateLimited = errors.New("sms rate limited")
)

type EmailSender interface {
	Configured() bool
	Send(ctx context.Context, m smtp.Message) error
}

type SMSSender interface {
	Configured() bool
	SendSMS(ctx context.Context, req voipms.SendRequest) (voipms.SendResponse, int, []byte, error)
}

type Log interface {
	AppendCommunication(ctx context.Context, in store.CommunicationEntry) error
}

// Dispatcher sends guest notifications and records every attempt in the
// communication log.
type Dispatcher struct {
	Email     EmailSender
	SMS       SMSSender
	Log       Log
	Templates Templates
	Limiter   *rate.Limiter
	Breaker   *gobreaker.CircuitBreaker

	PortalBaseURL string
	PropertyName  string

	EmailTimeout time.Duration
	SMSTimeout   time.Duration
	Now          func() time.Time
}

type Delivery struct {
	Channel       domain.Channel
	Recipient     string
	Status        domain.DeliveryStatus
	ProviderMsgID string
	Err           error
}

func (d Delivery) Sent() bool { return d.Status == domain.DeliverySent }

// SMSConfigured reports whether the SMS provider has full credentials.
func (d *Dispatcher) SMSConfigured() bool {
	return d.SMS != nil && d.SMS.Configured()
}

// SendVerificationComplete emails the guest and, when a phone is on file and
// SMS is configured, texts them too.
func (d *Dispatcher) SendVerificationComplete(ctx context.Context, res domain.Reservation) []Delivery {
	t := d.Templates.withDefaults()
	return d.sendPair(ctx, res, t.CompleteSubject, t.CompleteEmail, t.CompleteSMS)
}

func (d *Dispatcher) SendReminder(ctx context.Context, res domain.Reservation) []Delivery {
	t := d.Templates.withDefaults()
	return d.sendPair(ctx, res, t.ReminderSubject, t.ReminderEmail, t.ReminderSMS)
}

func (d *Dispatcher) sendPair(ctx context.Context, res domain.Reservation, subjectTmpl, emailTmpl, smsTmpl string) []Delivery {
	vars := d.vars(res)
	subject := util.RenderTemplate(subjectTmpl, vars)
	body := wrapHTML(subject, util.RenderTemplate(emailTmpl, vars), vars["property_name"])

	out := []Delivery{d.SendEmail(ctx, res.ID, res.GuestEmail, subject, body)}
	if strings.TrimSpace(res.GuestPhone) != "" && d.SMSConfigured() {
		out = append(out, d.SendSMS(ctx, res.ID, res.GuestPhone, util.RenderTemplate(smsTmpl, vars)))
	}
	return out
}

func (d *Dispatcher) SendEmail(ctx context.Context, reservationID int64, to, subject, htmlBody string) Delivery {
	to = strings.TrimSpace(to)
	dl := Delivery{Channel: domain.ChannelEmail, Recipient: to}

	var err error
	switch {
	case to == "":
		err = ErrNoRecipient
	case d.Email == nil || !d.Email.Configured():
		err = smtp.ErrNotConfigured
	default:
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout(d.EmailTimeout, 15*time.Second))
		err = d.Email.Send(sendCtx, smtp.Message{To: to, Subject: subject, HTMLBody: htmlBody})
		cancel()
	}

	entry := store.CommunicationEntry{
		ReservationID: reservationID,
		Channel:       string(domain.ChannelEmail),
		Recipient:     to,
		Subject:       subject,
		Body:          htmlBody,
		Provider:      "smtp",
	}
	return d.finish(ctx, dl, entry, err)
}

// SendSMS normalises the phone number and limits the text to the provider's
// message length before sending through the limiter and breaker.
func (d *Dispatcher) SendSMS(ctx context.Context, reservationID int64, phone, text string) Delivery {
	to := util.NormalizePhone(phone)
	text = util.LimitRunes(strings.TrimSpace(text), voipms.MaxSMSLength)
	dl := Delivery{Channel: domain.ChannelSMS, Recipient: to}
	entry := store.CommunicationEntry{
		ReservationID: reservationID,
		Channel:       string(domain.ChannelSMS),
		Recipient:     to,
		Body:          text,
		Provider:      "voipms",
	}

	if to == "" {
		return d.finish(ctx, dl, entry, ErrNoRecipient)
	}
	if !d.SMSConfigured() {
		return d.finish(ctx, dl, entry, domain.ErrNotConfigured)
	}

	if d.Limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := d.Limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			return d.finish(ctx, dl, entry, ErrRateLimited)
		}
	}

	res, err := d.executeWithBreaker(ctx, to, text)
	if res.raw != nil {
		entry.ResponseJSON = map[string]any{"http_status": res.httpStatus, "raw": string(res.raw)}
	}
	if err == nil {
		entry.ProviderMsgID = res.resp.SMS.String()
		dl.ProviderMsgID = entry.ProviderMsgID
	}
	return d.finish(ctx, dl, entry, err)
}

type sendResult struct {
	resp       voipms.SendResponse
	httpStatus int
	raw        []byte
}

func (d *Dispatcher) executeWithBreaker(ctx context.Context, to, text string) (sendResult, error) {
	var res sendResult
	call := func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, d.timeout(d.SMSTimeout, 15*time.Second))
		defer cancel()

		var err error
		res.resp, res.httpStatus, res.raw, err = d.SMS.SendSMS(reqCtx, voipms.SendRequest{To: to, Body: text})
		return nil, err
	}

	var err error
	if d.Breaker == nil {
		_, err = call()
	} else {
		_, err = d.Breaker.Execute(call)
	}
	return res, err
}

// finish records the attempt and its metrics. Log failures are reported but
// do not change the delivery outcome.
func (d *Dispatcher) finish(ctx context.Context, dl Delivery, entry store.CommunicationEntry, err error) Delivery {
	dl.Status = domain.DeliverySent
	if err != nil {
		dl.Status = domain.DeliveryFailed
		dl.Err = err
		entry.Error = err.Error()
		slog.Warn("notification failed", "channel", dl.Channel, "reservation_id", entry.ReservationID, "err", err)
	}
	observability.Notifications.WithLabelValues(string(dl.Channel), string(dl.Status)).Inc()

	entry.ID = util.NewID("com_")
	entry.Status = string(dl.Status)
	entry.CreatedAt = d.now()
	if d.Log != nil {
		if lerr := d.Log.AppendCommunication(ctx, entry); lerr != nil {
			slog.Error("communication log append failed", "channel", dl.Channel, "reservation_id", entry.ReservationID, "err", lerr)
		}
	}
	return dl
}

func (d *Dispatcher) vars(res domain.Reservation) map[string]string {
	property := strings.TrimSpace(res.PropertyName)
	if property == "" {
		property = d.PropertyName
	}
	name := strings.TrimSpace(res.GuestName)
	if name == "" {
		name = "there"
	}
	checkIn := ""
	if !res.CheckIn.IsZero() {
		checkIn = res.CheckIn.Format("Mon, Jan 2, 2006")
	}
	return map[string]string{
		"guest_name":        name,
		"property_name":     property,
		"booking_reference": res.BookingReference,
		"checkin_date":      checkIn,
		"portal_url":        d.portalURL(res),
		"reservation_id":    strconv.FormatInt(res.ID, 10),
	}
}

func (d *Dispatcher) portalURL(res domain.Reservation) string {
	base := strings.TrimRight(d.PortalBaseURL, "/")
	if base == "" || res.PortalToken == "" {
		return base
	}
	return base + "/" + res.PortalToken
}

func (d *Dispatcher) timeout(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return util.NowUTC()
}
