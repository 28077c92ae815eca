package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"checkin/internal/domain"
	"checkin/internal/observability"
	"checkin/internal/providers/stripe"
)

// ErrRejected marks webhook deliveries that failed authentication or could
// not be decoded. Nothing is processed for them.
var ErrRejected = errors.New("webhook rejected")

const noticeVerificationComplete = "verification_complete"

// Outcome describes what one accepted webhook delivery did.
type Outcome struct {
	EventID       string
	EventType     string
	SessionID     string
	ReservationID int64
	Ignored       bool
	Effects       []Effect
}

func (o Outcome) Failed() []Effect { return failed(o.Effects) }

// HandleWebhook authenticates the delivery before decoding anything, then
// syncs the session and applies the side effects for its event type. Only
// authentication and decode failures return an error; everything after that
// is reported through the Outcome.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signatureHeader string) (Outcome, error) {
	tolerance := s.Config.Tolerance
	if tolerance <= 0 {
		tolerance = stripe.DefaultTolerance
	}
	if err := stripe.VerifySignature(body, signatureHeader, s.Config.WebhookSecret, s.now(), tolerance); err != nil {
		observability.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		slog.Warn("webhook rejected", "err", err)
		return Outcome{}, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	var ev stripe.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		observability.WebhookEvents.WithLabelValues("unknown", "invalid").Inc()
		slog.Warn("webhook body invalid", "err", err)
		return Outcome{}, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	out := Outcome{EventID: ev.ID, EventType: ev.Type}
	switch ev.Type {
	case stripe.EventSessionVerified, stripe.EventSessionProcessing,
		stripe.EventSessionRequiresInput, stripe.EventSessionCanceled:
	default:
		out.Ignored = true
		observability.WebhookEvents.WithLabelValues("other", "ignored").Inc()
		slog.Info("webhook event ignored", "event_type", ev.Type, "event_id", ev.ID)
		return out, nil
	}

	sess, err := ev.Session()
	if err != nil {
		out.Effects = append(out.Effects, Effect{Name: "decode_session", Err: err})
		observability.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		slog.Error("webhook session decode failed", "event_type", ev.Type, "event_id", ev.ID, "err", err)
		return out, nil
	}
	out.SessionID = sess.ID

	res, err := s.SyncSession(ctx, sess, ev.Type == stripe.EventSessionVerified)
	if err != nil {
		out.Effects = append(out.Effects, Effect{Name: "sync_session", Err: err})
		observability.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		slog.Error("webhook session sync failed", "event_type", ev.Type, "session_id", sess.ID, "err", err)
		return out, nil
	}
	out.ReservationID = res.ReservationID
	out.Effects = append(out.Effects, res.Effects...)

	switch ev.Type {
	case stripe.EventSessionVerified:
		if res.ReservationID > 0 {
			out.Effects = append(out.Effects, s.completeReservation(ctx, sess.ID, res.ReservationID)...)
		}
	case stripe.EventSessionRequiresInput:
		slog.Info("verification requires input", "session_id", sess.ID, "reservation_id", res.ReservationID,
			"reason", res.Session.FailureReason())
	case stripe.EventSessionCanceled:
		slog.Info("verification canceled", "session_id", sess.ID, "reservation_id", res.ReservationID)
	}

	result := "ok"
	if len(out.Failed()) > 0 {
		result = "partial"
	}
	observability.WebhookEvents.WithLabelValues(ev.Type, result).Inc()
	slog.Info("webhook processed", "event_type", ev.Type, "session_id", sess.ID,
		"reservation_id", res.ReservationID, "failed_effects", len(out.Failed()))
	return out, nil
}

// completeReservation marks the reservation verified and sends the completion
// notices once per session.
func (s *Service) completeReservation(ctx context.Context, sessionID string, reservationID int64) []Effect {
	res, found, err := s.Store.GetReservation(ctx, reservationID)
	if err != nil {
		return []Effect{{Name: "load_reservation", Err: err}}
	}
	if !found {
		slog.Warn("verified session for unknown reservation", "session_id", sessionID, "reservation_id", reservationID)
		return []Effect{{Name: "load_reservation", Err: fmt.Errorf("reservation %d: %w", reservationID, domain.ErrNotFound)}}
	}

	effects := []Effect{{Name: "mark_reservation_verified", Err: s.Store.MarkReservationVerified(ctx, res.ID, s.now())}}

	claimed, err := s.Store.ClaimNotice(ctx, sessionID, noticeVerificationComplete, s.now())
	if err != nil {
		return append(effects, Effect{Name: "claim_notice", Err: err})
	}
	if !claimed {
		slog.Info("verification notice already sent", "session_id", sessionID, "reservation_id", res.ID)
		return effects
	}
	if s.Notifier == nil {
		return append(effects, Effect{Name: "notify", Err: domain.ErrNotConfigured})
	}
	for _, d := range s.Notifier.SendVerificationComplete(ctx, res) {
		effects = append(effects, Effect{Name: "notify_" + string(d.Channel), Err: d.Err})
	}
	return effects
}
