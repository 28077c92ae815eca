package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"checkin/internal/domain"
	"checkin/internal/store"
)

var ErrNoReservation = errors.New("no reservation resolved for session")

type SyncResult struct {
	Session        domain.VerificationSession
	ReservationID  int64
	PreviousStatus domain.SessionStatus
	Created        bool
	Effects        []Effect
}

// SyncSession reconciles one session with the local record. With refresh set,
// or when only an id was supplied, the canonical session is fetched first. A
// bare report reference is expanded before persisting. Profile enrichment
// runs when a report is available and never fails the sync.
func (s *Service) SyncSession(ctx context.Context, sess domain.VerificationSession, refresh bool) (SyncResult, error) {
	if sess.ID == "" {
		return SyncResult{}, fmt.Errorf("session id: %w", domain.ErrMissingFields)
	}

	var effects []Effect
	if refresh || sess.Status == "" {
		fetched, err := s.Vendor.GetVerificationSession(ctx, sess.ID)
		switch {
		case err == nil:
			sess = fetched
		case sess.Status == "":
			return SyncResult{}, fmt.Errorf("fetch session: %w", err)
		default:
			// Fall back to the supplied payload.
			slog.Warn("session refresh failed", "session_id", sess.ID, "err", err)
			effects = append(effects, Effect{Name: "refresh_session", Err: err})
		}
	}

	if ref := sess.LastVerificationReport; !ref.Empty() && !ref.Expanded() && ref.ID != "" {
		rep, err := s.Vendor.GetVerificationReport(ctx, ref.ID)
		if err != nil {
			slog.Warn("verification report expand failed", "session_id", sess.ID, "report_id", ref.ID, "err", err)
			effects = append(effects, Effect{Name: "expand_report", Err: err})
		} else {
			sess.LastVerificationReport = domain.ReportRef{ID: rep.ID, Report: &rep}
		}
	}

	snap, err := sess.Snapshot()
	if err != nil {
		return SyncResult{}, fmt.Errorf("snapshot session: %w", err)
	}
	up, err := s.Store.UpsertVerification(ctx, store.VerificationUpsert{
		SessionID:     sess.ID,
		ReservationID: sess.ReservationID(),
		Status:        string(sess.Status),
		ClientSecret:  sess.ClientSecret,
		RawSession:    snap,
		Now:           s.now(),
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("upsert verification: %w", err)
	}

	out := SyncResult{
		Session:        sess,
		ReservationID:  sess.ReservationID(),
		PreviousStatus: domain.SessionStatus(up.PreviousStatus),
		Created:        up.Created,
	}
	if out.ReservationID == 0 {
		out.ReservationID = up.ReservationID
	}
	if out.ReservationID == 0 {
		slog.Info("session has no reservation", "session_id", sess.ID, "status", sess.Status)
	}

	if sess.LastVerificationReport.Expanded() {
		effects = append(effects, s.enrich(ctx, out.ReservationID, sess)...)
	}
	out.Effects = effects
	return out, nil
}
