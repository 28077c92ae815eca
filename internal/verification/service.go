package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"checkin/internal/domain"
	"checkin/internal/media"
	"checkin/internal/notify"
	"checkin/internal/providers/stripe"
	"checkin/internal/store"
	"checkin/internal/util"
)

type Vendor interface {
	Configured() bool
	CreateVerificationSession(ctx context.Context, p stripe.CreateSessionParams) (domain.VerificationSession, error)
	GetVerificationSession(ctx context.Context, id string) (domain.VerificationSession, error)
	GetVerificationReport(ctx context.Context, id string) (domain.VerificationReport, error)
	GetFile(ctx context.Context, id string) (stripe.File, error)
	DownloadFile(ctx context.Context, fileURL string) ([]byte, string, error)
}

type Store interface {
	UpsertVerification(ctx context.Context, in store.VerificationUpsert) (store.VerificationUpsertResult, error)
	GetReservation(ctx context.Context, id int64) (domain.Reservation, bool, error)
	MarkReservationVerified(ctx context.Context, id int64, now time.Time) error
	ClaimNotice(ctx context.Context, sessionID, kind string, now time.Time) (bool, error)
	GetGuestMeta(ctx context.Context, userID int64) (map[string]string, error)
	SetGuestMeta(ctx context.Context, userID int64, meta map[string]string, now time.Time) error
}

type Guests interface {
	EnsureGuest(ctx context.Context, res domain.Reservation) (domain.GuestUser, bool, error)
}

type Media interface {
	Persist(ctx context.Context, a media.Asset) (media.Stored, error)
	Exists(ctx context.Context, assetID string) (bool, error)
}

type Notifier interface {
	SendVerificationComplete(ctx context.Context, res domain.Reservation) []notify.Delivery
}

// Config is injected at construction; the service never reads ambient settings.
type Config struct {
	WebhookSecret string
	DocumentTypes []string
	// ReturnURL may reference {reservation_id} and {portal_token}.
	ReturnURL string
	Tolerance time.Duration
}

// Service reconciles vendor verification sessions with local reservations
// and guests.
type Service struct {
	Vendor   Vendor
	Store    Store
	Guests   Guests
	Media    Media
	Notifier Notifier
	Config   Config
	Now      func() time.Time

	selfies singleflight.Group
}

// Effect is the result of one best-effort side effect.
type Effect struct {
	Name string
	Err  error
}

func (e Effect) MarshalJSON() ([]byte, error) {
	out := map[string]any{"name": e.Name, "ok": e.Err == nil}
	if e.Err != nil {
		out["error"] = e.Err.Error()
	}
	return json.Marshal(out)
}

func failed(effects []Effect) []Effect {
	var out []Effect
	for _, e := range effects {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}

type CreateResult struct {
	SessionID    string               `json:"sessionId"`
	ClientSecret string               `json:"clientSecret"`
	Status       domain.SessionStatus `json:"status"`
}

// CreateSession starts a document + selfie verification for a reservation.
// The reservation is carried in session metadata; no local record is written
// until the first sync.
func (s *Service) CreateSession(ctx context.Context, res domain.Reservation) (CreateResult, error) {
	if res.ID <= 0 {
		return CreateResult{}, fmt.Errorf("reservation id: %w", domain.ErrMissingFields)
	}
	if s.Vendor == nil || !s.Vendor.Configured() {
		slog.Error("verification session not created: vendor not configured", "reservation_id", res.ID)
		return CreateResult{}, stripe.ErrMissingAPIKey
	}

	sess, err := s.Vendor.CreateVerificationSession(ctx, stripe.CreateSessionParams{
		DocumentTypes: s.Config.DocumentTypes,
		Metadata:      res.SessionMetadata(),
		ReturnURL:     s.returnURL(res),
	})
	if err != nil {
		slog.Error("verification session create failed", "reservation_id", res.ID, "err", err)
		return CreateResult{}, err
	}
	status := sess.Status
	if status == "" {
		status = domain.SessionRequiresInput
	}
	slog.Info("verification session created", "reservation_id", res.ID, "session_id", sess.ID)
	return CreateResult{SessionID: sess.ID, ClientSecret: sess.ClientSecret, Status: status}, nil
}

// StatusResult is the reconciled session plus the reservation it belongs to.
type StatusResult struct {
	Session       domain.VerificationSession
	ReservationID int64
	Effects       []Effect
}

// MarshalJSON renders the session snapshot with a reservationId field added.
func (r StatusResult) MarshalJSON() ([]byte, error) {
	snap, err := r.Session.Snapshot()
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(snap, &fields); err != nil {
		return nil, err
	}
	if r.ReservationID > 0 {
		fields["reservationId"] = json.RawMessage(strconv.FormatInt(r.ReservationID, 10))
	} else {
		fields["reservationId"] = json.RawMessage("null")
	}
	return json.Marshal(fields)
}

// CheckStatus fetches the canonical session and syncs it without a second
// fetch. A verified session completes the reservation here as well, so a
// lost webhook does not leave the guest without a confirmation.
func (s *Service) CheckStatus(ctx context.Context, sessionID string) (StatusResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return StatusResult{}, fmt.Errorf("session id: %w", domain.ErrMissingFields)
	}
	if s.Vendor == nil || !s.Vendor.Configured() {
		return StatusResult{}, stripe.ErrMissingAPIKey
	}

	sess, err := s.Vendor.GetVerificationSession(ctx, sessionID)
	if err != nil {
		slog.Error("verification status fetch failed", "session_id", sessionID, "err", err)
		return StatusResult{}, err
	}
	res, err := s.SyncSession(ctx, sess, false)
	if err != nil {
		return StatusResult{}, err
	}
	out := StatusResult{Session: res.Session, ReservationID: res.ReservationID, Effects: res.Effects}
	if res.Session.Status == domain.SessionVerified && res.ReservationID > 0 {
		out.Effects = append(out.Effects, s.completeReservation(ctx, res.Session.ID, res.ReservationID)...)
	}
	return out, nil
}

func (s *Service) returnURL(res domain.Reservation) string {
	if s.Config.ReturnURL == "" {
		return ""
	}
	return util.RenderTemplate(s.Config.ReturnURL, map[string]string{
		"reservation_id": strconv.FormatInt(res.ID, 10),
		"portal_token":   res.PortalToken,
	})
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return util.NowUTC()
}
