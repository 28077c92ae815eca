package pg

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"checkin/internal/domain"
	"checkin/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

const reservationColumns = `
	id, booking_reference, COALESCE(guest_id, 0), guest_name, guest_email, guest_phone,
	property_name, platform, checkin_date, checkout_date, status, verification_status,
	COALESCE(portal_token, '')`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		r                 domain.Reservation
		status            string
		checkIn, checkOut *time.Time
	)
	err := row.Scan(&r.ID, &r.BookingReference, &r.GuestID, &r.GuestName, &r.GuestEmail, &r.GuestPhone,
		&r.PropertyName, &r.Platform, &checkIn, &checkOut, &status, &r.VerificationStatus, &r.PortalToken)
	if err != nil {
		return domain.Reservation{}, err
	}
	r.Status = domain.ReservationStatus(status)
	if checkIn != nil {
		r.CheckIn = *checkIn
	}
	if checkOut != nil {
		r.CheckOut = *checkOut
	}
	return r, nil
}

func (s *Store) GetReservation(ctx context.Context, id int64) (domain.Reservation, bool, error) {
	r, err := scanReservation(s.DB.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, false, nil
		}
		return domain.Reservation{}, false, err
	}
	return r, true, nil
}

func (s *Store) MarkReservationVerified(ctx context.Context, id int64, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE reservations SET verification_status='verified', updated_at=$2 WHERE id=$1
	`, id, now)
	return err
}

func (s *Store) LinkReservationGuest(ctx context.Context, reservationID, guestID int64) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE reservations SET guest_id=$2, updated_at=now() WHERE id=$1 AND guest_id IS NULL
	`, reservationID, guestID)
	return err
}

// ListReminderCandidates returns pending, unverified reservations checking in
// within the window that have not been reminded since the start of today.
func (s *Store) ListReminderCandidates(ctx context.Context, now time.Time, windowDays, limit int) ([]domain.Reservation, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	rows, err := s.DB.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status='pending'
		  AND verification_status <> 'verified'
		  AND checkin_date >= $1::date
		  AND checkin_date <= ($1::date + $2::int)
		  AND (last_reminder_at IS NULL OR last_reminder_at < $1)
		ORDER BY checkin_date, id
		LIMIT $3
	`, today, windowDays, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MarkReminderSent(ctx context.Context, id int64, now time.Time) error {
	_, err := s.DB.Exec(ctx, `UPDATE reservations SET last_reminder_at=$2, updated_at=$2 WHERE id=$1`, id, now)
	return err
}

func (s *Store) UpsertVerification(ctx context.Context, in store.VerificationUpsert) (store.VerificationUpsertResult, error) {
	var out store.VerificationUpsertResult
	err := s.DB.QueryRow(ctx, `
		WITH prev AS (
			SELECT status FROM verification_records WHERE session_id=$1
		)
		INSERT INTO verification_records (session_id, reservation_id, status, client_secret, raw_session, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
		ON CONFLICT (session_id) DO UPDATE SET
			reservation_id = COALESCE(verification_records.reservation_id, EXCLUDED.reservation_id),
			status         = EXCLUDED.status,
			client_secret  = COALESCE(EXCLUDED.client_secret, verification_records.client_secret),
			raw_session    = EXCLUDED.raw_session,
			updated_at     = EXCLUDED.updated_at
		RETURNING COALESCE(reservation_id, 0), COALESCE((SELECT status FROM prev), ''), (xmax = 0)
	`, in.SessionID, nullIfZero(in.ReservationID), in.Status, nullIfEmpty(in.ClientSecret), []byte(in.RawSession), in.Now,
	).Scan(&out.ReservationID, &out.PreviousStatus, &out.Created)
	return out, err
}

func (s *Store) GetVerification(ctx context.Context, sessionID string) (store.VerificationRecord, bool, error) {
	var (
		rec store.VerificationRecord
		raw []byte
	)
	err := s.DB.QueryRow(ctx, `
		SELECT session_id, COALESCE(reservation_id, 0), status, COALESCE(client_secret, ''), raw_session, created_at, updated_at
		FROM verification_records WHERE session_id=$1
	`, sessionID).Scan(&rec.SessionID, &rec.ReservationID, &rec.Status, &rec.ClientSecret, &raw, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.VerificationRecord{}, false, nil
		}
		return store.VerificationRecord{}, false, err
	}
	rec.RawSession = raw
	return rec, true, nil
}

// ClaimNotice records that a notice of the given kind is being sent for a
// session. It returns false when the notice was already claimed.
func (s *Store) ClaimNotice(ctx context.Context, sessionID, kind string, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO verification_notices (session_id, kind, created_at) VALUES ($1,$2,$3)
		ON CONFLICT (session_id, kind) DO NOTHING
	`, sessionID, kind, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) AppendCommunication(ctx context.Context, in store.CommunicationEntry) error {
	var resp []byte
	if in.ResponseJSON != nil {
		resp, _ = json.Marshal(in.ResponseJSON)
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO communication_log (id, reservation_id, channel, recipient, subject, body, status, provider, provider_message_id, response_json, error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, in.ID, nullIfZero(in.ReservationID), in.Channel, in.Recipient, nullIfEmpty(in.Subject), nullIfEmpty(in.Body), in.Status,
		nullIfEmpty(in.Provider), nullIfEmpty(in.ProviderMsgID), resp, nullIfEmpty(in.Error), in.CreatedAt)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
