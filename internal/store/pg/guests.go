package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"checkin/internal/domain"
	"checkin/internal/store"
)

const guestColumns = `id, username, email, display_name, first_name, last_name`

func (s *Store) GetGuestByID(ctx context.Context, id int64) (domain.GuestUser, bool, error) {
	return s.getGuest(ctx, `SELECT `+guestColumns+` FROM guest_users WHERE id=$1`, id)
}

// FindGuestByEmail matches case-insensitively.
func (s *Store) FindGuestByEmail(ctx context.Context, email string) (domain.GuestUser, bool, error) {
	return s.getGuest(ctx, `SELECT `+guestColumns+` FROM guest_users WHERE lower(email)=$1`, normalizeEmail(email))
}

func (s *Store) getGuest(ctx context.Context, query string, arg any) (domain.GuestUser, bool, error) {
	var g domain.GuestUser
	err := s.DB.QueryRow(ctx, query, arg).Scan(&g.ID, &g.Username, &g.Email, &g.DisplayName, &g.FirstName, &g.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GuestUser{}, false, nil
		}
		return domain.GuestUser{}, false, err
	}
	meta, err := s.GetGuestMeta(ctx, g.ID)
	if err != nil {
		return domain.GuestUser{}, false, err
	}
	g.Meta = meta
	return g, true, nil
}

func (s *Store) GetGuestMeta(ctx context.Context, userID int64) (map[string]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT meta_key, meta_value FROM guest_user_meta WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.DB.QueryRow(ctx, `SELECT 1 FROM guest_users WHERE username=$1`, username).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) InsertGuest(ctx context.Context, in store.GuestInsert) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
		INSERT INTO guest_users (username, email, password_hash, display_name, first_name, last_name, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, in.Username, in.Email, in.PasswordHash, in.DisplayName, in.FirstName, in.LastName, in.Now).Scan(&id)
	return id, err
}

// SetGuestMeta upserts all keys in one transaction.
func (s *Store) SetGuestMeta(ctx context.Context, userID int64, meta map[string]string, now time.Time) error {
	if len(meta) == 0 {
		return nil
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for k, v := range meta {
		batch.Queue(`
			INSERT INTO guest_user_meta (user_id, meta_key, meta_value, updated_at) VALUES ($1,$2,$3,$4)
			ON CONFLICT (user_id, meta_key) DO UPDATE SET meta_value=EXCLUDED.meta_value, updated_at=EXCLUDED.updated_at
		`, userID, k, v, now)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
