package guests

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"

	"checkin/internal/domain"
	"checkin/internal/store"
	"checkin/internal/util"
)

var ErrNoEmail = errors.New("reservation has no guest email")

type Store interface {
	GetGuestByID(ctx context.Context, id int64) (domain.GuestUser, bool, error)
	FindGuestByEmail(ctx context.Context, email string) (domain.GuestUser, bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	InsertGuest(ctx context.Context, in store.GuestInsert) (int64, error)
	LinkReservationGuest(ctx context.Context, reservationID, guestID int64) error
}

// Resolver maps reservations to guest accounts.
type Resolver struct {
	Store      Store
	Now        func() time.Time
	BcryptCost int
}

const maxUsernameAttempts = 100

// EnsureGuest returns the reservation's guest account, creating it when none
// exists. Lookup order: the reservation's stored guest id, then the guest
// email (case-insensitive). A created or email-matched account is linked back
// to the reservation. The bool result is true when an account was created.
func (r *Resolver) EnsureGuest(ctx context.Context, res domain.Reservation) (domain.GuestUser, bool, error) {
	if res.GuestID > 0 {
		g, found, err := r.Store.GetGuestByID(ctx, res.GuestID)
		if err != nil {
			return domain.GuestUser{}, false, fmt.Errorf("guest by id: %w", err)
		}
		if found {
			return g, false, nil
		}
	}

	email := strings.TrimSpace(res.GuestEmail)
	if email == "" {
		return domain.GuestUser{}, false, ErrNoEmail
	}

	g, found, err := r.Store.FindGuestByEmail(ctx, email)
	if err != nil {
		return domain.GuestUser{}, false, fmt.Errorf("guest by email: %w", err)
	}
	if found {
		r.link(ctx, res.ID, g.ID)
		return g, false, nil
	}

	g, err = r.create(ctx, res, email)
	if err != nil {
		// A concurrent delivery may have created the same account.
		if existing, found, ferr := r.Store.FindGuestByEmail(ctx, email); ferr == nil && found {
			r.link(ctx, res.ID, existing.ID)
			return existing, false, nil
		}
		return domain.GuestUser{}, false, err
	}
	r.link(ctx, res.ID, g.ID)
	return g, true, nil
}

func (r *Resolver) create(ctx context.Context, res domain.Reservation, email string) (domain.GuestUser, error) {
	username, err := r.uniqueUsername(ctx, email)
	if err != nil {
		return domain.GuestUser{}, err
	}
	password, err := randomPassword()
	if err != nil {
		return domain.GuestUser{}, err
	}
	cost := r.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return domain.GuestUser{}, fmt.Errorf("hash password: %w", err)
	}

	display := strings.TrimSpace(res.GuestName)
	if display == "" {
		display = username
	}
	first, last := SplitName(display)

	g := domain.GuestUser{
		Username:    username,
		Email:       email,
		DisplayName: display,
		FirstName:   first,
		LastName:    last,
		Meta:        map[string]string{},
	}
	g.ID, err = r.Store.InsertGuest(ctx, store.GuestInsert{
		Username:     g.Username,
		Email:        g.Email,
		PasswordHash: string(hash),
		DisplayName:  g.DisplayName,
		FirstName:    g.FirstName,
		LastName:     g.LastName,
		Now:          r.now(),
	})
	if err != nil {
		return domain.GuestUser{}, fmt.Errorf("insert guest: %w", err)
	}
	return g, nil
}

// uniqueUsername derives a username from the email local-part and appends
// 1, 2, ... until it is free.
func (r *Resolver) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := UsernameBase(email)
	candidate := base
	for i := 1; i <= maxUsernameAttempts; i++ {
		taken, err := r.Store.UsernameTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("username lookup: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
	return "", fmt.Errorf("no free username for %q", base)
}

func (r *Resolver) link(ctx context.Context, reservationID, guestID int64) {
	if reservationID <= 0 || guestID <= 0 {
		return
	}
	if err := r.Store.LinkReservationGuest(ctx, reservationID, guestID); err != nil {
		slog.Warn("link reservation guest failed", "reservation_id", reservationID, "guest_id", guestID, "err", err)
	}
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return util.NowUTC()
}

func UsernameBase(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	base := slug.Make(local)
	if base == "" {
		return "guest"
	}
	return base
}

// SplitName splits on the first run of whitespace.
func SplitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	i := strings.IndexFunc(name, unicode.IsSpace)
	if i < 0 {
		return name, ""
	}
	return name[:i], strings.TrimLeftFunc(name[i:], unicode.IsSpace)
}

func randomPassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
