package guests

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"checkin/internal/domain"
	"checkin/internal/store"
)

type fakeStore struct {
	byID      map[int64]domain.GuestUser
	usernames map[string]bool
	inserted  []store.GuestInsert
	links     map[int64]int64
	insertErr error
	linkErr   error
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[int64]domain.GuestUser{}, usernames: map[string]bool{}, links: map[int64]int64{}, nextID: 100}
}

func (f *fakeStore) GetGuestByID(_ context.Context, id int64) (domain.GuestUser, bool, error) {
	g, ok := f.byID[id]
	return g, ok, nil
}

func (f *fakeStore) FindGuestByEmail(_ context.Context, email string) (domain.GuestUser, bool, error) {
	for _, g := range f.byID {
		if strings.EqualFold(g.Email, strings.TrimSpace(email)) {
			return g, true, nil
		}
	}
	return domain.GuestUser{}, false, nil
}

func (f *fakeStore) UsernameTaken(_ context.Context, username string) (bool, error) {
	return f.usernames[username], nil
}

func (f *fakeStore) InsertGuest(_ context.Context, in store.GuestInsert) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	f.inserted = append(f.inserted, in)
	f.usernames[in.Username] = true
	f.byID[f.nextID] = domain.GuestUser{ID: f.nextID, Username: in.Username, Email: in.Email}
	return f.nextID, nil
}

func (f *fakeStore) LinkReservationGuest(_ context.Context, reservationID, guestID int64) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.links[reservationID] = guestID
	return nil
}

func newResolver(s *fakeStore) *Resolver {
	return &Resolver{Store: s, BcryptCost: bcrypt.MinCost}
}

func TestEnsureGuestUsesStoredGuestID(t *testing.T) {
	s := newFakeStore()
	s.byID[7] = domain.GuestUser{ID: 7, Email: "old@example.com"}
	g, created, err := newResolver(s).EnsureGuest(context.Background(), domain.Reservation{ID: 1, GuestID: 7, GuestEmail: "new@example.com"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if created || g.ID != 7 {
		t.Fatalf("expected existing guest 7, got %+v created=%v", g, created)
	}
}

func TestEnsureGuestMatchesEmailCaseInsensitively(t *testing.T) {
	s := newFakeStore()
	s.byID[9] = domain.GuestUser{ID: 9, Email: "Jane@Example.com"}
	g, created, err := newResolver(s).EnsureGuest(context.Background(), domain.Reservation{ID: 42, GuestEmail: "jane@example.com"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if created || g.ID != 9 {
		t.Fatalf("expected match on email, got %+v", g)
	}
	if s.links[42] != 9 {
		t.Fatalf("expected reservation linked to guest, got %v", s.links)
	}
}

func TestEnsureGuestCreatesAccount(t *testing.T) {
	s := newFakeStore()
	s.usernames["jane-doe"] = true
	s.usernames["jane-doe1"] = true

	g, created, err := newResolver(s).EnsureGuest(context.Background(), domain.Reservation{
		ID: 42, GuestName: "Jane  Mary Doe", GuestEmail: "Jane.Doe@example.com",
	})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !created {
		t.Fatalf("expected account creation")
	}
	if g.Username != "jane-doe2" {
		t.Fatalf("expected suffixed username, got %q", g.Username)
	}
	if g.FirstName != "Jane" || g.LastName != "Mary Doe" || g.DisplayName != "Jane  Mary Doe" {
		t.Fatalf("unexpected names %+v", g)
	}
	if len(s.inserted) != 1 {
		t.Fatalf("expected one insert")
	}
	hash := s.inserted[0].PasswordHash
	if hash == "" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", hash)
	}
	if s.links[42] != g.ID {
		t.Fatalf("expected link to new guest")
	}
}

func TestEnsureGuestWithoutEmail(t *testing.T) {
	_, _, err := newResolver(newFakeStore()).EnsureGuest(context.Background(), domain.Reservation{ID: 1, GuestName: "No Mail"})
	if !errors.Is(err, ErrNoEmail) {
		t.Fatalf("expected ErrNoEmail, got %v", err)
	}
}

func TestEnsureGuestInsertFailure(t *testing.T) {
	s := newFakeStore()
	s.insertErr = errors.New("db down")
	if _, _, err := newResolver(s).EnsureGuest(context.Background(), domain.Reservation{ID: 1, GuestEmail: "a@b.com"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEnsureGuestLinkFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	s := newFakeStore()
	s.byID[7] = domain.GuestUser{ID: 7, Email: "a@b.com"}
	s.linkErr = errors.New("deadlock detected")
	g, _, err := newResolver(s).EnsureGuest(context.Background(), domain.Reservation{ID: 3, GuestEmail: "a@b.com"})
	if err != nil || g.ID != 7 {
		t.Fatalf("expected guest 7 despite link failure, got %+v %v", g, err)
	}
	out := buf.String()
	if !strings.Contains(out, "link reservation guest failed") || !strings.Contains(out, `"reservation_id":3`) ||
		!strings.Contains(out, `"guest_id":7`) || !strings.Contains(out, "deadlock detected") {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestSplitNameAndUsernameBase(t *testing.T) {
	cases := []struct{ in, first, last string }{
		{"Jane Doe", "Jane", "Doe"},
		{"Cher", "Cher", ""},
		{"  Ana \t Maria Lopez ", "Ana", "Maria Lopez"},
	}
	for _, c := range cases {
		f, l := SplitName(c.in)
		if f != c.first || l != c.last {
			t.Fatalf("SplitName(%q) = %q,%q", c.in, f, l)
		}
	}
	if got := UsernameBase("!!!@example.com"); got != "guest" {
		t.Fatalf("expected fallback username, got %q", got)
	}
	if got := UsernameBase("john_smith@example.com"); got != "john_smith" {
		t.Fatalf("unexpected username %q", got)
	}
}
