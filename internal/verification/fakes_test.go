package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"checkin/internal/domain"
	"checkin/internal/media"
	"checkin/internal/providers/stripe"
	"checkin/internal/store"
)

type fakeVendor struct {
	mu         sync.Mutex
	configured bool
	sessions   map[string]string
	reports    map[string]string
	files      map[string]stripe.File
	content    map[string][]byte

	lastCreate     stripe.CreateSessionParams
	creates        int
	sessionFetches int
	reportFetches  int
	downloads      int
	fetchErr       error
	downloadGate   chan struct{}
}

func newFakeVendor() *fakeVendor {
	return &fakeVendor{
		configured: true,
		sessions:   map[string]string{},
		reports:    map[string]string{},
		files:      map[string]stripe.File{},
		content:    map[string][]byte{},
	}
}

func (f *fakeVendor) Configured() bool { return f.configured }

func (f *fakeVendor) CreateVerificationSession(_ context.Context, p stripe.CreateSessionParams) (domain.VerificationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.lastCreate = p
	md, _ := json.Marshal(p.Metadata)
	var s domain.VerificationSession
	err := json.Unmarshal([]byte(fmt.Sprintf(`{"id":"vs_1","object":"identity.verification_session","status":"requires_input","client_secret":"secret_1","metadata":%s}`, md)), &s)
	return s, err
}

func (f *fakeVendor) GetVerificationSession(_ context.Context, id string) (domain.VerificationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionFetches++
	if f.fetchErr != nil {
		return domain.VerificationSession{}, f.fetchErr
	}
	raw, ok := f.sessions[id]
	if !ok {
		return domain.VerificationSession{}, &stripe.APIError{StatusCode: 404, Code: "resource_missing", Message: "No such verification session"}
	}
	var s domain.VerificationSession
	err := json.Unmarshal([]byte(raw), &s)
	return s, err
}

func (f *fakeVendor) GetVerificationReport(_ context.Context, id string) (domain.VerificationReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportFetches++
	raw, ok := f.reports[id]
	if !ok {
		return domain.VerificationReport{}, &stripe.APIError{StatusCode: 404, Message: "No such report"}
	}
	var r domain.VerificationReport
	err := json.Unmarshal([]byte(raw), &r)
	return r, err
}

func (f *fakeVendor) GetFile(_ context.Context, id string) (stripe.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return stripe.File{}, &stripe.APIError{StatusCode: 404, Message: "No such file"}
	}
	return file, nil
}

func (f *fakeVendor) DownloadFile(_ context.Context, url string) ([]byte, string, error) {
	if f.downloadGate != nil {
		<-f.downloadGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	b, ok := f.content[url]
	if !ok {
		return nil, "", errors.New("download failed")
	}
	return b, "image/jpeg", nil
}

func (f *fakeVendor) addSelfie(fileID string) {
	url := "https://files.stripe.test/" + fileID
	f.files[fileID] = stripe.File{ID: fileID, Filename: fileID + ".jpg", Type: "jpg", URL: url}
	f.content[url] = []byte("jpeg-" + fileID)
}

type fakeStore struct {
	mu           sync.Mutex
	records      map[string]store.VerificationRecord
	reservations map[int64]domain.Reservation
	verified     map[int64]bool
	notices      map[string]bool
	meta         map[int64]map[string]string
	comms        []store.CommunicationEntry
	upserts      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:      map[string]store.VerificationRecord{},
		reservations: map[int64]domain.Reservation{},
		verified:     map[int64]bool{},
		notices:      map[string]bool{},
		meta:         map[int64]map[string]string{},
	}
}

func (f *fakeStore) UpsertVerification(_ context.Context, in store.VerificationUpsert) (store.VerificationUpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	rec, exists := f.records[in.SessionID]
	prev := rec.Status
	if !exists {
		rec = store.VerificationRecord{SessionID: in.SessionID, CreatedAt: in.Now}
	}
	if rec.ReservationID == 0 {
		rec.ReservationID = in.ReservationID
	}
	rec.Status = in.Status
	if in.ClientSecret != "" {
		rec.ClientSecret = in.ClientSecret
	}
	rec.RawSession = append(json.RawMessage(nil), in.RawSession...)
	rec.UpdatedAt = in.Now
	f.records[in.SessionID] = rec
	return store.VerificationUpsertResult{ReservationID: rec.ReservationID, PreviousStatus: prev, Created: !exists}, nil
}

func (f *fakeStore) GetReservation(_ context.Context, id int64) (domain.Reservation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	return r, ok, nil
}

func (f *fakeStore) MarkReservationVerified(_ context.Context, id int64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified[id] = true
	return nil
}

func (f *fakeStore) ClaimNotice(_ context.Context, sessionID, kind string, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := sessionID + "/" + kind
	if f.notices[k] {
		return false, nil
	}
	f.notices[k] = true
	return true, nil
}

func (f *fakeStore) GetGuestMeta(_ context.Context, userID int64) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for k, v := range f.meta[userID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) SetGuestMeta(_ context.Context, userID int64, meta map[string]string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meta[userID] == nil {
		f.meta[userID] = map[string]string{}
	}
	for k, v := range meta {
		f.meta[userID][k] = v
	}
	return nil
}

func (f *fakeStore) AppendCommunication(_ context.Context, in store.CommunicationEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comms = append(f.comms, in)
	return nil
}

type fakeGuests struct {
	guest domain.GuestUser
	err   error
	calls int
}

func (f *fakeGuests) EnsureGuest(_ context.Context, _ domain.Reservation) (domain.GuestUser, bool, error) {
	f.calls++
	return f.guest, false, f.err
}

type fakeMedia struct {
	mu       sync.Mutex
	assets   map[string]media.Asset
	persists int
}

func newFakeMedia() *fakeMedia { return &fakeMedia{assets: map[string]media.Asset{}} }

func (f *fakeMedia) Persist(_ context.Context, a media.Asset) (media.Stored, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persists++
	id := fmt.Sprintf("med_%d", f.persists)
	f.assets[id] = a
	return media.Stored{AssetID: id, URL: "https://media.example.com/" + id}, nil
}

func (f *fakeMedia) Exists(_ context.Context, assetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.assets[assetID]
	return ok, nil
}

func (f *fakeMedia) drop(assetID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.assets, assetID)
}
