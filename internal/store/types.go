package store

import (
	"encoding/json"
	"time"
)

type VerificationRecord struct {
	SessionID     string
	ReservationID int64
	Status        string
	ClientSecret  string
	RawSession    json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VerificationUpsert writes the latest view of a vendor session. A zero
// ReservationID leaves any stored value alone; an empty ClientSecret keeps
// the stored one.
type VerificationUpsert struct {
	SessionID     string
	ReservationID int64
	Status        string
	ClientSecret  string
	RawSession    json.RawMessage
	Now           time.Time
}

type VerificationUpsertResult struct {
	ReservationID  int64
	PreviousStatus string
	Created        bool
}

type GuestInsert struct {
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	FirstName    string
	LastName     string
	Now          time.Time
}

type CommunicationEntry struct {
	ID            string
	ReservationID int64
	Channel       string
	Recipient     string
	Subject       string
	Body          string
	Status        string
	Provider      string
	ProviderMsgID string
	ResponseJSON  any
	Error         string
	CreatedAt     time.Time
}

type MediaAsset struct {
	ID           string
	GuestID      int64
	VendorFileID string
	Bucket       string
	ObjectKey    string
	ContentType  string
	SizeBytes    int64
	URL          string
	CreatedAt    time.Time
}
