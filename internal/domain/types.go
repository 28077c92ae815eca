package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionRequiresInput SessionStatus = "requires_input"
	SessionProcessing    SessionStatus = "processing"
	SessionVerified      SessionStatus = "verified"
	SessionCanceled      SessionStatus = "canceled"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionRequiresInput, SessionProcessing, SessionVerified, SessionCanceled:
		return true
	}
	return false
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationApproved  ReservationStatus = "approved"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

type Reservation struct {
	ID                 int64             `json:"id"`
	BookingReference   string            `json:"bookingReference"`
	GuestID            int64             `json:"guestId,omitempty"`
	GuestName          string            `json:"guestName"`
	GuestEmail         string            `json:"guestEmail"`
	GuestPhone         string            `json:"guestPhone"`
	PropertyName       string            `json:"propertyName"`
	Platform           string            `json:"platform,omitempty"`
	CheckIn            time.Time         `json:"checkIn"`
	CheckOut           time.Time         `json:"checkOut"`
	Status             ReservationStatus `json:"status"`
	VerificationStatus string            `json:"verificationStatus,omitempty"`
	PortalToken        string            `json:"portalToken,omitempty"`
}

// SessionMetadata returns the metadata embedded in a new vendor session.
// Empty values are omitted.
func (r Reservation) SessionMetadata() map[string]string {
	md := map[string]string{}
	if r.ID > 0 {
		md[MetaReservationID] = strconv.FormatInt(r.ID, 10)
	}
	if r.GuestID > 0 {
		md[MetaGuestID] = strconv.FormatInt(r.GuestID, 10)
	}
	if ref := strings.TrimSpace(r.BookingReference); ref != "" {
		md[MetaBookingReference] = ref
	}
	return md
}

const (
	MetaReservationID    = "reservationId"
	MetaGuestID          = "guestId"
	MetaBookingReference = "bookingReference"
)

type GuestUser struct {
	ID          int64
	Username    string
	Email       string
	DisplayName string
	FirstName   string
	LastName    string
	Meta        map[string]string
}

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPlatform Channel = "platform"
)

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrNotConfigured = errors.New("not configured")
	ErrNotFound      = errors.New("not found")
)
