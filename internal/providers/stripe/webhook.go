package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"checkin/internal/domain"
)

const (
	SignatureHeader  = "Stripe-Signature"
	DefaultTolerance = 300 * time.Second
)

const (
	EventSessionVerified      = "identity.verification_session.verified"
	EventSessionProcessing    = "identity.verification_session.processing"
	EventSessionRequiresInput = "identity.verification_session.requires_input"
	EventSessionCanceled      = "identity.verification_session.canceled"
)

var (
	ErrMissingSecret             = errors.New("webhook secret not configured")
	ErrMissingSignature          = errors.New("missing signature header")
	ErrMalformedHeader           = errors.New("malformed signature header")
	ErrSignatureMismatch         = errors.New("signature mismatch")
	ErrTimestampOutsideTolerance = errors.New("timestamp outside tolerance")
)

type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Object json.RawMessage `json:"object"`
}

// Session decodes the event's data.object as a verification session.
func (e Event) Session() (domain.VerificationSession, error) {
	var s domain.VerificationSession
	if len(e.Data.Object) == 0 {
		return s, errors.New("event has no data object")
	}
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return s, fmt.Errorf("decode event session: %w", err)
	}
	return s, nil
}

// ConstructEvent authenticates body against header and only then decodes it.
func ConstructEvent(body []byte, header, secret string, now time.Time) (Event, error) {
	if err := VerifySignature(body, header, secret, now, DefaultTolerance); err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// VerifySignature checks a `t=<ts>,v1=<hex>[,v1=<hex>...]` header against
// HMAC-SHA256(secret, "<ts>.<body>"). Any matching v1 value is accepted.
func VerifySignature(body []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if secret == "" {
		return ErrMissingSecret
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}

	ts, sigs, err := parseHeader(header)
	if err != nil {
		return err
	}

	expected := Sign(body, secret, ts)
	matched := false
	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
			matched = true
			break
		}
	}
	if !matched {
		return ErrSignatureMismatch
	}

	age := now.Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if tolerance > 0 && age > tolerance {
		return ErrTimestampOutsideTolerance
	}
	return nil
}

// Sign returns the hex v1 signature for body at timestamp ts.
func Sign(body []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeaderValue builds a header value the way the vendor sends it.
func SignatureHeaderValue(body []byte, secret string, ts int64) string {
	return "t=" + strconv.FormatInt(ts, 10) + ",v1=" + Sign(body, secret, ts)
}

func parseHeader(header string) (int64, []string, error) {
	var (
		ts    int64
		hasTS bool
		sigs  []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedHeader
			}
			ts, hasTS = n, true
		case "v1":
			if v != "" {
				sigs = append(sigs, v)
			}
		}
	}
	if !hasTS || len(sigs) == 0 {
		return 0, nil, ErrMalformedHeader
	}
	return ts, sigs, nil
}
