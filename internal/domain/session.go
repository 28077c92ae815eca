package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// VerificationSession mirrors the vendor's identity verification session.
// The raw payload it was decoded from is kept so snapshots preserve fields
// this package does not model.
type VerificationSession struct {
	ID                     string            `json:"id"`
	Object                 string            `json:"object,omitempty"`
	Status                 SessionStatus     `json:"status"`
	ClientSecret           string            `json:"client_secret,omitempty"`
	URL                    string            `json:"url,omitempty"`
	LastError              *SessionError     `json:"last_error,omitempty"`
	LastVerificationReport ReportRef         `json:"last_verification_report"`
	Metadata               map[string]string `json:"metadata,omitempty"`

	raw json.RawMessage
}

type SessionError struct {
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s *VerificationSession) UnmarshalJSON(b []byte) error {
	type alias VerificationSession
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*s = VerificationSession(a)
	s.raw = append(json.RawMessage(nil), b...)
	return nil
}

// ReservationID returns the reservation id carried in session metadata, or 0.
func (s VerificationSession) ReservationID() int64 {
	v := strings.TrimSpace(s.Metadata[MetaReservationID])
	if v == "" {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// FailureReason is the vendor supplied reason for a requires_input session.
func (s VerificationSession) FailureReason() string {
	if s.LastError == nil {
		return ""
	}
	if s.LastError.Reason != "" {
		return s.LastError.Reason
	}
	return s.LastError.Code
}

// Snapshot returns the full session JSON with the verification report
// reference replaced by whatever LastVerificationReport currently holds.
func (s VerificationSession) Snapshot() (json.RawMessage, error) {
	report, err := json.Marshal(s.LastVerificationReport)
	if err != nil {
		return nil, err
	}
	if len(s.raw) == 0 {
		type alias VerificationSession
		return json.Marshal(alias(s))
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(s.raw, &fields); err != nil {
		return nil, fmt.Errorf("decode session snapshot: %w", err)
	}
	fields["last_verification_report"] = report
	return json.Marshal(fields)
}

// ReportRef is the session's last_verification_report: absent, a bare id, or
// an embedded report.
type ReportRef struct {
	ID     string
	Report *VerificationReport
}

func (r ReportRef) Empty() bool    { return r.ID == "" && r.Report == nil }
func (r ReportRef) Expanded() bool { return r.Report != nil }

func (r *ReportRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*r = ReportRef{}
	case b[0] == '"':
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*r = ReportRef{ID: id}
	case b[0] == '{':
		var rep VerificationReport
		if err := json.Unmarshal(b, &rep); err != nil {
			return err
		}
		if rep.Complete() {
			*r = ReportRef{ID: rep.ID, Report: &rep}
		} else {
			*r = ReportRef{ID: rep.ID}
		}
	default:
		return fmt.Errorf("unexpected verification report reference: %.32s", b)
	}
	return nil
}

func (r ReportRef) MarshalJSON() ([]byte, error) {
	switch {
	case r.Report != nil:
		return json.Marshal(r.Report)
	case r.ID != "":
		return json.Marshal(r.ID)
	default:
		return []byte("null"), nil
	}
}

type VerificationReport struct {
	ID       string         `json:"id"`
	Object   string         `json:"object,omitempty"`
	Type     string         `json:"type,omitempty"`
	Document *DocumentCheck `json:"document,omitempty"`
	Selfie   *SelfieCheck   `json:"selfie,omitempty"`

	raw json.RawMessage
}

type DocumentCheck struct {
	Type           string      `json:"type,omitempty"`
	IssuingCountry string      `json:"issuing_country,omitempty"`
	Number         string      `json:"number,omitempty"`
	Status         string      `json:"status,omitempty"`
	Front          FileRef     `json:"front"`
	Back           FileRef     `json:"back"`
	Error          *CheckError `json:"error,omitempty"`
}

// NumberLast4 returns the trailing four characters of the document number.
func (d DocumentCheck) NumberLast4() string {
	n := strings.TrimSpace(d.Number)
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

type SelfieCheck struct {
	Status   string      `json:"status,omitempty"`
	Selfie   FileRef     `json:"selfie"`
	Document FileRef     `json:"document"`
	Error    *CheckError `json:"error,omitempty"`
}

type CheckError struct {
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Complete reports whether the report carries check results rather than
// being a bare reference object.
func (r VerificationReport) Complete() bool {
	return r.ID != "" && (r.Document != nil || r.Selfie != nil)
}

func (r *VerificationReport) UnmarshalJSON(b []byte) error {
	type alias VerificationReport
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*r = VerificationReport(a)
	r.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (r VerificationReport) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	type alias VerificationReport
	return json.Marshal(alias(r))
}

// FileRef is a vendor file reference: a bare file id or an expanded file object.
type FileRef struct {
	ID  string
	URL string

	raw json.RawMessage
}

func (f FileRef) Empty() bool { return f.ID == "" }

func (f *FileRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = FileRef{}
	case b[0] == '"':
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*f = FileRef{ID: id}
	case b[0] == '{':
		var obj struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*f = FileRef{ID: obj.ID, URL: obj.URL, raw: append(json.RawMessage(nil), b...)}
	default:
		return fmt.Errorf("unexpected file reference: %.32s", b)
	}
	return nil
}

func (f FileRef) MarshalJSON() ([]byte, error) {
	switch {
	case len(f.raw) > 0:
		return f.raw, nil
	case f.ID != "":
		return json.Marshal(f.ID)
	default:
		return []byte("null"), nil
	}
}
