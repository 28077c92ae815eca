package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"checkin/internal/domain"
	"checkin/internal/observability"
)

const DefaultBaseURL = "https://api.stripe.com/v1"

var DefaultDocumentTypes = []string{"driving_license", "passport", "id_card"}

var ErrMissingAPIKey = fmt.Errorf("stripe secret key: %w", domain.ErrNotConfigured)

// Client talks to the identity verification endpoints. The secret key is
// sent as a bearer token and never logged.
type Client struct {
	SecretKey string
	BaseURL   string
	HTTP      *http.Client

	// Per-call ceilings; zero uses the defaults below.
	APITimeout      time.Duration
	DownloadTimeout time.Duration
}

const (
	defaultAPITimeout      = 30 * time.Second
	defaultDownloadTimeout = 60 * time.Second
	maxLoggedBody          = 512
)

// APIError is an error object returned by the vendor.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Code != "" {
		return fmt.Sprintf("stripe %d %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("stripe %d: %s", e.StatusCode, msg)
}

type CreateSessionParams struct {
	DocumentTypes []string
	Metadata      map[string]string
	ReturnURL     string
}

type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

func (c *Client) Configured() bool { return c != nil && strings.TrimSpace(c.SecretKey) != "" }

func (c *Client) CreateVerificationSession(ctx context.Context, p CreateSessionParams) (domain.VerificationSession, error) {
	if !c.Configured() {
		return domain.VerificationSession{}, ErrMissingAPIKey
	}
	types := p.DocumentTypes
	if len(types) == 0 {
		types = DefaultDocumentTypes
	}
	form := url.Values{}
	form.Set("type", "document")
	for _, t := range types {
		form.Add("options[document][allowed_types][]", t)
	}
	form.Set("options[document][require_id_number]", "true")
	form.Set("options[document][require_live_capture]", "true")
	form.Set("options[document][require_matching_selfie]", "true")
	for k, v := range p.Metadata {
		if v != "" {
			form.Set("metadata["+k+"]", v)
		}
	}
	if p.ReturnURL != "" {
		form.Set("return_url", p.ReturnURL)
	}

	var s domain.VerificationSession
	if err := c.call(ctx, "create_session", http.MethodPost, "/identity/verification_sessions", nil, form, &s); err != nil {
		return domain.VerificationSession{}, err
	}
	if s.ID == "" && s.ClientSecret == "" {
		slog.Error("stripe create session response incomplete", "has_id", s.ID != "", "has_client_secret", s.ClientSecret != "")
		return domain.VerificationSession{}, errors.New("stripe create session: response missing id and client_secret")
	}
	return s, nil
}

// GetVerificationSession fetches the canonical session with its last report expanded.
func (c *Client) GetVerificationSession(ctx context.Context, id string) (domain.VerificationSession, error) {
	if !c.Configured() {
		return domain.VerificationSession{}, ErrMissingAPIKey
	}
	if id == "" {
		return domain.VerificationSession{}, fmt.Errorf("session id: %w", domain.ErrMissingFields)
	}
	q := url.Values{}
	q.Add("expand[]", "last_verification_report")

	var s domain.VerificationSession
	err := c.call(ctx, "get_session", http.MethodGet, "/identity/verification_sessions/"+url.PathEscape(id), q, nil, &s)
	return s, err
}

func (c *Client) GetVerificationReport(ctx context.Context, id string) (domain.VerificationReport, error) {
	if !c.Configured() {
		return domain.VerificationReport{}, ErrMissingAPIKey
	}
	if id == "" {
		return domain.VerificationReport{}, fmt.Errorf("report id: %w", domain.ErrMissingFields)
	}
	q := url.Values{}
	q.Add("expand[]", "document.front")
	q.Add("expand[]", "document.back")
	q.Add("expand[]", "selfie.selfie")

	var r domain.VerificationReport
	err := c.call(ctx, "get_report", http.MethodGet, "/identity/verification_reports/"+url.PathEscape(id), q, nil, &r)
	return r, err
}

func (c *Client) GetFile(ctx context.Context, id string) (File, error) {
	if !c.Configured() {
		return File{}, ErrMissingAPIKey
	}
	if id == "" {
		return File{}, fmt.Errorf("file id: %w", domain.ErrMissingFields)
	}
	var f File
	err := c.call(ctx, "get_file", http.MethodGet, "/files/"+url.PathEscape(id), nil, nil, &f)
	return f, err
}

// DownloadFile fetches binary content from a vendor file URL using the same credential.
func (c *Client) DownloadFile(ctx context.Context, fileURL string) ([]byte, string, error) {
	if !c.Configured() {
		return nil, "", ErrMissingAPIKey
	}
	if fileURL == "" {
		return nil, "", fmt.Errorf("file url: %w", domain.ErrMissingFields)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout(c.DownloadTimeout, defaultDownloadTimeout))
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.httpClient().Do(req)
	observability.VendorLatency.WithLabelValues("download_file").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.VendorCalls.WithLabelValues("download_file", "transport_error").Inc()
		slog.Error("stripe file download failed", "url", fileURL, "err", err)
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.VendorCalls.WithLabelValues("download_file", "transport_error").Inc()
		return nil, "", fmt.Errorf("read file body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.VendorCalls.WithLabelValues("download_file", "http_"+strconv.Itoa(resp.StatusCode)).Inc()
		slog.Error("stripe file download rejected", "url", fileURL, "http_status", resp.StatusCode, "body", truncate(b))
		return nil, "", &APIError{StatusCode: resp.StatusCode, Message: "file download failed"}
	}
	if len(b) == 0 {
		observability.VendorCalls.WithLabelValues("download_file", "empty").Inc()
		return nil, "", errors.New("download file: empty body")
	}
	observability.VendorCalls.WithLabelValues("download_file", "ok").Inc()
	return b, resp.Header.Get("Content-Type"), nil
}

func (c *Client) call(ctx context.Context, op, method, path string, query, form url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout(c.APITimeout, defaultAPITimeout))
	defer cancel()

	endpoint := c.baseURL() + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	observability.VendorLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.VendorCalls.WithLabelValues(op, "transport_error").Inc()
		slog.Error("stripe request failed", "op", op, "endpoint", path, "err", err)
		return fmt.Errorf("stripe %s: %w", op, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.VendorCalls.WithLabelValues(op, "transport_error").Inc()
		return fmt.Errorf("stripe %s: read body: %w", op, err)
	}

	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		observability.VendorCalls.WithLabelValues(op, "parse_error").Inc()
		slog.Error("stripe response not json", "op", op, "endpoint", path, "http_status", resp.StatusCode, "body", truncate(b))
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("stripe %s: decode response: %w", op, err)
	}
	if envelope.Error != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := envelope.Error
		if apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.StatusCode = resp.StatusCode
		observability.VendorCalls.WithLabelValues(op, "vendor_error").Inc()
		slog.Error("stripe returned error", "op", op, "endpoint", path, "http_status", resp.StatusCode, "body", truncate(b))
		return apiErr
	}

	if err := json.Unmarshal(b, out); err != nil {
		observability.VendorCalls.WithLabelValues(op, "parse_error").Inc()
		slog.Error("stripe response decode failed", "op", op, "endpoint", path, "err", err)
		return fmt.Errorf("stripe %s: decode response: %w", op, err)
	}
	observability.VendorCalls.WithLabelValues(op, "ok").Inc()
	return nil
}

func (c *Client) baseURL() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) timeout(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "..."
	}
	return string(b)
}
