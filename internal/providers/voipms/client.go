package voipms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const DefaultBaseURL = "https://voip.ms/api/v1/rest.php"

// MaxSMSLength is the provider's per-message character ceiling.
const MaxSMSLength = 160

type Client struct {
	Username string
	Password string
	DID      string
	HTTP     *http.Client
	BaseURL  string
}

type SendRequest struct {
	To   string
	Body string
}

type SendResponse struct {
	Status string      `json:"status"`
	SMS    json.Number `json:"sms"`
}

func (c *Client) Configured() bool {
	return c != nil && c.Username != "" && c.Password != "" && c.DID != ""
}

// SendSMS sends one message. The provider answers 200 for most failures and
// reports them in the status field.
func (c *Client) SendSMS(ctx context.Context, req SendRequest) (SendResponse, int, []byte, error) {
	q := url.Values{}
	q.Set("api_username", c.Username)
	q.Set("api_password", c.Password)
	q.Set("method", "sendSMS")
	q.Set("did", c.DID)
	q.Set("dst", req.To)
	q.Set("message", req.Body)

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return SendResponse{}, 0, nil, err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return SendResponse{}, 0, nil, redactURL(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out SendResponse
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, resp.StatusCode, b, errors.New("voipms send failed")
	}
	if out.Status != "success" {
		if out.Status != "" {
			return out, resp.StatusCode, b, errors.New("voipms: " + out.Status)
		}
		return out, resp.StatusCode, b, errors.New("voipms: unexpected response")
	}
	return out, resp.StatusCode, b, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// redactURL drops the request URL from transport errors; the query carries
// the API password.
func redactURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("voipms %s: %w", strings.ToLower(ue.Op), ue.Err)
	}
	return err
}
