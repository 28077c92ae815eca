package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"checkin/internal/providers/stripe"
	"checkin/internal/verification"
)

const maxWebhookBody = 1 << 20

type WebhookHandler interface {
	HandleWebhook(ctx context.Context, body []byte, signatureHeader string) (verification.Outcome, error)
}

type Webhook struct {
	Svc WebhookHandler
}

func (w *Webhook) Register(r *mux.Router) {
	r.HandleFunc("/stripe-webhook", w.handleStripe).Methods(http.MethodPost)
}

// handleStripe answers 400 only for deliveries that fail authentication or
// decoding. Accepted events always get 200 so the vendor does not retry.
func (w *Webhook) handleStripe(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, maxWebhookBody))
	if err != nil {
		writeError(rw, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	out, err := w.Svc.HandleWebhook(r.Context(), body, r.Header.Get(stripe.SignatureHeader))
	if err != nil {
		writeError(rw, http.StatusBadRequest, ErrInvalidSignature)
		return
	}
	for _, e := range out.Failed() {
		slog.Warn("webhook side effect failed", "event_id", out.EventID, "session_id", out.SessionID,
			"effect", e.Name, "err", e.Err)
	}
	writeJSON(rw, http.StatusOK, map[string]bool{"success": true})
}
