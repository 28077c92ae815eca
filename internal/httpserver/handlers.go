package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"checkin/internal/domain"
	"checkin/internal/providers/stripe"
	"checkin/internal/verification"
)

type Sessions interface {
	CreateSession(ctx context.Context, res domain.Reservation) (verification.CreateResult, error)
	CheckStatus(ctx context.Context, sessionID string) (verification.StatusResult, error)
}

type Reservations interface {
	GetReservation(ctx context.Context, id int64) (domain.Reservation, bool, error)
}

type API struct {
	Sessions     Sessions
	Reservations Reservations
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/reservations/{id}/verification-session", a.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/verification-sessions/{id}", a.handleSessionStatus).Methods(http.MethodGet)
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, ErrInvalidID)
		return
	}
	res, found, err := a.Reservations.GetReservation(r.Context(), id)
	if err != nil {
		slog.Error("get reservation failed", "err", err, "reservation_id", id)
		writeError(w, http.StatusBadGateway, ErrDependency)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, ErrNotFound)
		return
	}

	out, err := a.Sessions.CreateSession(r.Context(), res)
	if err != nil {
		status, msg := vendorError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, ErrMissingID)
		return
	}
	out, err := a.Sessions.CheckStatus(r.Context(), id)
	if err != nil {
		status, msg := vendorError(err)
		if status == http.StatusBadGateway {
			slog.Error("verification status failed", "err", err, "session_id", id)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func vendorError(err error) (int, string) {
	var apiErr *stripe.APIError
	switch {
	case errors.Is(err, domain.ErrMissingFields):
		return http.StatusBadRequest, ErrMissingID
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable, ErrNotConfigured
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound, ErrNotFound
	default:
		return http.StatusBadGateway, ErrDependency
	}
}
