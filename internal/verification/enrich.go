package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"checkin/internal/domain"
	"checkin/internal/media"
	"checkin/internal/observability"
)

// Guest profile meta keys written by enrichment.
const (
	MetaReportID        = "identity_report_id"
	MetaSessionID       = "identity_session_id"
	MetaStatus          = "identity_status"
	MetaDocumentType    = "identity_document_type"
	MetaDocumentCountry = "identity_document_country"
	MetaDocumentLast4   = "identity_document_last4"
	MetaDocumentStatus  = "identity_document_status"
	MetaSelfieStatus    = "identity_selfie_status"
	MetaSyncedAt        = "identity_synced_at"
	MetaReport          = "identity_report"
	MetaSelfieFileID    = "identity_selfie_file_id"
	MetaSelfieAssetID   = "identity_selfie_asset_id"
	MetaSelfieURL       = "identity_selfie_url"
	MetaProfilePhotoID  = "profile_photo_asset_id"
	MetaProfilePhotoURL = "profile_photo_url"
)

// enrich decorates the reservation's guest with the report results and, when
// the selfie file changed, stores the new selfie. Failures are returned as
// effects only.
func (s *Service) enrich(ctx context.Context, reservationID int64, sess domain.VerificationSession) []Effect {
	rep := sess.LastVerificationReport.Report
	if reservationID == 0 {
		return []Effect{{Name: "enrich_profile", Err: ErrNoReservation}}
	}
	res, found, err := s.Store.GetReservation(ctx, reservationID)
	if err == nil && !found {
		err = fmt.Errorf("reservation %d: %w", reservationID, domain.ErrNotFound)
	}
	if err != nil {
		slog.Warn("enrichment skipped", "session_id", sess.ID, "reservation_id", reservationID, "err", err)
		return []Effect{{Name: "enrich_profile", Err: err}}
	}
	if s.Guests == nil {
		return []Effect{{Name: "resolve_guest", Err: domain.ErrNotConfigured}}
	}
	guest, created, err := s.Guests.EnsureGuest(ctx, res)
	if err != nil {
		slog.Warn("enrichment skipped: no guest", "session_id", sess.ID, "reservation_id", reservationID, "err", err)
		return []Effect{{Name: "resolve_guest", Err: err}}
	}
	if created {
		slog.Info("guest account created", "guest_id", guest.ID, "reservation_id", reservationID)
	}

	now := s.now()
	meta := profileMeta(sess, rep, now)
	if raw, err := json.Marshal(rep); err == nil {
		meta[MetaReport] = string(raw)
	}
	effects := []Effect{{Name: "enrich_profile", Err: s.Store.SetGuestMeta(ctx, guest.ID, meta, now)}}

	if rep.Selfie != nil && !rep.Selfie.Selfie.Empty() {
		effects = append(effects, Effect{Name: "store_selfie", Err: s.syncSelfie(ctx, guest.ID, rep.Selfie.Selfie)})
	}
	return effects
}

func profileMeta(sess domain.VerificationSession, rep *domain.VerificationReport, now time.Time) map[string]string {
	meta := map[string]string{
		MetaSessionID: sess.ID,
		MetaSyncedAt:  now.UTC().Format(time.RFC3339),
	}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			meta[k] = v
		}
	}
	set(MetaReportID, rep.ID)
	set(MetaStatus, string(sess.Status))
	if d := rep.Document; d != nil {
		set(MetaDocumentType, d.Type)
		set(MetaDocumentCountry, d.IssuingCountry)
		set(MetaDocumentLast4, d.NumberLast4())
		set(MetaDocumentStatus, d.Status)
	}
	if sf := rep.Selfie; sf != nil {
		set(MetaSelfieStatus, sf.Status)
	}
	return meta
}

type selfieResult int

const (
	selfieUnchanged selfieResult = iota
	selfieStored
)

// syncSelfie stores the selfie for a guest unless the same vendor file is
// already stored and retrievable. Concurrent calls for the same guest and
// file share one download.
func (s *Service) syncSelfie(ctx context.Context, guestID int64, ref domain.FileRef) error {
	if s.Media == nil {
		return domain.ErrNotConfigured
	}
	key := strconv.FormatInt(guestID, 10) + "/" + ref.ID
	v, err, _ := s.selfies.Do(key, func() (any, error) {
		meta, err := s.Store.GetGuestMeta(ctx, guestID)
		if err != nil {
			return nil, fmt.Errorf("load guest meta: %w", err)
		}
		if s.selfieCurrent(ctx, meta, ref.ID) {
			return selfieUnchanged, nil
		}
		return selfieStored, s.downloadSelfie(ctx, guestID, ref)
	})
	switch {
	case err != nil:
		observability.SelfieDownloads.WithLabelValues("error").Inc()
		slog.Warn("selfie not stored", "guest_id", guestID, "file_id", ref.ID, "err", err)
	case v == selfieUnchanged:
		observability.SelfieDownloads.WithLabelValues("unchanged").Inc()
	default:
		observability.SelfieDownloads.WithLabelValues("stored").Inc()
	}
	return err
}

func (s *Service) selfieCurrent(ctx context.Context, meta map[string]string, fileID string) bool {
	if meta[MetaSelfieFileID] != fileID {
		return false
	}
	assetID := meta[MetaSelfieAssetID]
	if assetID == "" {
		return false
	}
	ok, err := s.Media.Exists(ctx, assetID)
	if err != nil {
		slog.Warn("selfie asset check failed", "asset_id", assetID, "err", err)
		return false
	}
	return ok
}

func (s *Service) downloadSelfie(ctx context.Context, guestID int64, ref domain.FileRef) error {
	file, err := s.Vendor.GetFile(ctx, ref.ID)
	if err != nil {
		return fmt.Errorf("file metadata: %w", err)
	}
	fileURL := file.URL
	if fileURL == "" {
		fileURL = ref.URL
	}
	if fileURL == "" {
		return errors.New("file has no download url")
	}
	body, contentType, err := s.Vendor.DownloadFile(ctx, fileURL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if contentType == "" && file.Type != "" {
		contentType = "image/" + file.Type
	}
	stored, err := s.Media.Persist(ctx, media.Asset{
		GuestID:     guestID,
		FileID:      ref.ID,
		Filename:    file.Filename,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	err = s.Store.SetGuestMeta(ctx, guestID, map[string]string{
		MetaSelfieFileID:    ref.ID,
		MetaSelfieAssetID:   stored.AssetID,
		MetaSelfieURL:       stored.URL,
		MetaProfilePhotoID:  stored.AssetID,
		MetaProfilePhotoURL: stored.URL,
	}, s.now())
	if err != nil {
		return fmt.Errorf("record selfie: %w", err)
	}
	slog.Info("selfie stored", "guest_id", guestID, "file_id", ref.ID, "asset_id", stored.AssetID)
	return nil
}
