package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"checkin/internal/store"
)

func (s *Store) InsertMediaAsset(ctx context.Context, in store.MediaAsset) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO media_assets (id, guest_id, vendor_file_id, bucket, object_key, content_type, size_bytes, url, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, in.ID, in.GuestID, in.VendorFileID, in.Bucket, in.ObjectKey, in.ContentType, in.SizeBytes, in.URL, in.CreatedAt)
	return err
}

func (s *Store) GetMediaAsset(ctx context.Context, id string) (store.MediaAsset, bool, error) {
	var a store.MediaAsset
	err := s.DB.QueryRow(ctx, `
		SELECT id, guest_id, vendor_file_id, bucket, object_key, content_type, size_bytes, url, created_at
		FROM media_assets WHERE id=$1
	`, id).Scan(&a.ID, &a.GuestID, &a.VendorFileID, &a.Bucket, &a.ObjectKey, &a.ContentType, &a.SizeBytes, &a.URL, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.MediaAsset{}, false, nil
		}
		return store.MediaAsset{}, false, err
	}
	return a, true, nil
}
