package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"checkin/internal/store"
	"checkin/internal/util"
)

type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type Index interface {
	InsertMediaAsset(ctx context.Context, in store.MediaAsset) error
	GetMediaAsset(ctx context.Context, id string) (store.MediaAsset, bool, error)
}

// Asset is a downloaded vendor file owned by a guest.
type Asset struct {
	GuestID     int64
	FileID      string
	Filename    string
	ContentType string
	Body        []byte
}

type Stored struct {
	AssetID string
	URL     string
}

type S3Store struct {
	S3            ObjectAPI
	Index         Index
	Bucket        string
	PublicBaseURL string
	Now           func() time.Time
}

func (s *S3Store) Persist(ctx context.Context, a Asset) (Stored, error) {
	if len(a.Body) == 0 {
		return Stored{}, errors.New("media: empty asset")
	}
	if s.Bucket == "" {
		return Stored{}, errors.New("media: bucket not configured")
	}
	id := util.NewID("med_")
	key := path.Join("guests", strconv.FormatInt(a.GuestID, 10), id+"-"+filename(a))

	_, err := s.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(a.Body),
		ContentType:   aws.String(contentType(a.ContentType)),
		ContentLength: aws.Int64(int64(len(a.Body))),
	})
	if err != nil {
		return Stored{}, fmt.Errorf("media put object: %w", err)
	}

	url := s.objectURL(key)
	if err := s.Index.InsertMediaAsset(ctx, store.MediaAsset{
		ID:           id,
		GuestID:      a.GuestID,
		VendorFileID: a.FileID,
		Bucket:       s.Bucket,
		ObjectKey:    key,
		ContentType:  contentType(a.ContentType),
		SizeBytes:    int64(len(a.Body)),
		URL:          url,
		CreatedAt:    s.now(),
	}); err != nil {
		return Stored{}, fmt.Errorf("media index: %w", err)
	}
	return Stored{AssetID: id, URL: url}, nil
}

// Exists reports whether the asset is indexed and its object is still present.
func (s *S3Store) Exists(ctx context.Context, assetID string) (bool, error) {
	if assetID == "" {
		return false, nil
	}
	a, found, err := s.Index.GetMediaAsset(ctx, assetID)
	if err != nil || !found {
		return false, err
	}
	_, err = s.S3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.ObjectKey),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("media head object: %w", err)
	}
	return true, nil
}

func (s *S3Store) objectURL(key string) string {
	base := strings.TrimRight(s.PublicBaseURL, "/")
	if base == "" {
		base = "https://" + s.Bucket + ".s3.amazonaws.com"
	}
	return base + "/" + key
}

func (s *S3Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return util.NowUTC()
}

func contentType(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

func filename(a Asset) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '-'
	}, path.Base(a.Filename))
	if name == "" || name == "." || name == "-" {
		name = a.FileID
		if name == "" {
			name = "asset"
		}
	}
	if path.Ext(name) == "" {
		name += extension(a.ContentType)
	}
	return name
}

func extension(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mt {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	}
	if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
