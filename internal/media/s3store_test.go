package media

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"checkin/internal/store"
)

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.objects[*in.Bucket+"/"+*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Bucket+"/"+*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

type fakeIndex struct {
	assets map[string]store.MediaAsset
}

func (f *fakeIndex) InsertMediaAsset(ctx context.Context, in store.MediaAsset) error {
	f.assets[in.ID] = in
	return nil
}

func (f *fakeIndex) GetMediaAsset(ctx context.Context, id string) (store.MediaAsset, bool, error) {
	a, ok := f.assets[id]
	return a, ok, nil
}

func TestPersistAndExists(t *testing.T) {
	obj := &fakeS3{objects: map[string][]byte{}}
	idx := &fakeIndex{assets: map[string]store.MediaAsset{}}
	st := &S3Store{S3: obj, Index: idx, Bucket: "media", PublicBaseURL: "https://cdn.example.com/"}

	out, err := st.Persist(context.Background(), Asset{GuestID: 7, FileID: "file_s", ContentType: "image/jpeg", Body: []byte("JPEG")})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	a := idx.assets[out.AssetID]
	if a.VendorFileID != "file_s" || a.SizeBytes != 4 || !strings.HasPrefix(a.ObjectKey, "guests/7/") {
		t.Fatalf("unexpected index row %+v", a)
	}
	if !strings.HasPrefix(out.URL, "https://cdn.example.com/guests/7/") {
		t.Fatalf("unexpected url %q", out.URL)
	}

	ok, err := st.Exists(context.Background(), out.AssetID)
	if err != nil || !ok {
		t.Fatalf("expected asset to exist, got %v %v", ok, err)
	}

	delete(obj.objects, "media/"+a.ObjectKey)
	ok, err = st.Exists(context.Background(), out.AssetID)
	if err != nil || ok {
		t.Fatalf("expected missing object to report false, got %v %v", ok, err)
	}

	ok, err = st.Exists(context.Background(), "med_unknown")
	if err != nil || ok {
		t.Fatalf("expected unknown asset to report false, got %v %v", ok, err)
	}
}

func TestPersistRejectsEmptyBody(t *testing.T) {
	st := &S3Store{S3: &fakeS3{objects: map[string][]byte{}}, Index: &fakeIndex{assets: map[string]store.MediaAsset{}}, Bucket: "media"}
	if _, err := st.Persist(context.Background(), Asset{GuestID: 1}); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestFilenameSanitized(t *testing.T) {
	if got := filename(Asset{Filename: "../my selfie.jpg"}); got != "my-selfie.jpg" {
		t.Fatalf("unexpected filename %q", got)
	}
	if got := filename(Asset{FileID: "file_x"}); got != "file_x" {
		t.Fatalf("unexpected fallback filename %q", got)
	}
	if got := filename(Asset{FileID: "file_1", ContentType: "image/jpeg"}); got != "file_1.jpg" {
		t.Fatalf("unexpected jpeg filename %q", got)
	}
	if got := filename(Asset{FileID: "file_2", ContentType: "image/png; charset=binary"}); got != "file_2.png" {
		t.Fatalf("unexpected png filename %q", got)
	}
}
