package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSStore writes objects to a Google Cloud Storage bucket. Credentials come
// from the environment (GOOGLE_APPLICATION_CREDENTIALS or the metadata server).
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
	nowF    func() time.Time
}

// NewGCSStore opens a client for bucket. References are baseURL/<object>,
// defaulting to the public storage.googleapis.com URL.
func NewGCSStore(ctx context.Context, bucket, baseURL string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("filestore: gcs client: %w", err)
	}
	if baseURL == "" {
		baseURL = gcsPublicHost + "/" + bucket
	}
	return &GCSStore{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		nowF:    time.Now,
	}, nil
}

func (s *GCSStore) Save(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	name := objectName(folder, filename, s.nowF())
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("filestore: upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("filestore: finalize %s: %w", name, err)
	}
	return s.baseURL + "/" + name, nil
}

func (s *GCSStore) Delete(ctx context.Context, ref string) error {
	name, ok := s.objectFor(ref)
	if !ok {
		return nil
	}
	err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("filestore: delete %s: %w", name, err)
	}
	return nil
}

func (s *GCSStore) Owns(ref string) bool {
	_, ok := s.objectFor(ref)
	return ok
}

func (s *GCSStore) objectFor(ref string) (string, bool) {
	if !strings.HasPrefix(ref, s.baseURL+"/") {
		return "", false
	}
	return cleanObjectName(strings.TrimPrefix(ref, s.baseURL+"/"))
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
