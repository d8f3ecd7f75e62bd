// Package filestore persists uploaded complaint photos and hands back a
// reference string that is stored on the submission row.
package filestore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"complaints-backend-go/internal/config"
)

const (
	FolderSubmissions = "submissions"
	FolderInvoices    = "invoices"
)

// Store saves and removes uploaded files.
type Store interface {
	// Save writes r under folder and returns the public reference.
	Save(ctx context.Context, folder, filename string, r io.Reader) (string, error)
	// Delete removes the file behind ref. References the store did not
	// produce and files that are already gone are not errors.
	Delete(ctx context.Context, ref string) error
	// Owns reports whether ref points into this store's namespace.
	Owns(ref string) bool
}

// New picks the backend from FILE_STORE.
func New(ctx context.Context, cfg *config.Config, log *logrus.Entry) (Store, error) {
	switch cfg.FileStore {
	case "gcs":
		log.WithField("bucket", cfg.GCSBucket).Info("using gcs file store")
		return NewGCSStore(ctx, cfg.GCSBucket, cfg.PublicBaseURL)
	default:
		log.WithField("dir", cfg.UploadDir).Info("using local file store")
		return NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL), nil
	}
}

// objectName builds folder/<timestamp>-<uuid><ext>, keeping only the
// client's extension.
func objectName(folder, filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("%s/%s-%s%s", folder, now.Format("20060102-150405"), uuid.NewString(), ext)
}

// cleanObjectName rejects names that could escape the store root.
func cleanObjectName(name string) (string, bool) {
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "", false
	}
	cleaned := filepath.ToSlash(filepath.Clean(name))
	if cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." || strings.HasPrefix(cleaned, "/") {
		return "", false
	}
	return cleaned, true
}
