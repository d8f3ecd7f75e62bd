// Package submission implements the complaint lifecycle for an authenticated
// owner. Every read and write is scoped to the caller's user id, so records
// of other users are indistinguishable from missing ones.
package submission

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"complaints-backend-go/internal/apperr"
	"complaints-backend-go/internal/filestore"
	"complaints-backend-go/internal/metrics"
	"complaints-backend-go/internal/models"
	"complaints-backend-go/internal/repository"
)

// Upload is a file received from the client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// File is either a fresh upload or a reference to an already stored file.
type File struct {
	Upload *Upload
	Ref    string
}

func (f *File) empty() bool {
	return f == nil || (f.Upload == nil && strings.TrimSpace(f.Ref) == "")
}

type CreateInput struct {
	CategoryID        uint
	Image             *File
	Notes             *string
	Latitude          string
	Longitude         string
	CounterNumber     *string
	ConsumptionNumber *string
	InvoiceImage      *File
	CreatedAt         *time.Time
}

// UpdateInput carries the fields to change; nil means keep. A blank text or
// an empty InvoiceImage clears the optional value.
type UpdateInput struct {
	Image             *File
	Notes             *string
	Latitude          *string
	Longitude         *string
	CounterNumber     *string
	ConsumptionNumber *string
	InvoiceImage      *File
}

type Service struct {
	submissions repository.SubmissionRepository
	categories  repository.CategoryRepository
	files       filestore.Store
	log         *logrus.Entry
	nowF        func() time.Time
}

func NewService(
	submissions repository.SubmissionRepository,
	categories repository.CategoryRepository,
	files filestore.Store,
	log *logrus.Entry,
) *Service {
	return &Service{
		submissions: submissions,
		categories:  categories,
		files:       files,
		log:         log,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// ListOwn returns the caller's submissions ordered by creation time.
func (s *Service) ListOwn(ctx context.Context, userID uint) ([]models.Submission, error) {
	list, err := s.submissions.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.internal(err, "list submissions", logrus.Fields{"user_id": userID})
	}
	return list, nil
}

// ListOwnGeoJSON returns the caller's submissions as point features.
func (s *Service) ListOwnGeoJSON(ctx context.Context, userID uint) (*geojson.FeatureCollection, error) {
	list, err := s.ListOwn(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FeatureCollection(list), nil
}

// FeatureCollection converts submissions to GeoJSON points.
func FeatureCollection(list []models.Submission) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range list {
		sub := &list[i]
		f := geojson.NewFeature(sub.Point())
		f.ID = sub.ID
		f.Properties["submission_id"] = sub.ID
		f.Properties["category_id"] = sub.CategoryID
		f.Properties["category"] = sub.Category.NameAr
		f.Properties["image_url"] = sub.ImageURL
		if sub.Notes != nil {
			f.Properties["notes"] = *sub.Notes
		}
		f.Properties["created_at"] = sub.CreatedAt.UTC().Format(time.RFC3339)
		fc.Append(f)
	}
	return fc
}

// Create validates in, stores any uploaded files and inserts the row owned
// by userID. Files written here are removed again if the insert fails.
func (s *Service) Create(ctx context.Context, userID uint, in CreateInput) (*models.Submission, error) {
	now := s.nowF()

	if in.CategoryID == 0 {
		return nil, apperr.Validation("category_id", "category_id is required")
	}
	if in.Image.empty() {
		return nil, apperr.Validation("image_url", "image_url is required")
	}
	lat, err := parseLatitude(in.Latitude)
	if err != nil {
		return nil, err
	}
	lng, err := parseLongitude(in.Longitude)
	if err != nil {
		return nil, err
	}
	if err := checkPoint(orb.Point{lng, lat}); err != nil {
		return nil, err
	}
	notes, _ := optionalText("notes", in.Notes, 0)
	counter, err := optionalText("counter_number", in.CounterNumber, maxReferenceLength)
	if err != nil {
		return nil, err
	}
	consumption, err := optionalText("consumption_number", in.ConsumptionNumber, maxReferenceLength)
	if err != nil {
		return nil, err
	}
	createdAt := now
	if in.CreatedAt != nil {
		if err := checkCreatedAt(*in.CreatedAt, now); err != nil {
			return nil, err
		}
		createdAt = in.CreatedAt.UTC()
	}

	if _, err := s.categories.GetByID(ctx, in.CategoryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("category not found")
		}
		return nil, s.internal(err, "load category", logrus.Fields{"category_id": in.CategoryID})
	}

	var written []string
	image, err := s.store(ctx, filestore.FolderSubmissions, in.Image, "", &written)
	if err != nil {
		return nil, err
	}
	var invoice *string
	if !in.InvoiceImage.empty() {
		ref, err := s.store(ctx, filestore.FolderInvoices, in.InvoiceImage, "", &written)
		if err != nil {
			s.discard(ctx, written)
			return nil, err
		}
		invoice = &ref
	}

	sub := &models.Submission{
		UserID:            userID,
		CategoryID:        in.CategoryID,
		ImageURL:          image,
		Notes:             notes,
		Latitude:          lat,
		Longitude:         lng,
		CounterNumber:     counter,
		ConsumptionNumber: consumption,
		InvoiceImage:      invoice,
		CreatedAt:         createdAt,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		s.discard(ctx, written)
		return nil, s.internal(err, "insert submission", logrus.Fields{"user_id": userID})
	}

	metrics.SubmissionsCreated.WithLabelValues(strconv.FormatUint(uint64(in.CategoryID), 10)).Inc()
	s.log.WithFields(logrus.Fields{
		"submission_id": sub.ID,
		"user_id":       userID,
		"category_id":   in.CategoryID,
	}).Info("submission created")

	return s.RetrieveOwn(ctx, userID, sub.ID)
}

// RetrieveOwn returns submission id if userID owns it.
func (s *Service) RetrieveOwn(ctx context.Context, userID, id uint) (*models.Submission, error) {
	sub, err := s.submissions.GetForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("submission not found")
		}
		return nil, s.internal(err, "load submission", logrus.Fields{"submission_id": id})
	}
	return sub, nil
}

// UpdateOwn applies in to submission id. Category, owner and creation time
// never change. Files replaced by the update are deleted once the row is
// saved.
func (s *Service) UpdateOwn(ctx context.Context, userID, id uint, in UpdateInput) (*models.Submission, error) {
	sub, err := s.RetrieveOwn(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Latitude != nil {
		if sub.Latitude, err = parseLatitude(*in.Latitude); err != nil {
			return nil, err
		}
	}
	if in.Longitude != nil {
		if sub.Longitude, err = parseLongitude(*in.Longitude); err != nil {
			return nil, err
		}
	}
	if err := checkPoint(sub.Point()); err != nil {
		return nil, err
	}
	if in.Notes != nil {
		sub.Notes, _ = optionalText("notes", in.Notes, 0)
	}
	if in.CounterNumber != nil {
		if sub.CounterNumber, err = optionalText("counter_number", in.CounterNumber, maxReferenceLength); err != nil {
			return nil, err
		}
	}
	if in.ConsumptionNumber != nil {
		if sub.ConsumptionNumber, err = optionalText("consumption_number", in.ConsumptionNumber, maxReferenceLength); err != nil {
			return nil, err
		}
	}
	if in.Image != nil && in.Image.empty() {
		return nil, apperr.Validation("image_url", "image_url cannot be empty")
	}

	var written, replaced []string
	if in.Image != nil {
		ref, err := s.store(ctx, filestore.FolderSubmissions, in.Image, sub.ImageURL, &written)
		if err != nil {
			return nil, err
		}
		if ref != sub.ImageURL {
			replaced = append(replaced, sub.ImageURL)
		}
		sub.ImageURL = ref
	}
	if in.InvoiceImage != nil {
		var next *string
		if !in.InvoiceImage.empty() {
			current := ""
			if sub.InvoiceImage != nil {
				current = *sub.InvoiceImage
			}
			ref, err := s.store(ctx, filestore.FolderInvoices, in.InvoiceImage, current, &written)
			if err != nil {
				s.discard(ctx, written)
				return nil, err
			}
			next = &ref
		}
		if sub.InvoiceImage != nil && (next == nil || *next != *sub.InvoiceImage) {
			replaced = append(replaced, *sub.InvoiceImage)
		}
		sub.InvoiceImage = next
	}

	if err := s.submissions.Update(ctx, sub); err != nil {
		s.discard(ctx, written)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("submission not found")
		}
		return nil, s.internal(err, "update submission", logrus.Fields{"submission_id": id})
	}
	s.discard(ctx, replaced)

	return s.RetrieveOwn(ctx, userID, id)
}

// DeleteOwn removes submission id and then its stored files.
func (s *Service) DeleteOwn(ctx context.Context, userID, id uint) error {
	sub, err := s.RetrieveOwn(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.submissions.DeleteForUser(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("submission not found")
		}
		return s.internal(err, "delete submission", logrus.Fields{"submission_id": id})
	}
	s.discard(ctx, sub.Files())
	s.log.WithFields(logrus.Fields{"submission_id": id, "user_id": userID}).Info("submission deleted")
	return nil
}

// store saves f when it is an upload and records the new reference in
// written. Plain references are passed through, except references into the
// file store: only uploads produce those, and the one a row already holds
// (current) may be sent back unchanged. Otherwise a later delete would
// remove a file another row points to.
func (s *Service) store(ctx context.Context, folder string, f *File, current string, written *[]string) (string, error) {
	if f.Upload == nil {
		field := "image_url"
		if folder == filestore.FolderInvoices {
			field = "invoice_image"
		}
		ref := strings.TrimSpace(f.Ref)
		if len(ref) > maxImageRefLength {
			return "", apperr.Validation(field, field+" reference is too long")
		}
		if ref != current && s.files.Owns(ref) {
			return "", apperr.Validation(field, field+" must be uploaded as a file")
		}
		return ref, nil
	}
	ref, err := s.files.Save(ctx, folder, f.Upload.Filename, f.Upload.Body)
	if err != nil {
		return "", s.internal(err, "save upload", logrus.Fields{"folder": folder})
	}
	*written = append(*written, ref)
	return ref, nil
}

// discard deletes refs, logging failures.
func (s *Service) discard(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := s.files.Delete(ctx, ref); err != nil {
			s.log.WithError(err).WithField("ref", ref).Warn("delete stored file")
		}
	}
}

func (s *Service) internal(err error, msg string, fields logrus.Fields) error {
	s.log.WithError(err).WithFields(fields).Error(msg)
	return apperr.Internal(err)
}
