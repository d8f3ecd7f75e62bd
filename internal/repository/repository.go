// Package repository isolates the storage engine from the services: one
// interface per entity, a gorm implementation and an in-memory one.
package repository

import (
	"context"
	"errors"
	"time"

	"complaints-backend-go/internal/models"
)

// ErrNotFound is returned when a lookup matches no row. Scoped lookups
// (submission by id and owner) return it for rows owned by someone else too.
var ErrNotFound = errors.New("repository: record not found")

type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// GetOrCreateByPhone resolves the user for phone, inserting it when absent.
	// created reports whether this call inserted the row.
	GetOrCreateByPhone(ctx context.Context, phone string) (user *models.User, created bool, err error)
}

type OtpRepository interface {
	// Upsert writes the credential for cred.PhoneNumber, replacing any
	// existing one in a single statement.
	Upsert(ctx context.Context, cred *models.OtpCredential) error
	// Consume atomically deletes the credential matching phone and hash that
	// is still valid at now. It reports whether a row was deleted.
	Consume(ctx context.Context, phone, hashedCode string, now time.Time) (bool, error)
	GetByPhone(ctx context.Context, phone string) (*models.OtpCredential, error)
}

type CategoryRepository interface {
	// List returns every category ordered by id.
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id uint) (*models.Category, error)
	GetByArabicName(ctx context.Context, name string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	DeleteAll(ctx context.Context) error
}

type SubmissionRepository interface {
	// ListByUser returns the user's submissions ordered by creation time, then id.
	ListByUser(ctx context.Context, userID uint) ([]models.Submission, error)
	GetForUser(ctx context.Context, id, userID uint) (*models.Submission, error)
	Create(ctx context.Context, s *models.Submission) error
	// Update saves the mutable fields of s, scoped to s.UserID.
	Update(ctx context.Context, s *models.Submission) error
	DeleteForUser(ctx context.Context, id, userID uint) error
}

// Store bundles the repositories the services are built from.
type Store struct {
	Users       UserRepository
	Otps        OtpRepository
	Categories  CategoryRepository
	Submissions SubmissionRepository
}
