// Package category serves the read-only complaint category list and seeds
// the reference data.
package category

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"complaints-backend-go/internal/apperr"
	"complaints-backend-go/internal/models"
	"complaints-backend-go/internal/repository"
)

type Directory struct {
	repo repository.CategoryRepository
}

func NewDirectory(repo repository.CategoryRepository) *Directory {
	return &Directory{repo: repo}
}

// List returns every category ordered by id.
func (d *Directory) List(ctx context.Context) ([]models.Category, error) {
	categories, err := d.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return categories, nil
}

// Definition is one seed entry keyed by its Arabic name.
type Definition struct {
	NameAr string
	NameEn string
}

// Defaults is the reference category list loaded by cmd/seed.
var Defaults = []Definition{
	{NameAr: "كهرباء", NameEn: "Electricity"},
	{NameAr: "مياه", NameEn: "Water"},
	{NameAr: "صرف صحي", NameEn: "Sewage"},
	{NameAr: "إنترنت", NameEn: "Internet"},
	{NameAr: "هاتف", NameEn: "Phone"},
	{NameAr: "طرق", NameEn: "Roads"},
	{NameAr: "إنارة", NameEn: "Lighting"},
	{NameAr: "أخرى", NameEn: "Other"},
}

type SeedResult struct {
	Created   int
	Updated   int
	Unchanged int
}

// Seed upserts defs by Arabic name. With clear set every existing category
// is removed first, which cascades to their submissions.
func Seed(ctx context.Context, repo repository.CategoryRepository, defs []Definition, clear bool, log *logrus.Entry) (SeedResult, error) {
	var res SeedResult
	if clear {
		if err := repo.DeleteAll(ctx); err != nil {
			return res, err
		}
		log.Warn("cleared existing categories")
	}

	for _, def := range defs {
		nameEn := def.NameEn
		existing, err := repo.GetByArabicName(ctx, def.NameAr)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c := &models.Category{NameAr: def.NameAr, NameEn: &nameEn}
			if err := repo.Create(ctx, c); err != nil {
				return res, err
			}
			res.Created++
			log.WithFields(logrus.Fields{"category_id": c.ID, "name_en": nameEn}).Info("category created")
		case err != nil:
			return res, err
		case existing.NameEn != nil && *existing.NameEn == nameEn:
			res.Unchanged++
		default:
			existing.NameEn = &nameEn
			if err := repo.Update(ctx, existing); err != nil {
				return res, err
			}
			res.Updated++
			log.WithFields(logrus.Fields{"category_id": existing.ID, "name_en": nameEn}).Info("category updated")
		}
	}
	return res, nil
}
