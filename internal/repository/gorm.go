package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"complaints-backend-go/internal/models"
)

// NewGormStore returns repositories backed by db.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Users:       &GormUserRepository{db: db},
		Otps:        &GormOtpRepository{db: db},
		Categories:  &GormCategoryRepository{db: db},
		Submissions: &GormSubmissionRepository{db: db},
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type GormUserRepository struct {
	db *gorm.DB
}

func (r *GormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "user_id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetOrCreateByPhone inserts with ON CONFLICT DO NOTHING so two concurrent
// first logins for the same number resolve to the same row.
func (r *GormUserRepository) GetOrCreateByPhone(ctx context.Context, phone string) (*models.User, bool, error) {
	user := models.User{PhoneNumber: phone}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "phone_number"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected == 1

	var stored models.User
	if err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&stored).Error; err != nil {
		return nil, false, notFound(err)
	}
	return &stored, created, nil
}

type GormOtpRepository struct {
	db *gorm.DB
}

func (r *GormOtpRepository) Upsert(ctx context.Context, cred *models.OtpCredential) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"hashed_code", "expires_at"}),
		}).
		Create(cred).Error
}

func (r *GormOtpRepository) Consume(ctx context.Context, phone, hashedCode string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("phone_number = ? AND hashed_code = ? AND expires_at > ?", phone, hashedCode, now).
		Delete(&models.OtpCredential{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormOtpRepository) GetByPhone(ctx context.Context, phone string) (*models.OtpCredential, error) {
	var cred models.OtpCredential
	if err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&cred).Error; err != nil {
		return nil, notFound(err)
	}
	return &cred, nil
}

type GormCategoryRepository struct {
	db *gorm.DB
}

func (r *GormCategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := r.db.WithContext(ctx).Order("category_id").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *GormCategoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := r.db.WithContext(ctx).First(&c, "category_id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *GormCategoryRepository) GetByArabicName(ctx context.Context, name string) (*models.Category, error) {
	var c models.Category
	if err := r.db.WithContext(ctx).Where("name_ar = ?", name).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *GormCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *GormCategoryRepository) Update(ctx context.Context, c *models.Category) error {
	res := r.db.WithContext(ctx).Model(&models.Category{}).
		Where("category_id = ?", c.ID).
		Updates(map[string]any{"name_ar": c.NameAr, "name_en": c.NameEn})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormCategoryRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Category{}).Error
}

type GormSubmissionRepository struct {
	db *gorm.DB
}

func (r *GormSubmissionRepository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("User").Preload("Category")
}

func (r *GormSubmissionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Submission, error) {
	submissions := []models.Submission{}
	err := r.scoped(ctx).
		Where("user_id = ?", userID).
		Order("created_at, submission_id").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *GormSubmissionRepository) GetForUser(ctx context.Context, id, userID uint) (*models.Submission, error) {
	var s models.Submission
	if err := r.scoped(ctx).Where("submission_id = ? AND user_id = ?", id, userID).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *GormSubmissionRepository) Create(ctx context.Context, s *models.Submission) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(s).Error
}

func (r *GormSubmissionRepository) Update(ctx context.Context, s *models.Submission) error {
	res := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("submission_id = ? AND user_id = ?", s.ID, s.UserID).
		Updates(map[string]any{
			"image_url":          s.ImageURL,
			"notes":              s.Notes,
			"latitude":           s.Latitude,
			"longitude":          s.Longitude,
			"counter_number":     s.CounterNumber,
			"consumption_number": s.ConsumptionNumber,
			"invoice_image":      s.InvoiceImage,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormSubmissionRepository) DeleteForUser(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("submission_id = ? AND user_id = ?", id, userID).
		Delete(&models.Submission{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
