package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"complaints-backend-go/internal/database"
	"complaints-backend-go/internal/models"
	"complaints-backend-go/internal/repository"
)

func newGormStore(t *testing.T) (*repository.Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewGormStore(db), db
}

// backends runs fn against both implementations so they stay interchangeable.
func backends(t *testing.T, fn func(t *testing.T, s *repository.Store)) {
	t.Run("gorm", func(t *testing.T) {
		s, _ := newGormStore(t)
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, repository.NewMemoryStore().Store())
	})
}

func TestOtpUpsert_OverwritesByPhone(t *testing.T) {
	backends(t, func(t *testing.T, s *repository.Store) {
		ctx := context.Background()
		exp := time.Now().UTC().Add(5 * time.Minute).Truncate(time.Second)

		if err := s.Otps.Upsert(ctx, &models.OtpCredential{PhoneNumber: "+966500000001", HashedCode: "first", ExpiresAt: exp}); err != nil {
			t.Fatalf("Upsert first: %v", err)
		}
		if err := s.Otps.Upsert(ctx, &models.OtpCredential{PhoneNumber: "+966500000001", HashedCode: "second", ExpiresAt: exp}); err != nil {
			t.Fatalf("Upsert second: %v", err)
		}

		cred, err := s.Otps.GetByPhone(ctx, "+966500000001")
		if err != nil {
			t.Fatalf("GetByPhone: %v", err)
		}
		if cred.HashedCode != "second" {
			t.Errorf("HashedCode = %q, want second", cred.HashedCode)
		}

		now := time.Now().UTC()
		if ok, _ := s.Otps.Consume(ctx, "+966500000001", "first", now); ok {
			t.Error("overwritten hash should not be consumable")
		}
		if ok, err := s.Otps.Consume(ctx, "+966500000001", "second", now); err != nil || !ok {
			t.Fatalf("Consume second = %v, %v; want true", ok, err)
		}
	})
}

func TestOtpUpsert_SingleRowInTable(t *testing.T) {
	s, db := newGormStore(t)
	ctx := context.Background()
	exp := time.Now().UTC().Add(5 * time.Minute)
	for i := 0; i < 3; i++ {
		if err := s.Otps.Upsert(ctx, &models.OtpCredential{PhoneNumber: "+966500000002", HashedCode: "h", ExpiresAt: exp}); err != nil {
			t.Fatalf("Upsert %d: %v", i, err)
		}
	}
	var count int64
	db.Model(&models.OtpCredential{}).Where("phone_number = ?", "+966500000002").Count(&count)
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestOtpConsume_ExpiredAndReplay(t *testing.T) {
	backends(t, func(t *testing.T, s *repository.Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)

		expired := &models.OtpCredential{PhoneNumber: "+966500000003", HashedCode: "h", ExpiresAt: now.Add(-time.Minute)}
		if err := s.Otps.Upsert(ctx, expired); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if ok, err := s.Otps.Consume(ctx, "+966500000003", "h", now); err != nil || ok {
			t.Errorf("Consume expired = %v, %v; want false", ok, err)
		}

		valid := &models.OtpCredential{PhoneNumber: "+966500000004", HashedCode: "h", ExpiresAt: now.Add(time.Minute)}
		if err := s.Otps.Upsert(ctx, valid); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if ok, err := s.Otps.Consume(ctx, "+966500000004", "h", now); err != nil || !ok {
			t.Fatalf("first Consume = %v, %v; want true", ok, err)
		}
		if ok, err := s.Otps.Consume(ctx, "+966500000004", "h", now); err != nil || ok {
			t.Errorf("second Consume = %v, %v; want false", ok, err)
		}
		if _, err := s.Otps.GetByPhone(ctx, "+966500000004"); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("GetByPhone after consume err = %v, want ErrNotFound", err)
		}
	})
}

func TestUsers_GetOrCreateByPhone(t *testing.T) {
	backends(t, func(t *testing.T, s *repository.Store) {
		ctx := context.Background()
		first, created, err := s.Users.GetOrCreateByPhone(ctx, "+966500000005")
		if err != nil {
			t.Fatalf("GetOrCreateByPhone: %v", err)
		}
		if !created {
			t.Error("first call should create")
		}
		second, created, err := s.Users.GetOrCreateByPhone(ctx, "+966500000005")
		if err != nil {
			t.Fatalf("GetOrCreateByPhone again: %v", err)
		}
		if created {
			t.Error("second call should not create")
		}
		if first.ID != second.ID {
			t.Errorf("ids differ: %d vs %d", first.ID, second.ID)
		}
		if _, err := s.Users.GetByID(ctx, first.ID+100); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("GetByID unknown err = %v, want ErrNotFound", err)
		}
	})
}

func TestCategories_ListOrderedByID(t *testing.T) {
	backends(t, func(t *testing.T, s *repository.Store) {
		ctx := context.Background()
		en := "Water"
		for _, name := range []string{"كهرباء", "مياه"} {
			c := &models.Category{NameAr: name}
			if name == "مياه" {
				c.NameEn = &en
			}
			if err := s.Categories.Create(ctx, c); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}
		list, err := s.Categories.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 2 || list[0].ID >= list[1].ID {
			t.Fatalf("List = %+v, want 2 ordered by id", list)
		}
		if list[0].NameEn != nil || list[1].NameEn == nil || *list[1].NameEn != "Water" {
			t.Errorf("english names not preserved: %+v", list)
		}
		got, err := s.Categories.GetByArabicName(ctx, "مياه")
		if err != nil || got.ID != list[1].ID {
			t.Errorf("GetByArabicName = %+v, %v", got, err)
		}
	})
}

func TestSubmissions_ScopedToOwner(t *testing.T) {
	backends(t, func(t *testing.T, s *repository.Store) {
		ctx := context.Background()
		owner, _, _ := s.Users.GetOrCreateByPhone(ctx, "+966500000010")
		other, _, _ := s.Users.GetOrCreateByPhone(ctx, "+966500000011")
		cat := &models.Category{NameAr: "طرق"}
		if err := s.Categories.Create(ctx, cat); err != nil {
			t.Fatalf("Create category: %v", err)
		}

		base := time.Now().UTC().Truncate(time.Second)
		for i, at := range []time.Time{base, base.Add(-time.Hour)} {
			sub := &models.Submission{
				UserID: owner.ID, CategoryID: cat.ID, ImageURL: "/uploads/a.jpg",
				Latitude: 24.7136, Longitude: 46.6753, CreatedAt: at,
			}
			if err := s.Submissions.Create(ctx, sub); err != nil {
				t.Fatalf("Create %d: %v", i, err)
			}
		}

		list, err := s.Submissions.ListByUser(ctx, owner.ID)
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("len = %d, want 2", len(list))
		}
		if !list[0].CreatedAt.Before(list[1].CreatedAt) {
			t.Errorf("list not ordered by created_at: %v, %v", list[0].CreatedAt, list[1].CreatedAt)
		}
		if list[0].User.PhoneNumber != owner.PhoneNumber || list[0].Category.NameAr != "طرق" {
			t.Errorf("associations not loaded: %+v", list[0])
		}

		if others, _ := s.Submissions.ListByUser(ctx, other.ID); len(others) != 0 {
			t.Errorf("other user sees %d submissions", len(others))
		}

		id := list[0].ID
		if _, err := s.Submissions.GetForUser(ctx, id, other.ID); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("GetForUser other err = %v, want ErrNotFound", err)
		}
		foreign := list[0]
		foreign.UserID = other.ID
		if err := s.Submissions.Update(ctx, &foreign); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("Update other err = %v, want ErrNotFound", err)
		}
		if err := s.Submissions.DeleteForUser(ctx, id, other.ID); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("DeleteForUser other err = %v, want ErrNotFound", err)
		}

		notes := "pothole"
		mine := list[0]
		mine.Notes = &notes
		mine.Latitude = 21.4225
		if err := s.Submissions.Update(ctx, &mine); err != nil {
			t.Fatalf("Update: %v", err)
		}
		got, err := s.Submissions.GetForUser(ctx, id, owner.ID)
		if err != nil {
			t.Fatalf("GetForUser: %v", err)
		}
		if got.Notes == nil || *got.Notes != "pothole" || got.Latitude != 21.4225 {
			t.Errorf("update not persisted: %+v", got)
		}

		if err := s.Submissions.DeleteForUser(ctx, id, owner.ID); err != nil {
			t.Fatalf("DeleteForUser: %v", err)
		}
		if _, err := s.Submissions.GetForUser(ctx, id, owner.ID); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("GetForUser after delete err = %v, want ErrNotFound", err)
		}
	})
}
