package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"complaints-backend-go/internal/models"
)

// MemoryStore keeps every entity in process memory. It backs
// STORE_BACKEND=memory for demos and the service tests.
type MemoryStore struct {
	mu sync.RWMutex

	users       map[uint]*models.User
	otps        map[string]*models.OtpCredential
	categories  map[uint]*models.Category
	submissions map[uint]*models.Submission

	userCounter       uint
	otpCounter        uint
	categoryCounter   uint
	submissionCounter uint

	nowF func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[uint]*models.User),
		otps:        make(map[string]*models.OtpCredential),
		categories:  make(map[uint]*models.Category),
		submissions: make(map[uint]*models.Submission),
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// Store exposes the memory store through the repository interfaces.
func (m *MemoryStore) Store() *Store {
	return &Store{
		Users:       memoryUsers{m},
		Otps:        memoryOtps{m},
		Categories:  memoryCategories{m},
		Submissions: memorySubmissions{m},
	}
}

// OtpCount returns how many credential rows exist for phone.
func (m *MemoryStore) OtpCount(phone string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.otps[phone]; ok {
		return 1
	}
	return 0
}

// UserCount returns the number of stored users.
func (m *MemoryStore) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

type memoryUsers struct{ m *MemoryStore }

func (r memoryUsers) GetByID(ctx context.Context, id uint) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memoryUsers) GetOrCreateByPhone(ctx context.Context, phone string) (*models.User, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.PhoneNumber == phone {
			cp := *u
			return &cp, false, nil
		}
	}
	r.m.userCounter++
	u := &models.User{ID: r.m.userCounter, PhoneNumber: phone, CreatedAt: r.m.nowF()}
	r.m.users[u.ID] = u
	cp := *u
	return &cp, true, nil
}

type memoryOtps struct{ m *MemoryStore }

func (r memoryOtps) Upsert(ctx context.Context, cred *models.OtpCredential) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if existing, ok := r.m.otps[cred.PhoneNumber]; ok {
		existing.HashedCode = cred.HashedCode
		existing.ExpiresAt = cred.ExpiresAt
		cred.ID = existing.ID
		return nil
	}
	r.m.otpCounter++
	cred.ID = r.m.otpCounter
	cp := *cred
	r.m.otps[cred.PhoneNumber] = &cp
	return nil
}

func (r memoryOtps) Consume(ctx context.Context, phone, hashedCode string, now time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cred, ok := r.m.otps[phone]
	if !ok || cred.HashedCode != hashedCode || !cred.ExpiresAt.After(now) {
		return false, nil
	}
	delete(r.m.otps, phone)
	return true, nil
}

func (r memoryOtps) GetByPhone(ctx context.Context, phone string) (*models.OtpCredential, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	cred, ok := r.m.otps[phone]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cred
	return &cp, nil
}

type memoryCategories struct{ m *MemoryStore }

func (r memoryCategories) List(ctx context.Context) ([]models.Category, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]models.Category, 0, len(r.m.categories))
	for _, c := range r.m.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryCategories) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	c, ok := r.m.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memoryCategories) GetByArabicName(ctx context.Context, name string) (*models.Category, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, c := range r.m.categories {
		if c.NameAr == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryCategories) Create(ctx context.Context, c *models.Category) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.categoryCounter++
	c.ID = r.m.categoryCounter
	cp := *c
	r.m.categories[c.ID] = &cp
	return nil
}

func (r memoryCategories) Update(ctx context.Context, c *models.Category) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.categories[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	r.m.categories[c.ID] = &cp
	return nil
}

// DeleteAll removes every category and, like the foreign key cascade, every
// submission filed under one.
func (r memoryCategories) DeleteAll(ctx context.Context) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.categories = make(map[uint]*models.Category)
	r.m.submissions = make(map[uint]*models.Submission)
	return nil
}

type memorySubmissions struct{ m *MemoryStore }

// hydrate fills the embedded user and category. Callers hold m.mu.
func (r memorySubmissions) hydrate(s *models.Submission) models.Submission {
	cp := *s
	if u, ok := r.m.users[s.UserID]; ok {
		cp.User = *u
	}
	if c, ok := r.m.categories[s.CategoryID]; ok {
		cp.Category = *c
	}
	return cp
}

func (r memorySubmissions) ListByUser(ctx context.Context, userID uint) ([]models.Submission, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := []models.Submission{}
	for _, s := range r.m.submissions {
		if s.UserID == userID {
			out = append(out, r.hydrate(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memorySubmissions) GetForUser(ctx context.Context, id, userID uint) (*models.Submission, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	s, ok := r.m.submissions[id]
	if !ok || s.UserID != userID {
		return nil, ErrNotFound
	}
	out := r.hydrate(s)
	return &out, nil
}

func (r memorySubmissions) Create(ctx context.Context, s *models.Submission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[s.UserID]; !ok {
		return ErrNotFound
	}
	if _, ok := r.m.categories[s.CategoryID]; !ok {
		return ErrNotFound
	}
	r.m.submissionCounter++
	s.ID = r.m.submissionCounter
	cp := *s
	cp.User = models.User{}
	cp.Category = models.Category{}
	r.m.submissions[s.ID] = &cp
	return nil
}

func (r memorySubmissions) Update(ctx context.Context, s *models.Submission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.submissions[s.ID]
	if !ok || stored.UserID != s.UserID {
		return ErrNotFound
	}
	stored.ImageURL = s.ImageURL
	stored.Notes = s.Notes
	stored.Latitude = s.Latitude
	stored.Longitude = s.Longitude
	stored.CounterNumber = s.CounterNumber
	stored.ConsumptionNumber = s.ConsumptionNumber
	stored.InvoiceImage = s.InvoiceImage
	return nil
}

func (r memorySubmissions) DeleteForUser(ctx context.Context, id, userID uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.submissions[id]
	if !ok || s.UserID != userID {
		return ErrNotFound
	}
	delete(r.m.submissions, id)
	return nil
}
