// Package storetest provides an in-memory Store for handler and guard
// tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/kevinjam/farmkeeper-sub001/internal/model"
	"github.com/kevinjam/farmkeeper-sub001/internal/store"
)

// MemStore is an in-memory store.Store. The Err* fields inject failures
// into the matching operation.
type MemStore struct {
	mu      sync.Mutex
	nextID  uint
	users   map[uint]*model.User
	farms   map[uint]*model.Farm
	eggs    []model.EggRecord
	expense []model.Expense

	ErrCreateUser     error
	ErrCreateFarm     error
	ErrLinkUserToFarm error
}

var _ store.Store = (*MemStore)(nil)

// New creates an empty MemStore.
func New() *MemStore {
	return &MemStore{
		users: map[uint]*model.User{},
		farms: map[uint]*model.Farm{},
	}
}

func (m *MemStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *MemStore) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) FindUserByID(_ context.Context, id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) CreateUser(_ context.Context, user *model.User) error {
	if m.ErrCreateUser != nil {
		return m.ErrCreateUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = model.NormalizeEmail(user.Email)
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrDuplicateEmail
		}
	}
	user.ID = m.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MemStore) UpdateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return store.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MemStore) DeleteUser(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *MemStore) FindFarmBySlug(_ context.Context, slug string) (*model.Farm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.farms {
		if f.Slug == slug {
			cp := *f
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) FindFarmByID(_ context.Context, id uint) (*model.Farm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.farms[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) CreateFarm(_ context.Context, farm *model.Farm) error {
	if m.ErrCreateFarm != nil {
		return m.ErrCreateFarm
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if farm.Slug == "" {
		farm.Slug = model.DeriveSlug(farm.Name)
	}
	// Mirrors the unique index on farms.slug.
	for _, f := range m.farms {
		if f.Slug == farm.Slug {
			return store.ErrDuplicateSlug
		}
	}
	farm.ID = m.id()
	farm.CreatedAt = time.Now()
	farm.UpdatedAt = farm.CreatedAt
	cp := *farm
	m.farms[farm.ID] = &cp
	return nil
}

func (m *MemStore) UpdateFarm(_ context.Context, farm *model.Farm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.farms[farm.ID]; !ok {
		return store.ErrNotFound
	}
	farm.UpdatedAt = time.Now()
	cp := *farm
	m.farms[farm.ID] = &cp
	return nil
}

func (m *MemStore) LinkUserToFarm(_ context.Context, userID, farmID uint) error {
	if m.ErrLinkUserToFarm != nil {
		return m.ErrLinkUserToFarm
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	id := farmID
	u.FarmID = &id
	return nil
}

func (m *MemStore) CreateEggRecord(_ context.Context, rec *model.EggRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.id()
	m.eggs = append(m.eggs, *rec)
	return nil
}

func (m *MemStore) ListEggRecords(_ context.Context, farmID uint) ([]model.EggRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.EggRecord
	for _, r := range m.eggs {
		if r.FarmID == farmID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemStore) CreateExpense(_ context.Context, exp *model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp.ID = m.id()
	m.expense = append(m.expense, *exp)
	return nil
}

func (m *MemStore) ListExpenses(_ context.Context, farmID uint) ([]model.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Expense
	for _, e := range m.expense {
		if e.FarmID == farmID {
			out = append(out, e)
		}
	}
	return out, nil
}

// UserCount reports the number of stored users.
func (m *MemStore) UserCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}
