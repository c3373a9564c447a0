package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kevinjam/farmkeeper-sub001/internal/model"
	"github.com/kevinjam/farmkeeper-sub001/pkg/database"
	"github.com/kevinjam/farmkeeper-sub001/prometheus"
)

// GormStore persists records through the shared database handle. The handle
// is acquired through the connection manager on every call, so the first
// request after a cold start or a connection failure triggers (exactly one)
// establishment attempt.
type GormStore struct {
	manager *database.Manager
}

// NewGormStore creates a store backed by the connection manager.
func NewGormStore(manager *database.Manager) *GormStore {
	return &GormStore{manager: manager}
}

func (s *GormStore) db(ctx context.Context) (*gorm.DB, error) {
	db, err := s.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	result := db.Where("email = ?", model.NormalizeEmail(email)).First(&user)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &user, nil
}

func (s *GormStore) FindUserByID(ctx context.Context, id uint) (*model.User, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if result := db.First(&user, id); result.Error != nil {
		return nil, translate(result.Error)
	}
	return &user, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	defer prometheus.TrackDBOperation("insert")(time.Now())

	user.Email = model.NormalizeEmail(user.Email)
	if result := db.Create(user); result.Error != nil {
		if isDuplicate(result.Error) {
			return ErrDuplicateEmail
		}
		return result.Error
	}
	return nil
}

func (s *GormStore) UpdateUser(ctx context.Context, user *model.User) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	defer prometheus.TrackDBOperation("update")(time.Now())

	return db.Save(user).Error
}

func (s *GormStore) DeleteUser(ctx context.Context, id uint) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	defer prometheus.TrackDBOperation("delete")(time.Now())

	return db.Delete(&model.User{}, id).Error
}

func (s *GormStore) FindFarmBySlug(ctx context.Context, slug string) (*model.Farm, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	defer prometheus.TrackDBOperation("query")(time.Now())

	var farm model.Farm
	if result := db.Where("slug = ?", slug).First(&farm); result.Error != nil {
		return nil, translate(result.Error)
	}
	return &farm, nil
}

func (s *GormStore) FindFarmByID(ctx context.Context, id uint) (*model.Farm, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	defer prometheus.TrackDBOperation("query")(time.Now())

	var farm model.Farm
	if result := db.First(&farm, id); result.Error != nil {
		return nil, translate(result.Error)
	}
	return &farm, nil
}

func (s *GormStore) CreateFarm(ctx context.Context, farm *model.Farm) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	defer prometheus.TrackDBOperation("insert")(time.Now())

	if result := db.Create(farm); result.Error != nil {
		if isDuplicate(result.Error) {
			return ErrDuplicateSlug
		}
		return result.Error
	}
	return nil
}

func (s *GormStore) UpdateFarm(ctx context.Context, farm *model.Farm) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	defer prometheus.TrackDBOperation("update")(time.Now())

	return db.Save(farm).Error
}

func (s *GormStore) LinkUserToFarm(ctx context.Context, userID, farmID uint) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	defer prometheus.TrackDBOperation("update")(time.Now())

	result := db.Model(&model.User{}).Where("id = ?", userID).Update("farm_id", farmID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateEggRecord(ctx context.Context, rec *model.EggRecord) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	defer prometheus.TrackDBOperation("insert")(time.Now())

	return db.Create(rec).Error
}

func (s *GormStore) ListEggRecords(ctx context.Context, farmID uint) ([]model.EggRecord, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	defer prometheus.TrackDBOperation("query")(time.Now())

	var records []model.EggRecord
	if result := db.Where("farm_id = ?", farmID).Order("date DESC").Find(&records); result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

func (s *GormStore) CreateExpense(ctx context.Context, exp *model.Expense) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	defer prometheus.TrackDBOperation("insert")(time.Now())

	return db.Create(exp).Error
}

func (s *GormStore) ListExpenses(ctx context.Context, farmID uint) ([]model.Expense, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	defer prometheus.TrackDBOperation("query")(time.Now())

	var expenses []model.Expense
	if result := db.Where("farm_id = ?", farmID).Order("date DESC").Find(&expenses); result.Error != nil {
		return nil, result.Error
	}
	return expenses, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// pgx surfaces unique violations as 23505 in the error text.
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
