// Package store is the persistence boundary for identity, farm and business
// records. Every operation is a single-record atomic action; multi-record
// consistency (the register-then-link sequence) is the caller's
// responsibility.
package store

import (
	"context"
	"errors"

	"github.com/kevinjam/farmkeeper-sub001/internal/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when creating a user with an email
	// that is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateSlug is returned when creating a farm whose slug is
	// already taken.
	ErrDuplicateSlug = errors.New("slug already taken")
)

// Store is the credential and business-record store.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByID(ctx context.Context, id uint) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id uint) error

	FindFarmBySlug(ctx context.Context, slug string) (*model.Farm, error)
	FindFarmByID(ctx context.Context, id uint) (*model.Farm, error)
	CreateFarm(ctx context.Context, farm *model.Farm) error
	UpdateFarm(ctx context.Context, farm *model.Farm) error

	// LinkUserToFarm sets the user's farm reference, completing the
	// two-phase registration sequence.
	LinkUserToFarm(ctx context.Context, userID, farmID uint) error

	CreateEggRecord(ctx context.Context, rec *model.EggRecord) error
	ListEggRecords(ctx context.Context, farmID uint) ([]model.EggRecord, error)
	CreateExpense(ctx context.Context, exp *model.Expense) error
	ListExpenses(ctx context.Context, farmID uint) ([]model.Expense, error)
}
