package model

import (
	"time"

	"gorm.io/gorm"
)

// EggRecord is a daily egg collection entry scoped to one farm.
type EggRecord struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	FarmID    uint           `json:"-" gorm:"index;not null"`
	Quantity  int            `json:"quantity" gorm:"not null"`
	Damaged   int            `json:"damaged" gorm:"default:0"`
	Date      time.Time      `json:"date"`
	Note      string         `json:"note,omitempty" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Expense is a finance entry scoped to one farm. Amounts are stored in the
// smallest currency unit of the farm's configured currency.
type Expense struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	FarmID    uint           `json:"-" gorm:"index;not null"`
	Amount    int64          `json:"amount" gorm:"not null"`
	Category  string         `json:"category" gorm:"type:varchar(50)"`
	Date      time.Time      `json:"date"`
	Note      string         `json:"note,omitempty" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
