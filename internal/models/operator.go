// backend/internal/models/operator.go
package models

import "time"

// Operator is a dashboard login. Password holds the bcrypt hash.
type Operator struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Email     string    `json:"email"`
	Password  string    `json:"-" gorm:"not null"`
}

func (Operator) TableName() string {
	return "operators"
}
