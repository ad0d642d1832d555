// backend/internal/auth/repository.go
package auth

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat-funnel/internal/models"
	"chat-funnel/pkg/database"
)

var ErrOperatorNotFound = errors.New("operator not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetOperatorByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var op models.Operator
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOperatorNotFound
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &op, nil
}

func (r *Repository) CreateOperator(ctx context.Context, op *models.Operator) error {
	return database.Classify(r.db.WithContext(ctx).Create(op).Error)
}

// CreateOperatorIfMissing inserts op unless the username is already taken.
// It reports whether a row was written.
func (r *Repository) CreateOperatorIfMissing(ctx context.Context, op *models.Operator) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(op)
	if res.Error != nil {
		return false, database.Classify(res.Error)
	}
	return res.RowsAffected > 0, nil
}
