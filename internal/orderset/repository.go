// backend/internal/orderset/repository.go
package orderset

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat-funnel/internal/models"
	"chat-funnel/pkg/apierr"
	"chat-funnel/pkg/database"
)

var ErrNotFound = fmt.Errorf("order set %w", apierr.ErrNotFound)

// Registry resolves order set ids to their question order.
type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) Resolve(ctx context.Context, id string) (*Definition, error) {
	var row models.OrderSet
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, database.Classify(err)
	}
	def := FromModel(row)
	return &def, nil
}

// ResolveMany looks up several ids in one query. Unknown ids are absent from the result.
func (r *Registry) ResolveMany(ctx context.Context, ids []string) (map[string]Definition, error) {
	out := make(map[string]Definition, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.OrderSet
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, database.Classify(err)
	}
	for _, row := range rows {
		out[row.ID] = FromModel(row)
	}
	return out, nil
}

// EnsureExists inserts def unless a row with the same id is already present.
func (r *Registry) EnsureExists(ctx context.Context, def Definition) error {
	row := def.ToModel()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&row).Error
	return database.Classify(err)
}

func (r *Registry) Seed(ctx context.Context, defs []Definition) error {
	for _, def := range defs {
		if err := r.EnsureExists(ctx, def); err != nil {
			return fmt.Errorf("seed order set %s: %w", def.ID, err)
		}
	}
	return nil
}

// List returns the active order sets ordered by id.
func (r *Registry) List(ctx context.Context) ([]Definition, error) {
	var rows []models.OrderSet
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, database.Classify(err)
	}
	out := make([]Definition, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}
