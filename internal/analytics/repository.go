// backend/internal/analytics/repository.go
package analytics

import (
	"context"

	"gorm.io/gorm"

	"chat-funnel/internal/models"
	"chat-funnel/pkg/database"
)

// Repository appends question events and drop-off points. Rows are never updated.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AppendEvent(ctx context.Context, event *models.QuestionEvent) error {
	return database.Classify(r.db.WithContext(ctx).Create(event).Error)
}

func (r *Repository) HasAnswered(ctx context.Context, sessionID, questionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.QuestionEvent{}).
		Where("session_id = ? AND question_id = ? AND event_type = ?", sessionID, questionID, models.EventAnswered).
		Count(&count).Error
	if err != nil {
		return false, database.Classify(err)
	}
	return count > 0, nil
}

// AnsweredQuestionIDs lists the distinct questions the session has answered.
func (r *Repository) AnsweredQuestionIDs(ctx context.Context, sessionID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.QuestionEvent{}).
		Distinct("question_id").
		Where("session_id = ? AND event_type = ?", sessionID, models.EventAnswered).
		Pluck("question_id", &ids).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return ids, nil
}

func (r *Repository) InsertDropoff(ctx context.Context, point *models.DropoffPoint) error {
	return database.Classify(r.db.WithContext(ctx).Create(point).Error)
}
