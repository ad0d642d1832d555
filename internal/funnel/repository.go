// backend/internal/funnel/repository.go
package funnel

import (
	"context"
	"time"

	"gorm.io/gorm"

	"chat-funnel/internal/models"
	"chat-funnel/pkg/database"
)

// SessionProgress is one in-window session with its distinct answered count.
type SessionProgress struct {
	SessionID     string
	OrderSetID    *string
	TotalTimeMs   *int64
	AnsweredCount int64
}

type AnsweredQuestion struct {
	SessionID  string
	QuestionID string
}

type QuestionEventRow struct {
	OrderSetID      *string
	QuestionID      string
	QuestionIndex   *int
	StartedCount    int64
	AnsweredCount   int64
	AvgTimeToAnswer *float64
}

// Store is the read side the aggregator needs. Every method filters both
// sessions and events by the same since value.
type Store interface {
	SessionProgress(ctx context.Context, since time.Time) ([]SessionProgress, error)
	AnsweredQuestions(ctx context.Context, since time.Time) ([]AnsweredQuestion, error)
	QuestionEventStats(ctx context.Context, since time.Time) ([]QuestionEventRow, error)
	CountQuestionEvents(ctx context.Context, since time.Time) (int64, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SessionProgress(ctx context.Context, since time.Time) ([]SessionProgress, error) {
	var rows []SessionProgress
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			cs.id AS session_id,
			cs.order_set_id,
			cs.total_time_ms,
			COUNT(DISTINCT CASE WHEN qe.event_type = ? THEN qe.question_id END) AS answered_count
		FROM chat_sessions cs
		LEFT JOIN question_events qe ON qe.session_id = cs.id AND qe.created_at >= ?
		WHERE cs.created_at >= ?
		GROUP BY cs.id, cs.order_set_id, cs.total_time_ms
		ORDER BY cs.id`,
		models.EventAnswered, since.UTC(), since.UTC(),
	).Scan(&rows).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return rows, nil
}

func (r *Repository) AnsweredQuestions(ctx context.Context, since time.Time) ([]AnsweredQuestion, error) {
	var rows []AnsweredQuestion
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT qe.session_id, qe.question_id
		FROM question_events qe
		JOIN chat_sessions cs ON cs.id = qe.session_id
		WHERE qe.event_type = ? AND qe.created_at >= ? AND cs.created_at >= ?`,
		models.EventAnswered, since.UTC(), since.UTC(),
	).Scan(&rows).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return rows, nil
}

func (r *Repository) QuestionEventStats(ctx context.Context, since time.Time) ([]QuestionEventRow, error) {
	var rows []QuestionEventRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			order_set_id,
			question_id,
			question_index,
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END) AS started_count,
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END) AS answered_count,
			AVG(CASE WHEN event_type = ? THEN time_to_answer_ms END) AS avg_time_to_answer
		FROM question_events
		WHERE created_at >= ?
		GROUP BY order_set_id, question_id, question_index`,
		models.EventStarted, models.EventAnswered, models.EventAnswered, since.UTC(),
	).Scan(&rows).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return rows, nil
}

func (r *Repository) CountQuestionEvents(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.QuestionEvent{}).
		Where("created_at >= ?", since.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, database.Classify(err)
	}
	return count, nil
}
