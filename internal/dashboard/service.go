// backend/internal/dashboard/service.go
package dashboard

import (
	"context"

	"gorm.io/gorm"

	"chat-funnel/internal/funnel"
	"chat-funnel/internal/models"
	"chat-funnel/pkg/database"
	"chat-funnel/pkg/logger"
)

// Reports is the read side the dashboard renders.
type Reports interface {
	Overview(ctx context.Context, days int) (models.OverviewStats, error)
	OrderSetStats(ctx context.Context, days int) ([]models.OrderSetStat, error)
	Dropoffs(ctx context.Context, days int) ([]models.DropoffStat, error)
	QuestionStats(ctx context.Context, days int) ([]models.QuestionStat, error)
	CompletionRates(ctx context.Context, days int) (models.CompletionRates, error)
	Report(ctx context.Context, days int) (*models.Report, error)
}

var _ Reports = (*funnel.Aggregator)(nil)

type Service struct {
	Reports
	db  *gorm.DB
	log *logger.Logger
}

func NewService(reports Reports, db *gorm.DB, log *logger.Logger) *Service {
	return &Service{Reports: reports, db: db, log: log}
}

// ClearData removes every session, event and drop-off point in one
// transaction. Order sets are kept.
func (s *Service) ClearData(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.DropoffPoint{}, &models.QuestionEvent{}, &models.ChatSession{}} {
			res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model)
			if res.Error != nil {
				return res.Error
			}
			s.log.Debug("cleared table", "table", tableName(tx, model), "rows", res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return database.Classify(err)
	}
	s.log.Warn("analytics data cleared")
	return nil
}

func tableName(db *gorm.DB, model interface{}) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return ""
	}
	return stmt.Schema.Table
}
