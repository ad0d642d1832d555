// backend/internal/session/store.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat-funnel/internal/models"
	"chat-funnel/pkg/apierr"
	"chat-funnel/pkg/database"
	"chat-funnel/pkg/logger"
)

var ErrNotFound = fmt.Errorf("session %w", apierr.ErrNotFound)

// Store owns every write to chat_sessions. Writes that reference an order set
// missing at write time are retried once with the reference cleared.
type Store struct {
	db     *gorm.DB
	schema database.SchemaVersion
	log    *logger.Logger
}

func NewStore(db *gorm.DB, schema database.SchemaVersion, log *logger.Logger) *Store {
	return &Store{db: db, schema: schema, log: log}
}

func (s *Store) Schema() database.SchemaVersion {
	return s.schema
}

// Upsert inserts sess or, when the id exists, overwrites the given columns.
func (s *Store) Upsert(ctx context.Context, sess *models.ChatSession, columns []string) error {
	row := s.prepare(sess)
	columns = s.writableColumns(columns)
	return s.withOrderSetFallback(ctx, row, func(r *models.ChatSession) error {
		return s.create(ctx, r, clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		})
	})
}

// Ensure creates a placeholder session unless one already exists. Concurrent
// callers for the same id are tolerated.
func (s *Store) Ensure(ctx context.Context, id string, orderSetID *string, at time.Time) error {
	at = at.UTC()
	row := &models.ChatSession{
		ID:         id,
		OrderSetID: orderSetID,
		UserInfo:   datatypes.JSON("{}"),
		StartTime:  &at,
		CreatedAt:  at,
	}
	return s.withOrderSetFallback(ctx, row, func(r *models.ChatSession) error {
		return s.create(ctx, r, clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		})
	})
}

// Update changes columns of an existing session. Missing sessions are left alone.
func (s *Store) Update(ctx context.Context, id string, values map[string]interface{}) error {
	err := s.db.WithContext(ctx).Model(&models.ChatSession{}).Where("id = ?", id).Updates(values).Error
	if err != nil && database.IsForeignKeyViolation(err) {
		if _, ok := values["order_set_id"]; ok {
			s.log.Warn("order set missing, updating session without it", "session_id", id, "order_set_id", values["order_set_id"])
			retry := make(map[string]interface{}, len(values))
			for k, v := range values {
				retry[k] = v
			}
			retry["order_set_id"] = nil
			err = s.db.WithContext(ctx).Model(&models.ChatSession{}).Where("id = ?", id).Updates(retry).Error
		}
	}
	return database.Classify(err)
}

func (s *Store) Get(ctx context.Context, id string) (*models.ChatSession, error) {
	var sess models.ChatSession
	q := s.db.WithContext(ctx)
	if s.schema == database.SchemaLegacy {
		q = q.Omit(database.OptionalSessionColumns...)
	}
	if err := q.Where("id = ?", id).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, database.Classify(err)
	}
	return &sess, nil
}

func (s *Store) create(ctx context.Context, row *models.ChatSession, conflict clause.OnConflict) error {
	q := s.db.WithContext(ctx).Clauses(conflict)
	if s.schema == database.SchemaLegacy {
		q = q.Omit(database.OptionalSessionColumns...)
	}
	return q.Create(row).Error
}

func (s *Store) withOrderSetFallback(ctx context.Context, row *models.ChatSession, write func(*models.ChatSession) error) error {
	err := write(row)
	if err == nil || row.OrderSetID == nil || !database.IsForeignKeyViolation(err) {
		return database.Classify(err)
	}
	s.log.Warn("order set missing, storing session without it", "session_id", row.ID, "order_set_id", *row.OrderSetID)
	retry := *row
	retry.OrderSetID = nil
	return database.Classify(write(&retry))
}

// prepare returns the row to write. On a legacy store the optional JSON
// columns are folded into user_info.
func (s *Store) prepare(sess *models.ChatSession) *models.ChatSession {
	row := *sess
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if len(row.UserInfo) == 0 {
		row.UserInfo = datatypes.JSON("{}")
	}
	if s.schema == database.SchemaLegacy {
		row.UserInfo = MergeIntoUserInfo(row.UserInfo, map[string]datatypes.JSON{
			"messages":        row.Messages,
			"metadata":        row.Metadata,
			"questionAnswers": row.QuestionAnswers,
		})
		row.Messages, row.Metadata, row.QuestionAnswers = nil, nil, nil
	}
	return &row
}

func (s *Store) writableColumns(columns []string) []string {
	if s.schema != database.SchemaLegacy {
		return columns
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		optional := false
		for _, o := range database.OptionalSessionColumns {
			if c == o {
				optional = true
				break
			}
		}
		if !optional {
			out = append(out, c)
		}
	}
	return out
}

// MergeIntoUserInfo adds the non-empty extras to the user_info object. A
// user_info that is not an object is kept under the "userInfo" key.
func MergeIntoUserInfo(userInfo datatypes.JSON, extras map[string]datatypes.JSON) datatypes.JSON {
	merged := map[string]json.RawMessage{}
	if len(userInfo) > 0 {
		if err := json.Unmarshal(userInfo, &merged); err != nil {
			merged = map[string]json.RawMessage{"userInfo": json.RawMessage(userInfo)}
		}
	}
	if merged == nil {
		merged = map[string]json.RawMessage{}
	}
	for k, v := range extras {
		if len(v) > 0 {
			merged[k] = json.RawMessage(v)
		}
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return userInfo
	}
	return datatypes.JSON(b)
}
