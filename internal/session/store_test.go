package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"chat-funnel/internal/models"
	"chat-funnel/internal/storetest"
	"chat-funnel/pkg/database"
	"chat-funnel/pkg/logger"
)

var allColumns = []string{"order_set_id", "user_info", "start_time", "end_time", "completion_percentage", "total_time_ms", "messages", "metadata", "question_answers"}

func TestUpsertFallsBackToNullOrderSet(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(t)
	store := NewStore(db, database.SchemaCurrent, logger.Nop())

	ghost := "ghost"
	require.NoError(t, store.Upsert(ctx, &models.ChatSession{ID: "s1", OrderSetID: &ghost}, allColumns))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got.OrderSetID)
	assert.JSONEq(t, `{}`, string(got.UserInfo))
}

func TestUpsertUpdatesExistingRow(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(t)
	require.NoError(t, db.Create(&models.OrderSet{ID: "set_1", Name: "Standard", QuestionOrder: datatypes.JSON(`[1,2]`)}).Error)
	store := NewStore(db, database.SchemaCurrent, logger.Nop())

	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, &models.ChatSession{ID: "s1", CreatedAt: created}, allColumns))

	set := "set_1"
	require.NoError(t, store.Upsert(ctx, &models.ChatSession{
		ID:         "s1",
		OrderSetID: &set,
		UserInfo:   datatypes.JSON(`{"name":"Ada"}`),
		Messages:   datatypes.JSON(`[{"text":"hi"}]`),
		CreatedAt:  created.Add(time.Hour),
	}, allColumns))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.OrderSetID)
	assert.Equal(t, "set_1", *got.OrderSetID)
	assert.JSONEq(t, `{"name":"Ada"}`, string(got.UserInfo))
	assert.JSONEq(t, `[{"text":"hi"}]`, string(got.Messages))
	// created_at is not among the updated columns
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(t)
	store := NewStore(db, database.SchemaCurrent, logger.Nop())
	at := time.Now()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Ensure(ctx, "racy", nil, at)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.ChatSession{}).Where("id = ?", "racy").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	ghost := "ghost"
	require.NoError(t, store.Ensure(ctx, "orphan", &ghost, at))
	got, err := store.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Nil(t, got.OrderSetID)
}

func TestUpdateFallsBackToNullOrderSet(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(t)
	store := NewStore(db, database.SchemaCurrent, logger.Nop())
	require.NoError(t, store.Ensure(ctx, "s1", nil, time.Now()))

	end := time.Now().UTC()
	require.NoError(t, store.Update(ctx, "s1", map[string]interface{}{"order_set_id": "ghost", "end_time": end}))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got.OrderSetID)
	require.NotNil(t, got.EndTime)
}

func TestGetMissing(t *testing.T) {
	store := NewStore(storetest.New(t), database.SchemaCurrent, logger.Nop())
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

type legacyChatSession struct {
	ID                   string `gorm:"primaryKey"`
	OrderSetID           *string
	UserInfo             datatypes.JSON
	StartTime            *time.Time
	EndTime              *time.Time
	CompletionPercentage *float64
	TotalTimeMs          *int64
	CreatedAt            time.Time
}

func (legacyChatSession) TableName() string { return "chat_sessions" }

func TestLegacySchemaMergesIntoUserInfo(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open("file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, &models.OrderSet{}, &legacyChatSession{}))
	require.Equal(t, database.SchemaLegacy, database.ProbeSchema(db))

	store := NewStore(db, database.ProbeSchema(db), logger.Nop())
	require.NoError(t, store.Upsert(ctx, &models.ChatSession{
		ID:              "s1",
		UserInfo:        datatypes.JSON(`{"email":"a@b.co"}`),
		Messages:        datatypes.JSON(`["hello"]`),
		QuestionAnswers: datatypes.JSON(`{"1":"Federal"}`),
	}, allColumns))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	var info map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got.UserInfo, &info))
	assert.JSONEq(t, `"a@b.co"`, string(info["email"]))
	assert.JSONEq(t, `["hello"]`, string(info["messages"]))
	assert.JSONEq(t, `{"1":"Federal"}`, string(info["questionAnswers"]))
	assert.NotContains(t, info, "metadata")
}

func TestMergeIntoUserInfo(t *testing.T) {
	out := MergeIntoUserInfo(datatypes.JSON(`"plain"`), map[string]datatypes.JSON{"metadata": datatypes.JSON(`{"v":1}`)})
	assert.JSONEq(t, `{"userInfo":"plain","metadata":{"v":1}}`, string(out))

	out = MergeIntoUserInfo(datatypes.JSON(`null`), map[string]datatypes.JSON{"messages": nil})
	assert.JSONEq(t, `{}`, string(out))
}
