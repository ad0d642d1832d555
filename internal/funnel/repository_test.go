package funnel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chat-funnel/internal/models"
	"chat-funnel/internal/orderset"
	"chat-funnel/internal/storetest"
)

type fixture struct {
	t   *testing.T
	db  *gorm.DB
	now time.Time
}

func (f fixture) session(id string, orderSetID *string, age time.Duration, totalMs *int64) {
	f.t.Helper()
	created := f.now.Add(-age).UTC()
	require.NoError(f.t, f.db.Create(&models.ChatSession{
		ID:          id,
		OrderSetID:  orderSetID,
		TotalTimeMs: totalMs,
		StartTime:   &created,
		CreatedAt:   created,
	}).Error)
}

func (f fixture) event(sessionID string, orderSetID *string, questionID string, index int, eventType string, age time.Duration, ms *int64) {
	f.t.Helper()
	at := f.now.Add(-age).UTC()
	require.NoError(f.t, f.db.Create(&models.QuestionEvent{
		SessionID:      sessionID,
		OrderSetID:     orderSetID,
		QuestionID:     questionID,
		QuestionIndex:  &index,
		EventType:      eventType,
		TimeToAnswerMs: ms,
		Timestamp:      at,
		CreatedAt:      at,
	}).Error)
}

func newFixture(t *testing.T) (fixture, *Aggregator) {
	db := storetest.New(t)
	reg := orderset.NewRegistry(db)
	require.NoError(t, reg.EnsureExists(context.Background(), orderset.Definition{ID: "O1", Name: "Three step", Questions: []string{"1", "2", "3"}}))

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	agg := NewAggregator(NewRepository(db), reg).WithClock(func() time.Time { return now })
	return fixture{t: t, db: db, now: now}, agg
}

func TestAggregatorAgainstStore(t *testing.T) {
	ctx := context.Background()
	f, agg := newFixture(t)
	o1 := storetest.StrPtr("O1")
	hour := time.Hour

	// S1 skips question 2
	f.session("S1", o1, 2*hour, storetest.Int64Ptr(4000))
	f.event("S1", o1, "1", 0, models.EventStarted, 2*hour, nil)
	f.event("S1", o1, "1", 0, models.EventAnswered, 2*hour, storetest.Int64Ptr(1000))
	f.event("S1", o1, "2", 1, models.EventStarted, 2*hour, nil)
	f.event("S1", o1, "3", 2, models.EventStarted, 2*hour, nil)
	f.event("S1", o1, "3", 2, models.EventAnswered, 2*hour, storetest.Int64Ptr(3000))

	// S2 completes, with question 1 answered twice
	f.session("S2", o1, hour, storetest.Int64Ptr(8000))
	for i, q := range []string{"1", "2", "3"} {
		f.event("S2", o1, q, i, models.EventAnswered, hour, nil)
	}
	f.event("S2", o1, "1", 0, models.EventAnswered, hour, nil)

	// unassigned session with nothing answered
	f.session("S3", nil, hour, nil)

	// outside the 7 day window entirely
	f.session("OLD", o1, 10*24*hour, nil)
	f.event("OLD", o1, "1", 0, models.EventAnswered, 10*24*hour, nil)

	overview, err := agg.Overview(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), overview.TotalSessions)
	assert.Equal(t, int64(9), overview.TotalEvents)
	// S1 66.67, S2 100, S3 0
	assert.Equal(t, 55.56, overview.AvgCompletion)
	assert.Equal(t, float64(6000), overview.AvgTime)
	assert.Equal(t, int64(2), overview.TotalDropoffs)

	drops, err := agg.Dropoffs(ctx, 7)
	require.NoError(t, err)
	require.Len(t, drops, 1)
	assert.Equal(t, "2", drops[0].QuestionID)
	assert.Equal(t, 1, drops[0].QuestionIndex)

	sets, err := agg.OrderSetStats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "O1", sets[0].ID)
	assert.Equal(t, int64(2), sets[0].TotalSessions)
	assert.Equal(t, int64(1), sets[0].HighCompletionCount)
	assert.Equal(t, int64(1), sets[0].MediumCompletionCount)
	assert.Equal(t, UnassignedID, sets[1].ID)

	questions, err := agg.QuestionStats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	q1 := questions[0]
	assert.Equal(t, "1", q1.QuestionID)
	assert.Equal(t, int64(1), q1.StartedCount)
	assert.Equal(t, int64(3), q1.AnsweredCount)
	assert.Equal(t, float64(1000), q1.AvgTimeToAnswer)
	assert.Equal(t, float64(300), q1.AnswerRate)

	// widening the window picks up the old session
	overview, err = agg.Overview(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(4), overview.TotalSessions)
}

func TestDuplicateAnswersCountOnce(t *testing.T) {
	ctx := context.Background()
	f, agg := newFixture(t)
	o1 := storetest.StrPtr("O1")

	f.session("S1", o1, time.Minute, nil)
	f.event("S1", o1, "1", 0, models.EventAnswered, time.Minute, nil)

	before, err := agg.Overview(ctx, 30)
	require.NoError(t, err)

	f.event("S1", o1, "1", 0, models.EventAnswered, time.Minute, nil)

	after, err := agg.Overview(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, before.AvgCompletion, after.AvgCompletion)
	assert.Equal(t, before.TotalEvents+1, after.TotalEvents)
}

func TestTodayWindowStartsAtMidnight(t *testing.T) {
	ctx := context.Background()
	f, agg := newFixture(t)

	// noon now; 11h ago is today, 13h ago is yesterday
	f.session("today", nil, 11*time.Hour, nil)
	f.session("yesterday", nil, 13*time.Hour, nil)

	overview, err := agg.Overview(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), overview.TotalSessions)
}
