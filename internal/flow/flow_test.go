package flow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-funnel/internal/analytics"
	"chat-funnel/internal/funnel"
	"chat-funnel/internal/orderset"
	"chat-funnel/internal/session"
	"chat-funnel/internal/storetest"
	"chat-funnel/pkg/database"
	"chat-funnel/pkg/logger"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) Emit(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) types() []string {
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

func tickingClock() func() time.Time {
	t := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func setByID(t *testing.T, id string) orderset.Definition {
	t.Helper()
	for _, def := range WidgetOrderSets() {
		if def.ID == id {
			return def
		}
	}
	t.Fatalf("order set %s not found", id)
	return orderset.Definition{}
}

var goodAnswers = map[string]string{
	"1": "20000",
	"2": "Federal",
	"3": "tx",
	"4": "yes",
	"5": "n",
	"6": "Ada Lovelace",
	"7": "ada@example.com",
	"8": "(555) 123-4567",
}

func TestValidators(t *testing.T) {
	cat := DefaultCatalog()

	tests := []struct {
		question string
		answer   string
		want     bool
	}{
		{"1", "Over $100,000", true},
		{"1", "$12,500", true},
		{"1", "lots", false},
		{"1", "", false},
		{"2", "Federal & State", true},
		{"2", "federal", false},
		{"3", "Texas", true},
		{"3", " ca ", true},
		{"3", "ZZ", false},
		{"4", "Yes", true},
		{"4", "maybe", false},
		{"6", "Ada Lovelace", true},
		{"6", "Jean-Luc Picard", true},
		{"6", "Ada", false},
		{"6", "A Lovelace", false},
		{"6", "Ada -Lovelace", false},
		{"6", "R2 D2", false},
		{"7", "ada@example.com", true},
		{"7", "ada@example", false},
		{"8", "555-123-4567", true},
		{"8", "+1 555 123 4567", true},
		{"8", "12345", false},
	}
	for _, tt := range tests {
		q := cat[tt.question]
		assert.Equal(t, tt.want, q.Validate(tt.answer), "question %s answer %q", tt.question, tt.answer)
	}
}

func TestNormalize(t *testing.T) {
	cat := DefaultCatalog()

	assert.Equal(t, "$10,000 - $14,999", cat["1"].Normalize("12500"))
	assert.Equal(t, "Over $100,000", cat["1"].Normalize("$250,000"))
	assert.Equal(t, "Less than $7,500", cat["1"].Normalize("Less than $7,500"))
	assert.Equal(t, "lots", cat["1"].CategorizeAmount("lots"))
	assert.Equal(t, "Texas", cat["3"].Normalize("tx"))
	assert.Equal(t, "Federal", cat["2"].Normalize("Federal"))

	assert.True(t, cat["1"].TriggersFollowUp("$15,000 - $29,999"))
	assert.False(t, cat["1"].TriggersFollowUp("$10,000 - $14,999"))
	assert.False(t, cat["2"].TriggersFollowUp("Federal"))
}

func TestControllerCompleteFlow(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	ctl := NewController("s-1", rec, WithClock(tickingClock()))
	assert.Equal(t, StateIdle, ctl.State())

	_, err := ctl.Start(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	set := setByID(t, "set_4")
	require.NoError(t, ctl.Select(ctx, set))
	assert.Equal(t, StateFlowSelected, ctl.State())

	q, err := ctl.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "6", q.ID)
	assert.Equal(t, StateAskingQuestion, ctl.State())

	out, err := ctl.Answer(ctx, "Ada")
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, "Please provide your full first and last name.", out.Reply)
	assert.Equal(t, StateAskingQuestion, ctl.State())

	for i, id := range set.Questions {
		cur, ok := ctl.Current()
		require.True(t, ok)
		require.Equal(t, id, cur.ID)

		out, err = ctl.Answer(ctx, goodAnswers[id])
		require.NoError(t, err)
		require.True(t, out.Valid, "question %s", id)
		if i < len(set.Questions)-1 {
			require.NotNil(t, out.Next)
		}
		if id == "1" {
			assert.NotEmpty(t, out.FollowUp)
		}
	}
	assert.True(t, out.Done)
	assert.Equal(t, StateCompleted, ctl.State())
	assert.Equal(t, float64(100), ctl.Completion())
	assert.Equal(t, "Texas", ctl.UserInfo()["state"])
	assert.Equal(t, "$15,000 - $29,999", ctl.UserInfo()["TaxAmount"])

	_, err = ctl.Answer(ctx, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	types := rec.types()
	assert.Equal(t, analytics.EventOrderSetSelected, types[0])
	assert.Equal(t, analytics.EventFlowCompleted, types[len(types)-2])
	assert.Equal(t, analytics.EventFlowData, types[len(types)-1])

	var started, answered int
	for _, ty := range types {
		switch ty {
		case analytics.EventQuestionStarted:
			started++
		case analytics.EventQuestionAnswered:
			answered++
		}
	}
	assert.Equal(t, 8, started)
	assert.Equal(t, 8, answered)

	data, err := json.Marshal(rec.events[0].Data)
	require.NoError(t, err)
	assert.JSONEq(t, `[6,4,7,2,1,5,3,8]`, string(mustField(t, data, "questionOrder")))
}

func mustField(t *testing.T, raw []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return m[field]
}

func TestControllerAbandon(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{err: errors.New("offline")}
	ctl := NewController("s-2", rec, WithClock(tickingClock()))

	assert.ErrorIs(t, ctl.Abandon(ctx), ErrInvalidTransition)

	require.NoError(t, ctl.Select(ctx, setByID(t, "set_1")))
	_, err := ctl.Start(ctx)
	require.NoError(t, err)
	for _, id := range []string{"1", "2"} {
		out, err := ctl.Answer(ctx, goodAnswers[id])
		require.NoError(t, err)
		require.True(t, out.Valid)
	}

	require.NoError(t, ctl.Abandon(ctx))
	assert.Equal(t, StateCompleted, ctl.State())
	assert.Equal(t, 25.0, ctl.Completion())

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, analytics.EventFlowCompleted, last.EventType)
	assert.Equal(t, 25.0, last.Data.(map[string]interface{})["completionPercentage"])
}

func TestControllerUnknownQuestion(t *testing.T) {
	ctl := NewController("s-3", &recorder{})
	err := ctl.Select(context.Background(), orderset.Definition{ID: "odd", Questions: []string{"1", "99"}})
	assert.Error(t, err)
	assert.Equal(t, StateIdle, ctl.State())
}

func TestHTTPEmitterIntoIngestion(t *testing.T) {
	db := storetest.New(t)
	log := logger.Nop()
	reg := orderset.NewRegistry(db)
	require.NoError(t, reg.Seed(context.Background(), orderset.Defaults()))

	svc := analytics.NewService(analytics.NewRepository(db), session.NewStore(db, database.SchemaCurrent, log), reg, nil, log)
	h := analytics.NewHandler(svc, log, false)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analytics/event", h.TrackEvent)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	ctl := NewController("e2e-1", NewHTTPEmitter(srv.URL+"/", srv.Client()))
	require.NoError(t, ctl.Select(ctx, setByID(t, "set_1")))
	_, err := ctl.Start(ctx)
	require.NoError(t, err)
	for _, id := range []string{"1", "2", "3"} {
		_, err := ctl.Answer(ctx, goodAnswers[id])
		require.NoError(t, err)
	}
	require.NoError(t, ctl.Abandon(ctx))

	agg := funnel.NewAggregator(funnel.NewRepository(db), reg)
	drops, err := agg.Dropoffs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, drops, 1)
	assert.Equal(t, "4", drops[0].QuestionID)
	assert.Equal(t, 3, drops[0].QuestionIndex)
	assert.Equal(t, 37.5, drops[0].AvgCompletionAtDropoff)
}

func TestHTTPEmitterStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"backend unavailable"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPEmitter(srv.URL, nil).Emit(context.Background(), Event{EventType: analytics.EventQuestionStarted, SessionID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
