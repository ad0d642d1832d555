// backend/internal/analytics/service.go
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"chat-funnel/internal/funnel"
	"chat-funnel/internal/models"
	"chat-funnel/internal/orderset"
	"chat-funnel/internal/session"
	"chat-funnel/pkg/apierr"
	"chat-funnel/pkg/logger"
	"chat-funnel/pkg/stream"
)

const batchConcurrency = 8

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type BatchResult struct {
	Success   bool  `json:"success"`
	Processed int   `json:"processed"`
	Errors    int64 `json:"errors"`
}

type Service struct {
	events    *Repository
	sessions  *session.Store
	orderSets *orderset.Registry
	stream    stream.Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewService(events *Repository, sessions *session.Store, orderSets *orderset.Registry, publisher stream.Publisher, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = stream.NewNoop()
	}
	return &Service{
		events:    events,
		sessions:  sessions,
		orderSets: orderSets,
		stream:    publisher,
		log:       log,
		now:       time.Now,
	}
}

// HandleEvent applies one widget event. Unknown event types are reported in
// the result rather than as an error.
func (s *Service) HandleEvent(ctx context.Context, evt Event) (Result, error) {
	if evt.EventType == "" || evt.SessionID == "" {
		return Result{}, apierr.Validation("missing required fields: eventType and sessionId")
	}
	sessionID := evt.SessionID.String()
	at := evt.Timestamp.OrNow(s.now())

	var err error
	switch evt.EventType {
	case EventOrderSetSelected:
		err = s.orderSetSelected(ctx, sessionID, at, evt.Data)
	case EventQuestionStarted:
		err = s.questionEvent(ctx, sessionID, at, models.EventStarted, evt.Data)
	case EventQuestionAnswered:
		err = s.questionEvent(ctx, sessionID, at, models.EventAnswered, evt.Data)
	case EventFlowCompleted:
		err = s.flowCompleted(ctx, sessionID, at, evt.Data)
	case EventFlowData:
		err = s.flowData(ctx, sessionID, at, evt.Data)
	default:
		s.log.Warn("unknown event type", "event_type", evt.EventType, "session_id", sessionID)
		return Result{Success: false, Message: "Unknown event type"}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", evt.EventType, err)
	}

	s.publish(ctx, sessionID, evt)
	return Result{Success: true}, nil
}

// HandleBatch applies every event independently. A failing event never stops
// the others; it is only counted.
func (s *Service) HandleBatch(ctx context.Context, raw []json.RawMessage) BatchResult {
	var failures int64
	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i := range raw {
		item := raw[i]
		g.Go(func() error {
			var evt Event
			if err := json.Unmarshal(item, &evt); err != nil {
				atomic.AddInt64(&failures, 1)
				s.log.Warn("batch event rejected", "error", err)
				return nil
			}
			if _, err := s.HandleEvent(ctx, evt); err != nil {
				atomic.AddInt64(&failures, 1)
				s.log.Error("batch event failed", "event_type", evt.EventType, "session_id", evt.SessionID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return BatchResult{Success: true, Processed: len(raw), Errors: failures}
}

func (s *Service) orderSetSelected(ctx context.Context, sessionID string, at time.Time, raw json.RawMessage) error {
	var d orderSetSelectedData
	if err := decodeData(raw, &d); err != nil {
		return err
	}

	orderSetID := d.OrderSetID.Ptr()
	if orderSetID != nil {
		if err := s.synthesizeOrderSet(ctx, d); err != nil {
			return err
		}
	}

	return s.sessions.Upsert(ctx, &models.ChatSession{
		ID:         sessionID,
		OrderSetID: orderSetID,
		UserInfo:   jsonOrEmpty(d.UserInfo),
		StartTime:  &at,
		CreatedAt:  at,
	}, []string{"order_set_id", "user_info", "start_time"})
}

// synthesizeOrderSet records a minimal order set for an id the catalog has
// not seen, so the session write does not need the null fallback.
func (s *Service) synthesizeOrderSet(ctx context.Context, d orderSetSelectedData) error {
	_, err := s.orderSets.Resolve(ctx, d.OrderSetID.String())
	if err == nil {
		return nil
	}
	if !errors.Is(err, orderset.ErrNotFound) {
		return err
	}
	def := orderset.Definition{
		ID:          d.OrderSetID.String(),
		Name:        d.OrderSetName,
		Description: d.Description,
	}
	if len(d.QuestionOrder) > 0 {
		def.Questions = questionIDs(d.QuestionOrder)
	}
	if err := s.orderSets.EnsureExists(ctx, def); err != nil {
		// the session write falls back to a null order set
		s.log.Warn("could not synthesize order set", "order_set_id", def.ID, "error", err)
		return nil
	}
	s.log.Info("synthesized order set", "order_set_id", def.ID)
	return nil
}

func (s *Service) questionEvent(ctx context.Context, sessionID string, at time.Time, eventType string, raw json.RawMessage) error {
	var d questionData
	if err := decodeData(raw, &d); err != nil {
		return err
	}
	if d.QuestionID == "" {
		return apierr.Validation("missing questionId")
	}

	// The event row does not reference the session, so it is kept even when
	// the placeholder session cannot be written.
	if err := s.sessions.Ensure(ctx, sessionID, d.OrderSetID.Ptr(), at); err != nil {
		s.log.Warn("ensure session for question event", "session_id", sessionID, "event_type", eventType, "error", err)
	}

	row := &models.QuestionEvent{
		SessionID:     sessionID,
		OrderSetID:    d.OrderSetID.Ptr(),
		QuestionID:    d.QuestionID.String(),
		QuestionIndex: intPtr(d.QuestionIndex.Value),
		EventType:     eventType,
		Timestamp:     at,
		CreatedAt:     at,
	}
	if eventType == models.EventAnswered {
		row.Answer = answerText(d.RawAnswer)
		row.TimeToAnswerMs = d.TimeToAnswer.Value
	}
	return s.events.AppendEvent(ctx, row)
}

func (s *Service) flowCompleted(ctx context.Context, sessionID string, at time.Time, raw json.RawMessage) error {
	var d flowCompletedData
	if err := decodeData(raw, &d); err != nil {
		return err
	}

	err := s.sessions.Update(ctx, sessionID, map[string]interface{}{
		"end_time":              at,
		"completion_percentage": d.CompletionPercentage.Value,
		"total_time_ms":         d.TotalTime.Value,
	})
	if err != nil {
		return err
	}

	if d.CompletionPercentage.Value != nil && *d.CompletionPercentage.Value < 100 {
		return s.recordDropoff(ctx, sessionID, d.OrderSetID.Ptr(), *d.CompletionPercentage.Value, at)
	}
	return nil
}

// recordDropoff persists where an incomplete flow stopped, using the same
// first-unanswered-position rule as the dashboard.
func (s *Service) recordDropoff(ctx context.Context, sessionID string, reported *string, completion float64, at time.Time) error {
	orderSetID := reported
	sess, err := s.sessions.Get(ctx, sessionID)
	switch {
	case err == nil:
		if sess.OrderSetID != nil {
			orderSetID = sess.OrderSetID
		}
	case !errors.Is(err, session.ErrNotFound):
		return err
	}
	if orderSetID == nil {
		return nil
	}

	def, err := s.orderSets.Resolve(ctx, *orderSetID)
	if errors.Is(err, orderset.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !def.Decoded {
		return nil
	}

	answered, err := s.events.AnsweredQuestionIDs(ctx, sessionID)
	if err != nil {
		return err
	}
	idx := funnel.FirstGap(def.Questions, answered)
	if idx < 0 {
		return nil
	}
	return s.events.InsertDropoff(ctx, &models.DropoffPoint{
		SessionID:           sessionID,
		OrderSetID:          orderSetID,
		QuestionID:          def.Questions[idx],
		QuestionIndex:       idx,
		CompletionAtDropoff: completion,
		Timestamp:           at,
		CreatedAt:           at,
	})
}

// flowData is the end-of-flow sync. Answers already recorded incrementally
// are skipped so they are not stored twice.
func (s *Service) flowData(ctx context.Context, sessionID string, at time.Time, raw json.RawMessage) error {
	var d flowData
	if err := decodeData(raw, &d); err != nil {
		return err
	}
	order := questionIDs(d.QuestionOrder)

	err := s.sessions.Upsert(ctx, &models.ChatSession{
		ID:                   sessionID,
		OrderSetID:           d.OrderSetID.Ptr(),
		UserInfo:             jsonOrEmpty(d.UserInfo),
		EndTime:              &at,
		CompletionPercentage: d.CompletionPercentage.Value,
		TotalTimeMs:          d.TotalTime.Value,
		CreatedAt:            at,
	}, []string{"order_set_id", "user_info", "end_time", "completion_percentage", "total_time_ms"})
	if err != nil {
		return err
	}

	for _, q := range d.Questions {
		if !q.Answered || q.QuestionID == "" {
			continue
		}
		questionID := q.QuestionID.String()
		exists, err := s.events.HasAnswered(ctx, sessionID, questionID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		var index *int
		for i, id := range order {
			if id == questionID {
				index = &i
				break
			}
		}
		err = s.events.AppendEvent(ctx, &models.QuestionEvent{
			SessionID:      sessionID,
			OrderSetID:     d.OrderSetID.Ptr(),
			QuestionID:     questionID,
			QuestionIndex:  index,
			EventType:      models.EventAnswered,
			Answer:         answerText(q.RawAnswer),
			TimeToAnswerMs: q.TimeToAnswer.Value,
			Timestamp:      q.Timestamp.OrNow(at),
			CreatedAt:      at,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, sessionID string, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		s.log.Warn("encode event for stream", "error", err)
		return
	}
	if err := s.stream.Publish(ctx, sessionID, payload); err != nil {
		s.log.Warn("publish event to stream", "event_type", evt.EventType, "session_id", sessionID, "error", err)
	}
}

func jsonOrEmpty(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 || string(raw) == "null" {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}
