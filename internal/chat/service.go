// backend/internal/chat/service.go
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"chat-funnel/internal/analytics"
	"chat-funnel/internal/models"
	"chat-funnel/internal/session"
	"chat-funnel/pkg/apierr"
	"chat-funnel/pkg/logger"
)

var submitColumns = []string{
	"order_set_id", "user_info", "start_time", "end_time", "completion_percentage",
	"total_time_ms", "messages", "metadata", "question_answers",
}

// Conversation is the full transcript the widget posts when a chat ends.
type Conversation struct {
	SessionID            analytics.FlexString `json:"sessionId"`
	StartTime            analytics.Timestamp  `json:"startTime"`
	EndTime              analytics.Timestamp  `json:"endTime"`
	Messages             json.RawMessage      `json:"messages"`
	UserInfo             json.RawMessage      `json:"userInfo"`
	Metadata             json.RawMessage      `json:"metadata"`
	QuestionAnswers      json.RawMessage      `json:"questionAnswers"`
	OrderSetID           analytics.FlexString `json:"orderSetId"`
	CompletionPercentage analytics.FlexFloat  `json:"completionPercentage"`
	TotalTime            analytics.FlexInt    `json:"totalTime"`
	Duration             struct {
		Milliseconds analytics.FlexInt `json:"milliseconds"`
	} `json:"duration"`
}

type SubmitResult struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type Service struct {
	sessions *session.Store
	log      *logger.Logger
	now      func() time.Time
}

func NewService(sessions *session.Store, log *logger.Logger) *Service {
	return &Service{sessions: sessions, log: log, now: time.Now}
}

// Store archives a conversation, creating or overwriting its session row.
func (s *Service) Store(ctx context.Context, c Conversation) (*SubmitResult, error) {
	if c.SessionID == "" {
		return nil, apierr.Validation("sessionId is required")
	}

	totalTime := c.TotalTime.Value
	if totalTime == nil {
		totalTime = c.Duration.Milliseconds.Value
	}

	row := &models.ChatSession{
		ID:                   c.SessionID.String(),
		OrderSetID:           c.OrderSetID.Ptr(),
		UserInfo:             userInfoJSON(c.UserInfo),
		StartTime:            timePtr(c.StartTime),
		EndTime:              timePtr(c.EndTime),
		CompletionPercentage: c.CompletionPercentage.Value,
		TotalTimeMs:          totalTime,
		Messages:             jsonOr(c.Messages, "[]"),
		Metadata:             jsonOr(c.Metadata, "{}"),
		QuestionAnswers:      jsonOr(c.QuestionAnswers, "{}"),
		CreatedAt:            s.now().UTC(),
	}
	if err := s.sessions.Upsert(ctx, row, submitColumns); err != nil {
		return nil, err
	}
	s.log.Debug("conversation stored", "session_id", row.ID, "schema", s.sessions.Schema().String())

	return &SubmitResult{
		Success:   true,
		SessionID: row.ID,
		Message:   "Conversation stored successfully",
	}, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	return s.sessions.Get(ctx, sessionID)
}

// userInfoJSON accepts an object or a string that itself holds JSON.
func userInfoJSON(raw json.RawMessage) datatypes.JSON {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err == nil && json.Valid([]byte(inner)) {
			return datatypes.JSON(inner)
		}
	}
	return jsonOr(raw, "{}")
}

func jsonOr(raw json.RawMessage, def string) datatypes.JSON {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return datatypes.JSON(def)
	}
	return datatypes.JSON(raw)
}

func timePtr(t analytics.Timestamp) *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}
