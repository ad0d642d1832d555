// backend/internal/analytics/event.go
package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chat-funnel/internal/orderset"
	"chat-funnel/pkg/apierr"
)

const (
	EventOrderSetSelected = "order_set_selected"
	EventQuestionStarted  = "question_started"
	EventQuestionAnswered = "question_answered"
	EventFlowCompleted    = "question_flow_completed"
	EventFlowData         = "question_flow_data"
)

// Event is one widget event as posted to the ingestion endpoint.
type Event struct {
	EventType string          `json:"eventType"`
	SessionID FlexString      `json:"sessionId"`
	Timestamp Timestamp       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Timestamp accepts RFC 3339 strings and epoch milliseconds.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed.UTC()
				return nil
			}
		}
		return fmt.Errorf("invalid timestamp %q", s)
	}
	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("invalid timestamp %s", string(b))
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// OrNow returns the timestamp, or now when the client sent none.
func (t Timestamp) OrNow(now time.Time) time.Time {
	if t.IsZero() {
		return now.UTC()
	}
	return t.UTC()
}

// FlexString accepts a JSON string or number; numbers keep their decimal form.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*f = ""
		return nil
	}
	id, ok := orderset.NormalizeID(b)
	if !ok {
		if len(bytes.TrimSpace(b)) > 0 && bytes.TrimSpace(b)[0] == '"' {
			*f = ""
			return nil
		}
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	*f = FlexString(id)
	return nil
}

func (f FlexString) String() string { return string(f) }

// Ptr returns nil for the empty string.
func (f FlexString) Ptr() *string {
	if f == "" {
		return nil
	}
	s := string(f)
	return &s
}

// FlexInt accepts a JSON number or numeric string. Missing values stay nil.
type FlexInt struct {
	Value *int64
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		f.Value = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			f.Value = nil
			return nil
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("expected number, got %s", string(b))
	}
	v := int64(n)
	f.Value = &v
	return nil
}

// FlexFloat is FlexInt for fractional values.
type FlexFloat struct {
	Value *float64
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		f.Value = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			f.Value = nil
			return nil
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("expected number, got %s", string(b))
	}
	f.Value = &n
	return nil
}

type orderSetSelectedData struct {
	OrderSetID    FlexString        `json:"orderSetId"`
	OrderSetName  string            `json:"orderSetName"`
	Description   string            `json:"description"`
	QuestionOrder []json.RawMessage `json:"questionOrder"`
	UserInfo      json.RawMessage   `json:"userInfo"`
}

type questionData struct {
	OrderSetID    FlexString      `json:"orderSetId"`
	QuestionID    FlexString      `json:"questionId"`
	QuestionIndex FlexInt         `json:"questionIndex"`
	RawAnswer     json.RawMessage `json:"answer"`
	TimeToAnswer  FlexInt         `json:"timeToAnswer"`
}

type flowCompletedData struct {
	OrderSetID           FlexString `json:"orderSetId"`
	CompletionPercentage FlexFloat  `json:"completionPercentage"`
	TotalTime            FlexInt    `json:"totalTime"`
}

type flowQuestion struct {
	QuestionID   FlexString      `json:"questionId"`
	Answered     bool            `json:"answered"`
	RawAnswer    json.RawMessage `json:"answer"`
	TimeToAnswer FlexInt         `json:"timeToAnswer"`
	Timestamp    Timestamp       `json:"timestamp"`
}

type flowData struct {
	OrderSetID           FlexString        `json:"orderSetId"`
	QuestionOrder        []json.RawMessage `json:"questionOrder"`
	UserInfo             json.RawMessage   `json:"userInfo"`
	CompletionPercentage FlexFloat         `json:"completionPercentage"`
	TotalTime            FlexInt           `json:"totalTime"`
	Questions            []flowQuestion    `json:"questions"`
}

// answerText renders an answer as stored text. Strings are kept verbatim,
// anything else keeps its JSON form.
func answerText(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return &s
	}
	s = string(raw)
	return &s
}

func questionIDs(raw []json.RawMessage) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if id, ok := orderset.NormalizeID(item); ok {
			out = append(out, id)
		}
	}
	return out
}

func decodeData(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apierr.Validation("malformed event data: " + err.Error())
	}
	return nil
}
