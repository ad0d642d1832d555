// backend/internal/models/funnel.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventStarted  = "started"
	EventAnswered = "answered"
)

type OrderSet struct {
	ID            string         `json:"id" gorm:"primaryKey"`
	Name          string         `json:"name" gorm:"not null"`
	Description   string         `json:"description"`
	QuestionOrder datatypes.JSON `json:"questionOrder" gorm:"not null"`
	Active        bool           `json:"active" gorm:"default:true"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func (OrderSet) TableName() string {
	return "order_sets"
}

// ChatSession is one funnel attempt. CompletionPercentage is whatever the
// client reported last and is never used for reporting.
type ChatSession struct {
	ID                   string         `json:"sessionId" gorm:"primaryKey"`
	OrderSetID           *string        `json:"orderSetId" gorm:"index"`
	OrderSet             *OrderSet      `json:"-" gorm:"foreignKey:OrderSetID;constraint:OnDelete:SET NULL"`
	UserInfo             datatypes.JSON `json:"userInfo"`
	StartTime            *time.Time     `json:"startTime"`
	EndTime              *time.Time     `json:"endTime"`
	CompletionPercentage *float64       `json:"completionPercentage"`
	TotalTimeMs          *int64         `json:"totalTimeMs"`
	Messages             datatypes.JSON `json:"messages,omitempty"`
	Metadata             datatypes.JSON `json:"metadata,omitempty"`
	QuestionAnswers      datatypes.JSON `json:"questionAnswers,omitempty"`
	CreatedAt            time.Time      `json:"createdAt" gorm:"index"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// QuestionEvent is append-only history; rows are never updated.
type QuestionEvent struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	SessionID      string    `json:"sessionId" gorm:"index;not null"`
	OrderSetID     *string   `json:"orderSetId"`
	QuestionID     string    `json:"questionId" gorm:"not null"`
	QuestionIndex  *int      `json:"questionIndex"`
	EventType      string    `json:"eventType" gorm:"not null"`
	Answer         *string   `json:"answer"`
	TimeToAnswerMs *int64    `json:"timeToAnswerMs"`
	Timestamp      time.Time `json:"timestamp"`
	CreatedAt      time.Time `json:"createdAt" gorm:"index"`
}

func (QuestionEvent) TableName() string {
	return "question_events"
}

type DropoffPoint struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	SessionID           string    `json:"sessionId" gorm:"index;not null"`
	OrderSetID          *string   `json:"orderSetId"`
	QuestionID          string    `json:"questionId"`
	QuestionIndex       int       `json:"questionIndex"`
	CompletionAtDropoff float64   `json:"completionAtDropoff"`
	Timestamp           time.Time `json:"timestamp"`
	CreatedAt           time.Time `json:"createdAt" gorm:"index"`
}

func (DropoffPoint) TableName() string {
	return "dropoff_points"
}

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&OrderSet{},
		&ChatSession{},
		&QuestionEvent{},
		&DropoffPoint{},
		&Operator{},
	}
}
