// backend/internal/models/dto.go
package models

// Report rows returned by the dashboard. Slices are always non-nil so they
// encode as [] rather than null.

type OverviewStats struct {
	TotalSessions int64   `json:"totalSessions"`
	AvgCompletion float64 `json:"avgCompletion"`
	AvgTime       float64 `json:"avgTime"`
	TotalEvents   int64   `json:"totalEvents"`
	TotalDropoffs int64   `json:"totalDropoffs"`
}

type OrderSetStat struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Description           string  `json:"description"`
	TotalSessions         int64   `json:"totalSessions"`
	AvgCompletion         float64 `json:"avgCompletion"`
	HighCompletionCount   int64   `json:"highCompletionCount"`
	MediumCompletionCount int64   `json:"mediumCompletionCount"`
	LowCompletionCount    int64   `json:"lowCompletionCount"`
	AvgTimeMs             float64 `json:"avgTimeMs"`
}

type DropoffStat struct {
	OrderSetID             *string `json:"orderSetId"`
	QuestionID             string  `json:"questionId"`
	QuestionIndex          int     `json:"questionIndex"`
	DropoffCount           int64   `json:"dropoffCount"`
	AvgCompletionAtDropoff float64 `json:"avgCompletionAtDropoff"`
}

type QuestionStat struct {
	OrderSetID      *string `json:"orderSetId"`
	QuestionID      string  `json:"questionId"`
	QuestionIndex   *int    `json:"questionIndex"`
	StartedCount    int64   `json:"startedCount"`
	AnsweredCount   int64   `json:"answeredCount"`
	AvgTimeToAnswer float64 `json:"avgTimeToAnswer"`
	AnswerRate      float64 `json:"answerRate"`
}

type CompletionRates struct {
	High   int64 `json:"high"`
	Medium int64 `json:"medium"`
	Low    int64 `json:"low"`
}

// Report bundles every dashboard report for one window.
type Report struct {
	Days            int             `json:"days"`
	Overview        OverviewStats   `json:"overview"`
	OrderSets       []OrderSetStat  `json:"orderSets"`
	Dropoffs        []DropoffStat   `json:"dropoffs"`
	Questions       []QuestionStat  `json:"questions"`
	CompletionRates CompletionRates `json:"completionRates"`
}
