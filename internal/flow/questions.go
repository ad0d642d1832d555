// backend/internal/flow/questions.go
package flow

import (
	"math"

	"chat-funnel/internal/orderset"
)

type Kind string

const (
	KindAmount         Kind = "amount"
	KindText           Kind = "text"
	KindYesNo          Kind = "yesno"
	KindMultipleChoice Kind = "multiple_choice"
)

// Check selects the field validator applied before the kind's own rule.
type Check string

const (
	CheckNone     Check = ""
	CheckFullName Check = "full_name"
	CheckEmail    Check = "email"
	CheckPhone    Check = "phone"
	CheckState    Check = "state"
)

type AmountRange struct {
	Min   float64
	Max   float64
	Label string
}

type FollowUp struct {
	Above   float64
	Message string
}

type Question struct {
	ID             string
	Text           string
	Kind           Kind
	Check          Check
	Required       bool
	APIField       string
	Options        []string
	QuickResponses []string
	AmountRanges   []AmountRange
	MinAmount      float64
	MaxLength      int
	FollowUp       *FollowUp
	InvalidMessage string
}

const defaultInvalidMessage = "I didn't understand that. Could you please try again?"

// Catalog maps question ids to their definitions.
type Catalog map[string]Question

var amountRanges = []AmountRange{
	{Min: 0, Max: 7499, Label: "Less than $7,500"},
	{Min: 7500, Max: 9999, Label: "$7,500 - $9,999"},
	{Min: 10000, Max: 14999, Label: "$10,000 - $14,999"},
	{Min: 15000, Max: 29999, Label: "$15,000 - $29,999"},
	{Min: 30000, Max: 49999, Label: "$30,000 - $49,999"},
	{Min: 50000, Max: 74999, Label: "$50,000 - $74,999"},
	{Min: 75000, Max: 99999, Label: "$75,000 - $99,999"},
	{Min: 100000, Max: math.Inf(1), Label: "Over $100,000"},
}

var states = []string{
	"Alabama", "Alaska", "Arizona", "Arkansas", "California",
	"Colorado", "Connecticut", "Delaware", "Florida", "Georgia",
	"Hawaii", "Idaho", "Illinois", "Indiana", "Iowa",
	"Kansas", "Kentucky", "Louisiana", "Maine", "Maryland",
	"Massachusetts", "Michigan", "Minnesota", "Mississippi", "Missouri",
	"Montana", "Nebraska", "Nevada", "New Hampshire", "New Jersey",
	"New Mexico", "New York", "North Carolina", "North Dakota", "Ohio",
	"Oklahoma", "Oregon", "Pennsylvania", "Rhode Island", "South Carolina",
	"South Dakota", "Tennessee", "Texas", "Utah", "Vermont",
	"Virginia", "Washington", "West Virginia", "Wisconsin", "Wyoming",
}

var stateCodes = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "FL": "Florida", "GA": "Georgia",
	"HI": "Hawaii", "ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi", "MO": "Missouri",
	"MT": "Montana", "NE": "Nebraska", "NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey",
	"NM": "New Mexico", "NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont",
	"VA": "Virginia", "WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

// DefaultCatalog returns the eight questions the chat widget asks.
func DefaultCatalog() Catalog {
	quick := make([]string, len(amountRanges))
	for i, r := range amountRanges {
		quick[i] = r.Label
	}

	return Catalog{
		"1": {
			ID:             "1",
			Text:           "Approximately how much do you owe in taxes?",
			Kind:           KindAmount,
			Required:       true,
			APIField:       "TaxAmount",
			QuickResponses: quick,
			AmountRanges:   amountRanges,
			FollowUp: &FollowUp{
				Above:   10000,
				Message: "We specialize in cases over $10,000. Let me help you explore your options.",
			},
		},
		"2": {
			ID:       "2",
			Text:     "What type of tax debt do you have?",
			Kind:     KindMultipleChoice,
			Required: true,
			APIField: "TaxType",
			Options:  []string{"Federal", "State", "Federal & State"},
		},
		"3": {
			ID:       "3",
			Text:     "What state do you live in?",
			Kind:     KindMultipleChoice,
			Check:    CheckState,
			Required: true,
			APIField: "state",
			Options:  states,
		},
		"4": {
			ID:       "4",
			Text:     "Are any of your tax returns unfiled?",
			Kind:     KindYesNo,
			Required: true,
			APIField: "FileStatus",
		},
		"5": {
			ID:       "5",
			Text:     "Are you currently employed?",
			Kind:     KindYesNo,
			Required: true,
			APIField: "Employment",
		},
		"6": {
			ID:             "6",
			Text:           "What is your full name?",
			Kind:           KindText,
			Check:          CheckFullName,
			Required:       true,
			APIField:       "fullName",
			InvalidMessage: "Please provide your full first and last name.",
		},
		"7": {
			ID:             "7",
			Text:           "What is your email address? (This will be used to send you a copy of our agreement, never for spam.)",
			Kind:           KindText,
			Check:          CheckEmail,
			Required:       true,
			APIField:       "email",
			InvalidMessage: "That doesn't appear to be a valid email address. Please type out your correct email address.",
		},
		"8": {
			ID:             "8",
			Text:           "What is your phone number?",
			Kind:           KindText,
			Check:          CheckPhone,
			Required:       true,
			APIField:       "phone1",
			InvalidMessage: "That doesn't appear to be a valid phone number. Please enter your phone number in a format like (555) 123-4567 or 555-123-4567.",
		},
	}
}

// ErrorMessage is the reply sent when an answer fails validation.
func (q Question) ErrorMessage() string {
	if q.InvalidMessage != "" {
		return q.InvalidMessage
	}
	return defaultInvalidMessage
}

// WidgetOrderSets are the order sets the widget picks from at random.
func WidgetOrderSets() []orderset.Definition {
	var out []orderset.Definition
	for _, def := range orderset.Defaults() {
		if def.ID != "default" {
			out = append(out, def)
		}
	}
	return out
}
