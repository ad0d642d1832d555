// backend/internal/orderset/orderset.go
package orderset

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	"chat-funnel/internal/models"
)

// DefaultQuestionCount is the completion denominator for sessions whose order
// set is missing or whose stored order cannot be decoded.
const DefaultQuestionCount = 8

// Definition is an order set with its question order decoded.
type Definition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Questions   []string `json:"questionOrder"`
	Active      bool     `json:"active"`
	// Decoded is false when the stored order was not an array in any known encoding.
	Decoded bool `json:"-"`
}

func (d Definition) QuestionCount() int {
	if !d.Decoded {
		return DefaultQuestionCount
	}
	return len(d.Questions)
}

// IndexOf returns the position of questionID in the order, or -1.
func (d Definition) IndexOf(questionID string) int {
	for i, q := range d.Questions {
		if q == questionID {
			return i
		}
	}
	return -1
}

func FromModel(m models.OrderSet) Definition {
	questions, ok := ParseQuestionOrder(m.QuestionOrder)
	return Definition{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Questions:   questions,
		Active:      m.Active,
		Decoded:     ok,
	}
}

func (d Definition) ToModel() models.OrderSet {
	name := d.Name
	if name == "" {
		name = "Order Set " + d.ID
	}
	// an unknown order is stored as JSON null and counts as the default length
	order := datatypes.JSON("null")
	if d.Questions != nil {
		order = EncodeQuestionOrder(d.Questions)
	}
	return models.OrderSet{
		ID:            d.ID,
		Name:          name,
		Description:   d.Description,
		QuestionOrder: order,
		Active:        true,
	}
}

// ParseQuestionOrder decodes a stored question order. Accepted encodings are a
// JSON array of numbers or strings, a JSON string holding such an array, and a
// Postgres array literal like {1,2,3}.
func ParseQuestionOrder(raw []byte) ([]string, bool) {
	return parseQuestionOrder(bytes.TrimSpace(raw), 0)
}

func parseQuestionOrder(raw []byte, depth int) ([]string, bool) {
	if len(raw) == 0 || depth > 1 {
		return nil, false
	}
	switch raw[0] {
	case '[':
		return parseJSONArray(raw)
	case '"':
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, false
		}
		return parseQuestionOrder(bytes.TrimSpace([]byte(inner)), depth+1)
	case '{':
		// a JSON object is not an order
		if json.Valid(raw) {
			return nil, false
		}
		return parseArrayLiteral(string(raw))
	}
	return nil, false
}

func parseJSONArray(raw []byte) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		id, ok := NormalizeID(item)
		if !ok {
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

func parseArrayLiteral(s string) ([]string, bool) {
	if !strings.HasSuffix(s, "}") {
		return nil, false
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	out := []string{}
	if body == "" {
		return out, true
	}
	for _, part := range strings.Split(body, ",") {
		id := strings.Trim(strings.TrimSpace(part), `"`)
		if id == "" {
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

// NormalizeID turns a JSON number or string into a question id string.
// Integral numbers keep their decimal form, so 3 and "3" are the same question.
func NormalizeID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10), true
	}
	return n.String(), true
}

// EncodeQuestionOrder stores canonical integer ids as JSON numbers and anything
// else as strings, so "01" or "+3" decode back unchanged.
func EncodeQuestionOrder(questions []string) datatypes.JSON {
	items := make([]interface{}, 0, len(questions))
	for _, q := range questions {
		if i, err := strconv.Atoi(q); err == nil && strconv.Itoa(i) == q {
			items = append(items, i)
			continue
		}
		items = append(items, q)
	}
	b, _ := json.Marshal(items)
	return datatypes.JSON(b)
}

// Defaults is the catalog seeded at startup: the fallback "default" order and
// the variants the chat widget offers.
func Defaults() []Definition {
	return []Definition{
		{
			ID:          "default",
			Name:        "Default Order",
			Description: "Standard question order",
			Questions:   []string{"1", "2", "3", "4", "5", "6", "7", "8"},
			Active:      true,
			Decoded:     true,
		},
		{
			ID:          "set_1",
			Name:        "Standard Flow",
			Description: "Traditional question flow",
			Questions:   []string{"1", "2", "3", "4", "5", "6", "7", "8"},
			Active:      true,
			Decoded:     true,
		},
		{
			ID:          "set_4",
			Name:        "Asset-First Approach",
			Description: "Prioritize asset and employment questions",
			Questions:   []string{"6", "4", "7", "2", "1", "5", "3", "8"},
			Active:      true,
			Decoded:     true,
		},
	}
}
