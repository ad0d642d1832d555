// backend/internal/flow/validate.go
package flow

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^(\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z\x{00C0}-\x{00FF}\s-]+$`)
	nonNumeric   = regexp.MustCompile(`[^0-9.]`)
	leadingFloat = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)
	firstAmount  = regexp.MustCompile(`\$?([\d,]+)`)
	nonDigit     = regexp.MustCompile(`\D`)
)

var yesNoAnswers = map[string]bool{
	"yes": true, "no": true, "y": true, "n": true, "true": true, "false": true,
}

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// ValidatePhone accepts NANP formats or any 10 to 11 digit string.
func ValidatePhone(phone string) bool {
	if phonePattern.MatchString(phone) {
		return true
	}
	digits := len(nonDigit.ReplaceAllString(phone, ""))
	return digits >= 10 && digits <= 11
}

// ValidateFullName requires at least two words of two or more letters.
// Letters, spaces and inner hyphens are allowed.
func ValidateFullName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if !strings.Contains(trimmed, " ") || !namePattern.MatchString(trimmed) {
		return false
	}
	words := strings.Fields(trimmed)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if len([]rune(strings.ReplaceAll(w, "-", ""))) < 2 {
			return false
		}
		if strings.HasPrefix(w, "-") || strings.HasSuffix(w, "-") {
			return false
		}
	}
	return true
}

// ParseAmount extracts the leading number after dropping everything but
// digits and dots, so "$12,500" is 12500.
func ParseAmount(s string) (float64, bool) {
	m := leadingFloat.FindString(nonNumeric.ReplaceAllString(s, ""))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// StateName maps a two letter code to the state name it stands for.
func StateName(code string) (string, bool) {
	name, ok := stateCodes[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

// Validate reports whether answer is acceptable for q.
func (q Question) Validate(answer string) bool {
	if strings.TrimSpace(answer) == "" {
		return !q.Required
	}

	switch q.Check {
	case CheckFullName:
		return ValidateFullName(answer)
	case CheckEmail:
		return ValidateEmail(answer)
	case CheckPhone:
		return ValidatePhone(answer)
	}

	switch q.Kind {
	case KindAmount:
		if contains(q.QuickResponses, answer) {
			return true
		}
		n, ok := ParseAmount(answer)
		return ok && n >= q.MinAmount
	case KindYesNo:
		return yesNoAnswers[strings.ToLower(strings.TrimSpace(answer))]
	case KindMultipleChoice:
		if contains(q.Options, answer) {
			return true
		}
		if q.Check == CheckState {
			name, ok := StateName(answer)
			return ok && contains(q.Options, name)
		}
		return false
	case KindText:
		if q.MaxLength > 0 {
			return len(answer) <= q.MaxLength
		}
		return true
	default:
		return true
	}
}

// Normalize returns the stored form of a valid answer: typed amounts become
// their range label and state codes become state names.
func (q Question) Normalize(answer string) string {
	if q.Kind == KindAmount && len(q.AmountRanges) > 0 && !contains(q.QuickResponses, answer) {
		return q.CategorizeAmount(answer)
	}
	if q.Check == CheckState {
		if name, ok := StateName(answer); ok && contains(q.Options, name) {
			return name
		}
	}
	return answer
}

// CategorizeAmount returns the label of the range holding amount, or amount
// unchanged when it does not parse or falls outside every range.
func (q Question) CategorizeAmount(amount string) string {
	n, ok := ParseAmount(amount)
	if !ok {
		return amount
	}
	for _, r := range q.AmountRanges {
		if n >= r.Min && n <= r.Max {
			return r.Label
		}
	}
	return amount
}

// TriggersFollowUp reports whether a stored answer crosses the follow-up
// threshold. Range labels are read by their first amount.
func (q Question) TriggersFollowUp(answer string) bool {
	if q.FollowUp == nil {
		return false
	}
	var n float64
	var ok bool
	if strings.Contains(answer, "$") {
		if m := firstAmount.FindStringSubmatch(answer); m != nil {
			n, ok = ParseAmount(strings.ReplaceAll(m[1], ",", ""))
		}
	}
	if !ok {
		n, ok = ParseAmount(answer)
	}
	return ok && n > q.FollowUp.Above
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
