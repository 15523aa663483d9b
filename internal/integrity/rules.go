package integrity

import (
	"fmt"
	"strings"

	"sales-data-guard/internal/store"
)

// Violation describes one record that failed an integrity rule.
type Violation struct {
	Table    string `json:"table"`
	RecordID string `json:"record_id"`
	Rule     string `json:"rule"`
	Detail   string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s/%s: %s (%s)", v.Table, v.RecordID, v.Rule, v.Detail)
}

// Rule is a pure predicate over a single record. A nil result means the
// record passed.
type Rule struct {
	Name  string
	Check func(table string, record store.Record) *Violation
}

// syntheticEmailDomains are domains that only ever appear in generated or
// placeholder data, never in real customer records.
var syntheticEmailDomains = []string{
	"example.com",
	"example.org",
	"test.com",
	"fake.com",
	"placeholder.com",
	"mailinator.com",
	"invalid.com",
}

// syntheticNameMarkers flag names that were obviously produced by a data
// generator.
var syntheticNameMarkers = []string{"test", "fake"}

// DefaultRules returns the fixed, ordered rule set applied before every
// backup and after every restore.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "synthetic_email", Check: checkSyntheticEmail},
		{Name: "synthetic_phone", Check: checkSyntheticPhone},
		{Name: "synthetic_name", Check: checkSyntheticName},
	}
}

func checkSyntheticEmail(table string, record store.Record) *Violation {
	for _, field := range record.FieldNames() {
		if !strings.Contains(strings.ToLower(field), "email") {
			continue
		}
		email, ok := record.Fields[field].(string)
		if !ok || email == "" {
			continue
		}
		at := strings.LastIndex(email, "@")
		if at < 0 {
			continue
		}
		domain := strings.ToLower(email[at+1:])
		for _, synthetic := range syntheticEmailDomains {
			if domain == synthetic {
				return &Violation{
					Table:    table,
					RecordID: record.ID,
					Rule:     "synthetic_email",
					Detail:   fmt.Sprintf("field %s has placeholder domain %s", field, domain),
				}
			}
		}
	}
	return nil
}

func checkSyntheticPhone(table string, record store.Record) *Violation {
	for _, field := range record.FieldNames() {
		lower := strings.ToLower(field)
		if !strings.Contains(lower, "phone") {
			continue
		}
		phone, ok := record.Fields[field].(string)
		if !ok {
			continue
		}
		digits := extractDigits(phone)
		if len(digits) < 7 {
			continue
		}
		if allSameDigit(digits) {
			return &Violation{
				Table:    table,
				RecordID: record.ID,
				Rule:     "synthetic_phone",
				Detail:   fmt.Sprintf("field %s has repeated-digit number %s", field, phone),
			}
		}
		if isArithmeticSequence(digits) {
			return &Violation{
				Table:    table,
				RecordID: record.ID,
				Rule:     "synthetic_phone",
				Detail:   fmt.Sprintf("field %s has sequential-digit number %s", field, phone),
			}
		}
	}
	return nil
}

func checkSyntheticName(table string, record store.Record) *Violation {
	for _, field := range record.FieldNames() {
		lower := strings.ToLower(field)
		if !strings.Contains(lower, "name") || strings.Contains(lower, "table") {
			continue
		}
		name, ok := record.Fields[field].(string)
		if !ok {
			continue
		}
		nameLower := strings.ToLower(name)
		for _, marker := range syntheticNameMarkers {
			if strings.Contains(nameLower, marker) {
				return &Violation{
					Table:    table,
					RecordID: record.ID,
					Rule:     "synthetic_name",
					Detail:   fmt.Sprintf("field %s contains marker %q", field, marker),
				}
			}
		}
	}
	return nil
}

func extractDigits(s string) []int {
	digits := make([]int, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	return digits
}

func allSameDigit(digits []int) bool {
	for _, d := range digits[1:] {
		if d != digits[0] {
			return false
		}
	}
	return true
}

// isArithmeticSequence reports whether consecutive digits differ by a
// constant step modulo 10, as in 1234567890 or 9876543210. A zero step is
// covered by allSameDigit and excluded here.
func isArithmeticSequence(digits []int) bool {
	step := (digits[1] - digits[0] + 10) % 10
	if step == 0 {
		return false
	}
	for i := 2; i < len(digits); i++ {
		if (digits[i]-digits[i-1]+10)%10 != step {
			return false
		}
	}
	return true
}
