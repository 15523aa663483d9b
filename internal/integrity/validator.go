package integrity

import (
	"sort"

	"sales-data-guard/internal/store"
)

// ValidationReport is the result of scanning a record set. It is ephemeral:
// produced and consumed within a single backup or restore operation.
type ValidationReport struct {
	Violations []Violation `json:"violations"`
	IsClean    bool        `json:"is_clean"`
}

// Validator applies an ordered list of integrity rules to record sets. It is
// pure: no I/O, no mutation of its input.
type Validator struct {
	rules []Rule
}

// NewValidator creates a validator with the given rules, or DefaultRules
// when none are supplied.
func NewValidator(rules ...Rule) *Validator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Validator{rules: rules}
}

// Validate scans every record of every table. It never fails; callers decide
// what to do with a dirty report.
func (v *Validator) Validate(tables map[string][]store.Record) ValidationReport {
	report := ValidationReport{}

	// Walk tables in sorted name order so violation ordering is stable.
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, table := range names {
		for _, record := range tables[table] {
			for _, rule := range v.rules {
				if violation := rule.Check(table, record); violation != nil {
					report.Violations = append(report.Violations, *violation)
				}
			}
		}
	}

	report.IsClean = len(report.Violations) == 0
	return report
}
