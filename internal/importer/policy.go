package importer

import "catalog-import-service/internal/models"

// PolicyAction is what happens to a row when a field rule is violated
type PolicyAction int

const (
	PolicyFail PolicyAction = iota + 1
	PolicySkip
)

// FieldRule requires a non-empty value for one schema key
type FieldRule struct {
	Key    string
	Action PolicyAction
	Reason string
}

// RowPolicy is checked in order before any store call; the first violated
// rule decides the row.
type RowPolicy []FieldRule

// DefaultRowPolicy: a missing name or category is a data error, a missing
// type only skips the row.
func DefaultRowPolicy() RowPolicy {
	return RowPolicy{
		{Key: models.ColumnName, Action: PolicyFail, Reason: "name is required"},
		{Key: models.ColumnCategory, Action: PolicyFail, Reason: "category is required"},
		{Key: models.ColumnType, Action: PolicySkip, Reason: ReasonTypeRequired},
	}
}

// Check returns the outcome of the first violated rule
func (p RowPolicy) Check(m ColumnMapping, rec RowRecord) (RowOutcome, bool) {
	for _, rule := range p {
		if m.Value(rec, rule.Key) != "" {
			continue
		}
		switch rule.Action {
		case PolicySkip:
			return Skipped(rule.Reason), true
		default:
			return Failed(rule.Reason), true
		}
	}
	return RowOutcome{}, false
}
