package item

import (
	"regexp"

	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

// emailShape matches <non-empty>@<non-empty>.<non-empty> with no whitespace anywhere.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FilterResult accumulates the outcome of filtering a sequence of candidates.
type FilterResult struct {
	// Valid holds accepted candidates in input order.
	Valid []model.RecipientEntity
	// CorruptedEmails holds the emails of rejected candidates in input order.
	CorruptedEmails []string
	// Total counts every candidate seen, valid or not.
	Total int
}

// ValidCount returns the number of accepted candidates.
func (r FilterResult) ValidCount() int { return len(r.Valid) }

// CorruptedCount returns the number of rejected candidates.
func (r FilterResult) CorruptedCount() int { return len(r.CorruptedEmails) }

// ValidationFilter accepts candidates whose email has a plausible shape.
type ValidationFilter struct{}

// NewValidationFilter creates a new ValidationFilter.
func NewValidationFilter() *ValidationFilter {
	return &ValidationFilter{}
}

// Accept reports whether the candidate's email is well formed.
func (f *ValidationFilter) Accept(candidate model.RecipientEntity) bool {
	return emailShape.MatchString(candidate.Email)
}

// Apply folds one candidate into acc and returns the new accumulator.
func (f *ValidationFilter) Apply(acc FilterResult, candidate model.RecipientEntity) FilterResult {
	acc.Total++
	if f.Accept(candidate) {
		acc.Valid = append(acc.Valid, candidate)
	} else {
		acc.CorruptedEmails = append(acc.CorruptedEmails, candidate.Email)
	}
	return acc
}

// Partition filters candidates in order.
func (f *ValidationFilter) Partition(candidates []model.RecipientEntity) FilterResult {
	acc := FilterResult{
		Valid:           make([]model.RecipientEntity, 0, len(candidates)),
		CorruptedEmails: []string{},
	}
	for _, c := range candidates {
		acc = f.Apply(acc, c)
	}
	return acc
}
