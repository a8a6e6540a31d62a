package model

import "time"

// TuningSuggestion is an advisor recommendation about a run's solver
// parameters -- e.g. a smoother swap or a coarse-cycle budget increase
// -- produced by comparing a RunResult's convergence history against
// known-good rates.
type TuningSuggestion struct {
	ID         int64     `json:"id,omitempty" db:"id"`
	RunUUID    string    `json:"uid" db:"uid"`
	Category   string    `json:"category,omitempty" db:"category"` // "smoother", "coarse", "schedule"
	Suggestion string    `json:"suggestion" db:"suggestion"`
	Rationale  string    `json:"rationale,omitempty" db:"rationale"`
	CreatedAt  time.Time `json:"created_at,omitempty" db:"created_at"`
}

// IsEmpty reports whether the suggestion carries no recommendation text.
func (s *TuningSuggestion) IsEmpty() bool {
	return s.Suggestion == ""
}

// TuningSuggestionBuilder builds a TuningSuggestion with a fluent API.
type TuningSuggestionBuilder struct {
	suggestion TuningSuggestion
}

// NewTuningSuggestionBuilder starts a new builder, stamping CreatedAt now.
func NewTuningSuggestionBuilder() *TuningSuggestionBuilder {
	return &TuningSuggestionBuilder{
		suggestion: TuningSuggestion{CreatedAt: time.Now()},
	}
}

// WithRunUUID sets the run this suggestion is for.
func (b *TuningSuggestionBuilder) WithRunUUID(uid string) *TuningSuggestionBuilder {
	b.suggestion.RunUUID = uid
	return b
}

// WithCategory sets the suggestion's category.
func (b *TuningSuggestionBuilder) WithCategory(category string) *TuningSuggestionBuilder {
	b.suggestion.Category = category
	return b
}

// WithSuggestion sets the suggestion text.
func (b *TuningSuggestionBuilder) WithSuggestion(text string) *TuningSuggestionBuilder {
	b.suggestion.Suggestion = text
	return b
}

// WithRationale sets the rationale text.
func (b *TuningSuggestionBuilder) WithRationale(text string) *TuningSuggestionBuilder {
	b.suggestion.Rationale = text
	return b
}

// Build returns the built TuningSuggestion.
func (b *TuningSuggestionBuilder) Build() TuningSuggestion {
	return b.suggestion
}
